// Package conversion drives the derived-variant lifecycle of an asset.
//
// The Orchestrator owns the converting -> ready | failed state machine for a
// single asset: it reads the primary blob, makes one converter attempt, stores
// the derived blob on success and performs exactly one terminal registry
// write. Primary read failures are fatal (failed). Converter problems degrade
// to ready without a derived variant.
//
// The Dispatcher runs orchestrations on a bounded worker pool so request
// handlers never wait on the converter. It refuses a second submission for an
// id that is already queued or running, and Resume re-queues rows left in
// converting by an earlier process.
package conversion
