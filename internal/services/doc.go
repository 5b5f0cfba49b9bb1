// Package services defines shared utilities consumed by the asset pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, slugs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     consistently (validation vs not found vs external tool) for the API
//     and CLI layers.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across packages.
package services
