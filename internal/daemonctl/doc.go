// Package daemonctl coordinates CLI commands with the webar daemon.
//
// Exactly one process converts assets for a data directory: whoever holds the
// directory lock. The daemon holds it for its whole lifetime and publishes its
// API address next to it; a CLI command that finds the lock free takes it for
// the duration of the command and works in-process, otherwise it reaches the
// daemon through Client, which speaks the admin HTTP API.
package daemonctl
