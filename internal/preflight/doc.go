// Package preflight provides readiness checks for the filesystem, external
// binaries, and remote services that webar depends on.
//
// The daemon logs RunAll results at startup, the health endpoint reports
// them, and "webar status" renders them as a table.
package preflight
