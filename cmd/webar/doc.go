// Command webar is the operator CLI for the webar asset service.
//
// `webar serve` runs the daemon: the HTTP API plus the background GLB to USDZ
// conversion pool. The asset subcommands work directly against the configured
// data directory, so they also work while no daemon is running; `asset add`
// converts in-process unless --no-wait is given.
//
// Output defaults to tables. --json and --yaml switch list and show commands
// to machine-readable output using the same field names as the HTTP API.
package main
