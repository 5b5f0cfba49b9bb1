// Package catalog is the asset façade used by the HTTP API and the CLI.
//
// Create is all-or-nothing: the primary blob, the external backend copy and
// the registry row either all exist when it returns or none do. Conversion is
// handed to a Scheduler and never awaited. Reads go straight to the registry
// and never trigger conversion. Delete removes the row and retires its slug,
// then releases blobs and the backend entry on a best-effort basis.
package catalog
