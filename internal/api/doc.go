// Package api defines the wire-format types returned by the HTTP API and the
// CLI's --json/--yaml output. It translates registry.Asset records into
// transport-friendly DTOs so clients never depend on internal types.
//
// # Key Types
//
// Asset: the admin view of a record, including backend and diagnostic fields.
//
// PublicAsset: the subset served to viewers, without backend references.
//
// Envelope: the {success, data, message} wrapper every JSON response uses.
//
// # Converters
//
// FromAsset and FromAssetPublic build the views; Links derives the viewer
// page and file download URLs from the configured public base URL.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use RFC3339
// with milliseconds. usdzUrl is null until a derived variant exists.
package api
