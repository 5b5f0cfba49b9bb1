// Package registry persists asset records in SQLite and is the single source
// of truth for whether an asset is ready.
//
// The Store manages the database connection, schema initialization, stats and
// health queries, and the one conditional terminal transition an asset may
// take (converting to ready or failed). Status, derived reference and the
// readiness flag are always written together in one statement, and CHECK
// constraints in schema.sql reject any row that breaks the readiness rules.
//
// Deleted slugs are moved into retired_slugs inside the delete transaction so
// they are never handed out again. Schema changes bump schemaVersion.
package registry
