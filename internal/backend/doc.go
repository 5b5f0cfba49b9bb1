// Package backend publishes uploaded primary assets to an optional external
// asset service and releases them again on delete.
//
// Exactly one binding is active per deployment. The local binding keeps no
// external copy. The echo3D binding uploads the GLB through the echo3D REST
// API and records the entry id it returns so the entry can be removed later.
package backend
