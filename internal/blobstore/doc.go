// Package blobstore keeps opaque binary payloads on the local filesystem and
// hands out an opaque reference for each one.
//
// Payloads are written to a temp directory and renamed into a sharded layout
// (blobs/<aa>/<bb>/<ref>/) once complete, so readers never observe a partial
// blob. Each payload carries a CBOR metadata sidecar recording its size,
// BLAKE3 digest and at-rest codec. Get verifies the digest before returning
// bytes and reports ErrCorrupt when it does not match.
package blobstore
