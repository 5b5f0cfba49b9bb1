package blobstore

import "errors"

var (
	// ErrNotFound is returned when no blob exists for a reference.
	ErrNotFound = errors.New("blob not found")
	// ErrCorrupt is returned when stored bytes fail their size or digest check.
	ErrCorrupt = errors.New("blob is corrupt")
	// ErrInvalidRef is returned for references that cannot name a blob.
	ErrInvalidRef = errors.New("invalid blob reference")
)
