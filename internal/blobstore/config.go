package blobstore

import (
	"webar/internal/config"
)

// OpenConfig opens the store under cfg's data directory with the configured codec.
func OpenConfig(cfg *config.Config) (*Store, error) {
	codec, err := ParseCodec(cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}
	return Open(cfg.BlobDir(), WithCodec(codec))
}
