package blobstore

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// ShardFunc maps a reference to a directory relative to the blobs root.
type ShardFunc func(ref string) string

// Options configures a Store.
type Options struct {
	FileMode  os.FileMode
	DirMode   os.FileMode
	Codec     Codec
	ShardFunc ShardFunc
}

// Option mutates Options.
type Option func(*Options)

// WithCodec sets the at-rest codec applied to new blobs.
func WithCodec(codec Codec) Option {
	return func(o *Options) { o.Codec = codec }
}

// WithFileMode sets the permission bits for blob files.
func WithFileMode(mode os.FileMode) Option {
	return func(o *Options) { o.FileMode = mode }
}

// WithDirMode sets the permission bits for shard directories.
func WithDirMode(mode os.FileMode) Option {
	return func(o *Options) { o.DirMode = mode }
}

// WithShardFunc overrides the directory layout.
func WithShardFunc(fn ShardFunc) Option {
	return func(o *Options) { o.ShardFunc = fn }
}

// DefaultShardFunc spreads references over two levels of 256 directories
// keyed by the BLAKE3 hash of the reference: "a3/f2/<ref>".
func DefaultShardFunc(ref string) string {
	sum := blake3.Sum256([]byte(ref))
	hexHash := hex.EncodeToString(sum[:2])
	return filepath.Join(hexHash[:2], hexHash[2:4], ref)
}

func defaultOptions() Options {
	return Options{
		FileMode:  0o644,
		DirMode:   0o755,
		Codec:     CodecNone,
		ShardFunc: DefaultShardFunc,
	}
}
