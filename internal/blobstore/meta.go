package blobstore

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

const (
	dataFileName = "data"
	metaFileName = "meta.cbor"
)

// Meta describes a stored blob.
type Meta struct {
	Ref         string    `cbor:"ref"`
	Size        int64     `cbor:"size"`
	StoredSize  int64     `cbor:"stored_size"`
	Digest      string    `cbor:"blake3"`
	Codec       Codec     `cbor:"codec"`
	ContentType string    `cbor:"content_type,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

var (
	metaEncMode cbor.EncMode
	metaDecMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	metaEncMode, err = opts.EncMode()
	if err != nil {
		panic("blobstore: CBOR encoder initialization failed: " + err.Error())
	}
	metaDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("blobstore: CBOR decoder initialization failed: " + err.Error())
	}
}

func digestOf(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func readMeta(path string) (*Meta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := metaDecMode.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", ErrCorrupt, err)
	}
	return &meta, nil
}

func encodeMeta(meta *Meta) ([]byte, error) {
	return metaEncMode.Marshal(meta)
}
