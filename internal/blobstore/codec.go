package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies how a payload is encoded at rest.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec parses a codec name. The empty string means CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd:
		return CodecZstd, nil
	case CodecLZ4:
		return CodecLZ4, nil
	default:
		return "", fmt.Errorf("unknown blob codec %q", name)
	}
}

func (c Codec) String() string { return string(c) }

var errIncompressible = errors.New("data is incompressible")

// encode returns the at-rest form of data and the codec actually applied.
// Payloads that do not shrink are stored uncompressed.
func encode(data []byte, codec Codec) ([]byte, Codec, error) {
	var (
		out []byte
		err error
	)
	switch codec {
	case CodecNone, "":
		return data, CodecNone, nil
	case CodecZstd:
		out, err = compressZstd(data)
	case CodecLZ4:
		out, err = compressLZ4(data)
	default:
		return nil, "", fmt.Errorf("unsupported blob codec %q", codec)
	}
	if errors.Is(err, errIncompressible) {
		return data, CodecNone, nil
	}
	if err != nil {
		return nil, "", err
	}
	return out, codec, nil
}

func decode(stored []byte, codec Codec, size int64) ([]byte, error) {
	switch codec {
	case CodecNone, "":
		return stored, nil
	case CodecZstd:
		return decompressZstd(stored, size)
	case CodecLZ4:
		return decompressLZ4(stored, size)
	default:
		return nil, fmt.Errorf("unsupported blob codec %q", codec)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer encoder.Close()
	out := encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func decompressZstd(compressed []byte, size int64) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(size)+1<<20))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if buf.Len() >= len(data) {
		return nil, errIncompressible
	}
	return buf.Bytes(), nil
}

func decompressLZ4(compressed []byte, size int64) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(out, lz4.NewReader(bytes.NewReader(compressed))); err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out.Bytes(), nil
}
