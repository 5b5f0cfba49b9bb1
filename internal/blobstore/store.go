package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"webar/internal/fileutil"
)

const (
	tempDirName = ".tmp"
	blobDirName = "blobs"
)

// Store is a filesystem-backed blob store. It is safe for concurrent use.
type Store struct {
	root string
	opts Options
}

// Open prepares a store rooted at dir, creating its directories as needed.
func Open(dir string, opts ...Option) (*Store, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if _, err := ParseCodec(string(options.Codec)); err != nil {
		return nil, err
	}
	if options.ShardFunc == nil {
		options.ShardFunc = DefaultShardFunc
	}

	root := filepath.Clean(dir)
	for _, sub := range []string{blobDirName, tempDirName} {
		if err := os.MkdirAll(filepath.Join(root, sub), options.DirMode); err != nil {
			return nil, fmt.Errorf("create blob directory %s: %w", sub, err)
		}
	}
	return &Store{root: root, opts: options}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores data and returns its new reference. Every call yields a
// distinct reference, even for identical bytes.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate blob reference: %w", err)
	}
	ref := id.String()

	stored, codec, err := encode(data, s.opts.Codec)
	if err != nil {
		return "", err
	}
	meta := &Meta{
		Ref:         ref,
		Size:        int64(len(data)),
		StoredSize:  int64(len(stored)),
		Digest:      digestOf(data),
		Codec:       codec,
		ContentType: sniffContentType(data),
		CreatedAt:   time.Now().UTC(),
	}
	metaBytes, err := encodeMeta(meta)
	if err != nil {
		return "", fmt.Errorf("encode blob metadata: %w", err)
	}

	dataTmp, err := s.writeTemp(stored)
	if err != nil {
		return "", err
	}
	defer os.Remove(dataTmp)
	metaTmp, err := s.writeTemp(metaBytes)
	if err != nil {
		return "", err
	}
	defer os.Remove(metaTmp)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := s.pathFor(ref)
	if err := os.MkdirAll(dir, s.opts.DirMode); err != nil {
		return "", fmt.Errorf("create blob shard: %w", err)
	}
	// Metadata lands first; a blob is only visible once its data file exists.
	if err := os.Rename(metaTmp, filepath.Join(dir, metaFileName)); err != nil {
		return "", fmt.Errorf("commit blob metadata: %w", err)
	}
	if err := os.Rename(dataTmp, filepath.Join(dir, dataFileName)); err != nil {
		_ = os.Remove(filepath.Join(dir, metaFileName))
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return ref, nil
}

// Get returns the bytes stored under ref after verifying them against the
// recorded digest.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	dir := s.pathFor(ref)
	stored, err := os.ReadFile(filepath.Join(dir, dataFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}
	meta, err := readMeta(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no metadata", ErrCorrupt, ref)
		}
		return nil, err
	}

	data, err := decode(stored, meta.Codec, meta.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, ref, err)
	}
	if int64(len(data)) != meta.Size {
		return nil, fmt.Errorf("%w: %s size %d, expected %d", ErrCorrupt, ref, len(data), meta.Size)
	}
	if digestOf(data) != meta.Digest {
		return nil, fmt.Errorf("%w: %s digest mismatch", ErrCorrupt, ref)
	}
	return data, nil
}

// Stat returns the metadata for ref without reading its payload.
func (s *Store) Stat(ctx context.Context, ref string) (*Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	dir := s.pathFor(ref)
	if _, err := os.Stat(filepath.Join(dir, dataFileName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	meta, err := readMeta(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no metadata", ErrCorrupt, ref)
		}
		return nil, err
	}
	return meta, nil
}

// Exists reports whether ref names a stored blob.
func (s *Store) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := s.Stat(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the blob. Deleting an unknown reference is not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	dir := s.pathFor(ref)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete blob %s: %w", ref, err)
	}
	s.cleanupEmptyDirs(dir)
	return nil
}

func (s *Store) pathFor(ref string) string {
	return filepath.Join(s.root, blobDirName, s.opts.ShardFunc(ref))
}

func (s *Store) writeTemp(payload []byte) (string, error) {
	name, err := fileutil.WriteTemp(filepath.Join(s.root, tempDirName), "blob-*", payload, s.opts.FileMode)
	if err != nil {
		return "", fmt.Errorf("stage blob: %w", err)
	}
	return name, nil
}

// cleanupEmptyDirs walks up from a removed blob directory, pruning empty
// shard directories until it reaches the blobs root.
func (s *Store) cleanupEmptyDirs(path string) {
	blobsDir := filepath.Join(s.root, blobDirName)
	parent := filepath.Dir(path)
	for parent != blobsDir && strings.HasPrefix(parent, blobsDir) {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
		parent = filepath.Dir(parent)
	}
}

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." || strings.Contains(ref, "\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

func sniffContentType(data []byte) string {
	if len(data) >= 4 && string(data[:4]) == "glTF" {
		return "model/gltf-binary"
	}
	if len(data) >= 4 && string(data[:4]) == "PK\x03\x04" {
		return "model/vnd.usdz+zip"
	}
	return http.DetectContentType(data)
}
