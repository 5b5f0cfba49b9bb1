package conversion_test

import (
	"io/fs"
	"path/filepath"
	"testing"

	"webar/internal/blobstore"
)

func countBlobs(t *testing.T, store *blobstore.Store) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(filepath.Join(store.Root(), "blobs"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "data" {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk blobs: %v", err)
	}
	return count
}
