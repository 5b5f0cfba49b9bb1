package catalog_test

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"webar/internal/blobstore"
	"webar/internal/catalog"
	"webar/internal/config"
	"webar/internal/services"
	"webar/internal/testsupport"
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

func TestOpenUSDZBeforeReadyIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset, _ := f.svc.Create(ctx, catalog.CreateRequest{Data: primaryPayload(t, 0), Name: "Pending"})

	if _, err := f.svc.Open(ctx, asset.Slug, catalog.VariantUSDZ); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	file, err := f.svc.Open(ctx, asset.Slug, catalog.VariantGLB)
	if err != nil {
		t.Fatalf("Open glb: %v", err)
	}
	if file.ContentType != "model/gltf-binary" || file.Filename != asset.Slug+".glb" {
		t.Fatalf("unexpected file: %s %s", file.ContentType, file.Filename)
	}
}

func TestOpenMissingPrimaryIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset, _ := f.svc.Create(ctx, catalog.CreateRequest{Data: primaryPayload(t, 0), Name: "Lost"})
	if err := f.blobs.Delete(ctx, asset.PrimaryRef); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Open(ctx, asset.Slug, catalog.VariantGLB); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := catalog.ParseVariant(""); err != nil || v != catalog.VariantGLB {
		t.Fatalf("expected glb default, got %v %v", v, err)
	}
	if v, err := catalog.ParseVariant("USDZ"); err != nil || v != catalog.VariantUSDZ {
		t.Fatalf("expected usdz, got %v %v", v, err)
	}
	if _, err := catalog.ParseVariant("obj"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateUpload(t *testing.T) {
	cfg := config.Default()
	limits := catalog.UploadLimits{MaxBytes: 64, AllowedExtensions: cfg.Server.AllowedExtensions}
	glb := testsupport.SampleGLB(t)

	if err := catalog.ValidateUpload("chair.GLB", glb, limits); err != nil {
		t.Fatalf("expected valid upload, got %v", err)
	}
	cases := map[string]struct {
		name string
		data []byte
	}{
		"empty":     {"chair.glb", nil},
		"extension": {"chair.gltf", glb},
		"magic":     {"chair.glb", []byte("PK\x03\x04 not a glb")},
		"size":      {"chair.glb", append(append([]byte{}, glb...), make([]byte, 64)...)},
	}
	for name, tc := range cases {
		if err := catalog.ValidateUpload(tc.name, tc.data, limits); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}
