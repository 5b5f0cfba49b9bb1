package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"webar/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	if result := CheckDirectoryAccess("test", t.TempDir()); !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope")); result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %#v", result)
	}
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got %s", result.Detail)
	}
	if result := CheckDiskSpace("disk", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
}

func TestCheckEcho3D(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if result := CheckEcho3D(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("expected reachable, got %s", result.Detail)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	if result := CheckEcho3D(context.Background(), broken.URL); result.Passed {
		t.Fatal("expected server error to fail")
	}
}

func TestCheckSystemDepsSkipsDisabledConverter(t *testing.T) {
	cfg := config.Default()
	cfg.Converter.Enabled = false
	if got := CheckSystemDeps(&cfg); len(got) != 0 {
		t.Fatalf("expected no deps when converter disabled, got %v", got)
	}
	cfg.Converter.Enabled = true
	cfg.Converter.Command = "clearly-not-present-binary"
	got := CheckSystemDeps(&cfg)
	if len(got) != 1 || got[0].Available || !got[0].Optional {
		t.Fatalf("unexpected converter status: %#v", got)
	}
}
