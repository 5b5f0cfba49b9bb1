package api_test

import (
	"testing"
	"time"

	"webar/internal/api"
	"webar/internal/registry"
)

func TestFromAssetPublicHidesUSDZUntilReady(t *testing.T) {
	asset := &registry.Asset{ID: 7, Slug: "armchair-0a1b2c3d", Name: "Armchair", Status: registry.StatusConverting}
	view := api.FromAssetPublic(asset, "https://ar.example.com/")
	if view.USDZURL != nil || view.USDZReady {
		t.Fatalf("expected no usdz url while converting, got %#v", view)
	}
	if view.GLBURL != "https://ar.example.com/api/models/armchair-0a1b2c3d/file?format=glb" {
		t.Fatalf("unexpected glb url %q", view.GLBURL)
	}
	if view.ViewURL != "https://ar.example.com/p/armchair-0a1b2c3d" {
		t.Fatalf("unexpected view url %q", view.ViewURL)
	}

	asset.Status = registry.StatusReady
	asset.DerivedReady = true
	asset.DerivedRef = "ref"
	view = api.FromAssetPublic(asset, "https://ar.example.com")
	if view.USDZURL == nil || *view.USDZURL != "https://ar.example.com/api/models/armchair-0a1b2c3d/file?format=usdz" {
		t.Fatalf("unexpected usdz url %v", view.USDZURL)
	}
}

func TestFromAssetAdminFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	asset := &registry.Asset{
		ID:          1,
		Slug:        "lamp-00000001",
		Status:      registry.StatusReady,
		SizeBytes:   2048,
		BackendRef:  "entry-9",
		BackendURL:  "https://api.echo3d.com/query?file=entry-9",
		Diagnostics: "blender not found",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	view := api.FromAsset(asset, "http://viewer.test", "echo3d")
	if view.Backend != "echo3d" || view.Diagnostics != "blender not found" {
		t.Fatalf("unexpected admin view: %#v", view)
	}
	if view.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", view.CreatedAt)
	}

	asset.BackendRef = ""
	if got := api.FromAsset(asset, "http://viewer.test", "local").Backend; got != "" {
		t.Fatalf("expected no backend without reference, got %q", got)
	}
}

func TestNewPagination(t *testing.T) {
	if p := api.NewPagination(2, 20, 41); p.Pages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.Pages)
	}
	if p := api.NewPagination(1, 20, 0); p.Pages != 0 {
		t.Fatalf("expected 0 pages, got %d", p.Pages)
	}
}
