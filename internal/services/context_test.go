package services_test

import (
	"context"
	"testing"

	"webar/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAssetID(ctx, 42)
	ctx = services.WithSlug(ctx, "armchair-0badcafe")
	ctx = services.WithStage(ctx, "conversion")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.AssetIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected asset id: %v %v", id, ok)
	}
	if slug, ok := services.SlugFromContext(ctx); !ok || slug != "armchair-0badcafe" {
		t.Fatalf("unexpected slug: %v %v", slug, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "conversion" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithSlug(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.SlugFromContext(ctx); ok {
		t.Fatal("expected no slug value")
	}
	if _, ok := services.AssetIDFromContext(ctx); ok {
		t.Fatal("expected no asset id")
	}
}
