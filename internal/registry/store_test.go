package registry_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"webar/internal/registry"
	"webar/internal/testsupport"
)

func newAsset(slug string) registry.NewAsset {
	return registry.NewAsset{
		Slug:             slug,
		Name:             "Armchair",
		OriginalFilename: "armchair.glb",
		SizeBytes:        2048,
		PrimaryRef:       "ref-" + slug,
	}
}

func TestCreateStartsConverting(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	asset, err := store.Create(ctx, newAsset("armchair-0a1b2c3d"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if asset.ID == 0 {
		t.Fatal("expected asset ID to be assigned")
	}
	if asset.Status != registry.StatusConverting || asset.DerivedReady || asset.DerivedRef != "" {
		t.Fatalf("unexpected initial state: %#v", asset)
	}
	if asset.CreatedAt.IsZero() || !asset.CreatedAt.Equal(asset.UpdatedAt) {
		t.Fatalf("expected matching timestamps, got %v / %v", asset.CreatedAt, asset.UpdatedAt)
	}

	bySlug, err := store.GetBySlug(ctx, "armchair-0a1b2c3d")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if bySlug == nil || bySlug.ID != asset.ID || bySlug.PrimaryRef != "ref-armchair-0a1b2c3d" {
		t.Fatalf("unexpected slug lookup: %#v", bySlug)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	asset, err := store.GetByID(ctx, 999)
	if err != nil || asset != nil {
		t.Fatalf("expected nil, nil for missing id, got %#v, %v", asset, err)
	}
	asset, err = store.GetBySlug(ctx, "nope")
	if err != nil || asset != nil {
		t.Fatalf("expected nil, nil for missing slug, got %#v, %v", asset, err)
	}
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Create(ctx, newAsset("dup")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, newAsset("dup")); !errors.Is(err, registry.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestCompleteWritesTerminalStateOnce(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	asset, err := store.Create(ctx, newAsset("chair"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done, err := store.Complete(ctx, asset.ID, registry.Ready("derived-ref"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if done.Status != registry.StatusReady || !done.DerivedReady || done.DerivedRef != "derived-ref" {
		t.Fatalf("unexpected completed asset: %#v", done)
	}

	again, err := store.Complete(ctx, asset.ID, registry.Failed("late writer"))
	if !errors.Is(err, registry.ErrNotConverting) {
		t.Fatalf("expected ErrNotConverting on second terminal write, got %v", err)
	}
	if again == nil || again.Status != registry.StatusReady {
		t.Fatalf("expected unchanged record returned, got %#v", again)
	}

	if _, err := store.Complete(ctx, 12345, registry.Failed("x")); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestCompleteFallbackAndFailed(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	fallback, _ := store.Create(ctx, newAsset("fallback"))
	got, err := store.Complete(ctx, fallback.ID, registry.ReadyWithoutDerived("blender not found"))
	if err != nil {
		t.Fatalf("Complete fallback failed: %v", err)
	}
	if got.Status != registry.StatusReady || got.DerivedReady || got.DerivedRef != "" || got.Diagnostics != "blender not found" {
		t.Fatalf("unexpected fallback state: %#v", got)
	}

	failed, _ := store.Create(ctx, newAsset("failed"))
	got, err = store.Complete(ctx, failed.ID, registry.Failed("primary missing"))
	if err != nil {
		t.Fatalf("Complete failed state: %v", err)
	}
	if got.Status != registry.StatusFailed || got.DerivedReady {
		t.Fatalf("unexpected failed state: %#v", got)
	}

	if _, err := store.Complete(ctx, failed.ID, registry.Completion{Status: registry.StatusFailed, DerivedRef: "x"}); err == nil {
		t.Fatal("expected validation error for failed completion with derived ref")
	}
	if _, err := store.Complete(ctx, failed.ID, registry.Completion{Status: registry.StatusConverting}); err == nil {
		t.Fatal("expected validation error for non-terminal completion")
	}
}

func TestDeleteRetiresSlug(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	asset, _ := store.Create(ctx, newAsset("lamp-00000001"))
	removed, err := store.Delete(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed == nil || removed.PrimaryRef != asset.PrimaryRef {
		t.Fatalf("expected removed record, got %#v", removed)
	}
	if got, _ := store.GetByID(ctx, asset.ID); got != nil {
		t.Fatalf("expected asset gone, got %#v", got)
	}

	if _, err := store.Create(ctx, newAsset("lamp-00000001")); !errors.Is(err, registry.ErrSlugTaken) {
		t.Fatalf("expected retired slug to be rejected, got %v", err)
	}
	available, err := store.SlugAvailable(ctx, "lamp-00000001")
	if err != nil || available {
		t.Fatalf("expected retired slug unavailable, got %v %v", available, err)
	}

	missing, err := store.Delete(ctx, asset.ID)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil deleting unknown id, got %#v, %v", missing, err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		in := newAsset(fmt.Sprintf("item-%d", i))
		if i == 3 {
			in.Name = "Red Sofa"
		}
		if _, err := store.Create(ctx, in); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, total, err := store.List(ctx, registry.ListOptions{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page), total)
	}
	if page[0].Slug != "item-4" || page[1].Slug != "item-3" {
		t.Fatalf("expected newest first, got %s, %s", page[0].Slug, page[1].Slug)
	}

	last, _, err := store.List(ctx, registry.ListOptions{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(last) != 1 || last[0].Slug != "item-0" {
		t.Fatalf("unexpected last page: %#v", last)
	}

	found, total, err := store.List(ctx, registry.ListOptions{Search: "sofa"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if total != 1 || len(found) != 1 || found[0].Slug != "item-3" {
		t.Fatalf("unexpected search result: total=%d %#v", total, found)
	}

	if _, total, _ := store.List(ctx, registry.ListOptions{Search: "%"}); total != 0 {
		t.Fatalf("expected literal wildcard search to match nothing, got %d", total)
	}

	if _, err := store.Complete(ctx, page[0].ID, registry.Ready("d")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	ready, total, err := store.List(ctx, registry.ListOptions{Status: registry.StatusReady})
	if err != nil || total != 1 || ready[0].ID != page[0].ID {
		t.Fatalf("unexpected status filter: total=%d err=%v", total, err)
	}

	converting, err := store.ListConverting(ctx)
	if err != nil {
		t.Fatalf("ListConverting: %v", err)
	}
	if len(converting) != 4 || converting[0].Slug != "item-0" {
		t.Fatalf("unexpected converting list: %d", len(converting))
	}
}

func TestConcurrentCompletionsSingleWinner(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()
	asset, _ := store.Create(ctx, newAsset("race"))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Complete(ctx, asset.ID, registry.ReadyWithoutDerived(fmt.Sprintf("writer %d", i)))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, registry.ErrNotConverting) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one terminal write, got %d", wins)
	}
}

func TestStatsAndHealth(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a, _ := store.Create(ctx, newAsset("a"))
	_, _ = store.Create(ctx, newAsset("b"))
	if _, err := store.Complete(ctx, a.ID, registry.Ready("d")); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[registry.StatusReady] != 1 || stats[registry.StatusConverting] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if n, err := store.CountDerivedReady(ctx); err != nil || n != 1 {
		t.Fatalf("unexpected derived count %d err=%v", n, err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.TotalAssets != 2 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := registry.ParseStatus(" READY "); !ok || s != registry.StatusReady {
		t.Fatalf("unexpected parse: %v %v", s, ok)
	}
	if _, ok := registry.ParseStatus("pending"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if registry.StatusConverting.IsTerminal() || !registry.StatusFailed.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
