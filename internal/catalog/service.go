package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"webar/internal/backend"
	"webar/internal/logging"
	"webar/internal/registry"
	"webar/internal/services"
	"webar/internal/textutil"
)

// Registry is the subset of registry.Store the façade uses.
type Registry interface {
	Create(ctx context.Context, in registry.NewAsset) (*registry.Asset, error)
	GetByID(ctx context.Context, id int64) (*registry.Asset, error)
	GetBySlug(ctx context.Context, slug string) (*registry.Asset, error)
	List(ctx context.Context, opts registry.ListOptions) ([]*registry.Asset, int, error)
	Delete(ctx context.Context, id int64) (*registry.Asset, error)
	SlugAvailable(ctx context.Context, slug string) (bool, error)
}

// BlobStore is the subset of blobstore.Store the façade uses.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Scheduler accepts conversion work without blocking.
type Scheduler interface {
	Submit(assetID int64) bool
}

// CreateRequest carries a validated upload.
type CreateRequest struct {
	Data     []byte
	Name     string
	Filename string
}

// Option configures a Service.
type Option func(*Service)

// WithRandom replaces the slug entropy source (primarily for tests).
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

// Service implements the asset operations.
type Service struct {
	registry  Registry
	blobs     BlobStore
	backend   backend.Backend
	scheduler Scheduler
	baseURL   string
	logger    *slog.Logger
	random    io.Reader
}

// New constructs the façade. baseURL is the public viewer origin used by ViewURL.
func New(reg Registry, blobs BlobStore, be backend.Backend, scheduler Scheduler, baseURL string, logger *slog.Logger, opts ...Option) *Service {
	if be == nil {
		be = backend.Local{}
	}
	s := &Service{
		registry:  reg,
		blobs:     blobs,
		backend:   be,
		scheduler: scheduler,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logging.NewComponentLogger(logger, "catalog"),
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new primary asset and schedules its conversion. The
// returned asset is always in the converting state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*registry.Asset, error) {
	if len(req.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create", "upload is empty", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = textutil.DisplayName(req.Filename)
	}
	slug, err := s.pickSlug(ctx, name)
	if err != nil {
		return nil, err
	}
	ctx = services.WithSlug(ctx, slug)
	logger := logging.WithContext(ctx, s.logger)

	primaryRef, err := s.blobs.Put(ctx, req.Data)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "create", "store primary asset", err)
	}

	published, err := s.backend.Publish(ctx, backend.Upload{Slug: slug, Filename: req.Filename, Data: req.Data})
	if err != nil {
		s.discardBlob(ctx, logger, primaryRef, "primary")
		return nil, fmt.Errorf("publish to %s backend: %w", s.backend.Name(), err)
	}

	asset, err := s.registry.Create(ctx, registry.NewAsset{
		Slug:             slug,
		Name:             name,
		OriginalFilename: textutil.SanitizeFileName(req.Filename),
		SizeBytes:        int64(len(req.Data)),
		PrimaryRef:       primaryRef,
		BackendRef:       published.Ref,
		BackendURL:       published.URL,
	})
	if err != nil {
		s.releaseBackend(ctx, logger, published.Ref)
		s.discardBlob(ctx, logger, primaryRef, "primary")
		if errors.Is(err, registry.ErrSlugTaken) {
			return nil, services.Wrap(services.ErrTransient, "catalog", "create", "slug collision; retry the upload", err)
		}
		return nil, services.Wrap(services.ErrTransient, "catalog", "create", "record asset", err)
	}

	logger = logger.With(logging.AssetID(asset.ID))
	logger.Info("asset created",
		logging.String("name", asset.Name),
		logging.Int64("size_bytes", asset.SizeBytes),
		logging.String("backend", s.backend.Name()),
		logging.String(logging.FieldEventType, "asset_created"),
	)
	if s.scheduler != nil && !s.scheduler.Submit(asset.ID) {
		logging.WarnWithContext(logger, "conversion not scheduled", "conversion_not_scheduled",
			logging.String(logging.FieldErrorHint, "the asset is picked up on the next daemon start"),
			logging.String(logging.FieldImpact, "asset stays converting until then"),
		)
	}
	return asset, nil
}

// Get resolves a numeric id or a slug. Unknown identifiers yield services.ErrNotFound.
func (s *Service) Get(ctx context.Context, idOrSlug string) (*registry.Asset, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "get", "identifier is required", nil)
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil && id > 0 {
		asset, err := s.registry.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			return asset, nil
		}
	}
	asset, err := s.registry.GetBySlug(ctx, key)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get", fmt.Sprintf("asset %q not found", key), nil)
	}
	return asset, nil
}

// GetBySlug resolves a public slug only.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*registry.Asset, error) {
	asset, err := s.registry.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get", fmt.Sprintf("asset %q not found", slug), nil)
	}
	return asset, nil
}

// GetByID resolves an id only.
func (s *Service) GetByID(ctx context.Context, id int64) (*registry.Asset, error) {
	asset, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get", fmt.Sprintf("asset %d not found", id), nil)
	}
	return asset, nil
}

// List returns one page of assets, newest first, and the total match count.
func (s *Service) List(ctx context.Context, opts registry.ListOptions) ([]*registry.Asset, int, error) {
	return s.registry.List(ctx, opts)
}

// Delete removes an asset. Storage and backend release failures are logged
// and do not fail the call.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx = services.WithAssetID(ctx, id)
	removed, err := s.registry.Delete(ctx, id)
	if err != nil {
		return err
	}
	if removed == nil {
		return services.Wrap(services.ErrNotFound, "catalog", "delete", fmt.Sprintf("asset %d not found", id), nil)
	}
	logger := logging.WithContext(services.WithSlug(ctx, removed.Slug), s.logger)

	s.discardBlob(ctx, logger, removed.PrimaryRef, "primary")
	if removed.DerivedRef != "" {
		s.discardBlob(ctx, logger, removed.DerivedRef, "derived")
	}
	s.releaseBackend(ctx, logger, removed.BackendRef)

	logger.Info("asset deleted",
		logging.String(logging.FieldEventType, "asset_deleted"),
	)
	return nil
}

// ViewURL is the public viewer address for slug.
func (s *Service) ViewURL(slug string) string {
	return s.baseURL + "/p/" + slug
}

// slugAttempts bounds how many random suffixes Create tries before giving up.
const slugAttempts = 3

// pickSlug draws candidates until one is neither in use nor retired. The
// registry insert still rejects a slug taken between the check and the write.
func (s *Service) pickSlug(ctx context.Context, name string) (string, error) {
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug, err := s.newSlug(name)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "catalog", "create", "generate slug", err)
		}
		ok, err := s.registry.SlugAvailable(ctx, slug)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "catalog", "create", "check slug", err)
		}
		if ok {
			return slug, nil
		}
		s.logger.Debug("slug candidate taken", logging.Slug(slug), logging.Int("attempt", attempt+1))
	}
	return "", services.Wrap(services.ErrTransient, "catalog", "create",
		fmt.Sprintf("no free slug after %d attempts; retry the upload", slugAttempts), nil)
}

func (s *Service) newSlug(name string) (string, error) {
	base := textutil.Slugify(name)
	if base == "" {
		return s.randomHex(8)
	}
	suffix, err := s.randomHex(4)
	if err != nil {
		return "", err
	}
	return base + "-" + suffix, nil
}

func (s *Service) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) discardBlob(ctx context.Context, logger *slog.Logger, ref, kind string) {
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		logging.WarnWithContext(logger, "blob release failed", "blob_release_failed",
			logging.String("blob_kind", kind),
			logging.String("blob_ref", ref),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the blob manually from the data directory"),
			logging.String(logging.FieldImpact, "orphaned blob occupies disk space"),
		)
	}
}

func (s *Service) releaseBackend(ctx context.Context, logger *slog.Logger, ref string) {
	if ref == "" {
		return
	}
	if err := s.backend.Release(context.WithoutCancel(ctx), ref); err != nil {
		logging.WarnWithContext(logger, "backend release failed", "backend_release_failed",
			logging.String("backend", s.backend.Name()),
			logging.String("backend_ref", ref),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the entry in the backend console"),
			logging.String(logging.FieldImpact, "external copy remains published"),
		)
	}
}
