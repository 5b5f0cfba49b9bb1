package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webar/internal/blobstore"
	"webar/internal/registry"
	"webar/internal/services"
)

// Variant selects which blob of an asset to serve.
type Variant string

const (
	VariantGLB  Variant = "glb"
	VariantUSDZ Variant = "usdz"
)

// ParseVariant accepts "glb" (the default when empty) or "usdz".
func ParseVariant(value string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(value))) {
	case "", VariantGLB:
		return VariantGLB, nil
	case VariantUSDZ:
		return VariantUSDZ, nil
	default:
		return "", services.Wrap(services.ErrValidation, "catalog", "open", fmt.Sprintf("unsupported format %q (want glb or usdz)", value), nil)
	}
}

// ContentType is the media type served for the variant.
func (v Variant) ContentType() string {
	if v == VariantUSDZ {
		return "model/vnd.usdz+zip"
	}
	return "model/gltf-binary"
}

// File is a resolved blob ready to be served.
type File struct {
	Asset       *registry.Asset
	Variant     Variant
	Data        []byte
	ContentType string
	Filename    string
}

// Open loads the requested variant of an asset. A USDZ request for an asset
// without a derived variant yields services.ErrNotFound.
func (s *Service) Open(ctx context.Context, idOrSlug string, variant Variant) (*File, error) {
	asset, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, asset, variant)
}

// OpenBySlug is Open restricted to public slugs.
func (s *Service) OpenBySlug(ctx context.Context, slug string, variant Variant) (*File, error) {
	asset, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, asset, variant)
}

func (s *Service) load(ctx context.Context, asset *registry.Asset, variant Variant) (*File, error) {
	ref := asset.PrimaryRef
	if variant == VariantUSDZ {
		if !asset.DerivedReady || asset.DerivedRef == "" {
			return nil, services.Wrap(services.ErrNotFound, "catalog", "open",
				fmt.Sprintf("usdz variant for %s is not available (status %s)", asset.Slug, asset.Status), nil)
		}
		ref = asset.DerivedRef
	}
	data, err := s.blobs.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "catalog", "open", fmt.Sprintf("%s blob for %s is missing", variant, asset.Slug), err)
		}
		return nil, fmt.Errorf("read %s blob: %w", variant, err)
	}
	return &File{
		Asset:       asset,
		Variant:     variant,
		Data:        data,
		ContentType: variant.ContentType(),
		Filename:    asset.Slug + "." + string(variant),
	}, nil
}
