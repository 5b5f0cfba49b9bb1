package api

import (
	"net/url"
	"strings"

	"webar/internal/deps"
	"webar/internal/registry"
)

// Links holds the public addresses of one asset.
type Links struct {
	View string
	GLB  string
	USDZ string
}

// NewLinks derives viewer and file URLs for slug under baseURL.
func NewLinks(baseURL, slug string) Links {
	base := strings.TrimRight(baseURL, "/")
	file := base + "/api/models/" + url.PathEscape(slug) + "/file?format="
	return Links{
		View: base + "/p/" + slug,
		GLB:  file + "glb",
		USDZ: file + "usdz",
	}
}

// FromAssetPublic converts a registry record into the viewer representation.
func FromAssetPublic(asset *registry.Asset, baseURL string) PublicAsset {
	if asset == nil {
		return PublicAsset{}
	}
	links := NewLinks(baseURL, asset.Slug)
	view := PublicAsset{
		ID:        asset.ID,
		Name:      asset.Name,
		Slug:      asset.Slug,
		Status:    string(asset.Status),
		GLBURL:    links.GLB,
		USDZReady: asset.DerivedReady,
		ViewURL:   links.View,
	}
	if asset.DerivedReady {
		usdz := links.USDZ
		view.USDZURL = &usdz
	}
	return view
}

// FromAsset converts a registry record into the admin representation.
// backendName is reported only when the record carries a backend reference.
func FromAsset(asset *registry.Asset, baseURL, backendName string) Asset {
	if asset == nil {
		return Asset{}
	}
	view := Asset{
		PublicAsset:      FromAssetPublic(asset, baseURL),
		OriginalFilename: asset.OriginalFilename,
		SizeBytes:        asset.SizeBytes,
		BackendURL:       asset.BackendURL,
		Diagnostics:      asset.Diagnostics,
	}
	if asset.BackendRef != "" {
		view.Backend = backendName
	}
	if !asset.CreatedAt.IsZero() {
		view.CreatedAt = asset.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !asset.UpdatedAt.IsZero() {
		view.UpdatedAt = asset.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromAssets converts a page of records.
func FromAssets(assets []*registry.Asset, baseURL, backendName string) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, FromAsset(asset, baseURL, backendName))
	}
	return out
}

// NewPagination computes the page count for total items.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// FromDependencies converts dependency checks for transport.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromDatabaseHealth converts registry diagnostics for transport.
func FromDatabaseHealth(health registry.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Path:           health.DBPath,
		Readable:       health.DatabaseReadable,
		SchemaVersion:  health.SchemaVersion,
		IntegrityCheck: health.IntegrityCheck,
		Error:          health.Error,
	}
}
