package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"webar/internal/api"
	"webar/internal/catalog"
	"webar/internal/logging"
	"webar/internal/registry"
)

// Catalog is the asset façade the routes call into.
type Catalog interface {
	Create(ctx context.Context, req catalog.CreateRequest) (*registry.Asset, error)
	GetByID(ctx context.Context, id int64) (*registry.Asset, error)
	GetBySlug(ctx context.Context, slug string) (*registry.Asset, error)
	List(ctx context.Context, opts registry.ListOptions) ([]*registry.Asset, int, error)
	Delete(ctx context.Context, id int64) error
	OpenBySlug(ctx context.Context, slug string, variant catalog.Variant) (*catalog.File, error)
}

// HealthFunc reports daemon health for GET /api/health.
type HealthFunc func(ctx context.Context) api.Health

// Options configures the route set.
type Options struct {
	Catalog     Catalog
	Health      HealthFunc
	Token       string
	BaseURL     string
	BackendName string
	Limits      catalog.UploadLimits
	RateLimit   RateLimit
	Logger      *slog.Logger
}

// Server holds route dependencies.
type Server struct {
	catalog     Catalog
	health      HealthFunc
	token       string
	baseURL     string
	backendName string
	limits      catalog.UploadLimits
	limiter     *ipLimiter
	logger      *slog.Logger
}

// New constructs the route set.
func New(opts Options) *Server {
	return &Server{
		catalog:     opts.Catalog,
		health:      opts.Health,
		token:       opts.Token,
		baseURL:     opts.BaseURL,
		backendName: opts.BackendName,
		limits:      opts.Limits,
		limiter:     newIPLimiter(opts.RateLimit, nil),
		logger:      logging.NewComponentLogger(opts.Logger, "api-server"),
	}
}

// Handler returns the routed handler wrapped with request tracking.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/admin/models/upload", authMiddleware(s.token, s.handleUpload))
	mux.HandleFunc("GET /api/admin/models", authMiddleware(s.token, s.handleList))
	mux.HandleFunc("GET /api/admin/models/{id}", authMiddleware(s.token, s.handleAdminGet))
	mux.HandleFunc("DELETE /api/admin/models/{id}", authMiddleware(s.token, s.handleDelete))

	mux.HandleFunc("GET /api/models/{slug}", publicCORS(s.handlePublicGet))
	mux.HandleFunc("GET /api/models/{slug}/file", publicCORS(s.handleFile))

	return requestContext(s.logger, rateLimitMiddleware(s.limiter, mux))
}
