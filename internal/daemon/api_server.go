package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"webar/internal/catalog"
	"webar/internal/config"
	"webar/internal/httpapi"
	"webar/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc *catalog.Service, health httpapi.HealthFunc, backendName string, logger *slog.Logger) *apiServer {
	routes := httpapi.New(httpapi.Options{
		Catalog:     svc,
		Health:      health,
		Token:       cfg.Paths.APIToken,
		BaseURL:     cfg.Server.BaseURL,
		BackendName: backendName,
		Limits: catalog.UploadLimits{
			MaxBytes:          cfg.Server.MaxUploadBytes,
			AllowedExtensions: cfg.Server.AllowedExtensions,
		},
		RateLimit: httpapi.RateLimit{
			Requests: cfg.Server.RateLimitRequests,
			Window:   cfg.RateLimitWindow(),
		},
		Logger: logger,
	})
	return &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           routes.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.bind, err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that api_bind is free and reachable"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop(timeout time.Duration) {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
}
