package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"webar/internal/config"
)

// Upload is the payload handed to a backend on asset creation.
type Upload struct {
	Slug     string
	Filename string
	Data     []byte
}

// Published identifies the external copy of an asset. Ref is empty when the
// backend keeps no external copy.
type Published struct {
	Ref string
	URL string
}

// Backend is an external asset service binding.
type Backend interface {
	Name() string
	Publish(ctx context.Context, upload Upload) (Published, error)
	Release(ctx context.Context, ref string) error
}

// HTTPDoer describes the HTTP client used by remote backends.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns the backend selected by cfg.Backend.Kind.
func New(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return Local{}, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend.Kind)) {
	case "", config.BackendLocal:
		return Local{}, nil
	case config.BackendEcho3D:
		timeout := time.Duration(cfg.Backend.Echo3DTimeoutSeconds) * time.Second
		return NewEcho3D(Echo3DOptions{
			APIURL:      cfg.Backend.Echo3DAPIURL,
			APIKey:      cfg.Backend.Echo3DAPIKey,
			SecurityKey: cfg.Backend.Echo3DSecurityKey,
			TestMode:    cfg.Backend.TestMode,
			Client:      &http.Client{Timeout: timeout},
		})
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// Local keeps assets only in the local blob store.
type Local struct{}

func (Local) Name() string { return config.BackendLocal }

func (Local) Publish(context.Context, Upload) (Published, error) {
	return Published{}, nil
}

func (Local) Release(context.Context, string) error {
	return nil
}
