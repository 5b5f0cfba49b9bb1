package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"webar/internal/api"
	"webar/internal/backend"
	"webar/internal/blobstore"
	"webar/internal/catalog"
	"webar/internal/config"
	"webar/internal/conversion"
	"webar/internal/converter"
	"webar/internal/daemonctl"
	"webar/internal/logging"
	"webar/internal/registry"
	"webar/internal/services"
)

// assetSource is where asset commands read and write: the data directory
// directly when no daemon runs, or the daemon's API when one does.
type assetSource interface {
	Add(ctx context.Context, req catalog.CreateRequest, wait bool) (api.Asset, error)
	List(ctx context.Context, opts registry.ListOptions) (api.AssetList, error)
	Get(ctx context.Context, idOrSlug string) (api.Asset, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

var errNoWaitWithoutDaemon = errors.New("--no-wait needs a running daemon to finish the conversion; start it with `webar serve` or drop --no-wait")

// openAssets takes the data directory lock for the lifetime of the command,
// or talks to the daemon that holds it.
func (c *commandContext) openAssets() (assetSource, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lease, err := daemonctl.TryAcquire(cfg)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		client, err := daemonctl.Dial(cfg)
		if err != nil {
			if errors.Is(err, daemonctl.ErrNotRunning) {
				return nil, fmt.Errorf("%s is locked by another webar process that serves no API; retry when it exits", cfg.Paths.DataDir)
			}
			return nil, err
		}
		return &remoteAssets{client: client, settleTimeout: cfg.ConverterTimeout() + time.Minute}, nil
	}
	local, err := openLocalAssets(cfg, lease)
	if err != nil {
		_ = lease.Release()
		return nil, err
	}
	return local, nil
}

func (c *commandContext) withAssets(fn func(assetSource) error) error {
	assets, err := c.openAssets()
	if err != nil {
		return err
	}
	defer assets.Close()
	return fn(assets)
}

// localAssets is a catalog bound to the data directory, with an in-process
// orchestrator. It holds the directory lock so no daemon converts alongside it.
type localAssets struct {
	cfg          *config.Config
	lease        *daemonctl.Lease
	registry     *registry.Store
	catalog      *catalog.Service
	orchestrator *conversion.Orchestrator
	backend      backend.Backend
	scheduled    []int64
}

func openLocalAssets(cfg *config.Config, lease *daemonctl.Lease) (*localAssets, error) {
	// Info-level events belong to the daemon log; the CLI reports outcomes itself.
	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := registry.Open(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.OpenConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	be, err := backend.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure backend: %w", err)
	}
	conv, err := converter.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure converter: %w", err)
	}

	assets := &localAssets{cfg: cfg, lease: lease, registry: store, backend: be}
	assets.catalog = catalog.New(store, blobs, be, assets, cfg.Server.BaseURL, logger)
	assets.orchestrator = conversion.NewOrchestrator(store, blobs, conv, cfg.ConverterTimeout(), logger)
	return assets, nil
}

// Submit records ids instead of handing them to a worker pool; Add runs them
// before returning.
func (l *localAssets) Submit(id int64) bool {
	l.scheduled = append(l.scheduled, id)
	return true
}

func (l *localAssets) Add(ctx context.Context, req catalog.CreateRequest, wait bool) (api.Asset, error) {
	if !wait {
		return api.Asset{}, errNoWaitWithoutDaemon
	}
	asset, err := l.catalog.Create(ctx, req)
	if err != nil {
		return api.Asset{}, err
	}
	pending := l.scheduled
	l.scheduled = nil
	for _, id := range pending {
		if _, err := l.orchestrator.Convert(ctx, id); err != nil && !errors.Is(err, registry.ErrNotConverting) {
			return api.Asset{}, fmt.Errorf("convert asset %d: %w", id, err)
		}
	}
	if asset, err = l.catalog.GetByID(ctx, asset.ID); err != nil {
		return api.Asset{}, err
	}
	return l.view(asset), nil
}

func (l *localAssets) List(ctx context.Context, opts registry.ListOptions) (api.AssetList, error) {
	opts = opts.Normalized()
	items, total, err := l.catalog.List(ctx, opts)
	if err != nil {
		return api.AssetList{}, err
	}
	return api.AssetList{
		Items:      api.FromAssets(items, l.cfg.Server.BaseURL, l.backend.Name()),
		Pagination: api.NewPagination(opts.Page, opts.Limit, total),
	}, nil
}

func (l *localAssets) Get(ctx context.Context, idOrSlug string) (api.Asset, error) {
	asset, err := l.catalog.Get(ctx, idOrSlug)
	if err != nil {
		return api.Asset{}, err
	}
	return l.view(asset), nil
}

func (l *localAssets) Delete(ctx context.Context, id int64) error {
	return l.catalog.Delete(ctx, id)
}

func (l *localAssets) Close() error {
	err := l.registry.Close()
	return errors.Join(err, l.lease.Release())
}

func (l *localAssets) view(asset *registry.Asset) api.Asset {
	return api.FromAsset(asset, l.cfg.Server.BaseURL, l.backend.Name())
}

// remoteAssets forwards asset commands to the running daemon, which owns all
// conversions for the data directory.
type remoteAssets struct {
	client        *daemonctl.Client
	settleTimeout time.Duration
}

func (r *remoteAssets) Add(ctx context.Context, req catalog.CreateRequest, wait bool) (api.Asset, error) {
	asset, err := r.client.Upload(ctx, req.Filename, req.Name, req.Data)
	if err != nil || !wait {
		return asset, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.settleTimeout)
	defer cancel()
	return r.client.WaitSettled(waitCtx, asset.ID, 250*time.Millisecond)
}

func (r *remoteAssets) List(ctx context.Context, opts registry.ListOptions) (api.AssetList, error) {
	return r.client.List(ctx, opts)
}

func (r *remoteAssets) Get(ctx context.Context, idOrSlug string) (api.Asset, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil && id > 0 {
		asset, err := r.client.Get(ctx, id)
		if !errors.Is(err, services.ErrNotFound) {
			return asset, err
		}
	}
	return r.client.GetBySlug(ctx, idOrSlug)
}

func (r *remoteAssets) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, id)
}

func (r *remoteAssets) Close() error {
	return r.client.Close()
}
