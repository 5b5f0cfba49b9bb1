package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"webar/internal/api"
	"webar/internal/backend"
	"webar/internal/blobstore"
	"webar/internal/catalog"
	"webar/internal/config"
	"webar/internal/conversion"
	"webar/internal/converter"
	"webar/internal/daemonctl"
	"webar/internal/logging"
	"webar/internal/preflight"
	"webar/internal/registry"
)

// Options carries the daemon's collaborators.
type Options struct {
	Config    *config.Config
	Registry  *registry.Store
	Blobs     *blobstore.Store
	Backend   backend.Backend
	Converter converter.Converter
	Logger    *slog.Logger
	Version   string
}

// Daemon owns the conversion pool and the HTTP API for one data directory.
type Daemon struct {
	cfg       *config.Config
	base      *slog.Logger
	logger    *slog.Logger
	registry  *registry.Store
	blobs     *blobstore.Store
	backend   backend.Backend
	converter converter.Converter
	version   string

	lockPath string
	lease    *daemonctl.Lease

	mu         sync.Mutex
	dispatcher *conversion.Dispatcher
	catalog    *catalog.Service
	server     *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIAddress   string
	RegistryPath string
	LockFilePath string
	Queued       int
	Converting   int
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Registry == nil || opts.Blobs == nil || opts.Logger == nil {
		return nil, errors.New("daemon requires config, registry, blob store, and logger")
	}
	be := opts.Backend
	if be == nil {
		be = backend.Local{}
	}
	conv := opts.Converter
	if conv == nil {
		conv = converter.Disabled{}
	}
	lockPath := opts.Config.LockPath()
	return &Daemon{
		cfg:       opts.Config,
		base:      opts.Logger,
		logger:    logging.NewComponentLogger(opts.Logger, "daemon"),
		registry:  opts.Registry,
		blobs:     opts.Blobs,
		backend:   be,
		converter: conv,
		version:   opts.Version,
		lockPath:  lockPath,
	}, nil
}

// Start acquires the instance lock, starts the conversion pool, resumes
// interrupted conversions, and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	lease, err := daemonctl.TryAcquire(d.cfg)
	if err != nil {
		return err
	}
	if lease == nil {
		return fmt.Errorf("another webar process is already using %s", d.cfg.Paths.DataDir)
	}

	runCtx, cancel := context.WithCancel(ctx)
	orchestrator := conversion.NewOrchestrator(d.registry, d.blobs, d.converter, d.cfg.ConverterTimeout(), d.base)
	dispatcher := conversion.NewDispatcher(orchestrator, d.cfg.Workers.Count, d.base)
	if err := dispatcher.Start(runCtx); err != nil {
		cancel()
		_ = lease.Release()
		return fmt.Errorf("start conversion pool: %w", err)
	}
	svc := catalog.New(d.registry, d.blobs, d.backend, dispatcher, d.cfg.Server.BaseURL, d.base)

	d.mu.Lock()
	d.dispatcher = dispatcher
	d.catalog = svc
	d.server = newAPIServer(d.cfg, svc, d.Health, d.backend.Name(), d.base)
	server := d.server
	d.mu.Unlock()

	if err := server.start(runCtx); err != nil {
		dispatcher.Stop()
		cancel()
		_ = lease.Release()
		return err
	}
	if err := daemonctl.PublishAddress(d.cfg, server.address()); err != nil {
		server.stop(d.cfg.ShutdownTimeout())
		dispatcher.Stop()
		cancel()
		_ = lease.Release()
		return fmt.Errorf("publish api address: %w", err)
	}

	resumed, err := dispatcher.Resume(runCtx, d.registry)
	if err != nil {
		logging.WarnWithContext(d.logger, "resume of interrupted conversions failed", "conversion_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check registry database access"),
			logging.String(logging.FieldImpact, "assets left converting by a previous run stay converting"),
		)
	}

	d.lease = lease
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("webar daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_address", server.address()),
		logging.Int("workers", d.cfg.Workers.Count),
		logging.Int("resumed", resumed),
		logging.String("backend", d.backend.Name()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts the API down, cancels in-flight conversions, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	server := d.server
	dispatcher := d.dispatcher
	d.mu.Unlock()

	server.stop(d.cfg.ShutdownTimeout())
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	dispatcher.Stop()
	if err := daemonctl.ClearAddress(d.cfg); err != nil {
		d.logger.Warn("failed to clear published api address", logging.Error(err))
	}
	if err := d.lease.Release(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.lease = nil
	d.running.Store(false)
	d.logger.Info("webar daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.registry != nil {
		return d.registry.Close()
	}
	return nil
}

// Catalog returns the asset façade bound to the running conversion pool, or
// nil before Start.
func (d *Daemon) Catalog() *catalog.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.catalog
}

// WaitIdle blocks until no conversion is queued or running.
func (d *Daemon) WaitIdle(ctx context.Context) error {
	d.mu.Lock()
	dispatcher := d.dispatcher
	d.mu.Unlock()
	if dispatcher == nil {
		return nil
	}
	return dispatcher.WaitIdle(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		RegistryPath: d.registry.Path(),
		LockFilePath: d.lockPath,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dispatcher != nil && status.Running {
		status.Queued, status.Converting = d.dispatcher.Stats()
	}
	if d.server != nil {
		status.APIAddress = d.server.address()
	}
	return status
}

// Health assembles the payload served by GET /api/health.
func (d *Daemon) Health(ctx context.Context) api.Health {
	health := api.Health{
		Status:       "ok",
		Version:      d.version,
		Backend:      d.backend.Name(),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
	}

	dbHealth, err := d.registry.CheckHealth(ctx)
	health.Database = api.FromDatabaseHealth(dbHealth)
	if err != nil || !dbHealth.DatabaseReadable {
		health.Status = "degraded"
		if err != nil && health.Database.Error == "" {
			health.Database.Error = err.Error()
		}
	}

	if stats, err := d.registry.Stats(ctx); err == nil {
		health.Assets = make(map[string]int, len(stats))
		for status, count := range stats {
			health.Assets[string(status)] = count
		}
	}
	if n, err := d.registry.CountDerivedReady(ctx); err == nil {
		health.DerivedReady = n
	}

	status := d.Status()
	if status.Running {
		health.Conversion = &api.ConversionStatus{
			Workers: d.cfg.Workers.Count,
			Queued:  status.Queued,
			Running: status.Converting,
		}
	}
	return health
}
