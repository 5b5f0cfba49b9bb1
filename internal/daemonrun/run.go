package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"webar/internal/backend"
	"webar/internal/blobstore"
	"webar/internal/config"
	"webar/internal/converter"
	"webar/internal/daemon"
	"webar/internal/fileutil"
	"webar/internal/logging"
	"webar/internal/preflight"
	"webar/internal/registry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
	// Ready, when set, receives the daemon once it is serving.
	Ready func(*daemon.Daemon)
}

// Run starts the webar daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		JSONFile:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logging.PruneOldFiles(logger, cfg.Paths.LogDir, "*.log", cfg.Logging.RetentionDays, logPath)
	runPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "webar.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open registry", logging.Error(err))
		return err
	}

	blobs, err := blobstore.OpenConfig(cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open blob store: %w", err)
	}
	be, err := backend.New(cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("configure backend: %w", err)
	}
	conv, err := converter.New(cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("configure converter: %w", err)
	}

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Registry:  store,
		Blobs:     blobs,
		Backend:   be,
		Converter: conv,
		Logger:    logger,
		Version:   opts.Version,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other daemon uses this data_dir"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("webar daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported problem and restart"),
			logging.String(logging.FieldImpact, "uploads or backend publishing may fail"),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if dep.Available {
			logger.Info("dependency available",
				logging.String("dependency", dep.Name),
				logging.String("path", dep.Path),
				logging.String(logging.FieldEventType, "dependency_snapshot"),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install it or set converter.command / BLENDER_BIN"),
			logging.String(logging.FieldImpact, "assets become ready without a USDZ variant"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return fileutil.WriteFileAtomic(path, []byte(value), 0o644)
}
