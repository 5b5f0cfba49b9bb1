package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"webar/internal/api"
	"webar/internal/blobstore"
	"webar/internal/config"
	"webar/internal/daemonctl"
	"webar/internal/preflight"
	"webar/internal/registry"
)

type statusReport struct {
	DaemonRunning bool                   `json:"daemonRunning" yaml:"daemonRunning"`
	DaemonPID     int                    `json:"daemonPid,omitempty" yaml:"daemonPid,omitempty"`
	DaemonAPI     string                 `json:"daemonApi,omitempty" yaml:"daemonApi,omitempty"`
	DataDir       string                 `json:"dataDir" yaml:"dataDir"`
	FreeBytes     uint64                 `json:"freeBytes" yaml:"freeBytes"`
	Backend       string                 `json:"backend" yaml:"backend"`
	Codec         string                 `json:"codec" yaml:"codec"`
	Assets        map[string]int         `json:"assets" yaml:"assets"`
	DerivedReady  int                    `json:"derivedReady" yaml:"derivedReady"`
	MissingBlobs  int                    `json:"missingBlobs" yaml:"missingBlobs"`
	Database      api.DatabaseHealth     `json:"database" yaml:"database"`
	Dependencies  []api.DependencyStatus `json:"dependencies" yaml:"dependencies"`
	Checks        []preflight.Result     `json:"checks" yaml:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, storage, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd, cfg)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd, ctx.outputFormat(), report); done || err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatusReport(report, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
}

func collectStatus(cmd *cobra.Command, cfg *config.Config) (statusReport, error) {
	report := statusReport{
		DataDir: cfg.Paths.DataDir,
		Backend: cfg.Backend.Kind,
		Codec:   cfg.Storage.Codec,
		Assets:  map[string]int{},
	}
	report.DaemonRunning, report.DaemonPID = daemonRunning(cfg)
	if report.DaemonRunning {
		report.DaemonAPI, _ = daemonctl.ReadAddress(cfg)
	}
	if free, err := preflight.FreeBytes(cfg.Paths.DataDir); err == nil {
		report.FreeBytes = free
	}

	store, err := registry.Open(cfg)
	if err != nil {
		return report, err
	}
	defer store.Close()

	health, healthErr := store.CheckHealth(cmd.Context())
	report.Database = api.FromDatabaseHealth(health)
	if healthErr != nil && report.Database.Error == "" {
		report.Database.Error = healthErr.Error()
	}
	if stats, err := store.Stats(cmd.Context()); err == nil {
		for status, count := range stats {
			report.Assets[string(status)] = count
		}
	}
	if n, err := store.CountDerivedReady(cmd.Context()); err == nil {
		report.DerivedReady = n
	}
	blobs, err := blobstore.OpenConfig(cfg)
	if err != nil {
		return report, fmt.Errorf("open blob store: %w", err)
	}
	if report.MissingBlobs, err = countMissingBlobs(cmd.Context(), store, blobs); err != nil {
		return report, err
	}
	report.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(cfg))
	report.Checks = preflight.RunAll(cmd.Context(), cfg)
	return report, nil
}

// countMissingBlobs reports registry references whose stored file is gone.
func countMissingBlobs(ctx context.Context, store *registry.Store, blobs *blobstore.Store) (int, error) {
	missing := 0
	opts := registry.ListOptions{Page: 1, Limit: 100}
	for {
		page, total, err := store.List(ctx, opts)
		if err != nil {
			return 0, err
		}
		for _, asset := range page {
			refs := []string{asset.PrimaryRef}
			if asset.DerivedRef != "" {
				refs = append(refs, asset.DerivedRef)
			}
			for _, ref := range refs {
				ok, err := blobs.Exists(ctx, ref)
				if err != nil {
					return 0, fmt.Errorf("check blob %s: %w", ref, err)
				}
				if !ok {
					missing++
				}
			}
		}
		if len(page) == 0 || opts.Page*opts.Limit >= total {
			return missing, nil
		}
		opts.Page++
	}
}

// daemonRunning reports whether a daemon holds the data directory. A CLI
// command holding the lock briefly reads as running too; the pid file tells
// them apart.
func daemonRunning(cfg *config.Config) (bool, int) {
	held, err := daemonctl.Held(cfg)
	if err != nil || !held {
		return false, 0
	}
	pid := 0
	if raw, err := os.ReadFile(filepath.Join(cfg.Paths.DataDir, "webar.pid")); err == nil {
		pid, _ = strconv.Atoi(strings.TrimSpace(string(raw)))
	}
	return true, pid
}

func renderStatusReport(report statusReport, colorize bool) string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if report.DaemonRunning {
		detail := "running"
		if report.DaemonPID > 0 {
			detail = fmt.Sprintf("running (pid %d)", report.DaemonPID)
		}
		if report.DaemonAPI != "" {
			detail += " at " + report.DaemonAPI
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running; start it with `webar serve`", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Storage", colorize)...)
	lines = append(lines, renderStatusLine("Data directory", statusInfo, report.DataDir, colorize))
	lines = append(lines, renderStatusLine("Free space", statusInfo, humanize.IBytes(report.FreeBytes), colorize))
	lines = append(lines, renderStatusLine("Blob codec", statusInfo, report.Codec, colorize))
	dbKind, dbDetail := statusOK, fmt.Sprintf("schema v%d, integrity ok", report.Database.SchemaVersion)
	switch {
	case report.Database.Error != "":
		dbKind, dbDetail = statusError, report.Database.Error
	case !report.Database.IntegrityCheck:
		dbKind, dbDetail = statusError, "integrity check failed"
	}
	lines = append(lines, renderStatusLine("Registry", dbKind, dbDetail, colorize))
	if report.MissingBlobs > 0 {
		lines = append(lines, renderStatusLine("Blob files", statusError, fmt.Sprintf("%d referenced files missing", report.MissingBlobs), colorize))
	} else {
		lines = append(lines, renderStatusLine("Blob files", statusOK, "all present", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Assets", colorize)...)
	for _, status := range registry.AllStatuses() {
		lines = append(lines, renderStatusLine(string(status), statusInfo, strconv.Itoa(report.Assets[string(status)]), colorize))
	}
	lines = append(lines, renderStatusLine("USDZ available", statusInfo, strconv.Itoa(report.DerivedReady), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, renderStatusLine("Backend", statusInfo, report.Backend, colorize))
	if len(report.Dependencies) == 0 {
		lines = append(lines, renderStatusLine("Converter", statusWarn, "disabled", colorize))
	}
	for _, dep := range report.Dependencies {
		if dep.Available {
			lines = append(lines, renderStatusLine(dep.Name, statusOK, dep.Command, colorize))
			continue
		}
		lines = append(lines, renderStatusLine(dep.Name, statusWarn, dep.Detail+"; assets stay GLB-only", colorize))
	}
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return strings.Join(lines, "\n") + "\n"
}
