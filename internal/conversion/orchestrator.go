package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webar/internal/converter"
	"webar/internal/logging"
	"webar/internal/registry"
	"webar/internal/services"
)

// Registry is the subset of registry.Store the orchestrator needs.
type Registry interface {
	GetByID(ctx context.Context, id int64) (*registry.Asset, error)
	Complete(ctx context.Context, id int64, c registry.Completion) (*registry.Asset, error)
}

// BlobStore is the subset of blobstore.Store the orchestrator needs.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Branch names the terminal path a conversion took.
type Branch string

const (
	BranchDerived  Branch = "derived"
	BranchFallback Branch = "fallback"
	BranchFatal    Branch = "fatal"
)

// Result describes a finished conversion.
type Result struct {
	Branch Branch
	Asset  *registry.Asset
}

// Orchestrator converts one asset at a time from converting to a terminal state.
type Orchestrator struct {
	registry  Registry
	blobs     BlobStore
	converter converter.Converter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators. timeout bounds each
// converter invocation.
func NewOrchestrator(reg Registry, blobs BlobStore, conv converter.Converter, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if conv == nil {
		conv = converter.Disabled{}
	}
	return &Orchestrator{
		registry:  reg,
		blobs:     blobs,
		converter: conv,
		timeout:   timeout,
		logger:    logging.NewComponentLogger(logger, "conversion"),
	}
}

// Convert runs the state machine for assetID. It returns
// registry.ErrNotConverting when the asset already reached a terminal state,
// and the context error without writing anything when ctx is canceled.
func (o *Orchestrator) Convert(ctx context.Context, assetID int64) (Result, error) {
	ctx = services.WithAssetID(ctx, assetID)
	logger := logging.WithContext(ctx, o.logger)

	asset, err := o.registry.GetByID(ctx, assetID)
	if err != nil {
		return Result{}, fmt.Errorf("load asset %d: %w", assetID, err)
	}
	if asset == nil {
		return Result{}, fmt.Errorf("%w: id %d", registry.ErrNotFound, assetID)
	}
	if asset.Status != registry.StatusConverting {
		logger.Debug("conversion skipped; asset already terminal",
			logging.String("status", string(asset.Status)),
			logging.String(logging.FieldEventType, "conversion_skipped"),
		)
		return Result{Asset: asset}, fmt.Errorf("%w: id %d is %s", registry.ErrNotConverting, assetID, asset.Status)
	}
	logger = logger.With(logging.Slug(asset.Slug))

	primary, err := o.blobs.Get(ctx, asset.PrimaryRef)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logging.ErrorWithContext(logger, "primary asset unreadable; marking failed", "conversion_fatal",
			logging.String("primary_ref", asset.PrimaryRef),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the blob store directory for missing or corrupt files"),
			logging.Alert("primary_unreadable"),
		)
		return o.finish(ctx, logger, assetID, BranchFatal, registry.Failed("primary unreadable: "+err.Error()), "")
	}

	started := time.Now()
	outcome := o.converter.Convert(ctx, primary, o.timeout)
	elapsed := time.Since(started)
	if ctx.Err() != nil {
		logger.Info("conversion interrupted; asset stays converting",
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "conversion_interrupted"),
		)
		return Result{}, ctx.Err()
	}

	switch outcome.Kind {
	case converter.KindSuccess:
	case converter.KindToolUnavailable:
		logging.WarnWithContext(logger, "converter unavailable; asset ready without derived variant", "conversion_fallback",
			logging.String("outcome", outcome.Kind.String()),
			logging.String("diagnostics", outcome.Diagnostics),
			logging.String(logging.FieldErrorHint, "install blender or set converter.command"),
			logging.String(logging.FieldImpact, "usdz variant not available for this asset"),
		)
		return o.finish(ctx, logger, assetID, BranchFallback, registry.ReadyWithoutDerived(outcome.Diagnostics), "")
	default:
		logging.WarnWithContext(logger, "conversion failed; asset ready without derived variant", "conversion_fallback",
			logging.String("outcome", outcome.Kind.String()),
			logging.Duration("elapsed", elapsed),
			logging.String("diagnostics", outcome.Diagnostics),
			logging.String(logging.FieldErrorHint, "inspect diagnostics; re-upload to retry"),
			logging.String(logging.FieldImpact, "usdz variant not available for this asset"),
		)
		return o.finish(ctx, logger, assetID, BranchFallback, registry.ReadyWithoutDerived(outcome.Diagnostics), "")
	}

	derivedRef, err := o.blobs.Put(ctx, outcome.Data)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logging.WarnWithContext(logger, "storing derived variant failed; asset ready without it", "conversion_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the data directory"),
			logging.String(logging.FieldImpact, "usdz variant not available for this asset"),
		)
		return o.finish(ctx, logger, assetID, BranchFallback, registry.ReadyWithoutDerived("store derived: "+err.Error()), "")
	}

	return o.finish(ctx, logger, assetID, BranchDerived, registry.Ready(derivedRef), derivedRef)
}

// finish performs the single terminal write. A derived blob written for a
// write that loses (asset deleted or already terminal) is released.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, assetID int64, branch Branch, completion registry.Completion, derivedRef string) (Result, error) {
	asset, err := o.registry.Complete(ctx, assetID, completion)
	if err != nil {
		if derivedRef != "" {
			if delErr := o.blobs.Delete(context.WithoutCancel(ctx), derivedRef); delErr != nil {
				logger.Warn("release orphaned derived blob failed",
					logging.String("derived_ref", derivedRef),
					logging.Error(delErr),
					logging.String(logging.FieldEventType, "derived_release_failed"),
					logging.String(logging.FieldErrorHint, "remove the blob manually"),
					logging.String(logging.FieldImpact, "orphaned blob occupies disk space"),
				)
			}
		}
		if errors.Is(err, registry.ErrNotConverting) || errors.Is(err, registry.ErrNotFound) {
			logger.Info("terminal write skipped",
				logging.String("branch", string(branch)),
				logging.String("reason", err.Error()),
				logging.String(logging.FieldEventType, "conversion_superseded"),
			)
			return Result{Branch: branch, Asset: asset}, err
		}
		return Result{Branch: branch}, fmt.Errorf("complete asset %d: %w", assetID, err)
	}

	logger.Info("conversion finished",
		logging.String("branch", string(branch)),
		logging.String("status", string(asset.Status)),
		logging.Bool("derived_ready", asset.DerivedReady),
		logging.String(logging.FieldEventType, "conversion_complete"),
	)
	return Result{Branch: branch, Asset: asset}, nil
}
