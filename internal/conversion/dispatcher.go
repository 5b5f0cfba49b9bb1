package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"webar/internal/logging"
	"webar/internal/registry"
)

// Runner executes one conversion.
type Runner interface {
	Convert(ctx context.Context, assetID int64) (Result, error)
}

// ConvertingLister lists rows awaiting a terminal write.
type ConvertingLister interface {
	ListConverting(ctx context.Context) ([]*registry.Asset, error)
}

// Dispatcher schedules conversions on a fixed pool of workers.
type Dispatcher struct {
	runner  Runner
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	backlog []int64
	pending map[int64]struct{} // queued or running
	running int
	started bool
	stopped bool
	cancel  context.CancelFunc
	signal  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher with the given worker count (minimum 1).
func NewDispatcher(runner Runner, workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		runner:  runner,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "dispatcher"),
		pending: make(map[int64]struct{}),
		signal:  make(chan struct{}, 1),
	}
}

// Start launches the workers. Submissions made before Start are kept and run
// once workers are available.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return errors.New("dispatcher stopped")
	}
	if d.started {
		return errors.New("dispatcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = true
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.work(runCtx, i)
	}
	d.notify()
	return nil
}

// Submit queues assetID without blocking. It returns false when the id is
// already queued or running, or the dispatcher has been stopped.
func (d *Dispatcher) Submit(assetID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if _, ok := d.pending[assetID]; ok {
		return false
	}
	d.pending[assetID] = struct{}{}
	d.backlog = append(d.backlog, assetID)
	d.notify()
	return true
}

// Resume submits every asset still converting, typically left behind by a
// crash between creation and the terminal write. It returns how many were queued.
func (d *Dispatcher) Resume(ctx context.Context, lister ConvertingLister) (int, error) {
	assets, err := lister.ListConverting(ctx)
	if err != nil {
		return 0, fmt.Errorf("list converting assets: %w", err)
	}
	queued := 0
	for _, asset := range assets {
		if d.Submit(asset.ID) {
			queued++
		}
	}
	if queued > 0 {
		d.logger.Info("resumed pending conversions",
			logging.Int("count", queued),
			logging.String(logging.FieldEventType, "conversion_resume"),
		)
	}
	return queued, nil
}

// Stop cancels in-flight conversions and waits for workers to exit. Queued
// ids are dropped; their rows stay converting for the next Resume.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Stats reports the number of queued and running conversions.
func (d *Dispatcher) Stats() (queued, running int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog), d.running
}

// WaitIdle blocks until nothing is queued or running, or ctx ends.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if queued, running := d.Stats(); queued == 0 && running == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// notify wakes one idle worker. Callers hold d.mu.
func (d *Dispatcher) notify() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) next() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.backlog) == 0 {
		return 0, false
	}
	id := d.backlog[0]
	d.backlog = d.backlog[1:]
	d.running++
	if len(d.backlog) > 0 {
		d.notify()
	}
	return id, true
}

func (d *Dispatcher) done(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
	d.running--
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	defer d.wg.Done()
	for {
		id, ok := d.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.signal:
				continue
			}
		}
		d.run(ctx, worker, id)
		if ctx.Err() != nil {
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, worker int, id int64) {
	defer d.done(id)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("conversion panicked",
				logging.AssetID(id),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "conversion_panic"),
				logging.String(logging.FieldErrorHint, "asset stays converting until the next restart"),
			)
		}
	}()

	_, err := d.runner.Convert(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.Is(err, registry.ErrNotConverting), errors.Is(err, registry.ErrNotFound):
		d.logger.Debug("conversion not applied",
			logging.AssetID(id),
			logging.Int("worker", worker),
			logging.Error(err),
		)
	default:
		logging.ErrorWithContext(d.logger, "conversion error", "conversion_error",
			logging.AssetID(id),
			logging.Int("worker", worker),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check registry database access; the asset is retried on restart"),
		)
	}
}
