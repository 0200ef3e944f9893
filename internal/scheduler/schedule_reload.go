package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
)

// Importer runs one schedule import.
type Importer interface {
	Source() string
	Import(ctx context.Context, req pipeline.Request) (pipeline.Summary, error)
}

// LastRun describes the most recent periodic or triggered import.
type LastRun struct {
	At      time.Time
	Summary pipeline.Summary
	Err     error
}

// ScheduleReloader re-imports the schedule on a fixed interval and on demand.
type ScheduleReloader struct {
	importer      Importer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	done          chan struct{}

	mu   sync.RWMutex
	last LastRun
}

// NewScheduleReloader creates a reloader. manualTrigger may be nil.
func NewScheduleReloader(
	importer Importer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ScheduleReloader {
	return &ScheduleReloader{
		importer:      importer,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start imports once, then keeps importing in the background.
// A failed first import is logged; the next tick retries.
func (sr *ScheduleReloader) Start(ctx context.Context) {
	sr.Reload(ctx, "startup")

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer close(sr.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr.Reload(ctx, "interval")
			case <-sr.manualTrigger:
				sr.logger.Info("manual schedule import triggered")
				sr.Reload(ctx, "manual")
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the background loop and waits for a running import to finish.
func (sr *ScheduleReloader) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
	<-sr.done
}

// Reload runs one import and remembers its outcome.
func (sr *ScheduleReloader) Reload(ctx context.Context, reason string) LastRun {
	sr.logger.Info("importing schedule",
		logger.String("source", sr.importer.Source()),
		logger.String("reason", reason))

	sum, err := sr.importer.Import(ctx, pipeline.Request{})
	run := LastRun{At: time.Now(), Summary: sum, Err: err}

	sr.mu.Lock()
	sr.last = run
	sr.mu.Unlock()
	return run
}

// Last returns the outcome of the most recent import; At is zero before the first one.
func (sr *ScheduleReloader) Last() LastRun {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.last
}
