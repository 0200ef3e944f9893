package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/imminent"
	"github.com/MrSnakeDoc/confsync/internal/logger"
)

// ConferenceLister lists the conferences to scan.
type ConferenceLister interface {
	ListConferences(ctx context.Context) ([]domain.Conference, error)
}

// ImminentRunner runs one scan for one conference.
type ImminentRunner interface {
	Run(ctx context.Context, conferenceID string, now time.Time, dryRun bool) (imminent.Result, error)
}

// ImminentScanner triggers the imminent-start scan on a cron schedule.
type ImminentScanner struct {
	store  ConferenceLister
	runner ImminentRunner
	logger logger.Logger
	spec   string
	dryRun bool
	now    func() time.Time
	cron   *cron.Cron
}

func NewImminentScanner(
	store ConferenceLister,
	runner ImminentRunner,
	log logger.Logger,
	spec string,
	dryRun bool,
) *ImminentScanner {
	return &ImminentScanner{
		store:  store,
		runner: runner,
		logger: log,
		spec:   spec,
		dryRun: dryRun,
		now:    time.Now,
		cron:   cron.New(),
	}
}

// Start registers the scan and starts the cron loop.
func (is *ImminentScanner) Start(ctx context.Context) error {
	_, err := is.cron.AddFunc(is.spec, func() {
		if _, err := is.Scan(ctx); err != nil {
			is.logger.Error("imminent-start scan failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid imminent cron %q: %w", is.spec, err)
	}
	is.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running scan.
func (is *ImminentScanner) Stop() {
	<-is.cron.Stop().Done()
}

// Scan runs the notifier for every conference and returns the total alert count.
// One failing conference does not stop the others.
func (is *ImminentScanner) Scan(ctx context.Context) (int, error) {
	confs, err := is.store.ListConferences(ctx)
	if err != nil {
		return 0, fmt.Errorf("list conferences: %w", err)
	}

	now := is.now()
	total := 0
	var firstErr error
	for _, c := range confs {
		res, err := is.runner.Run(ctx, c.ID, now, is.dryRun)
		total += res.NotifiedCount
		if err != nil {
			is.logger.Error("imminent-start scan failed for conference",
				logger.String("conference", c.ID), logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}
