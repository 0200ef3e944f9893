// Package pipeline runs one schedule import end to end:
// load, parse, reconcile, plan, delete removed sessions, then enqueue.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/notify"
	"github.com/MrSnakeDoc/confsync/internal/reconcile"
	"github.com/MrSnakeDoc/confsync/internal/sources/schedule"
	redisstore "github.com/MrSnakeDoc/confsync/internal/store/redis"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// Loader fetches the raw schedule document.
type Loader interface {
	Source() string
	Load(ctx context.Context) ([]byte, error)
}

// Store deletes the sessions a pass reported as removed.
type Store interface {
	DeleteSessionsByUniqueID(ctx context.Context, conferenceID string, uniqueIDs []string) (int, error)
}

// StatusRecorder keeps the outcome of the last import. Optional.
type StatusRecorder interface {
	Save(ctx context.Context, st redisstore.ImportStatus) error
}

// Guard serializes imports of a source across processes. Optional.
type Guard interface {
	TryLock(ctx context.Context, source string) (release func(context.Context) error, ok bool, err error)
}

// Request tunes one import.
type Request struct {
	Force bool

	// GroupByUser overrides the configured grouping mode when set.
	GroupByUser *bool
}

// Summary is what an import reports back.
type Summary struct {
	Source            string          `json:"source"`
	ConferenceID      string          `json:"conference_id"`
	Created           bool            `json:"created"`
	ChecksumMatches   bool            `json:"checksum_matches"`
	Changes           int             `json:"changes"`
	Removed           int             `json:"removed"`
	Deleted           int             `json:"deleted"`
	MissingIdentity   int             `json:"missing_identity"`
	DuplicateIdentity int             `json:"duplicate_identity"`
	Sessions          reconcile.Stats `json:"sessions"`
	Notifications     notify.Summary  `json:"notifications"`
	Duration          time.Duration   `json:"duration"`
}

// Options are the configured defaults of an Importer.
type Options struct {
	GroupByUser        bool
	ChecksumBeforeDiff bool
}

type Importer struct {
	loader     Loader
	parser     *schedule.Parser
	reconciler *reconcile.Reconciler
	notifier   *notify.Service
	store      Store
	status     StatusRecorder
	guard      Guard
	log        logger.Logger
	opts       Options
	locks      *utils.KeyedMutex
}

func NewImporter(
	loader Loader,
	parser *schedule.Parser,
	reconciler *reconcile.Reconciler,
	notifier *notify.Service,
	store Store,
	log logger.Logger,
	opts Options,
) *Importer {
	return &Importer{
		loader:     loader,
		parser:     parser,
		reconciler: reconciler,
		notifier:   notifier,
		store:      store,
		log:        log,
		opts:       opts,
		locks:      utils.NewKeyedMutex(),
	}
}

// WithStatus records every import outcome through rec.
func (i *Importer) WithStatus(rec StatusRecorder) *Importer {
	i.status = rec
	return i
}

// WithGuard makes every import also hold g for its source.
func (i *Importer) WithGuard(g Guard) *Importer {
	i.guard = g
	return i
}

func (i *Importer) Source() string { return i.loader.Source() }

// Import runs one pass. Imports of the same source are serialized; the
// enqueue happens after the lock is released.
func (i *Importer) Import(ctx context.Context, req Request) (Summary, error) {
	start := time.Now()
	source := i.loader.Source()
	sum := Summary{Source: source}

	sum, err := i.run(ctx, req, sum)
	sum.Duration = time.Since(start)
	i.record(ctx, sum, err)
	if err != nil {
		i.log.Error("schedule import failed", logger.String("source", source), logger.Error(err))
		return sum, err
	}

	i.log.Info("schedule import done",
		logger.String("source", source),
		logger.String("conference", sum.ConferenceID),
		logger.Bool("checksum_matches", sum.ChecksumMatches),
		logger.Int("changes", sum.Changes),
		logger.Int("deleted", sum.Deleted),
		logger.Int("enqueued", sum.Notifications.Enqueued),
		logger.Duration("took", sum.Duration),
	)
	return sum, nil
}

func (i *Importer) run(ctx context.Context, req Request, sum Summary) (Summary, error) {
	raw, err := i.loader.Load(ctx)
	if err != nil {
		return sum, err
	}

	tree, report, err := i.parser.Parse(raw)
	if err != nil {
		return sum, fmt.Errorf("parse schedule: %w", err)
	}
	sum.MissingIdentity = report.Count(schedule.IssueMissingIdentity)
	sum.DuplicateIdentity = report.Count(schedule.IssueDuplicateIdentity)
	for _, issue := range report.Issues {
		i.log.Warn("schedule event skipped",
			logger.String("kind", string(issue.Kind)),
			logger.String("day", issue.Day),
			logger.String("room", issue.Room),
			logger.String("title", issue.Title),
			logger.String("unique_id", issue.UniqueID),
		)
	}

	groupByUser := i.opts.GroupByUser
	if req.GroupByUser != nil {
		groupByUser = *req.GroupByUser
	}

	plan, sum, err := i.reconcileLocked(ctx, tree, req, groupByUser, sum)
	if err != nil {
		return sum, err
	}

	sum.Notifications, err = i.notifier.Dispatch(ctx, plan)
	if err != nil {
		return sum, err
	}
	return sum, nil
}

// reconcileLocked holds the source lock around reconcile, plan and delete.
func (i *Importer) reconcileLocked(ctx context.Context, tree schedule.Tree, req Request, groupByUser bool, sum Summary) (notify.Plan, Summary, error) {
	unlock := i.locks.Lock(sum.Source)
	defer unlock()

	if i.guard != nil {
		release, ok, err := i.guard.TryLock(ctx, sum.Source)
		if err != nil {
			return notify.Plan{}, sum, err
		}
		if !ok {
			return notify.Plan{}, sum, fmt.Errorf("%w: %s", domain.ErrImportInProgress, sum.Source)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				i.log.Warn("failed to release import lock", logger.String("source", sum.Source), logger.Error(err))
			}
		}()
	}

	res, err := i.reconciler.Reconcile(ctx, tree, sum.Source, reconcile.Options{
		Force:              req.Force,
		ChecksumBeforeDiff: i.opts.ChecksumBeforeDiff,
	})
	if err != nil {
		return notify.Plan{}, sum, fmt.Errorf("reconcile: %w", err)
	}
	sum.ConferenceID = res.Conference.ID
	sum.Created = res.Created
	sum.ChecksumMatches = res.ChecksumMatches
	sum.Changes = len(res.Changes)
	sum.Removed = res.Changes.Removals()
	sum.Sessions = res.Stats

	plan, err := i.notifier.Plan(ctx, res.Changes, groupByUser)
	if err != nil {
		return notify.Plan{}, sum, fmt.Errorf("plan notifications: %w", err)
	}

	if len(res.RemovedKeys) > 0 {
		n, err := i.store.DeleteSessionsByUniqueID(ctx, res.Conference.ID, res.RemovedKeys)
		if err != nil {
			return notify.Plan{}, sum, fmt.Errorf("delete removed sessions: %w", err)
		}
		sum.Deleted = n
	}
	return plan, sum, nil
}

func (i *Importer) record(ctx context.Context, sum Summary, err error) {
	if i.status == nil {
		return
	}
	st := redisstore.ImportStatus{
		Source:          sum.Source,
		ConferenceID:    sum.ConferenceID,
		FinishedAt:      time.Now().UTC(),
		ChecksumMatches: sum.ChecksumMatches,
		Changes:         sum.Changes,
		Removed:         sum.Removed,
		Enqueued:        sum.Notifications.Enqueued,
	}
	if err != nil {
		st.Error = err.Error()
	}
	if serr := i.status.Save(ctx, st); serr != nil {
		i.log.Warn("failed to record import status", logger.Error(serr))
	}
}
