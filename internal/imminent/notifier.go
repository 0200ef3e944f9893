// Package imminent sends the one-time "starts shortly" alert for bookmarked sessions.
package imminent

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/notify"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

const (
	DefaultLookahead = 5 * time.Minute

	Subject = "The event will start shortly"
)

// Store is what a scan reads and flags.
type Store interface {
	SessionsStartingBetween(ctx context.Context, conferenceID string, from, to time.Time) ([]domain.SessionView, error)
	ListBookmarkersWithToken(ctx context.Context, sessionID string) ([]domain.User, error)
	MarkImminentNotified(ctx context.Context, sessionID string) error
}

// Result is returned by Run. In dry-run mode it describes what would have been sent.
type Result struct {
	NotifiedCount int      `json:"notified_count"`
	Sessions      int      `json:"sessions"`
	DryRun        bool     `json:"dry_run"`
	Log           []string `json:"log"`
}

type Notifier struct {
	store      Store
	dispatcher notify.Dispatcher
	log        logger.Logger
	lookahead  time.Duration
	location   *time.Location
	locks      *utils.KeyedMutex
}

// New creates a notifier. A non-positive lookahead uses DefaultLookahead.
func New(store Store, dispatcher notify.Dispatcher, log logger.Logger, lookahead time.Duration, location *time.Location) *Notifier {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if location == nil {
		location = time.UTC
	}
	return &Notifier{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		lookahead:  lookahead,
		location:   location,
		locks:      utils.NewKeyedMutex(),
	}
}

// Run alerts the bookmarkers of every pending session starting in
// [now, now+lookahead) and flags each processed session as notified.
// Runs for the same conference are serialized.
func (n *Notifier) Run(ctx context.Context, conferenceID string, now time.Time, dryRun bool) (Result, error) {
	unlock := n.locks.Lock(conferenceID)
	defer unlock()

	res := Result{DryRun: dryRun, Log: []string{}}

	sessions, err := n.store.SessionsStartingBetween(ctx, conferenceID, now, now.Add(n.lookahead))
	if err != nil {
		return res, fmt.Errorf("select imminent sessions: %w", err)
	}

	for _, s := range sessions {
		if s.ImminentNotified {
			continue
		}

		users, err := n.store.ListBookmarkersWithToken(ctx, s.ID)
		if err != nil {
			return res, fmt.Errorf("list bookmarkers of %s: %w", s.ID, err)
		}

		text := fmt.Sprintf("%s begins at %s at %s", s.Title, s.Start.In(n.location).Format("15:04"), s.RoomName)
		payloads := make([]domain.NotificationPayload, 0, len(users))
		for _, u := range users {
			if !u.CanBeNotified() {
				continue
			}
			payloads = append(payloads, domain.NotificationPayload{
				UserID:        u.ID,
				DeliveryToken: u.DeliveryToken,
				Subject:       Subject,
				Message:       text,
			})
			res.Log = append(res.Log, u.ID+": "+text)
		}
		res.NotifiedCount += len(payloads)
		res.Sessions++

		if dryRun {
			continue
		}

		if len(payloads) > 0 {
			if _, err := n.dispatcher.Enqueue(ctx, payloads); err != nil {
				return res, fmt.Errorf("enqueue imminent alerts for %s: %w", s.ID, err)
			}
		}
		if err := n.store.MarkImminentNotified(ctx, s.ID); err != nil {
			return res, fmt.Errorf("flag session %s: %w", s.ID, err)
		}
	}

	if res.Sessions > 0 {
		n.log.Info("imminent-start scan done",
			logger.String("conference", conferenceID),
			logger.Time("now", now),
			logger.Int("sessions", res.Sessions),
			logger.Int("notified", res.NotifiedCount),
			logger.Bool("dry_run", dryRun),
		)
	}
	return res, nil
}
