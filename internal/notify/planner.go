// Package notify turns a change set into push notification payloads.
package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
)

const (
	SubjectStartChanged = "Event time has been changed"
	SubjectCancelled    = "Event has been cancelled"
	SubjectGrouped      = "Your bookmarks have changed"

	groupedMessage = "Some of your bookmarked sessions have changed. Open your bookmarks to see the new schedule."

	clockLayout = "15:04"
	dayLayout   = "02 Jan 15:04"
)

// Store resolves the sessions and bookmarkers a change set refers to.
type Store interface {
	GetSessionView(ctx context.Context, id string) (domain.SessionView, bool, error)
	ListBookmarkersWithToken(ctx context.Context, sessionID string) ([]domain.User, error)
}

// Plan is the planner output. Payload IDs are assigned by the queue.
type Plan struct {
	Payloads []domain.NotificationPayload
	Users    int
	Sessions int
	Grouped  bool
}

// Planner builds payloads. It only reads from the store.
type Planner struct {
	store    Store
	log      logger.Logger
	location *time.Location
}

// NewPlanner renders times in location (UTC when nil).
func NewPlanner(store Store, log logger.Logger, location *time.Location) *Planner {
	if location == nil {
		location = time.UTC
	}
	return &Planner{store: store, log: log, location: location}
}

type affected struct {
	view   domain.SessionView
	change domain.ChangeRecord
}

// Plan resolves bookmarkers for every changed session.
//
// Ungrouped: one payload per (user, session). Grouped: one payload per user,
// in order of first appearance. Sessions are walked by start then ID and
// bookmarkers by user ID, so the output is deterministic.
func (p *Planner) Plan(ctx context.Context, changes domain.ChangeSet, groupByUser bool) (Plan, error) {
	plan := Plan{Grouped: groupByUser}
	if len(changes) == 0 {
		return plan, nil
	}

	sessions, err := p.load(ctx, changes)
	if err != nil {
		return Plan{}, err
	}

	var (
		users     = map[string]bool{}
		userOrder []domain.User
	)
	for _, a := range sessions {
		bookmarkers, err := p.store.ListBookmarkersWithToken(ctx, a.view.ID)
		if err != nil {
			return Plan{}, fmt.Errorf("list bookmarkers of %s: %w", a.view.ID, err)
		}
		if len(bookmarkers) > 0 {
			plan.Sessions++
		}

		for _, u := range bookmarkers {
			if !u.CanBeNotified() {
				continue
			}
			if !users[u.ID] {
				users[u.ID] = true
				userOrder = append(userOrder, u)
			}
			if groupByUser {
				continue
			}
			plan.Payloads = append(plan.Payloads, p.sessionPayload(u, a))
		}
	}

	if groupByUser {
		for _, u := range userOrder {
			plan.Payloads = append(plan.Payloads, domain.NotificationPayload{
				UserID:        u.ID,
				DeliveryToken: u.DeliveryToken,
				Subject:       SubjectGrouped,
				Message:       groupedMessage,
				Data:          &domain.NotificationData{Command: domain.CommandOpenBookmarks},
			})
		}
	}
	plan.Users = len(userOrder)
	return plan, nil
}

func (p *Planner) load(ctx context.Context, changes domain.ChangeSet) ([]affected, error) {
	out := make([]affected, 0, len(changes))
	for _, id := range changes.SessionIDs() {
		v, ok, err := p.store.GetSessionView(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if !ok {
			p.log.Warn("changed session vanished before planning", logger.String("session_id", id))
			continue
		}
		out = append(out, affected{view: v, change: changes[id]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].change.OldStart, out[j].change.OldStart
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return out[i].view.ID < out[j].view.ID
	})
	return out, nil
}

func (p *Planner) sessionPayload(u domain.User, a affected) domain.NotificationPayload {
	subject := SubjectStartChanged
	if a.change.Removed() {
		subject = SubjectCancelled
	}
	return domain.NotificationPayload{
		UserID:        u.ID,
		DeliveryToken: u.DeliveryToken,
		Subject:       subject,
		Message:       p.describe(a),
		Data: &domain.NotificationData{
			Command:   domain.CommandSessionStartChanged,
			SessionID: a.view.ID,
		},
	}
}

func (p *Planner) describe(a affected) string {
	title, room := a.view.Title, a.view.RoomName
	if a.change.Removed() {
		return fmt.Sprintf("The event %q in room %s has been cancelled", title, room)
	}

	from := a.change.OldStart.In(p.location)
	to := a.change.NewStart.In(p.location)
	layout := clockLayout
	if !sameDay(from, to) {
		layout = dayLayout
	}
	return fmt.Sprintf("The event %q has been rescheduled from %s to %s in room %s",
		title, from.Format(layout), to.Format(layout), room)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
