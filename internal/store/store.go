// Package store declares the persistence port shared by the storage drivers.
package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// Store is everything the import pipeline, the notifier and the admin surface
// need from persistence. Consumers depend on narrower interfaces; this one is
// what the drivers (memory, sqlite) implement and what the app wires.
type Store interface {
	// Atomic runs fn so that either all its writes persist or none do.
	// Store calls made with the ctx handed to fn join the same unit of work.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error

	FindConferenceBySource(ctx context.Context, source string) (domain.Conference, bool, error)
	GetConference(ctx context.Context, id string) (domain.Conference, bool, error)
	ListConferences(ctx context.Context) ([]domain.Conference, error)
	SaveConference(ctx context.Context, c domain.Conference) error

	ListTracks(ctx context.Context, conferenceID string) ([]domain.Track, error)
	SaveTrack(ctx context.Context, t domain.Track) error
	ListRooms(ctx context.Context, conferenceID string) ([]domain.Room, error)
	SaveRoom(ctx context.Context, r domain.Room) error

	ListSessions(ctx context.Context, conferenceID string) ([]domain.Session, error)
	SaveSession(ctx context.Context, s domain.Session) error
	GetSessionView(ctx context.Context, id string) (domain.SessionView, bool, error)
	FindSessionByUniqueID(ctx context.Context, conferenceID, uniqueID string) (domain.Session, bool, error)
	DeleteSessionsByUniqueID(ctx context.Context, conferenceID string, uniqueIDs []string) (int, error)
	SessionsStartingBetween(ctx context.Context, conferenceID string, from, to time.Time) ([]domain.SessionView, error)
	MarkImminentNotified(ctx context.Context, sessionID string) error

	ReplaceLecturers(ctx context.Context, conferenceID string, lecturers []domain.Lecturer) error
	ListLecturers(ctx context.Context, conferenceID string) ([]domain.Lecturer, error)

	SaveUser(ctx context.Context, u domain.User) error
	FindUserByOrderCode(ctx context.Context, conferenceID, orderCode string) (domain.User, bool, error)
	ToggleBookmark(ctx context.Context, userID, sessionID string) (bool, error)
	ListBookmarkersWithToken(ctx context.Context, sessionID string) ([]domain.User, error)

	Close() error
}
