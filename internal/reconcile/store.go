package reconcile

import (
	"context"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// Store is the part of the persistence port the reconciler writes through.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error

	FindConferenceBySource(ctx context.Context, source string) (domain.Conference, bool, error)
	SaveConference(ctx context.Context, c domain.Conference) error

	ListTracks(ctx context.Context, conferenceID string) ([]domain.Track, error)
	SaveTrack(ctx context.Context, t domain.Track) error
	ListRooms(ctx context.Context, conferenceID string) ([]domain.Room, error)
	SaveRoom(ctx context.Context, r domain.Room) error

	ListSessions(ctx context.Context, conferenceID string) ([]domain.Session, error)
	SaveSession(ctx context.Context, s domain.Session) error

	ReplaceLecturers(ctx context.Context, conferenceID string, lecturers []domain.Lecturer) error
}
