package domain

import "time"

// Session represents one scheduled talk of a conference.
//
// A Session is matched across imports by UniqueID only. Every other
// field is owned by the schedule feed and overwritten on each import.
type Session struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the persistent identifier (UUID) assigned on first sighting.
	ID string

	// ConferenceID is the owning conference.
	ConferenceID string

	// UniqueID is the stable external key from the feed.
	// Unique within a conference.
	UniqueID string

	// ─────────────────────────────
	// Functional description
	// (overwritten by every import)
	// ─────────────────────────────

	Title       string
	Slug        string
	Abstract    string
	Description string
	URL         string

	// Start is the timezone-aware start time.
	// Zero when the feed carries no usable start.
	Start time.Time

	// Duration in seconds.
	Duration int

	RoomID  string
	TrackID string

	// ─────────────────────────────
	// Capabilities
	// ─────────────────────────────

	Bookmarkable bool
	Rateable     bool

	// ─────────────────────────────
	// Notification state
	// ─────────────────────────────

	// ImminentNotified is set once the "starts soon" alert went out.
	// It is never cleared; only a new session row starts unset.
	ImminentNotified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasStart reports whether the session carries a start time.
func (s Session) HasStart() bool { return !s.Start.IsZero() }

// End returns the end time, or the zero time when start or duration is unknown.
func (s Session) End() time.Time {
	if !s.HasStart() || s.Duration <= 0 {
		return time.Time{}
	}
	return s.Start.Add(time.Duration(s.Duration) * time.Second)
}

// SessionView is a session joined with the names needed to render messages.
type SessionView struct {
	Session
	RoomName  string
	TrackName string
}
