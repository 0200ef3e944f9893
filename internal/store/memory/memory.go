package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

type bookmarkKey struct {
	userID    string
	sessionID string
}

type state struct {
	conferences map[string]domain.Conference // ID -> Conference
	tracks      map[string]domain.Track      // ID -> Track
	rooms       map[string]domain.Room       // ID -> Room
	sessions    map[string]domain.Session    // ID -> Session
	lecturers   map[string][]domain.Lecturer // ConferenceID -> Lecturers
	users       map[string]domain.User       // ID -> User
	bookmarks   map[bookmarkKey]domain.Bookmark
}

func newState() state {
	return state{
		conferences: make(map[string]domain.Conference),
		tracks:      make(map[string]domain.Track),
		rooms:       make(map[string]domain.Room),
		sessions:    make(map[string]domain.Session),
		lecturers:   make(map[string][]domain.Lecturer),
		users:       make(map[string]domain.User),
		bookmarks:   make(map[bookmarkKey]domain.Bookmark),
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.conferences {
		out.conferences[k] = v
	}
	for k, v := range s.tracks {
		out.tracks[k] = v
	}
	for k, v := range s.rooms {
		out.rooms[k] = v
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.lecturers {
		out.lecturers[k] = cloneLecturers(v)
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.bookmarks {
		out.bookmarks[k] = v
	}
	return out
}

// Store keeps the whole schedule in memory.
// It is used for tests and for single-process runs without a database file.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes Atomic sections
	data state
}

type txKey struct{}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: newState()}
}

// Atomic snapshots the state and restores it when fn fails.
// Nested calls join the outer section.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the data lock for a single write. Writes outside an
// Atomic section also wait on txMu so a rollback cannot discard them.
func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *Store) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────
// Conferences
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindConferenceBySource(_ context.Context, source string) (domain.Conference, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data.conferences {
		if c.SourceURI == source {
			return c, true, nil
		}
	}
	return domain.Conference{}, false, nil
}

func (s *Store) GetConference(_ context.Context, id string) (domain.Conference, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.conferences[id]
	return c, ok, nil
}

func (s *Store) ListConferences(_ context.Context) ([]domain.Conference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Conference, 0, len(s.data.conferences))
	for _, c := range s.data.conferences {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveConference(ctx context.Context, c domain.Conference) error {
	defer s.lockWrite(ctx)()

	s.data.conferences[c.ID] = c
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Tracks & rooms
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListTracks(_ context.Context, conferenceID string) ([]domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Track
	for _, t := range s.data.tracks {
		if t.ConferenceID == conferenceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) SaveTrack(ctx context.Context, t domain.Track) error {
	defer s.lockWrite(ctx)()

	for id, existing := range s.data.tracks {
		if id != t.ID && existing.ConferenceID == t.ConferenceID && existing.Name == t.Name {
			return fmt.Errorf("track %q already exists in conference %s", t.Name, t.ConferenceID)
		}
	}
	s.data.tracks[t.ID] = t
	return nil
}

func (s *Store) ListRooms(_ context.Context, conferenceID string) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Room
	for _, r := range s.data.rooms {
		if r.ConferenceID == conferenceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) SaveRoom(ctx context.Context, r domain.Room) error {
	defer s.lockWrite(ctx)()

	for id, existing := range s.data.rooms {
		if id != r.ID && existing.ConferenceID == r.ConferenceID && existing.Slug == r.Slug {
			return fmt.Errorf("room %q already exists in conference %s", r.Slug, r.ConferenceID)
		}
	}
	s.data.rooms[r.ID] = r
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListSessions(_ context.Context, conferenceID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Session
	for _, ses := range s.data.sessions {
		if ses.ConferenceID == conferenceID {
			out = append(out, ses)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *Store) SaveSession(ctx context.Context, ses domain.Session) error {
	defer s.lockWrite(ctx)()

	for id, existing := range s.data.sessions {
		if id != ses.ID && existing.ConferenceID == ses.ConferenceID && existing.UniqueID == ses.UniqueID {
			return fmt.Errorf("session unique_id %q already used in conference %s", ses.UniqueID, ses.ConferenceID)
		}
	}
	if prev, ok := s.data.sessions[ses.ID]; ok && prev.ImminentNotified {
		ses.ImminentNotified = true
	}
	s.data.sessions[ses.ID] = ses
	return nil
}

func (s *Store) GetSessionView(_ context.Context, id string) (domain.SessionView, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ses, ok := s.data.sessions[id]
	if !ok {
		return domain.SessionView{}, false, nil
	}
	return s.viewLocked(ses), true, nil
}

func (s *Store) FindSessionByUniqueID(_ context.Context, conferenceID, uniqueID string) (domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ses := range s.data.sessions {
		if ses.ConferenceID == conferenceID && ses.UniqueID == uniqueID {
			return ses, true, nil
		}
	}
	return domain.Session{}, false, nil
}

// DeleteSessionsByUniqueID removes sessions and their bookmarks.
func (s *Store) DeleteSessionsByUniqueID(ctx context.Context, conferenceID string, uniqueIDs []string) (int, error) {
	if len(uniqueIDs) == 0 {
		return 0, nil
	}
	wanted := make(map[string]bool, len(uniqueIDs))
	for _, uid := range uniqueIDs {
		wanted[uid] = true
	}

	defer s.lockWrite(ctx)()

	deleted := 0
	for id, ses := range s.data.sessions {
		if ses.ConferenceID != conferenceID || !wanted[ses.UniqueID] {
			continue
		}
		delete(s.data.sessions, id)
		for k := range s.data.bookmarks {
			if k.sessionID == id {
				delete(s.data.bookmarks, k)
			}
		}
		deleted++
	}
	return deleted, nil
}

// SessionsStartingBetween returns sessions with from <= start < to, earliest first.
func (s *Store) SessionsStartingBetween(_ context.Context, conferenceID string, from, to time.Time) ([]domain.SessionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Session
	for _, ses := range s.data.sessions {
		if ses.ConferenceID != conferenceID || !ses.HasStart() {
			continue
		}
		if ses.Start.Before(from) || !ses.Start.Before(to) {
			continue
		}
		matched = append(matched, ses)
	}
	sortSessions(matched)

	out := make([]domain.SessionView, 0, len(matched))
	for _, ses := range matched {
		out = append(out, s.viewLocked(ses))
	}
	return out, nil
}

func (s *Store) MarkImminentNotified(ctx context.Context, sessionID string) error {
	defer s.lockWrite(ctx)()

	ses, ok := s.data.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	ses.ImminentNotified = true
	s.data.sessions[sessionID] = ses
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Lecturers
// ─────────────────────────────────────────────────────────────────

func (s *Store) ReplaceLecturers(ctx context.Context, conferenceID string, lecturers []domain.Lecturer) error {
	defer s.lockWrite(ctx)()

	s.data.lecturers[conferenceID] = cloneLecturers(lecturers)
	return nil
}

func (s *Store) ListLecturers(_ context.Context, conferenceID string) ([]domain.Lecturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneLecturers(s.data.lecturers[conferenceID]), nil
}

// ─────────────────────────────────────────────────────────────────
// Users & bookmarks
// ─────────────────────────────────────────────────────────────────

func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	defer s.lockWrite(ctx)()

	s.data.users[u.ID] = u
	return nil
}

func (s *Store) FindUserByOrderCode(_ context.Context, conferenceID, orderCode string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data.users {
		if u.ConferenceID == conferenceID && u.OrderCode == orderCode {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// ToggleBookmark flips the bookmark and reports whether it now exists.
func (s *Store) ToggleBookmark(ctx context.Context, userID, sessionID string) (bool, error) {
	defer s.lockWrite(ctx)()

	if _, ok := s.data.users[userID]; !ok {
		return false, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if _, ok := s.data.sessions[sessionID]; !ok {
		return false, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	k := bookmarkKey{userID: userID, sessionID: sessionID}
	if _, ok := s.data.bookmarks[k]; ok {
		delete(s.data.bookmarks, k)
		return false, nil
	}
	s.data.bookmarks[k] = domain.Bookmark{UserID: userID, SessionID: sessionID, CreatedAt: time.Now()}
	return true, nil
}

// ListBookmarkersWithToken returns the users following sessionID that can be notified, by user ID.
func (s *Store) ListBookmarkersWithToken(_ context.Context, sessionID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.User
	for k := range s.data.bookmarks {
		if k.sessionID != sessionID {
			continue
		}
		if u, ok := s.data.users[k.userID]; ok && u.CanBeNotified() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────

func (s *Store) viewLocked(ses domain.Session) domain.SessionView {
	return domain.SessionView{
		Session:   ses,
		RoomName:  s.data.rooms[ses.RoomID].Name,
		TrackName: s.data.tracks[ses.TrackID].Name,
	}
}

func sortSessions(out []domain.Session) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
}

func cloneLecturers(in []domain.Lecturer) []domain.Lecturer {
	if in == nil {
		return nil
	}
	out := make([]domain.Lecturer, len(in))
	for i, l := range in {
		l.Socials = append([]domain.SocialLink(nil), l.Socials...)
		l.SessionIDs = append([]string(nil), l.SessionIDs...)
		out[i] = l
	}
	return out
}
