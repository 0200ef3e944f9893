package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// ─────────────────────────────────────────────────────────────────
// Tracks & rooms
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListTracks(ctx context.Context, conferenceID string) ([]domain.Track, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT id, conference_id, name, slug, color, sort_order
FROM tracks WHERE conference_id = ?
ORDER BY sort_order, name`, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []domain.Track
	for rows.Next() {
		var t domain.Track
		if err := rows.Scan(&t.ID, &t.ConferenceID, &t.Name, &t.Slug, &t.Color, &t.Order); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveTrack(ctx context.Context, t domain.Track) error {
	const stmt = `
INSERT INTO tracks (id, conference_id, name, slug, color, sort_order)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  slug = excluded.slug,
  color = excluded.color,
  sort_order = excluded.sort_order;
`
	if _, err := s.conn(ctx).ExecContext(ctx, stmt, t.ID, t.ConferenceID, t.Name, t.Slug, t.Color, t.Order); err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}

func (s *Store) ListRooms(ctx context.Context, conferenceID string) ([]domain.Room, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT id, conference_id, name, slug
FROM rooms WHERE conference_id = ?
ORDER BY slug`, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.ConferenceID, &r.Name, &r.Slug); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRoom(ctx context.Context, r domain.Room) error {
	const stmt = `
INSERT INTO rooms (id, conference_id, name, slug)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  slug = excluded.slug;
`
	if _, err := s.conn(ctx).ExecContext(ctx, stmt, r.ID, r.ConferenceID, r.Name, r.Slug); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

const sessionColumns = `s.id, s.conference_id, s.unique_id, s.title, s.slug, s.abstract, s.description, s.url,
  s.start_at, s.duration, COALESCE(s.room_id, ''), COALESCE(s.track_id, ''),
  s.bookmarkable, s.rateable, s.imminent_notified, s.created_at, s.updated_at`

const sessionViewSelect = `SELECT ` + sessionColumns + `, COALESCE(r.name, ''), COALESCE(t.name, '')
FROM sessions s
LEFT JOIN rooms r ON r.id = s.room_id
LEFT JOIN tracks t ON t.id = s.track_id`

func (s *Store) ListSessions(ctx context.Context, conferenceID string) ([]domain.Session, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+sessionColumns+`
FROM sessions s WHERE s.conference_id = ?
ORDER BY COALESCE(s.start_at, 0), s.id`, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		ses, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ses)
	}
	return out, rows.Err()
}

func (s *Store) SaveSession(ctx context.Context, ses domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, conference_id, unique_id, title, slug, abstract, description, url,
  start_at, duration, room_id, track_id, bookmarkable, rateable, imminent_notified, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  unique_id = excluded.unique_id,
  title = excluded.title,
  slug = excluded.slug,
  abstract = excluded.abstract,
  description = excluded.description,
  url = excluded.url,
  start_at = excluded.start_at,
  duration = excluded.duration,
  room_id = excluded.room_id,
  track_id = excluded.track_id,
  bookmarkable = excluded.bookmarkable,
  rateable = excluded.rateable,
  imminent_notified = MAX(imminent_notified, excluded.imminent_notified),
  updated_at = excluded.updated_at;
`
	_, err := s.conn(ctx).ExecContext(ctx, stmt,
		ses.ID, ses.ConferenceID, ses.UniqueID, ses.Title, ses.Slug, ses.Abstract, ses.Description, ses.URL,
		nullableUnix(ses.Start), ses.Duration, nullableString(ses.RoomID), nullableString(ses.TrackID),
		ses.Bookmarkable, ses.Rateable, ses.ImminentNotified, unixOrZero(ses.CreatedAt), unixOrZero(ses.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save session %s: %w", ses.UniqueID, err)
	}
	return nil
}

func (s *Store) GetSessionView(ctx context.Context, id string) (domain.SessionView, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx, sessionViewSelect+` WHERE s.id = ?`, id)
	v, err := scanSessionView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionView{}, false, nil
	}
	if err != nil {
		return domain.SessionView{}, false, err
	}
	return v, true, nil
}

func (s *Store) FindSessionByUniqueID(ctx context.Context, conferenceID, uniqueID string) (domain.Session, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+sessionColumns+`
FROM sessions s WHERE s.conference_id = ? AND s.unique_id = ?`, conferenceID, uniqueID)
	ses, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return ses, true, nil
}

// DeleteSessionsByUniqueID removes sessions together with their bookmarks and lecturer links.
func (s *Store) DeleteSessionsByUniqueID(ctx context.Context, conferenceID string, uniqueIDs []string) (int, error) {
	if len(uniqueIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uniqueIDs)), ",")
	args := make([]any, 0, len(uniqueIDs)+1)
	args = append(args, conferenceID)
	for _, uid := range uniqueIDs {
		args = append(args, uid)
	}

	var n int64
	err := s.Atomic(ctx, func(ctx context.Context) error {
		c := s.conn(ctx)
		match := `SELECT id FROM sessions WHERE conference_id = ? AND unique_id IN (` + placeholders + `)`
		for _, dep := range []string{"bookmarks", "session_lecturers"} {
			if _, err := c.ExecContext(ctx, `DELETE FROM `+dep+` WHERE session_id IN (`+match+`)`, args...); err != nil {
				return fmt.Errorf("delete %s: %w", dep, err)
			}
		}
		res, err := c.ExecContext(ctx,
			`DELETE FROM sessions WHERE conference_id = ? AND unique_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SessionsStartingBetween returns sessions with from <= start < to, earliest first.
func (s *Store) SessionsStartingBetween(ctx context.Context, conferenceID string, from, to time.Time) ([]domain.SessionView, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, sessionViewSelect+`
WHERE s.conference_id = ? AND s.start_at IS NOT NULL AND s.start_at >= ? AND s.start_at < ?
ORDER BY s.start_at, s.id`, conferenceID, ceilUnix(from), ceilUnix(to))
	if err != nil {
		return nil, fmt.Errorf("query sessions window: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionView
	for rows.Next() {
		v, err := scanSessionView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ceilUnix rounds t up to whole seconds, the resolution start_at is stored at.
func ceilUnix(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() != 0 {
		sec++
	}
	return sec
}

func (s *Store) MarkImminentNotified(ctx context.Context, sessionID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE sessions SET imminent_notified = 1 WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("mark session notified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		ses              domain.Session
		start            sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&ses.ID, &ses.ConferenceID, &ses.UniqueID, &ses.Title, &ses.Slug, &ses.Abstract, &ses.Description, &ses.URL,
		&start, &ses.Duration, &ses.RoomID, &ses.TrackID,
		&ses.Bookmarkable, &ses.Rateable, &ses.ImminentNotified, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	ses.Start = fromNullableUnix(start)
	ses.CreatedAt = fromUnix(created)
	ses.UpdatedAt = fromUnix(updated)
	return ses, nil
}

func scanSessionView(row scanner) (domain.SessionView, error) {
	var (
		v                domain.SessionView
		start            sql.NullInt64
		created, updated int64
	)
	ses := &v.Session
	err := row.Scan(&ses.ID, &ses.ConferenceID, &ses.UniqueID, &ses.Title, &ses.Slug, &ses.Abstract, &ses.Description, &ses.URL,
		&start, &ses.Duration, &ses.RoomID, &ses.TrackID,
		&ses.Bookmarkable, &ses.Rateable, &ses.ImminentNotified, &created, &updated,
		&v.RoomName, &v.TrackName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionView{}, err
		}
		return domain.SessionView{}, fmt.Errorf("scan session: %w", err)
	}
	ses.Start = fromNullableUnix(start)
	ses.CreatedAt = fromUnix(created)
	ses.UpdatedAt = fromUnix(updated)
	return v, nil
}
