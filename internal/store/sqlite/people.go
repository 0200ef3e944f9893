package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// ─────────────────────────────────────────────────────────────────
// Lecturers
// ─────────────────────────────────────────────────────────────────

// ReplaceLecturers drops every lecturer of the conference and stores the given set.
func (s *Store) ReplaceLecturers(ctx context.Context, conferenceID string, lecturers []domain.Lecturer) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		c := s.conn(ctx)
		if _, err := c.ExecContext(ctx, `
DELETE FROM session_lecturers
WHERE lecturer_id IN (SELECT id FROM lecturers WHERE conference_id = ?)`, conferenceID); err != nil {
			return fmt.Errorf("clear lecturer links: %w", err)
		}
		if _, err := c.ExecContext(ctx, `DELETE FROM lecturers WHERE conference_id = ?`, conferenceID); err != nil {
			return fmt.Errorf("clear lecturers: %w", err)
		}

		for _, l := range lecturers {
			socials, err := json.Marshal(l.Socials)
			if err != nil {
				return fmt.Errorf("encode socials for %s: %w", l.DisplayName, err)
			}
			_, err = c.ExecContext(ctx, `
INSERT INTO lecturers (id, conference_id, external_id, display_name, first_name, last_name, slug, bio, organization, thumbnail, socials)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				l.ID, conferenceID, l.ExternalID, l.DisplayName, l.FirstName, l.LastName, l.Slug,
				l.Bio, l.Organization, l.Thumbnail, string(socials))
			if err != nil {
				return fmt.Errorf("insert lecturer %s: %w", l.DisplayName, err)
			}
			for _, sid := range l.SessionIDs {
				if _, err := c.ExecContext(ctx,
					`INSERT OR IGNORE INTO session_lecturers (session_id, lecturer_id) VALUES (?, ?)`, sid, l.ID); err != nil {
					return fmt.Errorf("link lecturer %s: %w", l.DisplayName, err)
				}
			}
		}
		return nil
	})
}

func (s *Store) ListLecturers(ctx context.Context, conferenceID string) ([]domain.Lecturer, error) {
	c := s.conn(ctx)
	rows, err := c.QueryContext(ctx, `
SELECT id, conference_id, external_id, display_name, first_name, last_name, slug, bio, organization, thumbnail, socials
FROM lecturers WHERE conference_id = ?
ORDER BY display_name, id`, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}

	var (
		out   []domain.Lecturer
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			l       domain.Lecturer
			socials string
		)
		if err := rows.Scan(&l.ID, &l.ConferenceID, &l.ExternalID, &l.DisplayName, &l.FirstName, &l.LastName,
			&l.Slug, &l.Bio, &l.Organization, &l.Thumbnail, &socials); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan lecturer: %w", err)
		}
		if err := json.Unmarshal([]byte(socials), &l.Socials); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode socials for %s: %w", l.DisplayName, err)
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate lecturers: %w", err)
	}
	// A single connection is shared: release it before the next query.
	rows.Close()

	links, err := c.QueryContext(ctx, `
SELECT sl.lecturer_id, sl.session_id
FROM session_lecturers sl
JOIN lecturers l ON l.id = sl.lecturer_id
WHERE l.conference_id = ?
ORDER BY sl.lecturer_id, sl.session_id`, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list lecturer sessions: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var lid, sid string
		if err := links.Scan(&lid, &sid); err != nil {
			return nil, fmt.Errorf("scan lecturer session: %w", err)
		}
		if i, ok := index[lid]; ok {
			out[i].SessionIDs = append(out[i].SessionIDs, sid)
		}
	}
	return out, links.Err()
}

// ─────────────────────────────────────────────────────────────────
// Users & bookmarks
// ─────────────────────────────────────────────────────────────────

func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	const stmt = `
INSERT INTO users (id, conference_id, order_code, email, delivery_token, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  order_code = excluded.order_code,
  email = excluded.email,
  delivery_token = excluded.delivery_token;
`
	if _, err := s.conn(ctx).ExecContext(ctx, stmt,
		u.ID, u.ConferenceID, u.OrderCode, u.Email, u.DeliveryToken, unixOrZero(u.CreatedAt)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByOrderCode(ctx context.Context, conferenceID, orderCode string) (domain.User, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
SELECT id, conference_id, order_code, email, delivery_token, created_at
FROM users WHERE conference_id = ? AND order_code = ?`, conferenceID, orderCode)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

// ToggleBookmark flips the bookmark and reports whether it now exists.
func (s *Store) ToggleBookmark(ctx context.Context, userID, sessionID string) (bool, error) {
	var on bool
	err := s.Atomic(ctx, func(ctx context.Context) error {
		c := s.conn(ctx)
		if err := mustExist(ctx, c, `SELECT 1 FROM users WHERE id = ?`, userID, "user"); err != nil {
			return err
		}
		if err := mustExist(ctx, c, `SELECT 1 FROM sessions WHERE id = ?`, sessionID, "session"); err != nil {
			return err
		}

		res, err := c.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		if err != nil {
			return fmt.Errorf("remove bookmark: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			on = false
			return nil
		}

		if _, err := c.ExecContext(ctx,
			`INSERT INTO bookmarks (user_id, session_id, created_at) VALUES (?, ?, ?)`,
			userID, sessionID, time.Now().Unix()); err != nil {
			return fmt.Errorf("add bookmark: %w", err)
		}
		on = true
		return nil
	})
	return on, err
}

// ListBookmarkersWithToken returns the users following sessionID that can be notified, by user ID.
func (s *Store) ListBookmarkersWithToken(ctx context.Context, sessionID string) ([]domain.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT u.id, u.conference_id, u.order_code, u.email, u.delivery_token, u.created_at
FROM bookmarks b
JOIN users u ON u.id = b.user_id
WHERE b.session_id = ? AND u.delivery_token <> ''
ORDER BY u.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarkers: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.ConferenceID, &u.OrderCode, &u.Email, &u.DeliveryToken, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromUnix(created)
	return u, nil
}

func mustExist(ctx context.Context, c execer, query, id, kind string) error {
	var one int
	err := c.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	return nil
}
