package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

const conferenceColumns = `id, name, acronym, source_uri, checksum, created_at, last_updated`

func (s *Store) FindConferenceBySource(ctx context.Context, source string) (domain.Conference, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+conferenceColumns+` FROM conferences WHERE source_uri = ?`, source)
	return scanConference(row)
}

func (s *Store) GetConference(ctx context.Context, id string) (domain.Conference, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+conferenceColumns+` FROM conferences WHERE id = ?`, id)
	return scanConference(row)
}

func (s *Store) ListConferences(ctx context.Context) ([]domain.Conference, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+conferenceColumns+` FROM conferences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list conferences: %w", err)
	}
	defer rows.Close()

	var out []domain.Conference
	for rows.Next() {
		c, _, err := scanConference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conferences: %w", err)
	}
	return out, nil
}

func (s *Store) SaveConference(ctx context.Context, c domain.Conference) error {
	const stmt = `
INSERT INTO conferences (id, name, acronym, source_uri, checksum, created_at, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  acronym = excluded.acronym,
  source_uri = excluded.source_uri,
  checksum = excluded.checksum,
  last_updated = excluded.last_updated;
`
	_, err := s.conn(ctx).ExecContext(ctx, stmt,
		c.ID, c.Name, c.Acronym, c.SourceURI, c.Checksum, unixOrZero(c.CreatedAt), unixOrZero(c.LastUpdated))
	if err != nil {
		return fmt.Errorf("save conference: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConference(row scanner) (domain.Conference, bool, error) {
	var (
		c                    domain.Conference
		created, lastUpdated int64
	)
	err := row.Scan(&c.ID, &c.Name, &c.Acronym, &c.SourceURI, &c.Checksum, &created, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conference{}, false, nil
	}
	if err != nil {
		return domain.Conference{}, false, fmt.Errorf("scan conference: %w", err)
	}
	c.CreatedAt = fromUnix(created)
	c.LastUpdated = fromUnix(lastUpdated)
	return c, true, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
