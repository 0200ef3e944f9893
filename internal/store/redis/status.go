package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStatusTTL is how long the last import status of a source is kept.
const DefaultStatusTTL = 7 * 24 * time.Hour

// ImportStatus is the outcome of the last import of a source.
type ImportStatus struct {
	Source          string    `json:"source"`
	ConferenceID    string    `json:"conference_id"`
	FinishedAt      time.Time `json:"finished_at"`
	ChecksumMatches bool      `json:"checksum_matches"`
	Changes         int       `json:"changes"`
	Removed         int       `json:"removed"`
	Enqueued        int       `json:"enqueued"`
	Error           string    `json:"error,omitempty"`
}

// StatusStore keeps the last import status per source.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusStore(client *redis.Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{client: client, ttl: ttl}
}

// Save stores the status of the last import.
func (s *StatusStore) Save(ctx context.Context, st ImportStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal import status: %w", err)
	}
	if err := s.client.Set(ctx, ImportStatusKey(st.Source), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save import status: %w", err)
	}
	return nil
}

// Get returns the last status of source; found is false when none is stored.
func (s *StatusStore) Get(ctx context.Context, source string) (ImportStatus, bool, error) {
	data, err := s.client.Get(ctx, ImportStatusKey(source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ImportStatus{}, false, nil
		}
		return ImportStatus{}, false, fmt.Errorf("failed to get import status: %w", err)
	}

	var st ImportStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return ImportStatus{}, false, fmt.Errorf("failed to unmarshal import status: %w", err)
	}
	return st, true, nil
}
