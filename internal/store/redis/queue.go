// Package redis is the delivery queue adapter: payloads are pushed as JSON
// onto a Redis list drained by the push worker.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// DefaultAuditMaxEntries caps the audit list.
const DefaultAuditMaxEntries = 1000

// AuditEntry references one enqueued message. It is kept for troubleshooting only.
type AuditEntry struct {
	PayloadID  string    `json:"payload_id"`
	UserID     string    `json:"user_id"`
	Subject    string    `json:"subject"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue pushes notification payloads to a Redis list.
type Queue struct {
	client     *redis.Client
	name       string
	auditKey   string
	auditLimit int64
	now        func() time.Time
	newID      func() string
}

type QueueOption func(*Queue)

func WithAudit(key string, maxEntries int) QueueOption {
	return func(q *Queue) {
		q.auditKey = key
		q.auditLimit = int64(maxEntries)
	}
}

func WithQueueClock(now func() time.Time) QueueOption { return func(q *Queue) { q.now = now } }

// NewQueue creates a queue adapter on the named list.
func NewQueue(client *redis.Client, name string, opts ...QueueOption) *Queue {
	if name == "" {
		name = DefaultQueueName
	}
	q := &Queue{
		client:     client,
		name:       name,
		auditKey:   DefaultAuditKey,
		auditLimit: DefaultAuditMaxEntries,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) Name() string { return q.name }

// Enqueue assigns a fresh ID to every payload and pushes them in one pipeline,
// together with their audit entries. There is no retry: on failure nothing
// is reported as enqueued and the error wraps domain.ErrDeliveryEnqueue.
func (q *Queue) Enqueue(ctx context.Context, payloads []domain.NotificationPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	now := q.now().UTC()
	pipe := q.client.TxPipeline()
	for i := range payloads {
		payloads[i].ID = q.newID()

		msg, err := json.Marshal(payloads[i])
		if err != nil {
			return 0, fmt.Errorf("%w: marshal payload: %v", domain.ErrDeliveryEnqueue, err)
		}
		pipe.RPush(ctx, q.name, msg)

		if q.auditKey == "" {
			continue
		}
		entry, err := json.Marshal(AuditEntry{
			PayloadID:  payloads[i].ID,
			UserID:     payloads[i].UserID,
			Subject:    payloads[i].Subject,
			EnqueuedAt: now,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: marshal audit entry: %v", domain.ErrDeliveryEnqueue, err)
		}
		pipe.LPush(ctx, q.auditKey, entry)
	}
	if q.auditKey != "" && q.auditLimit > 0 {
		pipe.LTrim(ctx, q.auditKey, 0, q.auditLimit-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: push to %s: %v", domain.ErrDeliveryEnqueue, q.name, err)
	}
	return len(payloads), nil
}

// Length returns the number of messages waiting in the queue.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Peek returns up to limit waiting messages without removing them.
func (q *Queue) Peek(ctx context.Context, limit int64) ([]domain.NotificationPayload, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := q.client.LRange(ctx, q.name, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("peek queue: %w", err)
	}

	out := make([]domain.NotificationPayload, 0, len(raw))
	for _, r := range raw {
		var p domain.NotificationPayload
		if err := json.Unmarshal([]byte(r), &p); err != nil {
			return nil, fmt.Errorf("decode queued payload: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// RecentAudit returns the newest audit entries first.
func (q *Queue) RecentAudit(ctx context.Context, limit int64) ([]AuditEntry, error) {
	if q.auditKey == "" || limit <= 0 {
		return nil, nil
	}
	raw, err := q.client.LRange(ctx, q.auditKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}

	out := make([]AuditEntry, 0, len(raw))
	for _, r := range raw {
		var e AuditEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
