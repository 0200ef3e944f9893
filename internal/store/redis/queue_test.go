package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func payloads() []domain.NotificationPayload {
	return []domain.NotificationPayload{
		{UserID: "u-a", DeliveryToken: "A", Subject: "Event time has been changed", Message: "moved",
			Data: &domain.NotificationData{Command: domain.CommandSessionStartChanged, SessionID: "s1"}},
		{UserID: "u-b", DeliveryToken: "B", Subject: "The event will start shortly", Message: "soon"},
	}
}

func TestEnqueueWritesWireFormat(t *testing.T) {
	mr, client := newClient(t)
	q := NewQueue(client, "")
	ctx := context.Background()

	in := payloads()
	n, err := q.Enqueue(ctx, in)
	if err != nil || n != 2 {
		t.Fatalf("Enqueue() = %d, %v", n, err)
	}
	if in[0].ID == "" || in[0].ID == in[1].ID {
		t.Errorf("ids = %q, %q, want distinct generated ids", in[0].ID, in[1].ID)
	}

	items, err := mr.List(DefaultQueueName)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("queue length = %d, want 2", len(items))
	}

	var msg map[string]any
	if err := json.Unmarshal([]byte(items[0]), &msg); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "delivery_token", "subject", "message", "data"} {
		if _, ok := msg[key]; !ok {
			t.Errorf("message %v lacks %q", msg, key)
		}
	}
	if _, ok := msg["UserID"]; ok {
		t.Error("user id leaked into the queue message")
	}
	data := msg["data"].(map[string]any)
	if data["command"] != "SESSION_START_CHANGED" || data["session_id"] != "s1" {
		t.Errorf("data = %v", data)
	}

	var second map[string]any
	_ = json.Unmarshal([]byte(items[1]), &second)
	if _, ok := second["data"]; ok {
		t.Errorf("data present on payload without data: %v", second)
	}
}

func TestEnqueueAuditIsCapped(t *testing.T) {
	mr, client := newClient(t)
	clock := time.Date(2024, 11, 8, 8, 55, 0, 0, time.UTC)
	q := NewQueue(client, "q", WithAudit("audit", 3), WithQueueClock(func() time.Time { return clock }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, payloads()); err != nil {
			t.Fatal(err)
		}
	}

	audit, _ := mr.List("audit")
	if len(audit) != 3 {
		t.Errorf("audit length = %d, want 3", len(audit))
	}
	recent, err := q.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 || recent[0].UserID != "u-b" || !recent[0].EnqueuedAt.Equal(clock) {
		t.Errorf("RecentAudit() = %+v", recent)
	}

	if n, _ := q.Length(ctx); n != 6 {
		t.Errorf("Length() = %d, want 6", n)
	}
	peek, err := q.Peek(ctx, 1)
	if err != nil || len(peek) != 1 || peek[0].DeliveryToken != "A" {
		t.Errorf("Peek() = %+v, %v", peek, err)
	}
}

func TestEnqueueFailureIsDeliveryError(t *testing.T) {
	mr, client := newClient(t)
	q := NewQueue(client, "q")
	mr.Close()

	n, err := q.Enqueue(context.Background(), payloads())
	if !errors.Is(err, domain.ErrDeliveryEnqueue) {
		t.Errorf("Enqueue() error = %v, want ErrDeliveryEnqueue", err)
	}
	if n != 0 {
		t.Errorf("Enqueue() = %d, want 0", n)
	}
}

func TestEnqueueEmpty(t *testing.T) {
	_, client := newClient(t)
	if n, err := NewQueue(client, "q").Enqueue(context.Background(), nil); n != 0 || err != nil {
		t.Errorf("Enqueue(nil) = %d, %v", n, err)
	}
}

func TestStatusStore(t *testing.T) {
	mr, client := newClient(t)
	s := NewStatusStore(client, time.Hour)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "src"); ok || err != nil {
		t.Fatalf("Get() on empty = %v, %v", ok, err)
	}

	want := ImportStatus{Source: "src", ConferenceID: "c1", Changes: 2, Enqueued: 4, FinishedAt: time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)}
	if err := s.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, "src")
	if err != nil || !ok || got.Enqueued != 4 || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("Get() = %+v, %v, %v", got, ok, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "src"); ok {
		t.Error("status survived its TTL")
	}
}
