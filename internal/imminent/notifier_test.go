package imminent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/store/memory"
	"github.com/MrSnakeDoc/confsync/internal/testfixtures"
)

type recordingDispatcher struct {
	got []domain.NotificationPayload
	err error
}

func (r *recordingDispatcher) Enqueue(_ context.Context, payloads []domain.NotificationPayload) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.got = append(r.got, payloads...)
	return len(payloads), nil
}

// seed stores S1 at 09:00 bookmarked by A (token) and C (no token),
// and S2 at 10:00 bookmarked by A.
func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	nine := time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)

	steps := []error{
		st.SaveConference(ctx, domain.Conference{ID: "c1", Name: "SFSCON", SourceURI: "src"}),
		st.SaveRoom(ctx, domain.Room{ID: "r1", ConferenceID: "c1", Name: "Seminar 1", Slug: "seminar-1"}),
		st.SaveSession(ctx, domain.Session{ID: "s1", ConferenceID: "c1", UniqueID: "S1", Title: "Opening", Start: nine, RoomID: "r1"}),
		st.SaveSession(ctx, domain.Session{ID: "s2", ConferenceID: "c1", UniqueID: "S2", Title: "Keynote", Start: nine.Add(time.Hour), RoomID: "r1"}),
		st.SaveUser(ctx, domain.User{ID: "u-a", ConferenceID: "c1", OrderCode: "A", DeliveryToken: "A"}),
		st.SaveUser(ctx, domain.User{ID: "u-c", ConferenceID: "c1", OrderCode: "C"}),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatal(err)
		}
	}
	for _, b := range [][2]string{{"u-a", "s1"}, {"u-c", "s1"}, {"u-a", "s2"}} {
		if _, err := st.ToggleBookmark(ctx, b[0], b[1]); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestRunNotifiesOnce(t *testing.T) {
	st := seed(t)
	d := &recordingDispatcher{}
	n := New(st, d, logger.NewNop(), 5*time.Minute, time.UTC)
	clock := testfixtures.NewClock(time.Date(2024, 11, 8, 8, 56, 0, 0, time.UTC))
	ctx := context.Background()

	res, err := n.Run(ctx, "c1", clock.Now(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.NotifiedCount != 1 || len(d.got) != 1 {
		t.Fatalf("first run = %+v, dispatched %d; want 1", res, len(d.got))
	}
	pl := d.got[0]
	if pl.Subject != Subject || pl.DeliveryToken != "A" || pl.Data != nil {
		t.Errorf("payload = %+v", pl)
	}
	if !strings.Contains(pl.Message, "Opening begins at 09:00 at Seminar 1") {
		t.Errorf("message = %q", pl.Message)
	}

	for _, advance := range []time.Duration{0, time.Minute, 3 * time.Minute} {
		clock.Advance(advance)
		res, err := n.Run(ctx, "c1", clock.Now(), false)
		if err != nil {
			t.Fatal(err)
		}
		if res.NotifiedCount != 0 {
			t.Errorf("run at %v notified %d again", clock.Now(), res.NotifiedCount)
		}
	}
	if len(d.got) != 1 {
		t.Errorf("dispatched %d payloads in total, want 1", len(d.got))
	}
}

func TestRunWindowBounds(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"start exactly at now", time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC), 1},
		{"start exactly at window end", time.Date(2024, 11, 8, 8, 55, 0, 0, time.UTC), 0},
		{"already started", time.Date(2024, 11, 8, 9, 0, 1, 0, time.UTC), 0},
		{"inside window", time.Date(2024, 11, 8, 8, 59, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(seed(t), &recordingDispatcher{}, logger.NewNop(), 5*time.Minute, time.UTC)
			res, err := n.Run(context.Background(), "c1", tt.now, false)
			if err != nil {
				t.Fatal(err)
			}
			if res.NotifiedCount != tt.want {
				t.Errorf("NotifiedCount = %d, want %d", res.NotifiedCount, tt.want)
			}
		})
	}
}

func TestRunDryRunLeavesFlag(t *testing.T) {
	st := seed(t)
	d := &recordingDispatcher{}
	n := New(st, d, logger.NewNop(), 0, time.UTC)
	now := time.Date(2024, 11, 8, 8, 58, 0, 0, time.UTC)

	res, err := n.Run(context.Background(), "c1", now, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.NotifiedCount != 1 || len(res.Log) != 1 || !res.DryRun {
		t.Errorf("dry run = %+v", res)
	}
	if len(d.got) != 0 {
		t.Errorf("dry run dispatched %d payloads", len(d.got))
	}

	s1, _, _ := st.FindSessionByUniqueID(context.Background(), "c1", "S1")
	if s1.ImminentNotified {
		t.Error("dry run flagged the session")
	}
	if res, _ := n.Run(context.Background(), "c1", now, false); res.NotifiedCount != 1 {
		t.Errorf("real run after dry run = %+v, want 1", res)
	}
}

func TestRunEnqueueFailureKeepsSessionPending(t *testing.T) {
	st := seed(t)
	n := New(st, &recordingDispatcher{err: domain.ErrDeliveryEnqueue}, logger.NewNop(), 0, time.UTC)

	_, err := n.Run(context.Background(), "c1", time.Date(2024, 11, 8, 8, 58, 0, 0, time.UTC), false)
	if !errors.Is(err, domain.ErrDeliveryEnqueue) {
		t.Fatalf("Run() error = %v, want ErrDeliveryEnqueue", err)
	}
	s1, _, _ := st.FindSessionByUniqueID(context.Background(), "c1", "S1")
	if s1.ImminentNotified {
		t.Error("session flagged although enqueue failed")
	}
}
