package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/store/memory"
)

var nine = time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(st.SaveConference(ctx, domain.Conference{ID: "c1", Name: "SFSCON", SourceURI: "src"}))
	must(st.SaveRoom(ctx, domain.Room{ID: "r1", ConferenceID: "c1", Name: "Seminar 1", Slug: "seminar-1"}))
	must(st.SaveSession(ctx, domain.Session{ID: "s1", ConferenceID: "c1", UniqueID: "S1", Title: "Opening", Start: nine, RoomID: "r1"}))
	must(st.SaveSession(ctx, domain.Session{ID: "s2", ConferenceID: "c1", UniqueID: "S2", Title: "Keynote", Start: nine.Add(time.Hour), RoomID: "r1"}))
	must(st.SaveSession(ctx, domain.Session{ID: "s3", ConferenceID: "c1", UniqueID: "S3", Title: "Closing", Start: nine.Add(8 * time.Hour), RoomID: "r1"}))

	for _, u := range []domain.User{
		{ID: "u-a", ConferenceID: "c1", OrderCode: "A", DeliveryToken: "A"},
		{ID: "u-b", ConferenceID: "c1", OrderCode: "B", DeliveryToken: "B"},
		{ID: "u-c", ConferenceID: "c1", OrderCode: "C"},
	} {
		must(st.SaveUser(ctx, u))
	}
	for _, b := range [][2]string{{"u-a", "s1"}, {"u-b", "s1"}, {"u-c", "s1"}, {"u-a", "s2"}, {"u-a", "s3"}} {
		if _, err := st.ToggleBookmark(ctx, b[0], b[1]); err != nil {
			t.Fatal(err)
		}
	}
	return fixture{store: st}
}

func moved(id string, from, to time.Time) domain.ChangeRecord {
	return domain.ChangeRecord{SessionID: id, OldStart: from, NewStart: &to}
}

func TestPlanUngrouped(t *testing.T) {
	f := newFixture(t)
	p := NewPlanner(f.store, logger.NewNop(), time.UTC)

	plan, err := p.Plan(context.Background(), domain.ChangeSet{"s1": moved("s1", nine, nine.Add(5*time.Minute))}, false)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(plan.Payloads) != 2 {
		t.Fatalf("payloads = %d, want 2 (user without token skipped)", len(plan.Payloads))
	}
	for i, want := range []string{"A", "B"} {
		pl := plan.Payloads[i]
		if pl.DeliveryToken != want {
			t.Errorf("payload %d token = %q, want %q", i, pl.DeliveryToken, want)
		}
		if pl.Data == nil || pl.Data.Command != domain.CommandSessionStartChanged || pl.Data.SessionID != "s1" {
			t.Errorf("payload %d data = %+v", i, pl.Data)
		}
		if !strings.Contains(pl.Message, "09:00") || !strings.Contains(pl.Message, "09:05") {
			t.Errorf("payload %d message = %q, want both times", i, pl.Message)
		}
	}
	if plan.Users != 2 || plan.Sessions != 1 {
		t.Errorf("Users/Sessions = %d/%d, want 2/1", plan.Users, plan.Sessions)
	}
}

func TestPlanGroupedCollapsesPerUser(t *testing.T) {
	f := newFixture(t)
	p := NewPlanner(f.store, logger.NewNop(), time.UTC)

	changes := domain.ChangeSet{
		"s1": moved("s1", nine, nine.Add(5*time.Minute)),
		"s3": moved("s3", nine.Add(8*time.Hour), nine.Add(9*time.Hour)),
	}

	ungrouped, err := p.Plan(context.Background(), changes, false)
	if err != nil {
		t.Fatal(err)
	}
	grouped, err := p.Plan(context.Background(), changes, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(ungrouped.Payloads) != 3 {
		t.Errorf("ungrouped payloads = %d, want 3", len(ungrouped.Payloads))
	}
	if len(grouped.Payloads) != 2 {
		t.Fatalf("grouped payloads = %d, want 2", len(grouped.Payloads))
	}
	for _, pl := range grouped.Payloads {
		if pl.Data == nil || pl.Data.Command != domain.CommandOpenBookmarks || pl.Data.SessionID != "" {
			t.Errorf("grouped data = %+v, want OPEN_BOOKMARKS without session", pl.Data)
		}
	}
	if grouped.Payloads[0].UserID != "u-a" || grouped.Payloads[1].UserID != "u-b" {
		t.Errorf("grouped order = %s, %s", grouped.Payloads[0].UserID, grouped.Payloads[1].UserID)
	}
}

func TestDescribe(t *testing.T) {
	p := NewPlanner(nil, logger.NewNop(), time.UTC)
	view := domain.SessionView{Session: domain.Session{ID: "s1", Title: "Opening"}, RoomName: "Seminar 1"}

	tests := []struct {
		name   string
		change domain.ChangeRecord
		want   []string
		reject []string
	}{
		{
			name:   "same day shows times only",
			change: moved("s1", nine, nine.Add(5*time.Minute)),
			want:   []string{"from 09:00 to 09:05", "room Seminar 1"},
			reject: []string{"Nov"},
		},
		{
			name:   "other day shows dates",
			change: moved("s1", nine, nine.Add(24*time.Hour)),
			want:   []string{"08 Nov 09:00", "09 Nov 09:00"},
		},
		{
			name:   "removal",
			change: domain.ChangeRecord{SessionID: "s1", OldStart: nine},
			want:   []string{"cancelled", "Opening"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.describe(affected{view: view, change: tt.change})
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("describe() = %q, want it to contain %q", got, w)
				}
			}
			for _, r := range tt.reject {
				if strings.Contains(got, r) {
					t.Errorf("describe() = %q, must not contain %q", got, r)
				}
			}
		})
	}
}

func TestDescribeUsesLocation(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	p := NewPlanner(nil, logger.NewNop(), rome)
	view := domain.SessionView{Session: domain.Session{ID: "s1", Title: "Opening"}, RoomName: "Seminar 1"}

	got := p.describe(affected{view: view, change: moved("s1", nine, nine.Add(5*time.Minute))})
	if !strings.Contains(got, "10:00") || !strings.Contains(got, "10:05") {
		t.Errorf("describe() = %q, want local times", got)
	}
}

func TestPlanRemovalStillReadsSession(t *testing.T) {
	f := newFixture(t)
	p := NewPlanner(f.store, logger.NewNop(), time.UTC)

	plan, err := p.Plan(context.Background(), domain.ChangeSet{"s2": {SessionID: "s2", OldStart: nine.Add(time.Hour)}}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Payloads) != 1 || plan.Payloads[0].Subject != SubjectCancelled {
		t.Fatalf("payloads = %+v, want one cancellation", plan.Payloads)
	}
	if !strings.Contains(plan.Payloads[0].Message, "Keynote") {
		t.Errorf("message = %q", plan.Payloads[0].Message)
	}
}

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

func TestPlanAndDispatch(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{}
	svc := NewService(NewPlanner(f.store, logger.NewNop(), time.UTC), d, logger.NewNop())

	sum, err := svc.PlanAndDispatch(context.Background(), domain.ChangeSet{"s1": moved("s1", nine, nine.Add(time.Minute))}, false)
	if err != nil {
		t.Fatalf("PlanAndDispatch() error = %v", err)
	}
	if sum.Planned != 2 || sum.Enqueued != 2 || len(d.got) != 2 {
		t.Errorf("summary = %+v, dispatched %d", sum, len(d.got))
	}

	sum, err = svc.PlanAndDispatch(context.Background(), domain.ChangeSet{}, true)
	if err != nil || sum.Planned != 0 {
		t.Errorf("empty change set = %+v, %v", sum, err)
	}
}

func TestDispatchPropagatesEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{err: domain.ErrDeliveryEnqueue}
	svc := NewService(NewPlanner(f.store, logger.NewNop(), time.UTC), d, logger.NewNop())

	_, err := svc.PlanAndDispatch(context.Background(), domain.ChangeSet{"s1": moved("s1", nine, nine.Add(time.Minute))}, true)
	if !errors.Is(err, domain.ErrDeliveryEnqueue) {
		t.Errorf("error = %v, want ErrDeliveryEnqueue", err)
	}
}
