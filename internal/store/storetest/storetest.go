// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/store"
)

// Run exercises a driver. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("conference lookup by source", func(t *testing.T) { testConference(t, newStore(t)) })
	t.Run("atomic rollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("session lifecycle", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("bookmarks", func(t *testing.T) { testBookmarks(t, newStore(t)) })
	t.Run("imminent window", func(t *testing.T) { testImminentWindow(t, newStore(t)) })
	t.Run("lecturers replaced", func(t *testing.T) { testLecturers(t, newStore(t)) })
	t.Run("imminent flag survives save", func(t *testing.T) { testImminentFlagSticky(t, newStore(t)) })
	t.Run("imminent window sub-second bounds", func(t *testing.T) { testImminentWindowSubSecond(t, newStore(t)) })
	t.Run("writes outside atomic survive rollback", func(t *testing.T) { testWritesDuringRollback(t, newStore(t)) })
}

var day = time.Date(2024, 11, 8, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store) (domain.Conference, domain.Room, domain.Track) {
	t.Helper()
	ctx := context.Background()

	conf := domain.Conference{ID: "conf-1", Name: "SFSCON", Acronym: "sfscon", SourceURI: "file://schedule.xml", CreatedAt: day, LastUpdated: day}
	room := domain.Room{ID: "room-1", ConferenceID: conf.ID, Name: "Seminar 1", Slug: "seminar-1"}
	track := domain.Track{ID: "track-1", ConferenceID: conf.ID, Name: "SFSCON", Slug: "sfscon", Color: "black", Order: -1}

	if err := s.SaveConference(ctx, conf); err != nil {
		t.Fatalf("SaveConference() error = %v", err)
	}
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom() error = %v", err)
	}
	if err := s.SaveTrack(ctx, track); err != nil {
		t.Fatalf("SaveTrack() error = %v", err)
	}
	return conf, room, track
}

func session(id, uid string, start time.Time, conf domain.Conference, room domain.Room, track domain.Track) domain.Session {
	return domain.Session{
		ID: id, ConferenceID: conf.ID, UniqueID: uid, Title: "Talk " + uid, Slug: "talk-" + uid,
		Start: start, Duration: 1800, RoomID: room.ID, TrackID: track.ID,
		Bookmarkable: true, Rateable: true, CreatedAt: day, UpdatedAt: day,
	}
}

func testConference(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, _, _ := seed(t, s)

	got, ok, err := s.FindConferenceBySource(ctx, conf.SourceURI)
	if err != nil || !ok {
		t.Fatalf("FindConferenceBySource() = %v, %v", ok, err)
	}
	if got.ID != conf.ID || got.Acronym != "sfscon" {
		t.Errorf("FindConferenceBySource() = %+v", got)
	}

	conf.Checksum = "abc"
	if err := s.SaveConference(ctx, conf); err != nil {
		t.Fatalf("SaveConference() update error = %v", err)
	}
	got, _, _ = s.GetConference(ctx, conf.ID)
	if got.Checksum != "abc" {
		t.Errorf("Checksum = %q, want abc", got.Checksum)
	}

	if _, ok, _ := s.FindConferenceBySource(ctx, "other"); ok {
		t.Error("FindConferenceBySource() should miss unknown sources")
	}

	all, err := s.ListConferences(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListConferences() = %d, %v", len(all), err)
	}
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context) error {
		if err := s.SaveSession(ctx, session("s-1", "S1", day.Add(9*time.Hour), conf, room, track)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic() error = %v, want boom", err)
	}

	sessions, err := s.ListSessions(ctx, conf.ID)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("ListSessions() = %d after rollback, want 0", len(sessions))
	}

	err = s.Atomic(ctx, func(ctx context.Context) error {
		return s.SaveSession(ctx, session("s-1", "S1", day.Add(9*time.Hour), conf, room, track))
	})
	if err != nil {
		t.Fatalf("Atomic() commit error = %v", err)
	}
	if sessions, _ := s.ListSessions(ctx, conf.ID); len(sessions) != 1 {
		t.Errorf("ListSessions() = %d after commit, want 1", len(sessions))
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	s1 := session("s-1", "S1", day.Add(9*time.Hour), conf, room, track)
	s2 := session("s-2", "S2", day.Add(10*time.Hour), conf, room, track)
	for _, ses := range []domain.Session{s2, s1} {
		if err := s.SaveSession(ctx, ses); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	dup := session("s-3", "S1", day, conf, room, track)
	if err := s.SaveSession(ctx, dup); err == nil {
		t.Error("SaveSession() should reject a second session with the same unique_id")
	}

	list, _ := s.ListSessions(ctx, conf.ID)
	if len(list) != 2 || list[0].UniqueID != "S1" {
		t.Fatalf("ListSessions() = %+v, want S1 first", list)
	}
	if !list[0].Start.Equal(s1.Start) {
		t.Errorf("Start = %v, want %v", list[0].Start, s1.Start)
	}

	view, ok, err := s.GetSessionView(ctx, "s-1")
	if err != nil || !ok {
		t.Fatalf("GetSessionView() = %v, %v", ok, err)
	}
	if view.RoomName != "Seminar 1" || view.TrackName != "SFSCON" {
		t.Errorf("GetSessionView() = %+v", view)
	}

	found, ok, _ := s.FindSessionByUniqueID(ctx, conf.ID, "S2")
	if !ok || found.ID != "s-2" {
		t.Errorf("FindSessionByUniqueID() = %+v, %v", found, ok)
	}

	n, err := s.DeleteSessionsByUniqueID(ctx, conf.ID, []string{"S2", "missing"})
	if err != nil || n != 1 {
		t.Errorf("DeleteSessionsByUniqueID() = %d, %v, want 1", n, err)
	}
	if _, ok, _ := s.GetSessionView(ctx, "s-2"); ok {
		t.Error("deleted session should be gone")
	}
}

func testBookmarks(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	if err := s.SaveSession(ctx, session("s-1", "S1", day.Add(9*time.Hour), conf, room, track)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	users := []domain.User{
		{ID: "u-b", ConferenceID: conf.ID, OrderCode: "B", DeliveryToken: "token-b", CreatedAt: day},
		{ID: "u-a", ConferenceID: conf.ID, OrderCode: "A", DeliveryToken: "token-a", CreatedAt: day},
		{ID: "u-c", ConferenceID: conf.ID, OrderCode: "C", CreatedAt: day},
	}
	for _, u := range users {
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser() error = %v", err)
		}
		on, err := s.ToggleBookmark(ctx, u.ID, "s-1")
		if err != nil || !on {
			t.Fatalf("ToggleBookmark() = %v, %v", on, err)
		}
	}

	got, err := s.ListBookmarkersWithToken(ctx, "s-1")
	if err != nil {
		t.Fatalf("ListBookmarkersWithToken() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "u-a" || got[1].ID != "u-b" {
		t.Errorf("ListBookmarkersWithToken() = %+v, want u-a, u-b", got)
	}

	on, err := s.ToggleBookmark(ctx, "u-a", "s-1")
	if err != nil || on {
		t.Errorf("second ToggleBookmark() = %v, %v, want false", on, err)
	}
	if got, _ := s.ListBookmarkersWithToken(ctx, "s-1"); len(got) != 1 {
		t.Errorf("bookmarkers after untoggle = %d, want 1", len(got))
	}

	if _, err := s.ToggleBookmark(ctx, "u-a", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ToggleBookmark() unknown session error = %v, want ErrNotFound", err)
	}

	u, ok, _ := s.FindUserByOrderCode(ctx, conf.ID, "C")
	if !ok || u.ID != "u-c" || u.CanBeNotified() {
		t.Errorf("FindUserByOrderCode() = %+v, %v", u, ok)
	}

	if _, err := s.DeleteSessionsByUniqueID(ctx, conf.ID, []string{"S1"}); err != nil {
		t.Fatalf("DeleteSessionsByUniqueID() error = %v", err)
	}
	if got, _ := s.ListBookmarkersWithToken(ctx, "s-1"); len(got) != 0 {
		t.Errorf("bookmarks should cascade with their session, got %d", len(got))
	}
}

func testImminentWindow(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	now := day.Add(9 * time.Hour)
	for _, ses := range []domain.Session{
		session("s-at", "AT", now, conf, room, track),
		session("s-in", "IN", now.Add(4*time.Minute), conf, room, track),
		session("s-edge", "EDGE", now.Add(5*time.Minute), conf, room, track),
		session("s-past", "PAST", now.Add(-time.Minute), conf, room, track),
		session("s-none", "NONE", time.Time{}, conf, room, track),
	} {
		if err := s.SaveSession(ctx, ses); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	got, err := s.SessionsStartingBetween(ctx, conf.ID, now, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("SessionsStartingBetween() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "s-at" || got[1].ID != "s-in" {
		t.Fatalf("SessionsStartingBetween() = %+v, want s-at, s-in", got)
	}
	if got[0].RoomName != "Seminar 1" {
		t.Errorf("RoomName = %q", got[0].RoomName)
	}

	if err := s.MarkImminentNotified(ctx, "s-at"); err != nil {
		t.Fatalf("MarkImminentNotified() error = %v", err)
	}
	view, _, _ := s.GetSessionView(ctx, "s-at")
	if !view.ImminentNotified {
		t.Error("ImminentNotified should be set")
	}
	if err := s.MarkImminentNotified(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MarkImminentNotified() unknown error = %v, want ErrNotFound", err)
	}
}

func testLecturers(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)
	if err := s.SaveSession(ctx, session("s-1", "S1", day, conf, room, track)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	first := []domain.Lecturer{
		{ID: "l-1", ConferenceID: conf.ID, ExternalID: "p1", DisplayName: "Ada Lovelace", SessionIDs: []string{"s-1"},
			Socials: []domain.SocialLink{{Name: "mastodon", URL: "https://m.example/@ada"}}},
		{ID: "l-2", ConferenceID: conf.ID, ExternalID: "p2", DisplayName: "Rob Pike"},
	}
	if err := s.ReplaceLecturers(ctx, conf.ID, first); err != nil {
		t.Fatalf("ReplaceLecturers() error = %v", err)
	}
	if err := s.ReplaceLecturers(ctx, conf.ID, first[:1]); err != nil {
		t.Fatalf("ReplaceLecturers() error = %v", err)
	}

	got, err := s.ListLecturers(ctx, conf.ID)
	if err != nil {
		t.Fatalf("ListLecturers() error = %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "p1" {
		t.Fatalf("ListLecturers() = %+v, want only p1", got)
	}
	if len(got[0].SessionIDs) != 1 || len(got[0].Socials) != 1 {
		t.Errorf("lecturer links = %+v", got[0])
	}
}

func testImminentFlagSticky(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	ses := session("s-1", "S1", day.Add(9*time.Hour), conf, room, track)
	if err := s.SaveSession(ctx, ses); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := s.MarkImminentNotified(ctx, ses.ID); err != nil {
		t.Fatalf("MarkImminentNotified() error = %v", err)
	}

	ses.Title = "Renamed"
	ses.ImminentNotified = false
	if err := s.SaveSession(ctx, ses); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, ok, err := s.FindSessionByUniqueID(ctx, conf.ID, "S1")
	if err != nil || !ok {
		t.Fatalf("FindSessionByUniqueID() = %v, %v", ok, err)
	}
	if got.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", got.Title)
	}
	if !got.ImminentNotified {
		t.Error("SaveSession() cleared ImminentNotified")
	}
}

func testImminentWindowSubSecond(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	at := day.Add(9 * time.Hour)
	for _, ses := range []domain.Session{
		session("s-0900", "A", at, conf, room, track),
		session("s-0901", "B", at.Add(time.Minute), conf, room, track),
	} {
		if err := s.SaveSession(ctx, ses); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	tests := []struct {
		name     string
		from, to time.Time
		want     []string
	}{
		{"from just after start", at.Add(500 * time.Millisecond), at.Add(2 * time.Minute), []string{"s-0901"}},
		{"to just after start", at.Add(-time.Minute), at.Add(time.Minute + 500*time.Millisecond), []string{"s-0900", "s-0901"}},
		{"to exactly at start", at.Add(-time.Minute), at.Add(time.Minute), []string{"s-0900"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SessionsStartingBetween(ctx, conf.ID, tt.from, tt.to)
			if err != nil {
				t.Fatalf("SessionsStartingBetween() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SessionsStartingBetween() = %d sessions, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

// testWritesDuringRollback runs plain writes while an Atomic section is open
// and later fails; the plain writes must outlive the rollback.
func testWritesDuringRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	conf, room, track := seed(t, s)

	if err := s.SaveSession(ctx, session("s-1", "S1", day.Add(9*time.Hour), conf, room, track)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	user := domain.User{ID: "u-1", ConferenceID: conf.ID, OrderCode: "A", DeliveryToken: "token-a", CreatedAt: day}
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}

	inside := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("boom")
	atomicErr := make(chan error, 1)
	go func() {
		atomicErr <- s.Atomic(ctx, func(ctx context.Context) error {
			if err := s.SaveSession(ctx, session("s-tx", "TX", day.Add(10*time.Hour), conf, room, track)); err != nil {
				return err
			}
			close(inside)
			<-release
			return boom
		})
	}()
	<-inside

	var (
		wg        sync.WaitGroup
		toggleErr error
		toggledOn bool
		markErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		toggledOn, toggleErr = s.ToggleBookmark(ctx, user.ID, "s-1")
	}()
	go func() {
		defer wg.Done()
		markErr = s.MarkImminentNotified(ctx, "s-1")
	}()

	// Let both writers reach the store before the section fails.
	time.Sleep(50 * time.Millisecond)
	close(release)

	if err := <-atomicErr; !errors.Is(err, boom) {
		t.Fatalf("Atomic() error = %v, want boom", err)
	}
	wg.Wait()
	if toggleErr != nil || !toggledOn {
		t.Fatalf("ToggleBookmark() = %v, %v", toggledOn, toggleErr)
	}
	if markErr != nil {
		t.Fatalf("MarkImminentNotified() error = %v", markErr)
	}

	if _, ok, _ := s.GetSessionView(ctx, "s-tx"); ok {
		t.Error("write inside the failed section should be rolled back")
	}
	if got, _ := s.ListBookmarkersWithToken(ctx, "s-1"); len(got) != 1 {
		t.Errorf("bookmarkers = %d, want 1", len(got))
	}
	view, _, _ := s.GetSessionView(ctx, "s-1")
	if !view.ImminentNotified {
		t.Error("ImminentNotified lost to the rollback")
	}
}
