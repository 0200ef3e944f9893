package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/testfixtures"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return NewParser(config.DefaultTrackAliases(), loc)
}

func TestParseSample(t *testing.T) {
	p := newTestParser(t)

	tree, report, err := p.Parse(testfixtures.SampleSchedule().XML())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(report.Issues) != 0 {
		t.Errorf("Parse() issues = %+v, want none", report.Issues)
	}

	if tree.Conference.Acronym != "sfscon-2024" {
		t.Errorf("Conference.Acronym = %q", tree.Conference.Acronym)
	}
	if len(tree.Tracks) != 2 || tree.Tracks[0].Name != "SFSCON" || tree.Tracks[0].Color != "#336699" {
		t.Errorf("Tracks = %+v, want aliased SFSCON first", tree.Tracks)
	}

	events := tree.Events()
	if len(events) != 2 {
		t.Fatalf("Events() = %d, want 2", len(events))
	}

	s1 := events[0]
	if s1.UniqueID != "S1" || s1.RoomName != "Seminar 1" || s1.TrackName != "SFSCON" {
		t.Errorf("S1 = %+v", s1)
	}
	if s1.Duration != 1800 {
		t.Errorf("S1.Duration = %d, want 1800", s1.Duration)
	}
	wantStart := time.Date(2024, 11, 8, 9, 0, 0, 0, s1.Start.Location())
	if !s1.Start.Equal(wantStart) || s1.Start.Location().String() != "Europe/Rome" {
		t.Errorf("S1.Start = %v, want %v in Europe/Rome", s1.Start, wantStart)
	}
	if !s1.Bookmarkable || !s1.Rateable {
		t.Error("S1 should be bookmarkable and rateable")
	}
	if len(s1.Persons) != 1 || s1.Persons[0].FirstName != "Ada" || s1.Persons[0].LastName != "Lovelace" || s1.Persons[0].Bio != "Analyst" {
		t.Errorf("S1.Persons = %+v", s1.Persons)
	}
}

func TestParseIdentityIssues(t *testing.T) {
	p := newTestParser(t)

	doc := testfixtures.SampleSchedule()
	room := &doc.Days[0].Rooms[0]
	room.Events = append(room.Events,
		testfixtures.Event{Title: "No key", Start: "11:00"},
		testfixtures.Event{UniqueID: "S2", Title: "Duplicate of S2", Start: "12:00"},
	)

	tree, report, err := p.Parse(doc.XML())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := report.Count(IssueMissingIdentity); got != 1 {
		t.Errorf("missing identity issues = %d, want 1", got)
	}
	if got := report.Count(IssueDuplicateIdentity); got != 1 {
		t.Errorf("duplicate identity issues = %d, want 1", got)
	}

	// the duplicate comes first in document order, so it wins
	for _, e := range tree.Events() {
		if e.UniqueID == "S2" && e.Title != "Duplicate of S2" {
			t.Errorf("first occurrence of S2 should win, got %q", e.Title)
		}
	}
	if len(tree.Events()) != 2 {
		t.Errorf("Events() = %d, want 2", len(tree.Events()))
	}
}

func TestParseMalformed(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name      string
		mutate    func(*testfixtures.Schedule)
		raw       []byte
		wantField string
	}{
		{
			name:      "missing day date",
			mutate:    func(s *testfixtures.Schedule) { s.Days[0].Date = "" },
			wantField: "day.date",
		},
		{
			name:      "invalid day date",
			mutate:    func(s *testfixtures.Schedule) { s.Days[0].Date = "08/11/2024" },
			wantField: "day.date",
		},
		{
			name:      "missing room name",
			mutate:    func(s *testfixtures.Schedule) { s.Days[0].Rooms[1].Name = "" },
			wantField: "room.name",
		},
		{
			name:      "missing title",
			mutate:    func(s *testfixtures.Schedule) { s.Event("S1").Title = "" },
			wantField: "event.title",
		},
		{
			name:      "not xml",
			raw:       []byte("{}"),
			wantField: "schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if raw == nil {
				doc := testfixtures.SampleSchedule()
				tt.mutate(&doc)
				raw = doc.XML()
			}

			_, _, err := p.Parse(raw)
			if !errors.Is(err, domain.ErrMalformedDocument) {
				t.Fatalf("Parse() error = %v, want ErrMalformedDocument", err)
			}
			var de *domain.DocumentError
			if !errors.As(err, &de) || de.Field != tt.wantField {
				t.Errorf("DocumentError.Field = %v, want %s", de, tt.wantField)
			}
		})
	}
}

func TestParseStartAndDuration(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name         string
		start        string
		duration     string
		wantStart    bool
		wantDuration int
	}{
		{name: "well formed", start: "14:30", duration: "01:15", wantStart: true, wantDuration: 4500},
		{name: "short start", start: "9:00", duration: "00:20", wantStart: false, wantDuration: 1200},
		{name: "long start", start: "09:00:00", duration: "", wantStart: false, wantDuration: 0},
		{name: "garbage", start: "ab:cd", duration: "1h", wantStart: false, wantDuration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testfixtures.SampleSchedule()
			ev := doc.Event("S1")
			ev.Start, ev.Duration = tt.start, tt.duration

			tree, _, err := p.Parse(doc.XML())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			got := tree.Events()[0]
			if got.HasStart() != tt.wantStart {
				t.Errorf("HasStart() = %v, want %v", got.HasStart(), tt.wantStart)
			}
			if got.Duration != tt.wantDuration {
				t.Errorf("Duration = %d, want %d", got.Duration, tt.wantDuration)
			}
		})
	}
}

func TestParseCapabilities(t *testing.T) {
	p := newTestParser(t)

	raw := []byte(`<schedule><conference><title>T</title><acronym>t</acronym></conference>
<day date="2024-11-08"><room name="R">
<event unique_id="a" no_bookmark="true"><title>A</title></event>
<event unique_id="b" no_rate="1"><title>B</title></event>
<event unique_id="c" no_bookmark="false"><title>C</title></event>
</room></day></schedule>`)

	tree, _, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := map[string][2]bool{
		"a": {false, false},
		"b": {true, false},
		"c": {true, true},
	}
	for _, e := range tree.Events() {
		w := want[e.UniqueID]
		if e.Bookmarkable != w[0] || e.Rateable != w[1] {
			t.Errorf("%s: bookmarkable=%v rateable=%v, want %v", e.UniqueID, e.Bookmarkable, e.Rateable, w)
		}
	}
}

func TestParseSocials(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "named entries", raw: `[{"name":"mastodon","url":"https://m.example"}]`, want: 1},
		{name: "keyed entries", raw: `[{"linkedin":"https://l.example","github":"https://g.example"}]`, want: 2},
		{name: "invalid json", raw: `[{`, want: 0},
		{name: "empty", raw: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSocials(tt.raw); len(got) != tt.want {
				t.Errorf("parseSocials() = %+v, want %d entries", got, tt.want)
			}
		})
	}

	keyed := parseSocials(`[{"linkedin":"l","github":"g"}]`)
	if keyed[0].Name != "github" {
		t.Errorf("keyed socials should be sorted by name, got %+v", keyed)
	}
}
