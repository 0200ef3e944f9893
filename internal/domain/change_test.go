package domain

import (
	"errors"
	"testing"
	"time"
)

func TestChangeSetSessionIDsSorted(t *testing.T) {
	now := time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)
	later := now.Add(5 * time.Minute)

	cs := ChangeSet{
		"c": {SessionID: "c", OldStart: now, NewStart: &later},
		"a": {SessionID: "a", OldStart: now},
		"b": {SessionID: "b", OldStart: now, NewStart: &later},
	}

	ids := cs.SessionIDs()
	want := []string{"a", "b", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SessionIDs() = %v, want %v", ids, want)
		}
	}

	if got := cs.Removals(); got != 1 {
		t.Errorf("Removals() = %d, want 1", got)
	}
	if !cs["a"].Removed() {
		t.Error("record without new start should be a removal")
	}
}

func TestSessionEnd(t *testing.T) {
	start := time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		s    Session
		want time.Time
	}{
		{name: "start and duration", s: Session{Start: start, Duration: 1800}, want: start.Add(30 * time.Minute)},
		{name: "no duration", s: Session{Start: start}, want: time.Time{}},
		{name: "no start", s: Session{Duration: 1800}, want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.End(); !got.Equal(tt.want) {
				t.Errorf("End() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentErrorIsMalformed(t *testing.T) {
	var err error = &DocumentError{Field: "day.date"}

	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatal("DocumentError should unwrap to ErrMalformedDocument")
	}

	var de *DocumentError
	if !errors.As(err, &de) || de.Field != "day.date" {
		t.Errorf("errors.As() field = %v, want day.date", de)
	}
}
