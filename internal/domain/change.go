package domain

import (
	"sort"
	"time"
)

// ChangeRecord describes what happened to one stored session during an import.
// A nil NewStart means the session disappeared from the feed.
type ChangeRecord struct {
	SessionID string
	OldStart  time.Time
	NewStart  *time.Time
}

// Removed reports whether the record describes a removal.
func (c ChangeRecord) Removed() bool { return c.NewStart == nil }

// ChangeSet is keyed by persistent session ID.
type ChangeSet map[string]ChangeRecord

// SessionIDs returns the keys in a stable order.
func (cs ChangeSet) SessionIDs() []string {
	ids := make([]string, 0, len(cs))
	for id := range cs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Removals counts the records with a nil NewStart.
func (cs ChangeSet) Removals() int {
	n := 0
	for _, c := range cs {
		if c.Removed() {
			n++
		}
	}
	return n
}
