package schedule

import (
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
)

// Tree is the canonical form of a schedule document.
// Field order is fixed so its JSON encoding is stable.
type Tree struct {
	Conference ConferenceInfo `json:"conference"`
	Tracks     []TrackInfo    `json:"tracks"`
	Days       []Day          `json:"days"`
}

type ConferenceInfo struct {
	Title   string `json:"title"`
	Acronym string `json:"acronym"`
}

type TrackInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

type Day struct {
	Date  string `json:"date"`
	Rooms []Room `json:"rooms"`
}

type Room struct {
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Events []Event `json:"events"`
}

// Event is one session as seen in the feed.
type Event struct {
	UniqueID     string    `json:"unique_id"`
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	Abstract     string    `json:"abstract"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	RoomName     string    `json:"room"`
	TrackName    string    `json:"track"`
	TrackColor   string    `json:"track_color"`
	Start        time.Time `json:"start"`
	Duration     int       `json:"duration"`
	Bookmarkable bool      `json:"bookmarkable"`
	Rateable     bool      `json:"rateable"`
	Persons      []Person  `json:"persons"`
}

// HasStart reports whether the feed carried a usable start time.
func (e Event) HasStart() bool { return !e.Start.IsZero() }

type Person struct {
	ExternalID   string              `json:"external_id"`
	DisplayName  string              `json:"display_name"`
	FirstName    string              `json:"first_name"`
	LastName     string              `json:"last_name"`
	Bio          string              `json:"bio"`
	Organization string              `json:"organization"`
	Thumbnail    string              `json:"thumbnail"`
	Socials      []domain.SocialLink `json:"socials"`
}

// Events flattens the tree in document order.
func (t Tree) Events() []Event {
	var out []Event
	for _, d := range t.Days {
		for _, r := range d.Rooms {
			out = append(out, r.Events...)
		}
	}
	return out
}

// IssueKind classifies a non-fatal problem found while parsing.
type IssueKind string

const (
	// IssueMissingIdentity marks an event without unique_id. It is excluded.
	IssueMissingIdentity IssueKind = "missing_identity"
	// IssueDuplicateIdentity marks a repeated unique_id. The first occurrence wins.
	IssueDuplicateIdentity IssueKind = "duplicate_identity"
)

type Issue struct {
	Kind     IssueKind
	Day      string
	Room     string
	Title    string
	UniqueID string
}

// Report collects the issues that did not abort the parse.
type Report struct {
	Issues []Issue
}

func (r *Report) add(i Issue) { r.Issues = append(r.Issues, i) }

// Count returns how many issues of kind were recorded.
func (r Report) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}
