package domain

import "time"

// Conference owns sessions, rooms, tracks and lecturers.
// It is identified across imports by its SourceURI.
type Conference struct {
	ID        string
	Name      string
	Acronym   string
	SourceURI string

	// Checksum is the digest of the last accepted schedule document.
	Checksum string

	CreatedAt   time.Time
	LastUpdated time.Time
}

// Track groups sessions by topic.
type Track struct {
	ID           string
	ConferenceID string
	Name         string
	Slug         string
	Color        string
	Order        int
}

// Room is where a session takes place. Rooms are matched by slug.
type Room struct {
	ID           string
	ConferenceID string
	Name         string
	Slug         string
}

// SocialLink is one entry of a lecturer's social networks.
type SocialLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Lecturer is a person presenting one or more sessions.
// Lecturers are replaced wholesale on every import.
type Lecturer struct {
	ID           string
	ConferenceID string
	ExternalID   string
	DisplayName  string
	FirstName    string
	LastName     string
	Slug         string
	Bio          string
	Organization string
	Thumbnail    string
	Socials      []SocialLink
	SessionIDs   []string
}
