package schedule

import "encoding/xml"

// Document mirrors the schedule XML published by the conference.
type Document struct {
	XMLName    xml.Name       `xml:"schedule"`
	Conference ConferenceNode `xml:"conference"`
	Tracks     []TrackNode    `xml:"tracks>track"`
	Days       []DayNode      `xml:"day"`
}

type ConferenceNode struct {
	Title   string `xml:"title"`
	Acronym string `xml:"acronym"`
}

// TrackNode is either a bare name or a name with a color attribute.
type TrackNode struct {
	Name  string `xml:",chardata"`
	Color string `xml:"color,attr"`
}

type DayNode struct {
	Date  string     `xml:"date,attr"`
	Rooms []RoomNode `xml:"room"`
}

type RoomNode struct {
	Name   string      `xml:"name,attr"`
	Events []EventNode `xml:"event"`
}

type EventNode struct {
	UniqueID   string `xml:"unique_id,attr"`
	ID         string `xml:"id,attr"`
	NoBookmark string `xml:"no_bookmark,attr"`
	NoRate     string `xml:"no_rate,attr"`

	Title       string       `xml:"title"`
	Start       string       `xml:"start"`
	Duration    string       `xml:"duration"`
	Track       TrackNode    `xml:"track"`
	Abstract    string       `xml:"abstract"`
	Description string       `xml:"description"`
	URL         string       `xml:"url"`
	Persons     []PersonNode `xml:"persons>person"`
}

type PersonNode struct {
	ID           string `xml:"id,attr"`
	Bio          string `xml:"bio,attr"`
	Organization string `xml:"organization,attr"`
	Thumbnail    string `xml:"thumbnail,attr"`
	Socials      string `xml:"socials,attr"`
	Name         string `xml:",chardata"`
}
