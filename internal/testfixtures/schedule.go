package testfixtures

import (
	"encoding/xml"
	"strings"
)

// Event describes one <event> of a generated schedule.
type Event struct {
	UniqueID   string
	Title      string
	Start      string // HH:MM
	Duration   string // HH:MM
	Track      string
	NoBookmark bool
	Persons    []Person
}

type Person struct {
	ID   string
	Name string
	Bio  string
}

type Room struct {
	Name   string
	Events []Event
}

type Day struct {
	Date  string
	Rooms []Room
}

// Schedule builds schedule XML documents for tests.
type Schedule struct {
	Title   string
	Acronym string
	Tracks  []string
	Days    []Day
}

// SampleSchedule is a one-day conference with two sessions in two rooms.
//
//	S1  2024-11-08 09:00  Seminar 1  track "SFSCON - Main track"
//	S2  2024-11-08 10:00  Seminar 2  track "Developers"
func SampleSchedule() Schedule {
	return Schedule{
		Title:   "SFSCON 2024",
		Acronym: "sfscon-2024",
		Tracks:  []string{"SFSCON - Main track", "Developers"},
		Days: []Day{{
			Date: "2024-11-08",
			Rooms: []Room{
				{Name: "Seminar 1", Events: []Event{{
					UniqueID: "S1", Title: "Opening", Start: "09:00", Duration: "00:30",
					Track:   "SFSCON - Main track",
					Persons: []Person{{ID: "p1", Name: "ada lovelace", Bio: "<p>Analyst</p>"}},
				}}},
				{Name: "Seminar 2", Events: []Event{{
					UniqueID: "S2", Title: "Go in production", Start: "10:00", Duration: "00:45",
					Track:   "Developers",
					Persons: []Person{{ID: "p2", Name: "Rob Pike"}},
				}}},
			},
		}},
	}
}

// Event returns a pointer to the event with uid, or nil.
func (s *Schedule) Event(uid string) *Event {
	for di := range s.Days {
		for ri := range s.Days[di].Rooms {
			for ei := range s.Days[di].Rooms[ri].Events {
				if s.Days[di].Rooms[ri].Events[ei].UniqueID == uid {
					return &s.Days[di].Rooms[ri].Events[ei]
				}
			}
		}
	}
	return nil
}

// Remove drops the event with uid.
func (s *Schedule) Remove(uid string) {
	for di := range s.Days {
		for ri := range s.Days[di].Rooms {
			events := s.Days[di].Rooms[ri].Events[:0]
			for _, e := range s.Days[di].Rooms[ri].Events {
				if e.UniqueID != uid {
					events = append(events, e)
				}
			}
			s.Days[di].Rooms[ri].Events = events
		}
	}
}

// XML renders the schedule document.
func (s Schedule) XML() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<schedule>\n")
	b.WriteString("<conference><title>" + esc(s.Title) + "</title><acronym>" + esc(s.Acronym) + "</acronym></conference>\n")
	if len(s.Tracks) > 0 {
		b.WriteString("<tracks>")
		for _, t := range s.Tracks {
			b.WriteString(`<track color="#336699">` + esc(t) + "</track>")
		}
		b.WriteString("</tracks>\n")
	}
	for _, d := range s.Days {
		b.WriteString(`<day date="` + esc(d.Date) + `">` + "\n")
		for _, r := range d.Rooms {
			b.WriteString(`<room name="` + esc(r.Name) + `">` + "\n")
			for _, e := range r.Events {
				writeEvent(&b, e)
			}
			b.WriteString("</room>\n")
		}
		b.WriteString("</day>\n")
	}
	b.WriteString("</schedule>\n")
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, e Event) {
	b.WriteString("<event")
	if e.UniqueID != "" {
		b.WriteString(` unique_id="` + esc(e.UniqueID) + `"`)
	}
	if e.NoBookmark {
		b.WriteString(` no_bookmark="true"`)
	}
	b.WriteString(">")
	b.WriteString("<title>" + esc(e.Title) + "</title>")
	if e.Start != "" {
		b.WriteString("<start>" + esc(e.Start) + "</start>")
	}
	if e.Duration != "" {
		b.WriteString("<duration>" + esc(e.Duration) + "</duration>")
	}
	if e.Track != "" {
		b.WriteString("<track>" + esc(e.Track) + "</track>")
	}
	if len(e.Persons) > 0 {
		b.WriteString("<persons>")
		for _, p := range e.Persons {
			b.WriteString(`<person id="` + esc(p.ID) + `" bio="` + esc(p.Bio) + `">` + esc(p.Name) + "</person>")
		}
		b.WriteString("</persons>")
	}
	b.WriteString("</event>\n")
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
