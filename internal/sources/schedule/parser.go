package schedule

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// Parser turns raw schedule XML into a canonical Tree.
type Parser struct {
	tracks   config.TrackAliases
	location *time.Location
}

// NewParser creates a parser. A nil location means UTC.
func NewParser(tracks config.TrackAliases, location *time.Location) *Parser {
	if location == nil {
		location = time.UTC
	}
	return &Parser{
		tracks:   tracks,
		location: location,
	}
}

// Parse decodes and validates a schedule document.
// A missing day date, room name or event title rejects the whole document
// with an error wrapping domain.ErrMalformedDocument. Events without a
// unique_id and repeated unique_ids are reported, never fatal.
func (p *Parser) Parse(data []byte) (Tree, Report, error) {
	var doc Document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = passthroughCharset
	if err := dec.Decode(&doc); err != nil {
		return Tree{}, Report{}, &domain.DocumentError{Field: "schedule", Detail: err.Error()}
	}
	return p.Map(doc)
}

// Map converts a decoded document.
func (p *Parser) Map(doc Document) (Tree, Report, error) {
	var report Report

	tree := Tree{
		Conference: ConferenceInfo{
			Title:   strings.TrimSpace(doc.Conference.Title),
			Acronym: strings.TrimSpace(doc.Conference.Acronym),
		},
		Tracks: p.mapTracks(doc.Tracks),
		Days:   make([]Day, 0, len(doc.Days)),
	}

	seen := make(map[string]bool)

	for di, dn := range doc.Days {
		date := strings.TrimSpace(dn.Date)
		if date == "" {
			return Tree{}, report, &domain.DocumentError{Field: "day.date", Detail: "day #" + strconv.Itoa(di+1)}
		}
		dayStart, err := time.ParseInLocation("2006-01-02", date, p.location)
		if err != nil {
			return Tree{}, report, &domain.DocumentError{Field: "day.date", Detail: "invalid date " + strconv.Quote(date)}
		}

		day := Day{Date: date, Rooms: make([]Room, 0, len(dn.Rooms))}

		for _, rn := range dn.Rooms {
			roomName := strings.TrimSpace(rn.Name)
			if roomName == "" {
				return Tree{}, report, &domain.DocumentError{Field: "room.name", Detail: "day " + date}
			}

			room := Room{Name: roomName, Slug: utils.Slug(roomName)}

			for _, en := range rn.Events {
				title := strings.TrimSpace(en.Title)
				if title == "" {
					return Tree{}, report, &domain.DocumentError{Field: "event.title", Detail: "day " + date + ", room " + roomName}
				}

				uid := strings.TrimSpace(en.UniqueID)
				issue := Issue{Day: date, Room: roomName, Title: title, UniqueID: uid}
				if uid == "" {
					issue.Kind = IssueMissingIdentity
					report.add(issue)
					continue
				}
				if seen[uid] {
					issue.Kind = IssueDuplicateIdentity
					report.add(issue)
					continue
				}
				seen[uid] = true

				room.Events = append(room.Events, p.mapEvent(en, uid, title, roomName, dayStart))
			}

			day.Rooms = append(day.Rooms, room)
		}

		tree.Days = append(tree.Days, day)
	}

	return tree, report, nil
}

func (p *Parser) mapTracks(nodes []TrackNode) []TrackInfo {
	out := make([]TrackInfo, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		name := p.tracks.Resolve(n.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, TrackInfo{Name: name, Color: strings.TrimSpace(n.Color), Order: i})
	}
	return out
}

func (p *Parser) mapEvent(en EventNode, uid, title, roomName string, day time.Time) Event {
	bookmarkable := !truthy(en.NoBookmark)

	ev := Event{
		UniqueID:     uid,
		ExternalID:   strings.TrimSpace(en.ID),
		Title:        title,
		Abstract:     strings.TrimSpace(en.Abstract),
		Description:  strings.TrimSpace(en.Description),
		URL:          strings.TrimSpace(en.URL),
		RoomName:     roomName,
		TrackName:    p.tracks.Resolve(en.Track.Name),
		TrackColor:   strings.TrimSpace(en.Track.Color),
		Bookmarkable: bookmarkable,
		Rateable:     bookmarkable && !truthy(en.NoRate),
	}

	if h, m, ok := parseClock(en.Start); ok && h < 24 {
		ev.Start = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, p.location)
	}
	if h, m, ok := parseClock(en.Duration); ok {
		ev.Duration = h*3600 + m*60
	}

	for _, pn := range en.Persons {
		if person, ok := mapPerson(pn); ok {
			ev.Persons = append(ev.Persons, person)
		}
	}

	return ev
}

func mapPerson(pn PersonNode) (Person, bool) {
	display := strings.Join(strings.Fields(pn.Name), " ")
	if display == "" {
		return Person{}, false
	}
	words := strings.Split(display, " ")

	return Person{
		ExternalID:   strings.TrimSpace(pn.ID),
		DisplayName:  display,
		FirstName:    capitalize(words[0]),
		LastName:     capitalize(strings.Join(words[1:], " ")),
		Bio:          cleanBio(pn.Bio),
		Organization: strings.TrimSpace(pn.Organization),
		Thumbnail:    strings.TrimSpace(pn.Thumbnail),
		Socials:      parseSocials(pn.Socials),
	}, true
}

// parseClock splits "HH:MM". Any other length is treated as absent.
func parseClock(s string) (int, int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(s[0:2])
	m, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// parseSocials accepts [{"name":..,"url":..}] or [{"linkedin":"url"}]. Invalid JSON yields nil.
func parseSocials(raw string) []domain.SocialLink {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var entries []map[string]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var out []domain.SocialLink
	for _, e := range entries {
		if u, ok := e["url"]; ok {
			out = append(out, domain.SocialLink{Name: e["name"], URL: u})
			continue
		}
		keys := make([]string, 0, len(e))
		for k := range e {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, domain.SocialLink{Name: k, URL: e[k]})
		}
	}
	return out
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func passthroughCharset(_ string, input io.Reader) (io.Reader, error) { return input, nil }
