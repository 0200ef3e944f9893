// Package reconcile merges a parsed schedule into the stored one and reports
// which stored sessions moved or disappeared.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/sources/schedule"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// Options tune one reconciliation pass.
type Options struct {
	// Force runs the diff even when the checksum is unchanged.
	Force bool

	// ChecksumBeforeDiff persists the new digest before the diff runs,
	// outside the atomic section. When false the digest is committed with the diff.
	ChecksumBeforeDiff bool
}

// Stats counts what a pass did to the stored sessions.
type Stats struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Rescheduled int `json:"rescheduled"`
	Removed     int `json:"removed"`
	Lecturers   int `json:"lecturers"`
}

// Result is the outcome of Reconcile.
type Result struct {
	Conference      domain.Conference
	Created         bool
	Changes         domain.ChangeSet
	ChecksumMatches bool

	// RemovedKeys are the unique_ids of stored sessions missing from the
	// document. The rows still exist; the caller deletes them once the
	// changes have been planned.
	RemovedKeys []string

	Stats Stats
}

// Reconciler is the diff engine between a schedule tree and the store.
type Reconciler struct {
	store        Store
	log          logger.Logger
	defaultTrack config.DefaultTrack
	now          func() time.Time
	newID        func() string
}

type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Reconciler) { r.now = now } }

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option { return func(r *Reconciler) { r.newID = gen } }

func New(store Store, log logger.Logger, defaultTrack config.DefaultTrack, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:        store,
		log:          log,
		defaultTrack: defaultTrack,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile applies tree to the conference identified by source.
//
// Callers must serialize passes for the same source.
func (r *Reconciler) Reconcile(ctx context.Context, tree schedule.Tree, source string, opts Options) (Result, error) {
	digest, err := Digest(tree)
	if err != nil {
		return Result{}, err
	}

	conf, exists, err := r.store.FindConferenceBySource(ctx, source)
	if err != nil {
		return Result{}, fmt.Errorf("lookup conference: %w", err)
	}

	if exists && conf.Checksum == digest && !opts.Force {
		r.log.Info("schedule unchanged, skipping diff",
			logger.String("conference", conf.ID), logger.String("checksum", digest))
		return Result{Conference: conf, Changes: domain.ChangeSet{}, ChecksumMatches: true}, nil
	}

	if exists && opts.ChecksumBeforeDiff {
		conf.Checksum = digest
		if err := r.store.SaveConference(ctx, conf); err != nil {
			return Result{}, fmt.Errorf("save checksum: %w", err)
		}
	}

	res := Result{Created: !exists, Changes: domain.ChangeSet{}}
	err = r.store.Atomic(ctx, func(ctx context.Context) error {
		p := &pass{Reconciler: r, at: r.now().UTC(), res: &res}

		conf, err = p.saveConference(ctx, conf, exists, tree, source, digest)
		if err != nil {
			return err
		}
		p.conf = conf

		if err := p.loadState(ctx); err != nil {
			return err
		}
		if err := p.syncTracks(ctx, tree.Tracks); err != nil {
			return err
		}
		if err := p.syncSessions(ctx, tree.Events()); err != nil {
			return err
		}
		p.detectRemovals()
		return p.replaceLecturers(ctx, tree.Events())
	})
	if err != nil {
		return Result{}, err
	}

	res.Conference = conf
	if res.Created {
		// Nothing to notify about on the first import.
		res.Changes = domain.ChangeSet{}
		res.RemovedKeys = nil
	}

	r.log.Info("schedule reconciled",
		logger.String("conference", conf.ID),
		logger.Bool("created", res.Created),
		logger.Int("sessions_created", res.Stats.Created),
		logger.Int("sessions_updated", res.Stats.Updated),
		logger.Int("sessions_rescheduled", res.Stats.Rescheduled),
		logger.Int("sessions_removed", res.Stats.Removed),
		logger.Int("lecturers", res.Stats.Lecturers),
	)
	return res, nil
}

// pass holds the working state of one Reconcile call.
type pass struct {
	*Reconciler
	at   time.Time
	conf domain.Conference
	res  *Result

	tracks   map[string]domain.Track // by name
	rooms    map[string]domain.Room  // by slug
	stored   map[string]domain.Session
	seen     map[string]bool
	sessions map[string]string // unique_id -> persistent id
}

func (p *pass) saveConference(ctx context.Context, conf domain.Conference, exists bool, tree schedule.Tree, source, digest string) (domain.Conference, error) {
	if !exists {
		conf = domain.Conference{
			ID:        p.newID(),
			SourceURI: source,
			CreatedAt: p.at,
		}
	}
	if tree.Conference.Title != "" {
		conf.Name = tree.Conference.Title
	}
	if tree.Conference.Acronym != "" {
		conf.Acronym = tree.Conference.Acronym
	}
	if conf.Acronym == "" {
		conf.Acronym = utils.Slug(conf.Name)
	}
	conf.Checksum = digest
	conf.LastUpdated = p.at

	if err := p.store.SaveConference(ctx, conf); err != nil {
		return domain.Conference{}, fmt.Errorf("save conference: %w", err)
	}
	return conf, nil
}

func (p *pass) loadState(ctx context.Context) error {
	tracks, err := p.store.ListTracks(ctx, p.conf.ID)
	if err != nil {
		return fmt.Errorf("list tracks: %w", err)
	}
	rooms, err := p.store.ListRooms(ctx, p.conf.ID)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	sessions, err := p.store.ListSessions(ctx, p.conf.ID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	p.tracks = make(map[string]domain.Track, len(tracks))
	for _, t := range tracks {
		p.tracks[t.Name] = t
	}
	p.rooms = make(map[string]domain.Room, len(rooms))
	for _, rm := range rooms {
		p.rooms[rm.Slug] = rm
	}
	p.stored = make(map[string]domain.Session, len(sessions))
	for _, s := range sessions {
		p.stored[s.UniqueID] = s
	}
	p.seen = make(map[string]bool, len(sessions))
	p.sessions = make(map[string]string, len(sessions))
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Tracks & rooms
// ─────────────────────────────────────────────────────────────────

func (p *pass) syncTracks(ctx context.Context, infos []schedule.TrackInfo) error {
	def := p.defaultTrack
	if def.Slug == "" {
		def.Slug = utils.Slug(def.Name)
	}
	if _, err := p.upsertTrack(ctx, def.Name, def.Slug, def.Color, def.Order); err != nil {
		return err
	}
	for _, ti := range infos {
		if _, err := p.upsertTrack(ctx, ti.Name, utils.Slug(ti.Name), ti.Color, ti.Order); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) upsertTrack(ctx context.Context, name, slug, color string, order int) (domain.Track, error) {
	t, ok := p.tracks[name]
	if !ok {
		t = domain.Track{ID: p.newID(), ConferenceID: p.conf.ID, Name: name}
	}
	if ok && t.Slug == slug && t.Color == color && t.Order == order {
		return t, nil
	}
	t.Slug, t.Color, t.Order = slug, color, order
	if err := p.store.SaveTrack(ctx, t); err != nil {
		return domain.Track{}, fmt.Errorf("save track %q: %w", name, err)
	}
	p.tracks[name] = t
	return t, nil
}

// trackFor resolves the track an event references, creating unknown ones.
// Events without a track fall into the default track.
func (p *pass) trackFor(ctx context.Context, name, color string) (domain.Track, error) {
	if name == "" {
		name = p.defaultTrack.Name
	}
	if t, ok := p.tracks[name]; ok {
		return t, nil
	}
	return p.upsertTrack(ctx, name, utils.Slug(name), color, len(p.tracks))
}

func (p *pass) roomFor(ctx context.Context, name string) (domain.Room, error) {
	slug := utils.Slug(name)
	if rm, ok := p.rooms[slug]; ok {
		return rm, nil
	}
	rm := domain.Room{ID: p.newID(), ConferenceID: p.conf.ID, Name: name, Slug: slug}
	if err := p.store.SaveRoom(ctx, rm); err != nil {
		return domain.Room{}, fmt.Errorf("save room %q: %w", name, err)
	}
	p.rooms[slug] = rm
	return rm, nil
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

func (p *pass) syncSessions(ctx context.Context, events []schedule.Event) error {
	for _, ev := range events {
		if ev.UniqueID == "" || p.seen[ev.UniqueID] {
			continue
		}
		p.seen[ev.UniqueID] = true

		room, err := p.roomFor(ctx, ev.RoomName)
		if err != nil {
			return err
		}
		track, err := p.trackFor(ctx, ev.TrackName, ev.TrackColor)
		if err != nil {
			return err
		}

		s, exists := p.stored[ev.UniqueID]
		if !exists {
			s = domain.Session{
				ID:           p.newID(),
				ConferenceID: p.conf.ID,
				UniqueID:     ev.UniqueID,
				CreatedAt:    p.at,
			}
			p.res.Stats.Created++
		} else {
			p.compareStart(s, ev)
			p.res.Stats.Updated++
		}

		s.Title = ev.Title
		s.Slug = utils.Slug(ev.Title)
		s.Abstract = ev.Abstract
		s.Description = ev.Description
		s.URL = ev.URL
		s.Start = ev.Start
		s.Duration = ev.Duration
		s.RoomID = room.ID
		s.TrackID = track.ID
		s.Bookmarkable = ev.Bookmarkable
		s.Rateable = ev.Rateable
		s.UpdatedAt = p.at

		if err := p.store.SaveSession(ctx, s); err != nil {
			return fmt.Errorf("save session %s: %w", ev.UniqueID, err)
		}
		p.sessions[ev.UniqueID] = s.ID
	}
	return nil
}

func (p *pass) compareStart(stored domain.Session, ev schedule.Event) {
	switch {
	case stored.HasStart() && ev.HasStart():
		if stored.Start.Equal(ev.Start) {
			return
		}
		newStart := ev.Start
		p.res.Changes[stored.ID] = domain.ChangeRecord{SessionID: stored.ID, OldStart: stored.Start, NewStart: &newStart}
		p.res.Stats.Rescheduled++
	case stored.HasStart() != ev.HasStart():
		p.log.Warn("session start appeared or disappeared, not notifying",
			logger.String("unique_id", ev.UniqueID),
			logger.Bool("had_start", stored.HasStart()),
			logger.Bool("has_start", ev.HasStart()),
		)
	}
}

func (p *pass) detectRemovals() {
	for uid, s := range p.stored {
		if p.seen[uid] {
			continue
		}
		p.res.Changes[s.ID] = domain.ChangeRecord{SessionID: s.ID, OldStart: s.Start}
		p.res.RemovedKeys = append(p.res.RemovedKeys, uid)
		p.res.Stats.Removed++
	}
	sort.Strings(p.res.RemovedKeys)
}

// ─────────────────────────────────────────────────────────────────
// Lecturers
// ─────────────────────────────────────────────────────────────────

func (p *pass) replaceLecturers(ctx context.Context, events []schedule.Event) error {
	var (
		out   []domain.Lecturer
		index = map[string]int{}
	)
	for _, ev := range events {
		sid, ok := p.sessions[ev.UniqueID]
		if !ok {
			continue
		}
		for _, person := range ev.Persons {
			key := person.ExternalID
			if key == "" {
				key = "name:" + utils.Slug(person.DisplayName)
			}
			if i, ok := index[key]; ok {
				out[i].SessionIDs = appendUnique(out[i].SessionIDs, sid)
				continue
			}
			index[key] = len(out)
			out = append(out, domain.Lecturer{
				ID:           p.newID(),
				ConferenceID: p.conf.ID,
				ExternalID:   person.ExternalID,
				DisplayName:  person.DisplayName,
				FirstName:    person.FirstName,
				LastName:     person.LastName,
				Slug:         utils.Slug(person.DisplayName),
				Bio:          person.Bio,
				Organization: person.Organization,
				Thumbnail:    person.Thumbnail,
				Socials:      person.Socials,
				SessionIDs:   []string{sid},
			})
		}
	}

	if err := p.store.ReplaceLecturers(ctx, p.conf.ID, out); err != nil {
		return fmt.Errorf("replace lecturers: %w", err)
	}
	p.res.Stats.Lecturers = len(out)
	return nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
