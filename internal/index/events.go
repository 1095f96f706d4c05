package index

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/record"
)

// AddEventInput contains parameters for AddEvent.
type AddEventInput struct {
	ID           string   // required
	Name         string   // required
	Date         string   // optional
	Promoter     string   // optional
	Keywords     []string // optional
	Participants []string // optional roster seed
}

// AddEvent registers an event. It is idempotent: an existing id is left
// untouched and created is false.
func (idx *Index) AddEvent(in AddEventInput) (created bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.now()
	ev, err := record.NewEvent(in.ID, in.Name, record.OriginManual, now)
	if err != nil {
		return false, err
	}
	if _, exists := idx.events.Get(ev.ID); exists {
		return false, nil
	}

	ev.Date = strings.TrimSpace(in.Date)
	ev.Promoter = strings.TrimSpace(in.Promoter)
	for _, kw := range in.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			ev.Keywords = append(ev.Keywords, kw)
		}
	}
	for _, p := range in.Participants {
		ev.Participants.Add(p)
	}

	idx.insertLocked(ev, now)
	idx.persistLocked()
	return true, nil
}

// insertLocked adds ev to the catalog and bumps the event counter.
func (idx *Index) insertLocked(ev *record.Event, now time.Time) {
	idx.events.Set(ev.ID, ev)
	idx.stats.TotalEvents++
	idx.stats.LastUpdated = &now
	idx.metrics.EventCreated(string(ev.Origin))
	idx.log.Debug("event created", "event_id", ev.ID, "name", ev.Name, "origin", ev.Origin)
}

// RecordCommunication appends rec to the event, creating the event (named
// after its id) if it is unknown. A zero timestamp is replaced by the
// current time. Communications stay ordered by timestamp; equal timestamps
// keep arrival order.
func (idx *Index) RecordCommunication(eventID string, rec record.Communication) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return errors.NewInvalidRequest("event_id is required")
	}
	if !rec.Valid() {
		return errors.NewUnsupported("source", string(rec.Source))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.now()
	ev, ok := idx.events.Get(eventID)
	if !ok {
		var err error
		ev, err = record.NewEvent(eventID, eventID, record.OriginImplicit, now)
		if err != nil {
			return err
		}
		idx.insertLocked(ev, now)
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	} else {
		rec.Timestamp = rec.Timestamp.UTC().Round(0)
	}
	rec = rec.Clone()
	if rec.Links == nil {
		rec.Links = []string{}
	}

	ev.Communications = append(ev.Communications, rec)
	slices.SortStableFunc(ev.Communications, func(a, b record.Communication) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	for _, name := range rec.Names() {
		ev.Participants.Add(name)
	}
	idx.countEquipmentLocked(ev, rec.Content())

	ev.LastActivity = now
	idx.stats.TotalCommunications++
	idx.stats.LastUpdated = &now
	idx.metrics.CommunicationRecorded(string(rec.Source))

	idx.persistLocked()
	return nil
}

// countEquipmentLocked increments each keyword mentioned in content once.
func (idx *Index) countEquipmentLocked(ev *record.Event, content string) {
	if content == "" {
		return
	}
	for _, m := range idx.equipment {
		if !m.re.MatchString(content) {
			continue
		}
		n, _ := ev.Equipment.Get(m.keyword)
		ev.Equipment.Set(m.keyword, n+1)
	}
}

// Resolve runs rule against the catalog under the write lock and applies the
// verdict: a matched id is checked to exist, a draft becomes a new
// auto-detected event. Either way the decision is appended to the log.
// Holding the lock across rule and creation means two concurrent calls can
// never both create an event for the same communication stream.
func (idx *Index) Resolve(source record.Source, sourceName string, rule record.Rule) (record.Decision, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	profiles := make([]record.Profile, 0, idx.events.Len())
	for pair := idx.events.Oldest(); pair != nil; pair = pair.Next() {
		profiles = append(profiles, pair.Value.Profile())
	}

	verdict := rule(profiles)
	now := idx.now()
	d := record.Decision{
		Timestamp:  now,
		SourceType: source,
		SourceName: sourceName,
		Reason:     verdict.Reason,
	}

	switch {
	case verdict.Create != nil:
		ev, err := idx.createLocked(*verdict.Create, now)
		if err != nil {
			return record.Decision{}, err
		}
		d.EventID = ev.ID
		d.Created = true
	case verdict.EventID != "":
		if _, ok := idx.events.Get(verdict.EventID); !ok {
			return record.Decision{}, errors.NewNotFound(verdict.EventID)
		}
		d.EventID = verdict.EventID
	default:
		return record.Decision{}, errors.NewInternal(fmt.Errorf("no verdict for %s %q", source, sourceName))
	}

	idx.decisions = append(idx.decisions, d)
	idx.metrics.Categorized(string(source), d.Created)
	idx.log.Debug("categorized",
		"source_type", source,
		"source_name", sourceName,
		"event_id", d.EventID,
		"created", d.Created,
		"reason", d.Reason,
	)

	if d.Created || idx.persistDecisions {
		idx.persistLocked()
	}
	return d, nil
}

// createLocked turns a draft into a new auto-detected event.
func (idx *Index) createLocked(draft record.Draft, now time.Time) (*record.Event, error) {
	id, err := idx.newEventIDLocked(now)
	if err != nil {
		return nil, err
	}
	name := record.Truncate(strings.TrimSpace(draft.Name), idx.maxNameChars)
	if name == "" {
		name = id
	}
	ev, err := record.NewEvent(id, name, record.OriginAutoDetected, now)
	if err != nil {
		return nil, err
	}
	ev.Date = draft.Date
	for _, p := range draft.Participants {
		ev.Participants.Add(p)
	}
	idx.insertLocked(ev, now)
	return ev, nil
}
