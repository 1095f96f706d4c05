package index

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/venueindex/internal/record"
)

// DefaultWindow applies when a window string cannot be parsed.
const DefaultWindow = 24 * time.Hour

// TopEquipmentLimit caps the equipment list in a Summary.
const TopEquipmentLimit = 5

// ParseWindow parses "<n>h" or "<n>d". An empty window disables filtering
// (ok=false); anything unparseable or too large for a time.Duration falls
// back to DefaultWindow.
func ParseWindow(window string) (d time.Duration, ok bool) {
	window = strings.ToLower(strings.TrimSpace(window))
	if window == "" {
		return 0, false
	}
	unit := time.Hour
	switch {
	case strings.HasSuffix(window, "h"):
	case strings.HasSuffix(window, "d"):
		unit = 24 * time.Hour
	default:
		return DefaultWindow, true
	}
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil || n < 0 || int64(n) > math.MaxInt64/int64(unit) {
		return DefaultWindow, true
	}
	return time.Duration(n) * unit, true
}

// Communications returns the event's communications in timestamp order,
// optionally limited to those strictly newer than now-window and to one source.
// ok is false if the event is unknown.
func (idx *Index) Communications(eventID, window string, source record.Source) (comms []record.Communication, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ev, ok := idx.events.Get(eventID)
	if !ok {
		return nil, false
	}

	var cutoff time.Time
	d, filter := ParseWindow(window)
	if filter {
		cutoff = idx.now().Add(-d)
	}

	out := []record.Communication{}
	for _, c := range ev.Communications {
		if filter && !c.Timestamp.After(cutoff) {
			continue
		}
		if source != "" && c.Source != source {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, true
}

// Summary is the per-event digest.
type Summary struct {
	EventID             string                  `json:"event_id"`
	Name                string                  `json:"event_name"`
	Date                string                  `json:"date,omitempty"`
	Promoter            string                  `json:"promoter,omitempty"`
	Origin              record.Origin           `json:"origin"`
	TotalCommunications int                     `json:"total_communications"`
	ChatMessages        int                     `json:"chat_messages"`
	EmailMessages       int                     `json:"email_messages"`
	UniqueParticipants  int                     `json:"unique_participants"`
	RecentActivity24h   int                     `json:"recent_activity_24h"`
	TopEquipment        []record.EquipmentCount `json:"top_equipment_mentions"`
	CreatedAt           time.Time               `json:"created_at"`
	LastActivity        time.Time               `json:"last_activity"`
}

// Summary digests one event. ok is false if the event is unknown.
func (idx *Index) Summary(eventID string) (*Summary, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ev, ok := idx.events.Get(eventID)
	if !ok {
		return nil, false
	}

	s := &Summary{
		EventID:             ev.ID,
		Name:                ev.Name,
		Date:                ev.Date,
		Promoter:            ev.Promoter,
		Origin:              ev.Origin,
		TotalCommunications: len(ev.Communications),
		UniqueParticipants:  ev.Participants.Len(),
		CreatedAt:           ev.CreatedAt,
		LastActivity:        ev.LastActivity,
	}

	cutoff := idx.now().Add(-DefaultWindow)
	for _, c := range ev.Communications {
		switch c.Source {
		case record.SourceChat:
			s.ChatMessages++
		case record.SourceEmail:
			s.EmailMessages++
		}
		if c.Timestamp.After(cutoff) {
			s.RecentActivity24h++
		}
	}

	// Stable: equal counts keep first-mentioned order.
	equipment := ev.EquipmentCounts()
	slices.SortStableFunc(equipment, func(a, b record.EquipmentCount) int {
		return b.Count - a.Count
	})
	if len(equipment) > TopEquipmentLimit {
		equipment = equipment[:TopEquipmentLimit]
	}
	s.TopEquipment = equipment
	return s, true
}

// DateRange bounds Search by event date, both ends inclusive; an empty end
// is unbounded. Dates compare as strings, so only ISO dates order correctly.
type DateRange struct {
	Start string
	End   string
}

// Search returns ids of events whose name, promoter or any participant
// contains query (case-insensitive), in catalog order. An empty query
// matches every event. With a date range, undated events are excluded.
func (idx *Index) Search(query string, dates *DateRange) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	ids := []string{}
	for pair := idx.events.Oldest(); pair != nil; pair = pair.Next() {
		ev := pair.Value
		if !matchesQuery(ev, q) {
			continue
		}
		if dates != nil {
			if ev.Date == "" || ev.Date < dates.Start || (dates.End != "" && ev.Date > dates.End) {
				continue
			}
		}
		ids = append(ids, pair.Key)
	}
	return ids
}

func matchesQuery(ev *record.Event, q string) bool {
	if strings.Contains(strings.ToLower(ev.Name), q) {
		return true
	}
	if ev.Promoter != "" && strings.Contains(strings.ToLower(ev.Promoter), q) {
		return true
	}
	for _, p := range ev.Participants.Names() {
		if strings.Contains(strings.ToLower(p), q) {
			return true
		}
	}
	return false
}

// Statistics are index-wide totals.
type Statistics struct {
	TotalEvents         int        `json:"total_events"`
	TotalCommunications int        `json:"total_communications"`
	UniqueParticipants  int        `json:"unique_participants"`
	TotalLinksShared    int        `json:"total_links_shared"`
	LastUpdated         *time.Time `json:"last_updated"`
}

// Statistics computes index-wide totals. Participants are counted once across
// events, ignoring case.
func (idx *Index) Statistics() Statistics {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	participants := make(map[string]struct{})
	links := 0
	for pair := idx.events.Oldest(); pair != nil; pair = pair.Next() {
		for _, p := range pair.Value.Participants.Names() {
			participants[record.Normalize(p)] = struct{}{}
		}
		for _, c := range pair.Value.Communications {
			links += len(c.Links)
		}
	}

	st := Statistics{
		TotalEvents:         idx.events.Len(),
		TotalCommunications: idx.stats.TotalCommunications,
		UniqueParticipants:  len(participants),
		TotalLinksShared:    links,
	}
	if idx.stats.LastUpdated != nil {
		t := *idx.stats.LastUpdated
		st.LastUpdated = &t
	}
	return st
}

// Decisions returns a copy of the categorization log, oldest first.
func (idx *Index) Decisions() []record.Decision {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]record.Decision{}, idx.decisions...)
}
