package record

import (
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hpungsan/venueindex/internal/errors"
)

// Origin records how an event entered the catalog.
type Origin string

const (
	OriginManual       Origin = "manual"        // addEvent or schedule seed
	OriginAutoDetected Origin = "auto_detected" // created by the categorizer
	OriginImplicit     Origin = "implicit"      // created by recording to an unknown id
)

// Equipment is an insertion-ordered keyword -> mention count mapping.
type Equipment = orderedmap.OrderedMap[string, int]

// Event is one venue occurrence or promoter bucket.
type Event struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Date     string   `json:"date,omitempty"`
	Promoter string   `json:"promoter,omitempty"`
	Keywords []string `json:"keywords"`
	Origin   Origin   `json:"origin"`

	Participants   *Roster         `json:"participants"`
	Communications []Communication `json:"communications"`
	Equipment      *Equipment      `json:"equipment_mentions"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewEvent validates and builds an empty event.
func NewEvent(id, name string, origin Origin, now time.Time) (*Event, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return nil, errors.NewInvalidRequest("event id is required")
	}
	if name == "" {
		return nil, errors.NewInvalidRequest("event name is required")
	}
	e := &Event{
		ID:           id,
		Name:         name,
		Origin:       origin,
		CreatedAt:    now,
		LastActivity: now,
	}
	e.Init()
	return e, nil
}

// Init fills nil collections, e.g. after decoding a sparse document.
func (e *Event) Init() {
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	if e.Participants == nil {
		e.Participants = NewRoster()
	}
	if e.Communications == nil {
		e.Communications = []Communication{}
	}
	if e.Equipment == nil {
		e.Equipment = orderedmap.New[string, int]()
	}
}

// Profile returns the matching view of the event.
func (e *Event) Profile() Profile {
	return Profile{
		ID:       e.ID,
		Name:     e.Name,
		Date:     e.Date,
		Promoter: e.Promoter,
		Keywords: append([]string(nil), e.Keywords...),
		Roster:   e.Participants.Names(),
	}
}

// EquipmentCount is one keyword with its mention count.
type EquipmentCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// EquipmentCounts lists the counters in first-mentioned order.
func (e *Event) EquipmentCounts() []EquipmentCount {
	out := make([]EquipmentCount, 0, e.Equipment.Len())
	for pair := e.Equipment.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, EquipmentCount{Keyword: pair.Key, Count: pair.Value})
	}
	return out
}

// Clone returns a copy that shares no mutable state with e.
func (e *Event) Clone() *Event {
	out := *e
	out.Keywords = append([]string{}, e.Keywords...)
	out.Participants = NewRoster(e.Participants.Names()...)
	out.Communications = make([]Communication, len(e.Communications))
	for i, c := range e.Communications {
		out.Communications[i] = c.Clone()
	}
	out.Equipment = orderedmap.New[string, int]()
	for pair := e.Equipment.Oldest(); pair != nil; pair = pair.Next() {
		out.Equipment.Set(pair.Key, pair.Value)
	}
	return &out
}
