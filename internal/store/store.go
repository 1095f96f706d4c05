// Package store persists event catalog snapshots.
//
// Two backends share one document shape: a JSON file written atomically
// (temp file + rename), and a sqlite database holding one row per event.
package store

import (
	"encoding/json"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/record"
)

// SchemaVersion is the version stamped on every snapshot.
const SchemaVersion = 1

// Catalog is the insertion-ordered event id -> event mapping.
type Catalog = orderedmap.OrderedMap[string, *record.Event]

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return orderedmap.New[string, *record.Event]()
}

// Stats are the process-wide counters persisted with the catalog.
type Stats struct {
	TotalEvents         int        `json:"total_events"`
	TotalCommunications int        `json:"total_communications"`
	LastUpdated         *time.Time `json:"last_updated,omitempty"`
}

// Snapshot is the full persisted state of an index.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Events        *Catalog          `json:"events"`
	Stats         Stats             `json:"stats"`
	Decisions     []record.Decision `json:"decisions,omitempty"`
	Routes        []record.Route    `json:"routes,omitempty"`
}

// Store loads and saves snapshots.
type Store interface {
	// Load returns the persisted snapshot, or (nil, nil) if nothing was persisted yet.
	Load() (*Snapshot, error)
	// Save replaces the persisted snapshot.
	Save(snap *Snapshot) error
	Close() error
}

// Open returns the backend named by cfg.StoreBackend rooted at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", config.BackendJSON:
		return NewFile(path), nil
	case config.BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, errors.NewUnsupported("store backend", backend)
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	out := &Snapshot{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.normalize()
	return out, nil
}

// normalize fills nil collections after decoding.
func (s *Snapshot) normalize() {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	if s.Events == nil {
		s.Events = NewCatalog()
	}
	var empty []string
	for pair := s.Events.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			empty = append(empty, pair.Key)
			continue
		}
		if pair.Value.ID == "" {
			pair.Value.ID = pair.Key
		}
		pair.Value.Init()
	}
	for _, id := range empty {
		s.Events.Delete(id)
	}
}
