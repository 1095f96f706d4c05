// Package index is the persisted catalog of events and their communications.
//
// An Index owns the catalog, the counters and the categorization decision log.
// All state lives behind one RWMutex: mutations (including categorizer
// resolution) take the write lock, queries take the read lock. Every mutation
// writes the full snapshot through to the configured store; persistence
// failures are logged and counted but never returned to the caller.
package index

import (
	"crypto/rand"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/metrics"
	"github.com/hpungsan/venueindex/internal/record"
	"github.com/hpungsan/venueindex/internal/store"
)

// Options configures an Index. The zero value is an in-memory index with the
// default equipment keywords.
type Options struct {
	Store             store.Store // nil: no persistence
	EquipmentKeywords []string    // nil: config.DefaultEquipmentKeywords
	EventNameMaxChars int         // <= 0: config default
	PersistDecisions  bool
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// Index is the event catalog.
type Index struct {
	mu        sync.RWMutex
	events    *store.Catalog
	stats     store.Stats
	decisions []record.Decision
	routes    []record.Route

	store            store.Store
	equipment        []equipmentMatcher
	maxNameChars     int
	persistDecisions bool
	log              *slog.Logger
	metrics          *metrics.Metrics
	clock            func() time.Time
	entropy          io.Reader
}

type equipmentMatcher struct {
	keyword string
	re      *regexp.Regexp
}

// Open builds an index and loads whatever the store holds.
// A missing or unreadable snapshot yields an empty catalog.
func Open(opts Options) *Index {
	idx := &Index{
		events:           store.NewCatalog(),
		store:            opts.Store,
		maxNameChars:     opts.EventNameMaxChars,
		persistDecisions: opts.PersistDecisions,
		log:              opts.Logger,
		metrics:          opts.Metrics,
		clock:            opts.Now,
		entropy:          ulid.Monotonic(rand.Reader, 0),
	}
	if idx.maxNameChars <= 0 {
		idx.maxNameChars = config.DefaultConfig().EventNameMaxChars
	}
	if idx.log == nil {
		idx.log = slog.New(slog.DiscardHandler)
	}
	if idx.clock == nil {
		idx.clock = time.Now
	}

	keywords := opts.EquipmentKeywords
	if keywords == nil {
		keywords = config.DefaultEquipmentKeywords
	}
	idx.equipment = compileEquipment(keywords)

	idx.load()
	return idx
}

// compileEquipment builds one case-insensitive, word-bounded matcher per
// keyword. A trailing "s" or "es" also counts ("speakers", "cables").
func compileEquipment(keywords []string) []equipmentMatcher {
	seen := make(map[string]bool)
	var out []equipmentMatcher
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := record.Normalize(kw)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, equipmentMatcher{
			keyword: kw,
			re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `(?:e?s)?\b`),
		})
	}
	return out
}

func (idx *Index) load() {
	if idx.store == nil {
		return
	}
	snap, err := idx.store.Load()
	if err != nil {
		idx.log.Error("load event index; starting empty", "error", err)
		idx.metrics.PersistFailed("load")
		return
	}
	if snap == nil {
		return
	}
	idx.events = snap.Events
	idx.stats = snap.Stats
	idx.decisions = snap.Decisions
	idx.routes = snap.Routes
	idx.log.Info("event index loaded", "events", idx.events.Len(), "communications", idx.stats.TotalCommunications)
}

// now returns the current time in UTC without a monotonic reading, so values
// compare equal after a round trip through the store.
func (idx *Index) now() time.Time {
	return idx.clock().UTC().Round(0)
}

// persistLocked writes the full snapshot. Caller must hold the write lock.
func (idx *Index) persistLocked() {
	if idx.store == nil {
		return
	}
	snap := &store.Snapshot{
		SchemaVersion: store.SchemaVersion,
		Events:        idx.events,
		Stats:         idx.stats,
		Routes:        idx.routes,
	}
	if idx.persistDecisions {
		snap.Decisions = idx.decisions
	}

	start := time.Now()
	err := idx.store.Save(snap)
	idx.metrics.ObservePersist(start)
	if err != nil {
		idx.log.Error("persist event index", "error", err)
		idx.metrics.PersistFailed("save")
	}
}

// newEventIDLocked returns an unused "event_<ULID>" id. Caller must hold the write lock.
func (idx *Index) newEventIDLocked(now time.Time) (string, error) {
	for {
		id, err := ulid.New(ulid.Timestamp(now), idx.entropy)
		if err != nil {
			return "", errors.NewInternal(err)
		}
		eventID := "event_" + id.String()
		if _, taken := idx.events.Get(eventID); !taken {
			return eventID, nil
		}
	}
}

// Get returns a copy of the event.
func (idx *Index) Get(eventID string) (*record.Event, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ev, ok := idx.events.Get(eventID)
	if !ok {
		return nil, false
	}
	return ev.Clone(), true
}

// Snapshot returns a deep copy of the full state, decision log included.
func (idx *Index) Snapshot() (*store.Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := &store.Snapshot{
		SchemaVersion: store.SchemaVersion,
		Events:        idx.events,
		Stats:         idx.stats,
		Decisions:     idx.decisions,
		Routes:        idx.routes,
	}
	return snap.Clone()
}

// Export writes a snapshot to path atomically. Unlike write-through
// persistence, failures are returned.
func (idx *Index) Export(path string) error {
	if err := store.ValidateExportPath(path); err != nil {
		return err
	}
	snap, err := idx.Snapshot()
	if err != nil {
		return err
	}
	return store.NewFile(path).Save(snap)
}

// Close releases the store.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.store == nil {
		return nil
	}
	return idx.store.Close()
}
