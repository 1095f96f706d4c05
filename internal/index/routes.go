package index

import (
	"strings"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/record"
)

// Routes returns the persisted group/thread routes in the order they were bound.
func (idx *Index) Routes() []record.Route {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]record.Route{}, idx.routes...)
}

// BindRoute pins a group or thread to an existing event and persists it.
// Rebinding a key replaces its event.
func (idx *Index) BindRoute(rt record.Route) error {
	rt.Key = strings.TrimSpace(rt.Key)
	rt.EventID = strings.TrimSpace(rt.EventID)
	if rt.Key == "" {
		return errors.NewInvalidRequest("route key is required")
	}
	if rt.Source != record.SourceChat && rt.Source != record.SourceEmail {
		return errors.NewUnsupported("source", string(rt.Source))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.events.Get(rt.EventID); !ok {
		return errors.NewNotFound(rt.EventID)
	}

	for i, existing := range idx.routes {
		if existing.Source == rt.Source && existing.Key == rt.Key {
			if existing.EventID == rt.EventID {
				return nil
			}
			idx.routes[i] = rt
			idx.persistLocked()
			return nil
		}
	}
	idx.routes = append(idx.routes, rt)
	idx.persistLocked()
	return nil
}
