// Package ingest routes raw chat messages and emails into the index.
//
// A group or thread is categorized once, the first time it is seen; the
// resulting event id is bound in the index (and so persisted with it) and
// every later message from it is recorded against that id without
// re-running categorization, across restarts too.
package ingest

import (
	"strings"
	"sync"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/extract"
	"github.com/hpungsan/venueindex/internal/gateway"
	"github.com/hpungsan/venueindex/internal/record"
)

// Recorder appends communications to events and keeps the persisted routes.
type Recorder interface {
	RecordCommunication(eventID string, rec record.Communication) error
	Routes() []record.Route
	BindRoute(rt record.Route) error
}

// Routed describes where a message went.
type Routed struct {
	EventID     string               `json:"event_id"`
	Reason      string               `json:"reason,omitempty"` // set only when categorized by this call
	Categorized bool                 `json:"categorized"`
	Record      record.Communication `json:"record"`
}

// Router categorizes each group/thread once and records every message.
type Router struct {
	categorizer *gateway.Categorizer
	recorder    Recorder

	mu     sync.Mutex
	routes map[routeKey]string
}

type routeKey struct {
	source record.Source
	key    string
}

// NewRouter returns a router whose cache is seeded from the recorder's routes.
func NewRouter(c *gateway.Categorizer, r Recorder) *Router {
	rt := &Router{
		categorizer: c,
		recorder:    r,
		routes:      make(map[routeKey]string),
	}
	for _, route := range r.Routes() {
		rt.routes[routeKey{source: route.Source, key: route.Key}] = route.EventID
	}
	return rt
}

// Chat extracts and records msg. participants is the group's member list,
// used only when the group is categorized for the first time.
func (r *Router) Chat(msg extract.ChatMessage, participants []string) (*Routed, error) {
	key := firstNonEmpty(msg.GroupID, msg.GroupName)
	if key == "" {
		return nil, errors.NewInvalidRequest("group_id or group_name is required")
	}
	rec := extract.Chat(msg)

	eventID, reason, categorized, err := r.route(record.SourceChat, key, func() (string, string, error) {
		return r.categorizer.CategorizeGroup(msg.GroupName, participants)
	})
	if err != nil {
		return nil, err
	}
	if err := r.recorder.RecordCommunication(eventID, rec); err != nil {
		return nil, err
	}
	return &Routed{EventID: eventID, Reason: reason, Categorized: categorized, Record: rec}, nil
}

// Email extracts and records msg, keyed by thread id (or subject).
func (r *Router) Email(msg extract.Email) (*Routed, error) {
	key := firstNonEmpty(msg.ThreadID, msg.Subject)
	if key == "" {
		return nil, errors.NewInvalidRequest("thread_id or subject is required")
	}
	rec := extract.FromEmail(msg)

	eventID, reason, categorized, err := r.route(record.SourceEmail, key, func() (string, string, error) {
		return r.categorizer.CategorizeEmail(msg.Subject, msg.FromAddress, msg.Body)
	})
	if err != nil {
		return nil, err
	}
	if err := r.recorder.RecordCommunication(eventID, rec); err != nil {
		return nil, err
	}
	return &Routed{EventID: eventID, Reason: reason, Categorized: categorized, Record: rec}, nil
}

// route returns the cached event id for key, or runs categorize and caches
// the result. The lock is held across categorize so a burst of first
// messages from one group yields a single decision.
func (r *Router) route(source record.Source, key string, categorize func() (string, string, error)) (eventID, reason string, categorized bool, err error) {
	rk := routeKey{source: source, key: key}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.routes[rk]; ok {
		return id, "", false, nil
	}
	eventID, reason, err = categorize()
	if err != nil {
		return "", "", false, err
	}
	if err := r.recorder.BindRoute(record.Route{Source: source, Key: key, EventID: eventID}); err != nil {
		return "", "", false, err
	}
	r.routes[rk] = eventID
	return eventID, reason, true, nil
}

// Bind pins a group or thread to an event, bypassing categorization.
// The event must exist; the binding is persisted.
func (r *Router) Bind(source record.Source, key, eventID string) error {
	key = strings.TrimSpace(key)
	eventID = strings.TrimSpace(eventID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.recorder.BindRoute(record.Route{Source: source, Key: key, EventID: eventID}); err != nil {
		return err
	}
	r.routes[routeKey{source: source, key: key}] = eventID
	return nil
}

// Lookup returns the cached event id for a group or thread.
func (r *Router) Lookup(source record.Source, key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.routes[routeKey{source: source, key: strings.TrimSpace(key)}]
	return id, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
