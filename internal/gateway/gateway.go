// Package gateway decides which event a chat group or email thread belongs to.
//
// Rules are tiered and first-match-wins; each tier is tried against every
// known event, in catalog insertion order, before falling through to the next.
// When nothing matches, the rules ask the catalog to create a new event. Every
// call leaves a decision with a human-readable reason in the catalog's log.
package gateway

import (
	stderrors "errors"
	"strings"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/record"
)

// Catalog is the event catalog the categorizer reads and grows. Resolve runs
// rule against a consistent view of all events and applies its verdict
// atomically.
type Catalog interface {
	Resolve(source record.Source, sourceName string, rule record.Rule) (record.Decision, error)
}

// Categorizer maps groups and threads to event ids.
type Categorizer struct {
	catalog Catalog
}

// New returns a categorizer over catalog.
func New(catalog Catalog) *Categorizer {
	return &Categorizer{catalog: catalog}
}

// CategorizeGroup resolves a chat group by its display name and participants.
func (c *Categorizer) CategorizeGroup(name string, participants []string) (eventID, reason string, err error) {
	if c.catalog == nil {
		return "", "", errors.NewInternal(errNoCatalog)
	}
	d, err := c.catalog.Resolve(record.SourceChat, name, GroupRule(name, participants))
	if err != nil {
		return "", "", err
	}
	return d.EventID, d.Reason, nil
}

// CategorizeEmail resolves an email thread by subject, sender address and body.
func (c *Categorizer) CategorizeEmail(subject, sender, body string) (eventID, reason string, err error) {
	if c.catalog == nil {
		return "", "", errors.NewInternal(errNoCatalog)
	}
	d, err := c.catalog.Resolve(record.SourceEmail, subject, EmailRule(subject, sender, body))
	if err != nil {
		return "", "", err
	}
	return d.EventID, d.Reason, nil
}

var errNoCatalog = stderrors.New("categorizer has no catalog")

// dateMatch returns the first event whose date equals date, ignoring case.
func dateMatch(events []record.Profile, date string) (record.Profile, bool) {
	for _, ev := range events {
		if ev.Date != "" && strings.EqualFold(strings.TrimSpace(ev.Date), date) {
			return ev, true
		}
	}
	return record.Profile{}, false
}
