// Package schedule loads the venue's known-events file and seeds the index
// with it, so categorization has something to match against from the start.
//
// File format:
//
//	events:
//	  - id: acme-launch
//	    name: Launch Party
//	    date: "2024-10-15"
//	    promoter: Acme
//	    keywords: [launch]
//	    participants: [Jamie, Morgan]
package schedule

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/index"
)

// Entry is one known event. Keywords and participants seed categorization.
type Entry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Date         string   `yaml:"date"`
	Promoter     string   `yaml:"promoter"`
	Keywords     []string `yaml:"keywords"`
	Participants []string `yaml:"participants"`
}

// Schedule is a parsed schedule file, entries in file order.
type Schedule struct {
	Events []Entry `yaml:"events"`
}

// Load reads and validates a schedule file.
func Load(path string) (*Schedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read schedule: %v", err))
	}
	return Parse(b)
}

// Parse decodes and validates a schedule document. Every entry needs an id
// and a name, and ids must be unique within the file.
func Parse(data []byte) (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("parse schedule: %v", err))
	}

	seen := make(map[string]bool, len(s.Events))
	for i := range s.Events {
		e := &s.Events[i]
		e.ID = strings.TrimSpace(e.ID)
		e.Name = strings.TrimSpace(e.Name)
		if e.ID == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("events[%d]: id is required", i))
		}
		if e.Name == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("events[%d] (%s): name is required", i, e.ID))
		}
		if seen[e.ID] {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("events[%d]: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true
	}
	return &s, nil
}

// Registrar is the part of the index Seed needs.
type Registrar interface {
	AddEvent(in index.AddEventInput) (bool, error)
}

// SeedResult lists which entries were added and which already existed.
type SeedResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
}

// Seed registers every entry. Entries whose id is already cataloged are
// skipped untouched, so seeding the same file twice is harmless.
func Seed(s *Schedule, r Registrar) (*SeedResult, error) {
	res := &SeedResult{Added: []string{}, Skipped: []string{}}
	for _, e := range s.Events {
		created, err := r.AddEvent(index.AddEventInput{
			ID:           e.ID,
			Name:         e.Name,
			Date:         e.Date,
			Promoter:     e.Promoter,
			Keywords:     e.Keywords,
			Participants: e.Participants,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.Added = append(res.Added, e.ID)
		} else {
			res.Skipped = append(res.Skipped, e.ID)
		}
	}
	return res, nil
}
