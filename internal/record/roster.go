package record

import (
	"encoding/json"
	"strings"
)

// Roster is an insertion-ordered set of participant names.
// Membership is case-insensitive; the casing of the first insertion is kept.
type Roster struct {
	names []string
	seen  map[string]struct{}
}

// NewRoster returns a roster seeded with names (duplicates and blanks dropped).
func NewRoster(names ...string) *Roster {
	r := &Roster{seen: make(map[string]struct{})}
	for _, n := range names {
		r.Add(n)
	}
	return r
}

// Add inserts name if not already present. Returns true if the roster grew.
func (r *Roster) Add(name string) bool {
	name = strings.TrimSpace(name)
	key := Normalize(name)
	if key == "" {
		return false
	}
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.names = append(r.names, name)
	return true
}

// Contains reports whether name is in the roster, ignoring case.
func (r *Roster) Contains(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.seen[Normalize(name)]
	return ok
}

// Len returns the number of distinct names.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns the names in first-seen order.
func (r *Roster) Names() []string {
	if r == nil || len(r.names) == 0 {
		return []string{}
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// MarshalJSON encodes the roster as an ordered list.
func (r *Roster) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Names())
}

// UnmarshalJSON decodes an ordered list, dropping duplicates.
func (r *Roster) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*r = Roster{seen: make(map[string]struct{})}
	for _, n := range names {
		r.Add(n)
	}
	return nil
}
