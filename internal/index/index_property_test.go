package index

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/hpungsan/venueindex/internal/record"
	"github.com/hpungsan/venueindex/internal/store"
)

// TestProperty_CommunicationsStayOrdered verifies that whatever the arrival
// order, communications are ascending by timestamp, equal timestamps keep
// arrival order, and the count equals the number recorded.
func TestProperty_CommunicationsStayOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := Open(Options{})
		offsets := rapid.SliceOfN(rapid.IntRange(0, 20), 1, 40).Draw(t, "offsets")

		for i, off := range offsets {
			c := record.Communication{
				Source:    record.SourceChat,
				Timestamp: baseTime.Add(time.Duration(off) * time.Minute),
				MessageID: fmt.Sprint(i),
			}
			if err := idx.RecordCommunication("E", c); err != nil {
				t.Fatalf("record: %v", err)
			}
		}

		comms, _ := idx.Communications("E", "", "")
		if len(comms) != len(offsets) {
			t.Fatalf("got %d communications, want %d", len(comms), len(offsets))
		}
		for i := 1; i < len(comms); i++ {
			prev, cur := comms[i-1], comms[i]
			if cur.Timestamp.Before(prev.Timestamp) {
				t.Fatalf("communication %d out of order", i)
			}
			if cur.Timestamp.Equal(prev.Timestamp) && atoi(cur.MessageID) < atoi(prev.MessageID) {
				t.Fatalf("tie at %d did not keep arrival order", i)
			}
		}
	})
}

func atoi(s string) int {
	var n int
	fmt.Sscan(s, &n)
	return n
}

// TestProperty_AddEventIdempotent verifies that repeated registration of the
// same ids never grows the catalog beyond the distinct ids.
func TestProperty_AddEventIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := Open(Options{})
		ids := rapid.SliceOfN(rapid.StringMatching(`[a-c]{1,2}`), 1, 30).Draw(t, "ids")

		distinct := map[string]bool{}
		for _, id := range ids {
			created, err := idx.AddEvent(AddEventInput{ID: id, Name: "n-" + id})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if created == distinct[id] {
				t.Fatalf("created=%v for id %q seen=%v", created, id, distinct[id])
			}
			distinct[id] = true
		}
		if got := idx.Statistics().TotalEvents; got != len(distinct) {
			t.Fatalf("TotalEvents = %d, want %d", got, len(distinct))
		}
	})
}

// TestProperty_EquipmentNeverDecreases verifies that counters are monotonic
// and that first-mentioned order never changes.
func TestProperty_EquipmentNeverDecreases(t *testing.T) {
	words := []string{"mixer", "CDJs", "speakers", "light", "laser", "stage", "cable", "crowd", "door", "the"}
	rapid.Check(t, func(t *rapid.T) {
		idx := Open(Options{})
		msgs := rapid.SliceOfN(rapid.SliceOfN(rapid.SampledFrom(words), 0, 6), 1, 20).Draw(t, "messages")

		var prev []record.EquipmentCount
		for _, m := range msgs {
			text := fmt.Sprint(m)
			if err := idx.RecordCommunication("E", record.Communication{Source: record.SourceChat, Timestamp: baseTime, Text: text}); err != nil {
				t.Fatalf("record: %v", err)
			}
			ev, _ := idx.Get("E")
			cur := ev.EquipmentCounts()
			if len(cur) < len(prev) {
				t.Fatalf("equipment keys shrank from %d to %d", len(prev), len(cur))
			}
			for i, p := range prev {
				if cur[i].Keyword != p.Keyword {
					t.Fatalf("key order changed at %d: %q -> %q", i, p.Keyword, cur[i].Keyword)
				}
				if cur[i].Count < p.Count {
					t.Fatalf("%s decreased from %d to %d", p.Keyword, p.Count, cur[i].Count)
				}
			}
			prev = cur
		}
	})
}

// TestProperty_CreatedEventIdsUnique verifies that N creations yield N
// distinct ids, none colliding with pre-registered events.
func TestProperty_CreatedEventIdsUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := Open(Options{Now: func() time.Time { return baseTime }})
		n := rapid.IntRange(1, 50).Draw(t, "n")

		seen := map[string]bool{}
		for i := range n {
			d, err := idx.Resolve(record.SourceChat, "g", func([]record.Profile) record.Verdict {
				return record.Create(record.Draft{Name: fmt.Sprint("group ", i)}, "r")
			})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if seen[d.EventID] {
				t.Fatalf("duplicate id %s", d.EventID)
			}
			seen[d.EventID] = true
		}
		if idx.Statistics().TotalEvents != n {
			t.Fatalf("TotalEvents = %d, want %d", idx.Statistics().TotalEvents, n)
		}
	})
}

// TestProperty_PersistenceRoundTrip verifies that any sequence of mutations
// reloads to an identical snapshot.
func TestProperty_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	run := 0
	rapid.Check(t, func(t *rapid.T) {
		run++
		path := filepath.Join(dir, fmt.Sprintf("run-%d.json", run))
		now := baseTime
		clock := func() time.Time { return now }

		idx := Open(Options{Store: store.NewFile(path), PersistDecisions: true, Now: clock})
		ids := []string{"a", "b", "c"}
		steps := rapid.IntRange(1, 15).Draw(t, "steps")
		for i := range steps {
			now = now.Add(time.Minute)
			id := rapid.SampledFrom(ids).Draw(t, "id")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if _, err := idx.AddEvent(AddEventInput{ID: id, Name: "Event " + id, Keywords: []string{id}}); err != nil {
					t.Fatalf("add: %v", err)
				}
			case 1:
				c := record.Communication{
					Source:    rapid.SampledFrom([]record.Source{record.SourceChat, record.SourceEmail}).Draw(t, "source"),
					Timestamp: baseTime.Add(time.Duration(rapid.IntRange(0, 100).Draw(t, "offset")) * time.Second),
					Text:      "mixer " + fmt.Sprint(i),
					Subject:   "cable",
					FirstName: rapid.SampledFrom([]string{"Jamie", "Morgan", ""}).Draw(t, "first"),
				}
				if err := idx.RecordCommunication(id, c); err != nil {
					t.Fatalf("record: %v", err)
				}
			case 2:
				if _, err := idx.Resolve(record.SourceEmail, "subject", func([]record.Profile) record.Verdict {
					return record.Create(record.Draft{Name: "auto"}, "r")
				}); err != nil {
					t.Fatalf("resolve: %v", err)
				}
			}
		}

		before := snapshotJSON(t, idx)
		idx.Close()

		reopened := Open(Options{Store: store.NewFile(path), PersistDecisions: true, Now: clock})
		defer reopened.Close()
		if after := snapshotJSON(t, reopened); after != before {
			t.Fatalf("round trip mismatch:\nbefore %s\nafter  %s", before, after)
		}
		if !slices.Equal(idx.Search("", nil), reopened.Search("", nil)) {
			t.Fatalf("catalog order changed")
		}
	})
}

func snapshotJSON(t *rapid.T, idx *Index) string {
	snap, err := idx.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
