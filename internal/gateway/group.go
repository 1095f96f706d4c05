package gateway

import (
	"fmt"
	"strings"

	"github.com/hpungsan/venueindex/internal/record"
)

// GroupRule builds the chat group rule:
//  1. the group name contains an event's name, promoter or a keyword;
//  2. a participant is an event's promoter (first name), else the group
//     shares members with an event's roster;
//  3. a date in the group name equals an event's date, else a new event is
//     created for that date;
//  4. otherwise a new event named after the group is created.
func GroupRule(name string, participants []string) record.Rule {
	return func(events []record.Profile) record.Verdict {
		if v, ok := groupNameTier(events, name); ok {
			return v
		}
		if v, ok := participantTier(events, participants); ok {
			return v
		}

		draft := record.Draft{Name: name, Participants: participants}
		if date := FindDate(name); date != "" {
			if ev, ok := dateMatch(events, date); ok {
				return record.Matched(ev.ID, fmt.Sprintf("Detected date %s matching event '%s'", date, ev.Name))
			}
			draft.Date = date
			return record.Create(draft, fmt.Sprintf("No match found; created new event entry for date %s", date))
		}
		return record.Create(draft, "No known event criteria matched; initialized new event category")
	}
}

func groupNameTier(events []record.Profile, name string) (record.Verdict, bool) {
	for _, ev := range events {
		if record.ContainsFold(name, ev.Name) {
			return record.Matched(ev.ID, fmt.Sprintf("Group name contains event name '%s'", ev.Name)), true
		}
		if record.ContainsFold(name, ev.Promoter) {
			return record.Matched(ev.ID, fmt.Sprintf("Group name contains promoter '%s' for event '%s'", ev.Promoter, ev.Name)), true
		}
		for _, kw := range ev.Keywords {
			if record.ContainsFold(name, kw) {
				return record.Matched(ev.ID, fmt.Sprintf("Group name contains keyword '%s' for event '%s'", kw, ev.Name)), true
			}
		}
	}
	return record.Verdict{}, false
}

func participantTier(events []record.Profile, participants []string) (record.Verdict, bool) {
	group := record.NewRoster(participants...)
	if group.Len() == 0 {
		return record.Verdict{}, false
	}

	// Promoter first names take priority over roster overlap.
	for _, ev := range events {
		first := promoterFirstName(ev.Promoter)
		if first == "" {
			continue
		}
		for _, p := range group.Names() {
			if record.Normalize(p) == record.Normalize(first) {
				return record.Matched(ev.ID, fmt.Sprintf("Participant '%s' is promoter for event '%s'", p, ev.Name)), true
			}
		}
	}

	for _, ev := range events {
		shared := 0
		for _, member := range ev.Roster {
			if group.Contains(member) {
				shared++
			}
		}
		if shared > 0 {
			return record.Matched(ev.ID, fmt.Sprintf("Group shares %d members with event '%s'", shared, ev.Name)), true
		}
	}
	return record.Verdict{}, false
}

func promoterFirstName(promoter string) string {
	fields := strings.Fields(promoter)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
