package gateway

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hpungsan/venueindex/internal/record"
)

// EmailRule builds the email thread rule:
//  1. the sender address matches an event's promoter (a date in the subject
//     equal to the event's date only strengthens the reason);
//  2. subject or body mentions an event's promoter or name;
//  3. a date in subject or body equals an event's date, else a new event is
//     created for that date;
//  4. otherwise a new general event named after the subject is created.
func EmailRule(subject, sender, body string) record.Rule {
	return func(events []record.Profile) record.Verdict {
		for _, ev := range events {
			if !senderMatchesPromoter(sender, ev.Promoter) {
				continue
			}
			if date := FindDate(subject); date != "" && strings.EqualFold(date, strings.TrimSpace(ev.Date)) {
				return record.Matched(ev.ID, fmt.Sprintf("Sender matches promoter '%s', date %s confirms", ev.Promoter, date))
			}
			return record.Matched(ev.ID, fmt.Sprintf("Sender domain matches promoter '%s'", ev.Promoter))
		}

		text := strings.TrimSpace(subject + " " + body)
		for _, ev := range events {
			if record.ContainsFold(text, ev.Promoter) {
				return record.Matched(ev.ID, fmt.Sprintf("Email mentions promoter '%s'", ev.Promoter))
			}
			if record.ContainsFold(text, ev.Name) {
				return record.Matched(ev.ID, fmt.Sprintf("Email mentions event name '%s'", ev.Name))
			}
		}

		draft := record.Draft{Name: subject}
		if date := FindDate(text); date != "" {
			if ev, ok := dateMatch(events, date); ok {
				return record.Matched(ev.ID, fmt.Sprintf("Found date %s in email, matching event '%s'", date, ev.Name))
			}
			draft.Date = date
			return record.Create(draft, fmt.Sprintf("No known event on %s; created new event entry", date))
		}
		return record.Create(draft, "Uncategorized thread; created new general event entry")
	}
}

// senderMatchesPromoter reports whether the address contains the promoter,
// or the address's domain contains the promoter with spaces and punctuation
// removed ("Blue Note" matches "bookings@bluenote.com").
func senderMatchesPromoter(sender, promoter string) bool {
	if record.ContainsFold(sender, promoter) {
		return true
	}
	compact := alnum(promoter)
	if compact == "" {
		return false
	}
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	return strings.Contains(strings.ToLower(sender[at+1:]), compact)
}

// alnum lowercases s and drops everything but letters and digits.
func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
