package record

import "time"

// Decision is one categorization outcome in the audit trail.
type Decision struct {
	Timestamp  time.Time `json:"timestamp"`
	SourceType Source    `json:"source_type"`
	SourceName string    `json:"source_name"`
	EventID    string    `json:"event_id"`
	Reason     string    `json:"reason"`
	Created    bool      `json:"created"`
}

// Profile is the matching view of one cataloged event.
type Profile struct {
	ID       string
	Name     string
	Date     string
	Promoter string
	Keywords []string
	Roster   []string
}

// Draft describes an event a categorization rule wants created.
type Draft struct {
	Name         string
	Date         string
	Participants []string
}

// Verdict is the result of running categorization rules over the catalog:
// either an existing event id, or a Draft to create.
type Verdict struct {
	EventID string
	Create  *Draft
	Reason  string
}

// Matched returns a verdict selecting an existing event.
func Matched(eventID, reason string) Verdict {
	return Verdict{EventID: eventID, Reason: reason}
}

// Create returns a verdict requesting a new event.
func Create(d Draft, reason string) Verdict {
	return Verdict{Create: &d, Reason: reason}
}

// Rule inspects the catalog, given as profiles in insertion order, and
// decides where a communication belongs.
type Rule func(events []Profile) Verdict
