package record

import (
	"slices"
	"strings"
	"time"
)

// Source identifies the channel a communication arrived on.
type Source string

const (
	SourceChat  Source = "chat"
	SourceEmail Source = "email"
)

// ParseSource maps user input onto a Source. Accepts "whatsapp" and "mail" as aliases.
// An empty string returns ("", true) meaning "no filter".
func ParseSource(s string) (Source, bool) {
	switch Normalize(s) {
	case "":
		return "", true
	case "chat", "whatsapp":
		return SourceChat, true
	case "email", "mail":
		return SourceEmail, true
	default:
		return "", false
	}
}

// Communication is one normalized chat message or email.
// It is never mutated after it is appended to an event's log.
type Communication struct {
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id,omitempty"`

	// Chat fields
	GroupID   string   `json:"group_id,omitempty"`
	GroupName string   `json:"group_name,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	Text      string   `json:"text,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`

	// Email fields
	ThreadID      string   `json:"thread_id,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Body          string   `json:"body,omitempty"`
	FromName      string   `json:"from_name,omitempty"`
	FromAddress   string   `json:"from_address,omitempty"`
	To            []string `json:"to,omitempty"`
	Cc            []string `json:"cc,omitempty"`
	Participants  []string `json:"participants,omitempty"`
	FirstNames    []string `json:"first_names,omitempty"`
	EmailMentions []string `json:"email_mentions,omitempty"`

	Links []string `json:"links"`
}

// Clone returns a copy of c with its own slices.
func (c Communication) Clone() Communication {
	c.Mentions = slices.Clone(c.Mentions)
	c.To = slices.Clone(c.To)
	c.Cc = slices.Clone(c.Cc)
	c.Participants = slices.Clone(c.Participants)
	c.FirstNames = slices.Clone(c.FirstNames)
	c.EmailMentions = slices.Clone(c.EmailMentions)
	c.Links = slices.Clone(c.Links)
	return c
}

// Content is the free text scanned for equipment mentions.
func (c *Communication) Content() string {
	if c.Source == SourceEmail {
		return strings.TrimSpace(c.Subject + " " + c.Body)
	}
	return c.Text
}

// Names returns the participant first names carried by the record.
func (c *Communication) Names() []string {
	names := make([]string, 0, len(c.FirstNames)+1)
	if c.FirstName != "" {
		names = append(names, c.FirstName)
	}
	return append(names, c.FirstNames...)
}

// Valid reports whether the record has a known source.
func (c *Communication) Valid() bool {
	return c.Source == SourceChat || c.Source == SourceEmail
}
