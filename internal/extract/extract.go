// Package extract normalizes raw chat messages and emails into records.
// Extraction never fails: malformed or missing fields degrade to empty values.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/venueindex/internal/record"
)

// MinLinkLength rejects degenerate URL matches such as "http://a".
const MinLinkLength = 10

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// ChatMessage is the inbound chat payload.
type ChatMessage struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Email is the inbound email payload. To and Cc entries are either a bare
// name or "Name <address>".
type Email struct {
	MessageID   string   `json:"message_id"`
	ThreadID    string   `json:"thread_id"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	FromName    string   `json:"from_name"`
	FromAddress string   `json:"from_address"`
	To          []string `json:"to"`
	Cc          []string `json:"cc"`
	Timestamp   string   `json:"timestamp"`
}

// Chat converts one chat message into a record.
func Chat(msg ChatMessage) record.Communication {
	return record.Communication{
		Source:    record.SourceChat,
		Timestamp: ParseTimestamp(msg.Timestamp),
		MessageID: msg.ID,
		GroupID:   msg.GroupID,
		GroupName: msg.GroupName,
		Sender:    msg.Sender,
		FirstName: FirstName(msg.Sender),
		Text:      msg.Text,
		Links:     Links(msg.Text),
		Mentions:  Mentions(msg.Text),
	}
}

// FromEmail converts one email into a record.
func FromEmail(msg Email) record.Communication {
	content := msg.Subject + " " + msg.Body

	var participants []string
	firstNames := record.NewRoster()

	if name := strings.TrimSpace(msg.FromName); name != "" {
		participants = append(participants, name)
		firstNames.Add(FirstName(name))
	}
	for _, field := range [][]string{msg.To, msg.Cc} {
		for _, recipient := range field {
			name := RecipientName(recipient)
			if name == "" {
				continue
			}
			participants = append(participants, name)
			firstNames.Add(FirstName(name))
		}
	}

	var names []string
	if firstNames.Len() > 0 {
		names = firstNames.Names()
	}

	return record.Communication{
		Source:        record.SourceEmail,
		Timestamp:     ParseTimestamp(msg.Timestamp),
		MessageID:     msg.MessageID,
		ThreadID:      msg.ThreadID,
		Subject:       msg.Subject,
		Body:          msg.Body,
		FromName:      msg.FromName,
		FromAddress:   msg.FromAddress,
		To:            nonEmpty(msg.To),
		Cc:            nonEmpty(msg.Cc),
		FirstName:     FirstName(msg.FromName),
		Participants:  participants,
		FirstNames:    names,
		Links:         Links(content),
		EmailMentions: emailPattern.FindAllString(content, -1),
	}
}

// Links returns the validated absolute URLs in text, in order of appearance.
// Duplicates are kept.
func Links(text string) []string {
	var links []string
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		if link, ok := CleanURL(candidate); ok {
			links = append(links, link)
		}
	}
	return links
}

// CleanURL strips trailing punctuation and validates the result.
func CleanURL(url string) (string, bool) {
	url = strings.TrimRight(url, ".,;:!?)")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", false
	}
	if len(url) < MinLinkLength || strings.ContainsAny(url, " \t\r\n") {
		return "", false
	}
	return url, true
}

// Mentions returns the @-handles in text without the leading "@".
func Mentions(text string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// FirstName extracts a first name from a display name.
// "Last, First Middle" yields "First"; otherwise the first whitespace token.
func FirstName(fullName string) string {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return ""
	}
	if before, after, ok := strings.Cut(fullName, ","); ok {
		if fields := strings.Fields(after); len(fields) > 0 {
			return fields[0]
		}
		fullName = before
	}
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// RecipientName returns the display name of a recipient entry.
// "Name <addr>" yields Name; a bare address or empty display name yields "".
func RecipientName(entry string) string {
	entry = strings.TrimSpace(entry)
	if open := strings.Index(entry, "<"); open >= 0 && strings.Contains(entry[open:], ">") {
		return strings.Trim(strings.TrimSpace(entry[:open]), `"`)
	}
	if strings.Contains(entry, "@") {
		return ""
	}
	return entry
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an inbound timestamp. Zone-less values are read as UTC.
// Unix seconds are accepted. Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
