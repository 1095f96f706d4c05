// Package report renders a single event as a markdown digest, and as HTML
// via goldmark.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/record"
)

// Source is the read side of the index a digest is built from.
type Source interface {
	Get(eventID string) (*record.Event, bool)
	Summary(eventID string) (*index.Summary, bool)
	Communications(eventID, window string, source record.Source) ([]record.Communication, bool)
	Decisions() []record.Decision
}

// Digest is everything a report shows about one event.
type Digest struct {
	Summary        *index.Summary
	Participants   []string
	Window         string
	Communications []record.Communication
	Decisions      []record.Decision
}

// Build gathers the digest for eventID. window limits the communication
// list the same way index.Communications does. ok is false for unknown events.
func Build(src Source, eventID, window string) (*Digest, bool) {
	summary, ok := src.Summary(eventID)
	if !ok {
		return nil, false
	}
	ev, ok := src.Get(eventID)
	if !ok {
		return nil, false
	}
	comms, _ := src.Communications(eventID, window, "")

	d := &Digest{
		Summary:        summary,
		Participants:   ev.Participants.Names(),
		Window:         window,
		Communications: comms,
	}
	for _, dec := range src.Decisions() {
		if dec.EventID == eventID {
			d.Decisions = append(d.Decisions, dec)
		}
	}
	return d, true
}

// Markdown renders the digest.
func (d *Digest) Markdown() string {
	s := d.Summary
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(s.Name))
	fmt.Fprintf(&b, "- **Event id:** `%s`\n", s.EventID)
	if s.Date != "" {
		fmt.Fprintf(&b, "- **Date:** %s\n", escape(s.Date))
	}
	if s.Promoter != "" {
		fmt.Fprintf(&b, "- **Promoter:** %s\n", escape(s.Promoter))
	}
	fmt.Fprintf(&b, "- **Origin:** %s\n", s.Origin)
	fmt.Fprintf(&b, "- **Last activity:** %s\n\n", formatTime(s.LastActivity))

	b.WriteString("## Activity\n\n")
	b.WriteString("| Total | Chat | Email | Last 24h | Participants |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		s.TotalCommunications, s.ChatMessages, s.EmailMessages, s.RecentActivity24h, s.UniqueParticipants)

	if len(s.TopEquipment) > 0 {
		b.WriteString("## Equipment\n\n")
		for _, eq := range s.TopEquipment {
			fmt.Fprintf(&b, "- %s: %d\n", escape(eq.Keyword), eq.Count)
		}
		b.WriteString("\n")
	}

	if len(d.Participants) > 0 {
		b.WriteString("## Participants\n\n")
		escaped := make([]string, len(d.Participants))
		for i, p := range d.Participants {
			escaped[i] = escape(p)
		}
		b.WriteString(strings.Join(escaped, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString("## Communications")
	if d.Window != "" {
		fmt.Fprintf(&b, " (last %s)", escape(d.Window))
	}
	b.WriteString("\n\n")
	if len(d.Communications) == 0 {
		b.WriteString("_None._\n\n")
	}
	for _, c := range d.Communications {
		fmt.Fprintf(&b, "- **%s** %s", formatTime(c.Timestamp), c.Source)
		if who := author(c); who != "" {
			fmt.Fprintf(&b, " · %s", escape(who))
		}
		fmt.Fprintf(&b, ": %s\n", escape(oneLine(c)))
		for _, link := range c.Links {
			fmt.Fprintf(&b, "  - <%s>\n", link)
		}
	}

	if len(d.Decisions) > 0 {
		b.WriteString("\n## Categorization\n\n")
		for _, dec := range d.Decisions {
			fmt.Fprintf(&b, "- %s %s %q: %s\n", formatTime(dec.Timestamp), dec.SourceType, dec.SourceName, escape(dec.Reason))
		}
	}
	return b.String()
}

var converter = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the digest's markdown. Raw HTML in message text is not passed
// through (goldmark's default).
func (d *Digest) HTML() (string, error) {
	var buf bytes.Buffer
	if err := converter.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", errors.NewInternal(err)
	}
	return buf.String(), nil
}

func author(c record.Communication) string {
	if c.Source == record.SourceEmail {
		if c.FromName != "" {
			return c.FromName
		}
		return c.FromAddress
	}
	return c.Sender
}

func oneLine(c record.Communication) string {
	text := c.Text
	if c.Source == record.SourceEmail {
		text = c.Subject
		if body := strings.TrimSpace(c.Body); body != "" {
			text += " | " + body
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`,
	`[`, `\[`, `]`, `\]`, `<`, `&lt;`, `>`, `&gt;`, `#`, `\#`, `|`, `\|`,
)

// escape neutralizes markdown syntax in user-supplied text.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}
