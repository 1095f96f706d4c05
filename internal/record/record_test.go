package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/venueindex/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Launch   Party ", "launch party"},
		{"ACME", "acme"},
		{"\tmulti\nline ", "multi line"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Random Chat", 50); got != "Random Chat" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("ééééé", 3); got != "ééé" {
		t.Errorf("Truncate runes = %q, want %q", got, "ééé")
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("Truncate disabled = %q", got)
	}
}

func TestContainsFold(t *testing.T) {
	require.True(t, ContainsFold("Acme Crew Oct15", "acme"))
	require.False(t, ContainsFold("Acme Crew", ""))
	require.False(t, ContainsFold("Acme Crew", "   "))
	require.False(t, ContainsFold("Acme Crew", "Launch"))
}

func TestRoster_CaseInsensitiveFirstCasingKept(t *testing.T) {
	r := NewRoster("Jamie", "jamie", "  ", "Sam")
	require.Equal(t, []string{"Jamie", "Sam"}, r.Names())
	require.True(t, r.Contains("JAMIE"))
	require.False(t, r.Contains("Alex"))

	require.False(t, r.Add("SAM"))
	require.True(t, r.Add("Alex"))
	require.Equal(t, 3, r.Len())
}

func TestRoster_JSONRoundTrip(t *testing.T) {
	r := NewRoster("Zed", "Amy", "zed")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `["Zed","Amy"]`, string(data))

	var back Roster
	require.NoError(t, json.Unmarshal([]byte(`["Bo","bo","Cy"]`), &back))
	require.Equal(t, []string{"Bo", "Cy"}, back.Names())
}

func TestRoster_NilSafe(t *testing.T) {
	var r *Roster
	require.Equal(t, 0, r.Len())
	require.False(t, r.Contains("x"))
	require.Equal(t, []string{}, r.Names())
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in     string
		want   Source
		wantOK bool
	}{
		{"", "", true},
		{"chat", SourceChat, true},
		{"WhatsApp", SourceChat, true},
		{"Email", SourceEmail, true},
		{"mail", SourceEmail, true},
		{"sms", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSource(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSource(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCommunication_ContentAndNames(t *testing.T) {
	chat := Communication{Source: SourceChat, Text: "bring the mixer", FirstName: "Jamie"}
	require.Equal(t, "bring the mixer", chat.Content())
	require.Equal(t, []string{"Jamie"}, chat.Names())

	mail := Communication{Source: SourceEmail, Subject: "Stage plot", Body: "laser cue list", FirstNames: []string{"Ana", "Bo"}}
	require.Equal(t, "Stage plot laser cue list", mail.Content())
	require.Equal(t, []string{"Ana", "Bo"}, mail.Names())

	require.True(t, mail.Valid())
	require.False(t, (&Communication{}).Valid())
}

func TestNewEvent_Validation(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	_, err := NewEvent(" ", "Launch Party", OriginManual, now)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = NewEvent("launch", "", OriginManual, now)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	e, err := NewEvent("launch", "Launch Party", OriginManual, now)
	require.NoError(t, err)
	require.Equal(t, 0, e.Participants.Len())
	require.Empty(t, e.Communications)
	require.Equal(t, 0, e.Equipment.Len())
	require.Equal(t, now, e.CreatedAt)
	require.Equal(t, now, e.LastActivity)
}

func TestEvent_JSONKeepsEquipmentOrder(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	e, err := NewEvent("launch", "Launch Party", OriginManual, now)
	require.NoError(t, err)
	e.Equipment.Set("stage", 2)
	e.Equipment.Set("cable", 5)
	e.Equipment.Set("mixer", 1)

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	back.Init()
	require.Equal(t, []EquipmentCount{
		{Keyword: "stage", Count: 2},
		{Keyword: "cable", Count: 5},
		{Keyword: "mixer", Count: 1},
	}, back.EquipmentCounts())
}

func TestEvent_Profile(t *testing.T) {
	e, err := NewEvent("launch", "Launch Party", OriginManual, time.Now())
	require.NoError(t, err)
	e.Promoter = "Acme"
	e.Keywords = []string{"launch"}
	e.Participants.Add("Jamie")

	p := e.Profile()
	require.Equal(t, "launch", p.ID)
	require.Equal(t, "Acme", p.Promoter)
	require.Equal(t, []string{"Jamie"}, p.Roster)

	p.Keywords[0] = "mutated"
	require.Equal(t, "launch", e.Keywords[0], "profile must not alias event keywords")
}

func TestVerdictConstructors(t *testing.T) {
	m := Matched("event_1", "because")
	require.Equal(t, "event_1", m.EventID)
	require.Nil(t, m.Create)

	c := Create(Draft{Name: "Random Chat"}, "fallback")
	require.Empty(t, c.EventID)
	require.NotNil(t, c.Create)
	require.Equal(t, "Random Chat", c.Create.Name)
}

func TestEvent_CloneIsIndependent(t *testing.T) {
	ev, err := NewEvent("e1", "Launch", OriginManual, time.Now())
	require.NoError(t, err)
	ev.Keywords = append(ev.Keywords, "launch")
	ev.Participants.Add("Jamie")
	ev.Equipment.Set("mixer", 1)

	ev.Communications = append(ev.Communications, Communication{
		Source:   SourceChat,
		Text:     "rider https://acme.example/rider",
		Mentions: []string{"Morgan"},
		Links:    []string{"https://acme.example/rider"},
	})

	c := ev.Clone()
	c.Keywords[0] = "changed"
	c.Participants.Add("Morgan")
	c.Equipment.Set("mixer", 5)
	c.Communications[0].Links[0] = "https://evil.example"
	c.Communications[0].Mentions[0] = "Nobody"

	require.Equal(t, []string{"launch"}, ev.Keywords)
	require.False(t, ev.Participants.Contains("Morgan"))
	n, _ := ev.Equipment.Get("mixer")
	require.Equal(t, 1, n)
	require.Equal(t, []string{"https://acme.example/rider"}, ev.Communications[0].Links)
	require.Equal(t, []string{"Morgan"}, ev.Communications[0].Mentions)
}

func TestCommunication_Clone(t *testing.T) {
	orig := Communication{
		Source:        SourceEmail,
		To:            []string{"a@example.com"},
		Cc:            []string{"b@example.com"},
		Participants:  []string{"Jamie Rivera"},
		FirstNames:    []string{"Jamie"},
		EmailMentions: []string{"Morgan"},
		Links:         []string{},
	}
	c := orig.Clone()
	require.Equal(t, orig, c)

	c.To[0] = "x"
	c.Cc[0] = "x"
	c.Participants[0] = "x"
	c.FirstNames[0] = "x"
	c.EmailMentions[0] = "x"
	c.Links = append(c.Links, "https://x.example")

	require.Equal(t, []string{"a@example.com"}, orig.To)
	require.Equal(t, []string{"b@example.com"}, orig.Cc)
	require.Equal(t, []string{"Jamie Rivera"}, orig.Participants)
	require.Equal(t, []string{"Jamie"}, orig.FirstNames)
	require.Equal(t, []string{"Morgan"}, orig.EmailMentions)
	require.Empty(t, orig.Links)
	require.NotNil(t, orig.Clone().Links)
	require.Nil(t, Communication{}.Clone().Links)
}
