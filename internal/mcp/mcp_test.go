package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/store"
)

// testSetup creates an index backed by a temporary JSON store.
func testSetup(t *testing.T) (*index.Index, *config.Config) {
	t.Helper()

	st := store.NewFile(filepath.Join(t.TempDir(), "event_index.json"))
	idx := index.Open(index.Options{Store: st})
	t.Cleanup(func() { idx.Close() })

	return idx, config.DefaultConfig()
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func addAcme(t *testing.T, h *Handlers) {
	t.Helper()
	result, err := h.HandleAdd(context.Background(), makeRequest(map[string]any{
		"id":           "acme_party",
		"name":         "Acme Summer Party",
		"date":         "2025-07-12",
		"promoter":     "Acme",
		"keywords":     []any{"summer"},
		"participants": []any{"Jane Doe"},
	}))
	if err != nil {
		t.Fatalf("HandleAdd error: %v", err)
	}
	parseOutput(t, result)
}

func TestHandleAdd(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()

	tests := []struct {
		name        string
		args        map[string]any
		wantError   bool
		errorCode   string
		wantCreated bool
	}{
		{
			name:        "new event",
			args:        map[string]any{"id": "e1", "name": "Warehouse Night"},
			wantCreated: true,
		},
		{
			name:        "same id again",
			args:        map[string]any{"id": "e1", "name": "Other"},
			wantCreated: false,
		},
		{
			name:      "missing name",
			args:      map[string]any{"id": "e2"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "missing id",
			args:      map[string]any{"name": "Nameless"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "wrong type",
			args:      map[string]any{"id": 7, "name": "Seven"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAdd(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			output := parseOutput(t, result)
			if output["created"] != tt.wantCreated {
				t.Errorf("created = %v, want %v", output["created"], tt.wantCreated)
			}
		})
	}

	if got := idx.Statistics().TotalEvents; got != 1 {
		t.Errorf("total events = %d, want 1", got)
	}
}

func TestHandleCategorizeGroup(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	result, err := h.HandleCategorizeGroup(ctx, makeRequest(map[string]any{
		"group_name":   "ACME crew chat",
		"participants": []any{"Sam"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["event_id"] != "acme_party" {
		t.Errorf("event_id = %v, want acme_party", output["event_id"])
	}
	if output["reason"] == "" {
		t.Error("expected a reason")
	}

	result, err = h.HandleCategorizeGroup(ctx, makeRequest(map[string]any{
		"group_name": "Random Chat",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output = parseOutput(t, result)
	newID, _ := output["event_id"].(string)
	if newID == "" || newID == "acme_party" {
		t.Errorf("expected a new event, got %q", newID)
	}
	if _, ok := idx.Get(newID); !ok {
		t.Errorf("event %q was not created", newID)
	}

	result, err = h.HandleCategorizeGroup(ctx, makeRequest(map[string]any{"group_name": "  "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")

	if got := len(idx.Decisions()); got != 2 {
		t.Errorf("decisions = %d, want 2", got)
	}
}

func TestHandleCategorizeEmail(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	result, err := h.HandleCategorizeEmail(ctx, makeRequest(map[string]any{
		"subject": "Load-in times",
		"sender":  "bookings@acme-events.com",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["event_id"] != "acme_party" {
		t.Errorf("event_id = %v, want acme_party", output["event_id"])
	}

	result, err = h.HandleCategorizeEmail(ctx, makeRequest(map[string]any{"sender": "x@y.com"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleIngestChat(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	for i, text := range []string{"mixer arrives at 5", "see https://acme.example.com/rider"} {
		result, err := h.HandleIngestChat(ctx, makeRequest(map[string]any{
			"id":           fmt.Sprintf("m%d", i),
			"group_id":     "g-1",
			"group_name":   "Acme production",
			"sender":       "Doe, Jane",
			"text":         text,
			"timestamp":    fmt.Sprintf("2025-07-01T10:0%d:00Z", i),
			"participants": []any{"Jane Doe"},
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		if output["event_id"] != "acme_party" {
			t.Errorf("event_id = %v, want acme_party", output["event_id"])
		}
		if want := i == 0; output["categorized"] != want {
			t.Errorf("message %d categorized = %v, want %v", i, output["categorized"], want)
		}
	}

	ev, ok := idx.Get("acme_party")
	if !ok {
		t.Fatal("acme_party missing")
	}
	if len(ev.Communications) != 2 {
		t.Errorf("communications = %d, want 2", len(ev.Communications))
	}
	if len(idx.Decisions()) != 1 {
		t.Errorf("group should be categorized once, got %d decisions", len(idx.Decisions()))
	}

	result, err := h.HandleIngestChat(ctx, makeRequest(map[string]any{"text": "orphan"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleIngestEmail(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	result, err := h.HandleIngestEmail(ctx, makeRequest(map[string]any{
		"message_id":   "<1@acme>",
		"thread_id":    "t-1",
		"subject":      "Acme Summer Party rider",
		"body":         "Two speakers please, contact ops@venue.example",
		"from_name":    "Jane Doe",
		"from_address": "jane@acme.com",
		"to":           []any{"Ops <ops@venue.example>"},
		"timestamp":    "2025-07-01T09:00:00Z",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["event_id"] != "acme_party" {
		t.Errorf("event_id = %v, want acme_party", output["event_id"])
	}
	rec, ok := output["record"].(map[string]any)
	if !ok {
		t.Fatalf("record missing: %v", output)
	}
	if rec["source"] != "email" {
		t.Errorf("source = %v, want email", rec["source"])
	}
}

func TestHandleCommunications(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	if _, err := h.HandleIngestChat(ctx, makeRequest(map[string]any{
		"id":         "m1",
		"group_id":   "g-1",
		"group_name": "Acme production",
		"sender":     "Jane",
		"text":       "hello",
		"timestamp":  "2025-07-01T10:00:00Z",
	})); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantCount float64
		errorCode string
	}{
		{name: "all", args: map[string]any{"event_id": "acme_party"}, wantCount: 1},
		{name: "chat only", args: map[string]any{"event_id": "acme_party", "source": "chat"}, wantCount: 1},
		{name: "email only", args: map[string]any{"event_id": "acme_party", "source": "email"}, wantCount: 0},
		{name: "unknown event", args: map[string]any{"event_id": "nope"}, wantCount: 0},
		{name: "bad source", args: map[string]any{"event_id": "acme_party", "source": "fax"}, errorCode: "UNSUPPORTED"},
		{name: "missing id", args: map[string]any{}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCommunications(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			output := parseOutput(t, result)
			if output["count"] != tt.wantCount {
				t.Errorf("count = %v, want %v", output["count"], tt.wantCount)
			}
		})
	}
}

func TestHandleSummary(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	result, err := h.HandleSummary(ctx, makeRequest(map[string]any{"event_id": "acme_party"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["event_name"] != "Acme Summer Party" {
		t.Errorf("event_name = %v", output["event_name"])
	}
	if output["promoter"] != "Acme" {
		t.Errorf("promoter = %v", output["promoter"])
	}

	result, err = h.HandleSummary(ctx, makeRequest(map[string]any{"event_id": "missing"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output := parseOutput(t, result); len(output) != 0 {
		t.Errorf("unknown event summary = %v, want {}", output)
	}
}

func TestHandleSearch(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)
	if _, err := idx.AddEvent(index.AddEventInput{ID: "winter", Name: "Winter Ball", Date: "2025-12-20"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{name: "empty query", args: map[string]any{}, want: 2},
		{name: "by promoter", args: map[string]any{"query": "acme"}, want: 1},
		{name: "by participant", args: map[string]any{"query": "jane"}, want: 1},
		{name: "date range", args: map[string]any{"start_date": "2025-12-01"}, want: 1},
		{name: "no match", args: map[string]any{"query": "zzz"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			output := parseOutput(t, result)
			ids, ok := output["event_ids"].([]any)
			if !ok {
				t.Fatalf("event_ids missing or not a list: %v", output)
			}
			if len(ids) != tt.want {
				t.Errorf("got %d ids, want %d", len(ids), tt.want)
			}
		})
	}
}

func TestHandleStatisticsAndDecisions(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	if _, err := h.HandleCategorizeGroup(ctx, makeRequest(map[string]any{"group_name": "Acme logistics"})); err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if _, err := h.HandleCategorizeGroup(ctx, makeRequest(map[string]any{"group_name": "Random Chat"})); err != nil {
		t.Fatalf("categorize: %v", err)
	}

	result, err := h.HandleStatistics(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := parseOutput(t, result)
	if stats["total_events"] != float64(2) {
		t.Errorf("total_events = %v, want 2", stats["total_events"])
	}

	result, err = h.HandleDecisions(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := parseOutput(t, result)["decisions"].([]any)
	if len(all) != 2 {
		t.Errorf("decisions = %d, want 2", len(all))
	}

	result, err = h.HandleDecisions(ctx, makeRequest(map[string]any{"event_id": "acme_party"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filtered := parseOutput(t, result)["decisions"].([]any)
	if len(filtered) != 1 {
		t.Errorf("filtered decisions = %d, want 1", len(filtered))
	}
}

func TestHandleExport(t *testing.T) {
	idx, cfg := testSetup(t)
	h := NewHandlers(idx, cfg)
	ctx := context.Background()
	addAcme(t, h)

	path := filepath.Join(t.TempDir(), "export.json")
	result, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["path"] != path {
		t.Errorf("path = %v, want %v", output["path"], path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if _, ok := doc["events"].(map[string]any)["acme_party"]; !ok {
		t.Errorf("export missing acme_party: %s", data)
	}

	result, err = h.HandleExport(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	idx, cfg := testSetup(t)

	s := NewServer(idx, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"event_add",
		"event_categorize_group",
		"event_categorize_email",
		"event_ingest_chat",
		"event_ingest_email",
		"event_communications",
		"event_summary",
		"event_search",
		"event_statistics",
		"event_decisions",
		"event_export",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	idx, cfg := testSetup(t)

	cfg.DisabledTools = []string{"event_export", "event_ingest_chat", "event_ingest_email"}
	s := NewServer(idx, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 8 {
		t.Errorf("registered tool count = %d, want 8", len(tools))
	}

	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"event_add", "event_summary", "event_search"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	idx, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(idx, cfg, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"event_export", "event_add"}, wantLen: 0},
		{name: "one unknown", input: []string{"event_export", "store"}, wantLen: 1},
		{name: "all unknown", input: []string{"foo", "bar", "baz"}, wantLen: 3},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 11 {
		t.Errorf("AllToolNames() returned %d names, want 11", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewPersistence("save", fmt.Errorf("open /tmp/secret.json: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrPersistence) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrPersistence)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected persistence errors to omit details")
	}
	if errObj["message"] != "an internal error occurred" {
		t.Fatalf("message leaked: %v", errObj["message"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewUnsupported("source", "fax"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrUnsupported) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrUnsupported)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-internal errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, "INTERNAL")
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success")
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
