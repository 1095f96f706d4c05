package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/extract"
	"github.com/hpungsan/venueindex/internal/gateway"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/ingest"
	"github.com/hpungsan/venueindex/internal/record"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	idx         *index.Index
	categorizer *gateway.Categorizer
	router      *ingest.Router
	cfg         *config.Config
}

// NewHandlers creates a new Handlers instance. The ingest route cache lives
// as long as the handlers do.
func NewHandlers(idx *index.Index, cfg *config.Config) *Handlers {
	cat := gateway.New(idx)
	return &Handlers{
		idx:         idx,
		categorizer: cat,
		router:      ingest.NewRouter(cat, idx),
		cfg:         cfg,
	}
}

// Request types for each tool

// AddRequest represents the arguments for event_add.
type AddRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Date         string   `json:"date,omitempty"`
	Promoter     string   `json:"promoter,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// CategorizeGroupRequest represents the arguments for event_categorize_group.
type CategorizeGroupRequest struct {
	GroupName    string   `json:"group_name"`
	Participants []string `json:"participants,omitempty"`
}

// CategorizeEmailRequest represents the arguments for event_categorize_email.
type CategorizeEmailRequest struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender,omitempty"`
	Body    string `json:"body,omitempty"`
}

// IngestChatRequest represents the arguments for event_ingest_chat.
type IngestChatRequest struct {
	extract.ChatMessage
	Participants []string `json:"participants,omitempty"`
}

// CommunicationsRequest represents the arguments for event_communications.
type CommunicationsRequest struct {
	EventID string `json:"event_id"`
	Window  string `json:"window,omitempty"`
	Source  string `json:"source,omitempty"`
}

// EventRequest addresses a single event.
type EventRequest struct {
	EventID string `json:"event_id"`
}

// SearchRequest represents the arguments for event_search.
type SearchRequest struct {
	Query     string `json:"query,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// ExportRequest represents the arguments for event_export.
type ExportRequest struct {
	Path string `json:"path"`
}

// Response types

// AddResponse is the result of event_add.
type AddResponse struct {
	EventID string `json:"event_id"`
	Created bool   `json:"created"`
}

// CategorizeResponse is the result of both categorize tools.
type CategorizeResponse struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

// CommunicationsResponse is the result of event_communications.
type CommunicationsResponse struct {
	EventID        string                 `json:"event_id"`
	Count          int                    `json:"count"`
	Communications []record.Communication `json:"communications"`
}

// SearchResponse is the result of event_search.
type SearchResponse struct {
	EventIDs []string `json:"event_ids"`
}

// DecisionsResponse is the result of event_decisions.
type DecisionsResponse struct {
	Decisions []record.Decision `json:"decisions"`
}

// ExportResponse is the result of event_export.
type ExportResponse struct {
	Path string `json:"path"`
}

// Handler implementations

// HandleAdd handles the event_add tool call.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	created, err := h.idx.AddEvent(index.AddEventInput{
		ID:           input.ID,
		Name:         input.Name,
		Date:         input.Date,
		Promoter:     input.Promoter,
		Keywords:     input.Keywords,
		Participants: input.Participants,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(AddResponse{EventID: strings.TrimSpace(input.ID), Created: created})
}

// HandleCategorizeGroup handles the event_categorize_group tool call.
func (h *Handlers) HandleCategorizeGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategorizeGroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.GroupName) == "" {
		return errorResult(errors.NewInvalidRequest("group_name is required")), nil
	}

	eventID, reason, err := h.categorizer.CategorizeGroup(input.GroupName, input.Participants)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(CategorizeResponse{EventID: eventID, Reason: reason})
}

// HandleCategorizeEmail handles the event_categorize_email tool call.
func (h *Handlers) HandleCategorizeEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategorizeEmailRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Subject) == "" {
		return errorResult(errors.NewInvalidRequest("subject is required")), nil
	}

	eventID, reason, err := h.categorizer.CategorizeEmail(input.Subject, input.Sender, input.Body)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(CategorizeResponse{EventID: eventID, Reason: reason})
}

// HandleIngestChat handles the event_ingest_chat tool call.
func (h *Handlers) HandleIngestChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestChatRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	routed, err := h.router.Chat(input.ChatMessage, input.Participants)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(routed)
}

// HandleIngestEmail handles the event_ingest_email tool call.
func (h *Handlers) HandleIngestEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[extract.Email](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	routed, err := h.router.Email(input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(routed)
}

// HandleCommunications handles the event_communications tool call.
// An unknown event is an empty list, not an error.
func (h *Handlers) HandleCommunications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CommunicationsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.EventID) == "" {
		return errorResult(errors.NewInvalidRequest("event_id is required")), nil
	}
	source, ok := record.ParseSource(input.Source)
	if !ok {
		return errorResult(errors.NewUnsupported("source", input.Source)), nil
	}

	comms, found := h.idx.Communications(input.EventID, input.Window, source)
	if !found {
		comms = []record.Communication{}
	}

	return successResult(CommunicationsResponse{
		EventID:        input.EventID,
		Count:          len(comms),
		Communications: comms,
	})
}

// HandleSummary handles the event_summary tool call. An unknown event is {}.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.EventID) == "" {
		return errorResult(errors.NewInvalidRequest("event_id is required")), nil
	}

	summary, ok := h.idx.Summary(input.EventID)
	if !ok {
		return successResult(map[string]any{})
	}

	return successResult(summary)
}

// HandleSearch handles the event_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var dates *index.DateRange
	if input.StartDate != "" || input.EndDate != "" {
		dates = &index.DateRange{Start: input.StartDate, End: input.EndDate}
	}

	return successResult(SearchResponse{EventIDs: h.idx.Search(input.Query, dates)})
}

// HandleStatistics handles the event_statistics tool call.
func (h *Handlers) HandleStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.idx.Statistics())
}

// HandleDecisions handles the event_decisions tool call.
func (h *Handlers) HandleDecisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	decisions := h.idx.Decisions()
	if input.EventID != "" {
		filtered := make([]record.Decision, 0, len(decisions))
		for _, d := range decisions {
			if d.EventID == input.EventID {
				filtered = append(filtered, d)
			}
		}
		decisions = filtered
	}

	return successResult(DecisionsResponse{Decisions: decisions})
}

// HandleExport handles the event_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.idx.Export(input.Path); err != nil {
		return errorResult(err), nil
	}

	return successResult(ExportResponse{Path: input.Path})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal and persistence details are not exposed; they can carry file paths.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if iErr, ok := err.(*errors.IndexError); ok {
		errorObj := map[string]any{
			"code":    iErr.Code,
			"message": iErr.Message,
			"status":  iErr.Status,
		}
		if iErr.Code == errors.ErrInternal || iErr.Code == errors.ErrPersistence {
			errorObj["message"] = "an internal error occurred"
		} else if iErr.Details != nil {
			errorObj["details"] = iErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
