package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/index"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"event_add": {
		def:     addToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAdd },
	},
	"event_categorize_group": {
		def:     categorizeGroupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategorizeGroup },
	},
	"event_categorize_email": {
		def:     categorizeEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategorizeEmail },
	},
	"event_ingest_chat": {
		def:     ingestChatToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIngestChat },
	},
	"event_ingest_email": {
		def:     ingestEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIngestEmail },
	},
	"event_communications": {
		def:     communicationsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCommunications },
	},
	"event_summary": {
		def:     summaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummary },
	},
	"event_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"event_statistics": {
		def:     statisticsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatistics },
	},
	"event_decisions": {
		def:     decisionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDecisions },
	},
	"event_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server exposing the event index.
// Tools listed in cfg.DisabledTools are not registered.
func NewServer(idx *index.Index, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"venueindex",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(idx, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(idx *index.Index, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(idx, cfg, version))
}
