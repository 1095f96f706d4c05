package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

var addToolDef = mcp.NewTool("event_add",
	mcp.WithDescription("Register a known event. Idempotent: an existing id is left unchanged and created=false."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Stable event id")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("date", mcp.Description("Event date as it appears in messages, e.g. 2024-10-15 or Oct 15")),
	mcp.WithString("promoter", mcp.Description("Promoter or brand name")),
	mcp.WithArray("keywords", mcp.Description("Keywords that identify the event in group names"), stringItems),
	mcp.WithArray("participants", mcp.Description("Known team members (first names)"), stringItems),
)

var categorizeGroupToolDef = mcp.NewTool("event_categorize_group",
	mcp.WithDescription("Decide which event a chat group belongs to, creating a new event when nothing matches. Returns the event id and the reason."),
	mcp.WithString("group_name", mcp.Required(), mcp.Description("Group display name")),
	mcp.WithArray("participants", mcp.Description("Group participant names"), stringItems),
)

var categorizeEmailToolDef = mcp.NewTool("event_categorize_email",
	mcp.WithDescription("Decide which event an email thread belongs to, creating a new event when nothing matches. Returns the event id and the reason."),
	mcp.WithString("subject", mcp.Required(), mcp.Description("Thread subject")),
	mcp.WithString("sender", mcp.Description("Sender email address")),
	mcp.WithString("body", mcp.Description("Message body")),
)

var ingestChatToolDef = mcp.NewTool("event_ingest_chat",
	mcp.WithDescription("Record one chat message. The group is categorized the first time it is seen; later messages reuse that event."),
	mcp.WithString("id", mcp.Description("Message id")),
	mcp.WithString("group_id", mcp.Description("Group id (cache key; falls back to group_name)")),
	mcp.WithString("group_name", mcp.Required(), mcp.Description("Group display name")),
	mcp.WithString("sender", mcp.Description("Sender display name")),
	mcp.WithString("text", mcp.Description("Message text")),
	mcp.WithString("timestamp", mcp.Description("RFC 3339 or unix seconds; defaults to now")),
	mcp.WithArray("participants", mcp.Description("Group participants, used when the group is first categorized"), stringItems),
)

var ingestEmailToolDef = mcp.NewTool("event_ingest_email",
	mcp.WithDescription("Record one email. The thread is categorized the first time it is seen; later messages reuse that event."),
	mcp.WithString("message_id", mcp.Description("Message id")),
	mcp.WithString("thread_id", mcp.Description("Thread id (cache key; falls back to subject)")),
	mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
	mcp.WithString("body", mcp.Description("Message body")),
	mcp.WithString("from_name", mcp.Description("Sender display name")),
	mcp.WithString("from_address", mcp.Description("Sender email address")),
	mcp.WithArray("to", mcp.Description(`Recipients, "Name <address>" or bare names`), stringItems),
	mcp.WithArray("cc", mcp.Description(`Cc recipients, "Name <address>" or bare names`), stringItems),
	mcp.WithString("timestamp", mcp.Description("RFC 3339 or unix seconds; defaults to now")),
)

var communicationsToolDef = mcp.NewTool("event_communications",
	mcp.WithDescription("List an event's communications in timestamp order. Unknown events yield an empty list."),
	mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
	mcp.WithString("window", mcp.Description(`Only communications newer than this, e.g. "24h" or "7d"`)),
	mcp.WithString("source", mcp.Description("Filter by source"), mcp.Enum("chat", "email")),
)

var summaryToolDef = mcp.NewTool("event_summary",
	mcp.WithDescription("Summarize an event: message counts, recent activity, top equipment, participants. Unknown events yield {}."),
	mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
)

var searchToolDef = mcp.NewTool("event_search",
	mcp.WithDescription("Find events whose name, promoter or participants contain the query (case-insensitive)."),
	mcp.WithString("query", mcp.Description("Substring to match; empty matches every event")),
	mcp.WithString("start_date", mcp.Description("Inclusive lower bound on event date (string comparison)")),
	mcp.WithString("end_date", mcp.Description("Inclusive upper bound on event date (string comparison)")),
)

var statisticsToolDef = mcp.NewTool("event_statistics",
	mcp.WithDescription("Index-wide totals: events, communications, unique participants, links shared."),
)

var decisionsToolDef = mcp.NewTool("event_decisions",
	mcp.WithDescription("Categorization audit log, oldest first."),
	mcp.WithString("event_id", mcp.Description("Only decisions that resolved to this event")),
)

var exportToolDef = mcp.NewTool("event_export",
	mcp.WithDescription("Write a full snapshot of the index (decision log included) to a JSON file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Destination file path")),
)
