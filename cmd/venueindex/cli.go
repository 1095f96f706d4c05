package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/extract"
	"github.com/hpungsan/venueindex/internal/gateway"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/ingest"
	"github.com/hpungsan/venueindex/internal/record"
	"github.com/hpungsan/venueindex/internal/report"
	"github.com/hpungsan/venueindex/internal/schedule"
	"github.com/hpungsan/venueindex/internal/web"
)

// maxStdinBytes bounds payloads read from stdin.
const maxStdinBytes = 10 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "venueindex",
		Usage:   "Venue communications indexer",
		Version: Version,
		Commands: []*cli.Command{
			addEventCmd(env),
			seedCmd(env),
			categorizeGroupCmd(env),
			categorizeEmailCmd(env),
			ingestChatCmd(env),
			ingestEmailCmd(env),
			bindCmd(env),
			communicationsCmd(env),
			summaryCmd(env),
			searchCmd(env),
			statsCmd(env),
			decisionsCmd(env),
			exportCmd(env),
			reportCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func addEventCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "add-event",
		Usage: "Register a known event (no-op if the id exists)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "Event id"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Event name"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Event date"},
			&cli.StringFlag{Name: "promoter", Aliases: []string{"p"}, Usage: "Promoter"},
			&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "Comma-separated keywords"},
			&cli.StringFlag{Name: "participants", Usage: "Comma-separated participant names"},
		},
		Action: func(c *cli.Context) error {
			created, err := env.idx.AddEvent(index.AddEventInput{
				ID:           c.String("id"),
				Name:         c.String("name"),
				Date:         c.String("date"),
				Promoter:     c.String("promoter"),
				Keywords:     parseList(c.String("keywords")),
				Participants: parseList(c.String("participants")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"event_id": strings.TrimSpace(c.String("id")), "created": created})
		},
	}
}

func seedCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Register every event in a YAML schedule file",
		ArgsUsage: "<schedule.yaml>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("schedule file path is required"))
			}
			s, err := schedule.Load(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			res, err := schedule.Seed(s, env.idx)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

func categorizeGroupCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "categorize-group",
		Usage: "Attribute a chat group to an event",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Group name"},
			&cli.StringFlag{Name: "participants", Usage: "Comma-separated participant names"},
		},
		Action: func(c *cli.Context) error {
			eventID, reason, err := gateway.New(env.idx).CategorizeGroup(c.String("name"), parseList(c.String("participants")))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]string{"event_id": eventID, "reason": reason})
		},
	}
}

func categorizeEmailCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "categorize-email",
		Usage: "Attribute an email to an event",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Required: true, Usage: "Subject line"},
			&cli.StringFlag{Name: "sender", Usage: "Sender address"},
			&cli.StringFlag{Name: "body", Usage: "Body text (read from stdin when piped and not set)"},
		},
		Action: func(c *cli.Context) error {
			body := c.String("body")
			if !c.IsSet("body") && stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				body = text
			}
			eventID, reason, err := gateway.New(env.idx).CategorizeEmail(c.String("subject"), c.String("sender"), body)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]string{"event_id": eventID, "reason": reason})
		},
	}
}

// chatPayload is one line of ingest-chat input.
type chatPayload struct {
	extract.ChatMessage
	Participants []string `json:"participants,omitempty"`
}

func ingestChatCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "ingest-chat",
		Usage: "Categorize and record chat messages (JSON objects on stdin)",
		Action: func(c *cli.Context) error {
			router := ingest.NewRouter(gateway.New(env.idx), env.idx)
			return ingestStream(func(dec *json.Decoder) (*ingest.Routed, error) {
				var msg chatPayload
				if err := dec.Decode(&msg); err != nil {
					return nil, err
				}
				return router.Chat(msg.ChatMessage, msg.Participants)
			})
		},
	}
}

func ingestEmailCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "ingest-email",
		Usage: "Categorize and record emails (JSON objects on stdin)",
		Action: func(c *cli.Context) error {
			router := ingest.NewRouter(gateway.New(env.idx), env.idx)
			return ingestStream(func(dec *json.Decoder) (*ingest.Routed, error) {
				var msg extract.Email
				if err := dec.Decode(&msg); err != nil {
					return nil, err
				}
				return router.Email(msg)
			})
		},
	}
}

// bindResult reports a route change made by the bind command.
type bindResult struct {
	Source   record.Source `json:"source"`
	Key      string        `json:"key"`
	EventID  string        `json:"event_id"`
	Previous string        `json:"previous_event_id,omitempty"`
}

func bindCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "bind",
		Usage:     "Pin a chat group or email thread to an event",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: string(record.SourceChat), Usage: "chat|email"},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Required: true, Usage: "Group id/name or thread id/subject"},
		},
		Action: func(c *cli.Context) error {
			eventID, err := eventArg(c)
			if err != nil {
				return outputError(err)
			}
			source := record.Source(strings.ToLower(strings.TrimSpace(c.String("source"))))
			router := ingest.NewRouter(gateway.New(env.idx), env.idx)
			previous, _ := router.Lookup(source, c.String("key"))
			if err := router.Bind(source, c.String("key"), eventID); err != nil {
				return outputError(err)
			}
			return outputJSON(bindResult{
				Source:   source,
				Key:      strings.TrimSpace(c.String("key")),
				EventID:  eventID,
				Previous: previous,
			})
		},
	}
}

// ingestStream decodes a stream of JSON objects from stdin, routing each one
// with next, and prints the routing results as one JSON array.
func ingestStream(next func(dec *json.Decoder) (*ingest.Routed, error)) error {
	if !stdinHasData() {
		return outputError(errors.NewInvalidRequest("messages must be piped via stdin"))
	}
	dec := json.NewDecoder(io.LimitReader(os.Stdin, maxStdinBytes))

	results := make([]*ingest.Routed, 0)
	for {
		routed, err := next(dec)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var iErr *errors.IndexError
			if !stderrors.As(err, &iErr) {
				err = errors.NewInvalidRequest(fmt.Sprintf("message %d: %v", len(results), err))
			}
			return outputError(err)
		}
		results = append(results, routed)
	}
	return outputJSON(results)
}

func communicationsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "communications",
		Usage:     "List an event's communications",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "window", Aliases: []string{"w"}, Usage: "Only the last <n>h or <n>d"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "chat|email"},
		},
		Action: func(c *cli.Context) error {
			eventID, err := eventArg(c)
			if err != nil {
				return outputError(err)
			}
			source, ok := record.ParseSource(c.String("source"))
			if !ok {
				return outputError(errors.NewUnsupported("source", c.String("source")))
			}
			comms, found := env.idx.Communications(eventID, c.String("window"), source)
			if !found {
				comms = []record.Communication{}
			}
			return outputJSON(comms)
		},
	}
}

func summaryCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Summarize an event",
		ArgsUsage: "<event-id>",
		Action: func(c *cli.Context) error {
			eventID, err := eventArg(c)
			if err != nil {
				return outputError(err)
			}
			summary, ok := env.idx.Summary(eventID)
			if !ok {
				return outputJSON(map[string]any{})
			}
			return outputJSON(summary)
		},
	}
}

func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find events by name, promoter or participant",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start-date", Usage: "Inclusive lower date bound"},
			&cli.StringFlag{Name: "end-date", Usage: "Inclusive upper date bound"},
		},
		Action: func(c *cli.Context) error {
			var dates *index.DateRange
			if c.String("start-date") != "" || c.String("end-date") != "" {
				dates = &index.DateRange{Start: c.String("start-date"), End: c.String("end-date")}
			}
			return outputJSON(env.idx.Search(strings.Join(c.Args().Slice(), " "), dates))
		},
	}
}

func statsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show index statistics",
		Action: func(c *cli.Context) error {
			return outputJSON(env.idx.Statistics())
		},
	}
}

func decisionsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "decisions",
		Usage: "Show the categorization decision log",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "event-id", Usage: "Only decisions for this event"},
		},
		Action: func(c *cli.Context) error {
			decisions := env.idx.Decisions()
			if id := c.String("event-id"); id != "" {
				filtered := make([]record.Decision, 0, len(decisions))
				for _, d := range decisions {
					if d.EventID == id {
						filtered = append(filtered, d)
					}
				}
				decisions = filtered
			}
			return outputJSON(decisions)
		},
	}
}

func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the full index to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"o"}, Usage: "Output path (default: event_index_export_<timestamp>.json)"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if path == "" {
				path = defaultExportPath(time.Now())
			}
			if err := env.idx.Export(path); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]string{"path": path})
		},
	}
}

func reportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Render an event digest as markdown or HTML",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "window", Aliases: []string{"w"}, Usage: "Only communications from the last <n>h or <n>d"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "md", Usage: "md|html"},
		},
		Action: func(c *cli.Context) error {
			eventID, err := eventArg(c)
			if err != nil {
				return outputError(err)
			}
			digest, ok := report.Build(env.idx, eventID, c.String("window"))
			if !ok {
				return outputError(errors.NewNotFound(eventID))
			}

			switch strings.ToLower(c.String("format")) {
			case "md", "markdown":
				_, err = fmt.Fprint(os.Stdout, digest.Markdown())
			case "html":
				var html string
				if html, err = digest.HTML(); err == nil {
					_, err = fmt.Fprint(os.Stdout, html)
				}
			default:
				return outputError(errors.NewUnsupported("format", c.String("format")))
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and /metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := env.cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := env.cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			srv := web.NewServer(env.idx, env.registry, env.log, Version, bind, port)
			return web.Run(srv, env.log)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var iErr *errors.IndexError
	if stderrors.As(err, &iErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", iErr.Code, iErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// eventArg returns the first positional argument as an event id.
func eventArg(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.NewInvalidRequest("event id is required")
	}
	return id, nil
}

// defaultExportPath names an export file in the working directory.
func defaultExportPath(now time.Time) string {
	return fmt.Sprintf("event_index_export_%s.json", now.Format("20060102_150405"))
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxBytes from stdin.
func readStdin(maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("stdin exceeds %d bytes", maxBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseList splits a comma-separated string, dropping empty entries.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
