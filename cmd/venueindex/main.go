package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hpungsan/venueindex/internal/config"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/mcp"
	"github.com/hpungsan/venueindex/internal/metrics"
	"github.com/hpungsan/venueindex/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add-event": true, "seed": true,
	"categorize-group": true, "categorize-email": true,
	"ingest-chat": true, "ingest-email": true, "bind": true,
	"communications": true, "summary": true, "search": true,
	"stats": true, "decisions": true, "export": true,
	"report": true, "serve": true,
	"help": true,
}

// appEnv is everything a command needs: the opened index plus the
// configuration and registry it was built from.
type appEnv struct {
	idx      *index.Index
	cfg      *config.Config
	registry *prometheus.Registry
	log      *slog.Logger
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  venueindex

  Venue communications indexer

  Usage: venueindex <command> [options]
         venueindex --help

  MCP server mode requires piped input.`)
}

// newLogger writes text logs to stderr so stdout stays clean for JSON output
// and the MCP stdio transport.
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openEnv loads configuration, opens the configured store and builds the index.
func openEnv(baseDir, workDir string) (*appEnv, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create %s: %w", baseDir, err)
	}

	cfg, err := config.LoadWithRepo(baseDir, workDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	st, err := store.Open(cfg.StoreBackend, cfg.ResolveStorePath(baseDir))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	idx := index.Open(index.Options{
		Store:             st,
		EquipmentKeywords: cfg.EquipmentKeywords,
		EventNameMaxChars: cfg.EventNameMaxChars,
		PersistDecisions:  cfg.PersistDecisions,
		Logger:            logger,
		Metrics:           metrics.New(reg),
	})

	return &appEnv{idx: idx, cfg: cfg, registry: reg, log: logger}, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the index
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && !isCLIMode() && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'venueindex --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	env, err := openEnv(filepath.Join(homeDir, ".venueindex"), workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(env)
		err = app.Run(os.Args)
	} else {
		err = mcp.Run(env.idx, env.cfg, Version)
	}

	if cerr := env.idx.Close(); cerr != nil {
		env.log.Error("close store", "error", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
