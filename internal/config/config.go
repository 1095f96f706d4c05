package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultEquipmentKeywords is the equipment vocabulary tracked per event.
var DefaultEquipmentKeywords = []string{
	"mixer", "CDJ", "speaker", "light", "laser", "stage",
	"generator", "cable", "microphone", "amplifier",
}

// Config holds application configuration.
type Config struct {
	// StoreBackend selects the persistence backend: "json" (default) or "sqlite".
	StoreBackend string `json:"store_backend,omitempty"`

	// StorePath is the catalog location. Relative paths resolve against the base dir.
	// Defaults to event_index.json or event_index.db depending on the backend.
	StorePath string `json:"store_path,omitempty"`

	// EquipmentKeywords replaces the default equipment vocabulary when set.
	EquipmentKeywords []string `json:"equipment_keywords,omitempty"`

	// EventNameMaxChars bounds auto-derived event names (runes).
	EventNameMaxChars int `json:"event_name_max_chars,omitempty"`

	// PersistDecisions stores the categorization decision log alongside the catalog.
	PersistDecisions bool `json:"persist_decisions,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// HTTPBind and HTTPPort configure the serve command.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StoreBackend:      BackendJSON,
		EquipmentKeywords: append([]string(nil), DefaultEquipmentKeywords...),
		EventNameMaxChars: 50,
		LogLevel:          "info",
		HTTPBind:          "127.0.0.1",
		HTTPPort:          8338,
	}
}

// LoadWithRepo loads configuration from both global (~/.venueindex) and repo (.venueindex) directories.
// Repo config is found by walking upward from startDir to find the nearest .venueindex/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .venueindex/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".venueindex", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ResolveStorePath returns the absolute catalog path for the configured backend.
func (c *Config) ResolveStorePath(baseDir string) string {
	path := c.StorePath
	if path == "" {
		if c.StoreBackend == BackendSQLite {
			path = "event_index.db"
		} else {
			path = "event_index.json"
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars. Equipment keywords are replaced
// wholesale when the overlay sets them; disabled tools are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.StoreBackend = firstNonEmpty(overlay.StoreBackend, base.StoreBackend)
	result.StorePath = firstNonEmpty(overlay.StorePath, base.StorePath)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.HTTPBind = firstNonEmpty(overlay.HTTPBind, base.HTTPBind)

	result.EventNameMaxChars = overlay.EventNameMaxChars
	if result.EventNameMaxChars == 0 {
		result.EventNameMaxChars = base.EventNameMaxChars
	}

	result.HTTPPort = overlay.HTTPPort
	if result.HTTPPort == 0 {
		result.HTTPPort = base.HTTPPort
	}

	// Booleans: overlay wins if true, else base
	result.PersistDecisions = base.PersistDecisions || overlay.PersistDecisions

	// A vocabulary is a whole; merging two would silently widen it.
	result.EquipmentKeywords = mergeStringSlice(nil, base.EquipmentKeywords)
	if len(overlay.EquipmentKeywords) > 0 {
		result.EquipmentKeywords = mergeStringSlice(nil, overlay.EquipmentKeywords)
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
