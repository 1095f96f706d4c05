package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/record"
)

// CurrentSchemaVersion is the latest sqlite schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// SQLite stores the snapshot as one row per event plus a stats row, an
// append-only decisions table and the group/thread routes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite initializes the database at path (WAL mode, migrated).
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewPersistence("open", fmt.Errorf("failed to create directory: %w", err))
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewPersistence("open", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, errors.NewPersistence("open", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.NewPersistence("migrate", err)
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(path, 0600)

	return &SQLite{db: db}, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS events (
		  id        TEXT PRIMARY KEY,
		  position  INTEGER NOT NULL,
		  name      TEXT NOT NULL,
		  date      TEXT,
		  promoter  TEXT,
		  doc       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_position ON events(position);
		CREATE INDEX IF NOT EXISTS idx_events_date ON events(date) WHERE date IS NOT NULL;

		CREATE TABLE IF NOT EXISTS index_stats (
		  id                   INTEGER PRIMARY KEY CHECK (id = 1),
		  total_events         INTEGER NOT NULL,
		  total_communications INTEGER NOT NULL,
		  last_updated         TEXT
		);

		CREATE TABLE IF NOT EXISTS decisions (
		  seq          INTEGER PRIMARY KEY,
		  timestamp    TEXT NOT NULL,
		  source_type  TEXT NOT NULL,
		  source_name  TEXT NOT NULL,
		  event_id     TEXT NOT NULL,
		  reason       TEXT NOT NULL,
		  created      INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: ingest routes
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS routes (
		  source    TEXT NOT NULL,
		  key       TEXT NOT NULL,
		  position  INTEGER NOT NULL,
		  event_id  TEXT NOT NULL,
		  PRIMARY KEY (source, key)
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := setUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// Load reads every event in insertion order. An empty database yields (nil, nil).
func (s *SQLite) Load() (*Snapshot, error) {
	snap := &Snapshot{SchemaVersion: SchemaVersion, Events: NewCatalog()}

	var lastUpdated sql.NullString
	err := s.db.QueryRow(`SELECT total_events, total_communications, last_updated FROM index_stats WHERE id = 1`).
		Scan(&snap.Stats.TotalEvents, &snap.Stats.TotalCommunications, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	if lastUpdated.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastUpdated.String); err == nil {
			snap.Stats.LastUpdated = &t
		}
	}

	rows, err := s.db.Query(`SELECT id, doc FROM events ORDER BY position ASC`)
	if err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, errors.NewPersistence("load", err)
		}
		ev := &record.Event{}
		if err := json.Unmarshal([]byte(doc), ev); err != nil {
			return nil, errors.NewPersistence("load", fmt.Errorf("corrupt event %s: %w", id, err))
		}
		snap.Events.Set(id, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence("load", err)
	}

	decisions, err := s.loadDecisions()
	if err != nil {
		return nil, err
	}
	snap.Decisions = decisions

	routes, err := s.loadRoutes()
	if err != nil {
		return nil, err
	}
	snap.Routes = routes

	snap.normalize()
	return snap, nil
}

func (s *SQLite) loadDecisions() ([]record.Decision, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, source_type, source_name, event_id, reason, created
		FROM decisions ORDER BY seq ASC`)
	if err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	defer rows.Close()

	var out []record.Decision
	for rows.Next() {
		var d record.Decision
		var ts, source string
		var created int
		if err := rows.Scan(&ts, &source, &d.SourceName, &d.EventID, &d.Reason, &created); err != nil {
			return nil, errors.NewPersistence("load", err)
		}
		d.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		d.SourceType = record.Source(source)
		d.Created = created != 0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	return out, nil
}

func (s *SQLite) loadRoutes() ([]record.Route, error) {
	rows, err := s.db.Query(`SELECT source, key, event_id FROM routes ORDER BY position ASC`)
	if err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	defer rows.Close()

	var out []record.Route
	for rows.Next() {
		var rt record.Route
		var source string
		if err := rows.Scan(&source, &rt.Key, &rt.EventID); err != nil {
			return nil, errors.NewPersistence("load", err)
		}
		rt.Source = record.Source(source)
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence("load", err)
	}
	return out, nil
}

// Save rewrites all event rows, the routes and the stats row in one transaction.
// Decisions are append-only: only entries beyond the stored count are inserted.
func (s *SQLite) Save(snap *Snapshot) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewPersistence("save", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM events`); err != nil {
		return errors.NewPersistence("save", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events (id, position, name, date, promoter, doc) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewPersistence("save", err)
	}
	defer stmt.Close()

	position := 0
	for pair := snap.Events.Oldest(); pair != nil; pair = pair.Next() {
		ev := pair.Value
		doc, mErr := json.Marshal(ev)
		if mErr != nil {
			err = errors.NewPersistence("encode", mErr)
			return err
		}
		if _, err = stmt.Exec(pair.Key, position, ev.Name, toNullString(ev.Date), toNullString(ev.Promoter), string(doc)); err != nil {
			return errors.NewPersistence("save", err)
		}
		position++
	}

	var lastUpdated sql.NullString
	if snap.Stats.LastUpdated != nil {
		lastUpdated = sql.NullString{String: snap.Stats.LastUpdated.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO index_stats (id, total_events, total_communications, last_updated)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_events = excluded.total_events,
			total_communications = excluded.total_communications,
			last_updated = excluded.last_updated`,
		snap.Stats.TotalEvents, snap.Stats.TotalCommunications, lastUpdated)
	if err != nil {
		return errors.NewPersistence("save", err)
	}

	if _, err = tx.Exec(`DELETE FROM routes`); err != nil {
		return errors.NewPersistence("save", err)
	}
	for i, rt := range snap.Routes {
		if _, err = tx.Exec(`INSERT INTO routes (source, key, position, event_id) VALUES (?, ?, ?, ?)`,
			string(rt.Source), rt.Key, i, rt.EventID); err != nil {
			return errors.NewPersistence("save", err)
		}
	}

	var stored int
	if err = tx.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&stored); err != nil {
		return errors.NewPersistence("save", err)
	}
	for i := stored; i < len(snap.Decisions); i++ {
		d := snap.Decisions[i]
		created := 0
		if d.Created {
			created = 1
		}
		_, err = tx.Exec(`
			INSERT INTO decisions (seq, timestamp, source_type, source_name, event_id, reason, created)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, d.Timestamp.Format(time.RFC3339Nano), string(d.SourceType), d.SourceName, d.EventID, d.Reason, created)
		if err != nil {
			return errors.NewPersistence("save", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewPersistence("save", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// getUserVersion returns the current schema version (user_version pragma).
func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// setUserVersion sets the schema version (user_version pragma).
func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
