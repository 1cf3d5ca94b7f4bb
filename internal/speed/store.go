package speed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bookscribe/internal/config"
	"bookscribe/internal/services"
)

// RatioKey identifies one measured (model, option set) combination.
type RatioKey struct {
	Model          string `json:"model"`
	WordTimestamps bool   `json:"word_timestamps"`
	HighlightWords bool   `json:"highlight_words"`
}

// Entry is one persisted speed measurement. Ratio is audio seconds processed
// per wall-clock second.
type Entry struct {
	Key        RatioKey  `json:"key"`
	Ratio      float64   `json:"ratio"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Store persists speed ratios in SQLite. Writes are last-writer-wins per key
// and each upsert commits atomically, so a crash mid-write leaves the prior
// entry readable.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS speed_ratios (
    model TEXT NOT NULL,
    word_timestamps INTEGER NOT NULL,
    highlight_words INTEGER NOT NULL,
    ratio REAL NOT NULL,
    measured_at TEXT NOT NULL,
    PRIMARY KEY (model, word_timestamps, highlight_words)
);
`

// Open initializes or connects to the speed database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "speed.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create speed schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Put upserts the ratio for key. The newest measurement replaces any prior
// entry; no history is retained.
func (s *Store) Put(ctx context.Context, key RatioKey, ratio float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO speed_ratios (model, word_timestamps, highlight_words, ratio, measured_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (model, word_timestamps, highlight_words)
         DO UPDATE SET ratio = excluded.ratio, measured_at = excluded.measured_at`,
		key.Model,
		boolToInt(key.WordTimestamps),
		boolToInt(key.HighlightWords),
		ratio,
		now,
	)
	if err != nil {
		return fmt.Errorf("persist speed ratio: %w", err)
	}
	return nil
}

// Get returns the entry for key, or ErrNotFound when the combination has
// never been measured.
func (s *Store) Get(ctx context.Context, key RatioKey) (Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT ratio, measured_at FROM speed_ratios
         WHERE model = ? AND word_timestamps = ? AND highlight_words = ?`,
		key.Model,
		boolToInt(key.WordTimestamps),
		boolToInt(key.HighlightWords),
	)

	var ratio float64
	var measuredAt string
	if err := row.Scan(&ratio, &measuredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, services.Wrap(services.ErrNotFound, "speed", "get", "no measurement for this model and option set", nil)
		}
		return Entry{}, fmt.Errorf("read speed ratio: %w", err)
	}

	entry := Entry{Key: key, Ratio: ratio}
	if ts, err := time.Parse(time.RFC3339Nano, measuredAt); err == nil {
		entry.MeasuredAt = ts
	}
	return entry, nil
}

// List returns all persisted entries ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT model, word_timestamps, highlight_words, ratio, measured_at
         FROM speed_ratios
         ORDER BY model, word_timestamps, highlight_words`,
	)
	if err != nil {
		return nil, fmt.Errorf("list speed ratios: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var wordTimestamps, highlightWords int
		var measuredAt string
		if err := rows.Scan(&entry.Key.Model, &wordTimestamps, &highlightWords, &entry.Ratio, &measuredAt); err != nil {
			return nil, fmt.Errorf("scan speed ratio: %w", err)
		}
		entry.Key.WordTimestamps = wordTimestamps != 0
		entry.Key.HighlightWords = highlightWords != 0
		if ts, err := time.Parse(time.RFC3339Nano, measuredAt); err == nil {
			entry.MeasuredAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speed ratios: %w", err)
	}
	return entries, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
