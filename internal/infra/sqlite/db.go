// Package sqlite provides SQLite-based persistent storage for EduGuardian.
// Uses WAL mode for concurrent reads and crash-safe writes.
// Timestamps are stored as unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Options tune the connection.
type Options struct {
	BusyTimeout time.Duration
}

// Open creates or opens the SQLite database at dir/state.db with default
// options.
func Open(dir string) (*DB, error) {
	return OpenWith(dir, Options{BusyTimeout: 5 * time.Second})
}

// OpenWith creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys and the busy timeout.
func OpenWith(dir string, opts Options) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		dbPath, opts.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Users: the aggregate root, with streak, AI usage and stat counters
		// embedded as columns. version is the optimistic concurrency token.
		`CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			username             TEXT NOT NULL UNIQUE,
			email                TEXT NOT NULL UNIQUE,
			xp                   INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
			level                INTEGER NOT NULL DEFAULT 1,
			streak_current       INTEGER NOT NULL DEFAULT 0,
			streak_longest       INTEGER NOT NULL DEFAULT 0,
			streak_last_activity INTEGER,
			ai_summary_used      INTEGER NOT NULL DEFAULT 0,
			ai_flashcard_used    INTEGER NOT NULL DEFAULT 0,
			ai_last_reset        INTEGER,
			notes_uploaded       INTEGER NOT NULL DEFAULT 0,
			ratings_received     INTEGER NOT NULL DEFAULT 0,
			positive_ratings     INTEGER NOT NULL DEFAULT 0,
			study_sessions       INTEGER NOT NULL DEFAULT 0,
			study_seconds        INTEGER NOT NULL DEFAULT 0,
			flashcards_reviewed  INTEGER NOT NULL DEFAULT 0,
			summaries_generated  INTEGER NOT NULL DEFAULT 0,
			flashcard_sets       INTEGER NOT NULL DEFAULT 0,
			version              INTEGER NOT NULL DEFAULT 0,
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_xp ON users(xp DESC)`,

		// Badge catalog, synced from code at startup.
		`CREATE TABLE IF NOT EXISTS badges (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL,
			icon          TEXT NOT NULL,
			tier          TEXT NOT NULL,
			category      TEXT NOT NULL,
			xp_reward     INTEGER NOT NULL,
			display_order INTEGER NOT NULL
		)`,

		// Earned badges: the primary key makes a second award impossible.
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			badge_id  TEXT NOT NULL,
			earned_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_subjects (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject TEXT NOT NULL,
			PRIMARY KEY (user_id, subject)
		)`,

		`CREATE TABLE IF NOT EXISTS favorite_notes (
			user_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			note_id  TEXT NOT NULL,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, note_id)
		)`,

		// Activity log: append-only except for an explicit clear.
		`CREATE TABLE IF NOT EXISTS activity_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type        TEXT NOT NULL,
			description TEXT NOT NULL,
			xp_earned   INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_log(user_id, created_at)`,

		// Durable study cooldowns, one row per (user, note).
		`CREATE TABLE IF NOT EXISTS study_cooldowns (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			note_id      TEXT NOT NULL,
			completed_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, note_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cooldowns_completed ON study_cooldowns(completed_at)`,

		// Uploads and ratings already credited; a replayed event finds its row.
		`CREATE TABLE IF NOT EXISTS note_uploads (
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			note_id     TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, note_id)
		)`,
		`CREATE TABLE IF NOT EXISTS note_ratings (
			user_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			note_id  TEXT NOT NULL,
			rater_id TEXT NOT NULL,
			score    INTEGER NOT NULL,
			rated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, note_id, rater_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
