// Package db holds the bot's SQLite persistence: chat history, scoped
// memories, known users, residency, the shopping list and the MAC registry.
//
// A single mutex serializes all statements. Callers must not hold long
// operations (LLM calls, HTTP fetches) while inside a store method; every
// method is a short critical section.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// GeneralThreadID represents "no thread" in both chat_history and memories.
const GeneralThreadID int64 = 0

var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

type DB struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chat_history (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id               INTEGER NOT NULL,
    thread_id             INTEGER NOT NULL,
    message_id            INTEGER NOT NULL,
    from_user_id          INTEGER,
    timestamp             TEXT NOT NULL,
    message_text          TEXT NOT NULL,
    classification_result TEXT,
    used_model            TEXT
);
CREATE INDEX IF NOT EXISTS idx_chat_history_lookup
    ON chat_history(chat_id, thread_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_chat_history_message
    ON chat_history(chat_id, message_id);

CREATE TABLE IF NOT EXISTS memories (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    memory_text     TEXT NOT NULL,
    creation_date   TEXT NOT NULL,
    expiration_date TEXT,
    chat_id         INTEGER,
    thread_id       INTEGER,
    user_id         INTEGER
);

CREATE TABLE IF NOT EXISTS tg_users (
    id         INTEGER PRIMARY KEY,
    username   TEXT,
    first_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS residents (
    tg_id      INTEGER NOT NULL,
    begin_date TEXT NOT NULL,
    end_date   TEXT
);
CREATE INDEX IF NOT EXISTS idx_residents_tg_id ON residents(tg_id);

CREATE TABLE IF NOT EXISTS needed_items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    item         TEXT NOT NULL,
    requested_by INTEGER,
    requested_at TEXT NOT NULL,
    bought_by    INTEGER
);

CREATE TABLE IF NOT EXISTS user_macs (
    tg_id INTEGER NOT NULL,
    mac   TEXT NOT NULL,
    PRIMARY KEY (tg_id, mac)
);
`

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	d := &DB{db: sqldb}
	if err := d.configure(); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	if _, err := sqldb.Exec(schema); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

func (d *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// timeLayout keeps a fixed-width fraction so stored strings collate
// chronologically under SQL string comparison. RFC3339Nano would trim
// trailing zeros and break sub-second ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}
