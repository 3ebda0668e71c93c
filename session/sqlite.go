package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/datalyze-ai/datalyze/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	state   TEXT NOT NULL DEFAULT '{}',
	created TEXT NOT NULL,
	updated TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
`

// SQLiteStore is a durable SessionStore backed by a single SQLite file.
// Events are stored as JSON payloads in append order, state as a JSON object
// per session. Safe for concurrent use within one process.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// The driver serializes access through a single connection; SQLite does
	// not support concurrent writers on one file anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create inserts a fresh session, replacing any previous one with the same id.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`DELETE FROM events WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("clear session events: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		sessionID, now, now,
	); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return core.NewSession(sessionID), nil
}

// Get loads a session with its full event history, creating it when absent.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stateJSON string
	err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := s.db.Exec(
			`INSERT INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
			sessionID, now, now,
		); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return core.NewSession(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess := core.NewSession(sessionID)

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	sess.MergeState(state)

	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		sess.AddEvent(ev)
	}
	return sess, rows.Err()
}

// AppendEvent persists one event at the end of the session's history.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO events (session_id, payload) VALUES (?, ?)`,
		sessionID, string(payload),
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return s.touchLocked(sessionID)
}

// ApplyDelta merges a key/value delta into the stored session state.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return err
	}

	var stateJSON string
	if err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON); err != nil {
		return fmt.Errorf("load session state: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}
	for k, v := range delta {
		state[k] = v
	}

	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if _, err := s.db.Exec(
		`UPDATE sessions SET state = ?, updated = ? WHERE id = ?`,
		string(merged), time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	); err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ensureSessionLocked(sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		sessionID, now, now,
	)
	return err
}

func (s *SQLiteStore) touchLocked(sessionID string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET updated = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	)
	return err
}
