package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// Pure-Go SQLite driver — registers "sqlite" with database/sql.
	_ "modernc.org/sqlite"
)

// ddlTranscripts creates the transcript tables. It is idempotent and safe to
// run on every open.
const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT     PRIMARY KEY,
    started_at  INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at
    ON sessions (started_at);

CREATE TABLE IF NOT EXISTS turns (
    id          INTEGER  PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT     NOT NULL,
    role        TEXT     NOT NULL,
    content     TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session_id
    ON turns (session_id);
`

// SessionInfo summarizes one persisted session.
type SessionInfo struct {
	ID        string
	StartedAt time.Time
	Turns     int
}

// Store persists chat transcripts in a SQLite database. Timestamps are
// stored as Unix milliseconds; turn order is the insertion order.
//
// All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the transcript database at path and
// ensures the schema exists.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("chat store: path must not be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("chat store: open %s: %w", path, err)
	}
	// SQLite allows one writer; funnel everything through one connection so
	// concurrent sessions queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat store: ping: %w", err)
	}
	if _, err := db.Exec(ddlTranscripts); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateSession registers a new session and returns its ID.
func (s *Store) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO sessions (id, started_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, time.Now().UnixMilli()); err != nil {
		return "", fmt.Errorf("chat store: create session: %w", err)
	}
	return id, nil
}

// SaveTurn appends turn to the named session's transcript.
func (s *Store) SaveTurn(ctx context.Context, sessionID string, turn Turn) error {
	const q = `INSERT INTO turns (session_id, role, content) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(turn.Role), turn.Content); err != nil {
		return fmt.Errorf("chat store: save turn: %w", err)
	}
	return nil
}

// Sessions lists all persisted sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	const q = `
		SELECT  s.id, s.started_at, COUNT(t.id)
		FROM    sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("chat store: list sessions: %w", err)
	}
	defer rows.Close()

	infos := []SessionInfo{}
	for rows.Next() {
		var (
			info      SessionInfo
			startedMS int64
		)
		if err := rows.Scan(&info.ID, &startedMS, &info.Turns); err != nil {
			return nil, fmt.Errorf("chat store: scan session: %w", err)
		}
		info.StartedAt = time.UnixMilli(startedMS)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat store: list sessions: %w", err)
	}
	return infos, nil
}

// Turns returns the named session's transcript in insertion order.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	const q = `
		SELECT  role, content
		FROM    turns
		WHERE   session_id = ?
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat store: load turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var (
			role    string
			content string
		)
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("chat store: scan turn: %w", err)
		}
		turns = append(turns, Turn{Role: Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat store: load turns: %w", err)
	}
	return turns, nil
}

// DeleteBefore removes all sessions started before cutoff, along with their
// turns, and reports how many sessions were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("chat store: begin delete: %w", err)
	}
	defer tx.Rollback()

	ms := cutoff.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id IN (SELECT id FROM sessions WHERE started_at < ?)`, ms); err != nil {
		return 0, fmt.Errorf("chat store: delete turns: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, ms)
	if err != nil {
		return 0, fmt.Errorf("chat store: delete sessions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("chat store: delete sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("chat store: commit delete: %w", err)
	}
	return deleted, nil
}

// Ping probes the underlying database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
