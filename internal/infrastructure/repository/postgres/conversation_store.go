package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// ConversationStore persists reading turns so the composer can rebuild its
// rolling window across process restarts.
type ConversationStore struct {
	db *sql.DB
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS reading_sessions (
	session_id TEXT PRIMARY KEY,
	current_user_turn INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reading_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	user_turn INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reading_messages_session ON reading_messages(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return tx.Commit()
}

func (s *ConversationStore) ensureSession(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reading_sessions (session_id, current_user_turn, created_at, updated_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (session_id) DO NOTHING
`, sessionID, now)
	if err != nil {
		return fmt.Errorf("ensure session insert: %w", err)
	}
	return nil
}

func (s *ConversationStore) NextUserTurn(ctx context.Context, sessionID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE reading_sessions
SET current_user_turn = current_user_turn + 1, updated_at = $2
WHERE session_id = $1
RETURNING current_user_turn
`, sessionID, time.Now().UTC())

	var currentTurn int
	if err := row.Scan(&currentTurn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if ensureErr := s.ensureSession(ctx, sessionID); ensureErr != nil {
				return 0, ensureErr
			}
			return s.NextUserTurn(ctx, sessionID)
		}
		return 0, fmt.Errorf("next user turn: %w", err)
	}
	return currentTurn, nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, message domain.ConversationMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reading_messages (id, session_id, role, content, user_turn, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, message.ID, message.SessionID, message.Role, message.Content, message.UserTurn, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *ConversationStore) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, user_turn, created_at
FROM reading_messages
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationMessage, 0, limit)
	for rows.Next() {
		var msg domain.ConversationMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&msg.UserTurn,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
