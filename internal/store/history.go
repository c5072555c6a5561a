package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMessage(ctx context.Context, ex execer, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()

	meta, err := json.Marshal(msg.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal message meta: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		"INSERT INTO messages (id, session_id, role, content, timestamp, meta) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Timestamp, string(meta))
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

// AppendMessage adds a single entry to the session's history log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, role, content string, meta MessageMeta) (*Message, error) {
	msg := &Message{SessionID: sessionID, Role: role, Content: content, Meta: meta}
	if err := insertMessage(ctx, s.db, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendTurn adds a user message and its assistant reply in one transaction, both
// tagged with the same metadata, so a turn is never half-written.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, userContent, aiContent string, meta MessageMeta) ([]Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	turn := []Message{
		{SessionID: sessionID, Role: RoleUser, Content: userContent, Meta: meta},
		{SessionID: sessionID, Role: RoleAssistant, Content: aiContent, Meta: meta},
	}
	for i := range turn {
		if err := insertMessage(ctx, tx, &turn[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history transaction: %w", err)
	}
	return turn, nil
}

// Messages returns the full log in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	return s.queryMessages(ctx,
		"SELECT id, session_id, role, content, timestamp, meta FROM messages WHERE session_id = ? ORDER BY seq ASC",
		sessionID)
}

// LastMessages returns the trailing n entries, oldest first.
func (s *SQLiteStore) LastMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `
        SELECT id, session_id, role, content, timestamp, meta FROM (
            SELECT seq, id, session_id, role, content, timestamp, meta
            FROM messages
            WHERE session_id = ?
            ORDER BY seq DESC
            LIMIT ?
        ) ORDER BY seq ASC
    `
	return s.queryMessages(ctx, query, sessionID, n)
}

func (s *SQLiteStore) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear history for %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var meta string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &msg.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta of message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
