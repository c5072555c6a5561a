package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// PutPaper stores paper metadata in the session's partition.
func (s *SQLiteStore) PutPaper(ctx context.Context, p Paper) error {
	if p.SessionID == "" || p.PaperID == "" {
		return fmt.Errorf("paper metadata needs both session id and paper id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal paper metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO papers (session_id, paper_id, record, created_at) VALUES (?, ?, ?, ?)",
		p.SessionID, p.PaperID, string(data), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store paper %s: %w", p.PaperID, err)
	}
	return nil
}

// GetPaper returns nil, nil when the paper is unknown to the session.
func (s *SQLiteStore) GetPaper(ctx context.Context, sessionID, paperID string) (*Paper, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM papers WHERE session_id = ? AND paper_id = ?", sessionID, paperID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get paper %s: %w", paperID, err)
	}
	var p Paper
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode paper %s: %w", paperID, err)
	}
	return &p, nil
}

// ListPapers returns the session's papers by creation time. Undecodable records are skipped.
func (s *SQLiteStore) ListPapers(ctx context.Context, sessionID string) ([]Paper, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT paper_id, record FROM papers WHERE session_id = ? ORDER BY created_at ASC, rowid ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan paper row: %w", err)
		}
		var p Paper
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Printf("Warning: skipping undecodable paper %s in session %s: %v", id, sessionID, err)
			continue
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func (s *SQLiteStore) DeletePapers(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM papers WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete papers for %s: %w", sessionID, err)
	}
	return nil
}
