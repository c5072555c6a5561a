package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	"gwi.com/paper-assistant/internal/utils"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkIndex is the per-session vector collection. Every session is one logical
// partition of the chunks table; similarity is cosine over stored embeddings.
type ChunkIndex struct {
	db            *sql.DB
	embedder      Embedder
	minSimilarity float32
}

// NewChunkIndex shares the store's connection. Hits scoring below minSimilarity
// are dropped; a threshold <= 0 disables the cut.
func NewChunkIndex(s *SQLiteStore, embedder Embedder, minSimilarity float32) *ChunkIndex {
	return &ChunkIndex{db: s.db, embedder: embedder, minSimilarity: minSimilarity}
}

// AddChunks embeds and stores chunks in the session's partition.
func (ix *ChunkIndex) AddChunks(ctx context.Context, sessionID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
        (session_id, paper_id, source_name, source_file, source_path, source_url, page_count, page, chunk_index, content, embedding_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		c.SessionID = sessionID
		c.Embedding = vectors[i]
		embeddingJSON, err := utils.EncodeVector(c.Embedding)
		if err != nil {
			return err
		}

		var page sql.NullInt64
		if c.Page != nil {
			page = sql.NullInt64{Int64: int64(*c.Page), Valid: true}
		}
		var sourceURL sql.NullString
		if c.SourceURL != "" {
			sourceURL = sql.NullString{String: c.SourceURL, Valid: true}
		}

		res, err := stmt.ExecContext(ctx, sessionID, c.PaperID, c.SourceName, c.SourceFile, c.SourcePath,
			sourceURL, c.PageCount, page, c.ChunkIndex, c.Content, embeddingJSON)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d of paper %s: %w", c.ChunkIndex, c.PaperID, err)
		}
		c.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// SearchChunks ranks the partition's chunks by similarity to query and returns at
// most k of them. Fewer than k hits are returned as-is, never padded.
func (ix *ChunkIndex) SearchChunks(ctx context.Context, sessionID, query string, k int, filter ChunkFilter) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	queryEmbedding := vectors[0]

	candidates, err := ix.loadPartition(ctx, sessionID, filter)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		if len(chunk.Embedding) == 0 {
			log.Printf("Skipping chunk ID %d due to missing embedding.", chunk.ID)
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			log.Printf("Error calculating similarity for chunk %d: %v. Skipping.", chunk.ID, err)
			continue
		}
		if ix.minSimilarity > 0 && similarity < ix.minSimilarity {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// CountChunks reports how many chunks the session partition holds.
func (ix *ChunkIndex) CountChunks(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE session_id = ?", sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// DropPartition removes every chunk indexed for the session.
func (ix *ChunkIndex) DropPartition(ctx context.Context, sessionID string) error {
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM chunks WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to drop chunk partition %s: %w", sessionID, err)
	}
	return nil
}

func (ix *ChunkIndex) loadPartition(ctx context.Context, sessionID string, filter ChunkFilter) ([]Chunk, error) {
	query := `SELECT id, session_id, paper_id, source_name, source_file, source_path, source_url,
        page_count, page, chunk_index, content, embedding_json
        FROM chunks WHERE session_id = ?`
	args := []any{sessionID}
	if filter.PaperID != "" {
		query += " AND paper_id = ?"
		args = append(args, filter.PaperID)
	}
	query += " ORDER BY id ASC"

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var sourceURL, embeddingJSON sql.NullString
		var page sql.NullInt64
		if err := rows.Scan(&c.ID, &c.SessionID, &c.PaperID, &c.SourceName, &c.SourceFile, &c.SourcePath,
			&sourceURL, &c.PageCount, &page, &c.ChunkIndex, &c.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.SourceURL = sourceURL.String
		if page.Valid {
			p := int(page.Int64)
			c.Page = &p
		}
		c.Embedding, err = utils.DecodeVector(embeddingJSON.String)
		if err != nil {
			log.Printf("Warning: %v for chunk %d (content: %.50s...). Embedding will be empty.", err, c.ID, c.Content)
			c.Embedding = nil
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
