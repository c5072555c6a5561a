package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore backs the session hash, the per-session history log and the paper
// metadata partitions. The chunk index shares its connection (see ChunkIndex).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: transactions and readers never see "database is locked".
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        record TEXT NOT NULL -- JSON SessionRecord
    );

    CREATE TABLE IF NOT EXISTS messages (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        session_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        meta TEXT NOT NULL DEFAULT '{}'
    );
    CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq);

    CREATE TABLE IF NOT EXISTS papers (
        session_id TEXT NOT NULL,
        paper_id TEXT NOT NULL,
        record TEXT NOT NULL, -- JSON Paper
        created_at DATETIME NOT NULL,
        PRIMARY KEY (session_id, paper_id)
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        paper_id TEXT NOT NULL,
        source_name TEXT NOT NULL,
        source_file TEXT NOT NULL,
        source_path TEXT NOT NULL,
        source_url TEXT,
        page_count INTEGER NOT NULL DEFAULT 0,
        page INTEGER, -- 0-based, NULL when unknown
        chunk_index INTEGER NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT, -- JSON []float32
        UNIQUE (paper_id, chunk_index)
    );
    CREATE INDEX IF NOT EXISTS idx_chunks_partition ON chunks (session_id, paper_id);
    `
	_, err := s.db.Exec(schema)
	return err
}
