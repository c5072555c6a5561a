package core

import (
	"context"
	"io"
	"iter"

	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

// Role of a prompt message sent to the chat model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PromptMessage struct {
	Role    Role
	Content string
}

// ChatModel is the language model endpoint. Stream yields text fragments in
// order and stops early when the consumer stops pulling.
type ChatModel interface {
	Invoke(ctx context.Context, msgs []PromptMessage) (string, error)
	Stream(ctx context.Context, msgs []PromptMessage) iter.Seq2[string, error]
}

// HistoryStore is the per-session, append-only message log.
type HistoryStore interface {
	// AppendMessage writes a single entry; answered turns go through AppendTurn.
	AppendMessage(ctx context.Context, sessionID, role, content string, meta store.MessageMeta) (*store.Message, error)
	AppendTurn(ctx context.Context, sessionID, userContent, aiContent string, meta store.MessageMeta) ([]store.Message, error)
	Messages(ctx context.Context, sessionID string) ([]store.Message, error)
	LastMessages(ctx context.Context, sessionID string, n int) ([]store.Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// DocumentIndex is the chunk collection, partitioned by session.
type DocumentIndex interface {
	AddChunks(ctx context.Context, sessionID string, chunks []store.Chunk) error
	SearchChunks(ctx context.Context, sessionID, query string, k int, filter store.ChunkFilter) ([]store.ScoredChunk, error)
	CountChunks(ctx context.Context, sessionID string) (int, error)
	DropPartition(ctx context.Context, sessionID string) error
}

// MetadataStore keeps paper records per session.
type MetadataStore interface {
	PutPaper(ctx context.Context, p store.Paper) error
	GetPaper(ctx context.Context, sessionID, paperID string) (*store.Paper, error)
	ListPapers(ctx context.Context, sessionID string) ([]store.Paper, error)
	DeletePapers(ctx context.Context, sessionID string) error
}

// SessionStore is the persistent session hash.
type SessionStore interface {
	PutSession(ctx context.Context, rec store.SessionRecord) error
	GetSession(ctx context.Context, id string) (*store.SessionRecord, error)
	SessionExists(ctx context.Context, id string) (bool, error)
	ListSessionIDs(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, id string) error
}

// Ingestor loads, splits and indexes paper files.
type Ingestor interface {
	SaveUpload(r io.Reader, filename, contentType string) (*ingest.FileInfo, error)
	ProcessFile(ctx context.Context, path, sessionID string, opts ingest.SourceOptions) (int, *ingest.Document, error)
	PrepareSource(source, sessionID string) (*ingest.FileInfo, error)
	ProcessSource(ctx context.Context, source, sessionID string) (*ingest.FileInfo, int, *ingest.Document, error)
}
