package store

import "time"

// Message roles as persisted in the history log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message types recorded in MessageMeta.Type.
const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

// SessionRecord is the persisted form of a chat session. Messages are not part of
// the record; the history log is their only home.
type SessionRecord struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	Files     []FileDescriptor `json:"files"`
}

// FileDescriptor describes a file uploaded into a session.
type FileDescriptor struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SavedName  string    `json:"saved_name"`
	UploadTime time.Time `json:"upload_time"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
}

// MessageMeta is the free-form tag set stored with every history entry.
type MessageMeta struct {
	Type string `json:"message_type"`
	Time string `json:"message_time,omitempty"`
}

type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      string      `json:"role"` // "user" or "assistant"
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Meta      MessageMeta `json:"meta"`
}

// Paper is the metadata record created once per successful ingestion.
type Paper struct {
	PaperID   string    `json:"paper_id"`
	SessionID string    `json:"session_id"`
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	Title     string    `json:"paper_title"`
	Summary   string    `json:"summary"`
	SourceURL string    `json:"source_url,omitempty"`
	Path      string    `json:"path"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one indexed span of a paper. Page is 0-based and nil when the loader
// could not attribute the text to a page.
type Chunk struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	PaperID    string    `json:"paper_id"`
	SourceName string    `json:"source_name"`
	SourceFile string    `json:"source_file"`
	SourcePath string    `json:"source_path"`
	SourceURL  string    `json:"source_url,omitempty"`
	PageCount  int       `json:"page_count"`
	Page       *int      `json:"page,omitempty"`
	ChunkIndex int       `json:"chunk"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float32
}

// ChunkFilter restricts a search to exact metadata matches. Zero value matches all.
type ChunkFilter struct {
	PaperID string
}
