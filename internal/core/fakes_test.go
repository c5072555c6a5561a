package core

import (
	"context"
	"io"
	"iter"
	"sync"
	"testing"

	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
	"gwi.com/paper-assistant/internal/testutil"
)

// fakeModel answers Invoke with invokeFn (or reply) and streams fragments,
// followed by streamErr when set.
type fakeModel struct {
	mu        sync.Mutex
	reply     string
	invokeErr error
	invokeFn  func(msgs []PromptMessage) (string, error)
	fragments []string
	streamErr error

	invoked  [][]PromptMessage
	streamed [][]PromptMessage
	pulled   int
}

func (m *fakeModel) Invoke(ctx context.Context, msgs []PromptMessage) (string, error) {
	m.mu.Lock()
	m.invoked = append(m.invoked, msgs)
	m.mu.Unlock()
	if m.invokeFn != nil {
		return m.invokeFn(msgs)
	}
	return m.reply, m.invokeErr
}

func (m *fakeModel) Stream(ctx context.Context, msgs []PromptMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.mu.Lock()
		m.streamed = append(m.streamed, msgs)
		m.mu.Unlock()
		for _, f := range m.fragments {
			m.mu.Lock()
			m.pulled++
			m.mu.Unlock()
			if !yield(f, nil) {
				return
			}
		}
		if m.streamErr != nil {
			yield("", m.streamErr)
		}
	}
}

func (m *fakeModel) invokeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoked)
}

func (m *fakeModel) lastStreamed(t *testing.T) []PromptMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streamed) == 0 {
		t.Fatal("model was never streamed")
	}
	return m.streamed[len(m.streamed)-1]
}

// fakeIngestor returns a canned document for ProcessFile and ProcessSource.
type fakeIngestor struct {
	doc     ingest.Document
	chunks  int
	err     error
	saveDir string
}

func (f *fakeIngestor) SaveUpload(r io.Reader, filename, contentType string) (*ingest.FileInfo, error) {
	return ingest.SaveUpload(r, filename, contentType, f.saveDir, 1<<20)
}

func (f *fakeIngestor) ProcessFile(ctx context.Context, path, sessionID string, opts ingest.SourceOptions) (int, *ingest.Document, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	doc := f.doc
	doc.SourcePath = path
	if doc.SourceName == "" {
		doc.SourceName = opts.SourceName
	}
	if doc.SourceFile == "" {
		doc.SourceFile = opts.SourceFile
	}
	if doc.SourceURL == "" {
		doc.SourceURL = opts.SourceURL
	}
	return f.chunks, &doc, nil
}

func (f *fakeIngestor) PrepareSource(source, sessionID string) (*ingest.FileInfo, error) {
	return ingest.BuildSourceFileInfo(source, sessionID, f.saveDir)
}

func (f *fakeIngestor) ProcessSource(ctx context.Context, source, sessionID string) (*ingest.FileInfo, int, *ingest.Document, error) {
	info, err := f.PrepareSource(source, sessionID)
	if err != nil {
		return nil, 0, nil, err
	}
	n, doc, err := f.ProcessFile(ctx, info.Path, sessionID, ingest.SourceOptions{SourceName: info.Filename, SourceURL: info.URL})
	if err != nil {
		return nil, 0, nil, err
	}
	return info, n, doc, nil
}

// env wires the services over a temporary SQLite store.
type env struct {
	store    *store.SQLiteStore
	index    *store.ChunkIndex
	model    *fakeModel
	ingestor Ingestor
	ai       *AIService
	sessions *SessionManager
	chat     *ChatService
}

func newEnv(t *testing.T, model *fakeModel, ingestor Ingestor) *env {
	t.Helper()
	s := testutil.NewStore(t)
	ix := store.NewChunkIndex(s, &testutil.HashEmbedder{}, 0)
	if ingestor == nil {
		ingestor = ingest.NewService(ix, ingest.Config{UploadDir: t.TempDir(), MaxFileSize: 1 << 20})
	}
	ai := NewAIService(model, s, s, ix, ingestor, AIConfig{})
	sessions := NewSessionManager(s, s, s, ix)
	return &env{
		store:    s,
		index:    ix,
		model:    model,
		ingestor: ingestor,
		ai:       ai,
		sessions: sessions,
		chat:     NewChatService(sessions, ai, nil),
	}
}

func (e *env) addPaper(t *testing.T, sessionID, paperID string, contents ...string) {
	t.Helper()
	chunks := make([]store.Chunk, len(contents))
	for i, c := range contents {
		page := i
		chunks[i] = store.Chunk{
			PaperID:    paperID,
			SourceName: paperID + ".pdf",
			SourceFile: paperID + "-saved.pdf",
			SourcePath: "/papers/" + paperID + ".pdf",
			Page:       &page,
			ChunkIndex: i,
			Content:    c,
		}
	}
	if err := e.index.AddChunks(context.Background(), sessionID, chunks); err != nil {
		t.Fatalf("AddChunks(%s) error = %v", paperID, err)
	}
}
