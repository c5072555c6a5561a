package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gwi.com/paper-assistant/internal/store"
)

const (
	DefaultSessionName = "Default Chat"
	NewSessionName     = "New Chat"
)

// Session is the in-memory view of a persisted session. MessageCount and
// ChunkCount are read from the history store and the index, never written back.
type Session struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	CreatedAt    time.Time              `json:"created_at"`
	Files        []store.FileDescriptor `json:"files"`
	MessageCount int                    `json:"message_count"`
	ChunkCount   int                    `json:"chunk_count"`
}

// SessionManager owns the session registry, a cache of the session store that
// LoadAll can rebuild at any time.
type SessionManager struct {
	sessions SessionStore
	history  HistoryStore
	papers   MetadataStore
	index    DocumentIndex

	mu       sync.RWMutex
	registry map[string]*Session
	order    []string
}

func NewSessionManager(sessions SessionStore, history HistoryStore, papers MetadataStore, index DocumentIndex) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		history:  history,
		papers:   papers,
		index:    index,
		registry: make(map[string]*Session),
	}
}

// LoadAll rebuilds the registry from the store and creates the default session
// when none exist.
func (m *SessionManager) LoadAll(ctx context.Context) error {
	ids, err := m.sessions.ListSessionIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	registry := make(map[string]*Session, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, err := m.sessions.GetSession(ctx, id)
		if err != nil {
			log.Printf("Skipping session %s: %v", id, err)
			continue
		}
		if rec == nil {
			continue
		}
		registry[id] = m.fromRecord(ctx, rec)
		order = append(order, id)
	}

	m.mu.Lock()
	m.registry = registry
	m.order = order
	m.mu.Unlock()
	log.Printf("Loaded %d sessions", len(order))

	if len(order) == 0 {
		if _, err := m.Create(ctx, DefaultSessionName); err != nil {
			return fmt.Errorf("failed to create default session: %w", err)
		}
	}
	return nil
}

// Create persists a new session, then registers it.
func (m *SessionManager) Create(ctx context.Context, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = NewSessionName
	}
	rec := store.SessionRecord{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		Files:     []store.FileDescriptor{},
	}
	if err := m.sessions.PutSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess := &Session{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt, Files: rec.Files}
	m.register(sess)
	cp := *sess
	return &cp, nil
}

// Get reads the session from the store. Store failures are logged and reported
// as not found.
func (m *SessionManager) Get(ctx context.Context, id string) (*Session, bool) {
	rec, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		log.Printf("Failed to get session %s: %v", id, err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	sess := m.fromRecord(ctx, rec)
	m.register(sess)
	cp := *sess
	return &cp, true
}

// List returns the registered sessions in load/creation order.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.registry[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Rename changes the display name only; the id stays the key everywhere.
func (m *SessionManager) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty session name", ErrInvalidInput)
	}
	return m.updateRecord(ctx, id, func(rec *store.SessionRecord) {
		rec.Name = name
	})
}

// AddFile records an uploaded file on the session.
func (m *SessionManager) AddFile(ctx context.Context, id string, file store.FileDescriptor) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadTime.IsZero() {
		file.UploadTime = time.Now()
	}
	return m.updateRecord(ctx, id, func(rec *store.SessionRecord) {
		rec.Files = append(rec.Files, file)
	})
}

// Delete removes the session record, its history, its paper metadata and its
// chunk partition. Every step is attempted; failures are joined.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	exists, err := m.sessions.SessionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check session %s: %w", id, err)
	}
	if !exists {
		return ErrSessionNotFound
	}

	errs := []error{
		m.sessions.DeleteSession(ctx, id),
		m.history.ClearHistory(ctx, id),
		m.papers.DeletePapers(ctx, id),
		m.index.DropPartition(ctx, id),
	}

	m.mu.Lock()
	delete(m.registry, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return errors.Join(errs...)
}

// AddMessage appends a user/assistant turn with shared metadata.
func (m *SessionManager) AddMessage(ctx context.Context, id, userContent, aiContent string, meta store.MessageMeta) error {
	if meta.Type == "" {
		meta.Type = store.MessageTypeText
	}
	if meta.Time == "" {
		meta.Time = time.Now().Format(time.DateTime)
	}
	if _, err := m.history.AppendTurn(ctx, id, userContent, aiContent, meta); err != nil {
		return fmt.Errorf("failed to append turn to session %s: %w", id, err)
	}
	m.refreshCount(ctx, id)
	return nil
}

// Messages returns the session's full history log.
func (m *SessionManager) Messages(ctx context.Context, id string) ([]store.Message, error) {
	return m.history.Messages(ctx, id)
}

func (m *SessionManager) updateRecord(ctx context.Context, id string, mutate func(*store.SessionRecord)) error {
	rec, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session %s: %w", id, err)
	}
	if rec == nil {
		return ErrSessionNotFound
	}
	mutate(rec)
	if err := m.sessions.PutSession(ctx, *rec); err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	m.register(m.fromRecord(ctx, rec))
	return nil
}

func (m *SessionManager) fromRecord(ctx context.Context, rec *store.SessionRecord) *Session {
	count, err := m.history.CountMessages(ctx, rec.ID)
	if err != nil {
		log.Printf("Failed to count messages of session %s: %v", rec.ID, err)
	}
	chunks, err := m.index.CountChunks(ctx, rec.ID)
	if err != nil {
		log.Printf("Failed to count chunks of session %s: %v", rec.ID, err)
	}
	files := rec.Files
	if files == nil {
		files = []store.FileDescriptor{}
	}
	return &Session{
		ID:           rec.ID,
		Name:         rec.Name,
		CreatedAt:    rec.CreatedAt,
		Files:        files,
		MessageCount: count,
		ChunkCount:   chunks,
	}
}

func (m *SessionManager) register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registry[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.registry[s.ID] = s
}

func (m *SessionManager) refreshCount(ctx context.Context, id string) {
	count, err := m.history.CountMessages(ctx, id)
	if err != nil {
		log.Printf("Failed to count messages of session %s: %v", id, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.registry[id]; ok {
		s.MessageCount = count
	}
}
