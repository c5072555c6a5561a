package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"
	"time"

	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

const titleTimeout = 30 * time.Second

// TitleGenerator names a session after its first exchange.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, basis string) (string, error)
}

// ChatService ties answers and uploads to session history. A turn is written
// only once the full answer has been assembled.
type ChatService struct {
	sessions *SessionManager
	ai       *AIService
	titler   TitleGenerator // nil disables automatic titles
}

func NewChatService(sessions *SessionManager, ai *AIService, titler TitleGenerator) *ChatService {
	return &ChatService{sessions: sessions, ai: ai, titler: titler}
}

// PostMessage answers content and stores the turn. It returns the stored
// assistant message.
func (s *ChatService) PostMessage(ctx context.Context, sessionID, content, paperID string) (*store.Message, error) {
	sess, question, err := s.prepareTurn(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	answer, err := s.ai.GetResponse(ctx, question, sessionID, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return s.completeTurn(ctx, sess, question, answer)
}

// PostMessageStream validates the request, then returns the answer stream. The
// turn is stored after the last fragment; a consumer that stops early leaves
// history untouched.
func (s *ChatService) PostMessageStream(ctx context.Context, sessionID, content, paperID string) (iter.Seq2[string, error], error) {
	sess, question, err := s.prepareTurn(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		var answer strings.Builder
		for fragment, err := range s.ai.GetResponseStream(ctx, question, sessionID, paperID) {
			if err != nil {
				yield("", err)
				return
			}
			answer.WriteString(fragment)
			if !yield(fragment, nil) {
				return
			}
		}
		if _, err := s.completeTurn(ctx, sess, question, answer.String()); err != nil {
			yield("", err)
		}
	}, nil
}

// UploadPaper saves, indexes and records an uploaded paper. The upload note and
// its outcome are stored as one file turn, also when ingestion fails.
func (s *ChatService) UploadPaper(ctx context.Context, sessionID string, r io.Reader, filename, contentType string) (*UploadResult, error) {
	if _, ok := s.sessions.Get(ctx, sessionID); !ok {
		return nil, ErrSessionNotFound
	}

	info, err := s.ai.SaveUpload(r, filename, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.AddFile(ctx, sessionID, store.FileDescriptor{
		Filename:  info.Filename,
		SavedName: info.SavedName,
		Size:      info.Size,
		Type:      info.Type,
	}); err != nil {
		log.Printf("Failed to record file %s on session %s: %v", info.Filename, sessionID, err)
	}

	result, ingestErr := s.ai.ProcessFileUpload(ctx, info.Filename, info.Path, sessionID)
	if result != nil {
		result.File = info
	}
	note := uploadNote(info.Filename, info.Path)
	s.recordFileTurn(ctx, sessionID, note, result, ingestErr)
	return result, ingestErr
}

// ImportPaper downloads and indexes an arXiv id or PDF URL.
func (s *ChatService) ImportPaper(ctx context.Context, sessionID, source string) (*UploadResult, error) {
	if _, ok := s.sessions.Get(ctx, sessionID); !ok {
		return nil, ErrSessionNotFound
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty paper source", ErrInvalidInput)
	}

	preview, err := s.ai.PreparePaperSource(source, sessionID)
	if err != nil {
		return nil, err
	}

	result, ingestErr := s.ai.ProcessPaperSource(ctx, source, sessionID)
	if ingestErr == nil && result.File != nil {
		if err := s.sessions.AddFile(ctx, sessionID, store.FileDescriptor{
			Filename:  result.File.Filename,
			SavedName: result.File.SavedName,
			Size:      result.File.Size,
			Type:      result.File.Type,
		}); err != nil {
			log.Printf("Failed to record file %s on session %s: %v", result.File.Filename, sessionID, err)
		}
	}
	note := importNote(source, preview.Path)
	s.recordFileTurn(ctx, sessionID, note, result, ingestErr)
	return result, ingestErr
}

// Papers lists the session's papers by creation time.
func (s *ChatService) Papers(ctx context.Context, sessionID string) ([]store.Paper, error) {
	if _, ok := s.sessions.Get(ctx, sessionID); !ok {
		return nil, ErrSessionNotFound
	}
	return s.ai.papers.ListPapers(ctx, sessionID)
}

func (s *ChatService) prepareTurn(ctx context.Context, sessionID, content string) (*Session, string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, "", fmt.Errorf("%w: missing session id", ErrInvalidInput)
	}
	question := strings.TrimSpace(content)
	if question == "" {
		return nil, "", fmt.Errorf("%w: message content cannot be empty", ErrInvalidInput)
	}
	sess, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	return sess, question, nil
}

func (s *ChatService) completeTurn(ctx context.Context, sess *Session, question, answer string) (*store.Message, error) {
	meta := store.MessageMeta{Type: store.MessageTypeText, Time: time.Now().Format(time.DateTime)}
	if err := s.sessions.AddMessage(ctx, sess.ID, question, answer, meta); err != nil {
		return nil, err
	}

	if s.titler != nil && sess.MessageCount == 0 && isPlaceholderName(sess.Name) {
		go s.generateAndSaveTitle(sess.ID, question)
	}

	return &store.Message{
		SessionID: sess.ID,
		Role:      store.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now(),
		Meta:      meta,
	}, nil
}

func (s *ChatService) recordFileTurn(ctx context.Context, sessionID, note string, result *UploadResult, ingestErr error) {
	reply := ""
	switch {
	case ingestErr != nil:
		reply = ingestErr.Error()
	case result != nil:
		reply = completionNote(result)
	}
	meta := store.MessageMeta{Type: store.MessageTypeFile, Time: time.Now().Format(time.DateTime)}
	if err := s.sessions.AddMessage(ctx, sessionID, note, reply, meta); err != nil {
		log.Printf("Failed to record upload in session %s history: %v", sessionID, err)
	}
}

func (s *ChatService) generateAndSaveTitle(sessionID, basis string) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	log.Printf("Attempting to generate title for session %s", sessionID)
	title, err := s.titler.GenerateTitle(ctx, basis)
	if err != nil {
		log.Printf("Failed to generate title for session %s: %v", sessionID, err)
		return
	}
	if err := s.sessions.Rename(ctx, sessionID, title); err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			log.Printf("Failed to save generated title '%s' for session %s: %v", title, sessionID, err)
		}
		return
	}
	log.Printf("Successfully generated and saved title '%s' for session %s", title, sessionID)
}

func isPlaceholderName(name string) bool {
	return name == NewSessionName || name == DefaultSessionName
}

func uploadNote(filename, path string) string {
	if IsChinese(filename) {
		return fmt.Sprintf("用户上传了%s 文件，文件上传路径：%s", filename, path)
	}
	return fmt.Sprintf("Uploaded file %s, saved to %s", filename, path)
}

func importNote(source, path string) string {
	return fmt.Sprintf("Imported url/arXiv %s, saved to %s", source, path)
}

func completionNote(r *UploadResult) string {
	p := r.Paper
	title := firstNonEmpty(p.Title, p.FileName)
	if IsChinese(title) {
		return fmt.Sprintf("%s 已完成上传并向量化，上传路径：%s，文件名：%s", title, p.Path, p.FileName)
	}
	return fmt.Sprintf("%s has been uploaded and indexed. Path: %s, file: %s", title, p.Path, p.FileName)
}

var _ Ingestor = (*ingest.Service)(nil)
