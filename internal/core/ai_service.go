package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

const (
	DefaultHistoryWindow = 8

	// First-page runes handed to the summarizer.
	summaryInputLimit = 2000
)

type AIConfig struct {
	HistoryWindow int
	TopK          int
	Triggers      []string
}

// AIService runs the answer pipeline (condense, retrieve, format, prompt,
// stream) and paper ingestion for a session.
type AIService struct {
	model         ChatModel
	history       HistoryStore
	papers        MetadataStore
	ingestor      Ingestor
	condenser     *Condenser
	retriever     *Retriever
	historyWindow int
}

func NewAIService(model ChatModel, history HistoryStore, papers MetadataStore, index DocumentIndex, ingestor Ingestor, cfg AIConfig) *AIService {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &AIService{
		model:         model,
		history:       history,
		papers:        papers,
		ingestor:      ingestor,
		condenser:     NewCondenser(model, cfg.Triggers),
		retriever:     NewRetriever(index, cfg.TopK),
		historyWindow: window,
	}
}

// GetResponseStream answers message from the session's papers, or from paperID
// only when it is set. The stream starts with the source header.
func (s *AIService) GetResponseStream(ctx context.Context, message, sessionID, paperID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		question := strings.TrimSpace(message)
		if question == "" {
			yield("", fmt.Errorf("%w: empty question", ErrInvalidInput))
			return
		}
		chinese := IsChinese(question)

		history := s.historyMessages(ctx, sessionID)
		query := s.condenser.Condense(ctx, question, history)
		debugf("session %s: retrieval query %q (history %d)", sessionID, query, len(history))

		hits := s.retriever.Retrieve(ctx, query, sessionID, paperID)
		contextText := FormatContext(hits, chinese)

		var selected *store.Paper
		if paperID != "" {
			selected = s.selectedPaper(ctx, sessionID, paperID)
		}
		header := BuildSourceHeader(hits, chinese, selected)

		system, user := BuildPrompt(question, contextText, chinese)
		msgs := make([]PromptMessage, 0, len(history)+2)
		msgs = append(msgs, PromptMessage{Role: RoleSystem, Content: system})
		msgs = append(msgs, history...)
		msgs = append(msgs, PromptMessage{Role: RoleUser, Content: user})
		debugf("session %s: prompt with %d messages, %d context chunks", sessionID, len(msgs), len(hits))

		for fragment, err := range StreamAnswer(ctx, s.model, msgs, header) {
			if !yield(fragment, err) || err != nil {
				return
			}
		}
	}
}

// GetResponse is the joined GetResponseStream.
func (s *AIService) GetResponse(ctx context.Context, message, sessionID, paperID string) (string, error) {
	return Collect(s.GetResponseStream(ctx, message, sessionID, paperID))
}

// UploadResult reports a finished ingestion.
type UploadResult struct {
	Message    string           `json:"message"`
	ChunkCount int              `json:"chunk_count"`
	Paper      store.Paper      `json:"meta"`
	File       *ingest.FileInfo `json:"file_info,omitempty"`
}

// SaveUpload stores an uploaded file without indexing it.
func (s *AIService) SaveUpload(r io.Reader, filename, contentType string) (*ingest.FileInfo, error) {
	info, err := s.ingestor.SaveUpload(r, filename, contentType)
	if err != nil {
		return nil, &IngestError{Op: IngestOpFile, Err: err}
	}
	return info, nil
}

// ProcessFileUpload indexes a saved file and records its paper metadata.
func (s *AIService) ProcessFileUpload(ctx context.Context, filename, path, sessionID string) (*UploadResult, error) {
	n, doc, err := s.ingestor.ProcessFile(ctx, path, sessionID, ingest.SourceOptions{
		SourceName: filename,
		SourceFile: filepath.Base(path),
	})
	if err != nil {
		return nil, &IngestError{Op: IngestOpFile, Err: err}
	}

	paper, chinese, err := s.recordPaper(ctx, sessionID, doc, filename)
	if err != nil {
		return nil, &IngestError{Op: IngestOpFile, Err: err}
	}

	msg := fmt.Sprintf("File '%s' uploaded successfully, %d chunks parsed. You can start asking questions now.", filename, n)
	if chinese {
		msg = fmt.Sprintf("文件 '%s' 上传成功，已解析 %d 个片段。现在可以开始提问。", filename, n)
	}
	return &UploadResult{Message: msg, ChunkCount: n, Paper: *paper}, nil
}

// PreparePaperSource resolves an arXiv id or URL without downloading it.
func (s *AIService) PreparePaperSource(source, sessionID string) (*ingest.FileInfo, error) {
	info, err := s.ingestor.PrepareSource(source, sessionID)
	if err != nil {
		return nil, &IngestError{Op: IngestOpSource, Err: err}
	}
	return info, nil
}

// ProcessPaperSource downloads and indexes a remote paper.
func (s *AIService) ProcessPaperSource(ctx context.Context, source, sessionID string) (*UploadResult, error) {
	info, n, doc, err := s.ingestor.ProcessSource(ctx, source, sessionID)
	if err != nil {
		return nil, &IngestError{Op: IngestOpSource, Err: err}
	}

	paper, chinese, err := s.recordPaper(ctx, sessionID, doc, info.Filename)
	if err != nil {
		return nil, &IngestError{Op: IngestOpSource, Err: err}
	}

	msg := fmt.Sprintf("Imported paper source '%s', %d chunks parsed. You can start asking questions now.", info.Filename, n)
	if chinese {
		msg = fmt.Sprintf("已导入论文来源 '%s'，解析 %d 个片段。现在可以开始提问。", info.Filename, n)
	}
	return &UploadResult{Message: msg, ChunkCount: n, Paper: *paper, File: info}, nil
}

// recordPaper summarizes the first page and stores the paper's metadata.
func (s *AIService) recordPaper(ctx context.Context, sessionID string, doc *ingest.Document, filename string) (*store.Paper, bool, error) {
	chinese := IsChinese(firstNonEmpty(doc.FirstPageText, filename))
	title, summary := s.summarizePaper(ctx, doc.FirstPageText, firstNonEmpty(doc.SourceName, filename), chinese)

	paper := store.Paper{
		PaperID:   doc.PaperID,
		SessionID: sessionID,
		FileID:    doc.SourceFile,
		FileName:  doc.SourceName,
		Title:     title,
		Summary:   summary,
		SourceURL: doc.SourceURL,
		Path:      doc.SourcePath,
		PageCount: doc.PageCount,
		CreatedAt: time.Now(),
	}
	if err := s.papers.PutPaper(ctx, paper); err != nil {
		return nil, chinese, fmt.Errorf("failed to store paper metadata: %w", err)
	}
	return &paper, chinese, nil
}

type paperSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// summarizePaper extracts a title and one-sentence summary from the first page.
// Any failure yields (fallbackTitle, "").
func (s *AIService) summarizePaper(ctx context.Context, firstPage, fallbackTitle string, chinese bool) (string, string) {
	text := strings.TrimSpace(firstPage)
	if text == "" {
		return fallbackTitle, ""
	}
	if r := []rune(text); len(r) > summaryInputLimit {
		text = string(r[:summaryInputLimit])
	}

	system := "You are a paper parsing assistant. From the first page text, extract the paper title and a 1-sentence summary. " +
		`Return JSON: {"title": "...", "summary": "..."}.`
	if chinese {
		system = "你是论文解析助手。请根据给定的论文首页内容，提取论文标题并给出一句话摘要。" +
			`请输出JSON，格式为：{"title": "...", "summary": "..."}。`
	}

	reply, err := s.model.Invoke(ctx, []PromptMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: text},
	})
	if err != nil {
		log.Printf("Failed to summarize paper %q: %v", fallbackTitle, err)
		return fallbackTitle, ""
	}

	var out paperSummary
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &out); err != nil {
		log.Printf("Summary for paper %q is not valid JSON: %v", fallbackTitle, err)
		return fallbackTitle, ""
	}
	return firstNonEmpty(strings.TrimSpace(out.Title), fallbackTitle), strings.TrimSpace(out.Summary)
}

func (s *AIService) historyMessages(ctx context.Context, sessionID string) []PromptMessage {
	msgs, err := s.history.LastMessages(ctx, sessionID, s.historyWindow)
	if err != nil {
		log.Printf("Error getting chat history for session %s: %v. Proceeding without history.", sessionID, err)
		return nil
	}
	out := make([]PromptMessage, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == store.RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, PromptMessage{Role: role, Content: m.Content})
	}
	return out
}

func (s *AIService) selectedPaper(ctx context.Context, sessionID, paperID string) *store.Paper {
	p, err := s.papers.GetPaper(ctx, sessionID, paperID)
	if err != nil {
		log.Printf("Failed to load metadata of paper %s: %v", paperID, err)
		return nil
	}
	return p
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
