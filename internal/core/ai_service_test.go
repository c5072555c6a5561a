package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

func TestGetResponseScopesToSelectedPaper(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{fragments: []string{"Alpha wins", "."}}
	e := newEnv(t, model, nil)

	e.addPaper(t, "S", "A", "alpha results table", "alpha method details")
	e.addPaper(t, "S", "B", "beta results table")
	e.addPaper(t, "T", "C", "gamma results table")
	if err := e.store.PutPaper(ctx, store.Paper{PaperID: "A", SessionID: "S", Title: "Alpha Paper", FileName: "A.pdf", Path: "/papers/A.pdf", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("PutPaper() error = %v", err)
	}

	answer, err := e.ai.GetResponse(ctx, "What are the results?", "S", "A")
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	wantHeader := "Paper in focus: Alpha Paper, PDF: A.pdf, Path: /papers/A.pdf\n\n"
	if answer != wantHeader+"Alpha wins." {
		t.Errorf("GetResponse() = %q", answer)
	}

	msgs := model.lastStreamed(t)
	if msgs[0].Role != RoleSystem {
		t.Errorf("first prompt message role = %s, want system", msgs[0].Role)
	}
	user := msgs[len(msgs)-1].Content
	if !strings.Contains(user, "alpha results table") || strings.Contains(user, "beta") || strings.Contains(user, "gamma") {
		t.Errorf("context leaked outside paper A:\n%s", user)
	}
	if !strings.Contains(user, "[1pag,") || !strings.Contains(user, "[2pag,") || strings.Contains(user, "[3pag") {
		t.Errorf("expected citations 1..2 only:\n%s", user)
	}
}

func TestGetResponseEqualsJoinedStream(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{fragments: []string{"one ", "two ", "three"}}
	e := newEnv(t, model, nil)
	e.addPaper(t, "S", "A", "numbers one two three")

	var parts []string
	for f, err := range e.ai.GetResponseStream(ctx, "Count the numbers", "S", "") {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		parts = append(parts, f)
	}
	if len(parts) != 4 || !strings.HasPrefix(parts[0], "Paper in focus: A.pdf") {
		t.Fatalf("stream parts = %q, want header then 3 fragments", parts)
	}

	joined, err := e.ai.GetResponse(ctx, "Count the numbers", "S", "")
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	if joined != strings.Join(parts, "") {
		t.Errorf("GetResponse() = %q, want %q", joined, strings.Join(parts, ""))
	}
}

func TestGetResponseWithoutContextUsesPlaceholder(t *testing.T) {
	model := &fakeModel{fragments: []string{"没有找到"}}
	e := newEnv(t, model, nil)

	answer, err := e.ai.GetResponse(context.Background(), "这篇论文讲了什么", "empty", "")
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	if !strings.HasPrefix(answer, "正在询问的论文名称：未知") {
		t.Errorf("answer header = %q", answer)
	}
	user := model.lastStreamed(t)
	if !strings.Contains(user[len(user)-1].Content, NoContextChinese) {
		t.Error("expected chinese placeholder in prompt")
	}
}

func TestGetResponseCondensesFollowUp(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{reply: "What dataset does the alpha paper use?", fragments: []string{"ok"}}
	e := newEnv(t, model, nil)
	if _, err := e.store.AppendTurn(ctx, "S", "Tell me about alpha", "Alpha is a paper.", store.MessageMeta{Type: store.MessageTypeText}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	if _, err := e.ai.GetResponse(ctx, "Which dataset does it use?", "S", ""); err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	if model.invokeCount() != 1 {
		t.Fatalf("condense calls = %d, want 1", model.invokeCount())
	}

	msgs := model.lastStreamed(t)
	if len(msgs) != 4 {
		t.Fatalf("prompt has %d messages, want system + 2 history + user", len(msgs))
	}
	if msgs[1].Role != RoleUser || msgs[2].Role != RoleAssistant {
		t.Errorf("history roles = %s, %s", msgs[1].Role, msgs[2].Role)
	}
	if !strings.Contains(msgs[3].Content, "Which dataset does it use?") {
		t.Error("user prompt should carry the original question, not the condensed one")
	}
}

func TestGetResponseEmptyQuestion(t *testing.T) {
	e := newEnv(t, &fakeModel{}, nil)
	if _, err := e.ai.GetResponse(context.Background(), "   ", "S", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("GetResponse(blank) error = %v, want ErrInvalidInput", err)
	}
}

func TestProcessFileUploadWithoutTitleText(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{reply: `{"title": "should not be used"}`}
	ing := &fakeIngestor{chunks: 4, doc: ingest.Document{PaperID: "p1", SourceFile: "saved.pdf", PageCount: 3}}
	e := newEnv(t, model, ing)

	res, err := e.ai.ProcessFileUpload(ctx, "scan.pdf", "/up/saved.pdf", "S")
	if err != nil {
		t.Fatalf("ProcessFileUpload() error = %v", err)
	}
	if res.Paper.Title != "scan.pdf" || res.Paper.Summary != "" || res.Paper.PageCount != 3 {
		t.Errorf("paper = %+v, want title scan.pdf, empty summary, 3 pages", res.Paper)
	}
	if model.invokeCount() != 0 {
		t.Errorf("summarizer invoked %d times for empty first page", model.invokeCount())
	}
	if !strings.Contains(res.Message, "scan.pdf") || !strings.Contains(res.Message, "4") {
		t.Errorf("Message = %q", res.Message)
	}

	stored, err := e.store.GetPaper(ctx, "S", "p1")
	if err != nil || stored == nil || stored.Title != "scan.pdf" {
		t.Errorf("stored paper = %+v, %v", stored, err)
	}
}

func TestProcessFileUploadSummarizes(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{reply: "```json\n{\"title\": \"Attention Is All You Need\", \"summary\": \"Introduces the Transformer.\"}\n```"}
	ing := &fakeIngestor{chunks: 2, doc: ingest.Document{PaperID: "p2", PageCount: 15, FirstPageText: "Attention Is All You Need\nAbstract ..."}}
	e := newEnv(t, model, ing)

	res, err := e.ai.ProcessFileUpload(ctx, "attn.pdf", "/up/x.pdf", "S")
	if err != nil {
		t.Fatalf("ProcessFileUpload() error = %v", err)
	}
	if res.Paper.Title != "Attention Is All You Need" || res.Paper.Summary != "Introduces the Transformer." {
		t.Errorf("paper = %+v", res.Paper)
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{invokeErr: errors.New("quota")}},
		{"not json", &fakeModel{reply: "The title is X"}},
		{"empty title", &fakeModel{reply: `{"title": "", "summary": ""}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.model, &fakeIngestor{})
			title, summary := e.ai.summarizePaper(context.Background(), "Some first page", "fallback.pdf", false)
			if title != "fallback.pdf" || summary != "" {
				t.Errorf("summarizePaper() = %q, %q", title, summary)
			}
		})
	}
}

func TestProcessFileUploadFailure(t *testing.T) {
	e := newEnv(t, &fakeModel{}, &fakeIngestor{err: ingest.ErrUnsupportedFormat})

	_, err := e.ai.ProcessFileUpload(context.Background(), "page.html", "/up/page.html", "S")
	var ie *IngestError
	if !errors.As(err, &ie) || ie.Op != IngestOpFile {
		t.Fatalf("ProcessFileUpload() error = %v, want *IngestError", err)
	}
	if !errors.Is(err, ingest.ErrUnsupportedFormat) {
		t.Errorf("error does not wrap cause: %v", err)
	}
}

func TestPreparePaperSource(t *testing.T) {
	e := newEnv(t, &fakeModel{}, &fakeIngestor{saveDir: "/up"})

	info, err := e.ai.PreparePaperSource("arXiv:1706.03762", "S")
	if err != nil {
		t.Fatalf("PreparePaperSource() error = %v", err)
	}
	if info.URL != "https://arxiv.org/pdf/1706.03762.pdf" || info.SavedName != "S_arXiv_1706.03762.pdf" {
		t.Errorf("PreparePaperSource() = %+v", info)
	}

	_, err = e.ai.PreparePaperSource("not a source", "S")
	var ie *IngestError
	if !errors.As(err, &ie) || ie.Op != IngestOpSource || !errors.Is(err, ingest.ErrUnsupportedSource) {
		t.Errorf("PreparePaperSource(bad) error = %v", err)
	}
}

func TestProcessPaperSourceRecordsURL(t *testing.T) {
	ing := &fakeIngestor{saveDir: t.TempDir(), chunks: 7, doc: ingest.Document{PaperID: "p3", PageCount: 9}}
	e := newEnv(t, &fakeModel{}, ing)

	res, err := e.ai.ProcessPaperSource(context.Background(), "1706.03762", "S")
	if err != nil {
		t.Fatalf("ProcessPaperSource() error = %v", err)
	}
	if res.File == nil || res.Paper.SourceURL != "https://arxiv.org/pdf/1706.03762.pdf" || res.ChunkCount != 7 {
		t.Errorf("ProcessPaperSource() = %+v", res)
	}
	if res.Paper.Title != "1706.03762.pdf" {
		t.Errorf("title = %q, want file name fallback", res.Paper.Title)
	}
}
