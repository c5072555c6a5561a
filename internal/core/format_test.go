package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gwi.com/paper-assistant/internal/store"
)

func hit(paperID, content string, page *int) store.ScoredChunk {
	return store.ScoredChunk{Chunk: store.Chunk{
		PaperID:    paperID,
		SourceName: paperID + ".pdf",
		SourceFile: paperID + "-saved.pdf",
		SourcePath: "/papers/" + paperID + ".pdf",
		Page:       page,
		Content:    content,
	}}
}

func intPtr(i int) *int { return &i }

func TestFormatContextNumbersAndPages(t *testing.T) {
	hits := []store.ScoredChunk{
		hit("a", "  first passage ", intPtr(3)),
		hit("a", "   ", intPtr(4)),
		hit("b", "second passage", nil),
		hit("b", "third passage", intPtr(0)),
	}

	got := FormatContext(hits, false)
	want := "[1pag,4] first passage\n\n[2pag] second passage\n\n[3pag,1] third passage"
	if got != want {
		t.Errorf("FormatContext(en) =\n%q\nwant\n%q", got, want)
	}

	got = FormatContext(hits, true)
	want = "[1页,4] first passage\n\n[2页] second passage\n\n[3页,1] third passage"
	if got != want {
		t.Errorf("FormatContext(zh) =\n%q\nwant\n%q", got, want)
	}

	if got := FormatContext(nil, false); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
}

func TestBuildSourceHeader(t *testing.T) {
	hits := []store.ScoredChunk{hit("a", "x", nil), hit("b", "y", nil), hit("a", "z", nil)}
	hits[1].Chunk.SourceURL = "https://arxiv.org/pdf/1706.03762.pdf"

	got := BuildSourceHeader(hits, false, nil)
	want := "Paper in focus: a.pdf；b.pdf, PDF: a-saved.pdf；https://arxiv.org/pdf/1706.03762.pdf, Path: /papers/a.pdf；/papers/b.pdf\n\n"
	if got != want {
		t.Errorf("BuildSourceHeader(multi) =\n%q\nwant\n%q", got, want)
	}

	selected := &store.Paper{Title: "Attention Is All You Need", FileName: "attn.pdf", Path: "/up/attn.pdf"}
	got = BuildSourceHeader(hits, true, selected)
	want = "正在询问的论文名称：Attention Is All You Need，PDF文件：attn.pdf，路径：/up/attn.pdf\n\n"
	if got != want {
		t.Errorf("BuildSourceHeader(selected) = %q, want %q", got, want)
	}

	if got := BuildSourceHeader(nil, true, nil); got != "正在询问的论文名称：未知，PDF文件：未知，路径：未知\n\n" {
		t.Errorf("BuildSourceHeader(empty, zh) = %q", got)
	}
	if got := BuildSourceHeader(nil, false, &store.Paper{}); got != "Paper in focus: unknown, PDF: unknown, Path: unknown\n\n" {
		t.Errorf("BuildSourceHeader(blank paper, en) = %q", got)
	}
}

func TestIsChinese(t *testing.T) {
	tests := map[string]bool{
		"What is attention?": false,
		"注意力是什么":             true,
		"BERT 模型":            true,
		"こんにちは":              false,
		"":                   false,
	}
	for in, want := range tests {
		if got := IsChinese(in); got != want {
			t.Errorf("IsChinese(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildPromptPlaceholder(t *testing.T) {
	system, user := BuildPrompt("What is BLEU?", "", false)
	if !strings.Contains(user, NoContextEnglish) || !strings.Contains(user, "What is BLEU?") {
		t.Errorf("english user prompt missing placeholder or question: %q", user)
	}
	if !strings.Contains(system, ReferenceHeaderEnglish) {
		t.Error("english system prompt missing reference header")
	}

	system, user = BuildPrompt("什么是BLEU？", "[1页,2] BLEU is a metric", true)
	if strings.Contains(user, NoContextChinese) || !strings.Contains(user, "[1页,2] BLEU is a metric") {
		t.Errorf("chinese user prompt = %q", user)
	}
	if !strings.Contains(system, ReferenceHeaderChinese) || !strings.Contains(system, "【") {
		t.Error("chinese system prompt missing citation format")
	}
}

func TestStreamAnswerHeaderFirst(t *testing.T) {
	model := &fakeModel{fragments: []string{"Hello", "", " world"}}
	var got []string
	for f, err := range StreamAnswer(context.Background(), model, nil, "HEADER\n\n") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, f)
	}
	want := []string{"HEADER\n\n", "Hello", " world"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("fragments = %q, want %q", got, want)
	}

	joined, err := Collect(StreamAnswer(context.Background(), model, nil, "HEADER\n\n"))
	if err != nil || joined != "HEADER\n\nHello world" {
		t.Errorf("Collect() = %q, %v", joined, err)
	}
}

func TestStreamAnswerStopsPulling(t *testing.T) {
	model := &fakeModel{fragments: []string{"a", "b", "c", "d"}}
	for f := range StreamAnswer(context.Background(), model, nil, "") {
		if f == "b" {
			break
		}
	}
	if model.pulled != 2 {
		t.Errorf("model pulled %d fragments, want 2", model.pulled)
	}
}

func TestStreamAnswerError(t *testing.T) {
	boom := errors.New("connection reset")
	model := &fakeModel{fragments: []string{"partial"}, streamErr: boom}

	got, err := Collect(StreamAnswer(context.Background(), model, nil, "H "))
	if !errors.Is(err, boom) {
		t.Fatalf("Collect() error = %v, want %v", err, boom)
	}
	if got != "H partial" {
		t.Errorf("fragments before error = %q", got)
	}
}
