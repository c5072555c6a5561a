package core

import (
	"context"
	"errors"
	"testing"
)

func TestNeedsCondense(t *testing.T) {
	c := NewCondenser(&fakeModel{}, nil)
	tests := []struct {
		question string
		want     bool
	}{
		{"What is multi-head attention?", false},
		{"Explain this in more detail", true},
		{"What are ITS main results?", true},
		{"How does it compare?", true},
		{"What's in the history section within the appendix?", false},
		{"Summarize the previous answer", true},
		{"它的作用是什么？", true},
		{"上述方法有什么缺点", true},
		{"注意力机制是什么", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.NeedsCondense(tt.question); got != tt.want {
			t.Errorf("NeedsCondense(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

func TestCondenseIdentityWithoutTriggersOrHistory(t *testing.T) {
	model := &fakeModel{reply: "rewritten"}
	c := NewCondenser(model, nil)
	history := []PromptMessage{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}

	if got := c.Condense(context.Background(), "Explain this", nil); got != "Explain this" {
		t.Errorf("Condense(no history) = %q", got)
	}
	if got := c.Condense(context.Background(), "What is a transformer?", history); got != "What is a transformer?" {
		t.Errorf("Condense(no trigger) = %q", got)
	}
	if n := model.invokeCount(); n != 0 {
		t.Errorf("model invoked %d times, want 0", n)
	}
}

func TestCondenseRewritesFollowUp(t *testing.T) {
	model := &fakeModel{reply: "  What are the limitations of the Transformer?  \n"}
	c := NewCondenser(model, nil)
	history := []PromptMessage{
		{Role: RoleUser, Content: "What is the Transformer?"},
		{Role: RoleAssistant, Content: "An attention-only architecture."},
	}

	got := c.Condense(context.Background(), "What are its limitations?", history)
	if got != "What are the limitations of the Transformer?" {
		t.Errorf("Condense() = %q", got)
	}

	msgs := model.invoked[0]
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want system + 2 history + question", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != condenseSystemPrompt {
		t.Errorf("first message = %+v, want condense instruction", msgs[0])
	}
	if msgs[3].Role != RoleUser || msgs[3].Content != "What are its limitations?" {
		t.Errorf("last message = %+v, want the question", msgs[3])
	}
}

func TestCondenseFallsBack(t *testing.T) {
	history := []PromptMessage{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{invokeErr: errors.New("timeout")}},
		{"blank reply", &fakeModel{reply: "  \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCondenser(tt.model, nil).Condense(context.Background(), "And that one?", history)
			if got != "And that one?" {
				t.Errorf("Condense() = %q, want original question", got)
			}
		})
	}
}

func TestCondenserCustomLexicon(t *testing.T) {
	c := NewCondenser(&fakeModel{}, []string{" Former ", "前者"})
	if !c.NeedsCondense("Compare the former approach") || !c.NeedsCondense("前者更好吗") {
		t.Error("custom triggers not matched")
	}
	if c.NeedsCondense("Explain this") {
		t.Error("default triggers should be replaced by a custom lexicon")
	}
}
