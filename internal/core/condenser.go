package core

import (
	"context"
	"log"
	"slices"
	"strings"
	"unicode"
)

// DefaultTriggers are words that make a question depend on earlier turns.
var DefaultTriggers = []string{
	"this", "that", "it", "its", "these", "those", "they", "them", "their", "above", "previous",
	"它", "这", "该", "上述", "其", "它们", "以上", "之前", "前面提到", "前面谈到",
}

const condenseSystemPrompt = "Rewrite the user's question into a standalone question using the chat history. " +
	"Keep the original language. If it's already standalone, return it unchanged."

// Condenser rewrites context-dependent follow-ups into standalone questions
// before retrieval.
type Condenser struct {
	model    ChatModel
	latin    []string
	ideogram []string
}

// NewCondenser splits the lexicon: ASCII triggers match whole words, the rest
// match as substrings since CJK text has no word separators.
func NewCondenser(model ChatModel, triggers []string) *Condenser {
	if len(triggers) == 0 {
		triggers = DefaultTriggers
	}
	c := &Condenser{model: model}
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if isASCII(t) {
			c.latin = append(c.latin, t)
		} else {
			c.ideogram = append(c.ideogram, t)
		}
	}
	return c
}

// NeedsCondense reports whether the question contains a trigger, ignoring case.
func (c *Condenser) NeedsCondense(question string) bool {
	q := strings.ToLower(question)
	for _, t := range c.ideogram {
		if strings.Contains(q, t) {
			return true
		}
	}
	if len(c.latin) == 0 {
		return false
	}
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if slices.Contains(c.latin, w) {
			return true
		}
	}
	return false
}

// Condense returns the retrieval query for question. Without history or triggers
// the question is returned as is; any model failure also yields the question.
func (c *Condenser) Condense(ctx context.Context, question string, history []PromptMessage) string {
	if len(history) == 0 || !c.NeedsCondense(question) {
		return question
	}

	msgs := make([]PromptMessage, 0, len(history)+2)
	msgs = append(msgs, PromptMessage{Role: RoleSystem, Content: condenseSystemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, PromptMessage{Role: RoleUser, Content: question})

	condensed, err := c.model.Invoke(ctx, msgs)
	if err != nil {
		log.Printf("Failed to condense question, using it unchanged: %v", err)
		return question
	}
	condensed = strings.TrimSpace(condensed)
	if condensed == "" {
		return question
	}
	return condensed
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
