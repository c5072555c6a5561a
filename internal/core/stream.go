package core

import (
	"context"
	"iter"
	"strings"
)

// StreamAnswer yields header (when non-empty) and then every non-empty fragment
// of the model's reply, unchanged and in order.
func StreamAnswer(ctx context.Context, model ChatModel, msgs []PromptMessage, header string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if header != "" {
			if !yield(header, nil) {
				return
			}
		}
		for fragment, err := range model.Stream(ctx, msgs) {
			if err != nil {
				yield("", err)
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Collect joins a fragment stream. Fragments received before an error are
// returned alongside it.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for fragment, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}
