package core

import (
	"slices"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestToGenaiContents(t *testing.T) {
	tests := []struct {
		name       string
		msgs       []PromptMessage
		wantSystem string
		wantRoles  []string
		wantParts  []int
	}{
		{
			name: "system folded into instruction",
			msgs: []PromptMessage{
				{Role: RoleSystem, Content: "You answer from papers."},
				{Role: RoleUser, Content: "hi"},
				{Role: RoleSystem, Content: "Context: none"},
			},
			wantSystem: "You answer from papers.\n\nContext: none",
			wantRoles:  []string{"user"},
			wantParts:  []int{1},
		},
		{
			name: "assistant becomes model",
			msgs: []PromptMessage{
				{Role: RoleUser, Content: "q1"},
				{Role: RoleAssistant, Content: "a1"},
				{Role: RoleUser, Content: "q2"},
			},
			wantRoles: []string{"user", "model", "user"},
			wantParts: []int{1, 1, 1},
		},
		{
			name: "same role merged",
			msgs: []PromptMessage{
				{Role: RoleUser, Content: "q1"},
				{Role: RoleUser, Content: "q2"},
				{Role: RoleAssistant, Content: "a1"},
				{Role: RoleAssistant, Content: "a2"},
				{Role: RoleUser, Content: "q3"},
			},
			wantRoles: []string{"user", "model", "user"},
			wantParts: []int{2, 2, 1},
		},
		{
			name: "leading model turn dropped",
			msgs: []PromptMessage{
				{Role: RoleSystem, Content: "sys"},
				{Role: RoleAssistant, Content: "a0"},
				{Role: RoleUser, Content: "q1"},
				{Role: RoleAssistant, Content: "a1"},
				{Role: RoleUser, Content: "q2"},
			},
			wantSystem: "sys",
			wantRoles:  []string{"user", "model", "user"},
			wantParts:  []int{1, 1, 1},
		},
		{
			name: "only model turns",
			msgs: []PromptMessage{
				{Role: RoleAssistant, Content: "a0"},
				{Role: RoleAssistant, Content: "a1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, contents := toGenaiContents(tt.msgs)
			if system != tt.wantSystem {
				t.Errorf("system = %q, want %q", system, tt.wantSystem)
			}
			var roles []string
			var parts []int
			for _, c := range contents {
				roles = append(roles, c.Role)
				parts = append(parts, len(c.Parts))
			}
			if !slices.Equal(roles, tt.wantRoles) {
				t.Errorf("roles = %v, want %v", roles, tt.wantRoles)
			}
			if !slices.Equal(parts, tt.wantParts) {
				t.Errorf("parts per turn = %v, want %v", parts, tt.wantParts)
			}
		})
	}
}

func TestToGenaiContentsKeepsText(t *testing.T) {
	_, contents := toGenaiContents([]PromptMessage{
		{Role: RoleAssistant, Content: "dropped"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleUser, Content: "second"},
	})
	if len(contents) != 1 {
		t.Fatalf("contents = %d turns, want 1", len(contents))
	}
	want := []genai.Part{genai.Text("first"), genai.Text("second")}
	if !slices.Equal(contents[0].Parts, want) {
		t.Errorf("parts = %v, want %v", contents[0].Parts, want)
	}
}
