package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultChatModelName      = "gemini-1.5-flash-latest"
	DefaultEmbeddingModelName = "text-embedding-004"

	// Upper bound of texts per BatchEmbedContents call.
	maxEmbedBatch = 100

	titleSystemInstruction = "You are a helpful assistant that generates concise titles for chat conversations. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."
)

// LLMService adapts a Gemini client to ChatModel and the chunk index embedder.
type LLMService struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
}

func NewLLMService(ctx context.Context, apiKey, chatModel, embeddingModel string) (*LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing Gemini API key", ErrInvalidInput)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if chatModel == "" {
		chatModel = DefaultChatModelName
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModelName
	}
	return &LLMService{client: client, chatModel: chatModel, embeddingModel: embeddingModel}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

// Embed returns one embedding per text, batching requests.
func (s *LLMService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if res == nil || len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned an incomplete embedding batch")
		}
		for _, e := range res.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, fmt.Errorf("no embedding data received from gemini")
			}
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Invoke sends the conversation and returns the whole reply.
func (s *LLMService) Invoke(ctx context.Context, msgs []PromptMessage) (string, error) {
	cs, last, err := s.startChat(msgs)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty or non-text response")
	}
	return text, nil
}

// Stream yields reply fragments as they arrive. No further fragments are
// requested once the consumer stops.
func (s *LLMService) Stream(ctx context.Context, msgs []PromptMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cs, last, err := s.startChat(msgs)
		if err != nil {
			yield("", err)
			return
		}
		it := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// GenerateTitle asks for a 3-5 word title describing the conversation opener.
func (s *LLMService) GenerateTitle(ctx context.Context, basis string) (string, error) {
	model := s.client.GenerativeModel(s.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(titleSystemInstruction)},
	}
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(20)

	prompt := fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a conversation that starts with or is about: \"%s\".", basis)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}
	title := strings.Trim(responseText(resp), "\"'\n\r\t .")
	if title == "" {
		return "", fmt.Errorf("LLM generated an empty title string")
	}
	return title, nil
}

// startChat turns prompt messages into a chat session whose history holds every
// message but the last, which is returned for sending.
func (s *LLMService) startChat(msgs []PromptMessage) (*genai.ChatSession, *genai.Content, error) {
	system, contents := toGenaiContents(msgs)
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("prompt history is empty for chat completion")
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	model := s.client.GenerativeModel(s.chatModel)
	model.SetTemperature(0)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	return cs, last, nil
}

// toGenaiContents folds system messages into one instruction and merges
// consecutive same-role messages, since Gemini expects alternating turns
// starting with the user. A model turn left at the head of a truncated history
// window is dropped.
func toGenaiContents(msgs []PromptMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		if role == "model" && len(contents) == 0 {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(m.Content))
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return strings.Join(system, "\n\n"), contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
