package core

import (
	"context"
	"log"

	"gwi.com/paper-assistant/internal/store"
)

const DefaultTopK = 5

// Retriever fetches the chunks most relevant to a query from one session's
// partition, optionally restricted to one paper.
type Retriever struct {
	index DocumentIndex
	topK  int
}

func NewRetriever(index DocumentIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, topK: topK}
}

// Retrieve never fails: search errors are logged and produce no hits.
func (r *Retriever) Retrieve(ctx context.Context, query, sessionID, paperID string) []store.ScoredChunk {
	hits, err := r.index.SearchChunks(ctx, sessionID, query, r.topK, store.ChunkFilter{PaperID: paperID})
	if err != nil {
		log.Printf("Failed to retrieve chunks for session %s, proceeding without context: %v", sessionID, err)
		return nil
	}
	if len(hits) == 0 {
		log.Printf("No relevant chunks found in session %s for query: %s", sessionID, query)
	} else {
		log.Printf("Retrieved %d relevant chunks for query.", len(hits))
	}
	return hits
}
