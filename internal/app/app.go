// Package app wires the store, model client and services from configuration.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gwi.com/paper-assistant/internal/config"
	"gwi.com/paper-assistant/internal/core"
	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

type App struct {
	Config   *config.Config
	Store    *store.SQLiteStore
	LLM      *core.LLMService
	Sessions *core.SessionManager
	Chat     *core.ChatService
}

// Build opens the database, connects to Gemini and loads the session registry.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	core.SetDebug(cfg.Debug())
	if cfg.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbeddingModel)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	p := cfg.Pipeline
	index := store.NewChunkIndex(dbStore, llmService, p.MinSimilarity)
	ingestor := ingest.NewService(index, ingest.Config{
		UploadDir:    cfg.UploadDir,
		MaxFileSize:  cfg.MaxFileSize(),
		ChunkSize:    p.ChunkSize,
		ChunkOverlap: p.ChunkOverlap,
		HTTPClient:   &http.Client{Timeout: 5 * time.Minute},
	})
	aiService := core.NewAIService(llmService, dbStore, dbStore, index, ingestor, core.AIConfig{
		HistoryWindow: p.HistoryWindow,
		TopK:          p.TopK,
		Triggers:      p.Triggers,
	})

	sessions := core.NewSessionManager(dbStore, dbStore, dbStore, index)
	if err := sessions.LoadAll(ctx); err != nil {
		llmService.Close()
		dbStore.Close()
		return nil, err
	}

	var titler core.TitleGenerator
	if p.AutoTitle {
		titler = llmService
	}

	return &App{
		Config:   cfg,
		Store:    dbStore,
		LLM:      llmService,
		Sessions: sessions,
		Chat:     core.NewChatService(sessions, aiService, titler),
	}, nil
}

func (a *App) Close() {
	a.LLM.Close()
	if err := a.Store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
