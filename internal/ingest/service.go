// Package ingest turns paper files and remote sources into indexed chunks.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"gwi.com/paper-assistant/internal/store"
)

// ChunkWriter receives the chunks of an ingested paper.
type ChunkWriter interface {
	AddChunks(ctx context.Context, sessionID string, chunks []store.Chunk) error
}

// SourceOptions label an ingested file. Empty fields default to the file's base name.
type SourceOptions struct {
	SourceName string
	SourceFile string
	SourceURL  string
}

// Document summarizes one ingested paper.
type Document struct {
	PaperID       string `json:"paper_id"`
	SourceName    string `json:"source_name"`
	SourceFile    string `json:"source_file"`
	SourcePath    string `json:"source_path"`
	SourceURL     string `json:"source_url,omitempty"`
	PageCount     int    `json:"page_count"`
	FirstPageText string `json:"-"`
}

type Config struct {
	UploadDir    string
	MaxFileSize  int64
	ChunkSize    int
	ChunkOverlap int
	HTTPClient   *http.Client
}

type Service struct {
	index      ChunkWriter
	splitter   *Splitter
	uploadDir  string
	maxSize    int64
	httpClient *http.Client
}

func NewService(index ChunkWriter, cfg Config) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Service{
		index:      index,
		splitter:   NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		uploadDir:  cfg.UploadDir,
		maxSize:    cfg.MaxFileSize,
		httpClient: client,
	}
}

// SaveUpload stores an uploaded file in the service's upload directory.
func (s *Service) SaveUpload(r io.Reader, filename, contentType string) (*FileInfo, error) {
	return SaveUpload(r, filename, contentType, s.uploadDir, s.maxSize)
}

// ProcessFile loads, splits and indexes the file into the session's partition.
// It returns the number of chunks written.
func (s *Service) ProcessFile(ctx context.Context, path, sessionID string, opts SourceOptions) (int, *Document, error) {
	pages, err := LoadPages(path)
	if err != nil {
		return 0, nil, err
	}

	doc := &Document{
		PaperID:    newHexID(),
		SourceName: opts.SourceName,
		SourceFile: opts.SourceFile,
		SourcePath: path,
		SourceURL:  opts.SourceURL,
		PageCount:  pageCount(pages),
	}
	if doc.SourceName == "" {
		doc.SourceName = filepath.Base(path)
	}
	if doc.SourceFile == "" {
		doc.SourceFile = filepath.Base(path)
	}
	if len(pages) > 0 {
		doc.FirstPageText = pages[0].Text
	}

	pieces := s.splitter.SplitPages(pages)
	chunks := make([]store.Chunk, len(pieces))
	for i, piece := range pieces {
		page := piece.Page
		chunks[i] = store.Chunk{
			PaperID:    doc.PaperID,
			SourceName: doc.SourceName,
			SourceFile: doc.SourceFile,
			SourcePath: doc.SourcePath,
			SourceURL:  doc.SourceURL,
			PageCount:  doc.PageCount,
			Page:       &page,
			ChunkIndex: i,
			Content:    piece.Text,
		}
	}

	if err := s.index.AddChunks(ctx, sessionID, chunks); err != nil {
		return 0, nil, fmt.Errorf("failed to index %s: %w", doc.SourceName, err)
	}
	log.Printf("Indexed %d chunks of %s (%d pages) into session %s", len(chunks), doc.SourceName, doc.PageCount, sessionID)
	return len(chunks), doc, nil
}

// PrepareSource resolves the source and reports where it would be saved.
func (s *Service) PrepareSource(source, sessionID string) (*FileInfo, error) {
	return BuildSourceFileInfo(source, sessionID, s.uploadDir)
}

// ProcessSource downloads the source and ingests it with its URL recorded.
func (s *Service) ProcessSource(ctx context.Context, source, sessionID string) (*FileInfo, int, *Document, error) {
	info, err := s.PrepareSource(source, sessionID)
	if err != nil {
		return nil, 0, nil, err
	}
	if err := Download(ctx, s.httpClient, info, s.maxSize); err != nil {
		return nil, 0, nil, err
	}
	n, doc, err := s.ProcessFile(ctx, info.Path, sessionID, SourceOptions{
		SourceName: info.Filename,
		SourceFile: info.SavedName,
		SourceURL:  info.URL,
	})
	if err != nil {
		return nil, 0, nil, err
	}
	return info, n, doc, nil
}

func pageCount(pages []Page) int {
	highest := -1
	for _, p := range pages {
		if p.Number > highest {
			highest = p.Number
		}
	}
	if highest < 0 {
		return len(pages)
	}
	return highest + 1
}
