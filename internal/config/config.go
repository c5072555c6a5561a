package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GeminiAPIKey   string
	DatabaseURL    string
	HTTPPort       string
	LogLevel       string
	JWTSecret      string
	UploadDir      string
	MaxFileSizeMB  int
	ChatModel      string
	EmbeddingModel string
	Pipeline       Pipeline
}

// Pipeline tunes retrieval, chunking and condensation.
type Pipeline struct {
	HistoryWindow int      `yaml:"history_window"`
	TopK          int      `yaml:"top_k"`
	MinSimilarity float32  `yaml:"min_similarity"`
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	Triggers      []string `yaml:"triggers"`
	AutoTitle     bool     `yaml:"auto_title"`
}

func DefaultPipeline() Pipeline {
	return Pipeline{
		HistoryWindow: 8,
		TopK:          5,
		MinSimilarity: 0,
		ChunkSize:     1000,
		ChunkOverlap:  200,
		AutoTitle:     true,
	}
}

// LoadConfig reads .env (if present) and the environment. The pipeline file
// named by PIPELINE_CONFIG overrides the defaults field by field.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "paper_assistant.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		UploadDir:      getEnv("UPLOAD_DIR", "data/uploads"),
		MaxFileSizeMB:  getEnvAsInt("MAX_FILE_SIZE_MB", 100),
		ChatModel:      getEnv("CHAT_MODEL", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		Pipeline:       DefaultPipeline(),
	}

	if path := getEnv("PIPELINE_CONFIG", ""); path != "" {
		p, err := LoadPipeline(path)
		if err != nil {
			return nil, err
		}
		cfg.Pipeline = p
	}
	if cfg.MaxFileSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", cfg.MaxFileSizeMB)
	}
	return cfg, nil
}

// LoadPipeline parses a YAML pipeline file on top of DefaultPipeline.
func LoadPipeline(path string) (Pipeline, error) {
	p := DefaultPipeline()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}
	if p.ChunkOverlap >= p.ChunkSize {
		return p, fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", p.ChunkOverlap, p.ChunkSize)
	}
	return p, nil
}

// MaxFileSize is the upload and download limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

func (c *Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
