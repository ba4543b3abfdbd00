package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Blob storage for raw uploads (S3-compatible).
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docquery-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Embedding backend: "openai" (any OpenAI-compatible endpoint) or "ollama".
	EmbeddingBackend   string `envconfig:"EMBEDDING_BACKEND" default:"openai"`
	EmbeddingBaseURL   string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey    string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"multilingual-e5-large-instruct"`
	EmbeddingDim       int    `envconfig:"EMBEDDING_DIM" default:"1024"`
	EmbeddingBatchSize int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`

	// Chunking units are characters (runes).
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`

	// Comma-separated ordered list: statistical, embedding, llm.
	KeywordMethods  string `envconfig:"KEYWORD_METHODS" default:"statistical"`
	KeywordsPerText int    `envconfig:"KEYWORDS_PER_TEXT" default:"10"`

	// LLM used for answer generation and llm keyword extraction.
	LLMBaseURL string        `envconfig:"LLM_BASE_URL"`
	LLMAPIKey  string        `envconfig:"LLM_API_KEY"`
	LLMModel   string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTimeout time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Vector store: "pgvector" (chunks table) or "qdrant".
	VectorStore      string        `envconfig:"VECTOR_STORE" default:"pgvector"`
	QdrantURL        string        `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey     string        `envconfig:"QDRANT_API_KEY"`
	QdrantCollection string        `envconfig:"QDRANT_COLLECTION" default:"chunks"`
	QdrantTimeout    time.Duration `envconfig:"QDRANT_TIMEOUT" default:"15s"`

	// Retrieval knobs.
	MinScore       float32 `envconfig:"MIN_SCORE" default:"0.3"`
	MaxPerDocument int     `envconfig:"MAX_PER_DOCUMENT" default:"0"`

	// Ingestion worker pool and retry policy.
	IngestWorkers     int           `envconfig:"INGEST_WORKERS" default:"4"`
	IngestMaxAttempts int32         `envconfig:"INGEST_MAX_ATTEMPTS" default:"3"`
	IngestBackoffBase time.Duration `envconfig:"INGEST_BACKOFF_BASE" default:"5s"`
	IngestPollEvery   time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"2s"`
	ParseTimeout      time.Duration `envconfig:"PARSE_TIMEOUT" default:"2m"`

	// OCR fallback: "vision" (multimodal chat endpoint), "tesseract", or "off".
	OCRBackend        string  `envconfig:"OCR_BACKEND" default:"off"`
	OCRModel          string  `envconfig:"OCR_MODEL" default:"gpt-4o-mini"`
	OCRLanguages      string  `envconfig:"OCR_LANGUAGES" default:"kor+eng"`
	OCRMinTextDensity float64 `envconfig:"OCR_MIN_TEXT_DENSITY" default:"0.30"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQUERY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// KeywordMethodList splits the configured method names, trimmed and lowered.
func (c *Config) KeywordMethodList() []string {
	parts := strings.Split(c.KeywordMethods, ",")
	methods := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			methods = append(methods, p)
		}
	}
	return methods
}
