package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/docquery-ai/docquery/internal/answer"
	"github.com/docquery-ai/docquery/internal/api/handlers"
	"github.com/docquery-ai/docquery/internal/config"
	"github.com/docquery-ai/docquery/internal/embed"
	"github.com/docquery-ai/docquery/internal/ingest"
	"github.com/docquery-ai/docquery/internal/ingest/ocr"
	"github.com/docquery-ai/docquery/internal/keyword"
	"github.com/docquery-ai/docquery/internal/llm"
	"github.com/docquery-ai/docquery/internal/pipeline"
	"github.com/docquery-ai/docquery/internal/repository"
	"github.com/docquery-ai/docquery/internal/retriever"
	"github.com/docquery-ai/docquery/internal/server"
	"github.com/docquery-ai/docquery/internal/service"
	"github.com/docquery-ai/docquery/internal/storage"
	"github.com/docquery-ai/docquery/internal/telemetry"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and ingestion workers",
		Long:  "Start the docquery API server and the background ingestion worker pool",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)

	if !cfg.HasS3() {
		return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	index, err := buildIndex(ctx, cfg, pool)
	if err != nil {
		return err
	}

	chatClient := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	keywordSet, err := buildKeywordSet(cfg, embedder, chatClient)
	if err != nil {
		return err
	}

	engine, err := buildOCREngine(cfg)
	if err != nil {
		return err
	}
	parser := ingest.NewParser(engine, cfg.OCRMinTextDensity)

	params := ingest.ChunkParams{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}

	orchestrator := pipeline.NewOrchestrator(
		docRepo, jobRepo, s3Client,
		parser, params,
		embedder, keywordSet, index,
		pipeline.Config{
			MaxAttempts:  int(cfg.IngestMaxAttempts),
			BackoffBase:  cfg.IngestBackoffBase,
			ParseTimeout: cfg.ParseTimeout,
		},
	)

	workers := pipeline.NewWorkerPool(orchestrator, cfg.IngestWorkers, cfg.IngestPollEvery)
	workers.Start(ctx)
	log.Printf("ingestion worker pool started (%d workers)", cfg.IngestWorkers)

	ret := retriever.New(embedder, index, retriever.Config{
		MinScore:       float64(cfg.MinScore),
		MaxPerDocument: cfg.MaxPerDocument,
	})
	generator := answer.NewGenerator(chatClient, cfg.LLMModel, 0)

	ingestSvc := service.NewIngestService(docRepo, jobRepo, s3Client, index, cfg.MaxUploadBytes)
	querySvc := service.NewQueryService(ret, generator)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
		MaxBodyBytes:    cfg.MaxUploadBytes + 1024*1024,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	workers.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func buildEmbedder(cfg *config.Config) (*embed.Embedder, error) {
	var client embed.Client
	switch cfg.EmbeddingBackend {
	case "openai", "":
		client = embed.NewOpenAIClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	case "ollama":
		c, err := embed.NewOllamaClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown embedding backend %q (want openai or ollama)", cfg.EmbeddingBackend)
	}

	return embed.NewEmbedder(client, embed.Config{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDim,
		BatchSize:  cfg.EmbeddingBatchSize,
	}), nil
}

func buildIndex(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (vectorindex.Index, error) {
	switch cfg.VectorStore {
	case "pgvector", "":
		return vectorindex.NewPgvectorIndex(pool), nil
	case "qdrant":
		index := vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			BaseURL:    cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    cfg.QdrantTimeout,
		})
		if err := index.Init(ctx, cfg.EmbeddingDim); err != nil {
			return nil, fmt.Errorf("failed to initialize qdrant collection: %w", err)
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q (want pgvector or qdrant)", cfg.VectorStore)
	}
}

func buildKeywordSet(cfg *config.Config, embedder *embed.Embedder, chat llm.ChatClient) (*keyword.Set, error) {
	methods := cfg.KeywordMethodList()
	extractors := make([]keyword.Extractor, 0, len(methods))
	for _, m := range methods {
		switch m {
		case "statistical":
			extractors = append(extractors, keyword.NewStatisticalExtractor(cfg.KeywordsPerText))
		case "embedding":
			extractors = append(extractors, keyword.NewEmbedRankExtractor(embedder, cfg.KeywordsPerText))
		case "llm":
			extractors = append(extractors, keyword.NewLLMExtractor(chat, cfg.KeywordsPerText))
		default:
			return nil, fmt.Errorf("unknown keyword method %q (want statistical, embedding or llm)", m)
		}
	}
	if len(extractors) == 0 {
		extractors = append(extractors, keyword.NewStatisticalExtractor(cfg.KeywordsPerText))
	}
	return keyword.NewSet(cfg.KeywordsPerText, extractors...), nil
}

func buildOCREngine(cfg *config.Config) (ocr.Engine, error) {
	switch cfg.OCRBackend {
	case "off", "":
		return nil, nil
	case "vision":
		return ocr.NewVisionEngine(ocr.VisionConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.OCRModel,
		}), nil
	case "tesseract":
		return ocr.NewTesseractEngine("", cfg.OCRLanguages), nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q (want off, vision or tesseract)", cfg.OCRBackend)
	}
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
