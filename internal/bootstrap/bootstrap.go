package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vkuznetsov/usecase-rag/internal/config"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
	"github.com/vkuznetsov/usecase-rag/internal/core/usecase"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/chunking"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/extractor"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/lexical"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/llm/openaicompat"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/queue/nats"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/repository/postgres"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/resilience"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/storage/localfs"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/vector/qdrant"
)

// App holds the wired dependency graph shared by the api and worker
// binaries.
type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	GenerateUC ports.UseCaseGenerator
	IndexUC    ports.IndexMaintainer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openaicompat.New(openaicompat.Config{
		BaseURL:        cfg.GenerationBaseURL,
		APIKey:         cfg.GenerationAPIKey,
		ChatModel:      cfg.GenerationModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    0.2,
		Resilience:     resilience.DefaultConfig(),
	})
	embedder := openaicompat.NewEmbedder(llmClient)
	generator := openaicompat.NewGenerator(llmClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	lexicalIndex := lexical.NewIndex(vectorDB)
	if err := lexicalIndex.Rebuild(ctx); err != nil {
		// Hybrid retrieval degrades to dense-only until the next rebuild.
		slog.Warn("initial lexical index build failed", "error", err)
	}

	chunker := chunking.New(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewExtractor(storage)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, textExtractor, chunker, embedder, vectorDB, lexicalIndex)
	indexUC := usecase.NewIndexMaintenanceUseCase(vectorDB, lexicalIndex)

	retriever := usecase.NewHybridRetriever(embedder, vectorDB, lexicalIndex, cfg.FusionRRFK)
	generateUC := usecase.NewGenerateUseCasesUseCase(retriever, generator, usecase.GenerateConfig{
		TopK:                cfg.TopK,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		GroundingThreshold:  cfg.GroundingThreshold,
		DedupThreshold:      cfg.DedupThreshold,
	})

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		GenerateUC: generateUC,
		IndexUC:    indexUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
