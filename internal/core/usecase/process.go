package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

// ProcessDocumentUseCase indexes one uploaded document: extract text, chunk,
// embed, upsert into the dense index, then refresh the lexical index.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	lexical   ports.LexicalIndex
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	lexical ports.LexicalIndex,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		lexical:   lexical,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := uc.indexPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetChunkCount(ctx, documentID, chunkCount); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	// A stale lexical snapshot only degrades ranking until the next
	// refresh, so a rebuild failure does not fail the document.
	if err := uc.lexical.Rebuild(ctx); err != nil {
		slog.Warn("lexical index refresh failed after indexing", "document_id", documentID, "error", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) indexPipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		// Empty extraction is "no chunks", not an error.
		slog.Warn("no text extracted", "document_id", documentID, "filename", doc.Filename)
		return 0, nil
	}

	chunks := uc.chunker.Chunk(text, doc.Filename, domain.ChunkMetadata{
		"file_path": doc.StoragePath,
		"file_name": doc.Filename,
		"file_type": doc.MimeType,
		"file_size": int(doc.FileSize),
	})
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.vectorDB.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks into vector db: %w", err)
	}
	return len(chunks), nil
}
