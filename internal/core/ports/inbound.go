package ports

import (
	"context"
	"io"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// UseCaseGenerator runs the full retrieval/guard/generation pipeline.
type UseCaseGenerator interface {
	Generate(ctx context.Context, query string) (*domain.GenerationResult, error)
}

// IndexMaintainer exposes explicit index maintenance operations.
type IndexMaintainer interface {
	RefreshLexical(ctx context.Context) error
	ClearIndex(ctx context.Context) error
}
