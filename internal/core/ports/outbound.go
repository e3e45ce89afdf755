package ports

import (
	"context"
	"io"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// DocumentRepository persists and reads source-document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes index-request events.
type MessageQueue interface {
	PublishIndexRequested(ctx context.Context, documentID string) error
	SubscribeIndexRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor reduces a stored source file to plain text. An empty string
// with a nil error means the file carried no extractable text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// ImageTextExtractor is the OCR collaborator contract. No in-tree
// implementation exists; deployments plug one in through bootstrap.
type ImageTextExtractor interface {
	ExtractImageText(ctx context.Context, data []byte) (string, error)
}

// Chunker splits extracted text into evidence chunks.
type Chunker interface {
	Chunk(text, sourceFile string, metadata domain.ChunkMetadata) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the dense index collaborator. Search returns results in
// descending score order with scores in [0,1].
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedDocument, error)
	ListAll(ctx context.Context) ([]domain.RetrievedDocument, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// LexicalIndex is the in-memory sparse retrieval structure. Rebuild swaps in
// a fresh snapshot; Search scores against the current snapshot.
type LexicalIndex interface {
	Rebuild(ctx context.Context) error
	Search(query string, limit int) []domain.RetrievedDocument
	Size() int
}

// TextGenerator is the generation backend collaborator.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
