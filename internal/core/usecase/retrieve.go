package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

const defaultTopK = 5

// HybridRetriever fetches candidates from the dense index and the in-memory
// lexical index and fuses the two rankings with RRF.
type HybridRetriever struct {
	embedder ports.Embedder
	dense    ports.VectorStore
	sparse   ports.LexicalIndex
	rrfK     int
}

func NewHybridRetriever(
	embedder ports.Embedder,
	dense ports.VectorStore,
	sparse ports.LexicalIndex,
	rrfK int,
) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &HybridRetriever{
		embedder: embedder,
		dense:    dense,
		sparse:   sparse,
		rrfK:     rrfK,
	}
}

// Retrieve returns at most k fused candidates. Both fetches ask for 2k
// candidates and run concurrently; fusion waits for both. An empty lexical
// index (or a failed dense fetch with lexical results available) degrades to
// single-list retrieval instead of failing the request.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error) {
	if k <= 0 {
		k = defaultTopK
	}
	fetch := 2 * k

	type denseResult struct {
		docs []domain.RetrievedDocument
		err  error
	}
	denseCh := make(chan denseResult, 1)
	go func() {
		docs, err := r.denseSearch(ctx, query, fetch)
		denseCh <- denseResult{docs: docs, err: err}
	}()

	sparseDocs := r.sparse.Search(query, fetch)

	dense := <-denseCh
	if dense.err != nil {
		if len(sparseDocs) == 0 {
			return nil, dense.err
		}
		slog.Warn("dense retrieval failed, using sparse results only", "error", dense.err)
	}

	if len(sparseDocs) == 0 {
		slog.Debug("lexical index empty, dense-only retrieval")
		if len(dense.docs) > k {
			return dense.docs[:k], nil
		}
		return dense.docs, nil
	}

	fused := fuseRRF(dense.docs, sparseDocs, r.rrfK, k)
	slog.Info("hybrid retrieval", "dense", len(dense.docs), "sparse", len(sparseDocs), "fused", len(fused))
	return fused, nil
}

func (r *HybridRetriever) denseSearch(ctx context.Context, query string, limit int) ([]domain.RetrievedDocument, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := r.dense.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return docs, nil
}
