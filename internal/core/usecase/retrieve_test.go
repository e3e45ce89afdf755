package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

type embedderFake struct {
	err   error
	calls int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, f.err
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type vectorFake struct {
	results   []domain.RetrievedDocument
	searchErr error
	limit     int
	searches  int
}

func (f *vectorFake) Upsert(context.Context, []domain.Chunk, [][]float32) error { return nil }
func (f *vectorFake) Search(_ context.Context, _ []float32, limit int) ([]domain.RetrievedDocument, error) {
	f.searches++
	f.limit = limit
	return f.results, f.searchErr
}
func (f *vectorFake) ListAll(context.Context) ([]domain.RetrievedDocument, error) {
	return f.results, nil
}
func (f *vectorFake) Count(context.Context) (int, error) { return len(f.results), nil }
func (f *vectorFake) Clear(context.Context) error        { return nil }

type lexicalFake struct {
	results []domain.RetrievedDocument
}

func (f *lexicalFake) Rebuild(context.Context) error { return nil }
func (f *lexicalFake) Search(string, int) []domain.RetrievedDocument {
	return f.results
}
func (f *lexicalFake) Size() int { return len(f.results) }

func denseDocs(ids ...string) []domain.RetrievedDocument {
	out := make([]domain.RetrievedDocument, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.RetrievedDocument{ChunkID: id, Score: 1.0 - float64(i)*0.1})
	}
	return out
}

func TestRetrieveDenseOnlyFallback(t *testing.T) {
	vector := &vectorFake{results: denseDocs("a", "b", "c", "d")}
	r := NewHybridRetriever(&embedderFake{}, vector, &lexicalFake{}, 60)

	got, err := r.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected truncation to 3, got %d", len(got))
	}
	// Fallback returns dense results unmodified, in order.
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ChunkID != id {
			t.Fatalf("order changed in fallback at %d: %s", i, got[i].ChunkID)
		}
		if got[i].FusionScore != 0 {
			t.Fatalf("fallback must not attach fusion scores, got %v", got[i].FusionScore)
		}
	}
	if vector.limit != 6 {
		t.Fatalf("expected dense fetch of 2k=6, got %d", vector.limit)
	}
}

func TestRetrieveFusesWhenSparseAvailable(t *testing.T) {
	vector := &vectorFake{results: denseDocs("a", "b")}
	sparse := &lexicalFake{results: denseDocs("b", "c")}
	r := NewHybridRetriever(&embedderFake{}, vector, sparse, 60)

	got, err := r.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fused documents, got %d", len(got))
	}
	if got[0].ChunkID != "b" {
		t.Fatalf("expected document in both lists first, got %s", got[0].ChunkID)
	}
	if got[0].FusionScore == 0 {
		t.Fatalf("expected fusion score attached")
	}
}

func TestRetrieveDefaultK(t *testing.T) {
	vector := &vectorFake{results: denseDocs("a")}
	r := NewHybridRetriever(&embedderFake{}, vector, &lexicalFake{}, 60)

	if _, err := r.Retrieve(context.Background(), "query", 0); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if vector.limit != 10 {
		t.Fatalf("expected default k=5 to fetch 10 dense candidates, got %d", vector.limit)
	}
}

func TestRetrieveEmbedErrorWithoutSparseFails(t *testing.T) {
	r := NewHybridRetriever(&embedderFake{err: errors.New("embed down")}, &vectorFake{}, &lexicalFake{}, 60)

	if _, err := r.Retrieve(context.Background(), "query", 3); err == nil {
		t.Fatalf("expected error when dense fails with empty sparse index")
	}
}

func TestRetrieveDenseErrorDegradesToSparse(t *testing.T) {
	vector := &vectorFake{searchErr: errors.New("dense down")}
	sparse := &lexicalFake{results: denseDocs("s1", "s2")}
	r := NewHybridRetriever(&embedderFake{}, vector, sparse, 60)

	got, err := r.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("expected degradation, got error %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected sparse results, got %d", len(got))
	}
}
