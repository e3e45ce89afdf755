// Package lexical provides the in-memory sparse retrieval index. The index
// is rebuilt wholesale from the vector store contents; rebuilds populate a
// fresh snapshot and swap it in atomically so readers never observe a
// partially built index.
package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type indexedDoc struct {
	doc       domain.RetrievedDocument
	termFreq  map[string]int
	tokenSize int
}

type snapshot struct {
	docs      []indexedDoc
	docFreq   map[string]int
	avgDocLen float64
}

type Index struct {
	source ports.VectorStore
	snap   atomic.Pointer[snapshot]
}

func NewIndex(source ports.VectorStore) *Index {
	idx := &Index{source: source}
	idx.snap.Store(&snapshot{docFreq: map[string]int{}})
	return idx
}

// Rebuild fetches every indexed document from the vector store, tokenizes it
// and swaps in a fresh snapshot. The previous snapshot keeps serving reads
// until the swap.
func (x *Index) Rebuild(ctx context.Context) error {
	all, err := x.source.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list indexed documents: %w", err)
	}

	next := &snapshot{
		docs:    make([]indexedDoc, 0, len(all)),
		docFreq: make(map[string]int),
	}

	totalTokens := 0
	for _, doc := range all {
		tokens := tokenize(doc.Content)
		if len(tokens) == 0 {
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			next.docFreq[term]++
		}
		totalTokens += len(tokens)
		next.docs = append(next.docs, indexedDoc{doc: doc, termFreq: tf, tokenSize: len(tokens)})
	}
	if len(next.docs) > 0 {
		next.avgDocLen = float64(totalTokens) / float64(len(next.docs))
	}

	x.snap.Store(next)
	slog.Info("rebuilt lexical index", "documents", len(next.docs))
	return nil
}

// Search scores every indexed document against the query with BM25 and
// returns the top limit matches in descending score order. Raw BM25 scores
// are unbounded; callers must not compare them with dense scores directly.
func (x *Index) Search(query string, limit int) []domain.RetrievedDocument {
	snap := x.snap.Load()
	if len(snap.docs) == 0 {
		return nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(snap.docs))
	scored := make([]domain.RetrievedDocument, 0, len(snap.docs))
	for _, idoc := range snap.docs {
		var score float64
		for _, term := range queryTokens {
			tf := idoc.termFreq[term]
			if tf == 0 {
				continue
			}
			df := float64(snap.docFreq[term])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1)
			norm := 1 - bm25B + bm25B*float64(idoc.tokenSize)/snap.avgDocLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		doc := idoc.doc
		doc.Score = score
		scored = append(scored, doc)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Size reports the number of documents in the current snapshot.
func (x *Index) Size() int {
	return len(x.snap.Load().docs)
}

// tokenize lowercases and splits on whitespace, matching how queries are
// tokenized at search time.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
