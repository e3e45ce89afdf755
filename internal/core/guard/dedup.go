package guard

import (
	"log/slog"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

const (
	DefaultDedupThreshold = 0.85
	DefaultMergeThreshold = 0.7
)

// Deduplicate removes near-duplicate documents, order-preserving, first
// occurrence wins. The threshold comparison is inclusive: similarity exactly
// at the threshold counts as a duplicate. Quadratic in accepted-set size,
// which is fine at pipeline scale.
func Deduplicate(docs []domain.RetrievedDocument, threshold float64) []domain.RetrievedDocument {
	if len(docs) <= 1 {
		return docs
	}

	unique := make([]domain.RetrievedDocument, 0, len(docs))
	seen := make([]string, 0, len(docs))

	for _, doc := range docs {
		duplicate := false
		for _, accepted := range seen {
			if sim := sequenceRatio(doc.Content, accepted); sim >= threshold {
				duplicate = true
				slog.Debug("removed duplicate chunk", "similarity", sim, "chunk_id", doc.ChunkID)
				break
			}
		}
		if !duplicate {
			unique = append(unique, doc)
			seen = append(seen, doc.Content)
		}
	}

	if removed := len(docs) - len(unique); removed > 0 {
		slog.Info("removed duplicate chunks", "removed", removed)
	}
	return unique
}

// MergeSimilar concatenates near-duplicate content instead of dropping it,
// for callers that want breadth-preserving consolidation. Not composed with
// Deduplicate; callers choose one.
func MergeSimilar(docs []domain.RetrievedDocument, threshold float64) []domain.RetrievedDocument {
	if len(docs) <= 1 {
		return docs
	}

	merged := make([]domain.RetrievedDocument, 0, len(docs))
	skip := make(map[int]bool, len(docs))

	for i, doc := range docs {
		if skip[i] {
			continue
		}
		content := doc.Content
		for j := i + 1; j < len(docs); j++ {
			if skip[j] {
				continue
			}
			other := docs[j].Content
			if sequenceRatio(doc.Content, other) >= threshold {
				if !strings.Contains(content, other) {
					content += "\n" + other
				}
				skip[j] = true
			}
		}
		doc.Content = content
		merged = append(merged, doc)
	}
	return merged
}
