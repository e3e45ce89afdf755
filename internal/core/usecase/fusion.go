package usecase

import (
	"sort"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// DefaultRRFK flattens the influence of rank 1 vs rank 2 while still
// rewarding top placement heavily.
const DefaultRRFK = 60

// fuseRRF combines the dense and sparse rankings with Reciprocal Rank
// Fusion: each list contributes 1/(K+rank) per member, accumulated by
// chunk_id. A document present in only one list accumulates from that list
// alone. The sort is stable over first-insertion order (dense candidates
// precede sparse-only ones), which fixes the tie-break.
func fuseRRF(dense, sparse []domain.RetrievedDocument, rrfK, limit int) []domain.RetrievedDocument {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	position := make(map[string]int, len(dense)+len(sparse))
	fused := make([]domain.RetrievedDocument, 0, len(dense)+len(sparse))

	addList := func(docs []domain.RetrievedDocument) {
		for rank, doc := range docs {
			contribution := 1.0 / float64(rrfK+rank+1)
			if pos, ok := position[doc.ChunkID]; ok {
				fused[pos].FusionScore += contribution
				continue
			}
			doc.FusionScore = contribution
			position[doc.ChunkID] = len(fused)
			fused = append(fused, doc)
		}
	}
	addList(dense)
	addList(sparse)

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].FusionScore > fused[j].FusionScore
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
