package usecase

import (
	"testing"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

func TestFuseRRFBothListsBeatsSingleList(t *testing.T) {
	dense := []domain.RetrievedDocument{
		{ChunkID: "both_0", Content: "a"},
		{ChunkID: "dense_0", Content: "b"},
	}
	sparse := []domain.RetrievedDocument{
		{ChunkID: "both_0", Content: "a"},
		{ChunkID: "sparse_0", Content: "c"},
	}

	fused := fuseRRF(dense, sparse, DefaultRRFK, 10)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused documents, got %d", len(fused))
	}
	if fused[0].ChunkID != "both_0" {
		t.Fatalf("expected document ranked first in both lists to win, got %s", fused[0].ChunkID)
	}
	// Rank 1 in both lists must strictly exceed rank 1 in one list.
	if fused[0].FusionScore <= fused[1].FusionScore {
		t.Fatalf("expected strictly greater fusion score: %v vs %v", fused[0].FusionScore, fused[1].FusionScore)
	}
}

func TestFuseRRFAccumulatesAcrossLists(t *testing.T) {
	dense := []domain.RetrievedDocument{{ChunkID: "x"}}
	sparse := []domain.RetrievedDocument{{ChunkID: "x"}}

	fused := fuseRRF(dense, sparse, 60, 10)
	if len(fused) != 1 {
		t.Fatalf("expected 1 document, got %d", len(fused))
	}
	want := 2.0 / 61.0
	if diff := fused[0].FusionScore - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected fusion score %v, got %v", want, fused[0].FusionScore)
	}
}

func TestFuseRRFTieBreakPreservesInsertionOrder(t *testing.T) {
	// Same rank in exactly one list each: identical scores, dense-list
	// insertion order must win the tie.
	dense := []domain.RetrievedDocument{{ChunkID: "dense_first"}}
	sparse := []domain.RetrievedDocument{{ChunkID: "sparse_second"}}

	fused := fuseRRF(dense, sparse, 60, 10)
	if fused[0].ChunkID != "dense_first" || fused[1].ChunkID != "sparse_second" {
		t.Fatalf("tie-break violated: %s, %s", fused[0].ChunkID, fused[1].ChunkID)
	}
}

func TestFuseRRFTruncatesToLimit(t *testing.T) {
	dense := []domain.RetrievedDocument{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}

	fused := fuseRRF(dense, nil, 60, 2)
	if len(fused) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(fused))
	}
}

func TestFuseRRFDefaultsK(t *testing.T) {
	dense := []domain.RetrievedDocument{{ChunkID: "a"}}

	fused := fuseRRF(dense, nil, 0, 10)
	want := 1.0 / 61.0
	if diff := fused[0].FusionScore - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected default K=60 contribution %v, got %v", want, fused[0].FusionScore)
	}
}
