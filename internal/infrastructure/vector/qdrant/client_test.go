package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

func TestUpsertEnsuresCollectionAndWritesPoints(t *testing.T) {
	var ensured, upserted bool
	var gotPoints []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			ensured = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			upserted = true
			var body struct {
				Points []map[string]any `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			gotPoints = body.Points
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := New(srv.URL, "chunks")
	chunks := []domain.Chunk{
		{
			Content:    "signup requires email",
			ChunkID:    "signup.md_0",
			SourceFile: "signup.md",
			ChunkIndex: 0,
			Metadata:   domain.ChunkMetadata{"file_type": "text/markdown"},
		},
	}
	if err := client.Upsert(context.Background(), chunks, [][]float32{{0.1, 0.2}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !ensured || !upserted {
		t.Fatalf("expected collection ensure and upsert, got ensure=%v upsert=%v", ensured, upserted)
	}
	if len(gotPoints) != 1 {
		t.Fatalf("expected 1 point, got %d", len(gotPoints))
	}
	payload := gotPoints[0]["payload"].(map[string]any)
	if payload["chunk_id"] != "signup.md_0" {
		t.Fatalf("missing chunk_id in payload: %v", payload)
	}
	if payload["source_file"] != "signup.md" {
		t.Fatalf("missing source_file in payload: %v", payload)
	}
	if payload["file_type"] != "text/markdown" {
		t.Fatalf("metadata not carried into payload: %v", payload)
	}
	if gotPoints[0]["id"] == "" {
		t.Fatalf("expected derived point id")
	}
}

func TestUpsertPointIDIsStable(t *testing.T) {
	if pointID("signup.md_0") != pointID("signup.md_0") {
		t.Fatalf("point id must be deterministic")
	}
	if pointID("signup.md_0") == pointID("signup.md_1") {
		t.Fatalf("distinct chunks must map to distinct point ids")
	}
}

func TestSearchNormalizesScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"result":[
			{"score":0.9,"payload":{"chunk_id":"a_0","source_file":"a.md","text":"alpha"}},
			{"score":-0.5,"payload":{"chunk_id":"b_0","source_file":"b.md","text":"beta"}}
		]}`)
	}))
	defer srv.Close()

	docs, err := New(srv.URL, "chunks").Search(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Score != 0.9 {
		t.Fatalf("in-range score must pass through, got %v", docs[0].Score)
	}
	if docs[1].Score != 0.25 {
		t.Fatalf("negative cosine must normalize to 0.25, got %v", docs[1].Score)
	}
	if docs[0].ChunkID != "a_0" || docs[0].Content != "alpha" {
		t.Fatalf("payload mapping broken: %+v", docs[0])
	}
	if docs[0].SourceFile() != "a.md" {
		t.Fatalf("source_file must survive into metadata, got %q", docs[0].SourceFile())
	}
}

func TestListAllFollowsScrollPagination(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/scroll" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		page++
		if page == 1 {
			fmt.Fprint(w, `{"result":{"points":[{"payload":{"chunk_id":"a_0","text":"alpha"}}],"next_page_offset":"cursor-1"}}`)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode scroll body: %v", err)
		}
		if body["offset"] != "cursor-1" {
			t.Errorf("second page must carry the offset, got %v", body["offset"])
		}
		fmt.Fprint(w, `{"result":{"points":[{"payload":{"chunk_id":"a_1","text":"beta"}}],"next_page_offset":null}}`)
	}))
	defer srv.Close()

	docs, err := New(srv.URL, "chunks").ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents across pages, got %d", len(docs))
	}
	if docs[0].ChunkID != "a_0" || docs[1].ChunkID != "a_1" {
		t.Fatalf("page order broken: %+v", docs)
	}
}

func TestListAllMissingCollectionIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	docs, err := New(srv.URL, "chunks").ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty result for missing collection")
	}
}

func TestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/count" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"result":{"count":7}}`)
	}))
	defer srv.Close()

	n, err := New(srv.URL, "chunks").Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestClearToleratesMissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := New(srv.URL, "chunks").Clear(context.Background()); err != nil {
		t.Fatalf("Clear() must tolerate missing collection, got %v", err)
	}
}

func TestNormalizeScore(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.5, 0.5},
		{1.0, 1.0},
		{-1.0, 0.0},
		{-0.5, 0.25},
		{1.5, 1.0},
	}
	for _, tc := range cases {
		if got := normalizeScore(tc.in); got != tc.want {
			t.Errorf("normalizeScore(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
