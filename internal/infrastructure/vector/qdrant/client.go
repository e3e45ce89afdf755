package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

const scrollPageSize = 256

// Client is the dense index backed by qdrant's REST API. One client owns one
// collection.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upsert writes chunks and their vectors into the collection. Point IDs are
// derived from the chunk ID, so re-indexing a document overwrites its old
// points instead of duplicating them.
func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			"chunk_id":    chunk.ChunkID,
			"source_file": chunk.SourceFile,
			"chunk_index": chunk.ChunkIndex,
			"text":        chunk.Content,
		}
		for k, v := range chunk.Metadata {
			if _, taken := payload[k]; !taken {
				payload[k] = v
			}
		}
		points = append(points, point{
			ID:      pointID(chunk.ChunkID),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status: %s", resp.Status)
	}
	return nil
}

// Search runs a cosine similarity query and maps hits back to retrieved
// documents. Scores are normalized into [0,1].
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedDocument, error) {
	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievedDocument, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		doc := documentFromPayload(r.Payload)
		doc.Score = normalizeScore(r.Score)
		out = append(out, doc)
	}
	return out, nil
}

// ListAll scrolls the whole collection page by page. Used for lexical index
// rebuilds, so it returns payloads without vectors.
func (c *Client) ListAll(ctx context.Context) ([]domain.RetrievedDocument, error) {
	var (
		out    []domain.RetrievedDocument
		offset any
	)
	for {
		reqBody := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}
		body, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal scroll body: %w", err)
		}

		url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
		resp, err := c.do(ctx, http.MethodPost, url, body)
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll request: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			// Collection not created yet means an empty index.
			resp.Body.Close()
			return nil, nil
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("qdrant scroll status: %s", resp.Status)
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err = json.NewDecoder(resp.Body).Decode(&scrollResp)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode scroll response: %w", err)
		}

		for _, p := range scrollResp.Result.Points {
			out = append(out, documentFromPayload(p.Payload))
		}
		if scrollResp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) Count(ctx context.Context) (int, error) {
	body := []byte(`{"exact":true}`)
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, fmt.Errorf("qdrant count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("qdrant count status: %s", resp.Status)
	}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Result.Count, nil
}

// Clear deletes every point but leaves the collection in place.
func (c *Client) Clear(ctx context.Context) error {
	body := []byte(`{"filter":{}}`)
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("qdrant delete points request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant delete points status: %s", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

// pointID maps a chunk ID onto a stable qdrant-compatible UUID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// normalizeScore maps cosine similarity in [-1,1] into [0,1]. Scores already
// in range pass through unchanged.
func normalizeScore(s float64) float64 {
	if s < 0 {
		s = (s + 1) / 2
	}
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	return s
}

func documentFromPayload(payload map[string]any) domain.RetrievedDocument {
	meta := make(domain.ChunkMetadata, len(payload))
	for k, v := range payload {
		if k == "text" || k == "chunk_id" {
			continue
		}
		meta[k] = v
	}
	return domain.RetrievedDocument{
		Content:  getStringPayload(payload, "text"),
		ChunkID:  getStringPayload(payload, "chunk_id"),
		Metadata: meta,
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
