package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
	"github.com/vkuznetsov/usecase-rag/internal/observability/metrics"
)

// Options carries the traffic-control knobs for the public API surface.
type Options struct {
	RateLimitRPS      float64
	RateLimitBurst    int
	MaxInFlight       int
	BackpressureWait  time.Duration
	MaxUploadBytes    int64
	ServerMetrics     *metrics.HTTPServerMetrics
	MetricsServiceTag string
}

type Router struct {
	ingest    ports.DocumentIngestor
	documents ports.DocumentReader
	generator ports.UseCaseGenerator
	index     ports.IndexMaintainer
	opts      Options
}

func NewRouter(
	ingest ports.DocumentIngestor,
	documents ports.DocumentReader,
	generator ports.UseCaseGenerator,
	index ports.IndexMaintainer,
	opts Options,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.MetricsServiceTag == "" {
		opts.MetricsServiceTag = "api"
	}
	return &Router{
		ingest:    ingest,
		documents: documents,
		generator: generator,
		index:     index,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/usecases/generate", rt.generateUseCases)
	mux.HandleFunc("/v1/index/refresh", rt.refreshIndex)
	mux.HandleFunc("/v1/index", rt.clearIndex)
	if rt.opts.ServerMetrics != nil {
		mux.Handle("/metrics", rt.opts.ServerMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.opts.ServerMetrics != nil {
		handler = rt.opts.ServerMetrics.Middleware(rt.opts.MetricsServiceTag, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) generateUseCases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.generator.Generate(r.Context(), req.Query)
	switch {
	case err != nil && domain.IsKind(err, domain.ErrInjectionDetected):
		// Rejected queries still carry a structured result body.
		rt.recordGeneration("rejected", result, start)
		writeJSON(w, http.StatusBadRequest, result)
		return
	case err != nil:
		writeError(w, err)
		return
	}

	outcome := "ok"
	if result.Error != "" {
		outcome = "degraded"
	}
	rt.recordGeneration(outcome, result, start)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) refreshIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := rt.index.RefreshLexical(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (rt *Router) clearIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := rt.index.ClearIndex(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (rt *Router) recordGeneration(outcome string, result *domain.GenerationResult, start time.Time) {
	if rt.opts.ServerMetrics == nil || result == nil {
		return
	}
	rt.opts.ServerMetrics.RecordGeneration(
		rt.opts.MetricsServiceTag,
		outcome,
		len(result.RetrievedSources),
		len(result.Warnings),
		result.ConfidenceScore,
		result.GroundingScore,
		time.Since(start),
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
