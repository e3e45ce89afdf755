package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/guard"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

const rawPreviewLimit = 500

// Retriever is the retrieval dependency of the generation pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error)
}

// GenerateUseCasesUseCase runs the full pipeline for one query: injection
// guard, sanitization, hybrid retrieval, document filtering, deduplication,
// confidence scoring, generation and grounding.
type GenerateUseCasesUseCase struct {
	retriever  Retriever
	generator  ports.TextGenerator
	confidence *guard.ConfidenceChecker
	grounding  *guard.GroundingDetector

	topK           int
	dedupThreshold float64
}

type GenerateConfig struct {
	TopK                int
	ConfidenceThreshold float64
	GroundingThreshold  float64
	DedupThreshold      float64
}

func NewGenerateUseCasesUseCase(
	retriever Retriever,
	generator ports.TextGenerator,
	cfg GenerateConfig,
) *GenerateUseCasesUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		cfg.DedupThreshold = guard.DefaultDedupThreshold
	}
	return &GenerateUseCasesUseCase{
		retriever:      retriever,
		generator:      generator,
		confidence:     guard.NewConfidenceChecker(cfg.ConfidenceThreshold),
		grounding:      guard.NewGroundingDetector(cfg.GroundingThreshold),
		topK:           cfg.TopK,
		dedupThreshold: cfg.DedupThreshold,
	}
}

// Generate produces the GenerationResult for one query. Adversarial queries
// are rejected before any retrieval runs; every other failure mode degrades
// into an explicit field on the result instead of an error.
func (uc *GenerateUseCasesUseCase) Generate(ctx context.Context, query string) (*domain.GenerationResult, error) {
	result := domain.NewGenerationResult()

	if guard.DetectInjection(query) {
		result.Error = "Invalid query detected"
		result.Warnings = append(result.Warnings, "Query contains suspicious content")
		return result, domain.WrapError(domain.ErrInjectionDetected, "validate query", errors.New("instruction override in query"))
	}

	sanitized := guard.SanitizeQuery(query)
	intent := guard.ExtractIntent(sanitized)
	slog.Debug("query intent", "type", intent.Type, "entities", intent.Entities, "modifiers", intent.Modifiers)

	retrieved, err := uc.retriever.Retrieve(ctx, sanitized, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	filtered := guard.FilterDocuments(retrieved)
	docs := guard.Deduplicate(filtered, uc.dedupThreshold)

	confident, confScore, confWarnings := uc.confidence.Check(docs)
	assumptions := uc.confidence.GenerateAssumptions(sanitized, docs)

	result.ConfidenceScore = confScore
	result.Assumptions = append(result.Assumptions, assumptions...)
	result.Warnings = append(result.Warnings, confWarnings...)
	for _, doc := range docs {
		source := doc.SourceFile()
		if source == "" {
			source = "Unknown"
		}
		result.RetrievedSources = append(result.RetrievedSources, source)
	}

	var promptWarnings []string
	if !confident {
		result.Clarifications = append(result.Clarifications, uc.confidence.SuggestClarifications(docs, confWarnings)...)
		promptWarnings = confWarnings
		slog.Warn("low retrieval confidence", "score", confScore, "documents", len(docs))
	}

	prompt := buildGenerationPrompt(sanitized, docs, assumptions, promptWarnings)
	rawOutput, err := uc.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		slog.Error("generation backend failed", "error", err)
		result.Error = "Text generation failed"
		return result, nil
	}

	useCases, metadata, parseErr := parseGenerationOutput(rawOutput)
	if parseErr != nil {
		slog.Error("failed to parse generation output", "error", parseErr)
		result.Error = "Failed to parse generation output"
		result.RawOutputPreview = truncateRunes(rawOutput, rawPreviewLimit)
		return result, nil
	}
	result.UseCases = useCases
	result.Metadata = metadata
	if result.Metadata.CoverageAreas == nil {
		result.Metadata.CoverageAreas = []string{}
	}

	if len(result.UseCases) > 0 {
		generatedText, _ := json.Marshal(result.UseCases)
		grounded, groundingScore, groundingWarnings := uc.grounding.CheckGrounding(string(generatedText), docs)
		result.GroundingScore = groundingScore
		result.Warnings = append(result.Warnings, groundingWarnings...)
		if !grounded {
			slog.Warn("generated output weakly grounded", "score", groundingScore)
		}
	}

	slog.Info("generated use cases", "count", len(result.UseCases), "confidence", confScore)
	return result, nil
}

var jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// parseGenerationOutput tolerates fenced JSON and stray markdown around the
// payload, then decodes the schema the system prompt demands.
func parseGenerationOutput(raw string) ([]domain.UseCase, domain.GenerationMetadata, error) {
	cleaned := strings.TrimSpace(raw)
	if m := jsonFence.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload struct {
		UseCases []domain.UseCase          `json:"use_cases"`
		Metadata domain.GenerationMetadata `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, domain.GenerationMetadata{}, fmt.Errorf("decode use cases: %w", err)
	}
	if payload.UseCases == nil {
		payload.UseCases = []domain.UseCase{}
	}
	if payload.Metadata.TotalUseCases == 0 {
		payload.Metadata.TotalUseCases = len(payload.UseCases)
	}
	return payload.UseCases, payload.Metadata, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
