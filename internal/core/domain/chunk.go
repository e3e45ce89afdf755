package domain

import "fmt"

// ChunkMetadata carries source-file attributes through the index and back
// out on retrieval. Values are strings or ints only.
type ChunkMetadata map[string]any

// Chunk is an immutable unit of retrievable evidence produced by the chunker.
type Chunk struct {
	Content    string        `json:"content"`
	ChunkID    string        `json:"chunk_id"`
	SourceFile string        `json:"source_file"`
	ChunkIndex int           `json:"chunk_index"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkID derives the stable chunk identifier for a source file and index.
func ChunkID(sourceFile string, index int) string {
	return fmt.Sprintf("%s_%d", sourceFile, index)
}

// RetrievedDocument is the transient per-query view of a chunk. Content may
// be rewritten by the injection filter; identity fields never change.
type RetrievedDocument struct {
	Content     string        `json:"content"`
	ChunkID     string        `json:"chunk_id"`
	Metadata    ChunkMetadata `json:"metadata"`
	Score       float64       `json:"score"`
	FusionScore float64       `json:"fusion_score,omitempty"`
}

// SourceFile reads the originating file name out of retrieval metadata.
func (d RetrievedDocument) SourceFile() string {
	if d.Metadata == nil {
		return ""
	}
	if v, ok := d.Metadata["source_file"].(string); ok {
		return v
	}
	return ""
}

// QueryIntent is the keyword-derived classification of a user query.
type QueryIntent struct {
	Type      string   `json:"type"`
	Entities  []string `json:"entities"`
	Modifiers []string `json:"modifiers"`
}

const (
	IntentGeneral    = "general"
	IntentGeneration = "generation"
	IntentRetrieval  = "retrieval"
)

// UseCaseStep is one numbered action inside a generated use case.
type UseCaseStep struct {
	StepNumber     int    `json:"step_number"`
	Action         string `json:"action"`
	ExpectedResult string `json:"expected_result"`
}

// UseCase is one generated test/use case.
type UseCase struct {
	Title           string            `json:"title"`
	Goal            string            `json:"goal"`
	Preconditions   []string          `json:"preconditions"`
	TestData        map[string]string `json:"test_data"`
	Steps           []UseCaseStep     `json:"steps"`
	ExpectedResults []string          `json:"expected_results"`
	NegativeCases   []string          `json:"negative_cases"`
	BoundaryCases   []string          `json:"boundary_cases"`
}

// GenerationMetadata summarizes one generation run.
type GenerationMetadata struct {
	TotalUseCases int      `json:"total_use_cases"`
	CoverageAreas []string `json:"coverage_areas"`
}

// GenerationResult is the sole artifact leaving the pipeline. Every field is
// populated with an empty value rather than omitted so API consumers never
// branch on missing keys.
type GenerationResult struct {
	UseCases         []UseCase          `json:"use_cases"`
	Metadata         GenerationMetadata `json:"metadata"`
	ConfidenceScore  float64            `json:"confidence_score"`
	GroundingScore   float64            `json:"grounding_score"`
	RetrievedSources []string           `json:"retrieved_sources"`
	Warnings         []string           `json:"warnings"`
	Assumptions      []string           `json:"assumptions"`
	Clarifications   []string           `json:"clarifications"`
	Error            string             `json:"error"`
	RawOutputPreview string             `json:"raw_output_preview"`
}

// NewGenerationResult returns a result with every slice initialized so the
// JSON encoding carries [] instead of null.
func NewGenerationResult() *GenerationResult {
	return &GenerationResult{
		UseCases:         []UseCase{},
		Metadata:         GenerationMetadata{CoverageAreas: []string{}},
		RetrievedSources: []string{},
		Warnings:         []string{},
		Assumptions:      []string{},
		Clarifications:   []string{},
	}
}
