package guard

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

const (
	DefaultConfidenceThreshold = 0.6

	// topScoreFloor is the absolute floor for the best match regardless of
	// the configured average threshold.
	topScoreFloor = 0.4
)

// ConfidenceChecker scores whether retrieved evidence is sufficient to
// answer a query, using only the per-document retrieval scores.
type ConfidenceChecker struct {
	Threshold float64
}

func NewConfidenceChecker(threshold float64) *ConfidenceChecker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &ConfidenceChecker{Threshold: threshold}
}

// Check returns (confident, average score, warnings). Confidence requires
// the average to meet the threshold AND zero warnings; any single rule veto
// is enough. An empty document set short-circuits.
func (c *ConfidenceChecker) Check(docs []domain.RetrievedDocument) (bool, float64, []string) {
	if len(docs) == 0 {
		return false, 0.0, []string{"No relevant documents found"}
	}

	var sum float64
	for _, doc := range docs {
		sum += doc.Score
	}
	avg := sum / float64(len(docs))

	var warnings []string
	if avg < c.Threshold {
		warnings = append(warnings, fmt.Sprintf("Low retrieval confidence (%.2f < %g)", avg, c.Threshold))
	}
	if len(docs) < 3 {
		warnings = append(warnings, fmt.Sprintf("Limited evidence: only %d documents retrieved", len(docs)))
	}
	if top := docs[0].Score; top < topScoreFloor {
		warnings = append(warnings, fmt.Sprintf("Best match has low score: %.2f", top))
	}

	confident := avg >= c.Threshold && len(warnings) == 0
	slog.Debug("confidence check", "confident", confident, "avg_score", avg)
	return confident, avg, warnings
}

// SuggestClarifications turns warning categories into natural-language
// follow-up questions for the caller.
func (c *ConfidenceChecker) SuggestClarifications(docs []domain.RetrievedDocument, warnings []string) []string {
	var suggestions []string

	if len(docs) == 0 {
		suggestions = append(suggestions,
			"Could you provide more specific details about the feature or functionality?",
			"Which specific aspect of the system should I focus on?",
		)
		return suggestions
	}

	joined := strings.Join(warnings, " ")
	if strings.Contains(joined, "Low retrieval confidence") {
		suggestions = append(suggestions,
			"The available documentation may not cover this topic in detail. Could you:",
			"  - Rephrase your question with different keywords?",
			"  - Provide more context about what you're looking for?",
		)
	}
	if strings.Contains(joined, "Limited evidence") {
		suggestions = append(suggestions,
			"I found limited information. Consider:",
			"  - Breaking down your query into smaller parts",
			"  - Checking if relevant documents are in the knowledge base",
		)
	}
	return suggestions
}

// assumptionRule names a supporting term expected in evidence when a query
// keyword appears, and the assumption stated when the term is absent.
type assumptionRule struct {
	queryKeywords []string
	evidenceTerms []string
	assumption    string
}

var assumptionRules = []assumptionRule{
	{
		queryKeywords: []string{"signup", "registration"},
		evidenceTerms: []string{"email"},
		assumption:    "Assuming email-based registration",
	},
	{
		queryKeywords: []string{"signup", "registration"},
		evidenceTerms: []string{"password"},
		assumption:    "Assuming password requirements exist but are not specified",
	},
	{
		queryKeywords: []string{"api"},
		evidenceTerms: []string{"endpoint"},
		assumption:    "Assuming standard REST API endpoints",
	},
	{
		queryKeywords: []string{"ui", "interface"},
		evidenceTerms: []string{"button", "form"},
		assumption:    "Assuming standard UI elements (forms, buttons)",
	},
}

// GenerateAssumptions names what the system is about to guess: for each
// triggered rule, if none of the expected supporting terms appear anywhere
// in retrieved content, the assumption is stated explicitly.
func (c *ConfidenceChecker) GenerateAssumptions(query string, docs []domain.RetrievedDocument) []string {
	queryLower := strings.ToLower(query)

	var assumptions []string
	for _, rule := range assumptionRules {
		if !containsAny(queryLower, rule.queryKeywords) {
			continue
		}
		if evidenceContainsAny(docs, rule.evidenceTerms) {
			continue
		}
		assumptions = append(assumptions, rule.assumption)
	}
	return assumptions
}

func evidenceContainsAny(docs []domain.RetrievedDocument, terms []string) bool {
	for _, doc := range docs {
		lower := strings.ToLower(doc.Content)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}
