package guard

import (
	"regexp"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// \w in RE2 is ASCII-only; queries arrive in any script.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,?!]`)
	featureKeywords = regexp.MustCompile(`\b(signup|login|payment|checkout|profile|search)\b`)
)

// SanitizeQuery trims the query, collapses whitespace runs and strips every
// character outside word characters, whitespace and -.,?!.
func SanitizeQuery(query string) string {
	query = strings.TrimSpace(query)
	query = whitespaceRuns.ReplaceAllString(query, " ")
	return disallowedChars.ReplaceAllString(query, "")
}

var (
	generationVerbs = []string{"create", "generate", "write"}
	retrievalVerbs  = []string{"find", "search", "show", "list"}
)

// ExtractIntent classifies a query by fixed keyword sets. Generation verbs
// are checked before retrieval verbs; first match wins, no scoring.
func ExtractIntent(query string) domain.QueryIntent {
	lower := strings.ToLower(query)

	intent := domain.QueryIntent{
		Type:      domain.IntentGeneral,
		Entities:  []string{},
		Modifiers: []string{},
	}

	if containsAny(lower, generationVerbs) {
		intent.Type = domain.IntentGeneration
	} else if containsAny(lower, retrievalVerbs) {
		intent.Type = domain.IntentRetrieval
	}

	if strings.Contains(lower, "use case") || strings.Contains(lower, "test case") {
		intent.Entities = append(intent.Entities, "use_case")
	}
	intent.Entities = append(intent.Entities, featureKeywords.FindAllString(lower, -1)...)

	// Modifiers are independent; a query may carry all three.
	if strings.Contains(lower, "negative") || strings.Contains(lower, "error") {
		intent.Modifiers = append(intent.Modifiers, "negative")
	}
	if strings.Contains(lower, "boundary") || strings.Contains(lower, "edge") {
		intent.Modifiers = append(intent.Modifiers, "boundary")
	}
	if strings.Contains(lower, "positive") || strings.Contains(lower, "happy") {
		intent.Modifiers = append(intent.Modifiers, "positive")
	}

	return intent
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
