package guard

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// injectionIndicators is the fixed set of instruction-override phrasings.
// The same set is applied to untrusted queries (whole-text, aborts the
// request) and to retrieved document content (per-line, scrubs the line).
var injectionIndicators = []string{
	"ignore previous instructions",
	"disregard above",
	"forget all instructions",
	"new task:",
	"system:",
	"you are now",
	"act as",
	"pretend you are",
	"roleplay",
	"override your programming",
	"you must",
	"from now on",
}

// injectionPatterns catches structural injection markers that plain phrase
// matching misses.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<\s*system\s*>`),
	regexp.MustCompile(`\[\s*system\s*\]`),
	regexp.MustCompile("```\\s*system"),
	regexp.MustCompile(`###\s*instruction`),
}

// DetectInjection reports whether a user query carries an instruction
// override. Returns on first match, no aggregation.
func DetectInjection(query string) bool {
	lower := strings.ToLower(query)

	for _, indicator := range injectionIndicators {
		if strings.Contains(lower, indicator) {
			slog.Warn("injection indicator in query", "indicator", indicator)
			return true
		}
	}
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(lower) {
			slog.Warn("injection pattern in query", "pattern", pattern.String())
			return true
		}
	}
	return false
}

// ScrubContent drops every line containing an injection indicator and
// reassembles the rest.
func ScrubContent(content string) string {
	lines := strings.Split(content, "\n")
	clean := make([]string, 0, len(lines))

	for _, line := range lines {
		lower := strings.ToLower(line)
		suspicious := false
		for _, indicator := range injectionIndicators {
			if strings.Contains(lower, indicator) {
				suspicious = true
				slog.Warn("scrubbed suspicious line from document", "line", truncate(line, 50))
				break
			}
		}
		if !suspicious {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// FilterDocuments scrubs adversarial lines from retrieved content. A document
// is dropped only when nothing non-blank survives the scrub; content is
// rewritten in place on the copies, identity fields are untouched.
func FilterDocuments(docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	filtered := make([]domain.RetrievedDocument, 0, len(docs))

	for _, doc := range docs {
		clean := ScrubContent(doc.Content)
		if strings.TrimSpace(clean) == "" {
			continue
		}
		doc.Content = clean
		filtered = append(filtered, doc)
	}

	if removed := len(docs) - len(filtered); removed > 0 {
		slog.Info("filtered documents with injection attempts", "removed", removed)
	}
	return filtered
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
