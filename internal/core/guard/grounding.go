package guard

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

const (
	DefaultGroundingThreshold = 0.7

	minSentenceLen      = 10
	wordOverlapFloor    = 0.6
	windowSize          = 50
	windowStride        = 25
	windowSimilarityMin = 0.7
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	// \w in RE2 is ASCII-only; generated text may be in any script.
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
}

// GroundingDetector scores what fraction of generated sentences are
// lexically supported by the retrieved evidence.
type GroundingDetector struct {
	Threshold float64
}

func NewGroundingDetector(threshold float64) *GroundingDetector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultGroundingThreshold
	}
	return &GroundingDetector{Threshold: threshold}
}

// CheckGrounding returns (grounded, score, warnings). A sentence counts as
// grounded on word-set overlap against the evidence blob, with a sliding
// character-window fallback that catches near-verbatim paraphrases the
// overlap misses. Runs once per generation, so the window scan cost is fine.
func (g *GroundingDetector) CheckGrounding(generated string, docs []domain.RetrievedDocument) (bool, float64, []string) {
	if len(docs) == 0 {
		return false, 0.0, []string{"No source documents to verify against"}
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	evidence := strings.Join(parts, " ")

	var grounded, qualifying int
	var ungrounded []string
	for _, sentence := range splitSentences(generated) {
		if len(strings.TrimSpace(sentence)) < minSentenceLen {
			continue
		}
		qualifying++
		if sentenceGrounded(sentence, evidence) {
			grounded++
		} else {
			ungrounded = append(ungrounded, truncate(sentence, 100))
		}
	}

	score := 0.0
	if qualifying > 0 {
		score = float64(grounded) / float64(qualifying)
	}
	isGrounded := score >= g.Threshold

	var warnings []string
	if !isGrounded {
		warnings = append(warnings,
			fmt.Sprintf("Low grounding score: %.2f", score),
			fmt.Sprintf("Found %d potentially hallucinated sentences", len(ungrounded)),
		)
	}
	slog.Debug("grounding check", "grounded", isGrounded, "score", score)
	return isGrounded, score, warnings
}

// DetectContradictions is an extension hook for contradiction analysis
// between generated text and evidence. It currently detects nothing.
func (g *GroundingDetector) DetectContradictions(string, []domain.RetrievedDocument) []string {
	return nil
}

func splitSentences(text string) []string {
	raw := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sentenceGrounded(sentence, evidence string) bool {
	sentenceLower := strings.ToLower(sentence)
	evidenceLower := strings.ToLower(evidence)

	// No content words means a stopword-only sentence, nothing to check.
	sentenceWords := contentWordSet(sentenceLower)
	if len(sentenceWords) == 0 {
		return true
	}
	evidenceWords := contentWordSet(evidenceLower)

	common := 0
	for w := range sentenceWords {
		if evidenceWords[w] {
			common++
		}
	}
	if float64(common)/float64(len(sentenceWords)) >= wordOverlapFloor {
		return true
	}

	// Windowed fallback: any sentence window near-matching any evidence
	// window grounds the sentence.
	for _, sw := range slidingWindows(sentenceLower) {
		for _, ew := range slidingWindows(evidenceLower) {
			if sequenceRatio(sw, ew) >= windowSimilarityMin {
				return true
			}
		}
	}
	return false
}

func contentWordSet(s string) map[string]bool {
	words := wordPattern.FindAllString(s, -1)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if !stopwords[w] {
			set[w] = true
		}
	}
	return set
}

func slidingWindows(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	out := make([]string, 0, len(runes)/windowStride+1)
	for start := 0; start < len(runes); start += windowStride {
		end := start + windowSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
