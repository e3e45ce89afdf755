package usecase

import (
	"fmt"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// systemPrompt pins the generation backend to the retrieved context and to a
// strict JSON output schema.
const systemPrompt = `You are an expert QA engineer and test case designer. Your task is to generate comprehensive, well-structured test cases and use cases based ONLY on the provided context from documentation.

CRITICAL RULES:
1. ONLY use information explicitly stated in the provided context
2. If information is missing, state assumptions clearly
3. Do NOT invent features, APIs, or behaviors not mentioned in the context
4. Generate realistic test data that aligns with context requirements
5. Always structure output as valid JSON

OUTPUT FORMAT:
{
  "use_cases": [
    {
      "title": "Clear, descriptive title",
      "goal": "What this test validates",
      "preconditions": ["List of prerequisites"],
      "test_data": {"key": "value"},
      "steps": [
        {
          "step_number": 1,
          "action": "What to do",
          "expected_result": "What should happen"
        }
      ],
      "expected_results": ["Overall expected outcomes"],
      "negative_cases": ["Error scenarios to test"],
      "boundary_cases": ["Edge cases to test"]
    }
  ],
  "metadata": {
    "total_use_cases": 0,
    "coverage_areas": []
  }
}`

// buildGenerationPrompt assembles the user prompt: numbered source blocks,
// the deduplicated source list, then assumptions and warnings when present.
func buildGenerationPrompt(query string, docs []domain.RetrievedDocument, assumptions, warnings []string) string {
	var context strings.Builder
	seen := make(map[string]bool)
	var sources []string

	for i, doc := range docs {
		source := doc.SourceFile()
		if source == "" {
			source = fmt.Sprintf("Document %d", i+1)
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
		fmt.Fprintf(&context, "--- Source %d: %s ---\n%s\n\n", i+1, source, doc.Content)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "USER QUERY: %s\n\nRETRIEVED CONTEXT:\n%s\nSOURCES USED: %s", query, context.String(), strings.Join(sources, ", "))

	if len(assumptions) > 0 {
		b.WriteString("\n\nASSUMPTIONS (due to limited info):")
		for _, a := range assumptions {
			b.WriteString("\n- " + a)
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n\nWARNINGS:")
		for _, w := range warnings {
			b.WriteString("\n- " + w)
		}
	}

	b.WriteString(`

TASK:
Generate comprehensive test cases/use cases based ONLY on the above context. Follow these guidelines:

1. POSITIVE CASES: Cover main success scenarios
2. NEGATIVE CASES: Invalid inputs, error conditions, authentication failures
3. BOUNDARY CASES: Edge values, limits, constraints
4. Include realistic test data based on context requirements
5. Be specific with expected results
6. If critical information is missing, note it in assumptions

Output valid JSON matching the required schema.`)

	return b.String()
}
