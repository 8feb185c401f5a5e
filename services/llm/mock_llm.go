package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MockClient is the offline backend for demos and tests. Output is fully
// deterministic for a given prompt, so run snapshots generated against it
// are reproducible.
type MockClient struct{}

func NewMockClient() *MockClient {
	slog.Info("Initializing mock LLM client, output is deterministic")
	return &MockClient{}
}

// Generate implements the LLMClient interface. The response always carries
// both output sections in the format real backends are instructed to use.
func (m *MockClient) Generate(_ context.Context, _ string, userPrompt string, _ GenerationParams) (string, error) {
	excerpt := strings.TrimSpace(userPrompt)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}

	return fmt.Sprintf(`%s
## Test Plan (mock)

Context received from the caller:

> %s

Two suggested tests follow in the structured section.

%s
[
  {"title": "Add regression coverage for recent changes", "priority": "HIGH", "type": "regression"},
  {"title": "Validate error handling on invalid input", "priority": "MEDIUM", "type": "functional"}
]`, markerMarkdown, excerpt, markerSuggestions), nil
}
