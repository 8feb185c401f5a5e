package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

const (
	markerMarkdown    = "---MARKDOWN---"
	markerSuggestions = "---SUGGESTIONS_JSON---"
)

// ErrMalformedOutput means the backend emitted a suggestions section that is
// not valid JSON. The markdown part is still usable.
var ErrMalformedOutput = errors.New("malformed generator output")

// SystemPrompt instructs the backend to produce both output sections. The
// exact text participates in the prompt fingerprint, so edits here change
// run provenance on purpose.
const SystemPrompt = `You are a senior QA engineer drafting a test plan for one requirement.

You receive the requirement, its existing tests, and recent code changes.
Propose additional tests that close real coverage gaps. Do not repeat tests
that already exist.

Respond in exactly two sections:

---MARKDOWN---
A concise human-readable test plan in Markdown.

---SUGGESTIONS_JSON---
A JSON array of suggested tests. Each element has the fields:
"title" (required), "priority" (HIGH|MEDIUM|LOW), "type"
(functional|regression|security|performance), "given", "when", "then",
and optionally "mapped_existing_test_key" when the suggestion extends an
existing test. Output nothing after the JSON array.`

// BuildPrompt assembles the user prompt from the three upstream sources.
// Deterministic for identical inputs; input order is preserved as loaded.
func BuildPrompt(issue datatypes.JiraIssue, tests []datatypes.ExistingTest, changes []datatypes.CodeChange) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Requirement %s: %s\n", issue.Key, issue.Summary)
	if issue.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", issue.Description)
	}
	if issue.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "\nAcceptance criteria:\n%s\n", issue.AcceptanceCriteria)
	}

	b.WriteString("\nExisting tests:\n")
	if len(tests) == 0 {
		b.WriteString("(none recorded)\n")
	}
	for _, t := range tests {
		fmt.Fprintf(&b, "- %s: %s\n", t.Key, t.Summary)
		if t.Steps != "" {
			fmt.Fprintf(&b, "  steps: %s\n", t.Steps)
		}
	}

	b.WriteString("\nRecent code changes:\n")
	if len(changes) == 0 {
		b.WriteString("(none recorded)\n")
	}
	for _, c := range changes {
		fmt.Fprintf(&b, "- %s", c.FilePath)
		if c.Summary != "" {
			fmt.Fprintf(&b, ": %s", c.Summary)
		}
		b.WriteString("\n")
		if c.DiffExcerpt != "" {
			fmt.Fprintf(&b, "  diff: %s\n", c.DiffExcerpt)
		}
	}
	return b.String()
}

// stripFences removes a Markdown code fence around a JSON block, which some
// backends add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// SplitOutput separates a backend response into its markdown plan and parsed
// suggestions.
//
// A response without a suggestions marker is all markdown with zero
// suggestions. A suggestions section that fails to parse returns the
// markdown alongside ErrMalformedOutput, so callers can keep the plan and
// flag the loss.
func SplitOutput(raw string) (string, []datatypes.RawSuggestion, error) {
	head, tail, hasSuggestions := strings.Cut(raw, markerSuggestions)

	markdown := head
	if _, after, ok := strings.Cut(markdown, markerMarkdown); ok {
		markdown = after
	}
	markdown = strings.TrimSpace(markdown)

	if !hasSuggestions {
		return markdown, nil, nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(tail)), &rawItems); err != nil {
		return markdown, nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	var suggestions []datatypes.RawSuggestion
	for _, item := range rawItems {
		var sug datatypes.RawSuggestion
		if err := json.Unmarshal(item, &sug); err == nil {
			suggestions = append(suggestions, sug)
		}
	}
	return markdown, suggestions, nil
}

// AgentResult is one completed generation: the markdown plan, the parsed
// suggestions, and the exact user prompt that produced them.
type AgentResult struct {
	Markdown    string
	Suggestions []datatypes.RawSuggestion
	UserPrompt  string
}

// Agent runs the test-plan generation flow against any backend.
type Agent struct {
	client LLMClient
	params GenerationParams
}

func NewAgent(client LLMClient) *Agent {
	temp := float32(0.2)
	maxTokens := 2048
	return &Agent{
		client: client,
		params: GenerationParams{Temperature: &temp, MaxTokens: &maxTokens},
	}
}

// GenerateTestPlan builds the prompt for one requirement, calls the backend,
// and splits the response.
func (a *Agent) GenerateTestPlan(ctx context.Context, issue datatypes.JiraIssue, tests []datatypes.ExistingTest, changes []datatypes.CodeChange) (AgentResult, error) {
	userPrompt := BuildPrompt(issue, tests, changes)
	raw, err := a.client.Generate(ctx, SystemPrompt, userPrompt, a.params)
	if err != nil {
		return AgentResult{}, fmt.Errorf("generate test plan for %s: %w", issue.Key, err)
	}

	markdown, suggestions, err := SplitOutput(raw)
	if err != nil {
		return AgentResult{}, fmt.Errorf("test plan for %s: %w", issue.Key, err)
	}
	return AgentResult{Markdown: markdown, Suggestions: suggestions, UserPrompt: userPrompt}, nil
}
