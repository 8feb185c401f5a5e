// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GovernanceStatus is the aggregate overlay state summarizing whether an
// overlay requires human attention.
type GovernanceStatus string

const (
	// StatusNotAnalyzed means no overlay has ever been computed for the plan.
	StatusNotAnalyzed GovernanceStatus = "NOT_ANALYZED"
	// StatusAuto means the overlay has no unresolved items.
	StatusAuto GovernanceStatus = "AUTO"
	// StatusReview means at least one unresolved item exists: a pending
	// candidate, a skip entry, or a missing-test entry.
	StatusReview GovernanceStatus = "REVIEW"
)

// Decision is the governance state of an AI candidate test.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionAccepted Decision = "ACCEPTED"
	DecisionRejected Decision = "REJECTED"
)

// Valid reports whether d is one of the three known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionAccepted, DecisionRejected:
		return true
	}
	return false
}

// OverlayKind discriminates the two overlay shapes.
type OverlayKind string

const (
	// OverlayKindFile marks a persisted, mutable overlay document.
	// Candidates inside carry governance decisions.
	OverlayKindFile OverlayKind = "file"
	// OverlayKindRun marks a transient, read-only projection of a run
	// snapshot. Candidates inside carry no decisions.
	OverlayKindRun OverlayKind = "run"
)

// Priority of a proposed or candidate test.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// NormalizePriority maps a free-form upstream value onto a known priority,
// defaulting to MEDIUM.
func NormalizePriority(raw string) Priority {
	switch Priority(strings.ToUpper(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// TestType of a proposed or candidate test.
type TestType string

const (
	TypeFunctional  TestType = "functional"
	TypeRegression  TestType = "regression"
	TypeSecurity    TestType = "security"
	TypePerformance TestType = "performance"
)

// NormalizeTestType maps a free-form upstream value onto a known type,
// defaulting to functional.
func NormalizeTestType(raw string) TestType {
	switch TestType(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeRegression:
		return TypeRegression
	case TypeSecurity:
		return TypeSecurity
	case TypePerformance:
		return TypePerformance
	default:
		return TypeFunctional
	}
}

// GovernanceBlock carries the aggregate state and provenance of an overlay.
type GovernanceBlock struct {
	Status GovernanceStatus `json:"status"`
	// Signals are free-form diagnostic tags, deduplicated, order-preserving.
	Signals           []string `json:"signals,omitempty"`
	Source            string   `json:"source,omitempty"`
	RunRequirementKey string   `json:"run_requirement_key,omitempty"`
	PromptFingerprint string   `json:"prompt_fingerprint,omitempty"`
	GeneratedAt       string   `json:"generated_at,omitempty"`
}

// Clone returns a deep copy of the block.
func (g GovernanceBlock) Clone() GovernanceBlock {
	out := g
	out.Signals = append([]string(nil), g.Signals...)
	return out
}

// SkipEntry records an existing test excluded from execution, with the rule
// that excluded it and supporting evidence.
type SkipEntry struct {
	TestKey  string `json:"test_key"`
	Reason   string `json:"reason"`
	Evidence string `json:"evidence,omitempty"`
}

// ProposedTest is a rules-synthesized missing-coverage test descriptor.
type ProposedTest struct {
	RequirementKey string   `json:"requirement_key"`
	Title          string   `json:"title"`
	Tags           []string `json:"tags,omitempty"`
	Priority       Priority `json:"priority"`
	Given          string   `json:"given,omitempty"`
	When           string   `json:"when,omitempty"`
	Then           string   `json:"then,omitempty"`
}

// CandidateTest is an AI-suggested test under governance inside a file
// overlay. CandidateKey is stable: it is derived from the source run and the
// suggestion's 1-based position, so re-applying the same run reproduces the
// same keys.
type CandidateTest struct {
	CandidateKey          string   `json:"candidate_key" validate:"required"`
	Title                 string   `json:"title" validate:"required"`
	Priority              Priority `json:"priority"`
	Type                  TestType `json:"type"`
	MappedExistingTestKey string   `json:"mapped_existing_test_key,omitempty"`
	Decision              Decision `json:"decision"`
	Rationale             string   `json:"rationale,omitempty"`
	SourceRun             string   `json:"source_run,omitempty"`
	PromptFingerprint     string   `json:"prompt_fingerprint,omitempty"`
	GeneratedAt           string   `json:"generated_at,omitempty"`
}

// PreviewCandidate is the read-only projection of a run suggestion.
// It deliberately has no decision field: decision state only exists once a
// candidate is applied into a file overlay.
type PreviewCandidate struct {
	CandidateKey          string   `json:"candidate_key"`
	Title                 string   `json:"title"`
	Priority              Priority `json:"priority"`
	Type                  TestType `json:"type"`
	MappedExistingTestKey string   `json:"mapped_existing_test_key,omitempty"`
	SourceRun             string   `json:"source_run,omitempty"`
	PromptFingerprint     string   `json:"prompt_fingerprint,omitempty"`
	GeneratedAt           string   `json:"generated_at,omitempty"`
}

// OverlayBlock holds the computed overlay fields. The populated slices depend
// on the record's Kind: file overlays carry AICandidates, run previews carry
// CandidateTests.
type OverlayBlock struct {
	ExistingTestsToExecute []string           `json:"existing_tests_to_execute,omitempty"`
	ExistingTestsToSkip    []SkipEntry        `json:"existing_tests_to_skip,omitempty"`
	NewTestsToCreate       []ProposedTest     `json:"new_tests_to_create,omitempty"`
	AICandidates           []CandidateTest    `json:"ai_candidates,omitempty"`
	CandidateTests         []PreviewCandidate `json:"candidate_tests,omitempty"`
}

// Clone returns a deep copy of the block.
func (o OverlayBlock) Clone() OverlayBlock {
	out := o
	out.ExistingTestsToExecute = append([]string(nil), o.ExistingTestsToExecute...)
	out.ExistingTestsToSkip = append([]SkipEntry(nil), o.ExistingTestsToSkip...)
	out.NewTestsToCreate = append([]ProposedTest(nil), o.NewTestsToCreate...)
	out.AICandidates = append([]CandidateTest(nil), o.AICandidates...)
	out.CandidateTests = append([]PreviewCandidate(nil), o.CandidateTests...)
	return out
}

// OverlayRecord is one per-plan overlay entry inside a named overlay store.
//
// The optional structural fields (Summary, RequirementKeys, BaselineTestKeys)
// override the baseline on merge only when explicitly present.
type OverlayRecord struct {
	PlanKey    string          `json:"plan_key" validate:"required"`
	Kind       OverlayKind     `json:"kind,omitempty" validate:"omitempty,oneof=file run"`
	Governance GovernanceBlock `json:"governance"`
	Overlay    OverlayBlock    `json:"overlay"`

	Summary          *string  `json:"summary,omitempty"`
	RequirementKeys  []string `json:"requirement_keys,omitempty"`
	BaselineTestKeys []string `json:"baseline_test_keys,omitempty"`
}

// Clone returns a deep copy of the record.
func (r OverlayRecord) Clone() OverlayRecord {
	out := r
	out.Governance = r.Governance.Clone()
	out.Overlay = r.Overlay.Clone()
	if r.Summary != nil {
		s := *r.Summary
		out.Summary = &s
	}
	out.RequirementKeys = append([]string(nil), r.RequirementKeys...)
	out.BaselineTestKeys = append([]string(nil), r.BaselineTestKeys...)
	return out
}

var recordValidator = validator.New()

// Validate checks that a record this service is about to persist is
// well-formed. Records read from external stores go through normalization
// instead; this is the write-side guard.
func (r OverlayRecord) Validate() error {
	if err := recordValidator.Struct(r); err != nil {
		return err
	}
	for _, c := range r.Overlay.AICandidates {
		if err := recordValidator.Struct(c); err != nil {
			return err
		}
	}
	return nil
}

// RunProvenance identifies how a run snapshot was produced.
type RunProvenance struct {
	PromptID          string `json:"prompt_id,omitempty"`
	PromptFingerprint string `json:"prompt_fingerprint,omitempty"`
	SchemaID          string `json:"schema_id,omitempty"`
	SchemaHash        string `json:"schema_hash,omitempty"`
	Provider          string `json:"provider,omitempty"`
	Model             string `json:"model,omitempty"`
}

// RawSuggestion is one AI-proposed test inside a run snapshot, as produced by
// the upstream generator.
type RawSuggestion struct {
	Title                 string `json:"title"`
	Priority              string `json:"priority,omitempty"`
	Type                  string `json:"type,omitempty"`
	Given                 string `json:"given,omitempty"`
	When                  string `json:"when,omitempty"`
	Then                  string `json:"then,omitempty"`
	MappedExistingTestKey string `json:"mapped_existing_test_key,omitempty"`
}

// RunSnapshot is an immutable, externally-produced generation artifact keyed
// by a requirement. Read-only input; this service never persists one through
// the overlay path.
type RunSnapshot struct {
	RequirementKey string          `json:"requirement_key"`
	GeneratedAt    string          `json:"generated_at"`
	Provenance     RunProvenance   `json:"provenance"`
	Markdown       string          `json:"markdown,omitempty"`
	Suggestions    []RawSuggestion `json:"suggestions"`
}

// NormalizeRun decodes a run snapshot document, dropping suggestions that are
// not objects. Returns false when the document has no requirement key.
func NormalizeRun(raw json.RawMessage) (RunSnapshot, bool) {
	var loose struct {
		RequirementKey string            `json:"requirement_key"`
		GeneratedAt    string            `json:"generated_at"`
		Provenance     RunProvenance     `json:"provenance"`
		Markdown       string            `json:"markdown"`
		Suggestions    []json.RawMessage `json:"suggestions"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return RunSnapshot{}, false
	}
	key := strings.TrimSpace(loose.RequirementKey)
	if key == "" {
		return RunSnapshot{}, false
	}
	out := RunSnapshot{
		RequirementKey: key,
		GeneratedAt:    loose.GeneratedAt,
		Provenance:     loose.Provenance,
		Markdown:       loose.Markdown,
	}
	for _, s := range loose.Suggestions {
		var sug RawSuggestion
		if err := json.Unmarshal(s, &sug); err == nil {
			out.Suggestions = append(out.Suggestions, sug)
		}
	}
	return out, true
}
