// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the data model shared by the plan-agent service:
// baseline test plans, existing tests, overlay records, and run snapshots.
//
// Baseline plans and run snapshots are owned by external collaborators and
// are read-only here. Overlay records are owned by this service and must
// always be well-formed when persisted.
//
// Upstream mock data is loosely typed JSON. Each external entity has exactly
// one normalization function in this package (NormalizePlan, NormalizeTest,
// NormalizeChange, NormalizeRun) that filters malformed fields best-effort
// instead of raising, so the overlay engine can assume well-typed input.
package datatypes

import (
	"encoding/json"
	"strings"
)

// TestPlan is a baseline test-plan record (one release/campaign).
// Immutable within this service; the overlay engine never writes it back.
type TestPlan struct {
	Key              string   `json:"key"`
	Summary          string   `json:"summary"`
	RequirementKeys  []string `json:"requirement_keys"`
	BaselineTestKeys []string `json:"baseline_test_keys"`
}

// Clone returns a deep copy of the plan.
func (p TestPlan) Clone() TestPlan {
	out := p
	out.RequirementKeys = append([]string(nil), p.RequirementKeys...)
	out.BaselineTestKeys = append([]string(nil), p.BaselineTestKeys...)
	return out
}

// ExistingTest is a test record from the external test repository,
// keyed by requirement id.
type ExistingTest struct {
	Key     string   `json:"key"`
	Summary string   `json:"summary"`
	Steps   string   `json:"steps,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// JiraIssue is a requirement record from the issue tracker mock.
type JiraIssue struct {
	Key                string `json:"key"`
	Summary            string `json:"summary"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
}

// CodeChange is a code-change record from the repository mock.
type CodeChange struct {
	FilePath    string `json:"file_path"`
	Summary     string `json:"summary,omitempty"`
	DiffExcerpt string `json:"diff_excerpt,omitempty"`
}

// stringSlice keeps only the string entries of a loosely typed JSON array.
func stringSlice(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// NormalizePlan decodes one baseline plan entry, filtering non-string list
// members. Returns false when the entry has no usable key.
func NormalizePlan(raw json.RawMessage) (TestPlan, bool) {
	var loose struct {
		Key              string            `json:"key"`
		Summary          string            `json:"summary"`
		RequirementKeys  []json.RawMessage `json:"requirement_keys"`
		BaselineTestKeys []json.RawMessage `json:"baseline_test_keys"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return TestPlan{}, false
	}
	key := strings.TrimSpace(loose.Key)
	if key == "" {
		return TestPlan{}, false
	}
	return TestPlan{
		Key:              key,
		Summary:          loose.Summary,
		RequirementKeys:  stringSlice(loose.RequirementKeys),
		BaselineTestKeys: stringSlice(loose.BaselineTestKeys),
	}, true
}

// NormalizeTest decodes one existing-test entry. Returns false when the entry
// has no usable key.
func NormalizeTest(raw json.RawMessage) (ExistingTest, bool) {
	var loose struct {
		Key     string            `json:"key"`
		Summary string            `json:"summary"`
		Steps   string            `json:"steps"`
		Tags    []json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return ExistingTest{}, false
	}
	key := strings.TrimSpace(loose.Key)
	if key == "" {
		return ExistingTest{}, false
	}
	return ExistingTest{
		Key:     key,
		Summary: loose.Summary,
		Steps:   loose.Steps,
		Tags:    stringSlice(loose.Tags),
	}, true
}

// NormalizeChange decodes one code-change entry. Entries without a file path
// are kept with a placeholder so upstream counts stay stable.
func NormalizeChange(raw json.RawMessage, placeholder string) (CodeChange, bool) {
	var loose struct {
		FilePath    string `json:"file_path"`
		Path        string `json:"path"`
		File        string `json:"file"`
		Summary     string `json:"summary"`
		DiffExcerpt string `json:"diff_excerpt"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return CodeChange{}, false
	}
	path := strings.TrimSpace(loose.FilePath)
	if path == "" {
		path = strings.TrimSpace(loose.Path)
	}
	if path == "" {
		path = strings.TrimSpace(loose.File)
	}
	if path == "" {
		path = placeholder
	}
	return CodeChange{FilePath: path, Summary: loose.Summary, DiffExcerpt: loose.DiffExcerpt}, true
}
