// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package overlay

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// MatchesRequirement reports whether a baseline test key belongs to a
// requirement, using the "TEST-<requirement>-" key convention.
//
// This is a naming heuristic inherited from the upstream datasets. It is the
// single place the convention lives; swap it for an explicit mapping table
// without touching callers.
func MatchesRequirement(testKey, requirementKey string) bool {
	return strings.HasPrefix(testKey, "TEST-"+requirementKey+"-")
}

// CandidateKey derives the stable key for the n-th (1-based) title-bearing
// suggestion of a run.
func CandidateKey(requirementKey string, n int) string {
	return fmt.Sprintf("CAND-%s-%03d", requirementKey, n)
}

// candidatePrefix is the key prefix shared by every candidate of a run.
func candidatePrefix(requirementKey string) string {
	return "CAND-" + requirementKey + "-"
}

// dedupStrings removes duplicates preserving first-seen order.
func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// dedupSkips removes duplicate skip entries by test key, first-seen wins.
func dedupSkips(in []datatypes.SkipEntry) []datatypes.SkipEntry {
	seen := make(map[string]struct{}, len(in))
	out := make([]datatypes.SkipEntry, 0, len(in))
	for _, e := range in {
		if _, ok := seen[e.TestKey]; ok {
			continue
		}
		seen[e.TestKey] = struct{}{}
		out = append(out, e)
	}
	return out
}

// fingerprintSignal returns a short diagnostic tag for a prompt fingerprint,
// or "" when no fingerprint is available. Fingerprints are "sha256:<hex>";
// the signal keeps the first 8 hex characters.
func fingerprintSignal(fingerprint string) string {
	hex := strings.TrimPrefix(fingerprint, "sha256:")
	if hex == "" {
		return ""
	}
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "prompt:" + hex
}

// reviewNeeded reports whether a file-overlay block has any unresolved item:
// a skip entry, a missing-test entry, or a PENDING candidate. This single
// predicate keeps governance status consistent across enrich, apply, and
// decision paths.
func reviewNeeded(block datatypes.OverlayBlock) bool {
	if len(block.ExistingTestsToSkip) > 0 || len(block.NewTestsToCreate) > 0 {
		return true
	}
	for _, c := range block.AICandidates {
		if c.Decision == datatypes.DecisionPending || !c.Decision.Valid() {
			return true
		}
	}
	return false
}

// ComputeFileOverlay derives the rules-based overlay record for a plan.
//
// For each requirement of the plan, baseline tests under that requirement's
// key prefix are executed when the test repository knows them and skipped
// (reason missing_in_xray) when it does not. A requirement with no repository
// tests at all gets one synthesized missing-coverage entry. Repository tests
// whose text mentions "outdated" are skipped as outdated_test.
//
// Pure and side-effect free: callers decide whether and where to persist.
func ComputeFileOverlay(plan datatypes.TestPlan, testsByReq map[string][]datatypes.ExistingTest) datatypes.OverlayRecord {
	var (
		execute []string
		skips   []datatypes.SkipEntry
		missing []datatypes.ProposedTest
	)

	baseline := make(map[string]struct{}, len(plan.BaselineTestKeys))
	for _, k := range plan.BaselineTestKeys {
		baseline[k] = struct{}{}
	}

	for _, req := range plan.RequirementKeys {
		tests := testsByReq[req]
		known := make(map[string]struct{}, len(tests))
		for _, t := range tests {
			known[t.Key] = struct{}{}
		}

		for _, testKey := range plan.BaselineTestKeys {
			if !MatchesRequirement(testKey, req) {
				continue
			}
			if _, ok := known[testKey]; ok {
				execute = append(execute, testKey)
			} else {
				skips = append(skips, datatypes.SkipEntry{
					TestKey:  testKey,
					Reason:   "missing_in_xray",
					Evidence: fmt.Sprintf("Not found under %s in the test repository", req),
				})
			}
		}

		if len(tests) == 0 {
			missing = append(missing, datatypes.ProposedTest{
				RequirementKey: req,
				Title:          fmt.Sprintf("%s - Missing coverage: create baseline regression test", req),
				Tags:           []string{"regression"},
				Priority:       datatypes.PriorityHigh,
				Given:          "A user is authenticated and has access to the QA test management portal",
				When:           "The user executes the feature described in the requirement",
				Then:           "The expected outcome matches acceptance criteria and errors are handled cleanly",
			})
		}

		for _, t := range tests {
			text := strings.ToLower(t.Summary + "\n" + t.Steps)
			if !strings.Contains(text, "outdated") {
				continue
			}
			if _, ok := baseline[t.Key]; ok {
				skips = append(skips, datatypes.SkipEntry{
					TestKey:  t.Key,
					Reason:   "outdated_test",
					Evidence: "Contains keyword 'outdated' in summary/steps",
				})
			}
		}
	}

	execute = dedupStrings(execute)
	skips = dedupSkips(skips)

	gov := datatypes.GovernanceBlock{Status: datatypes.StatusAuto}
	if len(skips) > 0 || len(missing) > 0 {
		gov.Status = datatypes.StatusReview
	}
	if len(skips) > 0 {
		gov.Signals = append(gov.Signals, fmt.Sprintf("skip_count:%d", len(skips)))
	}
	if len(missing) > 0 {
		gov.Signals = append(gov.Signals, fmt.Sprintf("new_tests_to_create:%d", len(missing)))
	}

	return datatypes.OverlayRecord{
		PlanKey:    plan.Key,
		Kind:       datatypes.OverlayKindFile,
		Governance: gov,
		Overlay: datatypes.OverlayBlock{
			ExistingTestsToExecute: execute,
			ExistingTestsToSkip:    skips,
			NewTestsToCreate:       missing,
		},
	}
}

// ComputeRunOverlay projects a run snapshot into a transient run-preview
// record for a plan. Never persisted.
//
// A snapshot whose requirement is not linked to the plan yields a legitimate
// no-op record (NOT_ANALYZED, signal no_run_match), not an error.
//
// Suggestions with empty titles are skipped entirely: candidate numbering is
// 1-based over title-bearing suggestions only. This is a deliberate policy,
// asserted by tests.
func ComputeRunOverlay(plan datatypes.TestPlan, run datatypes.RunSnapshot) datatypes.OverlayRecord {
	matched := false
	for _, req := range plan.RequirementKeys {
		if req == run.RequirementKey {
			matched = true
			break
		}
	}
	if !matched {
		return datatypes.OverlayRecord{
			PlanKey: plan.Key,
			Kind:    datatypes.OverlayKindRun,
			Governance: datatypes.GovernanceBlock{
				Status:  datatypes.StatusNotAnalyzed,
				Signals: []string{"no_run_match"},
			},
		}
	}

	var candidates []datatypes.PreviewCandidate
	for _, sug := range run.Suggestions {
		title := strings.TrimSpace(sug.Title)
		if title == "" {
			continue
		}
		candidates = append(candidates, datatypes.PreviewCandidate{
			CandidateKey:          CandidateKey(run.RequirementKey, len(candidates)+1),
			Title:                 title,
			Priority:              datatypes.NormalizePriority(sug.Priority),
			Type:                  datatypes.NormalizeTestType(sug.Type),
			MappedExistingTestKey: sug.MappedExistingTestKey,
			SourceRun:             run.RequirementKey,
			PromptFingerprint:     run.Provenance.PromptFingerprint,
			GeneratedAt:           run.GeneratedAt,
		})
	}

	gov := datatypes.GovernanceBlock{
		Status:            datatypes.StatusAuto,
		Source:            "run",
		RunRequirementKey: run.RequirementKey,
		PromptFingerprint: run.Provenance.PromptFingerprint,
		GeneratedAt:       run.GeneratedAt,
		Signals: []string{
			"run:" + run.RequirementKey,
			fmt.Sprintf("candidates:%d", len(candidates)),
		},
	}
	if len(candidates) > 0 {
		gov.Status = datatypes.StatusReview
	}
	if sig := fingerprintSignal(run.Provenance.PromptFingerprint); sig != "" {
		gov.Signals = append(gov.Signals, sig)
	}

	return datatypes.OverlayRecord{
		PlanKey:    plan.Key,
		Kind:       datatypes.OverlayKindRun,
		Governance: gov,
		Overlay:    datatypes.OverlayBlock{CandidateTests: candidates},
	}
}
