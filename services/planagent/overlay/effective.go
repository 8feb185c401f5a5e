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
	"context"
	"sort"

	"github.com/AleutianAI/testplan-agent/pkg/validation"
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// EffectiveSummary carries the counts of an effective-plan resolution.
type EffectiveSummary struct {
	BaselineTests   int `json:"baseline_tests"`
	AcceptedAI      int `json:"accepted_ai"`
	RejectedAI      int `json:"rejected_ai"`
	PendingAI       int `json:"pending_ai"`
	MissingTests    int `json:"missing_tests"`
	SkippedExisting int `json:"skipped_existing"`
	EffectiveTotal  int `json:"effective_total"`
}

// Traceability links an effective view back to the run and prompt that
// produced its overlay.
type Traceability struct {
	PromptFingerprint string   `json:"prompt_fingerprint,omitempty"`
	RunRequirementKey string   `json:"run_requirement_key,omitempty"`
	Signals           []string `json:"signals,omitempty"`
}

// EffectiveResult is the final "what to execute" view for a plan: baseline
// execution set, minus skips, plus accepted AI candidates, with rejected and
// pending candidates surfaced separately. Purely a read computation.
type EffectiveResult struct {
	PlanKey     string                     `json:"plan_key"`
	Overlay     string                     `json:"overlay,omitempty"`
	OverlayKind datatypes.OverlayKind      `json:"overlay_kind,omitempty"`
	Status      datatypes.GovernanceStatus `json:"status"`
	Summary     EffectiveSummary           `json:"summary"`

	TestsToExecute []string                 `json:"tests_to_execute"`
	TestsExcluded  []string                 `json:"tests_excluded"`
	TestsPending   []string                 `json:"tests_pending"`
	TestsMissing   []datatypes.ProposedTest `json:"tests_missing"`
	TestsSkipped   []string                 `json:"tests_skipped"`
	Traceability   Traceability             `json:"traceability"`
}

// ResolveEffective computes the effective test plan for a plan under an
// overlay. overlayName may be empty (baseline only), a run key (read-only
// preview: all candidates pending), or a file overlay name.
func (e *Engine) ResolveEffective(ctx context.Context, planKey, overlayName string) (EffectiveResult, error) {
	plan, err := e.catalog.GetPlan(ctx, planKey)
	if err != nil {
		return EffectiveResult{}, err
	}

	view, err := e.PlanView(ctx, planKey, overlayName)
	if err != nil {
		return EffectiveResult{}, err
	}
	// Kind follows the requested name, not record presence: a file overlay
	// with no record for this plan still resolves as a (empty) file overlay.
	var kind datatypes.OverlayKind
	switch {
	case overlayName == "":
		kind = ""
	case validation.IsRunKey(overlayName):
		kind = datatypes.OverlayKindRun
	default:
		kind = datatypes.OverlayKindFile
	}

	// Baseline tests always come from the baseline plan, a stable reference
	// point even when the overlay overrides structural fields.
	executeSet := make(map[string]struct{}, len(plan.BaselineTestKeys))
	for _, k := range plan.BaselineTestKeys {
		executeSet[k] = struct{}{}
	}

	var skipped []string
	if kind == datatypes.OverlayKindFile {
		// An explicit execution list replaces the baseline set, it does not
		// union with it.
		if len(view.Overlay.ExistingTestsToExecute) > 0 {
			executeSet = make(map[string]struct{}, len(view.Overlay.ExistingTestsToExecute))
			for _, k := range view.Overlay.ExistingTestsToExecute {
				executeSet[k] = struct{}{}
			}
		}
		for _, s := range view.Overlay.ExistingTestsToSkip {
			if s.TestKey == "" {
				continue
			}
			skipped = append(skipped, s.TestKey)
		}
		skipped = dedupStrings(skipped)
		for _, k := range skipped {
			delete(executeSet, k)
		}
	}

	var accepted, rejected, pending []string
	switch kind {
	case datatypes.OverlayKindFile:
		for _, c := range view.Overlay.AICandidates {
			switch c.Decision {
			case datatypes.DecisionAccepted:
				accepted = append(accepted, c.CandidateKey)
			case datatypes.DecisionRejected:
				rejected = append(rejected, c.CandidateKey)
			default:
				pending = append(pending, c.CandidateKey)
			}
		}
	case datatypes.OverlayKindRun:
		// No persisted decisions exist on a run preview; everything is
		// pending by nature.
		for _, c := range view.Overlay.CandidateTests {
			pending = append(pending, c.CandidateKey)
		}
	}

	var missing []datatypes.ProposedTest
	if kind == datatypes.OverlayKindFile {
		missing = append(missing, view.Overlay.NewTestsToCreate...)
	}

	for _, k := range accepted {
		executeSet[k] = struct{}{}
	}
	effective := make([]string, 0, len(executeSet))
	for k := range executeSet {
		effective = append(effective, k)
	}
	sort.Strings(effective)

	return EffectiveResult{
		PlanKey:     plan.Key,
		Overlay:     overlayName,
		OverlayKind: kind,
		Status:      view.Governance.Status,
		Summary: EffectiveSummary{
			BaselineTests:   len(plan.BaselineTestKeys),
			AcceptedAI:      len(accepted),
			RejectedAI:      len(rejected),
			PendingAI:       len(pending),
			MissingTests:    len(missing),
			SkippedExisting: len(skipped),
			EffectiveTotal:  len(effective),
		},
		TestsToExecute: effective,
		TestsExcluded:  rejected,
		TestsPending:   pending,
		TestsMissing:   missing,
		TestsSkipped:   skipped,
		Traceability: Traceability{
			PromptFingerprint: view.Governance.PromptFingerprint,
			RunRequirementKey: view.Governance.RunRequirementKey,
			Signals:           view.Governance.Signals,
		},
	}, nil
}
