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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

func samplePlan() datatypes.TestPlan {
	return datatypes.TestPlan{
		Key:              "TP-001",
		Summary:          "Release 1.0 campaign",
		RequirementKeys:  []string{"US-401", "US-402"},
		BaselineTestKeys: []string{"TEST-US-401-1", "TEST-US-402-1"},
	}
}

func sampleRecord() datatypes.OverlayRecord {
	return datatypes.OverlayRecord{
		PlanKey: "TP-001",
		Kind:    datatypes.OverlayKindFile,
		Governance: datatypes.GovernanceBlock{
			Status:  datatypes.StatusReview,
			Signals: []string{"skip_count:1"},
		},
		Overlay: datatypes.OverlayBlock{
			ExistingTestsToExecute: []string{"TEST-US-401-1"},
			ExistingTestsToSkip: []datatypes.SkipEntry{
				{TestKey: "TEST-US-402-1", Reason: "outdated_test"},
			},
		},
	}
}

func TestMerge_OverlayWinsForGovernanceAndOverlay(t *testing.T) {
	view := Merge(samplePlan(), sampleRecord())

	assert.Equal(t, datatypes.StatusReview, view.Governance.Status)
	assert.Equal(t, []string{"TEST-US-401-1"}, view.Overlay.ExistingTestsToExecute)
	// Structural fields untouched when the record does not carry them.
	assert.Equal(t, "Release 1.0 campaign", view.Summary)
	assert.Equal(t, []string{"US-401", "US-402"}, view.RequirementKeys)
}

func TestMerge_ExplicitStructuralOverride(t *testing.T) {
	rec := sampleRecord()
	summary := "Patched campaign"
	rec.Summary = &summary
	rec.BaselineTestKeys = []string{"TEST-US-401-1"}

	view := Merge(samplePlan(), rec)

	assert.Equal(t, "Patched campaign", view.Summary)
	assert.Equal(t, []string{"TEST-US-401-1"}, view.BaselineTestKeys)
	// Requirement keys were not carried by the record, so they stay baseline.
	assert.Equal(t, []string{"US-401", "US-402"}, view.RequirementKeys)
}

func TestMerge_Idempotent(t *testing.T) {
	plan := samplePlan()
	rec := sampleRecord()

	once := Merge(plan, rec)
	twice := Merge(once.TestPlan, rec)

	assert.Equal(t, once, twice)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	plan := samplePlan()
	rec := sampleRecord()
	planOrig := plan.Clone()
	recOrig := rec.Clone()

	view := Merge(plan, rec)

	// Mutate the view aggressively; inputs must not move.
	view.Summary = "mutated"
	view.RequirementKeys[0] = "US-999"
	view.Overlay.ExistingTestsToExecute[0] = "TEST-MUTATED"
	view.Governance.Signals[0] = "mutated"

	assert.Equal(t, planOrig, plan)
	assert.Equal(t, recOrig, rec)
}

func TestBaseView(t *testing.T) {
	view := BaseView(samplePlan())
	assert.Equal(t, datatypes.StatusNotAnalyzed, view.Governance.Status)
	assert.Empty(t, view.Overlay.ExistingTestsToExecute)
	assert.Empty(t, view.Kind)
}
