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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

func TestResolveEffective_BaselineOnly(t *testing.T) {
	engine, _, _, _ := testFixture()

	res, err := engine.ResolveEffective(context.Background(), "TP-1", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"TEST-US-401-1", "TEST-US-402-1"}, res.TestsToExecute)
	assert.Empty(t, res.TestsPending)
	assert.Empty(t, res.TestsExcluded)
	assert.Empty(t, res.TestsSkipped)
	assert.Equal(t, datatypes.OverlayKind(""), res.OverlayKind)
	assert.Equal(t, datatypes.StatusNotAnalyzed, res.Status)
	assert.Equal(t, 2, res.Summary.BaselineTests)
	assert.Equal(t, 2, res.Summary.EffectiveTotal)
}

func TestResolveEffective_EmptyFileOverlayMatchesBaseline(t *testing.T) {
	engine, _, _, _ := testFixture()

	res, err := engine.ResolveEffective(context.Background(), "TP-1", "promptA")
	require.NoError(t, err)

	assert.Equal(t, datatypes.OverlayKindFile, res.OverlayKind)
	assert.Equal(t, []string{"TEST-US-401-1", "TEST-US-402-1"}, res.TestsToExecute)
	assert.Equal(t, datatypes.StatusNotAnalyzed, res.Status)
}

func TestResolveEffective_SkipsAreSetDifference(t *testing.T) {
	engine, _, _, _ := testFixture()
	ctx := context.Background()

	// TP-2's only requirement has no repository tests: the baseline test is
	// skipped and a missing-coverage proposal is synthesized.
	_, err := engine.Enrich(ctx, "TP-2", "promptA")
	require.NoError(t, err)

	res, err := engine.ResolveEffective(ctx, "TP-2", "promptA")
	require.NoError(t, err)

	assert.Empty(t, res.TestsToExecute)
	assert.Equal(t, []string{"TEST-US-403-1"}, res.TestsSkipped)
	require.Len(t, res.TestsMissing, 1)
	assert.Equal(t, "US-403", res.TestsMissing[0].RequirementKey)
	assert.Equal(t, datatypes.StatusReview, res.Status)
	assert.Equal(t, 1, res.Summary.SkippedExisting)
	assert.Equal(t, 1, res.Summary.MissingTests)
	assert.Zero(t, res.Summary.EffectiveTotal)
}

func TestResolveEffective_ExplicitExecuteListReplacesBaseline(t *testing.T) {
	engine, _, overlays, _ := testFixture()
	ctx := context.Background()

	overlays.docs["curated"] = []datatypes.OverlayRecord{{
		PlanKey:    "TP-1",
		Kind:       datatypes.OverlayKindFile,
		Governance: datatypes.GovernanceBlock{Status: datatypes.StatusAuto},
		Overlay: datatypes.OverlayBlock{
			ExistingTestsToExecute: []string{"TEST-US-401-1"},
		},
	}}

	res, err := engine.ResolveEffective(ctx, "TP-1", "curated")
	require.NoError(t, err)

	// Replacement, not union: TEST-US-402-1 is absent even though the
	// baseline plan lists it.
	assert.Equal(t, []string{"TEST-US-401-1"}, res.TestsToExecute)
	assert.Equal(t, 2, res.Summary.BaselineTests)
	assert.Equal(t, 1, res.Summary.EffectiveTotal)
}

func TestResolveEffective_AcceptedCandidateJoinsExecuteSet(t *testing.T) {
	engine, _, _, _ := testFixture()
	ctx := context.Background()

	// Scenario: apply a run, accept one candidate, leave the other pending.
	_, err := engine.ApplyRun(ctx, "TP-1", "US-402", "promptA")
	require.NoError(t, err)
	_, err = engine.SetDecision(ctx, "promptA", "TP-1", "CAND-US-402-001", datatypes.DecisionAccepted, "covers the token expiry gap")
	require.NoError(t, err)

	res, err := engine.ResolveEffective(ctx, "TP-1", "promptA")
	require.NoError(t, err)

	assert.Contains(t, res.TestsToExecute, "CAND-US-402-001")
	assert.NotContains(t, res.TestsPending, "CAND-US-402-001")
	assert.NotContains(t, res.TestsExcluded, "CAND-US-402-001")
	assert.Equal(t, []string{"CAND-US-402-002"}, res.TestsPending)
	assert.True(t, sort.StringsAreSorted(res.TestsToExecute))
	assert.Equal(t, 1, res.Summary.AcceptedAI)
	assert.Equal(t, 1, res.Summary.PendingAI)
	assert.Equal(t, 3, res.Summary.EffectiveTotal)
	assert.Equal(t, datatypes.StatusReview, res.Status)
	assert.Equal(t, "US-402", res.Traceability.RunRequirementKey)
	assert.Equal(t, "sha256:ab12cd34ef567890", res.Traceability.PromptFingerprint)
}

func TestResolveEffective_RejectedCandidateExcluded(t *testing.T) {
	engine, _, _, _ := testFixture()
	ctx := context.Background()

	_, err := engine.ApplyRun(ctx, "TP-1", "US-402", "promptA")
	require.NoError(t, err)
	_, err = engine.SetDecision(ctx, "promptA", "TP-1", "CAND-US-402-001", datatypes.DecisionRejected, "duplicate of TEST-US-402-1")
	require.NoError(t, err)
	_, err = engine.SetDecision(ctx, "promptA", "TP-1", "CAND-US-402-002", datatypes.DecisionAccepted, "new edge case")
	require.NoError(t, err)

	res, err := engine.ResolveEffective(ctx, "TP-1", "promptA")
	require.NoError(t, err)

	assert.Equal(t, []string{"CAND-US-402-001"}, res.TestsExcluded)
	assert.NotContains(t, res.TestsToExecute, "CAND-US-402-001")
	assert.Contains(t, res.TestsToExecute, "CAND-US-402-002")
	assert.Empty(t, res.TestsPending)
	assert.Equal(t, datatypes.StatusAuto, res.Status)
}

func TestResolveEffective_RunPreviewAllPending(t *testing.T) {
	engine, _, _, _ := testFixture()

	res, err := engine.ResolveEffective(context.Background(), "TP-1", "US-402")
	require.NoError(t, err)

	assert.Equal(t, datatypes.OverlayKindRun, res.OverlayKind)
	assert.Equal(t, []string{"CAND-US-402-001", "CAND-US-402-002"}, res.TestsPending)
	// Preview candidates never enter the execute set without a decision,
	// and decisions only live on persisted file overlays.
	assert.Equal(t, []string{"TEST-US-401-1", "TEST-US-402-1"}, res.TestsToExecute)
	assert.Empty(t, res.TestsSkipped)
	assert.Empty(t, res.TestsMissing)
	assert.Equal(t, datatypes.StatusReview, res.Status)
}

func TestResolveEffective_UnknownPlan(t *testing.T) {
	engine, _, _, _ := testFixture()
	_, err := engine.ResolveEffective(context.Background(), "TP-404", "promptA")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestResolveEffective_UnknownRun(t *testing.T) {
	engine, _, _, _ := testFixture()
	_, err := engine.ResolveEffective(context.Background(), "TP-1", "US-999")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
