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
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/testplan-agent/pkg/validation"
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// enrichParallelism bounds concurrent per-plan computation in EnrichAll.
const enrichParallelism = 4

// Engine wires the overlay core to its collaborators. All dependencies are
// injected; there is no process-wide state.
type Engine struct {
	catalog  BaselineCatalog
	tests    TestRepository
	overlays OverlayStore
	runs     RunSnapshotStore
}

// NewEngine builds an engine over the given collaborators.
func NewEngine(catalog BaselineCatalog, tests TestRepository, overlays OverlayStore, runs RunSnapshotStore) *Engine {
	return &Engine{catalog: catalog, tests: tests, overlays: overlays, runs: runs}
}

// requireFileOverlayName rejects malformed names and run-shaped names before
// any store access.
func requireFileOverlayName(name string) error {
	if validation.IsRunKey(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, name)
	}
	if err := validation.ValidateOverlayName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOverlayName, err)
	}
	return nil
}

// testsForPlan fetches existing tests for every requirement of a plan.
func (e *Engine) testsForPlan(ctx context.Context, plan datatypes.TestPlan) (map[string][]datatypes.ExistingTest, error) {
	out := make(map[string][]datatypes.ExistingTest, len(plan.RequirementKeys))
	for _, req := range plan.RequirementKeys {
		tests, err := e.tests.GetTests(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tests for %s: %w", req, err)
		}
		out[req] = tests
	}
	return out, nil
}

// upsert replaces the record for rec.PlanKey inside records, appending when
// no record exists yet.
func upsert(records []datatypes.OverlayRecord, rec datatypes.OverlayRecord) []datatypes.OverlayRecord {
	for i := range records {
		if strings.TrimSpace(records[i].PlanKey) == rec.PlanKey {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

// findRecord returns the record for planKey, if any.
func findRecord(records []datatypes.OverlayRecord, planKey string) (datatypes.OverlayRecord, bool) {
	for _, r := range records {
		if strings.TrimSpace(r.PlanKey) == planKey {
			return r, true
		}
	}
	return datatypes.OverlayRecord{}, false
}

// Enrich computes the rules-based overlay for a plan and upserts it into the
// named store. Returns the merged view.
func (e *Engine) Enrich(ctx context.Context, planKey, overlayName string) (EffectivePlanView, error) {
	if err := requireFileOverlayName(overlayName); err != nil {
		return EffectivePlanView{}, err
	}
	plan, err := e.catalog.GetPlan(ctx, planKey)
	if err != nil {
		return EffectivePlanView{}, err
	}
	tests, err := e.testsForPlan(ctx, plan)
	if err != nil {
		return EffectivePlanView{}, err
	}

	rec := ComputeFileOverlay(plan, tests)
	if err := e.persist(ctx, overlayName, rec); err != nil {
		return EffectivePlanView{}, err
	}
	slog.Info("plan enriched", "plan", planKey, "overlay", overlayName,
		"status", rec.Governance.Status)
	return Merge(plan, rec), nil
}

// EnrichAll rules-enriches every baseline plan into the named store.
// Computation runs in parallel; the store sees a single put.
func (e *Engine) EnrichAll(ctx context.Context, overlayName string) (int, error) {
	if err := requireFileOverlayName(overlayName); err != nil {
		return 0, err
	}
	plans, err := e.catalog.ListPlans(ctx)
	if err != nil {
		return 0, err
	}

	computed := make([]datatypes.OverlayRecord, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)
	for i, plan := range plans {
		g.Go(func() error {
			tests, err := e.testsForPlan(gctx, plan)
			if err != nil {
				return err
			}
			computed[i] = ComputeFileOverlay(plan, tests)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	records, err := e.overlays.Get(ctx, overlayName)
	if err != nil {
		return 0, err
	}
	for _, rec := range computed {
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("computed record for %s: %w", rec.PlanKey, err)
		}
		records = upsert(records, rec)
	}
	if err := e.overlays.Put(ctx, overlayName, records); err != nil {
		return 0, err
	}
	slog.Info("bulk enrichment complete", "overlay", overlayName, "plans", len(computed))
	return len(computed), nil
}

// persist loads the store document, upserts rec, and writes it back.
func (e *Engine) persist(ctx context.Context, overlayName string, rec datatypes.OverlayRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist malformed record for %s: %w", rec.PlanKey, err)
	}
	records, err := e.overlays.Get(ctx, overlayName)
	if err != nil {
		return err
	}
	return e.overlays.Put(ctx, overlayName, upsert(records, rec))
}

// mergeSignals appends extra signals, deduplicated and order-preserving.
// Signals sharing a prefix in replacePrefixes are dropped from the existing
// set first, so recomputed aggregates replace stale ones.
func mergeSignals(existing, extra []string, replacePrefixes ...string) []string {
	kept := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		replaced := false
		for _, p := range replacePrefixes {
			if strings.HasPrefix(s, p) {
				replaced = true
				break
			}
		}
		if !replaced {
			kept = append(kept, s)
		}
	}
	return dedupStrings(append(kept, extra...))
}

// ApplyRun projects a run snapshot into governable candidates inside a file
// overlay and persists the result.
//
// Re-applying the same run is idempotent: candidates from this run are
// replaced wholesale, candidates from other runs are preserved untouched.
func (e *Engine) ApplyRun(ctx context.Context, planKey, runKey, targetOverlay string) (datatypes.OverlayRecord, error) {
	if err := requireFileOverlayName(targetOverlay); err != nil {
		return datatypes.OverlayRecord{}, err
	}
	if err := validation.ValidateRunKey(runKey); err != nil {
		return datatypes.OverlayRecord{}, fmt.Errorf("%w: %v", ErrInvalidOverlayName, err)
	}
	plan, err := e.catalog.GetPlan(ctx, planKey)
	if err != nil {
		return datatypes.OverlayRecord{}, err
	}
	run, err := e.runs.Get(ctx, runKey)
	if err != nil {
		return datatypes.OverlayRecord{}, err
	}

	preview := ComputeRunOverlay(plan, run)
	incoming := make([]datatypes.CandidateTest, 0, len(preview.Overlay.CandidateTests))
	for _, c := range preview.Overlay.CandidateTests {
		incoming = append(incoming, datatypes.CandidateTest{
			CandidateKey:          c.CandidateKey,
			Title:                 c.Title,
			Priority:              c.Priority,
			Type:                  c.Type,
			MappedExistingTestKey: c.MappedExistingTestKey,
			Decision:              datatypes.DecisionPending,
			SourceRun:             run.RequirementKey,
			PromptFingerprint:     run.Provenance.PromptFingerprint,
			GeneratedAt:           run.GeneratedAt,
		})
	}

	records, err := e.overlays.Get(ctx, targetOverlay)
	if err != nil {
		return datatypes.OverlayRecord{}, err
	}
	rec, ok := findRecord(records, plan.Key)
	if !ok {
		rec = datatypes.OverlayRecord{PlanKey: plan.Key, Kind: datatypes.OverlayKindFile}
	}
	rec = rec.Clone()
	rec.Kind = datatypes.OverlayKindFile

	// Replacement rule: drop every candidate that came from this run, by key
	// prefix or recorded source, then append the fresh projection.
	prefix := candidatePrefix(run.RequirementKey)
	kept := rec.Overlay.AICandidates[:0:0]
	for _, c := range rec.Overlay.AICandidates {
		if strings.HasPrefix(c.CandidateKey, prefix) || c.SourceRun == run.RequirementKey {
			continue
		}
		kept = append(kept, c)
	}
	rec.Overlay.AICandidates = append(kept, incoming...)

	rec.Governance.Signals = mergeSignals(rec.Governance.Signals,
		[]string{
			"applied_run:" + run.RequirementKey,
			fmt.Sprintf("ai_candidates:%d", len(rec.Overlay.AICandidates)),
		},
		"ai_candidates:")
	rec.Governance.Status = datatypes.StatusAuto
	if reviewNeeded(rec.Overlay) {
		rec.Governance.Status = datatypes.StatusReview
	}
	rec.Governance.Source = "run"
	rec.Governance.RunRequirementKey = run.RequirementKey
	rec.Governance.PromptFingerprint = run.Provenance.PromptFingerprint
	rec.Governance.GeneratedAt = run.GeneratedAt

	if err := rec.Validate(); err != nil {
		return datatypes.OverlayRecord{}, fmt.Errorf("refusing to persist malformed record for %s: %w", rec.PlanKey, err)
	}
	if err := e.overlays.Put(ctx, targetOverlay, upsert(records, rec)); err != nil {
		return datatypes.OverlayRecord{}, err
	}
	slog.Info("run applied", "plan", planKey, "run", runKey, "overlay", targetOverlay,
		"candidates", len(incoming))
	return rec, nil
}

// SetDecision records an accept/reject/reset decision on a candidate and
// persists the updated record.
//
// Valid transitions: PENDING -> ACCEPTED, PENDING -> REJECTED, and either
// terminal state back to PENDING (which also clears the rationale when an
// empty rationale is supplied).
func (e *Engine) SetDecision(ctx context.Context, overlayName, planKey, candidateKey string, decision datatypes.Decision, rationale string) (datatypes.OverlayRecord, error) {
	if err := requireFileOverlayName(overlayName); err != nil {
		return datatypes.OverlayRecord{}, err
	}
	if !decision.Valid() {
		return datatypes.OverlayRecord{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	records, err := e.overlays.Get(ctx, overlayName)
	if err != nil {
		return datatypes.OverlayRecord{}, err
	}
	rec, ok := findRecord(records, planKey)
	if !ok {
		return datatypes.OverlayRecord{}, fmt.Errorf("%w: plan %s in overlay %s", ErrOverlayNotFound, planKey, overlayName)
	}
	rec = rec.Clone()

	found := false
	var accepted, rejected, pending int
	for i := range rec.Overlay.AICandidates {
		c := &rec.Overlay.AICandidates[i]
		if c.CandidateKey == candidateKey {
			c.Decision = decision
			c.Rationale = rationale
			found = true
		}
		switch c.Decision {
		case datatypes.DecisionAccepted:
			accepted++
		case datatypes.DecisionRejected:
			rejected++
		default:
			pending++
		}
	}
	if !found {
		return datatypes.OverlayRecord{}, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateKey)
	}

	rec.Governance.Signals = mergeSignals(rec.Governance.Signals,
		[]string{fmt.Sprintf("decisions:accepted=%d,rejected=%d,pending=%d", accepted, rejected, pending)},
		"decisions:")
	rec.Governance.Status = datatypes.StatusAuto
	if reviewNeeded(rec.Overlay) {
		rec.Governance.Status = datatypes.StatusReview
	}

	if err := rec.Validate(); err != nil {
		return datatypes.OverlayRecord{}, fmt.Errorf("refusing to persist malformed record for %s: %w", rec.PlanKey, err)
	}
	if err := e.overlays.Put(ctx, overlayName, upsert(records, rec)); err != nil {
		return datatypes.OverlayRecord{}, err
	}
	slog.Info("decision recorded", "plan", planKey, "candidate", candidateKey,
		"decision", decision, "overlay", overlayName)
	return rec, nil
}

// PlanView returns the plan merged with the named overlay. An empty overlay
// name, or a file overlay with no record for the plan, yields the bare
// baseline view (NOT_ANALYZED).
func (e *Engine) PlanView(ctx context.Context, planKey, overlayName string) (EffectivePlanView, error) {
	plan, err := e.catalog.GetPlan(ctx, planKey)
	if err != nil {
		return EffectivePlanView{}, err
	}
	if overlayName == "" {
		return BaseView(plan), nil
	}

	if validation.IsRunKey(overlayName) {
		run, err := e.runs.Get(ctx, overlayName)
		if err != nil {
			return EffectivePlanView{}, err
		}
		return Merge(plan, ComputeRunOverlay(plan, run)), nil
	}

	if err := validation.ValidateOverlayName(overlayName); err != nil {
		return EffectivePlanView{}, fmt.Errorf("%w: %v", ErrInvalidOverlayName, err)
	}
	records, err := e.overlays.Get(ctx, overlayName)
	if err != nil {
		return EffectivePlanView{}, err
	}
	rec, ok := findRecord(records, plan.Key)
	if !ok {
		return BaseView(plan), nil
	}
	return Merge(plan, rec), nil
}

// ListPlanViews returns every baseline plan, each merged with the named
// overlay when a record exists. An empty overlay name lists bare baselines.
func (e *Engine) ListPlanViews(ctx context.Context, overlayName string) ([]EffectivePlanView, error) {
	plans, err := e.catalog.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	var records []datatypes.OverlayRecord
	if overlayName != "" {
		if err := requireFileOverlayName(overlayName); err != nil {
			return nil, err
		}
		records, err = e.overlays.Get(ctx, overlayName)
		if err != nil {
			return nil, err
		}
	}

	views := make([]EffectivePlanView, 0, len(plans))
	for _, plan := range plans {
		if rec, ok := findRecord(records, plan.Key); ok {
			views = append(views, Merge(plan, rec))
		} else {
			views = append(views, BaseView(plan))
		}
	}
	return views, nil
}
