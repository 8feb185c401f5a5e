// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/testplan-agent/services/llm"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Setup
// =============================================================================

type testEnv struct {
	router  *gin.Engine
	engine  *overlay.Engine
	runs    *store.RunStore
	catalog *store.Catalog
}

func writeJSON(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0640))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dataDir := t.TempDir()
	writeJSON(t, dataDir, store.CatalogFile, `[
		{"key": "TP-1", "summary": "Release", "requirement_keys": ["US-401", "US-402"],
		 "baseline_test_keys": ["TEST-US-401-1", "TEST-US-402-1"]},
		{"key": "TP-2", "summary": "Maintenance", "requirement_keys": ["US-403"],
		 "baseline_test_keys": ["TEST-US-403-1"]}
	]`)
	writeJSON(t, dataDir, store.XrayFile, `{
		"US-401": [{"key": "TEST-US-401-1", "summary": "Login happy path"}],
		"US-402": [{"key": "TEST-US-402-1", "summary": "Checkout happy path"}]
	}`)
	writeJSON(t, dataDir, store.JiraFile, `[
		{"key": "US-402", "summary": "Checkout", "description": "As a shopper..."}
	]`)
	writeJSON(t, dataDir, store.BitbucketFile, `{
		"US-402": [{"file_path": "cart/checkout.go", "summary": "idempotency keys"}]
	}`)

	catalog, err := store.NewCatalog(dataDir)
	require.NoError(t, err)
	xray, err := store.NewXrayStore(dataDir)
	require.NoError(t, err)
	jira, err := store.NewJiraStore(dataDir)
	require.NoError(t, err)
	bitbucket, err := store.NewBitbucketStore(dataDir)
	require.NoError(t, err)

	overlayDir := t.TempDir()
	overlays, err := store.NewFileOverlayStore(overlayDir)
	require.NoError(t, err)
	runs, err := store.NewRunStore(overlayDir)
	require.NoError(t, err)
	prompts, err := store.NewPromptArchive(overlayDir)
	require.NoError(t, err)

	engine := overlay.NewEngine(catalog, xray, overlays, runs)

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.GET("/v1/diag", Diag(DiagInfo{LLMBackend: "mock", StoreBackend: "file"}, catalog, runs, overlays))
	router.GET("/v1/plans", ListPlans(engine))
	router.POST("/v1/plans/enrich", EnrichAllPlans(engine))
	router.GET("/v1/plans/:planKey", GetPlan(engine))
	router.POST("/v1/plans/:planKey/enrich", EnrichPlan(engine))
	router.GET("/v1/plans/:planKey/effective", EffectivePlan(engine))
	router.POST("/v1/governance/apply", ApplyRun(engine))
	router.POST("/v1/governance/decision", SetDecision(engine))
	router.GET("/v1/runs", ListRuns(runs))
	router.GET("/v1/runs/:runKey", GetRun(runs))
	router.GET("/v1/overlays", ListOverlays(overlays))
	sources := SourceDeps{Issues: jira, Tests: xray, Changes: bitbucket, Prompts: prompts}
	router.GET("/v1/sources/issues/:key", GetIssue(sources))
	router.GET("/v1/sources/tests/:key", GetTests(sources))
	router.GET("/v1/sources/changes/:key", GetChanges(sources))
	router.GET("/v1/prompts/:fingerprint", GetPrompt(sources))
	router.POST("/v1/agent/testplan", GenerateTestPlan(AgentDeps{
		Agent:    llm.NewAgent(llm.NewMockClient()),
		Issues:   jira,
		Tests:    xray,
		Changes:  bitbucket,
		Runs:     runs,
		Prompts:  prompts,
		Provider: "mock",
		Model:    "mock",
	}))

	return &testEnv{router: router, engine: engine, runs: runs, catalog: catalog}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	}
	return w, decoded
}

// =============================================================================
// Plans
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListPlans(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])
}

func TestGetPlan_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/v1/plans/TP-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "plan_not_found", body["kind"])
}

func TestEnrichPlan(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/v1/plans/TP-2/enrich", gin.H{"overlay": "promptA"})
	require.Equal(t, http.StatusOK, w.Code, "body: %v", body)
	gov := body["governance"].(map[string]any)
	assert.Equal(t, "REVIEW", gov["status"])

	// Enriched view is visible on subsequent reads of the same overlay.
	w, body = env.do(t, http.MethodGet, "/v1/plans/TP-2?overlay=promptA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gov = body["governance"].(map[string]any)
	assert.Equal(t, "REVIEW", gov["status"])
}

func TestEnrichPlan_MissingOverlayName(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/plans/TP-1/enrich", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", body["kind"])
}

func TestEnrichPlan_RunTargetRejected(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/plans/TP-1/enrich", gin.H{"overlay": "US-402"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_target", body["kind"])
}

func TestEnrichAllPlans(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/plans/enrich", gin.H{"overlay": "promptA"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["plans_enriched"])
}

// =============================================================================
// Generation, governance, effective resolution
// =============================================================================

func TestGenerateTestPlan(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-402"})
	require.Equal(t, http.StatusOK, w.Code, "body: %v", body)
	assert.Equal(t, "US-402", body["run_key"])
	assert.Contains(t, body["markdown"], "Test Plan (mock)")
	assert.Len(t, body["suggestions"], 2)
	assert.Equal(t, false, body["overwrote"])

	provenance := body["provenance"].(map[string]any)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, provenance["prompt_fingerprint"])
	assert.Equal(t, "suggestions.v1", provenance["schema_id"])

	// Snapshot landed in the run store.
	w, body = env.do(t, http.MethodGet, "/v1/runs/US-402", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["suggestions"], 2)

	// Regenerating replaces it.
	w, body = env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-402"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["overwrote"])
}

func TestGenerateTestPlan_UnknownRequirement(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-999"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])
}

func TestGovernanceFlow(t *testing.T) {
	env := newTestEnv(t)

	// Generate a run for US-402, apply it into promptA, accept the first
	// candidate, and check the effective plan picks it up.
	w, _ := env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-402"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, http.MethodPost, "/v1/governance/apply",
		gin.H{"plan_key": "TP-1", "run_key": "US-402", "overlay": "promptA"})
	require.Equal(t, http.StatusOK, w.Code, "body: %v", body)
	candidates := body["candidates"].([]any)
	require.Len(t, candidates, 2)
	first := candidates[0].(map[string]any)
	assert.Equal(t, "CAND-US-402-001", first["candidate_key"])
	assert.Equal(t, "PENDING", first["decision"])

	w, body = env.do(t, http.MethodPost, "/v1/governance/decision", gin.H{
		"overlay": "promptA", "plan_key": "TP-1",
		"candidate_key": "CAND-US-402-001", "decision": "ACCEPTED", "rationale": "fills a gap",
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %v", body)

	w, body = env.do(t, http.MethodGet, "/v1/plans/TP-1/effective?overlay=promptA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["tests_to_execute"], "CAND-US-402-001")
	assert.NotContains(t, body["tests_pending"], "CAND-US-402-001")
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["accepted_ai"])
	assert.EqualValues(t, 1, summary["pending_ai"])
}

func TestApplyRun_UnknownRun(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/governance/apply",
		gin.H{"plan_key": "TP-1", "run_key": "US-999", "overlay": "promptA"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "run_not_found", body["kind"])
}

func TestSetDecision_InvalidDecision(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/governance/decision", gin.H{
		"overlay": "promptA", "plan_key": "TP-1",
		"candidate_key": "CAND-US-402-001", "decision": "MAYBE",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_decision", body["kind"])
}

func TestSetDecision_UnknownOverlay(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/v1/governance/decision", gin.H{
		"overlay": "ghost", "plan_key": "TP-1",
		"candidate_key": "CAND-US-402-001", "decision": "ACCEPTED",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "overlay_not_found", body["kind"])
}

// =============================================================================
// Runs, overlays, diag
// =============================================================================

func TestListRunsAndOverlays(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["count"])

	w, _ = env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-402"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodPost, "/v1/plans/TP-1/enrich", gin.H{"overlay": "promptA"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summaries := body["runs"].([]any)
	require.Len(t, summaries, 1)
	first := summaries[0].(map[string]any)
	assert.Equal(t, "US-402", first["run_key"])
	assert.EqualValues(t, 2, first["suggestions"])
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, first["prompt_fingerprint"])

	w, body = env.do(t, http.MethodGet, "/v1/overlays", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"promptA"}, body["overlays"])
}

func TestGetRun_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/v1/runs/US-999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "run_not_found", body["kind"])
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/v1/sources/issues/US-402", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Checkout", body["summary"])

	w, body = env.do(t, http.MethodGet, "/v1/sources/issues/US-999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])

	// Unknown requirements yield empty lists, not errors.
	w, body = env.do(t, http.MethodGet, "/v1/sources/tests/US-999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["count"])

	w, body = env.do(t, http.MethodGet, "/v1/sources/changes/US-402", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestGetPrompt(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/v1/agent/testplan", gin.H{"requirement_key": "US-402"})
	require.Equal(t, http.StatusOK, w.Code)
	fingerprint := body["provenance"].(map[string]any)["prompt_fingerprint"].(string)

	w, body = env.do(t, http.MethodGet, "/v1/prompts/"+fingerprint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["prompt"], "Requirement US-402")

	w, body = env.do(t, http.MethodGet, "/v1/prompts/sha256:"+strings.Repeat("0", 64), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])
}

func TestDiag(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/v1/diag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mock", body["llm_backend"])
	assert.Equal(t, "file", body["store_backend"])
	assert.EqualValues(t, 2, body["plans"])
}
