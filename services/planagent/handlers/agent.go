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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/testplan-agent/services/llm"
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

// IssueSource resolves requirement issues (the Jira mock).
type IssueSource interface {
	GetIssue(ctx context.Context, key string) (datatypes.JiraIssue, error)
}

// TestSource resolves existing tests per requirement (the Xray mock).
type TestSource interface {
	GetTests(ctx context.Context, requirementKey string) ([]datatypes.ExistingTest, error)
}

// ChangeSource resolves recent code changes per requirement (the Bitbucket
// mock).
type ChangeSource interface {
	GetChanges(ctx context.Context, jiraKey string) ([]datatypes.CodeChange, error)
}

// RunSaver persists generated run snapshots.
type RunSaver interface {
	Save(ctx context.Context, run datatypes.RunSnapshot) (overwrote bool, err error)
}

// PromptArchiver archives prompts under their fingerprint.
type PromptArchiver interface {
	Store(fingerprint, content string) error
}

// AgentDeps bundles everything the generation endpoint needs.
type AgentDeps struct {
	Agent    *llm.Agent
	Issues   IssueSource
	Tests    TestSource
	Changes  ChangeSource
	Runs     RunSaver
	Prompts  PromptArchiver
	Provider string
	Model    string
}

// suggestionSchemaID identifies the suggestion shape backends are asked to
// produce. Bump it when the instructed fields change.
const suggestionSchemaID = "suggestions.v1"

var suggestionSchemaFields = []string{
	"title", "priority", "type", "given", "when", "then", "mapped_existing_test_key",
}

type generateRequest struct {
	RequirementKey string `json:"requirement_key" binding:"required"`
}

// GenerateTestPlan runs the full generation flow for one requirement:
// stitch the three mocked sources into a prompt, call the backend, persist
// the resulting run snapshot, and archive the prompt under its fingerprint.
func GenerateTestPlan(deps AgentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_request"})
			return
		}
		ctx := c.Request.Context()

		issue, err := deps.Issues.GetIssue(ctx, req.RequirementKey)
		if err != nil {
			slog.Warn("unknown requirement for generation", "requirement", req.RequirementKey)
			respondErr(c, err)
			return
		}
		tests, err := deps.Tests.GetTests(ctx, req.RequirementKey)
		if err != nil {
			respondErr(c, err)
			return
		}
		changes, err := deps.Changes.GetChanges(ctx, req.RequirementKey)
		if err != nil {
			respondErr(c, err)
			return
		}

		result, err := deps.Agent.GenerateTestPlan(ctx, issue, tests, changes)
		if err != nil {
			slog.Error("generation failed", "requirement", req.RequirementKey, "error", err)
			respondErr(c, err)
			return
		}

		fingerprint := store.Fingerprint(llm.SystemPrompt, result.UserPrompt)
		if err := deps.Prompts.Store(fingerprint, llm.SystemPrompt+"\n\n"+result.UserPrompt); err != nil {
			slog.Warn("prompt archiving failed, continuing", "fingerprint", fingerprint, "error", err)
		}

		run := datatypes.RunSnapshot{
			RequirementKey: issue.Key,
			GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
			Markdown:       result.Markdown,
			Suggestions:    result.Suggestions,
			Provenance: datatypes.RunProvenance{
				PromptFingerprint: fingerprint,
				SchemaID:          suggestionSchemaID,
				SchemaHash:        store.SchemaHash(suggestionSchemaID, suggestionSchemaFields),
				Provider:          deps.Provider,
				Model:             deps.Model,
			},
		}
		overwrote, err := deps.Runs.Save(ctx, run)
		if err != nil {
			slog.Error("run snapshot persistence failed", "requirement", issue.Key, "error", err)
			respondErr(c, err)
			return
		}

		slog.Info("run snapshot generated", "requirement", issue.Key,
			"suggestions", len(run.Suggestions), "overwrote", overwrote)
		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"run_key":     run.RequirementKey,
			"markdown":    run.Markdown,
			"suggestions": run.Suggestions,
			"provenance":  run.Provenance,
			"overwrote":   overwrote,
		})
	}
}
