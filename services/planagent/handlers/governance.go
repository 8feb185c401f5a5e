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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
	"github.com/AleutianAI/testplan-agent/services/planagent/observability"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

type applyRunRequest struct {
	PlanKey string `json:"plan_key" binding:"required"`
	RunKey  string `json:"run_key" binding:"required"`
	Overlay string `json:"overlay" binding:"required"`
}

// ApplyRun copies a run snapshot's suggestions into a file overlay as
// governable pending candidates.
func ApplyRun(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applyRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_request"})
			return
		}

		rec, err := engine.ApplyRun(c.Request.Context(), req.PlanKey, req.RunKey, req.Overlay)
		if err == nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordRunApplied()
			}
		}
		if err != nil {
			slog.Error("apply run failed", "plan", req.PlanKey, "run", req.RunKey,
				"overlay", req.Overlay, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "success",
			"plan_key":   rec.PlanKey,
			"candidates": rec.Overlay.AICandidates,
			"governance": rec.Governance,
		})
	}
}

type decisionRequest struct {
	Overlay      string `json:"overlay" binding:"required"`
	PlanKey      string `json:"plan_key" binding:"required"`
	CandidateKey string `json:"candidate_key" binding:"required"`
	Decision     string `json:"decision" binding:"required"`
	Rationale    string `json:"rationale"`
}

// SetDecision records an accept/reject/reset decision on one candidate.
func SetDecision(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_request"})
			return
		}

		rec, err := engine.SetDecision(c.Request.Context(), req.Overlay, req.PlanKey,
			req.CandidateKey, datatypes.Decision(req.Decision), req.Rationale)
		if err == nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordDecision(req.Decision)
			}
		}
		if err != nil {
			slog.Error("decision failed", "plan", req.PlanKey, "candidate", req.CandidateKey,
				"decision", req.Decision, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "success",
			"plan_key":   rec.PlanKey,
			"candidates": rec.Overlay.AICandidates,
			"governance": rec.Governance,
		})
	}
}
