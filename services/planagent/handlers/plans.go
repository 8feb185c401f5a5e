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

	"github.com/AleutianAI/testplan-agent/services/planagent/observability"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

// ListPlans returns every baseline plan, merged with the overlay named in
// the "overlay" query parameter when present.
func ListPlans(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		overlayName := c.Query("overlay")
		views, err := engine.ListPlanViews(c.Request.Context(), overlayName)
		if err != nil {
			slog.Error("failed to list plan views", "overlay", overlayName, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plans": views, "overlay": overlayName, "count": len(views)})
	}
}

// GetPlan returns a single plan view. The "overlay" query parameter may name
// a stored overlay or a run key for a transient preview.
func GetPlan(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		planKey := c.Param("planKey")
		overlayName := c.Query("overlay")
		view, err := engine.PlanView(c.Request.Context(), planKey, overlayName)
		if err != nil {
			slog.Error("failed to resolve plan view", "plan", planKey, "overlay", overlayName, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

type enrichRequest struct {
	Overlay string `json:"overlay" binding:"required"`
}

// EnrichPlan runs rules-based enrichment for one plan into a named overlay.
func EnrichPlan(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		planKey := c.Param("planKey")
		var req enrichRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "overlay name is required", "kind": "invalid_request"})
			return
		}

		view, err := engine.Enrich(c.Request.Context(), planKey, req.Overlay)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordEnrichment(err == nil)
		}
		if err != nil {
			slog.Error("enrichment failed", "plan", planKey, "overlay", req.Overlay, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// EnrichAllPlans runs rules-based enrichment for every baseline plan.
func EnrichAllPlans(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enrichRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "overlay name is required", "kind": "invalid_request"})
			return
		}

		n, err := engine.EnrichAll(c.Request.Context(), req.Overlay)
		if err != nil {
			slog.Error("bulk enrichment failed", "overlay", req.Overlay, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "overlay": req.Overlay, "plans_enriched": n})
	}
}

// EffectivePlan resolves the final execution view of a plan under an
// overlay.
func EffectivePlan(engine *overlay.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		planKey := c.Param("planKey")
		overlayName := c.Query("overlay")
		result, err := engine.ResolveEffective(c.Request.Context(), planKey, overlayName)
		if err != nil {
			slog.Error("effective resolution failed", "plan", planKey, "overlay", overlayName, "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
