// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/testplan-agent/services/planagent/handlers"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

// Deps bundles the collaborators the route table wires into handlers.
type Deps struct {
	Engine   *overlay.Engine
	Catalog  *store.Catalog
	Runs     overlay.RunSnapshotStore
	Overlays handlers.OverlayLister
	Agent    handlers.AgentDeps
	Sources  handlers.SourceDeps
	Diag     handlers.DiagInfo
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/diag", handlers.Diag(deps.Diag, deps.Catalog, deps.Runs, deps.Overlays))

		plans := v1.Group("/plans")
		{
			plans.GET("", handlers.ListPlans(deps.Engine))
			plans.POST("/enrich", handlers.EnrichAllPlans(deps.Engine))
			plans.GET("/:planKey", handlers.GetPlan(deps.Engine))
			plans.POST("/:planKey/enrich", handlers.EnrichPlan(deps.Engine))
			plans.GET("/:planKey/effective", handlers.EffectivePlan(deps.Engine))
		}

		governance := v1.Group("/governance")
		{
			governance.POST("/apply", handlers.ApplyRun(deps.Engine))
			governance.POST("/decision", handlers.SetDecision(deps.Engine))
		}

		v1.POST("/agent/testplan", handlers.GenerateTestPlan(deps.Agent))

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRuns(deps.Runs))
			runs.GET("/:runKey", handlers.GetRun(deps.Runs))
		}

		v1.GET("/overlays", handlers.ListOverlays(deps.Overlays))

		// Read-only views over the mocked upstream datasets, for the demo
		// viewer and for reviewers tracing a run back to its inputs.
		sources := v1.Group("/sources")
		{
			sources.GET("/issues/:key", handlers.GetIssue(deps.Sources))
			sources.GET("/tests/:key", handlers.GetTests(deps.Sources))
			sources.GET("/changes/:key", handlers.GetChanges(deps.Sources))
		}
		v1.GET("/prompts/:fingerprint", handlers.GetPrompt(deps.Sources))
	}
}
