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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DiagInfo describes the running configuration for the diagnostics
// endpoint.
type DiagInfo struct {
	LLMBackend   string
	LLMModel     string
	StoreBackend string
	DataDir      string
}

// Diag reports configuration and dataset counts, for demo operators
// checking what the service actually loaded.
func Diag(info DiagInfo, catalog *store.Catalog, runs overlay.RunSnapshotStore, overlays OverlayLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		runKeys, err := runs.List(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}
		overlayNames, err := overlays.List(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"llm_backend":   info.LLMBackend,
			"llm_model":     info.LLMModel,
			"store_backend": info.StoreBackend,
			"data_dir":      info.DataDir,
			"plans":         catalog.Len(),
			"runs":          runKeys,
			"overlays":      overlayNames,
		})
	}
}
