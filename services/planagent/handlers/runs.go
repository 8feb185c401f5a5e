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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

// OverlayLister enumerates stored overlay names. Both overlay store
// backends implement it.
type OverlayLister interface {
	List(ctx context.Context) ([]string, error)
}

// ListOverlays returns the names of every stored overlay document.
func ListOverlays(overlays OverlayLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := overlays.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list overlays", "error", err)
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"overlays": names, "count": len(names)})
	}
}

// runSummary is the listing projection of a run snapshot; the markdown and
// suggestion bodies stay behind the per-run endpoint.
type runSummary struct {
	RunKey            string `json:"run_key"`
	GeneratedAt       string `json:"generated_at"`
	PromptFingerprint string `json:"prompt_fingerprint,omitempty"`
	SchemaHash        string `json:"schema_hash,omitempty"`
	Suggestions       int    `json:"suggestions"`
}

// ListRuns returns a summary of every stored run snapshot.
func ListRuns(runs overlay.RunSnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		keys, err := runs.List(ctx)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			respondErr(c, err)
			return
		}

		summaries := make([]runSummary, 0, len(keys))
		for _, key := range keys {
			run, err := runs.Get(ctx, key)
			if err != nil {
				slog.Warn("skipping unreadable run snapshot", "run", key, "error", err)
				continue
			}
			summaries = append(summaries, runSummary{
				RunKey:            run.RequirementKey,
				GeneratedAt:       run.GeneratedAt,
				PromptFingerprint: run.Provenance.PromptFingerprint,
				SchemaHash:        run.Provenance.SchemaHash,
				Suggestions:       len(run.Suggestions),
			})
		}
		c.JSON(http.StatusOK, gin.H{"runs": summaries, "count": len(summaries)})
	}
}

// GetRun returns one stored run snapshot in full, markdown included.
func GetRun(runs overlay.RunSnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		runKey := c.Param("runKey")
		run, err := runs.Get(c.Request.Context(), runKey)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}
