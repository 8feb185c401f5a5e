// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the plan-agent service.
// Handlers are closure factories over their dependencies; the route table in
// the routes package is the single place they are wired.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/testplan-agent/services/llm"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

// kindOf extends the engine's error tags with the web layer's own
// conditions.
func kindOf(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return "llm_unavailable"
	case errors.Is(err, llm.ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	}
	return overlay.Kind(err)
}

// respondErr maps engine and store errors onto HTTP statuses. The "kind"
// field is the stable machine-readable tag; clients must not parse the
// message text.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case overlay.BadRequest(err):
		status = http.StatusBadRequest
	case overlay.NotFound(err), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, overlay.ErrStoreUnavailable), errors.Is(err, llm.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrMalformedOutput):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kindOf(err)})
}
