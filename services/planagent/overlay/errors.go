// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package overlay implements the overlay resolution and merge engine: the
// logic that layers rules-based enrichment, AI-candidate governance, and run
// snapshots onto baseline test plans without ever mutating the baseline.
//
// The engine is the only writer of overlay documents. Baseline plans and run
// snapshots are read-only collaborators behind the interfaces in this
// package. All compute/merge functions are pure; persistence happens only in
// the Engine methods that say so.
package overlay

import (
	"errors"
)

// Sentinel errors for overlay operations. Each maps to a stable kind tag for
// the web layer via Kind.
var (
	// ErrPlanNotFound is returned for an unknown plan key.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrRunNotFound is returned when no run snapshot exists for a run key.
	ErrRunNotFound = errors.New("run snapshot not found")

	// ErrOverlayNotFound is returned when a decision targets a store with no
	// record for the plan.
	ErrOverlayNotFound = errors.New("overlay record not found")

	// ErrCandidateNotFound is returned when a decision targets an unknown
	// candidate key.
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrInvalidOverlayName is returned for a malformed overlay name or run
	// key. Rejected before any store access.
	ErrInvalidOverlayName = errors.New("invalid overlay name")

	// ErrInvalidTarget is returned when a write targets a run-overlay name.
	// Run overlays are read-only and never receive writes.
	ErrInvalidTarget = errors.New("invalid write target: run overlays are read-only")

	// ErrInvalidDecision is returned for a decision value outside
	// PENDING/ACCEPTED/REJECTED.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrStoreUnavailable is returned when the overlay persistence layer
	// failed to read or write. Callers may retry; get/put are idempotent.
	ErrStoreUnavailable = errors.New("overlay store unavailable")
)

// Kind returns the stable kind tag for an error, suitable for API envelopes.
// Unknown errors map to "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, ErrRunNotFound):
		return "run_not_found"
	case errors.Is(err, ErrOverlayNotFound):
		return "overlay_not_found"
	case errors.Is(err, ErrCandidateNotFound):
		return "candidate_not_found"
	case errors.Is(err, ErrInvalidOverlayName):
		return "invalid_overlay_name"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// NotFound reports whether err is one of the not-found conditions.
func NotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrOverlayNotFound) ||
		errors.Is(err, ErrCandidateNotFound)
}

// BadRequest reports whether err is one of the rejected-before-IO conditions.
func BadRequest(err error) bool {
	return errors.Is(err, ErrInvalidOverlayName) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrInvalidDecision)
}
