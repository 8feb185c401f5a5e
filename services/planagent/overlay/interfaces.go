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

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// BaselineCatalog provides read-only access to baseline test plans.
type BaselineCatalog interface {
	// GetPlan returns the plan for key, or ErrPlanNotFound.
	GetPlan(ctx context.Context, key string) (datatypes.TestPlan, error)
	// ListPlans returns all baseline plans in catalog order.
	ListPlans(ctx context.Context) ([]datatypes.TestPlan, error)
}

// TestRepository provides existing tests keyed by requirement id.
type TestRepository interface {
	// GetTests returns the tests linked to a requirement. An unknown
	// requirement is not an error; it yields an empty slice.
	GetTests(ctx context.Context, requirementKey string) ([]datatypes.ExistingTest, error)
}

// OverlayStore is a named key-value store of overlay documents. A missing
// store name is not an error; Get returns an empty slice.
//
// The engine performs load-modify-store sequences against one name at a time;
// implementations must make a failed Put leave the previous document intact.
type OverlayStore interface {
	Get(ctx context.Context, name string) ([]datatypes.OverlayRecord, error)
	Put(ctx context.Context, name string, records []datatypes.OverlayRecord) error
}

// RunSnapshotStore provides read-only access to run snapshots.
type RunSnapshotStore interface {
	// Get returns the snapshot for a run key, or ErrRunNotFound.
	Get(ctx context.Context, runKey string) (datatypes.RunSnapshot, error)
	// List returns the known run keys, sorted.
	List(ctx context.Context) ([]string, error)
}
