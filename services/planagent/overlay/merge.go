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
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// EffectivePlanView is a baseline plan with an overlay merged on top.
// It is a derived view; neither input is ever mutated to build it.
type EffectivePlanView struct {
	datatypes.TestPlan
	Kind       datatypes.OverlayKind     `json:"kind,omitempty"`
	Governance datatypes.GovernanceBlock `json:"governance"`
	Overlay    datatypes.OverlayBlock    `json:"overlay"`
}

// BaseView wraps a plan with no overlay applied (status NOT_ANALYZED).
func BaseView(plan datatypes.TestPlan) EffectivePlanView {
	return EffectivePlanView{
		TestPlan:   plan.Clone(),
		Governance: datatypes.GovernanceBlock{Status: datatypes.StatusNotAnalyzed},
	}
}

// Merge layers an overlay record onto a baseline plan.
//
// The overlay wins for governance and overlay fields. The structural fields
// (summary, requirement keys, baseline test keys) are overridden only when
// the record explicitly carries them. Everything is deep-copied, so merging
// the same record twice yields the same result and neither argument changes.
func Merge(plan datatypes.TestPlan, record datatypes.OverlayRecord) EffectivePlanView {
	view := EffectivePlanView{
		TestPlan:   plan.Clone(),
		Kind:       record.Kind,
		Governance: record.Governance.Clone(),
		Overlay:    record.Overlay.Clone(),
	}
	if record.Summary != nil {
		view.TestPlan.Summary = *record.Summary
	}
	if record.RequirementKeys != nil {
		view.TestPlan.RequirementKeys = append([]string(nil), record.RequirementKeys...)
	}
	if record.BaselineTestKeys != nil {
		view.TestPlan.BaselineTestKeys = append([]string(nil), record.BaselineTestKeys...)
	}
	return view
}
