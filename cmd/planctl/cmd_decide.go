// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	decidePlan      string
	decideOverlay   string
	decideCandidate string
	decideDecision  string
	decideRationale string
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Accept, reject, or reset an AI candidate test",
	Long: `Records a governance decision on one candidate in a file overlay.

Decisions:
  ACCEPTED  the candidate joins the effective execution list
  REJECTED  the candidate is excluded
  PENDING   resets the candidate to undecided (clears any rationale)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if decidePlan == "" || decideOverlay == "" || decideCandidate == "" || decideDecision == "" {
			return fmt.Errorf("--plan, --overlay, --candidate, and --decision are all required")
		}
		body := map[string]string{
			"plan_key":      decidePlan,
			"overlay":       decideOverlay,
			"candidate_key": decideCandidate,
			"decision":      strings.ToUpper(decideDecision),
			"rationale":     decideRationale,
		}
		var out map[string]any
		if err := postJSON("/v1/governance/decision", body, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var overlaysCmd = &cobra.Command{
	Use:   "overlays",
	Short: "List stored overlay names",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/overlays", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Show service configuration and dataset counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/diag", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	decideCmd.Flags().StringVar(&decidePlan, "plan", "", "Plan key")
	decideCmd.Flags().StringVar(&decideOverlay, "overlay", "", "Overlay name")
	decideCmd.Flags().StringVar(&decideCandidate, "candidate", "", "Candidate key (e.g. CAND-US-402-001)")
	decideCmd.Flags().StringVar(&decideDecision, "decision", "", "ACCEPTED, REJECTED, or PENDING")
	decideCmd.Flags().StringVar(&decideRationale, "rationale", "", "Optional reviewer rationale")
}
