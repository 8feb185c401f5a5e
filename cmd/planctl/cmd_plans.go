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
	"net/url"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	plansOverlay string // Overlay name (or run key, where previews are allowed)
	plansAll     bool   // Enrich every plan instead of one
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect and enrich baseline test plans",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every plan, optionally merged with an overlay",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/plans?"+overlayQuery(), &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var plansGetCmd = &cobra.Command{
	Use:   "get <plan-key>",
	Short: "Show one plan, optionally merged with an overlay or a run preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/plans/"+url.PathEscape(args[0])+"?"+overlayQuery(), &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var plansEnrichCmd = &cobra.Command{
	Use:   "enrich [plan-key]",
	Short: "Run rules-based enrichment into a named overlay",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if plansOverlay == "" {
			return fmt.Errorf("--overlay is required")
		}
		body := map[string]string{"overlay": plansOverlay}
		var out map[string]any
		if plansAll || len(args) == 0 {
			if err := postJSON("/v1/plans/enrich", body, &out); err != nil {
				return err
			}
		} else {
			if err := postJSON("/v1/plans/"+url.PathEscape(args[0])+"/enrich", body, &out); err != nil {
				return err
			}
		}
		return printJSON(out)
	},
}

var plansEffectiveCmd = &cobra.Command{
	Use:   "effective <plan-key>",
	Short: "Resolve the final execution view of a plan under an overlay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/plans/"+url.PathEscape(args[0])+"/effective?"+overlayQuery(), &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	plansCmd.PersistentFlags().StringVar(&plansOverlay, "overlay", "",
		"Overlay name (file overlay, or run key for read-only previews)")
	plansEnrichCmd.Flags().BoolVar(&plansAll, "all", false,
		"Enrich every baseline plan")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansGetCmd)
	plansCmd.AddCommand(plansEnrichCmd)
	plansCmd.AddCommand(plansEffectiveCmd)
}

func overlayQuery() string {
	v := url.Values{}
	if plansOverlay != "" {
		v.Set("overlay", plansOverlay)
	}
	return v.Encode()
}
