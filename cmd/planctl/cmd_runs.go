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
	runsPlan     string // Target plan key for apply
	runsRun      string // Run key for apply
	runsOverlay  string // Target overlay name for apply
	runsMarkdown bool   // Print only the markdown section of a run
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Generate, inspect, and apply AI run snapshots",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored run snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/runs", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-key>",
	Short: "Show one run snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := getJSON("/v1/runs/"+url.PathEscape(args[0]), &out); err != nil {
			return err
		}
		if runsMarkdown {
			md, _ := out["markdown"].(string)
			fmt.Println(md)
			return nil
		}
		return printJSON(out)
	},
}

var runsGenerateCmd = &cobra.Command{
	Use:   "generate <requirement-key>",
	Short: "Generate a test-plan run snapshot for a requirement",
	Long: `Stitches the mocked Jira, Xray, and Bitbucket data for the requirement
into a prompt, calls the configured LLM backend, and persists the resulting
run snapshot. Regenerating replaces the previous snapshot for the key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := postJSON("/v1/agent/testplan", map[string]string{"requirement_key": args[0]}, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var runsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Copy a run's suggestions into a file overlay as pending candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsPlan == "" || runsRun == "" || runsOverlay == "" {
			return fmt.Errorf("--plan, --run, and --overlay are all required")
		}
		body := map[string]string{
			"plan_key": runsPlan,
			"run_key":  runsRun,
			"overlay":  runsOverlay,
		}
		var out map[string]any
		if err := postJSON("/v1/governance/apply", body, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	runsGetCmd.Flags().BoolVar(&runsMarkdown, "markdown", false,
		"Print only the human-readable markdown plan")
	runsApplyCmd.Flags().StringVar(&runsPlan, "plan", "", "Target plan key")
	runsApplyCmd.Flags().StringVar(&runsRun, "run", "", "Run key to apply")
	runsApplyCmd.Flags().StringVar(&runsOverlay, "overlay", "", "Target overlay name")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)
	runsCmd.AddCommand(runsGenerateCmd)
	runsCmd.AddCommand(runsApplyCmd)
}
