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
	"log"
	"os"

	"github.com/spf13/cobra"
)

// serverURL is the plan-agent base URL, shared by every subcommand.
var serverURL string

var rootCmd = &cobra.Command{
	Use:   "planctl",
	Short: "CLI for the test-plan agent service",
	Long: `planctl drives the test-plan agent over its HTTP API.

Typical flow:
  planctl plans list
  planctl plans enrich TP-001 --overlay promptA
  planctl runs generate US-402
  planctl runs apply --plan TP-001 --run US-402 --overlay promptA
  planctl decide --plan TP-001 --overlay promptA --candidate CAND-US-402-001 --decision ACCEPTED
  planctl plans effective TP-001 --overlay promptA`,
}

func init() {
	defaultServer := os.Getenv("PLANAGENT_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:12310"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer,
		"Base URL of the plan-agent service")

	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(overlaysCmd)
	rootCmd.AddCommand(diagCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
