// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the plan-agent service configuration. A YAML file
// supplies the base (optional); environment variables override individual
// fields, which is how container deployments configure the service.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string `yaml:"port" validate:"required,numeric"`

	// DataDir holds the mocked upstream datasets (test_plans.json,
	// tests_by_requirement.json, issues.json, changes_by_jira_key.json).
	DataDir string `yaml:"data_dir" validate:"required"`

	// OverlayDir holds the persisted overlay documents and run snapshots.
	OverlayDir string `yaml:"overlay_dir" validate:"required"`

	// StoreBackend selects overlay persistence: "file" or "badger".
	StoreBackend string `yaml:"store_backend" validate:"oneof=file badger"`

	// BadgerDir is the BadgerDB directory, used when StoreBackend is
	// "badger".
	BadgerDir string `yaml:"badger_dir"`

	// LLMBackend selects the generation backend: "mock" or "openai".
	LLMBackend string `yaml:"llm_backend" validate:"oneof=mock openai"`

	// OTELEndpoint is the OTLP collector address. Empty disables tracing.
	OTELEndpoint string `yaml:"otel_endpoint"`
}

// Default returns the demo-friendly configuration: file store, mock LLM,
// data under ./data.
func Default() Config {
	return Config{
		Port:         "12310",
		DataDir:      "data",
		OverlayDir:   "data",
		StoreBackend: "file",
		BadgerDir:    "data/badger",
		LLMBackend:   "mock",
	}
}

// envOverride replaces dst when the variable is set and non-empty.
func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// PLANAGENT_CONFIG (if any), then PLANAGENT_* environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("PLANAGENT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		slog.Info("loaded config file", "path", path)
	}

	envOverride(&cfg.Port, "PLANAGENT_PORT")
	envOverride(&cfg.DataDir, "PLANAGENT_DATA_DIR")
	envOverride(&cfg.OverlayDir, "PLANAGENT_OVERLAY_DIR")
	envOverride(&cfg.StoreBackend, "PLANAGENT_STORE_BACKEND")
	envOverride(&cfg.BadgerDir, "PLANAGENT_BADGER_DIR")
	envOverride(&cfg.LLMBackend, "LLM_BACKEND_TYPE")
	envOverride(&cfg.OTELEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
