// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the file-backed data sources of the plan-agent
// service: the baseline plan catalog, the mocked upstream repositories
// (test management, issue tracker, code repository), the overlay document
// stores, the run snapshot store, and the prompt registry.
//
// The mock datasets are plain JSON files under a single data directory,
// editable by hand during a demo. Loaders normalize loosely typed entries
// instead of failing the whole file.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

// CatalogFile is the baseline plan dataset inside the data directory.
const CatalogFile = "test_plans.json"

// Catalog serves baseline test plans from test_plans.json. Plans are held in
// memory and reloaded when the file changes on disk, so a demo operator can
// edit the dataset without restarting the service.
type Catalog struct {
	path string

	mu    sync.RWMutex
	plans []datatypes.TestPlan
}

// NewCatalog loads the baseline plans from dataDir/test_plans.json.
func NewCatalog(dataDir string) (*Catalog, error) {
	c := &Catalog{path: filepath.Join(dataDir, CatalogFile)}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read baseline catalog: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse baseline catalog %s: %w", c.path, err)
	}

	plans := make([]datatypes.TestPlan, 0, len(raw))
	for _, entry := range raw {
		if plan, ok := datatypes.NormalizePlan(entry); ok {
			plans = append(plans, plan)
		}
	}

	c.mu.Lock()
	c.plans = plans
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever the backing file changes. Blocks until
// ctx is cancelled; run it in its own goroutine. A reload failure keeps the
// previous in-memory dataset.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors often replace the file,
	// which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watch catalog directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.reload(); err != nil {
				slog.Warn("catalog reload failed, keeping previous dataset",
					"path", c.path, "error", err)
				continue
			}
			slog.Info("catalog reloaded", "path", c.path, "plans", c.Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog watcher error", "error", err)
		}
	}
}

// Len returns the number of loaded plans.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}

// GetPlan returns the plan with the given key.
func (c *Catalog) GetPlan(_ context.Context, key string) (datatypes.TestPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.plans {
		if p.Key == key {
			return p.Clone(), nil
		}
	}
	return datatypes.TestPlan{}, fmt.Errorf("%w: %s", overlay.ErrPlanNotFound, key)
}

// ListPlans returns all plans in file order.
func (c *Catalog) ListPlans(_ context.Context) ([]datatypes.TestPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]datatypes.TestPlan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p.Clone())
	}
	return out, nil
}
