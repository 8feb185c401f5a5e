// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/testplan-agent/pkg/validation"
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

const runFileSuffix = ".run.json"

// RunStore persists immutable run snapshots as <requirement>.run.json files.
// A snapshot is written once per generation; re-generating a requirement
// replaces its snapshot wholesale.
type RunStore struct {
	dir string
	mu  sync.Mutex
}

// NewRunStore creates the run directory if needed.
func NewRunStore(dir string) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create run directory: %v", overlay.ErrStoreUnavailable, err)
	}
	return &RunStore{dir: dir}, nil
}

func (s *RunStore) runPath(requirementKey string) (string, error) {
	if err := validation.ValidateRunKey(requirementKey); err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrRunNotFound, err)
	}
	return filepath.Join(s.dir, requirementKey+runFileSuffix), nil
}

// Get returns the snapshot for a requirement, or ErrRunNotFound.
func (s *RunStore) Get(_ context.Context, requirementKey string) (datatypes.RunSnapshot, error) {
	path, err := s.runPath(requirementKey)
	if err != nil {
		return datatypes.RunSnapshot{}, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return datatypes.RunSnapshot{}, fmt.Errorf("%w: %s", overlay.ErrRunNotFound, requirementKey)
	}
	if err != nil {
		return datatypes.RunSnapshot{}, fmt.Errorf("%w: read run %s: %v", overlay.ErrStoreUnavailable, requirementKey, err)
	}

	run, ok := datatypes.NormalizeRun(data)
	if !ok {
		return datatypes.RunSnapshot{}, fmt.Errorf("%w: parse run %s", overlay.ErrStoreUnavailable, requirementKey)
	}
	return run, nil
}

// List returns the requirement keys of every stored snapshot, sorted.
func (s *RunStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", overlay.ErrStoreUnavailable, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, runFileSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, runFileSuffix)
		if validation.IsRunKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Save persists a snapshot, replacing any existing one for the same
// requirement. Reports whether a previous snapshot was overwritten.
func (s *RunStore) Save(_ context.Context, run datatypes.RunSnapshot) (overwrote bool, err error) {
	path, err := s.runPath(run.RequirementKey)
	if err != nil {
		return false, err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return false, fmt.Errorf("%w: encode run %s: %v", overlay.ErrStoreUnavailable, run.RequirementKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, statErr := os.Stat(path)
	overwrote = statErr == nil

	tmp, err := os.CreateTemp(s.dir, run.RequirementKey+".tmp-")
	if err != nil {
		return false, fmt.Errorf("%w: stage run %s: %v", overlay.ErrStoreUnavailable, run.RequirementKey, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("%w: write run %s: %v", overlay.ErrStoreUnavailable, run.RequirementKey, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("%w: flush run %s: %v", overlay.ErrStoreUnavailable, run.RequirementKey, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("%w: commit run %s: %v", overlay.ErrStoreUnavailable, run.RequirementKey, err)
	}
	return overwrote, nil
}
