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

const (
	overlayFilePrefix = "test_plans_enriched."
	overlayFileSuffix = ".json"
)

// FileOverlayStore persists named overlay documents as JSON files in a data
// directory, one file per overlay name (test_plans_enriched.<name>.json).
//
// Writes are atomic: the document is written to a temp file in the same
// directory and renamed over the target, so a crashed write never leaves a
// truncated overlay behind.
type FileOverlayStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileOverlayStore creates the data directory if needed.
func NewFileOverlayStore(dir string) (*FileOverlayStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create overlay directory: %v", overlay.ErrStoreUnavailable, err)
	}
	return &FileOverlayStore{dir: dir}, nil
}

// overlayPath validates the name before building a path from it. The name
// pattern excludes every path metacharacter, so a validated name cannot
// escape the data directory.
func (s *FileOverlayStore) overlayPath(name string) (string, error) {
	if err := validation.ValidateOverlayName(name); err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrInvalidOverlayName, err)
	}
	return filepath.Join(s.dir, overlayFilePrefix+name+overlayFileSuffix), nil
}

// Get returns the records of a named overlay. A name that was never written
// yields an empty document, not an error.
func (s *FileOverlayStore) Get(_ context.Context, name string) ([]datatypes.OverlayRecord, error) {
	path, err := s.overlayPath(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []datatypes.OverlayRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}

	var records []datatypes.OverlayRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parse overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	return records, nil
}

// Put replaces the full document of a named overlay.
func (s *FileOverlayStore) Put(_ context.Context, name string, records []datatypes.OverlayRecord) error {
	path, err := s.overlayPath(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.dir, overlayFilePrefix+name+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: stage overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: flush overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: commit overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	return nil
}

// List returns the names of every stored overlay, sorted.
func (s *FileOverlayStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list overlays: %v", overlay.ErrStoreUnavailable, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, overlayFilePrefix) || !strings.HasSuffix(name, overlayFileSuffix) {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(name, overlayFilePrefix), overlayFileSuffix)
		if validation.ValidateOverlayName(trimmed) == nil {
			names = append(names, trimmed)
		}
	}
	sort.Strings(names)
	return names, nil
}
