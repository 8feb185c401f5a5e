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
	"strings"
	"sync"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// XrayFile is the mocked test-management dataset inside the data directory.
const XrayFile = "tests_by_requirement.json"

// XrayStore serves existing tests keyed by requirement, from the mocked
// test-management export tests_by_requirement.json.
type XrayStore struct {
	mu    sync.RWMutex
	byReq map[string][]datatypes.ExistingTest
}

// NewXrayStore loads dataDir/tests_by_requirement.json.
func NewXrayStore(dataDir string) (*XrayStore, error) {
	path := filepath.Join(dataDir, XrayFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test repository: %w", err)
	}
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse test repository %s: %w", path, err)
	}

	byReq := make(map[string][]datatypes.ExistingTest, len(raw))
	for req, entries := range raw {
		tests := make([]datatypes.ExistingTest, 0, len(entries))
		for _, entry := range entries {
			if t, ok := datatypes.NormalizeTest(entry); ok {
				tests = append(tests, t)
			}
		}
		byReq[strings.TrimSpace(req)] = tests
	}
	return &XrayStore{byReq: byReq}, nil
}

// legacyKey maps between the current US- requirement prefix and the PROJ-
// prefix older dataset exports used. Returns "" when no alias exists.
func legacyKey(req string) string {
	if rest, ok := strings.CutPrefix(req, "US-"); ok {
		return "PROJ-" + rest
	}
	if rest, ok := strings.CutPrefix(req, "PROJ-"); ok {
		return "US-" + rest
	}
	return ""
}

// GetTests returns the tests recorded for a requirement. An unknown
// requirement yields an empty slice, not an error: absence of tests is a
// meaningful signal for the overlay rules. Datasets exported before the
// US- key migration are looked up under their PROJ- alias.
func (s *XrayStore) GetTests(_ context.Context, requirementKey string) ([]datatypes.ExistingTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tests, ok := s.byReq[requirementKey]
	if !ok {
		if alias := legacyKey(requirementKey); alias != "" {
			tests = s.byReq[alias]
		}
	}
	return append([]datatypes.ExistingTest(nil), tests...), nil
}

// Requirements returns every requirement key present in the dataset.
func (s *XrayStore) Requirements() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.byReq))
	for k := range s.byReq {
		keys = append(keys, k)
	}
	return keys
}
