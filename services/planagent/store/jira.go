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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// ErrNotFound is returned by mock dataset lookups for keys the dataset does
// not contain.
var ErrNotFound = errors.New("not found")

// JiraFile is the mocked issue-tracker dataset inside the data directory.
const JiraFile = "issues.json"

// JiraStore serves requirement issues from the mocked tracker export
// issues.json.
type JiraStore struct {
	mu     sync.RWMutex
	issues map[string]datatypes.JiraIssue
}

// NewJiraStore loads dataDir/issues.json.
func NewJiraStore(dataDir string) (*JiraStore, error) {
	path := filepath.Join(dataDir, JiraFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issue tracker: %w", err)
	}
	var raw []datatypes.JiraIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse issue tracker %s: %w", path, err)
	}

	issues := make(map[string]datatypes.JiraIssue, len(raw))
	for _, issue := range raw {
		key := strings.TrimSpace(issue.Key)
		if key == "" {
			continue
		}
		issue.Key = key
		issues[key] = issue
	}
	return &JiraStore{issues: issues}, nil
}

// GetIssue returns the issue with the given key, or ErrNotFound.
func (s *JiraStore) GetIssue(_ context.Context, key string) (datatypes.JiraIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[key]
	if !ok {
		return datatypes.JiraIssue{}, fmt.Errorf("issue %s: %w", key, ErrNotFound)
	}
	return issue, nil
}
