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
	"sync"

	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
)

// BitbucketFile is the mocked code-change dataset inside the data directory.
const BitbucketFile = "changes_by_jira_key.json"

// BitbucketStore serves recent code changes per requirement, from the mocked
// repository export changes_by_jira_key.json.
type BitbucketStore struct {
	mu      sync.RWMutex
	changes map[string][]datatypes.CodeChange
}

// NewBitbucketStore loads dataDir/changes_by_jira_key.json.
func NewBitbucketStore(dataDir string) (*BitbucketStore, error) {
	path := filepath.Join(dataDir, BitbucketFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read change repository: %w", err)
	}
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse change repository %s: %w", path, err)
	}

	changes := make(map[string][]datatypes.CodeChange, len(raw))
	for key, entries := range raw {
		out := make([]datatypes.CodeChange, 0, len(entries))
		for _, entry := range entries {
			if c, ok := datatypes.NormalizeChange(entry, "unknown_file"); ok {
				out = append(out, c)
			}
		}
		changes[key] = out
	}
	return &BitbucketStore{changes: changes}, nil
}

// GetChanges returns the recorded changes for a requirement. Unknown keys
// yield an empty slice: no changes is a normal state, not an error.
func (s *BitbucketStore) GetChanges(_ context.Context, jiraKey string) ([]datatypes.CodeChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]datatypes.CodeChange(nil), s.changes[jiraKey]...), nil
}
