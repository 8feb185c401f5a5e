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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

// Fingerprint returns the stable identity of a prompt: "sha256:<hex>" over
// the exact prompt text. Identical prompts always fingerprint identically,
// which is what makes run provenance comparable across regenerations.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// SchemaHash fingerprints a suggestion schema by its id and sorted field
// names. Key order in the source document must not change the hash.
func SchemaHash(schemaID string, fieldNames []string) string {
	sorted := append([]string(nil), fieldNames...)
	sort.Strings(sorted)
	return Fingerprint(schemaID, strings.Join(sorted, ","))
}

// PromptArchive stores the full text of every prompt ever sent, keyed by
// fingerprint, so a run snapshot's provenance can be resolved back to the
// exact prompt long after the run.
type PromptArchive struct {
	dir string
	mu  sync.Mutex
}

// NewPromptArchive creates the archive directory if needed.
func NewPromptArchive(dir string) (*PromptArchive, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create prompt archive: %v", overlay.ErrStoreUnavailable, err)
	}
	return &PromptArchive{dir: dir}, nil
}

func (a *PromptArchive) path(fingerprint string) string {
	hexPart := strings.TrimPrefix(fingerprint, "sha256:")
	return filepath.Join(a.dir, hexPart+".prompt.txt")
}

// Store archives a prompt under its fingerprint. Idempotent: an already
// archived fingerprint is left untouched, since identical fingerprints imply
// identical content.
func (a *PromptArchive) Store(fingerprint, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	path := a.path(fingerprint)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return fmt.Errorf("%w: archive prompt %s: %v", overlay.ErrStoreUnavailable, fingerprint, err)
	}
	return nil
}

// Lookup returns the archived prompt text for a fingerprint, or ErrNotFound.
func (a *PromptArchive) Lookup(fingerprint string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := os.ReadFile(a.path(fingerprint))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("prompt %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read prompt %s: %v", overlay.ErrStoreUnavailable, fingerprint, err)
	}
	return string(data), nil
}
