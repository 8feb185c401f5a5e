// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for user-supplied
// identifiers.
//
// Overlay names and run keys end up in file paths and store keys, so they are
// validated here before any store access. Using these validators prevents
// path traversal and store-key injection.
package validation

import (
	"fmt"
	"regexp"
)

// overlayNamePattern matches valid file-overlay names.
// Allows: letters, digits, underscores, hyphens. Max length: 64 characters.
var overlayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// runKeyPattern matches run keys: a project prefix plus a numeric id with at
// least three digits (e.g. US-402, PROJ-1234).
var runKeyPattern = regexp.MustCompile(`^[A-Z]+-\d{3,}$`)

// IsRunKey reports whether name is shaped like a run key.
//
// Run keys identify read-only run snapshots. A name matching this pattern is
// never a valid write target for overlay documents.
func IsRunKey(name string) bool {
	return runKeyPattern.MatchString(name)
}

// ValidateOverlayName validates a file-overlay name.
//
// Valid names:
//   - 1-64 characters
//   - Letters A-Z a-z, digits 0-9, underscore, hyphen
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateOverlayName(name); err != nil {
//	    return fmt.Errorf("invalid overlay: %w", err)
//	}
//	// Safe to use in a file path or store key
func ValidateOverlayName(name string) error {
	if name == "" {
		return fmt.Errorf("overlay name cannot be empty")
	}

	if !overlayNamePattern.MatchString(name) {
		return fmt.Errorf("invalid overlay name: %q (must be 1-64 alphanumeric chars, underscores, or hyphens)", name)
	}

	return nil
}

// ValidateRunKey validates a run key.
//
// Returns an error if the key does not match the run-key pattern.
func ValidateRunKey(key string) error {
	if key == "" {
		return fmt.Errorf("run key cannot be empty")
	}

	if !runKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid run key: %q (expected <PREFIX>-<digits>, e.g. US-402)", key)
	}

	return nil
}
