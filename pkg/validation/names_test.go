// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateOverlayName(t *testing.T) {
	tests := []struct {
		name    string
		overlay string
		wantErr bool
	}{
		// Valid names
		{"simple", "promptA", false},
		{"single char", "a", false},
		{"with digits", "prompt2", false},
		{"underscore", "sprint_12", false},
		{"hyphen", "release-2026-01", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid names - traversal and injection attempts
		{"empty", "", true},
		{"path traversal", "../secrets", true},
		{"dot", "prompt.A", true},
		{"slash", "a/b", true},
		{"spaces", "prompt A", true},
		{"too long", strings.Repeat("a", 65), true},
		{"null byte", "prompt\x00A", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOverlayName(tt.overlay)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOverlayName(%q) error = %v, wantErr %v", tt.overlay, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRunKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"us key", "US-402", false},
		{"proj key", "PROJ-401", false},
		{"long id", "US-123456", false},

		{"empty", "", true},
		{"two digits", "US-42", true},
		{"lowercase prefix", "us-402", true},
		{"no prefix", "-402", true},
		{"no digits", "US-", true},
		{"trailing text", "US-402x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestIsRunKey(t *testing.T) {
	if !IsRunKey("US-402") {
		t.Error("IsRunKey(US-402) = false, want true")
	}
	// Run keys overlap the overlay-name grammar; classification must put
	// run-shaped names on the run side.
	if IsRunKey("promptA") {
		t.Error("IsRunKey(promptA) = true, want false")
	}
}
