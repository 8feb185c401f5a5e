// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PromptReader resolves archived prompts by fingerprint.
type PromptReader interface {
	Lookup(fingerprint string) (string, error)
}

// SourceDeps bundles the mocked upstream readers for the viewer endpoints.
type SourceDeps struct {
	Issues  IssueSource
	Tests   TestSource
	Changes ChangeSource
	Prompts PromptReader
}

// GetIssue returns the mocked Jira issue for a requirement key.
func GetIssue(sources SourceDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		issue, err := sources.Issues.GetIssue(c.Request.Context(), c.Param("key"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

// GetTests returns the mocked Xray tests for a requirement key. Unknown keys
// yield an empty list, matching the upstream behavior.
func GetTests(sources SourceDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		tests, err := sources.Tests.GetTests(c.Request.Context(), key)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requirement_key": key, "tests": tests, "count": len(tests)})
	}
}

// GetChanges returns the mocked Bitbucket changes for a requirement key.
func GetChanges(sources SourceDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		changes, err := sources.Changes.GetChanges(c.Request.Context(), key)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requirement_key": key, "changes": changes, "count": len(changes)})
	}
}

// GetPrompt returns the archived prompt text for a fingerprint, so reviewers
// can see exactly what a run snapshot was generated from.
func GetPrompt(sources SourceDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fingerprint := c.Param("fingerprint")
		content, err := sources.Prompts.Lookup(fingerprint)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"fingerprint": fingerprint, "prompt": content})
	}
}
