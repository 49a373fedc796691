// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventFields is the classifier's event payload for one message.
type EventFields struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// AnalysisResult is one classifier verdict, addressed by the zero-based
// position of the message in the fetched batch. Transient: consumed
// immediately to patch the batch, never persisted.
type AnalysisResult struct {
	Index        int          `json:"index"`
	IsImportant  bool         `json:"is_important"`
	IsFakeNews   bool         `json:"is_fake_news"`
	HasEvent     bool         `json:"has_event"`
	EventDetails *EventFields `json:"event_details,omitempty"`
}

// ParseAnalysisResults extracts the JSON array of verdicts from a raw model
// reply. Models wrap output in markdown fences or preamble text more often
// than not, so the reply is cleaned before decoding: fences stripped, then
// the outermost [...] slice taken.
func ParseAnalysisResults(reply string) ([]AnalysisResult, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	startIdx := strings.Index(cleaned, "[")
	endIdx := strings.LastIndex(cleaned, "]")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON array found in reply: %s", truncate(cleaned, 100))
	}

	var results []AnalysisResult
	if err := json.Unmarshal([]byte(cleaned[startIdx:endIdx+1]), &results); err != nil {
		return nil, fmt.Errorf("failed to parse classifier reply: %w", err)
	}
	return results, nil
}

// truncate shortens a string for log and error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
