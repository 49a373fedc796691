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
	"context"
	"strings"
	"time"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
)

// importanceKeywords mark a message as important when any appears in its
// lowercased content.
var importanceKeywords = []string{
	"urgent", "important", "emergency", "meeting", "deadline",
	"maintenance", "announcement", "notice", "alert", "breaking",
}

// eventKeywords trigger the stub event extraction.
var eventKeywords = []string{"meeting", "event", "schedule", "appointment", "call"}

// Heuristic is the keyword fallback used when no LLM backend is configured.
// Deliberately crude: importance is keyword presence, and a detected event
// gets a stub detail one day out. Misinformation detection needs a real
// classifier and always stays false here.
type Heuristic struct {
	now func() time.Time
}

// NewHeuristic builds the keyword fallback augmenter.
func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

// Augment implements the same contract as Pipeline.Augment using local
// keyword matching only.
func (h *Heuristic) Augment(_ context.Context, messages []datatypes.Message) []datatypes.Message {
	for i := range messages {
		lowered := strings.ToLower(messages[i].Content)
		messages[i].IsImportant = containsAny(lowered, importanceKeywords)

		if containsAny(lowered, eventKeywords) {
			messages[i].HasEvent = true
			messages[i].EventDetails = h.stubEvent(messages[i].Content)
		}
	}
	return messages
}

func (h *Heuristic) stubEvent(content string) *datatypes.EventDetails {
	description := content
	if runes := []rune(description); len(runes) > 100 {
		description = string(runes[:100]) + "..."
	}
	return &datatypes.EventDetails{
		Title:       "Extracted Event",
		Date:        h.now().AddDate(0, 0, 1).Format(time.RFC3339),
		Time:        "7:00 PM",
		Description: description,
		Type:        "meeting",
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
