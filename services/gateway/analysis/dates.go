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
	"strings"
	"time"
)

// ResolveEventDate maps the relative date expressions classifiers like to
// emit ("today", "tomorrow at 3pm", "next week") onto absolute timestamps
// anchored at the fetch time. Anything unrecognized passes through verbatim,
// including already-absolute dates.
func ResolveEventDate(raw string, fetchTime time.Time) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "tomorrow"):
		return fetchTime.AddDate(0, 0, 1).Format(time.RFC3339)
	case strings.Contains(lowered, "next week"):
		return fetchTime.AddDate(0, 0, 7).Format(time.RFC3339)
	case strings.Contains(lowered, "today"):
		return fetchTime.Format(time.RFC3339)
	default:
		return raw
	}
}
