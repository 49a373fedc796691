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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// MessageFetcher is the slice of the session fetcher the messages handler uses.
type MessageFetcher interface {
	FetchMessages(groupID string, limit int) (session.MessagesResult, error)
}

// GetMessages handles GET /api/groups/:groupId/messages. The optional limit
// query parameter bounds the history fetch; a missing or unparsable value
// falls back to the fetcher's default.
func GetMessages(fetcher MessageFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("groupId")

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				slog.Warn("Ignoring invalid limit parameter", "limit", raw)
			} else {
				limit = parsed
			}
		}

		result, err := fetcher.FetchMessages(groupID, limit)
		if err != nil {
			slog.Error("Message fetch failed in session layer", "groupId", groupID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !result.Success {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": result.Error})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
