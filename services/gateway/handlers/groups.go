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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// GroupLister is the slice of the session directory the groups handler uses.
type GroupLister interface {
	ListGroups() (session.GroupsResult, error)
}

// ListGroups handles GET /api/groups.
func ListGroups(dir GroupLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := dir.ListGroups()
		if err != nil {
			slog.Error("Group listing failed in session layer", "error", err)
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
