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

	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// SessionStater reports the current platform session state.
type SessionStater interface {
	State() session.State
}

// Health handles GET /health. Always 200; the session state is advisory,
// a disconnected session is not a service outage.
func Health(mgr SessionStater) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"service":       "gateway",
			"session_state": mgr.State().String(),
		})
	}
}
