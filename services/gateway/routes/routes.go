// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ChannelPulse/services/gateway/handlers"
	"github.com/AleutianAI/ChannelPulse/services/gateway/middleware"
	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// Deps collects everything the route table wires into handlers.
type Deps struct {
	Manager   *session.Manager
	Directory *session.Directory
	Fetcher   *session.Fetcher
	Sessions  *middleware.SessionStore
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.Health(deps.Manager))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/send-code", handlers.SendCode(deps.Manager))
			auth.POST("/verify-code", handlers.VerifyCode(deps.Manager, deps.Sessions))
			auth.GET("/check", handlers.CheckAuth(deps.Manager, deps.Sessions))
			auth.POST("/logout", handlers.Logout(deps.Manager, deps.Sessions))
		}

		groups := api.Group("/groups")
		{
			groups.GET("", handlers.ListGroups(deps.Directory))
			groups.GET("/:groupId/messages", handlers.GetMessages(deps.Fetcher))
		}
	}
}
