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

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/gateway/middleware"
	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// Authenticator is the slice of the session manager the auth handlers use.
type Authenticator interface {
	RequestCode(phone string) (session.CodeResult, error)
	VerifyCode(phone, code string) (session.AuthResult, error)
	IsAuthenticated() bool
	Disconnect() error
}

// SendCode handles POST /api/auth/send-code. A structured platform failure
// (bad phone, flood wait) comes back as 400 with the platform's message;
// a bridge failure (timeout, crashed task) is a 500.
func SendCode(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SendCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone number is required"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Rejected send-code request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid phone number format"})
			return
		}

		result, err := auth.RequestCode(req.PhoneNumber)
		if err != nil {
			slog.Error("Send code failed in session layer", "error", err)
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

// VerifyCode handles POST /api/auth/verify-code. On success the verified
// identity is written to the web-session store and the session cookie is set.
func VerifyCode(auth Authenticator, sessions *middleware.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.VerifyCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone number and code are required"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Rejected verify-code request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid phone number or code format"})
			return
		}

		result, err := auth.VerifyCode(req.PhoneNumber, req.Code)
		if err != nil {
			slog.Error("Verify code failed in session layer", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !result.Success {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": result.Error})
			return
		}

		if result.User != nil {
			userID, _ := strconv.ParseInt(result.User.ID, 10, 64)
			token := sessions.Create(middleware.Identity{
				UserID:    userID,
				FirstName: result.User.Name,
				Username:  result.User.Username,
				Phone:     req.PhoneNumber,
			})
			middleware.SetCookie(c, token, middleware.DefaultSessionTTL)
		}
		c.JSON(http.StatusOK, result)
	}
}

// CheckAuth handles GET /api/auth/check. The authenticated flag reflects the
// platform session alone, so a restarted browser against a restored session
// still reads as logged in. The web session only contributes user_data,
// which is null when no cookie resolves.
func CheckAuth(auth Authenticator, sessions *middleware.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"success":          true,
			"is_authenticated": auth.IsAuthenticated(),
			"user_data":        nil,
		}
		if identity, ok := sessions.Get(middleware.TokenFromRequest(c)); ok {
			body["user_data"] = datatypes.User{
				ID:       strconv.FormatInt(identity.UserID, 10),
				Name:     identity.FirstName,
				Username: identity.Username,
				Phone:    identity.Phone,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

// Logout handles POST /api/auth/logout: disconnects the platform session,
// flushes the web session, and clears the cookie. Logging out while not
// logged in succeeds.
func Logout(auth Authenticator, sessions *middleware.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.TokenFromRequest(c); token != "" {
			sessions.Delete(token)
		}
		middleware.ClearCookie(c)

		if err := auth.Disconnect(); err != nil {
			slog.Error("Disconnect failed during logout", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
	}
}
