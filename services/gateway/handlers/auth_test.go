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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/gateway/middleware"
	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
)

// fakeAuth is a canned Authenticator for handler tests.
type fakeAuth struct {
	codeResult    session.CodeResult
	codeErr       error
	authResult    session.AuthResult
	authErr       error
	authenticated bool
	disconnectErr error

	disconnects int
}

func (f *fakeAuth) RequestCode(phone string) (session.CodeResult, error) {
	return f.codeResult, f.codeErr
}

func (f *fakeAuth) VerifyCode(phone, code string) (session.AuthResult, error) {
	return f.authResult, f.authErr
}

func (f *fakeAuth) IsAuthenticated() bool { return f.authenticated }

func (f *fakeAuth) Disconnect() error {
	f.disconnects++
	return f.disconnectErr
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(path, handler)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestSendCodeHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		auth := &fakeAuth{codeResult: session.CodeResult{
			Success:       true,
			PhoneCodeHash: "abc123",
			Message:       "Verification code sent successfully",
		}}
		w := postJSON(t, SendCode(auth), "/send-code", `{"phone_number":"+15551234567"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["success"] != true {
			t.Error("success flag missing")
		}
		if body["phone_code_hash"] != "abc123" {
			t.Errorf("phone_code_hash = %v, want abc123", body["phone_code_hash"])
		}
	})

	t.Run("missing body", func(t *testing.T) {
		w := postJSON(t, SendCode(&fakeAuth{}), "/send-code", ``)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("invalid phone format", func(t *testing.T) {
		w := postJSON(t, SendCode(&fakeAuth{}), "/send-code", `{"phone_number":"not-a-phone"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		body := decodeBody(t, w)
		if body["success"] != false {
			t.Error("success should be false")
		}
	})

	t.Run("platform rejection maps to 400", func(t *testing.T) {
		auth := &fakeAuth{codeResult: session.CodeResult{Error: "FLOOD_WAIT_42"}}
		w := postJSON(t, SendCode(auth), "/send-code", `{"phone_number":"+15551234567"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "FLOOD_WAIT_42" {
			t.Errorf("error = %v, want the platform message", body["error"])
		}
	})

	t.Run("bridge timeout maps to 500", func(t *testing.T) {
		auth := &fakeAuth{codeErr: &session.TimeoutError{Op: "request_code", Timeout: 30 * time.Second}}
		w := postJSON(t, SendCode(auth), "/send-code", `{"phone_number":"+15551234567"}`)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}

func TestVerifyCodeHandler(t *testing.T) {
	user := &datatypes.User{ID: "99", Name: "Ada Lovelace", Username: "ada"}

	t.Run("success sets a web session cookie", func(t *testing.T) {
		auth := &fakeAuth{authResult: session.AuthResult{Success: true, User: user}}
		sessions := middleware.NewSessionStore(time.Hour)
		w := postJSON(t, VerifyCode(auth, sessions), "/verify-code",
			`{"phone_number":"+15551234567","code":"12345"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
		}
		cookie := w.Header().Get("Set-Cookie")
		if !strings.Contains(cookie, middleware.CookieName+"=") {
			t.Errorf("session cookie missing: %q", cookie)
		}
		if sessions.Len() != 1 {
			t.Errorf("web sessions = %d, want 1", sessions.Len())
		}
	})

	t.Run("wrong code maps to 400", func(t *testing.T) {
		auth := &fakeAuth{authResult: session.AuthResult{Error: "PHONE_CODE_INVALID"}}
		sessions := middleware.NewSessionStore(time.Hour)
		w := postJSON(t, VerifyCode(auth, sessions), "/verify-code",
			`{"phone_number":"+15551234567","code":"00000"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if sessions.Len() != 0 {
			t.Error("failed verification must not create a web session")
		}
	})

	t.Run("malformed code rejected before the session layer", func(t *testing.T) {
		sessions := middleware.NewSessionStore(time.Hour)
		w := postJSON(t, VerifyCode(&fakeAuth{}, sessions), "/verify-code",
			`{"phone_number":"+15551234567","code":"xx"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestCheckAuthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCheckRouter := func(auth Authenticator, sessions *middleware.SessionStore) *gin.Engine {
		router := gin.New()
		router.GET("/check", CheckAuth(auth, sessions))
		return router
	}

	t.Run("live platform session without a cookie still reads authenticated", func(t *testing.T) {
		router := newCheckRouter(&fakeAuth{authenticated: true}, middleware.NewSessionStore(time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check", nil))

		body := decodeBody(t, w)
		if body["is_authenticated"] != true {
			t.Errorf("restored platform session must read authenticated, body: %s", w.Body.String())
		}
		if userData, present := body["user_data"]; !present || userData != nil {
			t.Errorf("user_data without a cookie = %v, want null", userData)
		}
	})

	t.Run("valid cookie over a live platform session", func(t *testing.T) {
		sessions := middleware.NewSessionStore(time.Hour)
		token := sessions.Create(middleware.Identity{UserID: 99, FirstName: "Ada Lovelace", Username: "ada"})
		router := newCheckRouter(&fakeAuth{authenticated: true}, sessions)

		req := httptest.NewRequest(http.MethodGet, "/check", nil)
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		body := decodeBody(t, w)
		if body["is_authenticated"] != true {
			t.Fatalf("expected is_authenticated=true, body: %s", w.Body.String())
		}
		userData, ok := body["user_data"].(map[string]any)
		if !ok {
			t.Fatalf("user_data missing: %s", w.Body.String())
		}
		if userData["username"] != "ada" {
			t.Errorf("username = %v, want ada", userData["username"])
		}
	})

	t.Run("stale cookie over a dead platform session", func(t *testing.T) {
		sessions := middleware.NewSessionStore(time.Hour)
		token := sessions.Create(middleware.Identity{UserID: 99})
		router := newCheckRouter(&fakeAuth{authenticated: false}, sessions)

		req := httptest.NewRequest(http.MethodGet, "/check", nil)
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		body := decodeBody(t, w)
		if body["is_authenticated"] != false {
			t.Error("dead platform session must read unauthenticated")
		}
		// The identity still rides along so the UI can prefill the login.
		if _, ok := body["user_data"].(map[string]any); !ok {
			t.Errorf("user_data missing for a resolvable cookie: %s", w.Body.String())
		}
	})
}

func TestLogoutHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("flushes the web session and disconnects", func(t *testing.T) {
		auth := &fakeAuth{}
		sessions := middleware.NewSessionStore(time.Hour)
		token := sessions.Create(middleware.Identity{UserID: 99})

		router := gin.New()
		router.POST("/logout", Logout(auth, sessions))
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if auth.disconnects != 1 {
			t.Errorf("disconnect called %d times, want 1", auth.disconnects)
		}
		if sessions.Len() != 0 {
			t.Error("web session survived logout")
		}
	})

	t.Run("logout without a session still succeeds", func(t *testing.T) {
		auth := &fakeAuth{}
		w := postJSON(t, Logout(auth, middleware.NewSessionStore(time.Hour)), "/logout", ``)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}
