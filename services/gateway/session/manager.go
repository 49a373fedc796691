// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/telegram"
)

// State is the session lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingCode
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// CodeResult is the outcome of a send-code request.
type CodeResult struct {
	Success       bool   `json:"success"`
	PhoneCodeHash string `json:"phone_code_hash,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// AuthResult is the outcome of a code verification.
type AuthResult struct {
	Success bool            `json:"success"`
	User    *datatypes.User `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Manager owns the process's single platform session: the client handle, the
// phone number it is bound to, and the authentication flag.
//
// Every field below bridge/factory is mutated exclusively inside runtime
// tasks. The runtime executes one task at a time, which is the whole
// concurrency story; there is deliberately no mutex here.
type Manager struct {
	bridge  *Bridge
	factory telegram.Factory

	client        telegram.Client
	phone         string
	authenticated bool
	state         State
}

// NewManager wires a manager to the bridge and a client factory.
func NewManager(bridge *Bridge, factory telegram.Factory) *Manager {
	return &Manager{bridge: bridge, factory: factory, state: StateDisconnected}
}

// ensureSession makes the manager's client usable for the given phone
// number. Runs on the runtime goroutine only.
//
// Same phone with a live client: reuse as-is. Different phone: disconnect
// the old handle first, then build and connect a fresh one. No client yet:
// build and connect.
func (m *Manager) ensureSession(ctx context.Context, phone string) error {
	if m.client != nil {
		if m.phone == phone {
			return nil
		}
		slog.Info("Phone number changed, replacing session", "old", m.phone, "new", phone)
		if err := m.client.Disconnect(ctx); err != nil {
			slog.Warn("Failed to disconnect previous session", "phone", m.phone, "error", err)
		}
		m.client = nil
		m.authenticated = false
		m.state = StateDisconnected
	}

	m.state = StateConnecting
	client, err := m.factory(phone)
	if err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("create client for %s: %w", phone, err)
	}
	if err := client.Connect(ctx); err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("connect session for %s: %w", phone, err)
	}
	m.client = client
	m.phone = phone
	return nil
}

// RequestCode connects a session for the phone number and asks the platform
// to deliver a verification code. Platform failures come back as a
// structured result, never as an error; the only errors are bridge-level
// (TimeoutError, PropagatedError).
func (m *Manager) RequestCode(phone string) (CodeResult, error) {
	v, err := m.bridge.Run("request_code", func(ctx context.Context) (any, error) {
		if err := m.ensureSession(ctx, phone); err != nil {
			return CodeResult{Error: err.Error()}, nil
		}
		hash, err := m.client.SendCode(ctx, phone)
		if err != nil {
			slog.Error("Send code failed", "phone", phone, "error", err)
			return CodeResult{Error: err.Error()}, nil
		}
		m.state = StateAwaitingCode
		return CodeResult{
			Success:       true,
			PhoneCodeHash: hash,
			Message:       "Verification code sent successfully",
		}, nil
	})
	if err != nil {
		return CodeResult{}, err
	}
	return v.(CodeResult), nil
}

// VerifyCode completes authentication. When the restored session is already
// authorized the sign-in step is skipped. On success the normalized identity
// is returned and the session becomes Authenticated.
func (m *Manager) VerifyCode(phone, code string) (AuthResult, error) {
	v, err := m.bridge.Run("verify_code", func(ctx context.Context) (any, error) {
		if err := m.ensureSession(ctx, phone); err != nil {
			return AuthResult{Error: err.Error()}, nil
		}

		authorized, err := m.client.IsAuthorized(ctx)
		if err != nil {
			return AuthResult{Error: err.Error()}, nil
		}
		if !authorized {
			if err := m.client.SignIn(ctx, phone, code); err != nil {
				slog.Error("Sign in failed", "phone", phone, "error", err)
				return AuthResult{Error: err.Error()}, nil
			}
		}
		m.authenticated = true
		m.state = StateAuthenticated

		me, err := m.client.Me(ctx)
		if err != nil {
			return AuthResult{Error: err.Error()}, nil
		}
		slog.Info("Session authenticated", "phone", phone, "user_id", me.ID)
		return AuthResult{
			Success: true,
			User:    normalizeIdentity(me),
			Message: "Authentication successful",
		}, nil
	})
	if err != nil {
		return AuthResult{}, err
	}
	return v.(AuthResult), nil
}

// normalizeIdentity builds the wire identity: the display name joins first
// and last name tolerating either being empty, and the username defaults to
// user_<id> when the account has none.
func normalizeIdentity(me *telegram.Account) *datatypes.User {
	username := me.Username
	if username == "" {
		username = "user_" + strconv.FormatInt(me.ID, 10)
	}
	return &datatypes.User{
		ID:       strconv.FormatInt(me.ID, 10),
		Name:     strings.TrimSpace(me.FirstName + " " + me.LastName),
		Username: username,
		Phone:    me.Phone,
	}
}

// IsAuthenticated is a best-effort check against the live session. Every
// failure mode, including a bridge timeout, reads as "not authenticated".
func (m *Manager) IsAuthenticated() bool {
	v, err := m.bridge.Run("check_auth", func(ctx context.Context) (any, error) {
		if m.client == nil {
			return false, nil
		}
		ok, err := m.client.IsAuthorized(ctx)
		if err != nil {
			slog.Debug("Authorization check failed", "error", err)
			return false, nil
		}
		return ok, nil
	})
	if err != nil {
		slog.Warn("Authorization check did not complete", "error", err)
		return false
	}
	return v.(bool)
}

// Disconnect tears the session down. Calling with no active session is a
// no-op. Platform failures during disconnect surface as *PropagatedError.
func (m *Manager) Disconnect() error {
	_, err := m.bridge.Run("disconnect", func(ctx context.Context) (any, error) {
		if m.client == nil {
			return nil, nil
		}
		err := m.client.Disconnect(ctx)
		m.client = nil
		m.authenticated = false
		m.state = StateDisconnected
		if err != nil {
			return nil, err
		}
		slog.Info("Session disconnected", "phone", m.phone)
		return nil, nil
	})
	return err
}

// State reports the current lifecycle phase, read on the runtime goroutine
// for a consistent snapshot. Diagnostics only.
func (m *Manager) State() State {
	v, err := m.bridge.Run("state", func(ctx context.Context) (any, error) {
		return m.state, nil
	})
	if err != nil {
		return StateDisconnected
	}
	return v.(State)
}
