// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/ChannelPulse/services/telegram/sessionstore"
)

// defaultCallTimeout bounds one bridge round trip when the caller's context
// carries no deadline of its own.
const defaultCallTimeout = 25 * time.Second

// BridgeConfig configures a BridgeClient.
type BridgeConfig struct {
	// URL is the websocket endpoint of the MTProto bridge, e.g.
	// ws://localhost:9301/mtproto.
	URL string

	// APIID and APIHash identify this application to the platform. They are
	// forwarded to the bridge on connect.
	APIID   int
	APIHash string

	// Store persists the opaque session blob per phone number. Optional;
	// without it every connect starts an unauthenticated session.
	Store *sessionstore.Store
}

// BridgeClient implements Client by forwarding each capability call to an
// MTProto bridge process as a JSON request over a single websocket.
//
// Calls run lock-step: one request, then its response. The session runtime
// already serializes all platform operations, so the internal mutex only
// guards against misuse, not expected contention.
type BridgeClient struct {
	cfg   BridgeConfig
	phone string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// NewBridgeClient builds a client bound to one phone number. No I/O happens
// until Connect.
func NewBridgeClient(cfg BridgeConfig, phone string) (*BridgeClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("bridge URL must not be empty")
	}
	if phone == "" {
		return nil, fmt.Errorf("phone number must not be empty")
	}
	return &BridgeClient{cfg: cfg, phone: phone}, nil
}

type bridgeRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type bridgeResponse struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// wireSender is the bridge's tagged encoding of a message author.
type wireSender struct {
	Kind      string `json:"kind"` // "user", "chat", or ""
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Title     string `json:"title"`
}

func (w *wireSender) toSender() Sender {
	if w == nil {
		return nil
	}
	switch w.Kind {
	case "user":
		return UserSender{ID: w.ID, FirstName: w.FirstName, LastName: w.LastName, Username: w.Username}
	case "chat":
		return ChatSender{ID: w.ID, Title: w.Title}
	default:
		return UnknownSender{}
	}
}

type wireMessage struct {
	ID       int64       `json:"id"`
	ChatID   int64       `json:"chat_id"`
	SenderID int64       `json:"sender_id"`
	Sender   *wireSender `json:"sender,omitempty"`
	Text     string      `json:"text"`
	Date     time.Time   `json:"date"`
}

func (w *wireMessage) toHistoryMessage() HistoryMessage {
	return HistoryMessage{
		ID:       w.ID,
		ChatID:   w.ChatID,
		SenderID: w.SenderID,
		Sender:   w.Sender.toSender(),
		Text:     w.Text,
		Date:     w.Date,
	}
}

type wireDialog struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	IsGroup     bool         `json:"is_group"`
	IsChannel   bool         `json:"is_channel"`
	UnreadCount int          `json:"unread_count"`
	MemberCount int          `json:"member_count"`
	LastMessage *wireMessage `json:"last_message,omitempty"`
}

// call sends one request and decodes the matching response into out.
func (c *BridgeClient) call(ctx context.Context, method string, params any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("bridge call %s: not connected", method)
	}

	deadline := time.Now().Add(defaultCallTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("bridge call %s: encode params: %w", method, err)
		}
		raw = encoded
	}

	c.nextID++
	req := bridgeRequest{ID: c.nextID, Method: method, Params: raw}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("bridge call %s: %w", method, err)
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("bridge call %s: write: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("bridge call %s: %w", method, err)
	}

	// Responses arrive in request order; skip any with a stale id in case
	// an abandoned earlier call's reply is still queued.
	for {
		var resp bridgeResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("bridge call %s: read: %w", method, err)
		}
		if resp.ID != req.ID {
			slog.Debug("Discarding stale bridge response", "got_id", resp.ID, "want_id", req.ID)
			continue
		}
		if !resp.OK {
			return fmt.Errorf("bridge call %s: %s", method, resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("bridge call %s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

// Connect dials the bridge, restores persisted credentials for the phone
// number if any, and saves the (possibly refreshed) session blob.
func (c *BridgeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("dial bridge %s: %w", c.cfg.URL, err)
	}
	c.conn = conn
	c.mu.Unlock()

	var session string
	if c.cfg.Store != nil {
		blob, err := c.cfg.Store.Load(c.phone)
		switch {
		case err == nil:
			session = blob
		case err != sessionstore.ErrNotFound:
			slog.Warn("Failed to load stored session, starting fresh", "phone", c.phone, "error", err)
		}
	}

	params := map[string]any{
		"api_id":   c.cfg.APIID,
		"api_hash": c.cfg.APIHash,
		"phone":    c.phone,
		"session":  session,
	}
	var result struct {
		Session string `json:"session"`
	}
	if err := c.call(ctx, "connect", params, &result); err != nil {
		c.closeConn()
		return err
	}
	c.persistSession(result.Session)

	slog.Info("Connected to MTProto bridge", "phone", c.phone)
	return nil
}

// Disconnect tells the bridge to drop the platform connection and closes the
// websocket. Safe to call on a client that never connected.
func (c *BridgeClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return nil
	}

	err := c.call(ctx, "disconnect", nil, nil)
	c.closeConn()
	if err != nil {
		return err
	}
	slog.Info("Disconnected from MTProto bridge", "phone", c.phone)
	return nil
}

func (c *BridgeClient) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *BridgeClient) persistSession(blob string) {
	if c.cfg.Store == nil || blob == "" {
		return
	}
	if err := c.cfg.Store.Save(c.phone, blob); err != nil {
		slog.Error("Failed to persist session credentials", "phone", c.phone, "error", err)
	}
}

// SendCode implements Client.
func (c *BridgeClient) SendCode(ctx context.Context, phone string) (string, error) {
	var result struct {
		PhoneCodeHash string `json:"phone_code_hash"`
	}
	params := map[string]any{"phone": phone}
	if err := c.call(ctx, "sendCode", params, &result); err != nil {
		return "", err
	}
	return result.PhoneCodeHash, nil
}

// SignIn implements Client. On success the bridge returns the authorized
// session blob, which is persisted for the next process start.
func (c *BridgeClient) SignIn(ctx context.Context, phone, code string) error {
	var result struct {
		Session string `json:"session"`
	}
	params := map[string]any{"phone": phone, "code": code}
	if err := c.call(ctx, "signIn", params, &result); err != nil {
		return err
	}
	c.persistSession(result.Session)
	return nil
}

// IsAuthorized implements Client.
func (c *BridgeClient) IsAuthorized(ctx context.Context) (bool, error) {
	var result struct {
		Authorized bool `json:"authorized"`
	}
	if err := c.call(ctx, "isAuthorized", nil, &result); err != nil {
		return false, err
	}
	return result.Authorized, nil
}

// Me implements Client.
func (c *BridgeClient) Me(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.call(ctx, "getMe", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Dialogs implements Client.
func (c *BridgeClient) Dialogs(ctx context.Context) ([]Dialog, error) {
	var result struct {
		Dialogs []wireDialog `json:"dialogs"`
	}
	if err := c.call(ctx, "getDialogs", nil, &result); err != nil {
		return nil, err
	}
	dialogs := make([]Dialog, 0, len(result.Dialogs))
	for _, wd := range result.Dialogs {
		d := Dialog{
			ID:          wd.ID,
			Name:        wd.Name,
			IsGroup:     wd.IsGroup,
			IsChannel:   wd.IsChannel,
			UnreadCount: wd.UnreadCount,
			MemberCount: wd.MemberCount,
		}
		if wd.LastMessage != nil {
			msg := wd.LastMessage.toHistoryMessage()
			d.LastMessage = &msg
		}
		dialogs = append(dialogs, d)
	}
	return dialogs, nil
}

// Participants implements Client.
func (c *BridgeClient) Participants(ctx context.Context, chatID int64) ([]Sender, error) {
	var result struct {
		Participants []wireSender `json:"participants"`
	}
	params := map[string]any{"chat_id": chatID}
	if err := c.call(ctx, "getParticipants", params, &result); err != nil {
		return nil, err
	}
	senders := make([]Sender, 0, len(result.Participants))
	for i := range result.Participants {
		senders = append(senders, result.Participants[i].toSender())
	}
	return senders, nil
}

// History implements Client.
func (c *BridgeClient) History(ctx context.Context, chatID int64, limit int) ([]HistoryMessage, error) {
	var result struct {
		Messages []wireMessage `json:"messages"`
	}
	params := map[string]any{"chat_id": chatID, "limit": limit}
	if err := c.call(ctx, "getHistory", params, &result); err != nil {
		return nil, err
	}
	messages := make([]HistoryMessage, 0, len(result.Messages))
	for i := range result.Messages {
		messages = append(messages, result.Messages[i].toHistoryMessage())
	}
	return messages, nil
}

var _ Client = (*BridgeClient)(nil)
