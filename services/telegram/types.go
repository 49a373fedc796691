// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telegram defines the capability consumed from the messaging
// platform: connect, authenticate, list dialogs, fetch history. The gateway
// never talks MTProto itself; BridgeClient forwards every call to a bridge
// process over a websocket.
package telegram

import (
	"strings"
	"time"
)

// Sender is the closed set of message-author variants. Dialog entities in
// Telegram are heterogeneous (users, chats, channels); rather than sniffing
// attributes at the call site, every variant answers DisplayName with its
// own resolution order.
type Sender interface {
	SenderID() int64
	DisplayName() string
}

// UserSender is a person. DisplayName prefers first/last name, then the
// username handle. Empty when the account has neither.
type UserSender struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func (u UserSender) SenderID() int64 { return u.ID }

func (u UserSender) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}

// ChatSender is a group or channel posting under its own title.
type ChatSender struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (c ChatSender) SenderID() int64     { return c.ID }
func (c ChatSender) DisplayName() string { return c.Title }

// UnknownSender stands in when the bridge could not resolve the author.
type UnknownSender struct{}

func (UnknownSender) SenderID() int64     { return 0 }
func (UnknownSender) DisplayName() string { return "" }

// ResolveSenderName maps a sender to a human-readable name, falling back to
// "Unknown" for nil senders and variants without any usable name.
func ResolveSenderName(s Sender) string {
	if s == nil {
		return "Unknown"
	}
	if name := s.DisplayName(); name != "" {
		return name
	}
	return "Unknown"
}

// Account is the authenticated user's own identity, as returned by getMe.
type Account struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
}

// Dialog is one conversation in the account's dialog list.
type Dialog struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IsGroup     bool   `json:"is_group"`
	IsChannel   bool   `json:"is_channel"`
	UnreadCount int    `json:"unread_count"`

	// MemberCount is the participant count carried on the entity itself.
	// Zero means the platform did not include one; callers may enumerate
	// participants instead.
	MemberCount int `json:"member_count"`

	// LastMessage is the most recent message, when the dialog has one.
	LastMessage *HistoryMessage `json:"last_message,omitempty"`
}

// HistoryMessage is one raw message from a conversation's history. Text is
// empty for media-only messages.
type HistoryMessage struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chat_id"`
	SenderID int64     `json:"sender_id"`
	Sender   Sender    `json:"-"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}
