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
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/telegram"
)

// DefaultFetchLimit is how many recent messages a fetch retrieves when the
// caller does not say.
const DefaultFetchLimit = 100

// Augmenter patches classification flags onto a fetched message batch. It
// must preserve length and order, and must never fail the fetch; the
// analysis package provides the LLM-backed pipeline and the keyword
// heuristic fallback.
type Augmenter interface {
	Augment(ctx context.Context, messages []datatypes.Message) []datatypes.Message
}

// MessagesResult is the outcome of a message fetch.
type MessagesResult struct {
	Success  bool                `json:"success"`
	Messages []datatypes.Message `json:"messages"`
	Error    string              `json:"error,omitempty"`
}

// Fetcher retrieves bounded message history for one conversation and runs
// augmentation over it, all inside a single unit of work on the runtime.
type Fetcher struct {
	mgr          *Manager
	augmenter    Augmenter
	defaultLimit int
}

// NewFetcher builds a fetcher over the managed session. The augmenter must
// not be nil. A non-positive defaultLimit falls back to DefaultFetchLimit.
func NewFetcher(mgr *Manager, augmenter Augmenter, defaultLimit int) *Fetcher {
	if defaultLimit <= 0 {
		defaultLimit = DefaultFetchLimit
	}
	return &Fetcher{mgr: mgr, augmenter: augmenter, defaultLimit: defaultLimit}
}

// FetchMessages returns up to limit most-recent text messages of the
// conversation, augmented with classification flags. Malformed conversation
// ids fail fast before any platform call; every other failure comes back as
// a structured result.
func (f *Fetcher) FetchMessages(groupID string, limit int) (MessagesResult, error) {
	chatID, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return MessagesResult{Error: "Invalid group id: " + groupID}, nil
	}
	if limit <= 0 {
		limit = f.defaultLimit
	}

	v, err := f.mgr.bridge.Run("fetch_messages", func(ctx context.Context) (any, error) {
		c := f.mgr.client
		if c == nil {
			return MessagesResult{Error: "Client not initialized"}, nil
		}
		authorized, err := c.IsAuthorized(ctx)
		if err != nil || !authorized {
			return MessagesResult{Error: "Not authenticated"}, nil
		}

		history, err := c.History(ctx, chatID, limit)
		if err != nil {
			slog.Error("History fetch failed", "chat_id", chatID, "error", err)
			return MessagesResult{Error: err.Error()}, nil
		}

		messages := make([]datatypes.Message, 0, len(history))
		for _, msg := range history {
			// Media-only messages are skipped; only text is analyzed.
			if msg.Text == "" {
				continue
			}

			senderID := "unknown"
			if msg.SenderID != 0 {
				senderID = strconv.FormatInt(msg.SenderID, 10)
			}

			timestamp := msg.Date
			if timestamp.IsZero() {
				timestamp = time.Now()
			}

			messages = append(messages, datatypes.Message{
				ID:         strconv.FormatInt(msg.ID, 10),
				ChatID:     groupID,
				SenderID:   senderID,
				SenderName: telegram.ResolveSenderName(msg.Sender),
				Content:    msg.Text,
				Timestamp:  timestamp.Format(time.RFC3339),
			})
		}

		// Augmentation runs inside the same unit of work, after the
		// platform call. Sequential on purpose: no partial-result races.
		messages = f.augmenter.Augment(ctx, messages)

		return MessagesResult{Success: true, Messages: messages}, nil
	})
	if err != nil {
		return MessagesResult{}, err
	}
	return v.(MessagesResult), nil
}
