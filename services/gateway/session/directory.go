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

// DefaultParticipantFallbackLimit caps the enumerate-and-count fallback used
// for groups whose entity carries no member count. Enumerating a very large
// group is slow; past the cap the count is reported as the cap.
const DefaultParticipantFallbackLimit = 200

// GroupsResult is the outcome of a group listing.
type GroupsResult struct {
	Success bool              `json:"success"`
	Groups  []datatypes.Group `json:"groups"`
	Error   string            `json:"error,omitempty"`
}

// Directory lists the account's group and channel conversations with
// derived metadata. It is a read-only projection computed per request;
// nothing is cached.
type Directory struct {
	mgr         *Manager
	fallbackCap int
}

// NewDirectory builds a directory over the managed session. A non-positive
// fallbackCap falls back to DefaultParticipantFallbackLimit.
func NewDirectory(mgr *Manager, fallbackCap int) *Directory {
	if fallbackCap <= 0 {
		fallbackCap = DefaultParticipantFallbackLimit
	}
	return &Directory{mgr: mgr, fallbackCap: fallbackCap}
}

// ListGroups returns every group or channel dialog in platform iteration
// order. Requires an authenticated session; all failures, including
// authentication, come back as a structured result rather than an error.
func (d *Directory) ListGroups() (GroupsResult, error) {
	v, err := d.mgr.bridge.Run("list_groups", func(ctx context.Context) (any, error) {
		c := d.mgr.client
		if c == nil {
			return GroupsResult{Error: "Client not initialized"}, nil
		}
		authorized, err := c.IsAuthorized(ctx)
		if err != nil || !authorized {
			return GroupsResult{Error: "Not authenticated"}, nil
		}

		dialogs, err := c.Dialogs(ctx)
		if err != nil {
			slog.Error("Dialog listing failed", "error", err)
			return GroupsResult{Error: err.Error()}, nil
		}

		groups := make([]datatypes.Group, 0, len(dialogs))
		for _, dlg := range dialogs {
			if !dlg.IsGroup && !dlg.IsChannel {
				continue
			}
			groups = append(groups, d.buildGroup(ctx, c, dlg))
		}
		return GroupsResult{Success: true, Groups: groups}, nil
	})
	if err != nil {
		return GroupsResult{}, err
	}
	return v.(GroupsResult), nil
}

func (d *Directory) buildGroup(ctx context.Context, c telegram.Client, dlg telegram.Dialog) datatypes.Group {
	name := dlg.Name
	if name == "" {
		name = "Unnamed Group"
	}

	kind := "group"
	if dlg.IsChannel && !dlg.IsGroup {
		kind = "channel"
	}

	group := datatypes.Group{
		ID:          strconv.FormatInt(dlg.ID, 10),
		TelegramID:  dlg.ID,
		Name:        name,
		Type:        kind,
		UnreadCount: dlg.UnreadCount,
		Members:     d.memberCount(ctx, c, dlg),
	}
	if dlg.LastMessage != nil {
		group.LastMessage = buildPreview(dlg.ID, dlg.LastMessage)
	}
	return group
}

// memberCount prefers the count carried on the entity. When the platform
// omits it the participants are enumerated and counted, a slower best-effort
// path bounded by the fallback cap.
func (d *Directory) memberCount(ctx context.Context, c telegram.Client, dlg telegram.Dialog) int {
	if dlg.MemberCount > 0 {
		return dlg.MemberCount
	}
	participants, err := c.Participants(ctx, dlg.ID)
	if err != nil {
		slog.Debug("Participant enumeration failed", "chat_id", dlg.ID, "error", err)
		return 0
	}
	if len(participants) > d.fallbackCap {
		return d.fallbackCap
	}
	return len(participants)
}

// buildPreview converts the dialog's last message into the wire shape.
// Media-only messages carry the literal "[Media]" placeholder.
func buildPreview(chatID int64, msg *telegram.HistoryMessage) *datatypes.Message {
	content := msg.Text
	if content == "" {
		content = "[Media]"
	}

	senderID := "unknown"
	if msg.SenderID != 0 {
		senderID = strconv.FormatInt(msg.SenderID, 10)
	}

	timestamp := msg.Date
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return &datatypes.Message{
		ID:         strconv.FormatInt(msg.ID, 10),
		ChatID:     strconv.FormatInt(chatID, 10),
		SenderID:   senderID,
		SenderName: telegram.ResolveSenderName(msg.Sender),
		Content:    content,
		Timestamp:  timestamp.Format(time.RFC3339),
	}
}
