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

import "context"

// Client is the platform capability the session layer consumes. Exactly one
// client is live per process; the session runtime serializes every call, so
// implementations are not required to be safe for concurrent use.
type Client interface {
	// Connect opens the underlying transport and restores any persisted
	// credentials for this client's phone number.
	Connect(ctx context.Context) error

	// Disconnect closes the transport. Safe to call on a client that never
	// connected.
	Disconnect(ctx context.Context) error

	// SendCode asks the platform to deliver a login code to the phone
	// number and returns the phone-code hash correlating the attempt.
	SendCode(ctx context.Context, phone string) (string, error)

	// SignIn completes authentication with the delivered code.
	SignIn(ctx context.Context, phone, code string) error

	// IsAuthorized reports whether the restored or signed-in session is
	// usable without further authentication.
	IsAuthorized(ctx context.Context) (bool, error)

	// Me returns the authenticated account's identity.
	Me(ctx context.Context) (*Account, error)

	// Dialogs lists the account's conversations in platform order.
	Dialogs(ctx context.Context) ([]Dialog, error)

	// Participants enumerates the members of one group or channel.
	Participants(ctx context.Context, chatID int64) ([]Sender, error)

	// History returns up to limit most-recent messages of a conversation.
	History(ctx context.Context, chatID int64, limit int) ([]HistoryMessage, error)
}

// Factory builds a Client bound to one phone number. The session manager
// calls it whenever a fresh session is needed (first login, or a login under
// a different number).
type Factory func(phone string) (Client, error)
