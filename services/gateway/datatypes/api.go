// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides wire types for the gateway service: the JSON
// shapes the web frontend consumes, and the validated request bodies of the
// auth endpoints.
package datatypes

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// apiValidate is the validator instance for gateway request types.
// Initialized in init() with the custom phone rule.
var apiValidate *validator.Validate

// phonePattern accepts an optional leading "+" followed by 7-15 digits,
// ignoring spaces, dots, dashes and parentheses.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// phoneSeparators strips the punctuation people type into phone numbers
// before the pattern check.
var phoneSeparators = regexp.MustCompile(`[ .\-()]`)

func init() {
	apiValidate = validator.New()
	_ = apiValidate.RegisterValidation("phone_number", validatePhoneNumber)
}

// validatePhoneNumber enforces the loose international format the platform
// accepts. Formatting separators are tolerated; letters are not.
func validatePhoneNumber(fl validator.FieldLevel) bool {
	cleaned := phoneSeparators.ReplaceAllString(fl.Field().String(), "")
	return phonePattern.MatchString(cleaned)
}

// =============================================================================
// Auth Request Types
// =============================================================================

// SendCodeRequest asks the platform to deliver a login code.
type SendCodeRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone_number"`
}

// Validate checks the request against the registered rules.
func (r *SendCodeRequest) Validate() error {
	return apiValidate.Struct(r)
}

// VerifyCodeRequest completes authentication with the delivered code.
// PhoneCodeHash is accepted for wire compatibility with clients that echo
// the send-code response; the bridge correlates the attempt itself.
type VerifyCodeRequest struct {
	PhoneNumber   string `json:"phone_number" validate:"required,phone_number"`
	Code          string `json:"code" validate:"required,min=3,max=8,numeric"`
	PhoneCodeHash string `json:"phone_code_hash,omitempty"`
}

// Validate checks the request against the registered rules.
func (r *VerifyCodeRequest) Validate() error {
	return apiValidate.Struct(r)
}

// =============================================================================
// Response Shapes
// =============================================================================

// User is the authenticated account as the frontend sees it.
type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Phone    string  `json:"phone,omitempty"`
	Avatar   *string `json:"avatar"`
}

// Group is one group or channel conversation with derived metadata.
type Group struct {
	ID          string   `json:"id"`
	TelegramID  int64    `json:"telegram_id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Avatar      *string  `json:"avatar"`
	UnreadCount int      `json:"unreadCount"`
	Members     int      `json:"members"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// Message is one text message, with augmentation flags defaulting to false
// until the analysis pipeline overwrites them.
type Message struct {
	ID           string        `json:"id"`
	ChatID       string        `json:"chatId"`
	SenderID     string        `json:"senderId"`
	SenderName   string        `json:"senderName"`
	Content      string        `json:"content"`
	Timestamp    string        `json:"timestamp"`
	IsImportant  bool          `json:"isImportant"`
	HasEvent     bool          `json:"hasEvent"`
	EventDetails *EventDetails `json:"eventDetails,omitempty"`
	IsFakeNews   bool          `json:"isFakeNews"`
}

// EventDetails describes an event extracted from a message. Type is one of
// the categories in EventCategories.
type EventDetails struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
}

// EventCategories is the closed set of event types the API emits.
var EventCategories = map[string]bool{
	"meeting":     true,
	"call":        true,
	"task":        true,
	"event":       true,
	"deadline":    true,
	"maintenance": true,
}

// NormalizeEventCategory maps arbitrary classifier output onto the closed
// category set, defaulting to "event".
func NormalizeEventCategory(category string) string {
	lowered := strings.ToLower(strings.TrimSpace(category))
	if EventCategories[lowered] {
		return lowered
	}
	return "event"
}
