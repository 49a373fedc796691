// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/llm"
)

// stubLLM returns a canned reply or error and records call counts.
type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func makeBatch(n int) []datatypes.Message {
	messages := make([]datatypes.Message, n)
	for i := range messages {
		messages[i] = datatypes.Message{
			ID:         fmt.Sprintf("%d", 1000+i),
			ChatID:     "42",
			SenderID:   "7",
			SenderName: "Alice",
			Content:    fmt.Sprintf("message %d", i),
			Timestamp:  "2025-03-10T12:00:00Z",
		}
	}
	return messages
}

func newTestPipeline(client llm.LLMClient, now time.Time) *Pipeline {
	p := NewPipeline(client)
	p.now = func() time.Time { return now }
	return p
}

func TestAugmentPatchesOnlyReferencedIndices(t *testing.T) {
	client := &stubLLM{reply: `[
		{"index":2,"is_important":true},
		{"index":5,"is_fake_news":true}
	]`}
	p := newTestPipeline(client, time.Now())

	got := p.Augment(context.Background(), makeBatch(10))

	if len(got) != 10 {
		t.Fatalf("batch length changed: got %d, want 10", len(got))
	}
	for i, msg := range got {
		wantImportant := i == 2
		wantFake := i == 5
		if msg.IsImportant != wantImportant {
			t.Errorf("message %d: isImportant = %v, want %v", i, msg.IsImportant, wantImportant)
		}
		if msg.IsFakeNews != wantFake {
			t.Errorf("message %d: isFakeNews = %v, want %v", i, msg.IsFakeNews, wantFake)
		}
		if msg.HasEvent {
			t.Errorf("message %d: hasEvent unexpectedly true", i)
		}
	}
}

func TestAugmentIgnoresOutOfRangeIndices(t *testing.T) {
	client := &stubLLM{reply: `[
		{"index":150,"is_important":true},
		{"index":-1,"is_important":true},
		{"index":1,"is_important":true}
	]`}
	p := newTestPipeline(client, time.Now())

	got := p.Augment(context.Background(), makeBatch(3))

	if got[0].IsImportant || got[2].IsImportant {
		t.Error("out-of-range verdicts leaked onto other messages")
	}
	if !got[1].IsImportant {
		t.Error("in-range verdict was not applied")
	}
}

func TestAugmentReturnsInputUnchangedOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		client *stubLLM
	}{
		{"llm error", &stubLLM{err: errors.New("backend down")}},
		{"unparsable reply", &stubLLM{reply: "I refuse to answer in JSON."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(tt.client, time.Now())
			batch := makeBatch(4)
			batch[1].IsImportant = true // pre-existing flag must survive

			got := p.Augment(context.Background(), batch)

			if len(got) != 4 {
				t.Fatalf("batch length changed: got %d, want 4", len(got))
			}
			if !got[1].IsImportant {
				t.Error("pre-existing flag was lost")
			}
			for i, msg := range got {
				if msg.HasEvent || msg.IsFakeNews {
					t.Errorf("message %d gained flags despite the failure", i)
				}
			}
		})
	}
}

func TestAugmentResolvesEventDatesAndCategories(t *testing.T) {
	fetchTime := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	client := &stubLLM{reply: `[{
		"index":0,"has_event":true,
		"event_details":{"title":"Standup","date":"tomorrow","time":"9:00 AM","description":"daily sync","type":"standup"}
	}]`}
	p := newTestPipeline(client, fetchTime)

	got := p.Augment(context.Background(), makeBatch(1))

	details := got[0].EventDetails
	if details == nil {
		t.Fatal("event details missing")
	}
	wantDate := fetchTime.AddDate(0, 0, 1).Format(time.RFC3339)
	if details.Date != wantDate {
		t.Errorf("date = %q, want %q", details.Date, wantDate)
	}
	// "standup" is not a known category and must normalize to "event"
	if details.Type != "event" {
		t.Errorf("type = %q, want %q", details.Type, "event")
	}
	if details.Time != "9:00 AM" {
		t.Errorf("time = %q, want %q", details.Time, "9:00 AM")
	}
}

func TestAugmentClearsDetailsWhenEventRetracted(t *testing.T) {
	client := &stubLLM{reply: `[{"index":0,"has_event":false}]`}
	p := newTestPipeline(client, time.Now())

	batch := makeBatch(1)
	batch[0].HasEvent = true
	batch[0].EventDetails = &datatypes.EventDetails{Title: "stale"}

	got := p.Augment(context.Background(), batch)

	if got[0].HasEvent {
		t.Error("hasEvent should be false after the verdict")
	}
	if got[0].EventDetails != nil {
		t.Error("stale event details were not cleared")
	}
}

func TestAugmentEventWithoutDetailsKeepsFlag(t *testing.T) {
	client := &stubLLM{reply: `[{"index":0,"has_event":true}]`}
	p := newTestPipeline(client, time.Now())

	got := p.Augment(context.Background(), makeBatch(1))

	if !got[0].HasEvent {
		t.Error("hasEvent should survive a detail-less verdict")
	}
	if got[0].EventDetails != nil {
		t.Error("details should stay nil when the classifier sent none")
	}
}

func TestAugmentEmptyBatchSkipsBackend(t *testing.T) {
	client := &stubLLM{reply: "[]"}
	p := newTestPipeline(client, time.Now())

	got := p.Augment(context.Background(), nil)

	if len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
	if client.calls != 0 {
		t.Errorf("backend called %d times for an empty batch", client.calls)
	}
}

func TestBuildPromptEnumeratesBatch(t *testing.T) {
	batch := makeBatch(3)
	batch[2].Content = "final call for the offsite"

	prompt, err := buildPrompt(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"[0]", "[1]", "[2]", "final call for the offsite", "Alice"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
