// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis augments fetched messages with importance, event, and
// misinformation flags. The LLM-backed pipeline sends one batch prompt per
// fetch and merges the verdicts back by position; when no LLM backend is
// configured, the keyword heuristic stands in. Augmentation is best-effort
// throughout: it may leave flags at their defaults, but it never fails a
// fetch and never reorders, drops, or duplicates a message.
package analysis

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
	"github.com/AleutianAI/ChannelPulse/services/llm"
)

var pipelineTracer = otel.Tracer("channelpulse.gateway.analysis")

// Metrics receives augmentation outcomes. Implemented by the gateway's
// observability package; nil-safe no-op when unset.
type Metrics interface {
	ObserveAugmentation(outcome string)
}

// Pipeline classifies message batches through an LLM backend.
type Pipeline struct {
	client  llm.LLMClient
	metrics Metrics

	// now anchors relative event dates; overridable in tests.
	now func() time.Time
}

// NewPipeline builds a pipeline over an LLM backend.
func NewPipeline(client llm.LLMClient) *Pipeline {
	return &Pipeline{client: client, now: time.Now}
}

// SetMetrics attaches an outcome observer. Call before serving traffic.
func (p *Pipeline) SetMetrics(m Metrics) { p.metrics = m }

// Augment classifies the batch with a single LLM call and patches the
// verdicts onto the corresponding messages. The returned slice always has
// the same length and order as the input; on any failure the input comes
// back unmodified.
func (p *Pipeline) Augment(ctx context.Context, messages []datatypes.Message) []datatypes.Message {
	if len(messages) == 0 {
		return messages
	}

	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Augment")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(messages)))

	prompt, err := buildPrompt(messages)
	if err != nil {
		slog.Warn("Failed to build classification prompt, skipping augmentation", "error", err)
		p.observe("prompt_error")
		return messages
	}

	temperature := float32(0.1)
	maxTokens := 4096
	reply, err := p.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		slog.Warn("Classifier call failed, returning messages unaugmented", "error", err)
		p.observe("llm_error")
		return messages
	}

	results, err := ParseAnalysisResults(reply)
	if err != nil {
		slog.Warn("Classifier reply unparsable, returning messages unaugmented", "error", err)
		p.observe("parse_error")
		return messages
	}

	fetchTime := p.now()
	patched := 0
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(messages) {
			slog.Debug("Classifier index out of range, ignoring", "index", result.Index, "batch_size", len(messages))
			continue
		}
		applyResult(&messages[result.Index], result, fetchTime)
		patched++
	}

	span.SetAttributes(attribute.Int("patched", patched))
	p.observe("ok")
	return messages
}

// applyResult overwrites one message's flags with the classifier's verdict.
func applyResult(msg *datatypes.Message, result AnalysisResult, fetchTime time.Time) {
	msg.IsImportant = result.IsImportant
	msg.IsFakeNews = result.IsFakeNews
	msg.HasEvent = result.HasEvent

	if !result.HasEvent {
		msg.EventDetails = nil
		return
	}
	if result.EventDetails == nil {
		return
	}
	msg.EventDetails = &datatypes.EventDetails{
		Title:       result.EventDetails.Title,
		Date:        ResolveEventDate(result.EventDetails.Date, fetchTime),
		Time:        result.EventDetails.Time,
		Description: result.EventDetails.Description,
		Type:        datatypes.NormalizeEventCategory(result.EventDetails.Type),
	}
}

func (p *Pipeline) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveAugmentation(outcome)
	}
}
