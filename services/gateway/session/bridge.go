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
	"time"
)

// DefaultRunTimeout is how long a caller blocks on a bridged operation
// before giving up.
const DefaultRunTimeout = 30 * time.Second

// TimeoutError reports that a bridged operation did not finish within the
// deadline. The underlying task keeps running on the runtime; only the
// caller is unblocked.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session operation %s timed out after %s", e.Op, e.Timeout)
}

// PropagatedError wraps a failure raised inside a unit of work, preserving
// the original message across the bridge boundary.
type PropagatedError struct {
	Op  string
	Err error
}

func (e *PropagatedError) Error() string {
	return fmt.Sprintf("session operation %s failed: %s", e.Op, e.Err)
}

func (e *PropagatedError) Unwrap() error { return e.Err }

// BridgeMetrics receives bridge outcomes. Implemented by the gateway's
// observability package; nil-safe no-op when unset.
type BridgeMetrics interface {
	ObserveBridgeRun(op string, outcome string, elapsed time.Duration)
}

// Bridge is the sole crossing point between synchronous request handling and
// the asynchronous session runtime. It submits a task and blocks the calling
// goroutine until the task completes or the deadline elapses.
type Bridge struct {
	runtime *Runtime
	timeout time.Duration
	metrics BridgeMetrics
}

// NewBridge wires a bridge to a runtime. A non-positive timeout falls back
// to DefaultRunTimeout.
func NewBridge(runtime *Runtime, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Bridge{runtime: runtime, timeout: timeout}
}

// SetMetrics attaches an outcome observer. Call before serving traffic.
func (b *Bridge) SetMetrics(m BridgeMetrics) { b.metrics = m }

// Run executes one unit of work on the session runtime and blocks until it
// finishes or the bridge deadline passes. Failures inside the task surface
// as *PropagatedError; an elapsed deadline surfaces as *TimeoutError. The
// deadline covers both queueing and execution.
//
// A timed-out task is abandoned, not cancelled: it finishes on the runtime
// and its result is dropped. This is an accepted leak, matching the design's
// no-cancellation contract.
func (b *Bridge) Run(op string, task Task) (any, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	pending, err := b.runtime.Submit(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			b.observe(op, "timeout", started)
			return nil, &TimeoutError{Op: op, Timeout: b.timeout}
		}
		b.observe(op, "rejected", started)
		return nil, &PropagatedError{Op: op, Err: err}
	}

	select {
	case out := <-pending.done:
		if out.err != nil {
			b.observe(op, "error", started)
			return nil, &PropagatedError{Op: op, Err: out.err}
		}
		b.observe(op, "ok", started)
		return out.value, nil
	case <-ctx.Done():
		b.observe(op, "timeout", started)
		return nil, &TimeoutError{Op: op, Timeout: b.timeout}
	}
}

func (b *Bridge) observe(op, outcome string, started time.Time) {
	if b.metrics != nil {
		b.metrics.ObserveBridgeRun(op, outcome, time.Since(started))
	}
}
