// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the single authenticated platform session and the
// execution machinery around it. All session state lives behind one
// long-lived runtime goroutine that processes submitted tasks strictly one
// at a time; request-handling goroutines cross into it only through Bridge.
// That single-file queue is the concurrency model: the session is never
// touched from two goroutines at once, so the manager carries no locks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Task is one unit of work executed on the runtime goroutine.
type Task func(ctx context.Context) (any, error)

// outcome carries a task's result or error to the waiting caller.
type outcome struct {
	value any
	err   error
}

// Pending is the handle for a submitted task. Its channel is buffered, so
// the runtime never blocks on a caller that gave up waiting.
type Pending struct {
	done chan outcome
}

// Runtime is the process-wide task executor for session-bound operations.
// It is started once at process initialization and never restarted; Close is
// for orderly teardown only.
type Runtime struct {
	tasks   chan submission
	baseCtx context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}

	// mu fences Submit against Close: Close flips shutdown under the write
	// lock, so once it holds the lock no submitter can still be inside the
	// enqueue select and the drain below sees every queued task.
	mu       sync.RWMutex
	shutdown bool
}

type submission struct {
	task    Task
	pending *Pending
}

// queueDepth bounds how many tasks may wait behind the in-flight one.
// Callers time out through Bridge long before a queue this deep drains.
const queueDepth = 64

// ErrRuntimeClosed is returned for submissions after Close.
var ErrRuntimeClosed = errors.New("session runtime shut down")

// NewRuntime starts the runtime goroutine and returns the executor.
func NewRuntime() *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		tasks:   make(chan submission, queueDepth),
		baseCtx: ctx,
		cancel:  cancel,
		closed:  make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Runtime) loop() {
	defer close(r.closed)
	for {
		select {
		case sub := <-r.tasks:
			sub.pending.done <- r.execute(sub.task)
		case <-r.baseCtx.Done():
			return
		}
	}
}

// execute runs one task, converting panics into errors so a misbehaving task
// cannot take the runtime goroutine down with it.
//
// The task receives the runtime's base context, not the submitting caller's:
// a caller timing out must never cancel work already running against the
// platform session.
func (r *Runtime) execute(task Task) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Recovered panic in session task", "panic", rec, "stack", string(debug.Stack()))
			out = outcome{err: fmt.Errorf("session task panicked: %v", rec)}
		}
	}()
	value, err := task(r.baseCtx)
	return outcome{value: value, err: err}
}

// Submit enqueues a task and returns its pending handle. It blocks while the
// queue is full, until ctx expires or the runtime shuts down. The ctx bounds
// only the enqueue; the task itself runs on the runtime's own context.
func (r *Runtime) Submit(ctx context.Context, task Task) (*Pending, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shutdown {
		return nil, ErrRuntimeClosed
	}

	pending := &Pending{done: make(chan outcome, 1)}
	select {
	case r.tasks <- submission{task: task, pending: pending}:
		return pending, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.baseCtx.Done():
		return nil, ErrRuntimeClosed
	}
}

// Close stops the runtime after the in-flight task finishes. Queued tasks
// that never ran report a shutdown error to their callers.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		// Cancel first so submitters blocked on a full queue unwind and
		// release their read locks instead of deadlocking against us.
		r.cancel()
		r.mu.Lock()
		r.shutdown = true
		r.mu.Unlock()
		<-r.closed
		for {
			select {
			case sub := <-r.tasks:
				sub.pending.done <- outcome{err: ErrRuntimeClosed}
			default:
				return
			}
		}
	})
}
