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
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func awaitOutcome(t *testing.T, pending *Pending) (any, error) {
	t.Helper()
	select {
	case out := <-pending.done:
		return out.value, out.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task outcome")
		return nil, nil
	}
}

func TestRuntimeExecutesSubmittedTask(t *testing.T) {
	r := NewRuntime()
	defer r.Close()

	pending, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	value, taskErr := awaitOutcome(t, pending)
	if taskErr != nil {
		t.Fatalf("unexpected task error: %v", taskErr)
	}
	if value != 42 {
		t.Errorf("got %v, want 42", value)
	}
}

func TestRuntimeRunsOneTaskAtATime(t *testing.T) {
	r := NewRuntime()
	defer r.Close()

	var inFlight, maxInFlight int32
	var pendings []*Pending
	for i := 0; i < 8; i++ {
		pending, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
			current := atomic.AddInt32(&inFlight, 1)
			if current > atomic.LoadInt32(&maxInFlight) {
				atomic.StoreInt32(&maxInFlight, current)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
		pendings = append(pendings, pending)
	}
	for _, pending := range pendings {
		awaitOutcome(t, pending)
	}
	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("observed %d concurrent tasks, want 1", got)
	}
}

func TestRuntimeRecoversPanickingTask(t *testing.T) {
	r := NewRuntime()
	defer r.Close()

	pending, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	_, taskErr := awaitOutcome(t, pending)
	if taskErr == nil {
		t.Fatal("expected an error from a panicking task")
	}
	if !strings.Contains(taskErr.Error(), "panicked") {
		t.Errorf("unexpected error: %v", taskErr)
	}

	// The runtime goroutine must survive the panic.
	pending, err = r.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "alive", nil
	})
	if err != nil {
		t.Fatalf("submit after panic failed: %v", err)
	}
	value, taskErr := awaitOutcome(t, pending)
	if taskErr != nil || value != "alive" {
		t.Errorf("runtime did not survive the panic: value=%v err=%v", value, taskErr)
	}
}

func TestRuntimeSubmitAfterClose(t *testing.T) {
	r := NewRuntime()
	r.Close()

	_, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrRuntimeClosed) {
		t.Errorf("got %v, want ErrRuntimeClosed", err)
	}
}

// Every submission racing a Close must resolve: either Submit refuses with
// ErrRuntimeClosed, or the enqueued task reports an outcome. A submission
// slipping into the queue after the shutdown drain would leave its caller
// hanging until the bridge deadline.
func TestRuntimeSubmitCloseRaceResolvesEverySubmission(t *testing.T) {
	for round := 0; round < 20; round++ {
		r := NewRuntime()

		const submitters = 8
		results := make(chan error, submitters)
		start := make(chan struct{})
		for i := 0; i < submitters; i++ {
			go func() {
				<-start
				pending, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
					return nil, nil
				})
				if err != nil {
					results <- err
					return
				}
				select {
				case out := <-pending.done:
					results <- out.err
				case <-time.After(5 * time.Second):
					results <- errors.New("submission never resolved")
				}
			}()
		}

		close(start)
		r.Close()

		for i := 0; i < submitters; i++ {
			err := <-results
			if err != nil && !errors.Is(err, ErrRuntimeClosed) {
				t.Fatalf("round %d: submission %d resolved with %v", round, i, err)
			}
		}
	}
}

func TestRuntimeCloseIsIdempotent(t *testing.T) {
	r := NewRuntime()
	r.Close()
	r.Close()
}

func TestRuntimeSubmitHonorsContext(t *testing.T) {
	r := NewRuntime()
	defer r.Close()

	// Wedge the runtime, then fill the queue so the next submit must block.
	release := make(chan struct{})
	blocker, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit blocker failed: %v", err)
	}
	for i := 0; i < queueDepth; i++ {
		if _, err := r.Submit(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		}); err != nil {
			t.Fatalf("submit filler %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}

	close(release)
	awaitOutcome(t, blocker)
}
