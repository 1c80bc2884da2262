// ============================================================================
// Worker - Single Goroutine Task Execution Wrapper
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: Wraps one running goroutine so callers can start it, wait for it
//           to finish, and ask it to stop, mirroring the contract
//           original_source/thread.c exposes over a raw pthread_t.
//
// Cancellation is cooperative, not a goroutine kill: Cancel sets a flag the
// wrapped function is expected to check between units of work. Nothing in Go
// can forcibly terminate a running goroutine, and spec.md §9 treats that as
// the desired behavior anyway - tasks run to completion, schedules stop
// between tasks.
//
// ============================================================================

// Package worker wraps a single goroutine with start/join/cancel semantics,
// the primitive the schedule runtime builds its per-thread workers on top of.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyStarted is returned by Start if the Handle has already been
// started once. A Handle is single-use, matching original_source/thread.c's
// one-shot parallel_thread_create/_start pairing.
var ErrAlreadyStarted = errors.New("worker: already started")

// ErrNotStarted is returned by Join or Cancel on a Handle that was never
// started.
var ErrNotStarted = errors.New("worker: not started")

// Func is the unit of work a Handle runs. It receives a context that is
// canceled when Cancel is called, and returns whatever result the caller
// wants to retrieve via Join.
type Func func(ctx context.Context) any

// Handle represents one goroutine spawned by Start. The zero value is not
// usable; obtain one from New.
type Handle struct {
	mu      sync.Mutex
	started bool
	done    chan struct{}
	result  any

	cancel context.CancelFunc
}

// New allocates an unstarted Handle.
func New() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Start spawns fn on a new goroutine. It returns ErrAlreadyStarted if called
// more than once on the same Handle.
func (h *Handle) Start(fn Func) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.started = true
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		defer close(h.done)
		h.result = fn(ctx)
	}()
	return nil
}

// Join blocks until the goroutine started by Start returns, then yields its
// result. Join may be called any number of times and from any number of
// goroutines; every caller observes the same result once it is available.
func (h *Handle) Join() (any, error) {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	<-h.done
	return h.result, nil
}

// Cancel requests that the running function stop by canceling its context.
// Cancel does not wait for the function to observe the cancellation or
// return; call Join afterward for that. Cancel returns ErrNotStarted if the
// Handle was never started.
func (h *Handle) Cancel() error {
	h.mu.Lock()
	cancel := h.cancel
	started := h.started
	h.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	cancel()
	return nil
}

// Done returns a channel closed when the goroutine returns, for callers that
// want to select on completion alongside other events instead of blocking in
// Join.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
