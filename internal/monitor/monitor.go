// ============================================================================
// Monitor - Epoch-Based Completion Signal
// ============================================================================
//
// Package: internal/monitor
// File: monitor.go
// Function: A condition-variable-like primitive used to publish "this task
//           just completed" from one worker to any number of dependents.
//
// Why an epoch, not a boolean:
//   A dependent's wait must observe the dependency's completion exactly
//   once per iteration (spec.md §9). Under a repeating schedule, a plain
//   completion flag has to be reset between iterations, and resetting it
//   race-free against a dependent that hasn't woken up yet is awkward. A
//   monotonically increasing epoch sidesteps the reset entirely: a
//   dependent remembers the epoch it last observed and waits until the
//   upstream epoch has advanced past it, which is also how it naturally
//   handles "the upstream already finished before I started waiting" -
//   the epoch is already ahead, so Wait returns immediately.
//
// ============================================================================

// Package monitor implements the condition-variable wait/notify primitive
// the schedule runtime uses to order tasks across threads.
package monitor

import "sync"

// Monitor guards a monotonic epoch counter with a condition variable.
// Broadcast advances the epoch and wakes every waiter; Wait blocks until
// the epoch has advanced past the value the caller last observed.
//
// The zero value is not usable; construct with New.
type Monitor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	epoch  uint64
	closed bool
}

// New constructs a ready-to-use Monitor.
func New() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Wait blocks until the epoch has advanced past lastSeen, then returns the
// epoch observed and true. If Close is called first, Wait returns the last
// observed epoch and false, so a stopping worker can distinguish "the
// dependency ran" from "the schedule is shutting down".
func (m *Monitor) Wait(lastSeen uint64) (epoch uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.epoch <= lastSeen && !m.closed {
		m.cond.Wait()
	}
	return m.epoch, !m.closed
}

// Broadcast advances the epoch by one and wakes every current waiter.
// Called by the upstream task's worker after its task function returns.
func (m *Monitor) Broadcast() {
	m.mu.Lock()
	m.epoch++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Epoch returns the current epoch without waiting.
func (m *Monitor) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Close marks the monitor closed and wakes every waiter. Used at
// schedule_stop time so a worker blocked on an upstream monitor is woken
// even if that upstream never completes (spec.md §9 "Cancellation").
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
