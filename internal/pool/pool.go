// ============================================================================
// Thread Pool - Fixed-Size Worker Slot Array
// ============================================================================
//
// Package: internal/pool
// File: pool.go
// Function: A fixed set of worker goroutines, each owning one job slot,
//           dispatching arbitrary (function, parameter) work items with
//           first-idle-wins selection (§4.6).
//
// Deliberately a flat slot array, not a job queue: spec.md §4.6 offers
// either shape, and original_source/thread_pool.c's queue-backed attempt
// (thread_pool_construct/_run) was itself unfinished - the slot array is
// simpler and is what this package implements. Each slot is its own
// goroutine blocked on its own monitor between jobs; Execute scans for an
// idle slot under the pool mutex and hands it work.
//
// ============================================================================

// Package pool implements the fixed-size worker pool described in §4.6:
// construct with a worker count, dispatch (fn, parameter) pairs, wait for
// all workers to go idle, and tear down.
package pool

import (
	"errors"
	"runtime"
	"sync"

	"github.com/jsmith-labs/parallel/internal/monitor"
)

// ErrClosed is returned by Execute once Destroy has been called.
var ErrClosed = errors.New("pool: closed")

// ErrNoIdleSlot is returned by TryExecute when every slot is currently busy.
var ErrNoIdleSlot = errors.New("pool: no idle slot")

// Func is the work item signature a Pool dispatches.
type Func func(parameter any) any

// slot is one worker's record: its running flag, its assigned job, the
// result of its last job, and the monitor it blocks on between jobs.
type slot struct {
	mu      sync.Mutex
	monitor *monitor.Monitor
	running bool
	fn      Func
	param   any
	result  any
}

// Pool is a fixed-size set of worker goroutines dispatching arbitrary
// (function, parameter) work items. The zero value is not usable;
// construct with New.
type Pool struct {
	mu     sync.Mutex
	slots  []*slot
	closed bool
	wg     sync.WaitGroup
}

// New constructs and starts a pool of count worker goroutines. count must
// be at least 1.
func New(count int) (*Pool, error) {
	if count < 1 {
		return nil, errors.New("pool: count must be at least 1")
	}

	p := &Pool{
		slots: make([]*slot, count),
	}
	for i := range p.slots {
		p.slots[i] = &slot{monitor: monitor.New()}
	}

	p.wg.Add(count)
	for _, s := range p.slots {
		go p.runSlot(s)
	}
	return p, nil
}

// runSlot is one worker's loop: wait for a job on its slot monitor, run it,
// record the result, go idle, repeat. Exits when the pool closes its
// monitor (Destroy).
func (p *Pool) runSlot(s *slot) {
	defer p.wg.Done()

	var lastSeen uint64
	for {
		epoch, ok := s.monitor.Wait(lastSeen)
		if !ok {
			return
		}
		lastSeen = epoch

		s.mu.Lock()
		fn, param := s.fn, s.param
		s.mu.Unlock()

		result := fn(param)

		s.mu.Lock()
		s.result = result
		s.running = false
		s.mu.Unlock()
	}
}

// Execute dispatches fn(parameter) to the first idle slot found, blocking
// and retrying until one is available. Fair selection is not guaranteed
// (§4.6): first-idle-wins.
func (p *Pool) Execute(fn Func, parameter any) error {
	for {
		err := p.TryExecute(fn, parameter)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoIdleSlot) {
			return err
		}
		runtime.Gosched()
	}
}

// TryExecute attempts a single dispatch pass, returning ErrNoIdleSlot
// immediately if every slot is busy instead of retrying.
func (p *Pool) TryExecute(fn Func, parameter any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}

	for _, s := range p.slots {
		s.mu.Lock()
		if !s.running {
			s.fn, s.param, s.running = fn, parameter, true
			s.mu.Unlock()
			p.mu.Unlock()
			s.monitor.Broadcast()
			return nil
		}
		s.mu.Unlock()
	}
	p.mu.Unlock()
	return ErrNoIdleSlot
}

// BusyCount returns the number of slots currently running a job.
func (p *Pool) BusyCount() int {
	busy := 0
	for _, s := range p.slots {
		s.mu.Lock()
		if s.running {
			busy++
		}
		s.mu.Unlock()
	}
	return busy
}

// Size returns the number of worker slots in the pool.
func (p *Pool) Size() int { return len(p.slots) }

// WaitIdle blocks until every slot's running flag is false, yielding the
// CPU between checks as §5 requires of any polling wait-idle.
func (p *Pool) WaitIdle() {
	for p.BusyCount() > 0 {
		runtime.Gosched()
	}
}

// Destroy stops accepting new work and waits for every worker goroutine to
// return. Destroy must only be called after WaitIdle has returned (§4.6);
// calling it while jobs are in flight abandons their results.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for _, s := range p.slots {
		s.monitor.Close()
	}
	p.wg.Wait()
}
