// ============================================================================
// Schedule Runtime
// ============================================================================
//
// Package: internal/runtime
// File: runtime.go
// Function: Owns one worker per declared thread of a built graph.Schedule,
//           enforcing the wait -> execute -> notify protocol across threads
//           (§4.4) and exposing the start/wait_idle/pause/stop/destroy
//           lifecycle (§6).
//
// The main thread, if the document names one, runs inline on the caller's
// goroutine rather than being spawned - chosen over the alternative
// permitted by §9 "Main-thread ambiguity" because it matches
// original_source/parallel.c's hardcoded skip of "Main Thread" in
// schedule_start, and is friendlier for callers embedding a schedule inside
// their own event loop. A repeating main thread therefore blocks Start for
// as long as the schedule runs; stopping it requires Stop to be called from
// another goroutine, which cancels the shared context Start is watching.
//
// ============================================================================

// Package runtime executes a built graph.Schedule: one worker goroutine per
// thread, cross-thread ordering enforced via per-task monitors.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsmith-labs/parallel/internal/graph"
	"github.com/jsmith-labs/parallel/internal/metrics"
	"github.com/jsmith-labs/parallel/internal/worker"
)

var log = slog.Default()

var (
	// ErrAlreadyStarted is returned by Start on a Schedule already started.
	ErrAlreadyStarted = errors.New("runtime: schedule already started")
	// ErrNotStarted is returned by WaitIdle, Pause, or Stop before Start.
	ErrNotStarted = errors.New("runtime: schedule not started")
)

// Schedule is a running instance of a built graph.Schedule. The zero value
// is not usable; construct with New.
type Schedule struct {
	g *graph.Schedule

	mu      sync.Mutex
	started bool
	stopped bool
	repeat  bool

	runID      uuid.UUID
	handles    map[string]*worker.Handle
	mainCancel context.CancelFunc
	wg         sync.WaitGroup

	metrics *metrics.Metrics
}

// New wraps a built graph.Schedule for execution.
func New(g *graph.Schedule) *Schedule {
	return &Schedule{g: g, handles: make(map[string]*worker.Handle)}
}

// WithMetrics attaches a Metrics instance that Start/runThread report task
// and dependency-wait activity to. Optional; a Schedule with no metrics
// attached runs unobserved.
func (s *Schedule) WithMetrics(m *metrics.Metrics) *Schedule {
	s.metrics = m
	return s
}

// RunID returns the identifier stamped on the most recent Start call, the
// zero UUID before the first Start.
func (s *Schedule) RunID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Start spawns one worker goroutine per declared thread other than the
// main thread, then - if the document names a main thread - runs that
// thread's task list inline on the calling goroutine, returning once it
// exits (or, under repeat, once Stop cancels it from elsewhere).
func (s *Schedule) Start(parameter any) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.repeat = s.g.Repeat
	s.runID = uuid.New()

	// s.mu stays held until every worker is spawned, so a concurrent Stop
	// sees every handle and the main thread's cancel func.
	log.Info("schedule starting", "schedule", s.g.Name, "run_id", s.runID, "repeat", s.g.Repeat)

	var mainCtx context.Context
	if s.g.MainThread != "" {
		mainCtx, s.mainCancel = context.WithCancel(context.Background())
	}

	for _, name := range s.g.ThreadsOrd {
		if name == s.g.MainThread {
			continue
		}
		h := worker.New()
		s.handles[name] = h
		s.wg.Add(1)
		threadName := name
		if err := h.Start(func(ctx context.Context) any {
			defer s.wg.Done()
			s.runThread(ctx, threadName, parameter)
			return nil
		}); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("runtime: spawn thread %q: %w", threadName, err)
		}
	}
	s.mu.Unlock()

	if s.g.MainThread != "" {
		s.runThread(mainCtx, s.g.MainThread, parameter)
	}
	return nil
}

// runThread executes threadName's task list in order, looping while repeat
// is set, until ctx is canceled or the list is exhausted without repeat.
func (s *Schedule) runThread(ctx context.Context, threadName string, parameter any) {
	thread := s.g.Threads[threadName]
	lastSeen := make(map[*graph.Task]uint64, len(thread.Tasks))

	if s.metrics != nil {
		s.metrics.ThreadsRunning.Inc()
		defer s.metrics.ThreadsRunning.Dec()
	}

	for {
		if ctx.Err() != nil {
			return
		}

		for _, t := range thread.Tasks {
			if ctx.Err() != nil {
				return
			}

			if t.Dependent {
				waitStart := time.Now()
				epoch, ok := t.WaitTarget.Monitor.Wait(lastSeen[t])
				if s.metrics != nil {
					s.metrics.TasksDependencyWaits.WithLabelValues(threadName, t.Name).Inc()
					s.metrics.TaskDependencyWaitTime.WithLabelValues(threadName, t.Name).Observe(time.Since(waitStart).Seconds())
				}
				if !ok {
					log.Debug("wait interrupted by stop", "thread", threadName, "task", t.Name)
					return
				}
				lastSeen[t] = epoch
			}

			if ctx.Err() != nil {
				return
			}

			if s.metrics != nil {
				s.metrics.TasksStarted.WithLabelValues(threadName, t.Name).Inc()
			}
			log.Debug("task start", "thread", threadName, "task", t.Name)
			t.Fn(parameter)
			log.Debug("task complete", "thread", threadName, "task", t.Name)
			if s.metrics != nil {
				s.metrics.TasksCompleted.WithLabelValues(threadName, t.Name).Inc()
			}

			if t.Dependency {
				t.Monitor.Broadcast()
			}
		}

		if !s.repeating() {
			return
		}
	}
}

func (s *Schedule) repeating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

// WaitIdle blocks until every spawned worker's task loop has returned. It
// does not cover an inline, repeating main thread - that loop occupies the
// goroutine that called Start, and Start itself is the caller's wait point
// in that case.
func (s *Schedule) WaitIdle() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	s.wg.Wait()
	return nil
}

// Pause clears the repeat flag; in-flight loop iterations complete
// naturally before each worker exits (§4.4).
func (s *Schedule) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	s.repeat = false
	return nil
}

// Stop requests cancellation of every worker and the inline main thread (if
// any), then joins the spawned workers. Safe to call concurrently with
// Start and with itself; a second call is a no-op (§8 idempotence).
func (s *Schedule) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	handles := make([]*worker.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	mainCancel := s.mainCancel
	s.mu.Unlock()

	log.Info("schedule stopping", "schedule", s.g.Name, "run_id", s.runID)

	// Broadcast every task's monitor so a worker blocked waiting on an
	// upstream that never completes wakes up instead of hanging forever
	// (§9 "Cancellation": broadcast all known monitors at stop time).
	for _, thread := range s.g.Threads {
		for _, t := range thread.Tasks {
			t.Monitor.Close()
		}
	}

	if mainCancel != nil {
		mainCancel()
	}
	for _, h := range handles {
		_ = h.Cancel()
	}
	for _, h := range handles {
		_, _ = h.Join()
	}
	return nil
}

// Destroy releases the Schedule's reference to its handles. Go's garbage
// collector reclaims everything else; Destroy exists to preserve the §6
// API shape and to catch a caller destroying a schedule whose workers were
// never joined.
func (s *Schedule) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started && !s.stopped {
		return errors.New("runtime: destroy called before stop")
	}
	s.handles = nil
	return nil
}
