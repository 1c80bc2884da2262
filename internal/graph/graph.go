// ============================================================================
// Dependency Graph Builder
// ============================================================================
//
// Package: internal/graph
// File: graph.go
// Function: Parses a schedule document (§6 schema) into an in-memory
//           Schedule, resolving task functions against a registry and
//           cross-resolving "wait" edges into pointers between descriptors.
//
// Three-level load API, mirroring original_source/parallel.c's
// schedule_load / _load_as_json_text / _load_as_json_value layering: Load
// reads a file, BuildFromText parses a JSON string, BuildFromValue builds
// from an already-decoded document. Each layer is usable on its own.
//
// ============================================================================

// Package graph builds a validated dependency graph from a schedule
// document and the process's task registry.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jsmith-labs/parallel/internal/monitor"
	"github.com/jsmith-labs/parallel/pkg/task"
)

// MaxThreads is the largest number of threads a schedule may declare (§6).
const MaxThreads = 64

// MaxTasksPerThread is the largest number of tasks a single thread may list (§6).
const MaxTasksPerThread = 256

var (
	// ErrEmptyThreads is returned when a document's threads object has no entries.
	ErrEmptyThreads = errors.New("graph: threads must not be empty")
	// ErrTooManyThreads is returned when a document declares more than MaxThreads.
	ErrTooManyThreads = errors.New("graph: too many threads")
	// ErrEmptyTaskList is returned when a declared thread has zero tasks.
	ErrEmptyTaskList = errors.New("graph: thread must have at least one task")
	// ErrTooManyTasks is returned when a thread declares more than MaxTasksPerThread.
	ErrTooManyTasks = errors.New("graph: too many tasks in thread")
	// ErrNameLength is returned when a name is empty or exceeds task.MaxNameLength.
	ErrNameLength = errors.New("graph: name must be 1..63 characters")
	// ErrDuplicateTaskName is returned when two tasks in the same thread share a name.
	ErrDuplicateTaskName = errors.New("graph: duplicate task name within thread")
	// ErrMalformedWait is returned when a "wait" string lacks the "thread:task" shape.
	ErrMalformedWait = errors.New("graph: wait must be \"thread:task\"")
	// ErrUnknownWaitThread is returned when a wait target's thread does not exist.
	ErrUnknownWaitThread = errors.New("graph: wait references unknown thread")
	// ErrUnknownWaitTask is returned when a wait target's task does not exist in its thread.
	ErrUnknownWaitTask = errors.New("graph: wait references unknown task")
	// ErrUnresolvedTask is returned when a task record names a function absent from the registry.
	ErrUnresolvedTask = errors.New("graph: unresolved task name")
	// ErrSelfDependency is returned when a task waits on itself.
	ErrSelfDependency = errors.New("graph: task cannot wait on itself")
	// ErrCycle is returned when the wait edges form a cycle.
	ErrCycle = errors.New("graph: cyclic dependency")
	// ErrUnknownMainThread is returned when main_thread names a thread not present in the document.
	ErrUnknownMainThread = errors.New("graph: main_thread references unknown thread")
)

// Task is one resolved entry in a Thread's task list.
type Task struct {
	Name string
	Fn   task.Func

	// Dependent is true iff Wait was set in the source document.
	Dependent  bool
	WaitThread string
	WaitTask   string
	// WaitTarget is the resolved upstream task this one waits on, set during
	// the cross-resolve pass. Populated iff Dependent.
	WaitTarget *Task

	// Dependency is true iff some other task's wait targets this one.
	Dependency bool
	// Dependencies counts the distinct tasks that wait on this one (diagnostics).
	Dependencies int

	// Monitor publishes this task's completion to its dependents. Present on
	// every task (cheap to allocate, simpler than a nil check everywhere);
	// only ever broadcast on if Dependency is true.
	Monitor *monitor.Monitor
}

// Thread is one named, ordered list of tasks, run by one worker.
type Thread struct {
	Name  string
	Tasks []*Task
}

// Schedule is the root object produced by Build: a named collection of
// threads plus the repeat/main_thread metadata from the source document.
type Schedule struct {
	Name       string
	Threads    map[string]*Thread
	ThreadsOrd []string // insertion order, for deterministic iteration in tests/CLI
	Repeat     bool
	MainThread string // empty if unset
}

// document mirrors the §6 JSON schema exactly for decoding.
type document struct {
	Name       string                  `json:"name"`
	MainThread string                  `json:"main_thread"`
	Repeat     bool                    `json:"repeat"`
	Threads    map[string][]taskRecord `json:"threads"`
}

type taskRecord struct {
	Task string `json:"task"`
	Wait string `json:"wait"`
}

// Load reads path from disk and builds a Schedule against registry.
func Load(path string, registry *task.Registry) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", path, err)
	}
	return BuildFromText(string(data), registry)
}

// BuildFromText parses raw JSON text and builds a Schedule against registry.
func BuildFromText(text string, registry *task.Registry) (*Schedule, error) {
	var value map[string]any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("graph: parse document: %w", err)
	}
	return BuildFromValue(value, registry)
}

// BuildFromValue builds a Schedule from an already-decoded JSON value (the
// shape produced by json.Unmarshal into a map[string]any). This is the
// innermost of the three load layers; Load and BuildFromText both funnel
// into it once they have bytes in hand.
func BuildFromValue(value map[string]any, registry *task.Registry) (*Schedule, error) {
	// Round-trip through the typed struct rather than walking the generic
	// map by hand: encoding/json already knows how to apply the §6 schema's
	// field names and types, and re-marshaling a decoded map is cheap next
	// to the cost of building the schedule itself.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("graph: re-encode document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("graph: parse document: %w", err)
	}
	return build(&doc, registry)
}

func build(doc *document, registry *task.Registry) (*Schedule, error) {
	if len(doc.Name) == 0 || len(doc.Name) > task.MaxNameLength {
		return nil, fmt.Errorf("%w: schedule name", ErrNameLength)
	}
	if len(doc.Threads) == 0 {
		return nil, ErrEmptyThreads
	}
	if len(doc.Threads) > MaxThreads {
		return nil, ErrTooManyThreads
	}

	sched := &Schedule{
		Name:       doc.Name,
		Threads:    make(map[string]*Thread, len(doc.Threads)),
		Repeat:     doc.Repeat,
		MainThread: doc.MainThread,
	}

	// Pass 1: validate shape, resolve task functions, copy wait strings
	// without cross-resolving them yet (a forward-referenced thread may not
	// exist in the map until this loop finishes).
	//
	// Go map iteration order is randomized; threads are sorted by name so
	// ThreadsOrd (and therefore worker startup order) is reproducible run to
	// run.
	names := sortedKeys(doc.Threads)
	for _, name := range names {
		if len(name) == 0 || len(name) > task.MaxNameLength {
			return nil, fmt.Errorf("%w: thread %q", ErrNameLength, name)
		}
		records := doc.Threads[name]
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: thread %q", ErrEmptyTaskList, name)
		}
		if len(records) > MaxTasksPerThread {
			return nil, fmt.Errorf("%w: thread %q", ErrTooManyTasks, name)
		}

		thread := &Thread{Name: name, Tasks: make([]*Task, 0, len(records))}
		seen := make(map[string]bool, len(records))

		for _, rec := range records {
			if len(rec.Task) == 0 || len(rec.Task) > task.MaxNameLength {
				return nil, fmt.Errorf("%w: task %q in thread %q", ErrNameLength, rec.Task, name)
			}
			if seen[rec.Task] {
				return nil, fmt.Errorf("%w: %q in thread %q", ErrDuplicateTaskName, rec.Task, name)
			}
			seen[rec.Task] = true

			fn, err := registry.Lookup(rec.Task)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrUnresolvedTask, rec.Task)
			}

			t := &Task{Name: rec.Task, Fn: fn, Monitor: monitor.New()}
			if rec.Wait != "" {
				waitThread, waitTask, err := splitWait(rec.Wait)
				if err != nil {
					return nil, err
				}
				t.Dependent = true
				t.WaitThread = waitThread
				t.WaitTask = waitTask
			}
			thread.Tasks = append(thread.Tasks, t)
		}

		sched.Threads[name] = thread
		sched.ThreadsOrd = append(sched.ThreadsOrd, name)
	}

	if doc.MainThread != "" {
		if _, ok := sched.Threads[doc.MainThread]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMainThread, doc.MainThread)
		}
	}

	// Pass 2: cross-resolve wait targets (§4.3 step 4).
	for _, thread := range sched.Threads {
		for _, t := range thread.Tasks {
			if !t.Dependent {
				continue
			}
			if t.WaitThread == thread.Name && t.WaitTask == t.Name {
				return nil, fmt.Errorf("%w: %q:%q", ErrSelfDependency, thread.Name, t.Name)
			}
			upstreamThread, ok := sched.Threads[t.WaitThread]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownWaitThread, t.WaitThread)
			}
			upstream := findTask(upstreamThread, t.WaitTask)
			if upstream == nil {
				return nil, fmt.Errorf("%w: %q:%q", ErrUnknownWaitTask, t.WaitThread, t.WaitTask)
			}
			// A task waiting on a later task in its own thread can never be
			// satisfied: the thread executes its list strictly in order, so
			// it blocks on the wait before it ever reaches the upstream
			// task. Not a cycle in the wait graph (the upstream may have no
			// wait of its own), but a deadlock of the same shape - spec.md
			// §9 flags this as an open question; treated as a build error.
			if t.WaitThread == thread.Name && indexOf(thread, upstream) > indexOf(thread, t) {
				return nil, fmt.Errorf("%w: %q waits on later task %q in the same thread", ErrCycle, t.Name, upstream.Name)
			}
			upstream.Dependency = true
			upstream.Dependencies++
			t.WaitTarget = upstream
		}
	}

	if err := detectCycles(sched); err != nil {
		return nil, err
	}

	return sched, nil
}

func splitWait(wait string) (waitThread, waitTask string, err error) {
	idx := strings.IndexByte(wait, ':')
	if idx < 0 || strings.IndexByte(wait[idx+1:], ':') >= 0 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedWait, wait)
	}
	waitThread, waitTask = wait[:idx], wait[idx+1:]
	if len(waitThread) == 0 || len(waitTask) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedWait, wait)
	}
	return waitThread, waitTask, nil
}

func findTask(thread *Thread, name string) *Task {
	for _, t := range thread.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func indexOf(thread *Thread, target *Task) int {
	for i, t := range thread.Tasks {
		if t == target {
			return i
		}
	}
	return -1
}

// detectCycles walks the wait graph from every task, rejecting any path
// that revisits a task already on the current walk. original_source never
// performs this check (§9); spec.md §4.3/§7 marks it a SHOULD, taken here
// as a firm build-time rejection (see SPEC_FULL.md "Decisions on spec.md's
// Open Questions").
func detectCycles(sched *Schedule) error {
	type key struct{ thread, task string }

	state := make(map[key]int) // 0=unvisited, 1=in-progress, 2=done

	var visit func(k key) error
	visit = func(k key) error {
		switch state[k] {
		case 1:
			return fmt.Errorf("%w: %s:%s", ErrCycle, k.thread, k.task)
		case 2:
			return nil
		}
		state[k] = 1
		thread, ok := sched.Threads[k.thread]
		if ok {
			if t := findTask(thread, k.task); t != nil && t.Dependent {
				upstream := key{t.WaitThread, t.WaitTask}
				if err := visit(upstream); err != nil {
					return err
				}
			}
		}
		state[k] = 2
		return nil
	}

	for _, thread := range sched.Threads {
		for _, t := range thread.Tasks {
			if err := visit(key{thread.Name, t.Name}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string][]taskRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
