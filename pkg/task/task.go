// ============================================================================
// Task Registry - Process-Wide Name to Function Mapping
// ============================================================================
//
// Package: pkg/task
// File: task.go
// Function: Maps registered task names to the functions they run, so a
//           schedule document can reference task logic purely by string.
//
// Design:
//   A single process-wide registry, created at package initialization and
//   guarded by a RWMutex. Registration only happens during setup (before any
//   schedule is started); lookups happen once per task, at graph-build time,
//   never on a worker's hot path.
//
// ============================================================================

// Package task implements the process-wide registry that maps task names to
// the functions a schedule runs.
package task

import (
	"errors"
	"sync"
)

// ErrNotFound indicates a task name has no registered function.
var ErrNotFound = errors.New("task: not found")

// ErrEmptyName indicates an empty name was supplied to Register. Lookup of
// an empty name returns ErrNotFound.
var ErrEmptyName = errors.New("task: name must not be empty")

// MaxNameLength is the longest a task or thread name may be (spec §3).
const MaxNameLength = 63

// Func is the signature every registered task function must satisfy: it
// receives an opaque parameter and returns an opaque result. Both
// construction and interpretation of the parameter are the caller's
// responsibility; the scheduler never inspects it.
type Func func(parameter any) any

// Registry is a name -> Func mapping. The zero value is ready to use.
// Registries are safe for concurrent use, but are only ever written during
// setup; mutating one concurrently with schedule_start is unsupported.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Func
}

// NewRegistry allocates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Func)}
}

// Register inserts or replaces the function registered under name.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return ErrEmptyName
	}
	if fn == nil {
		return errors.New("task: function must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tasks == nil {
		r.tasks = make(map[string]Func)
	}
	r.tasks[name] = fn
	return nil
}

// Unregister removes the function registered under name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, name)
}

// Lookup returns the function registered under name, or ErrNotFound.
func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tasks[name]
	if !ok {
		return nil, ErrNotFound
	}
	return fn, nil
}

// ============================================================================
// Process-wide default registry
// ============================================================================
//
// Most callers never need more than one registry per process; Default
// provides that without forcing every caller to thread a *Registry through
// their own setup code, mirroring how original_source/parallel.c keeps a
// single static tasks_lookup_table for the whole process.

var defaultRegistry = NewRegistry()

// Register adds fn under name in the default, process-wide registry.
func Register(name string, fn Func) error { return defaultRegistry.Register(name, fn) }

// Unregister removes name from the default, process-wide registry.
func Unregister(name string) { defaultRegistry.Unregister(name) }

// Lookup finds the function registered under name in the default registry.
func Lookup(name string) (Func, error) { return defaultRegistry.Lookup(name) }

// Default returns the process-wide default registry.
func Default() *Registry { return defaultRegistry }
