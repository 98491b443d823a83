package processor

import (
	"sync"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// Kind names the closed set of processor variants a Spec can reference by
// name when building a program.
type Kind string

const (
	KindNull       Kind = "null"
	KindLADSPA     Kind = "ladspa"
	KindPlugin     Kind = "plugin"
	KindScriptDSP  Kind = "script"
	KindSamplePlay Kind = "sample_player"
)

// Factory builds a fresh, un-set-up Processor instance for one Kind. The
// params map carries the construction-time parameters (e.g. a LADSPA
// library path and label, or a sidecar executable path) that differ by
// kind and can't be expressed through the uniform Processor interface.
type Factory func(params map[string]string) (Processor, error)

// entry tracks one live processor plus how many programs currently
// reference it, per spec.md §3 Ownership: a processor is torn down only
// after the last program referencing it has been retired from the audio
// thread, and teardown itself never happens on that thread.
type entry struct {
	proc     Processor
	refcount int
}

// Registry constructs, reference-counts and tears down processors. One
// Registry is shared by every program a VM ever activates, so that two
// programs referencing "the same" processor (by id) share its instance
// instead of duplicating state.
type Registry struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	live      map[uint64]*entry
}

// NewRegistry builds a registry pre-populated with the built-in factories.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[Kind]Factory),
		live:      make(map[uint64]*entry),
	}
	r.Register(KindNull, func(map[string]string) (Processor, error) {
		return NewNull(), nil
	})
	return r
}

// Register installs or replaces the factory for kind.
func (r *Registry) Register(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Create builds a new processor of kind, runs its Setup, and starts its
// reference count at one. The caller owns the returned id's first
// reference and must Release it exactly once.
func (r *Registry) Create(kind Kind, params map[string]string) (Processor, error) {
	r.mu.Lock()
	f, ok := r.factories[kind]
	r.mu.Unlock()
	if !ok {
		return nil, engineerr.InvalidOperation("unknown processor kind %q", kind)
	}

	proc, err := f(params)
	if err != nil {
		return nil, err
	}
	if err := proc.Setup(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.live[proc.ID()] = &entry{proc: proc, refcount: 1}
	r.mu.Unlock()
	return proc, nil
}

// Adopt registers an already-constructed, already-set-up processor with a
// starting reference count of zero, for callers (like the VM) that build
// processors themselves and only want the registry's refcounted teardown
// bookkeeping. Mirrors VM::add_processor, which inserts with ref_count 0
// and leaves the first increment to whatever spec references it.
func (r *Registry) Adopt(proc Processor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.live[proc.ID()]; exists {
		return engineerr.InvalidOperation("processor %d already registered", proc.ID())
	}
	r.live[proc.ID()] = &entry{proc: proc, refcount: 0}
	return nil
}

// Acquire increments the reference count of an already-live processor, for
// a new program that references an existing one by id.
func (r *Registry) Acquire(id uint64) (Processor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[id]
	if !ok {
		return nil, engineerr.InvalidOperation("processor %d is not live", id)
	}
	e.refcount++
	return e.proc, nil
}

// Release decrements the reference count for id. When it reaches zero the
// processor is removed from the live set and returned with
// shouldCleanup=true, for the caller to Cleanup off the audio thread. A nil
// return with shouldCleanup=false means other programs still reference it
// (or id is not live).
func (r *Registry) Release(id uint64) (proc Processor, shouldCleanup bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[id]
	if !ok {
		return nil, false
	}
	e.refcount--
	if e.refcount > 0 {
		return nil, false
	}
	delete(r.live, id)
	return e.proc, true
}

// RefCount reports the current reference count for id, or 0 if unknown.
// Exposed for tests; production code has no use for the raw count.
func (r *Registry) RefCount(id uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[id]
	if !ok {
		return 0
	}
	return e.refcount
}
