package reactive

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// EvalFunc is a watcher's evaluation function. Dependencies are recorded
// for every observed read the function makes.
type EvalFunc func() (any, error)

// Callback receives the new and previous value after a watcher re-evaluates
// to a different result.
type Callback func(newValue, oldValue any)

// WatcherOptions control watcher behavior.
type WatcherOptions struct {
	// Deep forces a recursive read of the evaluated value so the watcher
	// subscribes to every nested container, not just the ones the
	// evaluation function touched directly.
	Deep bool

	// User marks a watcher defined by application code: evaluation and
	// callback errors are reported through the runtime's error handler
	// instead of propagating.
	User bool

	// Lazy defers evaluation until explicitly requested. Lazy watchers are
	// the basis of computed values.
	Lazy bool

	// Sync re-evaluates immediately on invalidation instead of going
	// through the scheduler.
	Sync bool

	// Before runs just before a scheduled re-evaluation.
	Before func()

	// Updated runs after the flush that re-evaluated this watcher
	// completes. Updated hooks fire in reverse flush order, so inner
	// watchers settle before outer ones report.
	Updated func()

	// Expression is a display string identifying the watched computation
	// in error reports.
	Expression string
}

// Watcher is a re-evaluatable computation. It tracks the dependency nodes
// read during its last evaluation and re-runs when any of them notifies:
// immediately when sync, on demand when lazy, and through the scheduler
// otherwise.
type Watcher struct {
	rt         *Runtime
	id         uint64
	owner      any
	fn         EvalFunc
	cb         Callback
	deep       bool
	user       bool
	lazy       bool
	sync       bool
	before     func()
	updated    func()
	expression string

	active bool
	dirty  bool
	value  any

	deps      []*Dep
	newDeps   []*Dep
	depIDs    mapset.Set[uint64]
	newDepIDs mapset.Set[uint64]
}

// NewWatcher creates a watcher and, unless lazy, evaluates it immediately.
// An initial evaluation error from a user watcher is reported through the
// runtime's error handler and the watcher is still returned; for an
// internal watcher the error tears the watcher down and is returned.
func NewWatcher(rt *Runtime, owner any, fn EvalFunc, cb Callback, opts WatcherOptions) (*Watcher, error) {
	w := &Watcher{
		rt:         rt,
		id:         rt.nextWatcherID(),
		owner:      owner,
		fn:         fn,
		cb:         cb,
		deep:       opts.Deep,
		user:       opts.User,
		lazy:       opts.Lazy,
		sync:       opts.Sync,
		before:     opts.Before,
		updated:    opts.Updated,
		expression: opts.Expression,
		active:     true,
		dirty:      opts.Lazy,
		depIDs:     mapset.NewThreadUnsafeSet[uint64](),
		newDepIDs:  mapset.NewThreadUnsafeSet[uint64](),
	}
	if !w.lazy {
		value, err := w.get()
		if err != nil {
			if w.user {
				rt.reportError(err, w)
			} else {
				w.Teardown()
				return nil, err
			}
		}
		w.value = value
	}
	return w, nil
}

// ID returns the watcher's creation-ordered id.
func (w *Watcher) ID() uint64 {
	return w.id
}

// Owner returns the value the watcher was created for, if any.
func (w *Watcher) Owner() any {
	return w.owner
}

// Expression returns the watcher's display expression.
func (w *Watcher) Expression() string {
	return w.expression
}

// Value returns the result of the last evaluation.
func (w *Watcher) Value() any {
	return w.value
}

// Active reports whether the watcher has not been torn down.
func (w *Watcher) Active() bool {
	return w.active
}

// get evaluates the watcher's function with the watcher as the active
// computation, then diffs the dependencies read during this evaluation
// against the previous set: stale subscriptions are removed, new ones were
// added as they were read.
func (w *Watcher) get() (any, error) {
	w.rt.pushTarget(w)
	value, err := w.invoke()
	if err == nil && w.deep {
		traverse(value)
	}
	w.rt.popTarget()
	w.cleanupDeps()
	return value, err
}

// invoke runs the evaluation function, converting panics into errors so a
// panicking evaluation cannot leave the target stack unbalanced.
func (w *Watcher) invoke() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in watcher %q: %v", w.expression, r)
		}
	}()
	return w.fn()
}

// addDep records a dependency read during the current evaluation,
// subscribing to it unless the previous evaluation already did.
func (w *Watcher) addDep(d *Dep) {
	if w.newDepIDs.Contains(d.id) {
		return
	}
	w.newDepIDs.Add(d.id)
	w.newDeps = append(w.newDeps, d)
	if !w.depIDs.Contains(d.id) {
		d.addSub(w)
	}
}

// cleanupDeps unsubscribes from deps the latest evaluation no longer read
// and swaps the pending dependency set in as current.
func (w *Watcher) cleanupDeps() {
	for _, d := range w.deps {
		if !w.newDepIDs.Contains(d.id) {
			d.removeSub(w)
		}
	}
	w.depIDs, w.newDepIDs = w.newDepIDs, w.depIDs
	w.newDepIDs.Clear()
	w.deps, w.newDeps = w.newDeps, w.deps[:0]
}

// Update invalidates the watcher: lazy watchers are marked dirty, sync
// watchers re-evaluate immediately, and everything else is handed to the
// scheduler for the next flush.
func (w *Watcher) Update() {
	switch {
	case w.lazy:
		w.dirty = true
	case w.sync:
		if err := w.run(); err != nil {
			w.rt.reportError(err, w)
		}
	default:
		w.rt.sched.enqueue(w)
	}
}

// run re-evaluates the watcher and fires its callback when the result
// changed. Identity comparison decides "changed", except that containers
// and deep watchers always fire since the value may have mutated in place.
// Errors from user watchers are reported and swallowed; internal errors are
// returned to the caller.
func (w *Watcher) run() error {
	if !w.active {
		return nil
	}
	value, err := w.get()
	if err != nil {
		if w.user {
			w.rt.reportError(err, w)
			return nil
		}
		return err
	}
	if !sameValue(value, w.value) || containerDep(value) != nil || w.deep {
		old := w.value
		w.value = value
		w.invokeCallback(value, old)
	}
	return nil
}

func (w *Watcher) invokeCallback(value, old any) {
	if w.cb == nil {
		return
	}
	if w.user {
		defer func() {
			if r := recover(); r != nil {
				w.rt.reportError(fmt.Errorf("panic in watcher callback %q: %v", w.expression, r), w)
			}
		}()
	}
	w.cb(value, old)
}

// Evaluate runs a lazy watcher on demand and clears its dirty flag.
func (w *Watcher) Evaluate() error {
	value, err := w.get()
	if err != nil {
		return err
	}
	w.value = value
	w.dirty = false
	return nil
}

// Dirty reports whether a lazy watcher needs re-evaluation.
func (w *Watcher) Dirty() bool {
	return w.dirty
}

// Depend registers the runtime's active watcher on every dep this watcher
// depends on. Computed values use this so their readers subscribe to the
// computed's inputs.
func (w *Watcher) Depend() {
	for _, d := range w.deps {
		d.Depend()
	}
}

// Teardown removes the watcher from every dep it is subscribed to and
// deactivates it. An evaluation already in progress is not aborted; the
// watcher just never re-subscribes.
func (w *Watcher) Teardown() {
	if !w.active {
		return
	}
	for _, d := range w.deps {
		d.removeSub(w)
	}
	w.active = false
	w.deps = nil
	w.newDeps = nil
	w.depIDs.Clear()
	w.newDepIDs.Clear()
}
