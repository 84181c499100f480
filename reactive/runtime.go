// Package reactive implements a fine-grained dependency-tracking engine.
//
// State lives in observed containers (Map, List). Watchers evaluate a
// function while the runtime records which container cells the function
// reads; when any of those cells later changes, the watcher is invalidated
// and re-run, either immediately or through the batching scheduler.
//
// All tracking state hangs off a Runtime rather than package-level globals,
// so independent graphs can coexist in one process. A Runtime and everything
// observed through it belong to a single goroutine; none of this package is
// safe for concurrent use.
package reactive

import (
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// ErrorHandler receives evaluation errors from user-defined watchers and
// scheduler-level failures. The watcher argument is nil for errors that are
// not tied to a single watcher.
type ErrorHandler func(err error, w *Watcher)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger used for debug and warning output. The default
// logger is disabled.
func WithLogger(logger zerolog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.log = logger
	}
}

// WithErrorHandler sets the handler for user-watcher evaluation errors.
// Without one, errors are logged and otherwise dropped.
func WithErrorHandler(handler ErrorHandler) RuntimeOption {
	return func(rt *Runtime) {
		rt.errHandler = handler
	}
}

// WithSyncScheduler makes the scheduler flush immediately on the first
// enqueue instead of waiting for the next tick. Intended for tests.
func WithSyncScheduler() RuntimeOption {
	return func(rt *Runtime) {
		rt.sched.sync = true
	}
}

// WithScheduleHook registers a callback invoked whenever deferred work
// becomes pending while the runtime is idle. An embedding event loop uses
// this to learn that it should call Flush once the current stack unwinds.
func WithScheduleHook(hook func()) RuntimeOption {
	return func(rt *Runtime) {
		rt.scheduleHook = hook
	}
}

// Runtime owns one reactive dependency graph: the active-computation stack,
// the observation toggle, id counters, the scheduler, and the next-tick
// queue. Methods on a Runtime and on every container observed through it
// must be called from a single goroutine.
type Runtime struct {
	id            uuid.UUID
	target        *Watcher
	targetStack   []*Watcher
	shouldObserve bool
	depID         uint64
	watcherID     uint64
	sched         *scheduler
	tickQueue     []func()
	tickPending   bool
	scheduleHook  func()
	errHandler    ErrorHandler
	log           zerolog.Logger
}

// NewRuntime creates a reactive runtime with its own dependency graph.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		id:            uuid.Must(uuid.NewV4()),
		shouldObserve: true,
		log:           zerolog.Nop(),
	}
	rt.sched = newScheduler(rt)
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	return rt
}

// ID returns the runtime's unique instance id.
func (rt *Runtime) ID() uuid.UUID {
	return rt.id
}

// Target returns the watcher currently being evaluated, or nil.
func (rt *Runtime) Target() *Watcher {
	return rt.target
}

func (rt *Runtime) pushTarget(w *Watcher) {
	rt.targetStack = append(rt.targetStack, w)
	rt.target = w
}

func (rt *Runtime) popTarget() {
	rt.targetStack = rt.targetStack[:len(rt.targetStack)-1]
	if n := len(rt.targetStack); n > 0 {
		rt.target = rt.targetStack[n-1]
	} else {
		rt.target = nil
	}
}

// WithoutObserving runs fn with observation disabled, so values assigned
// inside fn are not converted into observed containers. The previous state
// is restored afterwards, making nested use safe.
func (rt *Runtime) WithoutObserving(fn func()) {
	prev := rt.shouldObserve
	rt.shouldObserve = false
	defer func() {
		rt.shouldObserve = prev
	}()
	fn()
}

// Untracked runs fn with dependency tracking suspended: reads made inside
// fn register no subscriptions on the active watcher.
func (rt *Runtime) Untracked(fn func()) {
	rt.pushTarget(nil)
	defer rt.popTarget()
	fn()
}

func (rt *Runtime) nextDepID() uint64 {
	rt.depID++
	return rt.depID
}

func (rt *Runtime) nextWatcherID() uint64 {
	rt.watcherID++
	return rt.watcherID
}

// NextTick queues fn to run after the current batch of mutations settles.
// Callbacks run during Flush, after the scheduler has re-run invalidated
// watchers.
func (rt *Runtime) NextTick(fn func()) {
	rt.tickQueue = append(rt.tickQueue, fn)
	if !rt.tickPending {
		rt.tickPending = true
		if rt.scheduleHook != nil {
			rt.scheduleHook()
		}
	}
}

// Flush is the runtime's microtask boundary: it drains the next-tick queue,
// including callbacks queued while draining, until no deferred work remains.
// The embedding event loop calls this after its current unit of work; tests
// call it to observe settled state.
func (rt *Runtime) Flush() {
	for len(rt.tickQueue) > 0 {
		callbacks := rt.tickQueue
		rt.tickQueue = nil
		for _, fn := range callbacks {
			fn()
		}
	}
	rt.tickPending = false
}

// QueueActivated defers fn until the end of the current scheduler flush.
// Outside a flush, fn is queued for the end of the next one.
func (rt *Runtime) QueueActivated(fn func()) {
	rt.sched.activated = append(rt.sched.activated, fn)
}

func (rt *Runtime) reportError(err error, w *Watcher) {
	if rt.errHandler != nil {
		rt.errHandler(err, w)
		return
	}
	evt := rt.log.Error().Err(err)
	if w != nil && w.expression != "" {
		evt = evt.Str("expression", w.expression)
	}
	evt.Msg("watcher evaluation failed")
}
