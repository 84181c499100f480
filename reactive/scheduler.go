package reactive

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// maxFlushRuns is the number of times one watcher may run within a single
// flush before it is treated as a runaway update loop and abandoned.
const maxFlushRuns = 100

// scheduler batches watchers invalidated within one tick and runs each
// exactly once per flush, in ascending creation-id order. Parents are
// always created before children and explicit watchers before render
// watchers, so id order yields parent-before-child execution.
type scheduler struct {
	rt       *Runtime
	queue    []*Watcher
	has      map[uint64]struct{}
	circular map[uint64]int
	banned   map[uint64]struct{}
	waiting  bool
	flushing bool
	index    int

	// activated holds callbacks deferred to the end of the current flush,
	// fired before updated hooks.
	activated []func()

	// sync makes the first enqueue flush immediately instead of deferring
	// to the next tick.
	sync bool
}

func newScheduler(rt *Runtime) *scheduler {
	return &scheduler{
		rt:       rt,
		has:      map[uint64]struct{}{},
		circular: map[uint64]int{},
		banned:   map[uint64]struct{}{},
	}
}

// enqueue adds a watcher to the pending flush. Watchers already queued are
// skipped, as are watchers abandoned as runaways earlier in the current
// flush. When invalidation happens mid-flush the watcher is inserted into
// the unprocessed tail by id, so it still runs once within this flush.
func (s *scheduler) enqueue(w *Watcher) {
	if _, queued := s.has[w.id]; queued {
		return
	}
	if _, bad := s.banned[w.id]; bad {
		return
	}
	s.has[w.id] = struct{}{}
	if !s.flushing {
		s.queue = append(s.queue, w)
	} else {
		i := len(s.queue) - 1
		for i > s.index && s.queue[i].id > w.id {
			i--
		}
		s.queue = append(s.queue, nil)
		copy(s.queue[i+2:], s.queue[i+1:])
		s.queue[i+1] = w
	}
	if !s.waiting {
		s.waiting = true
		if s.sync {
			s.flush()
			return
		}
		s.rt.NextTick(s.flush)
	}
}

// flush runs every queued watcher once, in id order. A watcher that keeps
// re-invalidating itself is abandoned after maxFlushRuns runs with one
// reported error; the rest of the flush continues. Afterwards the batching
// state resets and deferred activated callbacks fire, then updated hooks in
// reverse flush order so children settle before parents report.
func (s *scheduler) flush() {
	s.flushing = true
	sort.Slice(s.queue, func(i, j int) bool { return s.queue[i].id < s.queue[j].id })

	var errs *multierror.Error
	for s.index = 0; s.index < len(s.queue); s.index++ {
		w := s.queue[s.index]
		if w.before != nil {
			w.before()
		}
		delete(s.has, w.id)
		if err := w.run(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if _, again := s.has[w.id]; again {
			s.circular[w.id]++
			if s.circular[w.id] >= maxFlushRuns {
				s.banned[w.id] = struct{}{}
				delete(s.has, w.id)
				s.removeQueued(w.id)
				errs = multierror.Append(errs, fmt.Errorf(
					"possible infinite update loop in watcher %q (ran %d times in one flush)",
					w.expression, maxFlushRuns))
			}
		}
	}

	flushed := s.queue
	s.reset()

	if err := errs.ErrorOrNil(); err != nil {
		s.rt.reportError(err, nil)
	}
	s.callActivated()
	s.callUpdated(flushed)
}

// removeQueued drops a re-queued watcher from the unprocessed tail.
func (s *scheduler) removeQueued(id uint64) {
	for i := s.index + 1; i < len(s.queue); i++ {
		if s.queue[i].id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *scheduler) reset() {
	s.queue = nil
	s.index = 0
	clear(s.has)
	clear(s.circular)
	clear(s.banned)
	s.waiting = false
	s.flushing = false
}

func (s *scheduler) callActivated() {
	fns := s.activated
	s.activated = nil
	for _, fn := range fns {
		fn()
	}
}

func (s *scheduler) callUpdated(flushed []*Watcher) {
	for i := len(flushed) - 1; i >= 0; i-- {
		w := flushed[i]
		if w.active && w.updated != nil {
			w.updated()
		}
	}
}
