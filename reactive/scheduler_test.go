package reactive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// N mutations within one tick run the watcher at most once
func TestSchedulerBatchesMutations(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"a": 1, "b": 2, "c": 3})

	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		return []any{m.Get("a"), m.Get("b"), m.Get("c")}, nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	m.Set("a", 10)
	m.Set("b", 20)
	m.Set("c", 30)
	m.Set("a", 11)
	assert.Equal(t, 1, runs, "no re-run before the flush boundary")

	rt.Flush()
	assert.Equal(t, 2, runs, "all mutations coalesce into one re-run")
}

// watchers flush in ascending creation-id order
func TestSchedulerFlushOrder(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"n": 0})

	var order []string
	watch := func(name string) {
		_, err := NewWatcher(rt, nil, func() (any, error) {
			order = append(order, name)
			return m.Get("n"), nil
		}, nil, WatcherOptions{})
		require.NoError(t, err)
	}
	watch("first")
	watch("second")
	watch("third")
	order = nil

	// Notify order is subscription order; flush must still follow ids even
	// if enqueue order were disturbed, so mutate and flush.
	m.Set("n", 1)
	rt.Flush()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

// a watcher invalidated mid-flush still runs within the same flush
func TestSchedulerReentrantInvalidation(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"a": 0, "b": 0})

	var order []string
	_, err := NewWatcher(rt, nil, func() (any, error) {
		order = append(order, "writer")
		if m.Get("a") == 1 {
			m.Set("b", 1)
		}
		return nil, nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	_, err = NewWatcher(rt, nil, func() (any, error) {
		order = append(order, "reader")
		return m.Get("b"), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	order = nil

	m.Set("a", 1)
	rt.Flush()
	// The writer runs, invalidates the reader mid-flush, and the reader
	// still executes once in this same flush.
	assert.Equal(t, []string{"writer", "reader"}, order)

	flushes := len(order)
	rt.Flush()
	assert.Len(t, order, flushes, "nothing left pending after the flush")
}

// a self-invalidating watcher is abandoned after exactly 100 runs
func TestSchedulerRunawayGuard(t *testing.T) {
	var reported []error
	rt := NewRuntime(WithErrorHandler(func(err error, w *Watcher) {
		reported = append(reported, err)
	}))
	m := MapOf(rt, map[string]any{"loop": true, "n": 0, "other": 0})

	runawayRuns := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runawayRuns++
		if m.Get("loop") == true {
			m.Set("n", m.Get("n").(int)+1)
		} else {
			m.Get("n")
		}
		return nil, nil
	}, nil, WatcherOptions{Expression: "runaway"})
	require.NoError(t, err)

	otherRuns := 0
	_, err = NewWatcher(rt, nil, func() (any, error) {
		otherRuns++
		return m.Get("other"), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	runawayRuns, otherRuns = 0, 0

	m.Set("n", 100)
	m.Set("other", 1)
	rt.Flush()

	assert.Equal(t, 100, runawayRuns, "abandoned after exactly 100 runs")
	assert.Equal(t, 1, otherRuns, "the rest of the flush completes")
	require.Len(t, reported, 1, "one error report for the runaway")
	assert.True(t, strings.Contains(reported[0].Error(), "infinite update loop"))

	// The abandoned watcher works again on the next external trigger.
	m.Set("loop", false)
	rt.Flush()
	assert.Equal(t, 101, runawayRuns)
}

// before hooks run ahead of each scheduled re-evaluation
func TestSchedulerBeforeHook(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"n": 0})

	var order []string
	_, err := NewWatcher(rt, nil, func() (any, error) {
		order = append(order, "run")
		return m.Get("n"), nil
	}, nil, WatcherOptions{Before: func() {
		order = append(order, "before")
	}})
	require.NoError(t, err)
	order = nil

	m.Set("n", 1)
	rt.Flush()
	assert.Equal(t, []string{"before", "run"}, order)
}

// activated callbacks fire post-flush, before updated hooks, which fire in
// reverse flush order
func TestSchedulerPostFlushNotifications(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"n": 0})

	var order []string
	watch := func(name string) {
		_, err := NewWatcher(rt, nil, func() (any, error) {
			order = append(order, "eval:"+name)
			return m.Get("n"), nil
		}, nil, WatcherOptions{Updated: func() {
			order = append(order, "updated:"+name)
		}})
		require.NoError(t, err)
	}
	watch("parent")
	watch("child")
	order = nil

	rt.QueueActivated(func() {
		order = append(order, "activated")
	})
	m.Set("n", 1)
	rt.Flush()

	assert.Equal(t, []string{
		"eval:parent", "eval:child",
		"activated",
		"updated:child", "updated:parent",
	}, order)
}

// sync watchers bypass the scheduler entirely
func TestSyncWatcherBypassesScheduler(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"n": 0})

	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		return m.Get("n"), nil
	}, nil, WatcherOptions{Sync: true})
	require.NoError(t, err)

	m.Set("n", 1)
	assert.Equal(t, 2, runs, "sync watcher re-runs before the tick boundary")
}

// NextTick callbacks run after the scheduler flush for the same tick
func TestNextTickAfterFlush(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"n": 0})

	var order []string
	_, err := NewWatcher(rt, nil, func() (any, error) {
		order = append(order, "watcher")
		return m.Get("n"), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	order = nil

	m.Set("n", 1)
	rt.NextTick(func() {
		order = append(order, "tick")
	})
	rt.Flush()
	assert.Equal(t, []string{"watcher", "tick"}, order)
}

// the schedule hook fires when deferred work becomes pending while idle
func TestScheduleHook(t *testing.T) {
	signals := 0
	rt := NewRuntime(WithScheduleHook(func() {
		signals++
	}))
	m := MapOf(rt, map[string]any{"n": 0})

	_, err := NewWatcher(rt, nil, func() (any, error) {
		return m.Get("n"), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)

	m.Set("n", 1)
	assert.Equal(t, 1, signals)
	m.Set("n", 2)
	assert.Equal(t, 1, signals, "already pending; no duplicate signal")

	rt.Flush()
	m.Set("n", 3)
	assert.Equal(t, 2, signals, "idle again after flush")
}
