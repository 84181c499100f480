package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listWatcher(t *testing.T, rt *Runtime, fn func()) *int {
	t.Helper()
	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		fn()
		return nil, nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	return &runs
}

// every intercepted mutator notifies watchers that read the list
func TestListMutatorsNotify(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	l := NewList(rt, 1, 2, 3)
	runs := listWatcher(t, rt, func() { l.Values() })
	require.Equal(t, 1, *runs)

	l.Push(4)
	assert.Equal(t, 2, *runs)
	assert.Equal(t, 4, l.Pop())
	assert.Equal(t, 3, *runs)
	assert.Equal(t, 1, l.Shift())
	assert.Equal(t, 4, *runs)
	l.Unshift(0)
	assert.Equal(t, 5, *runs)
	l.Splice(1, 1, 9, 9)
	assert.Equal(t, 6, *runs)
	l.Sort(func(a, b any) bool { return a.(int) < b.(int) })
	assert.Equal(t, 7, *runs)
	l.Reverse()
	assert.Equal(t, 8, *runs)
	l.Set(0, 42)
	assert.Equal(t, 9, *runs)
}

// splice handles negative start and over-long delete counts
func TestListSpliceBounds(t *testing.T) {
	rt := NewRuntime()
	l := NewList(rt, 1, 2, 3, 4)

	removed := l.Splice(-2, 10, "x")
	assert.Equal(t, []any{3, 4}, removed)
	assert.Equal(t, []any{1, 2, "x"}, l.Values())

	removed = l.Splice(10, 1, "end")
	assert.Empty(t, removed)
	assert.Equal(t, []any{1, 2, "x", "end"}, l.Values())
}

// index writes of an identical value are silent; out-of-range sets append
func TestListSetSemantics(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	l := NewList(rt, "a", "b")
	runs := listWatcher(t, rt, func() { l.Get(0) })
	require.Equal(t, 1, *runs)

	l.Set(0, "a")
	assert.Equal(t, 1, *runs, "identical element write must not notify")

	l.Set(5, "c")
	assert.Equal(t, 2, *runs)
	assert.Equal(t, "c", l.Get(2))
}

// element reads register on nested containers so index mutation is seen
func TestListNestedContainerTracking(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	inner := MapOf(rt, map[string]any{"n": 1})
	l := NewList(rt, inner)
	require.NotNil(t, rt.Observe(l))

	var total int
	runs := listWatcher(t, rt, func() {
		total = 0
		for i := 0; i < l.Len(); i++ {
			if m, ok := l.Get(i).(*Map); ok {
				total += m.Get("n").(int)
			}
		}
	})
	require.Equal(t, 1, *runs)
	require.Equal(t, 1, total)

	inner.Set("n", 5)
	assert.Equal(t, 2, *runs)
	assert.Equal(t, 5, total)
}

// frozen lists ignore mutation
func TestListFrozen(t *testing.T) {
	rt := NewRuntime()
	l := NewList(rt, 1)
	l.Freeze()
	l.Push(2)
	l.Pop()
	l.Set(0, 9)
	assert.Equal(t, []any{1}, l.Values())
}

// out-of-range reads yield nil
func TestListOutOfRange(t *testing.T) {
	rt := NewRuntime()
	l := NewList(rt, 1)
	assert.Nil(t, l.Get(-1))
	assert.Nil(t, l.Get(5))
	empty := NewList(rt)
	assert.Nil(t, empty.Pop(), "pop on empty list yields nil")
	assert.Nil(t, empty.Shift())
}
