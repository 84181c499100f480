package reactive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a watcher reading a key re-runs when that key changes
func TestMapSetNotifiesReaders(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	m := MapOf(rt, map[string]any{"count": 0})

	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		return m.Get("count"), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	m.Set("count", 1)
	assert.Equal(t, 2, runs)
}

// writing the value already present never notifies
func TestMapSameValueWriteIsSilent(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	shared := []any{1}
	m := NewMap(rt)
	rt.WithoutObserving(func() {
		m.Set("n", 1)
		m.Set("nan", math.NaN())
		m.Set("slice", shared)
	})

	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		m.Get("n")
		m.Get("nan")
		m.Get("slice")
		return nil, nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	m.Set("n", 1)
	m.Set("nan", math.NaN())
	rt.WithoutObserving(func() {
		m.Set("slice", shared)
	})
	assert.Equal(t, 1, runs, "identical writes must not notify")

	m.Set("n", 2)
	assert.Equal(t, 2, runs)
}

// adding and deleting keys notifies watchers that read the whole map
func TestMapStructuralNotifications(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	m := NewMap(rt)

	runs := 0
	_, err := NewWatcher(rt, nil, func() (any, error) {
		runs++
		return m.Keys(), nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	m.Set("a", 1)
	assert.Equal(t, 2, runs, "new key should notify structural readers")
	m.Delete("a")
	assert.Equal(t, 3, runs, "delete should notify structural readers")
	m.Delete("missing")
	assert.Equal(t, 3, runs, "deleting a missing key is a no-op")
}

// reading a missing key subscribes to its later definition
func TestMapMissingKeyReadTracksAddition(t *testing.T) {
	rt := NewRuntime(WithSyncScheduler())
	m := NewMap(rt)

	var seen any
	_, err := NewWatcher(rt, nil, func() (any, error) {
		seen = m.Get("later")
		return seen, nil
	}, nil, WatcherOptions{})
	require.NoError(t, err)
	require.Nil(t, seen)

	m.Set("later", "here")
	assert.Equal(t, "here", seen)
}

// getter-only keys evaluate on read and silently ignore writes
func TestMapGetterOnlyKeys(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"first": "Ada", "last": "Lovelace"})
	m.DefineGetter("full", func() any {
		return m.Get("first").(string) + " " + m.Get("last").(string)
	})

	assert.Equal(t, "Ada Lovelace", m.Get("full"))
	m.Set("full", "overwritten")
	assert.Equal(t, "Ada Lovelace", m.Get("full"))
}

// frozen maps ignore writes entirely
func TestMapFrozen(t *testing.T) {
	rt := NewRuntime()
	m := MapOf(rt, map[string]any{"a": 1})
	m.Freeze()
	m.Set("a", 2)
	m.Set("b", 3)
	m.Delete("a")
	assert.Equal(t, 1, m.Get("a"))
	assert.False(t, m.Has("b"))
}

// insertion order is preserved in JSON output
func TestMapMarshalJSON(t *testing.T) {
	rt := NewRuntime()
	m := NewMap(rt)
	m.Set("z", 1)
	m.Set("a", 2)
	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2}`, string(data))
}
