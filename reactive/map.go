package reactive

import (
	"bytes"
	"encoding/json"
	"sort"
)

// cell backs one key of a Map: the stored value, the subscription list for
// that key, and an optional getter for computed-style read-only keys.
type cell struct {
	value  any
	dep    *Dep
	getter func() any
}

// Map is a string-keyed observed container. Every key is backed by a cell
// with its own dependency node; reads made during watcher evaluation
// register subscriptions, and writes notify subscribers of the changed key.
// Key insertion order is preserved for iteration and JSON output.
//
// A Map belongs to the single goroutine that owns its Runtime.
type Map struct {
	rt     *Runtime
	keys   []string
	cells  map[string]*cell
	dep    *Dep
	ob     *Observer
	frozen bool
}

// NewMap creates an empty observed map.
func NewMap(rt *Runtime) *Map {
	return &Map{
		rt:    rt,
		cells: map[string]*cell{},
		dep:   rt.newDep(),
	}
}

// MapOf builds a Map from a plain Go map, converting nested plain maps and
// slices into observed containers. Keys are inserted in sorted order so the
// result is deterministic.
func MapOf(rt *Runtime, src map[string]any) *Map {
	m := NewMap(rt)
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.define(k, rt.Convert(src[k]))
	}
	return m
}

// define installs a cell without notification. Used during construction and
// by Set for new keys.
func (m *Map) define(key string, value any) *cell {
	c := &cell{value: value, dep: m.rt.newDep()}
	m.cells[key] = c
	m.keys = append(m.keys, key)
	return c
}

// Get returns the value at key, registering the active watcher on the key's
// dependency node. If the held value is itself an observed container, the
// watcher also registers on the container's structural dep. Missing keys
// yield nil; the read is still tracked through the map's structural dep so
// a later Set of the key invalidates the reader.
func (m *Map) Get(key string) any {
	c, ok := m.cells[key]
	if !ok {
		m.dep.Depend()
		return nil
	}
	c.dep.Depend()
	var value any
	if c.getter != nil {
		value = c.getter()
	} else {
		value = c.value
	}
	if m.rt.target != nil {
		dependValue(value)
	}
	return value
}

// Set writes value at key. Writing a value identical to the current one
// (identity comparison, NaN-aware) is a no-op. Writes to getter-backed keys
// are silently ignored. Setting a new key installs a cell and notifies the
// map's structural dep, which is how watchers that read the whole map learn
// about added keys.
func (m *Map) Set(key string, value any) {
	if m.frozen {
		return
	}
	c, ok := m.cells[key]
	if !ok {
		converted := m.rt.Convert(value)
		m.define(key, converted)
		if m.ob != nil {
			m.rt.Observe(converted)
		}
		m.dep.Notify()
		return
	}
	if c.getter != nil {
		return
	}
	if sameValue(c.value, value) {
		return
	}
	converted := m.rt.Convert(value)
	c.value = converted
	if m.ob != nil {
		m.rt.Observe(converted)
	}
	c.dep.Notify()
}

// Delete removes key, notifying the map's structural dep. Missing keys are
// a no-op.
func (m *Map) Delete(key string) {
	if m.frozen {
		return
	}
	if _, ok := m.cells[key]; !ok {
		return
	}
	delete(m.cells, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	m.dep.Notify()
}

// DefineGetter installs a read-only computed-style key backed by fn. Reads
// evaluate fn under the active watcher, so dependencies the getter touches
// are tracked; writes to the key are silently ignored.
func (m *Map) DefineGetter(key string, fn func() any) {
	if m.frozen {
		return
	}
	if c, ok := m.cells[key]; ok {
		c.getter = fn
		c.value = nil
		c.dep.Notify()
		return
	}
	c := m.define(key, nil)
	c.getter = fn
	m.dep.Notify()
}

// Has reports whether key is present, tracked through the structural dep.
func (m *Map) Has(key string) bool {
	m.dep.Depend()
	_, ok := m.cells[key]
	return ok
}

// Keys returns the keys in insertion order. The read is tracked through the
// structural dep so key additions and deletions invalidate the reader.
func (m *Map) Keys() []string {
	m.dep.Depend()
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of keys, tracked through the structural dep.
func (m *Map) Len() int {
	m.dep.Depend()
	return len(m.keys)
}

// Freeze makes the map read-only and excludes it from observation. Frozen
// maps never notify.
func (m *Map) Freeze() {
	m.frozen = true
}

// Frozen reports whether the map is frozen.
func (m *Map) Frozen() bool {
	return m.frozen
}

// GetAttr implements attribute access for the expression evaluator. Reads
// are dependency-tracked exactly like Get.
func (m *Map) GetAttr(name string) (any, bool) {
	return m.Get(name), true
}

// SetAttr implements attribute assignment for the expression evaluator.
func (m *Map) SetAttr(name string, value any) error {
	m.Set(name, value)
	return nil
}

// MarshalJSON renders the map with keys in insertion order. Getter-backed
// keys marshal their current computed value.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		c := m.cells[key]
		value := c.value
		if c.getter != nil {
			value = c.getter()
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
