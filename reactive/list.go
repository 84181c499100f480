package reactive

import (
	"encoding/json"
	"fmt"
	"iter"
	"sort"
)

// List is an observed sequence. Go offers no way to intercept index or
// length mutation on a plain slice, so List is an explicit façade: reads go
// through Get/Len/All and register the active watcher on the list's dep,
// and the mutating methods perform the underlying operation, convert and
// observe inserted elements, then notify.
//
// A List belongs to the single goroutine that owns its Runtime.
type List struct {
	rt     *Runtime
	items  []any
	dep    *Dep
	ob     *Observer
	frozen bool
}

// NewList creates an observed list with the given initial items.
func NewList(rt *Runtime, items ...any) *List {
	return ListOf(rt, items)
}

// ListOf builds a List from a plain slice, converting nested plain maps and
// slices into observed containers.
func ListOf(rt *Runtime, src []any) *List {
	items := make([]any, len(src))
	for i, v := range src {
		items[i] = rt.Convert(v)
	}
	return &List{rt: rt, items: items, dep: rt.newDep()}
}

// Get returns the element at index i, registering the active watcher on the
// list's dep. Out-of-range reads yield nil.
func (l *List) Get(i int) any {
	l.dep.Depend()
	if i < 0 || i >= len(l.items) {
		return nil
	}
	v := l.items[i]
	if l.rt.target != nil {
		dependValue(v)
	}
	return v
}

// Len returns the number of elements, tracked through the list's dep.
func (l *List) Len() int {
	l.dep.Depend()
	return len(l.items)
}

// Values returns a copy of the elements, tracked through the list's dep.
func (l *List) Values() []any {
	l.dep.Depend()
	out := make([]any, len(l.items))
	copy(out, l.items)
	return out
}

// All iterates index/value pairs in order, tracked through the list's dep.
func (l *List) All() iter.Seq2[int, any] {
	l.dep.Depend()
	items := make([]any, len(l.items))
	copy(items, l.items)
	return func(yield func(int, any) bool) {
		for i, v := range items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Push appends items and notifies.
func (l *List) Push(items ...any) {
	if l.frozen {
		return
	}
	l.items = append(l.items, l.insert(items)...)
	l.dep.Notify()
}

// Pop removes and returns the last element, or nil if empty.
func (l *List) Pop() any {
	if l.frozen || len(l.items) == 0 {
		return nil
	}
	last := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	l.dep.Notify()
	return last
}

// Shift removes and returns the first element, or nil if empty.
func (l *List) Shift() any {
	if l.frozen || len(l.items) == 0 {
		return nil
	}
	first := l.items[0]
	l.items = append([]any{}, l.items[1:]...)
	l.dep.Notify()
	return first
}

// Unshift prepends items and notifies.
func (l *List) Unshift(items ...any) {
	if l.frozen {
		return
	}
	l.items = append(l.insert(items), l.items...)
	l.dep.Notify()
}

// Splice removes deleteCount elements starting at start, inserts items in
// their place, and returns the removed elements. Negative start counts from
// the end. This is also the supported way to replace a single element.
func (l *List) Splice(start, deleteCount int, items ...any) []any {
	if l.frozen {
		return nil
	}
	n := len(l.items)
	if start < 0 {
		start = n + start
	}
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > n {
		deleteCount = n - start
	}
	removed := make([]any, deleteCount)
	copy(removed, l.items[start:start+deleteCount])
	next := make([]any, 0, n-deleteCount+len(items))
	next = append(next, l.items[:start]...)
	next = append(next, l.insert(items)...)
	next = append(next, l.items[start+deleteCount:]...)
	l.items = next
	l.dep.Notify()
	return removed
}

// Set replaces the element at index i, with splice semantics: setting at or
// past the end appends. A write identical to the current element is a no-op.
func (l *List) Set(i int, value any) {
	if l.frozen {
		return
	}
	if i < 0 {
		return
	}
	if i >= len(l.items) {
		l.Push(value)
		return
	}
	if sameValue(l.items[i], value) {
		return
	}
	l.Splice(i, 1, value)
}

// Sort orders the elements with the given comparison and notifies.
func (l *List) Sort(less func(a, b any) bool) {
	if l.frozen {
		return
	}
	sort.SliceStable(l.items, func(i, j int) bool {
		return less(l.items[i], l.items[j])
	})
	l.dep.Notify()
}

// Reverse reverses the elements in place and notifies.
func (l *List) Reverse() {
	if l.frozen {
		return
	}
	for i, j := 0, len(l.items)-1; i < j; i, j = i+1, j-1 {
		l.items[i], l.items[j] = l.items[j], l.items[i]
	}
	l.dep.Notify()
}

// insert converts incoming elements and, when the list is observed,
// observes them so nested structures stay reactive.
func (l *List) insert(items []any) []any {
	converted := make([]any, len(items))
	for i, v := range items {
		converted[i] = l.rt.Convert(v)
		if l.ob != nil {
			l.rt.Observe(converted[i])
		}
	}
	return converted
}

// Freeze makes the list read-only and excludes it from observation.
func (l *List) Freeze() {
	l.frozen = true
}

// Frozen reports whether the list is frozen.
func (l *List) Frozen() bool {
	return l.frozen
}

// GetAttr exposes length to the expression evaluator.
func (l *List) GetAttr(name string) (any, bool) {
	if name == "length" {
		return int64(l.Len()), true
	}
	return nil, false
}

// GetIndex implements subscript access for the expression evaluator.
func (l *List) GetIndex(key any) (any, error) {
	i, ok := indexOf(key)
	if !ok {
		return nil, fmt.Errorf("list index must be a number, got %T", key)
	}
	return l.Get(i), nil
}

// SetIndex implements subscript assignment for the expression evaluator.
func (l *List) SetIndex(key, value any) error {
	i, ok := indexOf(key)
	if !ok {
		return fmt.Errorf("list index must be a number, got %T", key)
	}
	l.Set(i, value)
	return nil
}

func indexOf(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case int64:
		return int(k), true
	case float64:
		if k == float64(int(k)) {
			return int(k), true
		}
	}
	return 0, false
}

// MarshalJSON renders the list elements as a JSON array.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.items)
}
