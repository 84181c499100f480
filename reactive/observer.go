package reactive

// Internal marks framework-internal values that must never be converted
// into observed state, such as virtual nodes handed to the renderer.
type Internal interface {
	ReactiveInternal()
}

// Observer is the handle attached to a container once it has been observed.
// It exposes the container's structural dep, which fires for changes no
// cell-level accessor can intercept: key additions and deletions on maps,
// and any mutation of a list.
type Observer struct {
	rt    *Runtime
	dep   *Dep
	value any
}

// Dep returns the container's structural dependency node.
func (o *Observer) Dep() *Dep {
	return o.dep
}

// Value returns the observed container (*Map or *List).
func (o *Observer) Value() any {
	return o.value
}

// Convert returns an observable version of a plain value: map[string]any
// becomes a Map, []any becomes a List, with nested values converted
// recursively. Containers and every other value pass through unchanged.
// Conversion is skipped while observation is disabled.
func (rt *Runtime) Convert(v any) any {
	if !rt.shouldObserve {
		return v
	}
	switch x := v.(type) {
	case map[string]any:
		return MapOf(rt, x)
	case []any:
		return ListOf(rt, x)
	}
	return v
}

// Observe attaches an Observer to a container and returns it, creating one
// only when the value is an eligible container: frozen containers, internal
// framework values, and non-container values yield nil, as does any call
// made while observation is disabled. Observing is idempotent; a container
// that already carries an Observer returns the existing one without
// re-instrumenting. Nested plain maps and slices held by the container are
// converted and observed recursively.
func (rt *Runtime) Observe(value any) *Observer {
	if !rt.shouldObserve {
		return nil
	}
	if _, internal := value.(Internal); internal {
		return nil
	}
	switch v := value.(type) {
	case *Map:
		if v.frozen {
			return nil
		}
		if v.ob != nil {
			return v.ob
		}
		v.ob = &Observer{rt: rt, dep: v.dep, value: v}
		for _, key := range v.keys {
			c := v.cells[key]
			if c.getter != nil {
				continue
			}
			c.value = rt.Convert(c.value)
			rt.Observe(c.value)
		}
		return v.ob
	case *List:
		if v.frozen {
			return nil
		}
		if v.ob != nil {
			return v.ob
		}
		v.ob = &Observer{rt: rt, dep: v.dep, value: v}
		for i := range v.items {
			v.items[i] = rt.Convert(v.items[i])
			rt.Observe(v.items[i])
		}
		return v.ob
	}
	return nil
}

// ObserverOf returns the Observer already attached to a container, or nil.
func ObserverOf(value any) *Observer {
	switch v := value.(type) {
	case *Map:
		return v.ob
	case *List:
		return v.ob
	}
	return nil
}
