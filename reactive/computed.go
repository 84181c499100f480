package reactive

// Computed is a lazily evaluated derived value backed by a lazy watcher.
// The first read evaluates the function and caches the result; the cache is
// invalidated when any dependency read during evaluation changes, and the
// next read re-evaluates. Reading a computed while another watcher is
// active subscribes that watcher to the computed's own dependencies.
type Computed struct {
	rt *Runtime
	w  *Watcher
}

// NewComputed creates a computed value. The function does not run until the
// first call to Value.
func NewComputed(rt *Runtime, fn EvalFunc, expression string) *Computed {
	// Lazy watchers never evaluate at construction, so this cannot fail.
	w, _ := NewWatcher(rt, nil, fn, nil, WatcherOptions{
		Lazy:       true,
		Expression: expression,
	})
	return &Computed{rt: rt, w: w}
}

// Value returns the current value, re-evaluating only when dirty.
func (c *Computed) Value() (any, error) {
	if c.w.dirty {
		if err := c.w.Evaluate(); err != nil {
			return nil, err
		}
	}
	if c.rt.target != nil {
		c.w.Depend()
	}
	return c.w.value, nil
}

// Dirty reports whether the next read will re-evaluate.
func (c *Computed) Dirty() bool {
	return c.w.dirty
}

// Teardown unsubscribes the computed from all of its dependencies.
func (c *Computed) Teardown() {
	c.w.Teardown()
}
