package loom

import (
	"github.com/deepnoodle-ai/loom/reactive"
	"github.com/deepnoodle-ai/loom/render"
	"github.com/deepnoodle-ai/loom/vdom"
)

// CompiledTemplate is the executable form of a template: the compile
// result plus the render function built from it. It is immutable after
// creation and safe for concurrent use; each render runs against its own
// Context.
type CompiledTemplate struct {
	source   string
	filename string
	result   *CompileResult
	render   render.Func
	filters  map[string]any
}

// Source returns the original template text.
func (t *CompiledTemplate) Source() string {
	return t.source
}

// Filename returns the filename associated with the template, if any.
func (t *CompiledTemplate) Filename() string {
	return t.filename
}

// Result returns the underlying compile result, including the annotated
// tree and generated program text.
func (t *CompiledTemplate) Result() *CompileResult {
	return t.result
}

// Context creates a render context over a state object, carrying the
// filters registered at compile time. State is usually a *reactive.Map
// so renders running under a watcher re-run on mutation.
func (t *CompiledTemplate) Context(state any, opts ...render.ContextOption) *render.Context {
	all := make([]render.ContextOption, 0, len(opts)+1)
	if len(t.filters) > 0 {
		all = append(all, render.WithFilters(t.filters))
	}
	all = append(all, opts...)
	return render.NewContext(state, all...)
}

// Render builds the template's virtual node tree against a state object.
// Each call creates a fresh context, so static subtree caches are not
// shared between calls; use RenderContext for repeated renders.
func (t *CompiledTemplate) Render(state any, opts ...render.ContextOption) (*vdom.VNode, error) {
	return t.render(t.Context(state, opts...))
}

// RenderContext builds the tree against an existing context, reusing its
// static and once caches.
func (t *CompiledTemplate) RenderContext(ctx *render.Context) (*vdom.VNode, error) {
	return t.render(ctx)
}

// Watch renders the template under a watcher and invokes fn with every
// new tree after the state it reads changes. The initial tree is
// produced immediately through fn. Tear down the returned watcher to
// stop receiving updates.
func (t *CompiledTemplate) Watch(rt *reactive.Runtime, state any, fn func(*vdom.VNode),
	opts ...render.ContextOption) (*reactive.Watcher, error) {
	ctx := t.Context(state, opts...)
	w, err := reactive.NewWatcher(rt, t,
		func() (any, error) { return t.render(ctx) },
		func(newValue, _ any) {
			if node, ok := newValue.(*vdom.VNode); ok {
				fn(node)
			}
		},
		reactive.WatcherOptions{Expression: t.filename})
	if err != nil {
		return nil, err
	}
	if node, ok := w.Value().(*vdom.VNode); ok {
		fn(node)
	}
	return w, nil
}
