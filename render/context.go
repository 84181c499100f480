// Package render turns compiled template trees into virtual node builders.
//
// Build walks the annotated element tree once and produces a Func of
// closures mirroring the generated program's structure. Calling the Func
// against a Context evaluates every embedded expression through the
// expression engine, so reads of reactive state register dependencies on
// whatever watcher is active at the time.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/loom/expr"
	"github.com/deepnoodle-ai/loom/reactive"
	"github.com/deepnoodle-ai/loom/vdom"
)

// Func renders one tree against a context.
type Func func(ctx *Context) (*vdom.VNode, error)

// SlotFunc supplies externally provided slot content for an outlet name.
// Scoped outlets receive the props object bound at the outlet.
type SlotFunc func(props any) ([]*vdom.VNode, error)

// Context carries the per-component state a render reads: the state
// object, the filter registry, provided slot content, and the caches
// backing static and once subtrees.
type Context struct {
	state   any
	filters map[string]any
	slots   map[string]SlotFunc
	helpers map[string]any

	staticCache map[any][]*vdom.VNode
	onceCache   map[onceKey][]*vdom.VNode
}

type onceKey struct {
	node any
	key  string
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithFilter registers a filter invocable from template pipe expressions.
func WithFilter(name string, fn any) ContextOption {
	return func(ctx *Context) {
		ctx.filters[name] = fn
	}
}

// WithFilters registers a batch of filters.
func WithFilters(filters map[string]any) ContextOption {
	return func(ctx *Context) {
		for name, fn := range filters {
			ctx.filters[name] = fn
		}
	}
}

// WithSlot provides content for a slot outlet name.
func WithSlot(name string, fn SlotFunc) ContextOption {
	return func(ctx *Context) {
		ctx.slots[name] = fn
	}
}

// NewContext creates a render context over a state object. State is
// usually a *reactive.Map so renders running under a watcher re-run on
// mutation, but any attribute-bearing value works for one-shot renders.
func NewContext(state any, opts ...ContextOption) *Context {
	ctx := &Context{
		state:       state,
		filters:     make(map[string]any),
		slots:       make(map[string]SlotFunc),
		staticCache: make(map[any][]*vdom.VNode),
		onceCache:   make(map[onceKey][]*vdom.VNode),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.helpers = runtimeHelpers(ctx)
	return ctx
}

// State returns the state object the context renders against.
func (ctx *Context) State() any {
	return ctx.state
}

// scope returns the root of the context's resolution chain.
func (ctx *Context) scope() expr.Scope {
	return &contextScope{ctx: ctx}
}

// contextScope resolves names the way generated programs expect: runtime
// helper names (underscore and dollar prefixed) resolve first, everything
// else reads the state object. Reads of a missing key on reactive state
// still register on the map's structural dep, so defining the key later
// re-renders.
type contextScope struct {
	ctx *Context
}

func (s *contextScope) Resolve(name string) (any, bool) {
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, "$") {
		if helper, ok := s.ctx.helpers[name]; ok {
			return helper, true
		}
	}
	switch state := s.ctx.state.(type) {
	case nil:
		return nil, false
	case expr.Object:
		return state.GetAttr(name)
	case map[string]any:
		v, ok := state[name]
		return v, ok
	default:
		v, err := expr.GetAttribute(state, name)
		if err != nil {
			return nil, false
		}
		return v, true
	}
}

func (s *contextScope) Assign(name string, value any) error {
	switch state := s.ctx.state.(type) {
	case expr.MutableObject:
		return state.SetAttr(name, value)
	case map[string]any:
		state[name] = value
		return nil
	}
	return fmt.Errorf("cannot assign %s: state is not writable", name)
}

// localScope layers loop aliases, slot props, and handler event objects
// over an outer scope. A scope created for scope-less slot content also
// proxies attribute reads of the props object.
type localScope struct {
	vars   map[string]any
	proxy  any
	parent expr.Scope
}

func (s *localScope) Resolve(name string) (any, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.proxy != nil {
		if v, err := expr.GetAttribute(s.proxy, name); err == nil && v != nil {
			return v, true
		}
	}
	return s.parent.Resolve(name)
}

func (s *localScope) Assign(name string, value any) error {
	if _, ok := s.vars[name]; ok {
		s.vars[name] = value
		return nil
	}
	if parent, ok := s.parent.(expr.MutableScope); ok {
		return parent.Assign(name, value)
	}
	return fmt.Errorf("cannot assign %s: scope is read-only", name)
}

func newLocalScope(parent expr.Scope, vars map[string]any) *localScope {
	if vars == nil {
		vars = make(map[string]any)
	}
	return &localScope{vars: vars, parent: parent}
}

// runtimeHelpers builds the helper table generated expressions call into:
// string coercion, filter lookup, the v-model value helpers, and reactive
// path assignment.
func runtimeHelpers(ctx *Context) map[string]any {
	return map[string]any{
		"_s": func(v any) string { return expr.DisplayString(v) },
		"_f": func(name string) any {
			if fn, ok := ctx.filters[name]; ok {
				return fn
			}
			// Unknown filters pass values through unchanged.
			return func(v any) any { return v }
		},
		"_p": func(name any, symbol string) string {
			return symbol + expr.DisplayString(name)
		},
		"_n":      toNumber,
		"_tr":     trimValue,
		"_q":      func(a, b any) bool { return expr.LooseEquals(a, b) },
		"_i":      looseIndexOf,
		"_ck":     checkboxChecked,
		"_cx":     checkboxNext,
		"_sv":     selectValue,
		"$set":    reactiveSet,
		"$delete": reactiveDelete,
	}
}

// toNumber converts a string to a number the way template number
// modifiers do: unparseable input passes through unchanged.
func toNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return v
	}
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

// trimValue trims string values and passes everything else through.
func trimValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

// looseIndexOf finds a value in a list under loose equality, returning -1
// when absent.
func looseIndexOf(list, value any) int {
	switch l := list.(type) {
	case *reactive.List:
		for i, item := range l.Values() {
			if expr.LooseEquals(item, value) {
				return i
			}
		}
	case []any:
		for i, item := range l {
			if expr.LooseEquals(item, value) {
				return i
			}
		}
	}
	return -1
}

// checkboxChecked computes the checked state for a checkbox model: array
// models check membership, everything else compares against the
// true-value binding.
func checkboxChecked(value, valueBinding, trueValue any) bool {
	switch value.(type) {
	case *reactive.List, []any:
		return looseIndexOf(value, valueBinding) > -1
	}
	return expr.LooseEquals(value, trueValue)
}

// checkboxNext computes the model value after a checkbox toggles. Array
// models add or remove the checkbox's value binding in place; scalar
// models flip between the true and false value bindings.
func checkboxNext(value, checked, valueBinding, trueValue, falseValue, number any) any {
	item := valueBinding
	if Truthy(number) {
		item = toNumber(item)
	}
	switch list := value.(type) {
	case *reactive.List:
		idx := looseIndexOf(list, item)
		if Truthy(checked) {
			if idx < 0 {
				list.Push(item)
			}
		} else if idx > -1 {
			list.Splice(idx, 1)
		}
		return list
	case []any:
		idx := looseIndexOf(list, item)
		if Truthy(checked) {
			if idx < 0 {
				return append(append([]any{}, list...), item)
			}
			return list
		}
		if idx > -1 {
			return append(append([]any{}, list[:idx]...), list[idx+1:]...)
		}
		return list
	}
	if Truthy(checked) {
		return trueValue
	}
	return falseValue
}

// selectValue reads the selection from a select change event: the
// target's values list when multiple, its value otherwise.
func selectValue(event, number any) (any, error) {
	target, err := expr.GetAttribute(event, "target")
	if err != nil {
		return nil, err
	}
	multiple, _ := expr.GetAttribute(target, "multiple")
	if Truthy(multiple) {
		values, _ := expr.GetAttribute(target, "values")
		if Truthy(number) {
			switch list := values.(type) {
			case []any:
				out := make([]any, len(list))
				for i, v := range list {
					out[i] = toNumber(v)
				}
				return out, nil
			}
		}
		return values, nil
	}
	value, _ := expr.GetAttribute(target, "value")
	if Truthy(number) {
		return toNumber(value), nil
	}
	return value, nil
}

// reactiveSet writes a value through a container so the write is
// observed: maps by key, lists by index, plain Go maps directly.
func reactiveSet(target, key, value any) (any, error) {
	switch t := target.(type) {
	case *reactive.Map:
		t.Set(expr.DisplayString(key), value)
		return value, nil
	case *reactive.List:
		i, err := listIndex(key)
		if err != nil {
			return nil, err
		}
		t.Set(i, value)
		return value, nil
	case map[string]any:
		t[expr.DisplayString(key)] = value
		return value, nil
	}
	return nil, fmt.Errorf("$set target must be a map or list, got %T", target)
}

// reactiveDelete removes a key from an observed map.
func reactiveDelete(target, key any) (any, error) {
	switch t := target.(type) {
	case *reactive.Map:
		t.Delete(expr.DisplayString(key))
		return nil, nil
	case map[string]any:
		delete(t, expr.DisplayString(key))
		return nil, nil
	}
	return nil, fmt.Errorf("$delete target must be a map, got %T", target)
}

func listIndex(key any) (int, error) {
	switch k := key.(type) {
	case int:
		return k, nil
	case int64:
		return int(k), nil
	case float64:
		return int(k), nil
	case string:
		i, err := strconv.Atoi(k)
		if err != nil {
			return 0, fmt.Errorf("list index must be a number, got %q", k)
		}
		return i, nil
	}
	return 0, fmt.Errorf("list index must be a number, got %T", key)
}

// Truthy re-exports template truthiness for embedders dispatching events
// against rendered handler tables.
func Truthy(v any) bool {
	return expr.Truthy(v)
}

// sortedKeys returns map keys in a stable order for deterministic
// iteration of plain Go maps in v-for.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
