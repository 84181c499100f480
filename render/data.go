package render

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/expr"
	"github.com/deepnoodle-ai/loom/vdom"
)

// dataFn evaluates an element's data descriptor against a scope.
type dataFn func(ctx *Context, sc expr.Scope) (*vdom.Data, error)

// applier is one evaluation step contributing to a data descriptor.
type applier func(ctx *Context, sc expr.Scope, data *vdom.Data) error

// data compiles an element's bindings into evaluation steps, mirroring
// the generated descriptor field by field. Directive wrappers for
// argument-less v-bind and v-on run last, after every direct binding.
func (b *builder) data(el *ast.Element) (dataFn, error) {
	var steps []applier
	var post []applier

	directiveSteps, bindWrap, onWrap, err := b.directives(el)
	if err != nil {
		return nil, err
	}
	steps = append(steps, directiveSteps...)
	if bindWrap != nil {
		post = append(post, bindWrap)
	}
	if onWrap != nil {
		post = append(post, onWrap)
	}

	if el.Key != "" {
		keyNode, err := b.expr(el.Key)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			v, err := expr.Eval(keyNode, sc)
			if err != nil {
				return err
			}
			data.Key = v
			return nil
		})
	}

	if el.Ref != "" {
		refNode, err := b.expr(el.Ref)
		if err != nil {
			return nil, err
		}
		refInFor := el.RefInFor
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			v, err := expr.Eval(refNode, sc)
			if err != nil {
				return err
			}
			data.Ref = expr.DisplayString(v)
			data.RefInFor = refInFor
			return nil
		})
	}

	if el.Pre {
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			data.Pre = true
			return nil
		})
	}

	if el.Component != "" {
		tag := el.Tag
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			data.Tag = tag
			return nil
		})
	}

	classStep, err := b.classData(el)
	if err != nil {
		return nil, err
	}
	if classStep != nil {
		steps = append(steps, classStep)
	}
	styleStep, err := b.styleData(el)
	if err != nil {
		return nil, err
	}
	if styleStep != nil {
		steps = append(steps, styleStep)
	}

	if len(el.Attrs) > 0 {
		step, err := b.attrStep(el.Attrs, func(data *vdom.Data) map[string]any {
			if data.Attrs == nil {
				data.Attrs = make(map[string]any)
			}
			return data.Attrs
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if len(el.Props) > 0 {
		step, err := b.attrStep(el.Props, func(data *vdom.Data) map[string]any {
			if data.DomProps == nil {
				data.DomProps = make(map[string]any)
			}
			return data.DomProps
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if len(el.DynamicAttrs) > 0 {
		step, err := b.dynamicAttrStep(el.DynamicAttrs)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if len(el.Events) > 0 {
		step, err := b.handlerStep(el.Events, false)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if len(el.NativeEvents) > 0 {
		step, err := b.handlerStep(el.NativeEvents, true)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if el.SlotTarget != "" && el.SlotScope == "" {
		targetNode, err := b.expr(el.SlotTarget)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			v, err := expr.Eval(targetNode, sc)
			if err != nil {
				return err
			}
			data.Slot = expr.DisplayString(v)
			return nil
		})
	}

	if len(el.ScopedSlots) > 0 {
		step, err := b.scopedSlotStep(el)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if el.Model != nil {
		step, err := b.modelStep(el.Model)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	steps = append(steps, post...)

	return func(ctx *Context, sc expr.Scope) (*vdom.Data, error) {
		data := &vdom.Data{}
		for _, step := range steps {
			if err := step(ctx, sc, data); err != nil {
				return nil, err
			}
		}
		return data, nil
	}, nil
}

func (b *builder) classData(el *ast.Element) (applier, error) {
	staticClass := ""
	if el.StaticClass != "" {
		if err := json.Unmarshal([]byte(el.StaticClass), &staticClass); err != nil {
			return nil, fmt.Errorf("invalid static class %s: %w", el.StaticClass, err)
		}
	}
	var classNode expr.Node
	if el.ClassBinding != "" {
		var err error
		classNode, err = b.expr(el.ClassBinding)
		if err != nil {
			return nil, err
		}
	}
	if staticClass == "" && classNode == nil {
		return nil, nil
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		data.StaticClass = staticClass
		if classNode != nil {
			v, err := expr.Eval(classNode, sc)
			if err != nil {
				return err
			}
			data.Class = v
		}
		return nil
	}, nil
}

func (b *builder) styleData(el *ast.Element) (applier, error) {
	var staticStyle map[string]string
	if el.StaticStyle != "" {
		if err := json.Unmarshal([]byte(el.StaticStyle), &staticStyle); err != nil {
			return nil, fmt.Errorf("invalid static style %s: %w", el.StaticStyle, err)
		}
	}
	var styleNode expr.Node
	if el.StyleBinding != "" {
		var err error
		styleNode, err = b.expr(el.StyleBinding)
		if err != nil {
			return nil, err
		}
	}
	if staticStyle == nil && styleNode == nil {
		return nil, nil
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		data.StaticStyle = staticStyle
		if styleNode != nil {
			v, err := expr.Eval(styleNode, sc)
			if err != nil {
				return err
			}
			data.Style = v
		}
		return nil
	}, nil
}

func (b *builder) attrStep(attrs []ast.Attr, target func(*vdom.Data) map[string]any) (applier, error) {
	type entry struct {
		name  string
		value expr.Node
	}
	entries := make([]entry, 0, len(attrs))
	for _, attr := range attrs {
		node, err := b.expr(attr.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{name: attr.Name, value: node})
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		dst := target(data)
		for _, e := range entries {
			v, err := expr.Eval(e.value, sc)
			if err != nil {
				return err
			}
			dst[e.name] = v
		}
		return nil
	}, nil
}

// dynamicAttrStep evaluates :[name]="value" bindings, skipping entries
// whose name evaluates to nothing.
func (b *builder) dynamicAttrStep(attrs []ast.Attr) (applier, error) {
	type entry struct {
		name  expr.Node
		value expr.Node
	}
	entries := make([]entry, 0, len(attrs))
	for _, attr := range attrs {
		nameNode, err := b.expr(attr.Name)
		if err != nil {
			return nil, err
		}
		valueNode, err := b.expr(attr.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{name: nameNode, value: valueNode})
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		for _, e := range entries {
			nameValue, err := expr.Eval(e.name, sc)
			if err != nil {
				return err
			}
			if nameValue == nil {
				continue
			}
			name := expr.DisplayString(nameValue)
			if name == "" {
				continue
			}
			v, err := expr.Eval(e.value, sc)
			if err != nil {
				return err
			}
			if data.Attrs == nil {
				data.Attrs = make(map[string]any)
			}
			data.Attrs[name] = v
		}
		return nil
	}, nil
}

// scopedSlotStep builds the component's scoped slot table. Slot names may
// be dynamic, so keys evaluate per render; each slot function captures
// the scope active when the component rendered.
func (b *builder) scopedSlotStep(el *ast.Element) (applier, error) {
	type slotEntry struct {
		name  expr.Node
		scope string
		frag  fragFn
		proxy bool
	}
	entries := make([]slotEntry, 0, len(el.ScopedSlots))
	for _, name := range sortedSlotNames(el.ScopedSlots) {
		slotEl := el.ScopedSlots[name]
		nameNode, err := b.expr(name)
		if err != nil {
			return nil, err
		}
		var frag fragFn
		if slotEl.Tag == "template" {
			frag, err = b.children(slotEl)
		} else {
			frag, err = b.element(slotEl)
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, slotEntry{
			name:  nameNode,
			scope: slotEl.SlotScope,
			frag:  frag,
			proxy: slotEl.SlotScope == "",
		})
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		if data.ScopedSlots == nil {
			data.ScopedSlots = make(map[string]*vdom.ScopedSlot, len(entries))
		}
		for _, e := range entries {
			nameValue, err := expr.Eval(e.name, sc)
			if err != nil {
				return err
			}
			entry := e
			outer := sc
			data.ScopedSlots[expr.DisplayString(nameValue)] = &vdom.ScopedSlot{
				Proxy: entry.proxy,
				Fn: func(props any) ([]*vdom.VNode, error) {
					slotScope := newLocalScope(outer, nil)
					if entry.scope != "" {
						slotScope.vars[entry.scope] = props
					} else {
						slotScope.proxy = props
					}
					return entry.frag(ctx, slotScope)
				},
			}
		}
		return nil
	}, nil
}

func sortedSlotNames(slots map[string]*ast.Element) []string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modelStep evaluates a component v-model binding: the current value and
// a callback running the compiled write-back with the emitted value.
func (b *builder) modelStep(model *ast.ModelBinding) (applier, error) {
	valueNode, err := b.expr(model.Value)
	if err != nil {
		return nil, err
	}
	callback, err := expr.ParseProgram(model.Callback)
	if err != nil {
		return nil, fmt.Errorf("invalid model callback %q: %w", model.Callback, err)
	}
	expression := ""
	if err := json.Unmarshal([]byte(model.Expression), &expression); err != nil {
		expression = model.Expression
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		v, err := expr.Eval(valueNode, sc)
		if err != nil {
			return err
		}
		data.Model = &vdom.Model{
			Value:      v,
			Expression: expression,
			Callback: func(emitted any) error {
				_, err := expr.Eval(callback,
					newLocalScope(sc, map[string]any{"$$v": emitted}))
				return err
			},
		}
		return nil
	}, nil
}

// directives compiles the element's directive list: argument-less v-bind
// and v-on become post-wrappers merging whole objects into the
// descriptor, and directives without compile-time expansion become
// runtime descriptors for the embedder.
func (b *builder) directives(el *ast.Element) (steps []applier, bindWrap, onWrap applier, err error) {
	for i := range el.Directives {
		dir := &el.Directives[i]
		switch dir.Name {
		case "bind":
			if dir.Arg == "" {
				bindWrap, err = b.bindObject(el, dir)
				if err != nil {
					return nil, nil, nil, err
				}
				continue
			}
		case "on":
			if dir.Arg == "" {
				onWrap, err = b.onObject(dir)
				if err != nil {
					return nil, nil, nil, err
				}
				continue
			}
		case "cloak":
			continue
		}

		needRuntime := true
		if dir.Processed {
			needRuntime = dir.NeedsRuntime
		} else if gen, ok := b.opts.Directives[dir.Name]; ok && gen != nil {
			needRuntime = gen(el, dir, b.opts.Warn)
			dir.Processed = true
			dir.NeedsRuntime = needRuntime
		}
		if !needRuntime {
			continue
		}

		var valueNode expr.Node
		if dir.Value != "" {
			valueNode, err = b.expr(dir.Value)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		var argNode expr.Node
		if dir.Arg != "" && dir.DynamicArg {
			argNode, err = b.expr(dir.Arg)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		d := dir
		steps = append(steps, func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
			binding := vdom.DirectiveBinding{
				Name:       d.Name,
				RawName:    d.RawName,
				Expression: d.Value,
				Arg:        d.Arg,
				Modifiers:  d.Modifiers,
			}
			if valueNode != nil {
				v, err := expr.Eval(valueNode, sc)
				if err != nil {
					return err
				}
				binding.Value = v
			}
			if argNode != nil {
				v, err := expr.Eval(argNode, sc)
				if err != nil {
					return err
				}
				binding.Arg = expr.DisplayString(v)
			}
			data.Directives = append(data.Directives, binding)
			return nil
		})
	}
	return steps, bindWrap, onWrap, nil
}

// bindObject merges a v-bind="object" value into the descriptor: class
// and style route to their own fields, property-routed names to DomProps,
// everything else to Attrs. With .sync, update handlers writing back into
// the source object are added per key.
func (b *builder) bindObject(el *ast.Element, dir *ast.Directive) (applier, error) {
	if dir.Value == "" {
		return nil, nil
	}
	valueNode, err := b.expr(dir.Value)
	if err != nil {
		return nil, err
	}
	tag := el.Tag
	attrType := el.AttrsMap["type"]
	asProp := dir.Modifiers["prop"]
	sync := dir.Modifiers["sync"]
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		source, err := expr.Eval(valueNode, sc)
		if err != nil {
			return err
		}
		if source == nil {
			return nil
		}
		entries := make(map[string]any)
		mergeObjectInto(entries, source)
		for _, key := range sortedKeys(entries) {
			value := entries[key]
			switch {
			case key == "class":
				data.Class = value
			case key == "style":
				data.Style = value
			case asProp || (b.opts.MustUseProp != nil && b.opts.MustUseProp(tag, attrType, key)):
				if data.DomProps == nil {
					data.DomProps = make(map[string]any)
				}
				data.DomProps[key] = value
			default:
				if data.Attrs == nil {
					data.Attrs = make(map[string]any)
				}
				data.Attrs[key] = value
			}
			if sync {
				key := key
				data.AddHandler("update:"+camelize(key), &vdom.EventHandler{
					Fn: func(event any) error {
						_, err := reactiveSet(source, key, event)
						return err
					},
				}, false)
			}
		}
		return nil
	}, nil
}

// onObject merges a v-on="object" value: each entry's function value
// becomes a listener invoked with the dispatched event.
func (b *builder) onObject(dir *ast.Directive) (applier, error) {
	if dir.Value == "" {
		return nil, nil
	}
	valueNode, err := b.expr(dir.Value)
	if err != nil {
		return nil, err
	}
	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		source, err := expr.Eval(valueNode, sc)
		if err != nil {
			return err
		}
		if source == nil {
			return nil
		}
		entries := make(map[string]any)
		mergeObjectInto(entries, source)
		for _, name := range sortedKeys(entries) {
			fn := entries[name]
			if fn == nil {
				continue
			}
			listener := fn
			data.AddHandler(name, &vdom.EventHandler{
				Fn: func(event any) error {
					_, err := expr.CallFunction(listener, []any{event})
					return err
				},
			}, false)
		}
		return nil
	}, nil
}
