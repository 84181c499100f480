package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/expr"
	"github.com/deepnoodle-ai/loom/vdom"
)

// Runtime key alias tables. These mirror the tables the code generator
// embeds into generated key filters; the render layer applies the same
// checks natively.
var runtimeKeyCodes = map[string][]int{
	"esc":    {27},
	"tab":    {9},
	"enter":  {13},
	"space":  {32},
	"up":     {38},
	"left":   {37},
	"right":  {39},
	"down":   {40},
	"delete": {8, 46},
}

var runtimeKeyNames = map[string][]string{
	"esc":    {"Esc", "Escape"},
	"tab":    {"Tab"},
	"enter":  {"Enter"},
	"space":  {" ", "Spacebar"},
	"up":     {"Up", "ArrowUp"},
	"left":   {"Left", "ArrowLeft"},
	"right":  {"Right", "ArrowRight"},
	"down":   {"Down", "ArrowDown"},
	"delete": {"Backspace", "Delete", "Del"},
}

// systemModifiers are the held-key modifiers the exact guard inspects.
var systemModifiers = []string{"ctrl", "shift", "alt", "meta"}

// Optional event capabilities. Events that carry these methods have them
// invoked by the stop and prevent modifiers.
type stopper interface {
	StopPropagation()
}

type preventer interface {
	PreventDefault()
}

// handlerStep compiles one event map (on or nativeOn) into an applier
// populating the descriptor's listener table.
func (b *builder) handlerStep(events map[string][]ast.Handler, native bool) (applier, error) {
	type compiled struct {
		name     string
		nameNode expr.Node
		capture  bool
		once     bool
		passive  bool
		build    func(ctx *Context, sc expr.Scope) (vdom.HandlerFunc, error)
	}
	var entries []compiled

	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, h := range events[name] {
			entry := compiled{name: name}
			if h.Dynamic {
				node, err := b.expr(name)
				if err != nil {
					return nil, err
				}
				entry.nameNode = node
			} else {
				entry.name, entry.passive, entry.once, entry.capture = decodeEventName(name)
			}
			build, err := b.handlerFunc(h)
			if err != nil {
				return nil, err
			}
			entry.build = build
			entries = append(entries, entry)
		}
	}

	return func(ctx *Context, sc expr.Scope, data *vdom.Data) error {
		for _, entry := range entries {
			name := entry.name
			capture, once, passive := entry.capture, entry.once, entry.passive
			if entry.nameNode != nil {
				v, err := expr.Eval(entry.nameNode, sc)
				if err != nil {
					return err
				}
				name, passive, once, capture = decodeEventName(expr.DisplayString(v))
			}
			fn, err := entry.build(ctx, sc)
			if err != nil {
				return err
			}
			data.AddHandler(name, &vdom.EventHandler{
				Fn:      fn,
				Capture: capture,
				Once:    once,
				Passive: passive,
			}, native)
		}
		return nil
	}, nil
}

// decodeEventName strips the modifier markers the parser folds into
// event names: & passive, ~ once, ! capture.
func decodeEventName(name string) (event string, passive, once, capture bool) {
	if strings.HasPrefix(name, "&") {
		passive = true
		name = name[1:]
	}
	if strings.HasPrefix(name, "~") {
		once = true
		name = name[1:]
	}
	if strings.HasPrefix(name, "!") {
		capture = true
		name = name[1:]
	}
	return name, passive, once, capture
}

// handlerFunc compiles one handler body. Method paths resolve and invoke
// the named function with the event; inline statements evaluate as a
// program with $event bound. Guard modifiers run first and swallow the
// event when they trip.
func (b *builder) handlerFunc(h ast.Handler) (func(ctx *Context, sc expr.Scope) (vdom.HandlerFunc, error), error) {
	value := strings.TrimSpace(h.Value)

	var pathNode expr.Node
	var program expr.Node
	if value != "" {
		if node, err := expr.Parse(value); err == nil && expr.IsSimplePath(node) {
			pathNode = node
		} else {
			prog, err := expr.ParseProgram(value)
			if err != nil {
				return nil, fmt.Errorf("invalid handler expression %q: %w", value, err)
			}
			program = prog
		}
	}

	guards, effects, err := compileModifiers(h.Modifiers)
	if err != nil {
		return nil, err
	}

	return func(ctx *Context, sc expr.Scope) (vdom.HandlerFunc, error) {
		return func(event any) error {
			for _, guard := range guards {
				if !guard(event) {
					return nil
				}
			}
			for _, effect := range effects {
				effect(event)
			}
			switch {
			case pathNode != nil:
				fn, err := expr.Eval(pathNode, sc)
				if err != nil {
					return err
				}
				if fn == nil {
					return nil
				}
				_, err = expr.CallFunction(fn, []any{event})
				return err
			case program != nil:
				_, err := expr.Eval(program,
					newLocalScope(sc, map[string]any{"$event": event}))
				return err
			}
			return nil
		}, nil
	}, nil
}

type guardFn func(event any) bool

type effectFn func(event any)

// compileModifiers folds a handler's modifier set into guard and effect
// lists: the key filter first, then the remaining modifiers in sorted
// order, matching the structure of generated handler code.
func compileModifiers(modifiers map[string]bool) ([]guardFn, []effectFn, error) {
	if len(modifiers) == 0 {
		return nil, nil, nil
	}
	var guards []guardFn
	var effects []effectFn
	var keys []string

	names := make([]string, 0, len(modifiers))
	for name := range modifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch name {
		case "stop":
			effects = append(effects, func(event any) {
				if s, ok := event.(stopper); ok {
					s.StopPropagation()
				}
			})
		case "prevent":
			effects = append(effects, func(event any) {
				if p, ok := event.(preventer); ok {
					p.PreventDefault()
				}
			})
		case "self":
			guards = append(guards, func(event any) bool {
				target := eventAttr(event, "target")
				current := eventAttr(event, "currentTarget")
				return expr.LooseEquals(target, current)
			})
		case "ctrl", "shift", "alt", "meta":
			key := name + "Key"
			guards = append(guards, func(event any) bool {
				return expr.Truthy(eventAttr(event, key))
			})
		case "left":
			guards = append(guards, buttonGuard(0))
		case "middle":
			guards = append(guards, buttonGuard(1))
		case "right":
			guards = append(guards, buttonGuard(2))
		case "exact":
			allowed := modifiers
			guards = append(guards, func(event any) bool {
				for _, mod := range systemModifiers {
					if !allowed[mod] && expr.Truthy(eventAttr(event, mod+"Key")) {
						return false
					}
				}
				return true
			})
		case "capture", "once", "passive", "native":
			// Flags, not guards; handled by the caller.
		default:
			keys = append(keys, name)
		}
	}

	if len(keys) > 0 {
		// The key filter runs before every other guard.
		guards = append([]guardFn{keyFilter(keys)}, guards...)
	}
	return guards, effects, nil
}

// buttonGuard passes mouse events for one button. Events without button
// information pass through.
func buttonGuard(button int) guardFn {
	return func(event any) bool {
		v := eventAttr(event, "button")
		if v == nil {
			return true
		}
		n, err := strconv.Atoi(expr.DisplayString(v))
		if err != nil {
			return true
		}
		return n == button
	}
}

// keyFilter passes keyboard events matching any named or numeric key
// modifier. Non-keyboard events pass through untouched.
func keyFilter(keys []string) guardFn {
	type keySpec struct {
		code  int
		codes []int
		names []string
		alias string
	}
	specs := make([]keySpec, 0, len(keys))
	for _, key := range keys {
		if n, err := strconv.Atoi(key); err == nil {
			specs = append(specs, keySpec{code: n, codes: []int{n}})
			continue
		}
		specs = append(specs, keySpec{
			codes: runtimeKeyCodes[key],
			names: runtimeKeyNames[key],
			alias: key,
		})
	}
	return func(event any) bool {
		eventType := expr.DisplayString(eventAttr(event, "type"))
		if !strings.HasPrefix(eventType, "key") {
			return true
		}
		keyCode, hasCode := eventInt(event, "keyCode")
		keyName := expr.DisplayString(eventAttr(event, "key"))
		for _, spec := range specs {
			if hasCode {
				for _, code := range spec.codes {
					if code == keyCode {
						return true
					}
				}
			}
			if keyName != "" {
				for _, name := range spec.names {
					if name == keyName {
						return true
					}
				}
				// Unconfigured aliases fall back to comparing the
				// hyphenated key name.
				if len(spec.codes) == 0 && len(spec.names) == 0 &&
					hyphenate(keyName) == spec.alias {
					return true
				}
			}
		}
		return false
	}
}

func eventAttr(event any, name string) any {
	v, err := expr.GetAttribute(event, name)
	if err != nil {
		return nil
	}
	return v
}

func eventInt(event any, name string) (int, bool) {
	v := eventAttr(event, name)
	if v == nil {
		return 0, false
	}
	n, err := strconv.Atoi(expr.DisplayString(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// hyphenate converts camelCase to kebab-case.
func hyphenate(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
