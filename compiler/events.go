package compiler

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/expr"
)

var (
	fnExpRE    = regexp.MustCompile(`^([\w$_]+|\([^)]*?\))\s*=>|^function(?:\s+[\w$]+)?\s*\(`)
	fnInvokeRE = regexp.MustCompile(`\([^)]*?\);*$`)
)

// Built-in key aliases, with both legacy keyCode values and the KeyboardEvent
// key names browsers report.
var keyCodes = map[string][]int{
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

var keyNames = map[string][]string{
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

// Modifier guards that compile to inline statements. The left, right, and
// middle button modifiers map to button indices when the event carries one.
var modifierCode = map[string]string{
	"stop":    "$event.stopPropagation();",
	"prevent": "$event.preventDefault();",
	"self":    genGuard("$event.target !== $event.currentTarget"),
	"ctrl":    genGuard("!$event.ctrlKey"),
	"shift":   genGuard("!$event.shiftKey"),
	"alt":     genGuard("!$event.altKey"),
	"meta":    genGuard("!$event.metaKey"),
	"left":    genGuard("'button' in $event && $event.button !== 0"),
	"middle":  genGuard("'button' in $event && $event.button !== 1"),
	"right":   genGuard("'button' in $event && $event.button !== 2"),
}

func genGuard(condition string) string {
	return "if(" + condition + ")return null;"
}

// isSimplePath reports whether a handler value is a bare method reference
// like handleClick or nav.go, as opposed to an inline statement.
func isSimplePath(value string) bool {
	node, err := expr.Parse(value)
	return err == nil && expr.IsSimplePath(node)
}

// genHandlers emits the event map for one element. Handlers with static
// names form an object literal; dynamic names go through the dynamic-key
// helper. Names emit in sorted order so output is deterministic.
func genHandlers(events map[string][]ast.Handler, isNative bool) string {
	prefix := "on:"
	if isNative {
		prefix = "nativeOn:"
	}
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)

	var staticHandlers, dynamicHandlers strings.Builder
	for _, name := range names {
		handlers := events[name]
		code := genHandler(handlers)
		if len(handlers) == 1 && handlers[0].Dynamic {
			dynamicHandlers.WriteString(name + "," + code + ",")
		} else {
			staticHandlers.WriteString(`"` + name + `":` + code + ",")
		}
	}
	static := "{" + strings.TrimSuffix(staticHandlers.String(), ",") + "}"
	if dynamicHandlers.Len() > 0 {
		return prefix + "_d(" + static + ",[" + strings.TrimSuffix(dynamicHandlers.String(), ",") + "])"
	}
	return prefix + static
}

func genHandler(handlers []ast.Handler) string {
	if len(handlers) == 0 {
		return "function(){}"
	}
	if len(handlers) > 1 {
		parts := make([]string, len(handlers))
		for i, h := range handlers {
			parts[i] = genHandler([]ast.Handler{h})
		}
		return "[" + strings.Join(parts, ",") + "]"
	}

	handler := handlers[0]
	isMethodPath := isSimplePath(handler.Value)
	isFunctionExpression := fnExpRE.MatchString(handler.Value)
	isFunctionInvocation := fnInvokeRE.MatchString(handler.Value)

	if len(handler.Modifiers) == 0 {
		if isMethodPath || isFunctionExpression {
			return handler.Value
		}
		// Inline statement: wrap so $event is in scope.
		if isFunctionInvocation {
			return "function($event){return " + handler.Value + "}"
		}
		return "function($event){" + handler.Value + "}"
	}

	var code, modifiers string
	var keys []string
	names := make([]string, 0, len(handler.Modifiers))
	for name := range handler.Modifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, key := range names {
		if guard, ok := modifierCode[key]; ok {
			modifiers += guard
			// left/right also double as key names for keyboard events.
			if _, isKey := keyCodes[key]; isKey {
				keys = append(keys, key)
			}
		} else if key == "exact" {
			var conditions []string
			for _, k := range []string{"ctrl", "shift", "alt", "meta"} {
				if !handler.Modifiers[k] {
					conditions = append(conditions, "$event."+k+"Key")
				}
			}
			modifiers += genGuard(strings.Join(conditions, "||"))
		} else {
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		code += genKeyFilter(keys)
	}
	// Key filter runs first so modifier guards do not block keyup checks.
	code += modifiers

	var handlerCode string
	switch {
	case isMethodPath:
		handlerCode = "return " + handler.Value + ".apply(null, arguments)"
	case isFunctionExpression:
		handlerCode = "return (" + handler.Value + ").apply(null, arguments)"
	case isFunctionInvocation:
		handlerCode = "return " + handler.Value
	default:
		handlerCode = handler.Value
	}
	return "function($event){" + code + handlerCode + "}"
}

func genKeyFilter(keys []string) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = genFilterCode(key)
	}
	// Applies to keyboard events only; other event types pass through.
	return "if(!$event.type.indexOf('key')&&" + strings.Join(parts, "&&") + ")return null;"
}

func genFilterCode(key string) string {
	if keyVal, err := strconv.Atoi(key); err == nil {
		return "$event.keyCode!==" + strconv.Itoa(keyVal)
	}
	keyName, _ := json.Marshal(key)
	codes := "undefined"
	if kc, ok := keyCodes[key]; ok {
		if len(kc) == 1 {
			codes = strconv.Itoa(kc[0])
		} else {
			var parts []string
			for _, c := range kc {
				parts = append(parts, strconv.Itoa(c))
			}
			codes = "[" + strings.Join(parts, ",") + "]"
		}
	}
	aliases := "undefined"
	if kn, ok := keyNames[key]; ok {
		encoded, _ := json.Marshal(kn)
		aliases = string(encoded)
	}
	return "_k($event.keyCode," + string(keyName) + "," + codes + ",$event.key," + aliases + ")"
}
