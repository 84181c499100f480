package compiler

import (
	"encoding/json"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
)

// StyleModule normalizes style attributes: the plain style attribute is
// parsed into a property map and pre-serialized, and :style becomes a
// binding expression.
func StyleModule() Module {
	return Module{
		StaticKeys:    []string{"staticStyle"},
		TransformNode: transformStyle,
		GenData:       genStyleData,
	}
}

// parseStyleText splits inline CSS declaration text into property/value
// pairs, preserving declaration order.
func parseStyleText(cssText string) ([]string, map[string]string) {
	var order []string
	values := map[string]string{}
	for _, item := range splitStyleDeclarations(cssText) {
		colon := strings.Index(item, ":")
		if colon <= 0 {
			continue
		}
		name := strings.TrimSpace(item[:colon])
		value := strings.TrimSpace(item[colon+1:])
		if name == "" || value == "" {
			continue
		}
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = value
	}
	return order, values
}

func splitStyleDeclarations(cssText string) []string {
	var items []string
	depth := 0
	start := 0
	for i := 0; i < len(cssText); i++ {
		switch cssText[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				items = append(items, cssText[start:i])
				start = i + 1
			}
		}
	}
	if start < len(cssText) {
		items = append(items, cssText[start:])
	}
	return items
}

func transformStyle(el *ast.Element, opts *Options) {
	warn := opts.Warn
	staticStyle, src, ok := getAndRemoveAttr(el, "style", false)
	if ok {
		if warn != nil && ParseText(staticStyle, opts.delimiters()) != nil {
			warn(`style="`+staticStyle+`": interpolation inside attributes has been removed. `+
				`Use :style or the bind syntax instead, for example <div :style="val">.`,
				src.StartPos, src.EndPos, false)
		}
		el.StaticStyle = serializeStyle(staticStyle)
	}
	if binding, ok := getBindingAttr(el, "style", false); ok && binding != "" {
		el.StyleBinding = binding
	}
}

// serializeStyle renders the parsed declarations as a JSON object literal in
// declaration order.
func serializeStyle(cssText string) string {
	order, values := parseStyleText(cssText)
	if len(order) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		value, _ := json.Marshal(values[name])
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String()
}

func genStyleData(el *ast.Element) string {
	var b strings.Builder
	if el.StaticStyle != "" {
		b.WriteString("staticStyle:" + el.StaticStyle + ",")
	}
	if el.StyleBinding != "" {
		b.WriteString("style:(" + el.StyleBinding + "),")
	}
	return b.String()
}
