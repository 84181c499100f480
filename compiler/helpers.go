package compiler

import (
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
)

// addProp records a DOM-property binding on the element.
func addProp(el *ast.Element, name, value string, src ast.Attr, dynamic bool) {
	el.Props = append(el.Props, ast.Attr{
		Name:     name,
		Value:    value,
		Dynamic:  dynamic,
		StartPos: src.StartPos,
		EndPos:   src.EndPos,
	})
	el.Plain = false
}

// addAttr records a rendered attribute. Attributes with a dynamic name go
// in a separate list so codegen can emit them through the dynamic-key
// helper.
func addAttr(el *ast.Element, name, value string, src ast.Attr, dynamic bool) {
	attr := ast.Attr{
		Name:     name,
		Value:    value,
		Dynamic:  dynamic,
		StartPos: src.StartPos,
		EndPos:   src.EndPos,
	}
	if dynamic {
		el.DynamicAttrs = append(el.DynamicAttrs, attr)
	} else {
		el.Attrs = append(el.Attrs, attr)
	}
	el.Plain = false
}

// addRawAttr records an attribute added by a transform, keeping the name
// maps in sync for later lookups.
func addRawAttr(el *ast.Element, name, value string, src ast.Attr) {
	attr := ast.Attr{Name: name, Value: value, StartPos: src.StartPos, EndPos: src.EndPos}
	el.AttrsList = append(el.AttrsList, attr)
	el.AttrsMap[name] = value
	el.RawAttrsMap[name] = attr
}

// addDirective records a custom directive binding.
func addDirective(el *ast.Element, dir ast.Directive) {
	el.Directives = append(el.Directives, dir)
	el.Plain = false
}

// prependModifierMarker encodes capture/once/passive as a marker prefix on
// the event name; dynamic names are wrapped in a runtime marker call
// instead, since the final name is unknown at compile time.
func prependModifierMarker(symbol, name string, dynamic bool) string {
	if dynamic {
		return `_p(` + name + `,"` + symbol + `")`
	}
	return symbol + name
}

// addHandler records an event listener. Repeated listeners for one event
// name accumulate in registration order; important handlers prepend.
func addHandler(el *ast.Element, name, value string, modifiers map[string]bool,
	important bool, warn WarnFn, src ast.Attr, dynamic bool) {
	if modifiers == nil {
		modifiers = map[string]bool{}
	}
	if warn != nil && modifiers["prevent"] && modifiers["passive"] {
		warn("passive and prevent can't be used together. "+
			"Passive handler can't prevent default event.", src.StartPos, src.EndPos, false)
	}

	// Normalize right/middle clicks onto the DOM events that actually
	// fire for them.
	if modifiers["right"] {
		delete(modifiers, "right")
		if dynamic {
			name = `(` + name + `)==="click"?"contextmenu":(` + name + `)`
		} else if name == "click" {
			name = "contextmenu"
		}
	} else if modifiers["middle"] {
		delete(modifiers, "middle")
		if dynamic {
			name = `(` + name + `)==="click"?"mouseup":(` + name + `)`
		} else if name == "click" {
			name = "mouseup"
		}
	}

	if modifiers["capture"] {
		delete(modifiers, "capture")
		name = prependModifierMarker("!", name, dynamic)
	}
	if modifiers["once"] {
		delete(modifiers, "once")
		name = prependModifierMarker("~", name, dynamic)
	}
	if modifiers["passive"] {
		delete(modifiers, "passive")
		name = prependModifierMarker("&", name, dynamic)
	}

	native := modifiers["native"]
	delete(modifiers, "native")

	handler := ast.Handler{
		Value:    strings.TrimSpace(value),
		Dynamic:  dynamic,
		StartPos: src.StartPos,
		EndPos:   src.EndPos,
	}
	if len(modifiers) > 0 {
		handler.Modifiers = modifiers
	}

	var events map[string][]ast.Handler
	if native {
		if el.NativeEvents == nil {
			el.NativeEvents = map[string][]ast.Handler{}
		}
		events = el.NativeEvents
	} else {
		if el.Events == nil {
			el.Events = map[string][]ast.Handler{}
		}
		events = el.Events
	}
	if important {
		events[name] = append([]ast.Handler{handler}, events[name]...)
	} else {
		events[name] = append(events[name], handler)
	}
	el.Plain = false
}

// getRawBindingAttr returns the raw attribute entry for a bound name,
// checking the bind shorthand and longhand forms before the plain name.
func getRawBindingAttr(el *ast.Element, name string) (ast.Attr, bool) {
	for _, candidate := range []string{":" + name, "v-bind:" + name, name} {
		if attr, ok := el.RawAttrsMap[candidate]; ok {
			return attr, true
		}
	}
	return ast.Attr{}, false
}

// getBindingAttr resolves a possibly-bound attribute: a v-bind form is
// parsed through the filter chain; otherwise, when getStatic is set, a
// plain attribute value is returned as a quoted literal.
func getBindingAttr(el *ast.Element, name string, getStatic bool) (string, bool) {
	if value, _, ok := getAndRemoveAttr(el, ":"+name, false); ok {
		return ParseFilters(value), true
	}
	if value, _, ok := getAndRemoveAttr(el, "v-bind:"+name, false); ok {
		return ParseFilters(value), true
	}
	if getStatic {
		if value, _, ok := getAndRemoveAttr(el, name, false); ok {
			return quoteJS(value), true
		}
	}
	return "", false
}

// getAndRemoveAttr consumes an attribute from the processing list so later
// generic processing skips it. The raw attribute map keeps the entry unless
// removeFromMap is set, since diagnostics still need position lookups.
func getAndRemoveAttr(el *ast.Element, name string, removeFromMap bool) (string, ast.Attr, bool) {
	if _, ok := el.AttrsMap[name]; !ok {
		return "", ast.Attr{}, false
	}
	var found ast.Attr
	for i, attr := range el.AttrsList {
		if attr.Name == name {
			found = attr
			el.AttrsList = append(el.AttrsList[:i], el.AttrsList[i+1:]...)
			break
		}
	}
	value := el.AttrsMap[name]
	if removeFromMap {
		delete(el.AttrsMap, name)
	}
	if found.Name == "" {
		found = ast.Attr{Name: name, Value: value}
	}
	return value, found, true
}

// getAndRemoveAttrByRegex consumes the first attribute whose name matches.
func getAndRemoveAttrByRegex(el *ast.Element, re *regexp.Regexp) (ast.Attr, bool) {
	for i, attr := range el.AttrsList {
		if re.MatchString(attr.Name) {
			el.AttrsList = append(el.AttrsList[:i], el.AttrsList[i+1:]...)
			return attr, true
		}
	}
	return ast.Attr{}, false
}
