package compiler

import (
	"encoding/json"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
)

// TextDirective compiles v-text into a textContent property binding.
func TextDirective(el *ast.Element, dir *ast.Directive, warn WarnFn) bool {
	if dir.Value != "" {
		addProp(el, "textContent", "_s("+dir.Value+")", ast.Attr{
			StartPos: dir.StartPos,
			EndPos:   dir.EndPos,
		}, false)
	}
	return false
}

// HTMLDirective compiles v-html into an innerHTML property binding.
func HTMLDirective(el *ast.Element, dir *ast.Directive, warn WarnFn) bool {
	if dir.Value != "" {
		addProp(el, "innerHTML", "_s("+dir.Value+")", ast.Attr{
			StartPos: dir.StartPos,
			EndPos:   dir.EndPos,
		}, false)
	}
	return false
}

// ModelDirective compiles v-model. Native form elements get a value/checked
// property plus an update handler; everything else becomes a component model
// binding. Reports whether the element needs the directive at runtime.
func ModelDirective(el *ast.Element, dir *ast.Directive, warn WarnFn) bool {
	value := dir.Value
	modifiers := dir.Modifiers
	attrType := el.AttrsMap["type"]

	if warn != nil {
		// Inputs with type=file are read-only; setting their value throws.
		if el.Tag == "input" && attrType == "file" {
			warn("<"+el.Tag+` v-model="`+value+`" type="file">: `+
				"File inputs are read only. Use a change listener instead.",
				dir.StartPos, dir.EndPos, false)
		}
		checkVModelInFor(el, value, dir, warn)
	}

	switch {
	case el.Component != "":
		genComponentModel(el, value, modifiers)
		return false
	case el.Tag == "select":
		genSelectModel(el, value, modifiers, dir)
	case el.Tag == "input" && attrType == "checkbox":
		genCheckboxModel(el, value, modifiers, dir)
	case el.Tag == "input" && attrType == "radio":
		genRadioModel(el, value, modifiers, dir)
	case el.Tag == "input" || el.Tag == "textarea":
		genDefaultModel(el, value, modifiers, dir, warn)
	default:
		genComponentModel(el, value, modifiers)
		return false
	}
	return true
}

// checkVModelInFor warns when v-model binds directly to a loop alias, since
// writing to the alias cannot reach the source container.
func checkVModelInFor(el *ast.Element, value string, dir *ast.Directive, warn WarnFn) {
	for node := el; node != nil; node = node.Parent {
		if node.For != "" && node.Alias == value {
			warn(`<`+el.Tag+` v-model="`+value+`">: `+
				"You are binding v-model directly to a v-for iteration alias. "+
				"This will not be able to modify the v-for source list. "+
				"Consider using a list of objects and v-model on an object property instead.",
				dir.StartPos, dir.EndPos, false)
			return
		}
	}
}

func genComponentModel(el *ast.Element, value string, modifiers map[string]bool) {
	valueExpression := "$$v"
	if modifiers["trim"] {
		valueExpression = "_tr(" + valueExpression + ")"
	}
	if modifiers["number"] {
		valueExpression = "_n(" + valueExpression + ")"
	}
	quoted, _ := json.Marshal(value)
	el.Model = &ast.ModelBinding{
		Value:      "(" + value + ")",
		Expression: string(quoted),
		Callback:   genAssignmentCode(value, valueExpression),
	}
}

func genCheckboxModel(el *ast.Element, value string, modifiers map[string]bool, dir *ast.Directive) {
	src := ast.Attr{StartPos: dir.StartPos, EndPos: dir.EndPos}
	valueBinding := bindingOr(el, "value", "null")
	trueValueBinding := bindingOr(el, "true-value", "true")
	falseValueBinding := bindingOr(el, "false-value", "false")
	addProp(el, "checked",
		"_ck("+value+","+valueBinding+","+trueValueBinding+")", src, false)
	next := "_cx(" + value + ",$event.target.checked," + valueBinding + "," +
		trueValueBinding + "," + falseValueBinding + "," + boolLiteral(modifiers["number"]) + ")"
	addHandler(el, "change", genAssignmentCode(value, next), nil, true, nil, src, false)
}

func genRadioModel(el *ast.Element, value string, modifiers map[string]bool, dir *ast.Directive) {
	src := ast.Attr{StartPos: dir.StartPos, EndPos: dir.EndPos}
	valueBinding := bindingOr(el, "value", "null")
	if modifiers["number"] {
		valueBinding = "_n(" + valueBinding + ")"
	}
	addProp(el, "checked", "_q("+value+","+valueBinding+")", src, false)
	addHandler(el, "change", genAssignmentCode(value, valueBinding), nil, true, nil, src, false)
}

func genSelectModel(el *ast.Element, value string, modifiers map[string]bool, dir *ast.Directive) {
	src := ast.Attr{StartPos: dir.StartPos, EndPos: dir.EndPos}
	selected := "_sv($event," + boolLiteral(modifiers["number"]) + ")"
	addProp(el, "value", "("+value+")", src, false)
	addHandler(el, "change", genAssignmentCode(value, selected), nil, true, nil, src, false)
}

func genDefaultModel(el *ast.Element, value string, modifiers map[string]bool,
	dir *ast.Directive, warn WarnFn) {
	src := ast.Attr{StartPos: dir.StartPos, EndPos: dir.EndPos}
	attrType := el.AttrsMap["type"]

	// A plain value attribute alongside v-model would be clobbered.
	if warn != nil {
		if _, boundValue := el.RawAttrsMap[":value"]; boundValue && attrType != "checkbox" && attrType != "radio" {
			warn(":value conflicts with v-model on the same element "+
				"because the latter already expands to a value binding internally.",
				dir.StartPos, dir.EndPos, false)
		}
	}

	event := "input"
	if modifiers["lazy"] {
		event = "change"
	} else if attrType == "range" {
		event = "change"
	}
	valueExpression := "$event.target.value"
	if modifiers["trim"] {
		valueExpression = "_tr(" + valueExpression + ")"
	}
	if modifiers["number"] {
		valueExpression = "_n(" + valueExpression + ")"
	}
	addProp(el, "value", "("+value+")", src, false)
	addHandler(el, event, genAssignmentCode(value, valueExpression), nil, true, nil, src, false)
}

// bindingOr resolves a bound attribute or falls back to a default literal.
func bindingOr(el *ast.Element, name, fallback string) string {
	if value, ok := getBindingAttr(el, name, true); ok && value != "" {
		return value
	}
	return fallback
}

func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// genAssignmentCode renders the write-back for a model expression: plain
// paths assign directly, while bracketed or dotted dynamic paths go through
// $set so the write lands on the reactive container.
func genAssignmentCode(value, assignment string) string {
	exp, key := parseModelPath(value)
	if key == "" {
		return value + "=" + assignment
	}
	return "$set(" + exp + "," + key + "," + assignment + ")"
}

// parseModelPath splits a model expression into its container expression and
// final key. A value without bracket access splits on the last dot; bracket
// forms track nesting so inner subscripts stay intact, handling shapes like
// test[key], test[test1[key]], test["a"][key], and xxx.test[a[a].test1[key]].
func parseModelPath(val string) (exp, key string) {
	val = strings.TrimSpace(val)
	length := len(val)

	if !strings.Contains(val, "[") || strings.LastIndex(val, "]") < length-1 {
		if index := strings.LastIndex(val, "."); index > -1 {
			return val[:index], `"` + val[index+1:] + `"`
		}
		return val, ""
	}

	var expressionPos, expressionEndPos, inBracket int
	for index := 0; index < length; {
		chr := val[index]
		index++
		switch {
		case chr == '"' || chr == '\'':
			for index < length && val[index] != chr {
				index++
			}
			index++
		case chr == '[':
			if inBracket == 0 {
				expressionPos = index - 1
			}
			inBracket++
		case chr == ']':
			inBracket--
			if inBracket == 0 {
				expressionEndPos = index - 1
			}
		}
	}
	return val[:expressionPos], val[expressionPos+1 : expressionEndPos]
}
