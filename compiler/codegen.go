package compiler

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/internal/token"
)

// GeneratedResult is the output of code generation: the render function
// body and one hoisted function per static root, referenced by index.
type GeneratedResult struct {
	Render          string
	StaticRenderFns []string
}

type codegenState struct {
	opts            *Options
	dataGenFns      []func(*ast.Element) string
	staticRenderFns []string
	onceID          int
	pre             bool
}

func newCodegenState(opts *Options) *codegenState {
	if opts == nil {
		opts = &Options{}
	}
	state := &codegenState{opts: opts}
	for _, mod := range opts.Modules {
		if mod.GenData != nil {
			state.dataGenFns = append(state.dataGenFns, mod.GenData)
		}
	}
	return state
}

func (s *codegenState) warn(msg string, start, end token.Position) {
	if s.opts.Warn != nil {
		s.opts.Warn(msg, start, end, false)
	}
}

func (s *codegenState) maybeComponent(el *ast.Element) bool {
	return el.Component != "" || !s.opts.isReservedTag(el.Tag)
}

// Generate emits the render function for an annotated tree. The body uses
// the compact runtime helper vocabulary: _c creates elements, _v text, _s
// stringifies, _l loops, _m references static roots, and so on.
func Generate(root *ast.Element, opts *Options) *GeneratedResult {
	state := newCodegenState(opts)
	code := "_c(\"div\")"
	if root != nil {
		if root.Tag == "script" {
			code = "null"
		} else {
			code = genElement(root, state)
		}
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString("with(this){return ")
	buf.WriteString(code)
	buf.WriteString("}")
	return &GeneratedResult{
		Render:          buf.String(),
		StaticRenderFns: state.staticRenderFns,
	}
}

func genElement(el *ast.Element, state *codegenState) string {
	if el.Parent != nil {
		el.Pre = el.Pre || el.Parent.Pre
	}
	switch {
	case el.StaticRoot && !el.StaticProcessed:
		return genStatic(el, state)
	case el.Once && !el.OnceProcessed:
		return genOnce(el, state)
	case el.For != "" && !el.ForProcessed:
		return genFor(el, state, genElement, "_l")
	case el.If != "" && !el.IfProcessed:
		return genIf(el, state, genElement, "")
	case el.Tag == "template" && el.SlotTarget == "" && !state.pre:
		if children := genChildren(el, state, false, genElement); children != "" {
			return children
		}
		return "void 0"
	case el.Tag == "slot":
		return genSlot(el, state)
	default:
		if el.Component != "" {
			return genComponent(el.Component, el, state)
		}
		var data string
		if !el.Plain || (el.Pre && state.maybeComponent(el)) {
			data = genData(el, state)
		}
		var children string
		if !el.InlineTemplate {
			children = genChildren(el, state, true, genElement)
		}
		code := "_c('" + el.Tag + "'"
		if data != "" {
			code += "," + data
		}
		if children != "" {
			code += "," + children
		}
		return code + ")"
	}
}

// genStatic hoists a static subtree into its own render function and
// replaces it with an indexed reference.
func genStatic(el *ast.Element, state *codegenState) string {
	el.StaticProcessed = true
	// Inside v-pre everything compiles as if static, including component
	// tags, so remember the state while generating the hoisted body.
	originalPre := state.pre
	if el.Pre {
		state.pre = el.Pre
	}
	state.staticRenderFns = append(state.staticRenderFns,
		"with(this){return "+genElement(el, state)+"}")
	state.pre = originalPre
	ref := "_m(" + strconv.Itoa(len(state.staticRenderFns)-1)
	if el.StaticInFor {
		ref += ",true"
	}
	return ref + ")"
}

func genOnce(el *ast.Element, state *codegenState) string {
	el.OnceProcessed = true
	if el.If != "" && !el.IfProcessed {
		return genIf(el, state, genElement, "")
	}
	if el.StaticInFor {
		var key string
		for parent := el.Parent; parent != nil; parent = parent.Parent {
			if parent.For != "" {
				key = parent.Key
				break
			}
		}
		if key == "" {
			state.warn("v-once can only be used inside v-for that is keyed.",
				el.StartPos, el.EndPos)
			return genElement(el, state)
		}
		code := "_o(" + genElement(el, state) + "," + strconv.Itoa(state.onceID) + "," + key + ")"
		state.onceID++
		return code
	}
	return genStatic(el, state)
}

type elementGen func(*ast.Element, *codegenState) string

func genIf(el *ast.Element, state *codegenState, altGen elementGen, altEmpty string) string {
	el.IfProcessed = true
	return genIfConditions(el.IfConditions, state, altGen, altEmpty)
}

func genIfConditions(conditions []ast.IfCondition, state *codegenState,
	altGen elementGen, altEmpty string) string {
	if len(conditions) == 0 {
		if altEmpty != "" {
			return altEmpty
		}
		return "_e()"
	}
	condition := conditions[0]
	rest := conditions[1:]

	genTernaryExp := func(block *ast.Element) string {
		if altGen != nil {
			return altGen(block, state)
		}
		if block.Once {
			return genOnce(block, state)
		}
		return genElement(block, state)
	}

	if condition.Exp != "" {
		return "(" + condition.Exp + ")?" + genTernaryExp(condition.Block) + ":" +
			genIfConditions(rest, state, altGen, altEmpty)
	}
	return genTernaryExp(condition.Block)
}

func genFor(el *ast.Element, state *codegenState, altGen elementGen, helper string) string {
	if helper == "" {
		helper = "_l"
	}
	if state.maybeComponent(el) && el.Tag != "slot" && el.Tag != "template" && el.Key == "" {
		state.warn("<"+el.Tag+` v-for="`+el.Alias+" in "+el.For+`">: component lists rendered with `+
			"v-for should have explicit keys.", el.StartPos, el.EndPos)
	}
	el.ForProcessed = true
	iterator := ""
	if el.Iterator1 != "" {
		iterator += "," + el.Iterator1
	}
	if el.Iterator2 != "" {
		iterator += "," + el.Iterator2
	}
	gen := altGen
	if gen == nil {
		gen = genElement
	}
	return helper + "((" + el.For + ")," +
		"function(" + el.Alias + iterator + "){" +
		"return " + gen(el, state) +
		"})"
}

func genData(el *ast.Element, state *codegenState) string {
	data := "{"

	// Directives may mutate the element's other properties, so they
	// generate first.
	dirs, wrapBind, wrapOn := genDirectives(el, state)
	if dirs != "" {
		data += dirs + ","
	}

	if el.Key != "" {
		data += "key:" + el.Key + ","
	}
	if el.Ref != "" {
		data += "ref:" + el.Ref + ","
	}
	if el.RefInFor {
		data += "refInFor:true,"
	}
	if el.Pre {
		data += "pre:true,"
	}
	// A dynamic component keeps its original tag for fallback rendering.
	if el.Component != "" {
		data += `tag:"` + el.Tag + `",`
	}
	for _, genFn := range state.dataGenFns {
		data += genFn(el)
	}
	if len(el.Attrs) > 0 {
		data += "attrs:" + genProps(el.Attrs) + ","
	}
	if len(el.Props) > 0 {
		data += "domProps:" + genProps(el.Props) + ","
	}
	if len(el.Events) > 0 {
		data += genHandlers(el.Events, false) + ","
	}
	if len(el.NativeEvents) > 0 {
		data += genHandlers(el.NativeEvents, true) + ","
	}
	// Non-scoped slot content only carries its target name.
	if el.SlotTarget != "" && el.SlotScope == "" {
		data += "slot:" + el.SlotTarget + ","
	}
	if el.ScopedSlots != nil {
		data += genScopedSlots(el, el.ScopedSlots, state) + ","
	}
	if el.Model != nil {
		data += "model:{value:" + el.Model.Value +
			",callback:function ($$v) {" + el.Model.Callback + "}" +
			",expression:" + el.Model.Expression + "},"
	}
	if el.InlineTemplate {
		if inline := genInlineTemplate(el, state); inline != "" {
			data += inline + ","
		}
	}
	data = strings.TrimSuffix(data, ",") + "}"

	// v-bind with dynamic argument names merges through the runtime helper.
	if len(el.DynamicAttrs) > 0 {
		data = `_b(` + data + `,"` + el.Tag + `",` + genProps(el.DynamicAttrs) + `)`
	}
	if wrapBind != nil {
		data = wrapBind(data)
	}
	if wrapOn != nil {
		data = wrapOn(data)
	}
	return data
}

// genDirectives emits runtime directive descriptors and applies compile-time
// directive generators. Argument-less v-bind and v-on become data wrappers
// instead of runtime entries.
func genDirectives(el *ast.Element, state *codegenState) (string, func(string) string, func(string) string) {
	if len(el.Directives) == 0 {
		return "", nil, nil
	}
	var res string
	var hasRuntime bool
	var wrapBind, wrapOn func(string) string
	for i := range el.Directives {
		dir := &el.Directives[i]
		switch dir.Name {
		case "bind":
			if dir.Arg == "" {
				value := dir.Value
				prop := "false"
				if dir.Modifiers["prop"] {
					prop = "true"
				}
				sync := ""
				if dir.Modifiers["sync"] {
					sync = ",true"
				}
				tag := el.Tag
				wrapBind = func(code string) string {
					return "_b(" + code + ",'" + tag + "'," + value + "," + prop + sync + ")"
				}
				continue
			}
		case "on":
			if dir.Arg == "" {
				value := dir.Value
				wrapOn = func(code string) string {
					return "_g(" + code + "," + value + ")"
				}
				continue
			}
		case "cloak":
			continue
		}

		needRuntime := true
		if dir.Processed {
			needRuntime = dir.NeedsRuntime
		} else if gen, ok := state.opts.Directives[dir.Name]; ok && gen != nil {
			// Compile-time directives that expect no runtime component.
			needRuntime = gen(el, dir, state.opts.Warn)
		}
		dir.Processed = true
		dir.NeedsRuntime = needRuntime
		if !needRuntime {
			continue
		}
		hasRuntime = true
		res += `{name:"` + dir.Name + `",rawName:"` + dir.RawName + `"`
		if dir.Value != "" {
			quoted, _ := json.Marshal(dir.Value)
			res += ",value:(" + dir.Value + "),expression:" + string(quoted)
		}
		if dir.Arg != "" {
			if dir.DynamicArg {
				res += ",arg:" + dir.Arg
			} else {
				res += `,arg:"` + dir.Arg + `"`
			}
		}
		if len(dir.Modifiers) > 0 {
			res += ",modifiers:" + genModifiersJSON(dir.Modifiers)
		}
		res += "},"
	}
	if !hasRuntime {
		return "", wrapBind, wrapOn
	}
	return "directives:[" + strings.TrimSuffix(res, ",") + "]", wrapBind, wrapOn
}

func genModifiersJSON(modifiers map[string]bool) string {
	keys := make([]string, 0, len(modifiers))
	for key := range modifiers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`"` + key + `":true`)
	}
	b.WriteByte('}')
	return b.String()
}

func genInlineTemplate(el *ast.Element, state *codegenState) string {
	if len(el.Children) != 1 {
		state.warn("Inline-template components must have exactly one child element.",
			el.StartPos, el.EndPos)
	}
	if len(el.Children) == 0 {
		return ""
	}
	child, ok := el.Children[0].(*ast.Element)
	if !ok {
		return ""
	}
	inline := Generate(child, state.opts)
	var staticFns []string
	for _, code := range inline.StaticRenderFns {
		staticFns = append(staticFns, "function(){"+code+"}")
	}
	return "inlineTemplate:{render:function(){" + inline.Render + "}," +
		"staticRenderFns:[" + strings.Join(staticFns, ",") + "]}"
}

func genScopedSlots(el *ast.Element, slots map[string]*ast.Element, state *codegenState) string {
	// Slot content that depends on loop or conditional context defeats the
	// usual reuse of scoped slot functions across re-renders.
	needsForceUpdate := el.For != ""
	if !needsForceUpdate {
		for _, slot := range slots {
			if slot.SlotTargetDynamic || slot.If != "" || slot.For != "" || containsSlotChild(slot) {
				needsForceUpdate = true
				break
			}
		}
	}

	// A conditional ancestor means the same component may receive different
	// slot content between renders of the same parent; key the descriptor
	// by content so it updates.
	needsKey := el.If != ""
	if !needsForceUpdate {
		for parent := el.Parent; parent != nil; parent = parent.Parent {
			if (parent.SlotScope != "" && parent.SlotScope != emptySlotScope) || parent.For != "" {
				needsForceUpdate = true
				break
			}
			if parent.If != "" {
				needsKey = true
			}
		}
	}

	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	var generated []string
	for _, name := range names {
		generated = append(generated, genScopedSlot(slots[name], state))
	}
	body := strings.Join(generated, ",")

	res := "scopedSlots:_u([" + body + "]"
	if needsForceUpdate {
		res += ",null,true"
	} else if needsKey {
		res += ",null,false," + strconv.FormatUint(xxhash.Sum64String(body), 10)
	}
	return res + ")"
}

const emptySlotScope = "_empty_"

func containsSlotChild(node ast.Node) bool {
	el, ok := node.(*ast.Element)
	if !ok {
		return false
	}
	if el.Tag == "slot" {
		return true
	}
	for _, child := range el.Children {
		if containsSlotChild(child) {
			return true
		}
	}
	return false
}

func genScopedSlot(el *ast.Element, state *codegenState) string {
	isLegacySyntax := el.AttrsMap["slot-scope"] != ""
	if el.If != "" && !el.IfProcessed && !isLegacySyntax {
		return genIf(el, state, genScopedSlot, "null")
	}
	if el.For != "" && !el.ForProcessed {
		return genFor(el, state, genScopedSlot, "")
	}
	slotScope := el.SlotScope
	if slotScope == emptySlotScope {
		slotScope = ""
	}
	var body string
	if el.Tag == "template" {
		if el.If != "" && isLegacySyntax {
			children := genChildren(el, state, false, genElement)
			if children == "" {
				children = "undefined"
			}
			body = "(" + el.If + ")?" + children + ":undefined"
		} else {
			body = genChildren(el, state, false, genElement)
			if body == "" {
				body = "undefined"
			}
		}
	} else {
		body = genElement(el, state)
	}
	fn := "function(" + slotScope + "){return " + body + "}"
	target := el.SlotTarget
	if target == "" {
		target = "'default'"
	}
	res := "{key:" + target + ",fn:" + fn
	// A scope-less slot also proxies onto $slots for unscoped access.
	if slotScope == "" {
		res += ",proxy:true"
	}
	return res + "}"
}

func genChildren(el *ast.Element, state *codegenState, checkSkip bool, altGen elementGen) string {
	children := el.Children
	if len(children) == 0 {
		return ""
	}
	// A single loop child skips the wrapping array; its helper already
	// returns a list.
	if len(children) == 1 {
		if first, ok := children[0].(*ast.Element); ok &&
			first.For != "" && first.Tag != "template" && first.Tag != "slot" {
			normalization := ""
			if checkSkip {
				if state.maybeComponent(first) {
					normalization = ",1"
				} else {
					normalization = ",0"
				}
			}
			gen := altGen
			if gen == nil {
				gen = genElement
			}
			return gen(first, state) + normalization
		}
	}
	normalizationType := 0
	if checkSkip {
		normalizationType = getNormalizationType(children, state)
	}
	var parts []string
	for _, child := range children {
		parts = append(parts, genNode(child, state))
	}
	res := "[" + strings.Join(parts, ",") + "]"
	if normalizationType != 0 {
		res += "," + strconv.Itoa(normalizationType)
	}
	return res
}

// getNormalizationType determines how much child flattening the runtime
// must do: 2 when nested arrays can appear (v-for, template, slot), 1 when
// components may return arrays, 0 when children are already flat.
func getNormalizationType(children []ast.Node, state *codegenState) int {
	res := 0
	for _, child := range children {
		el, ok := child.(*ast.Element)
		if !ok {
			continue
		}
		if needsNormalization(el) || anyIfBranch(el, needsNormalization) {
			return 2
		}
		if state.maybeComponent(el) || anyIfBranch(el, state.maybeComponent) {
			res = 1
		}
	}
	return res
}

func needsNormalization(el *ast.Element) bool {
	return el.For != "" || el.Tag == "template" || el.Tag == "slot"
}

func anyIfBranch(el *ast.Element, pred func(*ast.Element) bool) bool {
	for _, cond := range el.IfConditions {
		if pred(cond.Block) {
			return true
		}
	}
	return false
}

func genNode(node ast.Node, state *codegenState) string {
	switch n := node.(type) {
	case *ast.Element:
		return genElement(n, state)
	case *ast.Expression:
		return "_v(" + n.Expr + ")"
	case *ast.Text:
		if n.IsComment {
			return "_e(" + quoteJS(n.Text) + ")"
		}
		return "_v(" + transformSpecialNewlines(quoteJS(n.Text)) + ")"
	}
	return ""
}

func genSlot(el *ast.Element, state *codegenState) string {
	slotName := el.SlotName
	if slotName == "" {
		slotName = "'default'"
	}
	children := genChildren(el, state, false, genElement)
	res := "_t(" + slotName
	if children != "" {
		res += ",function(){return " + children + "}"
	}
	var attrs string
	if len(el.Attrs) > 0 || len(el.DynamicAttrs) > 0 {
		// Slot props camelize so templates can use kebab-case names.
		all := make([]ast.Attr, 0, len(el.Attrs)+len(el.DynamicAttrs))
		for _, attr := range append(append([]ast.Attr{}, el.Attrs...), el.DynamicAttrs...) {
			attr.Name = camelize(attr.Name)
			all = append(all, attr)
		}
		attrs = genProps(all)
	}
	bind := el.AttrsMap["v-bind"]
	if (attrs != "" || bind != "") && children == "" {
		res += ",null"
	}
	if attrs != "" {
		res += "," + attrs
	}
	if bind != "" {
		if attrs == "" {
			res += ",null"
		}
		res += "," + bind
	}
	return res + ")"
}

func genComponent(componentName string, el *ast.Element, state *codegenState) string {
	var children string
	if !el.InlineTemplate {
		children = genChildren(el, state, true, genElement)
	}
	code := "_c(" + componentName + "," + genData(el, state)
	if children != "" {
		code += "," + children
	}
	return code + ")"
}

func genProps(props []ast.Attr) string {
	var staticProps, dynamicProps strings.Builder
	for _, prop := range props {
		value := transformSpecialNewlines(prop.Value)
		if prop.Dynamic {
			dynamicProps.WriteString(prop.Name + "," + value + ",")
		} else {
			staticProps.WriteString(`"` + prop.Name + `":` + value + ",")
		}
	}
	static := "{" + strings.TrimSuffix(staticProps.String(), ",") + "}"
	if dynamicProps.Len() > 0 {
		return "_d(" + static + ",[" + strings.TrimSuffix(dynamicProps.String(), ",") + "])"
	}
	return static
}

// transformSpecialNewlines escapes the Unicode line and paragraph
// separators, which are legal in source text but act as line terminators
// inside generated string literals.
func transformSpecialNewlines(text string) string {
	text = strings.ReplaceAll(text, "\u2028", `\u2028`)
	return strings.ReplaceAll(text, "\u2029", `\u2029`)
}
