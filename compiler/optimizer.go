package compiler

import (
	"github.com/deepnoodle-ai/loom/ast"
)

// Optimize walks the parsed tree and marks purely static subtrees, so code
// generation can hoist them into cached render functions and patching can
// skip them entirely.
func Optimize(root *ast.Element, opts *Options) {
	if root == nil {
		return
	}
	if opts == nil {
		opts = &Options{}
	}
	o := &optimizer{opts: opts, staticKeys: map[string]bool{}}
	for _, mod := range opts.Modules {
		for _, key := range mod.StaticKeys {
			o.staticKeys[key] = true
		}
	}
	o.markStatic(root)
	o.markStaticRoots(root, false)
}

type optimizer struct {
	opts       *Options
	staticKeys map[string]bool
}

func (o *optimizer) markStatic(node ast.Node) {
	el, isElement := node.(*ast.Element)
	if !isElement {
		return
	}
	el.Static = o.isStatic(node)
	// Component slot content stays dynamic: components own their slot
	// nodes and may re-render them with fresh scope.
	if !o.opts.isReservedTag(el.Tag) && el.Tag != "slot" && !el.InlineTemplate {
		return
	}
	for _, child := range el.Children {
		o.markStatic(child)
		if !isStaticNode(child) {
			el.Static = false
		}
	}
	for i, cond := range el.IfConditions {
		if i == 0 {
			continue
		}
		o.markStatic(cond.Block)
		if !cond.Block.Static {
			el.Static = false
		}
	}
}

func (o *optimizer) markStaticRoots(node ast.Node, isInFor bool) {
	el, ok := node.(*ast.Element)
	if !ok {
		return
	}
	if el.Static || el.Once {
		el.StaticInFor = isInFor
	}
	// A static root must amortize more than a single text node, otherwise
	// hoisting costs more than it saves.
	if el.Static && len(el.Children) > 0 &&
		!(len(el.Children) == 1 && isPlainText(el.Children[0])) {
		el.StaticRoot = true
		return
	}
	el.StaticRoot = false
	for _, child := range el.Children {
		o.markStaticRoots(child, isInFor || el.For != "")
	}
	for i, cond := range el.IfConditions {
		if i == 0 {
			continue
		}
		o.markStaticRoots(cond.Block, isInFor)
	}
	if el.ScopedSlots != nil {
		for _, slot := range el.ScopedSlots {
			o.markStaticRoots(slot, isInFor)
		}
	}
}

func (o *optimizer) isStatic(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.Expression:
		return false
	case *ast.Text:
		return true
	case *ast.Element:
		if n.Pre {
			return true
		}
		return !n.HasBindings &&
			n.If == "" && n.ElseIf == "" && !n.Else &&
			n.For == "" && !n.Once &&
			!isBuiltInTag(n.Tag) && o.opts.isReservedTag(n.Tag) &&
			!isDirectChildOfTemplateFor(n) &&
			o.hasOnlyStaticFields(n)
	}
	return false
}

// hasOnlyStaticFields rejects any annotation that requires runtime work.
// Module output named in StaticKeys is compatible with hoisting.
func (o *optimizer) hasOnlyStaticFields(el *ast.Element) bool {
	if el.Key != "" || el.Ref != "" || el.Component != "" ||
		el.SlotName != "" || el.SlotTarget != "" || el.SlotScope != "" ||
		el.ScopedSlots != nil || el.InlineTemplate || el.Model != nil {
		return false
	}
	if len(el.Props) > 0 || len(el.DynamicAttrs) > 0 ||
		len(el.Events) > 0 || len(el.NativeEvents) > 0 || len(el.Directives) > 0 {
		return false
	}
	if el.ClassBinding != "" || el.StyleBinding != "" {
		return false
	}
	if el.StaticClass != "" && !o.staticKeys["staticClass"] {
		return false
	}
	if el.StaticStyle != "" && !o.staticKeys["staticStyle"] {
		return false
	}
	return true
}

func isStaticNode(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.Element:
		return n.Static
	case *ast.Text:
		return true
	default:
		return false
	}
}

func isPlainText(node ast.Node) bool {
	_, ok := node.(*ast.Text)
	return ok
}

// isDirectChildOfTemplateFor reports whether the element sits immediately
// inside a looping template, whose children repeat per iteration and must
// not be hoisted.
func isDirectChildOfTemplateFor(el *ast.Element) bool {
	for node := el.Parent; node != nil; node = node.Parent {
		if node.Tag != "template" {
			return false
		}
		if node.For != "" {
			return true
		}
	}
	return false
}
