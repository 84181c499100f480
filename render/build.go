package render

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/compiler"
	"github.com/deepnoodle-ai/loom/expr"
	"github.com/deepnoodle-ai/loom/reactive"
	"github.com/deepnoodle-ai/loom/vdom"
)

// fragFn produces the nodes for one template position. Loops and
// templates yield several nodes; plain elements yield one.
type fragFn func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error)

// builder compiles an annotated element tree into closures. Structural
// concerns on one element (static, once, for, if) each claim the element
// exactly once, tracked per build so the tree itself stays untouched.
type builder struct {
	opts      *compiler.Options
	processed map[*ast.Element]*processedFlags
	pre       bool
}

type processedFlags struct {
	static  bool
	once    bool
	forDone bool
	ifDone  bool
}

// Build compiles a parsed and optimized template tree into a render
// function. The tree must have passed through compiler.Compile (or
// Generate), which runs compile-time directive expansion; Build reuses
// those annotations rather than re-running generators.
func Build(root *ast.Element, opts *compiler.Options) (Func, error) {
	if opts == nil {
		opts = compiler.DefaultOptions()
	}
	if root == nil {
		return func(ctx *Context) (*vdom.VNode, error) {
			return vdom.NewElement("div", nil, nil), nil
		}, nil
	}
	if root.Forbidden {
		return func(ctx *Context) (*vdom.VNode, error) {
			return vdom.Empty(), nil
		}, nil
	}
	b := &builder{
		opts:      opts,
		processed: make(map[*ast.Element]*processedFlags),
	}
	frag, err := b.element(root)
	if err != nil {
		return nil, err
	}
	return func(ctx *Context) (*vdom.VNode, error) {
		nodes, err := frag(ctx, ctx.scope())
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return vdom.Empty(), nil
		}
		return nodes[0], nil
	}, nil
}

func (b *builder) flags(el *ast.Element) *processedFlags {
	f, ok := b.processed[el]
	if !ok {
		f = &processedFlags{}
		b.processed[el] = f
	}
	return f
}

// expr parses one embedded expression at build time.
func (b *builder) expr(src string) (expr.Node, error) {
	node, err := expr.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	return node, nil
}

func (b *builder) element(el *ast.Element) (fragFn, error) {
	flags := b.flags(el)
	switch {
	case el.Forbidden:
		return emptyFrag, nil
	case el.StaticRoot && !flags.static:
		return b.static(el)
	case el.Once && !flags.once:
		return b.once(el)
	case el.For != "" && !flags.forDone:
		return b.loop(el)
	case el.If != "" && !flags.ifDone:
		return b.conditional(el)
	case el.Tag == "template" && el.SlotTarget == "" && !b.pre:
		return b.children(el)
	case el.Tag == "slot":
		return b.slot(el)
	}

	tag := el.Tag
	reserved := b.opts.IsReservedTag != nil && b.opts.IsReservedTag(tag)

	var buildData dataFn
	if !el.Plain || (el.Pre && (el.Component != "" || !reserved)) {
		var err error
		buildData, err = b.data(el)
		if err != nil {
			return nil, err
		}
	}

	var childrenFn fragFn
	if !el.InlineTemplate {
		var err error
		childrenFn, err = b.children(el)
		if err != nil {
			return nil, err
		}
	}

	var tagNode expr.Node
	if el.Component != "" {
		var err error
		tagNode, err = b.expr(el.Component)
		if err != nil {
			return nil, err
		}
	}
	namespace := el.Namespace

	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		var data *vdom.Data
		if buildData != nil {
			var err error
			data, err = buildData(ctx, sc)
			if err != nil {
				return nil, err
			}
		}
		var children []*vdom.VNode
		if childrenFn != nil {
			var err error
			children, err = childrenFn(ctx, sc)
			if err != nil {
				return nil, err
			}
		}
		name := tag
		isComponent := !reserved
		if tagNode != nil {
			v, err := expr.Eval(tagNode, sc)
			if err != nil {
				return nil, err
			}
			name = expr.DisplayString(v)
			isComponent = b.opts.IsReservedTag == nil || !b.opts.IsReservedTag(name)
		}
		node := vdom.NewElement(name, data, children)
		node.Namespace = namespace
		node.IsComponent = isComponent
		return []*vdom.VNode{node}, nil
	}, nil
}

func emptyFrag(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
	return nil, nil
}

// static builds a hoisted subtree: rendered once per context, cached, and
// cloned on every reuse.
func (b *builder) static(el *ast.Element) (fragFn, error) {
	b.flags(el).static = true
	pre := b.pre
	if el.Pre {
		b.pre = true
	}
	inner, err := b.element(el)
	b.pre = pre
	if err != nil {
		return nil, err
	}
	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		if cached, ok := ctx.staticCache[el]; ok {
			return vdom.CloneAll(cached), nil
		}
		nodes, err := inner(ctx, sc)
		if err != nil {
			return nil, err
		}
		markStaticNodes(nodes)
		ctx.staticCache[el] = nodes
		return nodes, nil
	}, nil
}

// once builds a v-once subtree. Inside a keyed v-for the result caches
// per key; otherwise v-once degenerates to a static subtree.
func (b *builder) once(el *ast.Element) (fragFn, error) {
	b.flags(el).once = true
	if el.If != "" && !b.flags(el).ifDone {
		return b.conditional(el)
	}
	if el.StaticInFor {
		keyExp := ""
		for parent := el.Parent; parent != nil; parent = parent.Parent {
			if parent.For != "" {
				keyExp = parent.Key
				break
			}
		}
		if keyExp == "" {
			if b.opts.Warn != nil {
				b.opts.Warn("v-once can only be used inside v-for that is keyed.",
					el.StartPos, el.EndPos, false)
			}
			return b.element(el)
		}
		keyNode, err := b.expr(keyExp)
		if err != nil {
			return nil, err
		}
		inner, err := b.element(el)
		if err != nil {
			return nil, err
		}
		return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
			keyValue, err := expr.Eval(keyNode, sc)
			if err != nil {
				return nil, err
			}
			ck := onceKey{node: el, key: expr.DisplayString(keyValue)}
			if cached, ok := ctx.onceCache[ck]; ok {
				return vdom.CloneAll(cached), nil
			}
			nodes, err := inner(ctx, sc)
			if err != nil {
				return nil, err
			}
			markStaticNodes(nodes)
			ctx.onceCache[ck] = nodes
			return nodes, nil
		}, nil
	}
	return b.static(el)
}

// conditional builds an if/else-if/else chain, yielding the first branch
// whose condition holds and an empty placeholder when none does.
func (b *builder) conditional(el *ast.Element) (fragFn, error) {
	b.flags(el).ifDone = true
	type branch struct {
		cond expr.Node
		frag fragFn
	}
	branches := make([]branch, 0, len(el.IfConditions))
	for _, cond := range el.IfConditions {
		var condNode expr.Node
		if cond.Exp != "" {
			var err error
			condNode, err = b.expr(cond.Exp)
			if err != nil {
				return nil, err
			}
		}
		frag, err := b.element(cond.Block)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch{cond: condNode, frag: frag})
	}
	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		for _, br := range branches {
			if br.cond == nil {
				return br.frag(ctx, sc)
			}
			v, err := expr.Eval(br.cond, sc)
			if err != nil {
				return nil, err
			}
			if expr.Truthy(v) {
				return br.frag(ctx, sc)
			}
		}
		return []*vdom.VNode{vdom.Empty()}, nil
	}, nil
}

// loop builds a v-for, binding the alias and iterator names into a child
// scope per iteration.
func (b *builder) loop(el *ast.Element) (fragFn, error) {
	b.flags(el).forDone = true
	iterNode, err := b.expr(el.For)
	if err != nil {
		return nil, err
	}
	alias, it1, it2 := el.Alias, el.Iterator1, el.Iterator2
	inner, err := b.element(el)
	if err != nil {
		return nil, err
	}
	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		src, err := expr.Eval(iterNode, sc)
		if err != nil {
			return nil, err
		}
		var out []*vdom.VNode
		err = iterate(src, func(item, i1, i2 any) error {
			vars := make(map[string]any, 3)
			if alias != "" {
				vars[alias] = item
			}
			if it1 != "" {
				vars[it1] = i1
			}
			if it2 != "" {
				vars[it2] = i2
			}
			nodes, err := inner(ctx, newLocalScope(sc, vars))
			if err != nil {
				return err
			}
			out = append(out, nodes...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}, nil
}

// iterate visits a v-for source: lists by index, maps by key (plain Go
// maps in sorted key order for determinism), integers as 1..n, and
// strings by character.
func iterate(src any, visit func(item, i1, i2 any) error) error {
	switch v := src.(type) {
	case nil:
		return nil
	case *reactive.List:
		for i, item := range v.All() {
			if err := visit(item, i, nil); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range v {
			if err := visit(item, i, nil); err != nil {
				return err
			}
		}
	case *reactive.Map:
		for i, key := range v.Keys() {
			if err := visit(v.Get(key), key, i); err != nil {
				return err
			}
		}
	case map[string]any:
		for i, key := range sortedKeys(v) {
			if err := visit(v[key], key, i); err != nil {
				return err
			}
		}
	case *expr.Dict:
		for i, key := range v.Keys() {
			item, _ := v.Get(key)
			if err := visit(item, key, i); err != nil {
				return err
			}
		}
	case string:
		for i, r := range []rune(v) {
			if err := visit(string(r), i, nil); err != nil {
				return err
			}
		}
	case int, int64, float64:
		n := int(toFloat(v))
		for i := 0; i < n; i++ {
			if err := visit(i+1, i, nil); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("v-for source must be a list, map, number, or string, got %T", src)
	}
	return nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// children builds an element's child list in order. Interpolated text
// evaluates per render; literal text and comments are rebuilt cheaply
// each time so patchers own the returned nodes.
func (b *builder) children(el *ast.Element) (fragFn, error) {
	type childFrag struct {
		frag fragFn
	}
	frags := make([]childFrag, 0, len(el.Children))
	for _, child := range el.Children {
		switch node := child.(type) {
		case *ast.Element:
			frag, err := b.element(node)
			if err != nil {
				return nil, err
			}
			frags = append(frags, childFrag{frag: frag})
		case *ast.Expression:
			frag, err := b.interpolation(node)
			if err != nil {
				return nil, err
			}
			frags = append(frags, childFrag{frag: frag})
		case *ast.Text:
			text, comment := node.Text, node.IsComment
			frags = append(frags, childFrag{frag: func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
				if comment {
					return []*vdom.VNode{vdom.NewComment(text)}, nil
				}
				return []*vdom.VNode{vdom.NewText(text)}, nil
			}})
		}
	}
	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		var out []*vdom.VNode
		for _, child := range frags {
			nodes, err := child.frag(ctx, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	}, nil
}

// interpolation builds a text node whose value concatenates literal runs
// with stringified binding values.
func (b *builder) interpolation(node *ast.Expression) (fragFn, error) {
	type segment struct {
		text    string
		binding expr.Node
	}
	segments := make([]segment, 0, len(node.Tokens))
	for _, tok := range node.Tokens {
		if !tok.IsBinding() {
			segments = append(segments, segment{text: tok.Text})
			continue
		}
		parsed, err := b.expr(tok.Binding)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment{binding: parsed})
	}
	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		var sb strings.Builder
		for _, seg := range segments {
			if seg.binding == nil {
				sb.WriteString(seg.text)
				continue
			}
			v, err := expr.Eval(seg.binding, sc)
			if err != nil {
				return nil, err
			}
			sb.WriteString(expr.DisplayString(v))
		}
		return []*vdom.VNode{vdom.NewText(sb.String())}, nil
	}, nil
}

// slot builds a <slot> outlet: provided content renders with the outlet's
// props, otherwise the fallback children do.
func (b *builder) slot(el *ast.Element) (fragFn, error) {
	nameExp := el.SlotName
	if nameExp == "" {
		nameExp = `"default"`
	}
	nameNode, err := b.expr(nameExp)
	if err != nil {
		return nil, err
	}
	fallback, err := b.children(el)
	if err != nil {
		return nil, err
	}

	type propEntry struct {
		name  string
		value expr.Node
	}
	props := make([]propEntry, 0, len(el.Attrs))
	for _, attr := range el.Attrs {
		value, err := b.expr(attr.Value)
		if err != nil {
			return nil, err
		}
		props = append(props, propEntry{name: camelize(attr.Name), value: value})
	}
	var bindNode expr.Node
	for i := range el.Directives {
		dir := &el.Directives[i]
		if dir.Name == "bind" && dir.Arg == "" && dir.Value != "" {
			bindNode, err = b.expr(dir.Value)
			if err != nil {
				return nil, err
			}
		}
	}

	return func(ctx *Context, sc expr.Scope) ([]*vdom.VNode, error) {
		nameValue, err := expr.Eval(nameNode, sc)
		if err != nil {
			return nil, err
		}
		name := expr.DisplayString(nameValue)
		provided, ok := ctx.slots[name]
		if !ok {
			return fallback(ctx, sc)
		}
		slotProps := make(map[string]any, len(props))
		for _, p := range props {
			v, err := expr.Eval(p.value, sc)
			if err != nil {
				return nil, err
			}
			slotProps[p.name] = v
		}
		if bindNode != nil {
			bound, err := expr.Eval(bindNode, sc)
			if err != nil {
				return nil, err
			}
			mergeObjectInto(slotProps, bound)
		}
		nodes, err := provided(slotProps)
		if err != nil {
			return nil, err
		}
		if nodes == nil {
			return fallback(ctx, sc)
		}
		return nodes, nil
	}, nil
}

func markStaticNodes(nodes []*vdom.VNode) {
	for _, n := range nodes {
		n.IsStatic = true
		markStaticNodes(n.Children)
	}
}

// mergeObjectInto copies entries of an object-like value into a map.
func mergeObjectInto(dst map[string]any, src any) {
	switch v := src.(type) {
	case map[string]any:
		for key, value := range v {
			dst[key] = value
		}
	case *reactive.Map:
		for _, key := range v.Keys() {
			dst[key] = v.Get(key)
		}
	case *expr.Dict:
		for _, key := range v.Keys() {
			value, _ := v.Get(key)
			dst[key] = value
		}
	}
}

// camelize converts kebab-case names to camelCase.
func camelize(name string) string {
	if !strings.Contains(name, "-") {
		return name
	}
	parts := strings.Split(name, "-")
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}
