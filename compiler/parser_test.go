package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/internal/token"
)

func parseWithWarnings(tmpl string) (*ast.Element, []string) {
	var warnings []string
	opts := DefaultOptions()
	opts.Warn = func(msg string, start, end token.Position, tip bool) {
		warnings = append(warnings, msg)
	}
	return Parse(tmpl, opts), warnings
}

func mustParse(t *testing.T, tmpl string) *ast.Element {
	t.Helper()
	root, warnings := parseWithWarnings(tmpl)
	require.Empty(t, warnings)
	require.NotNil(t, root)
	return root
}

func TestParseBasicTree(t *testing.T) {
	root := mustParse(t, `<div id="app"><p>text</p></div>`)
	assert.Equal(t, "div", root.Tag)
	assert.Equal(t, "app", root.AttrsMap["id"])
	require.Len(t, root.Children, 1)

	p, ok := root.Children[0].(*ast.Element)
	require.True(t, ok)
	assert.Equal(t, "p", p.Tag)
	assert.Same(t, root, p.Parent)
	require.Len(t, p.Children, 1)

	text, ok := p.Children[0].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "text", text.Text)
}

func TestParseStaticAttribute(t *testing.T) {
	root := mustParse(t, `<div id="app"></div>`)
	require.Len(t, root.Attrs, 1)
	assert.Equal(t, "id", root.Attrs[0].Name)
	// Literal attribute values become quoted expressions.
	assert.Equal(t, "'app'", root.Attrs[0].Value)
	assert.False(t, root.Plain)
}

func TestParseBoundAttribute(t *testing.T) {
	root := mustParse(t, `<div :id="someId" v-bind:title="t | cap"></div>`)
	require.Len(t, root.Attrs, 2)
	assert.Equal(t, "id", root.Attrs[0].Name)
	assert.Equal(t, "someId", root.Attrs[0].Value)
	assert.Equal(t, "title", root.Attrs[1].Name)
	assert.Equal(t, `_f("cap")(t)`, root.Attrs[1].Value)
	assert.True(t, root.HasBindings)
}

func TestParseDynamicArgument(t *testing.T) {
	root := mustParse(t, `<div :[key]="value"></div>`)
	require.Len(t, root.DynamicAttrs, 1)
	assert.Equal(t, "key", root.DynamicAttrs[0].Name)
	assert.True(t, root.DynamicAttrs[0].Dynamic)
}

func TestParsePropModifier(t *testing.T) {
	root := mustParse(t, `<div :text-content.prop="msg"></div>`)
	require.Len(t, root.Props, 1)
	assert.Equal(t, "textContent", root.Props[0].Name)
	assert.Equal(t, "msg", root.Props[0].Value)
}

func TestParseMustUseProp(t *testing.T) {
	// input value always binds as a DOM property on the web platform.
	root := mustParse(t, `<input :value="msg">`)
	require.Len(t, root.Props, 1)
	assert.Equal(t, "value", root.Props[0].Name)
}

func TestParseInterpolation(t *testing.T) {
	root := mustParse(t, `<div>abc{{name}}def</div>`)
	require.Len(t, root.Children, 1)
	exp, ok := root.Children[0].(*ast.Expression)
	require.True(t, ok)
	assert.Equal(t, "'abc'+_s(name)+'def'", exp.Expr)
	assert.Equal(t, "abc{{name}}def", exp.Text)
}

func TestParseEntityDecoding(t *testing.T) {
	root := mustParse(t, `<div>a &amp; b</div>`)
	text, ok := root.Children[0].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "a & b", text.Text)
}

func TestParseFor(t *testing.T) {
	res := ParseFor("item in items")
	require.NotNil(t, res)
	assert.Equal(t, "items", res.For)
	assert.Equal(t, "item", res.Alias)

	res = ParseFor("(item, i) in items")
	require.NotNil(t, res)
	assert.Equal(t, "item", res.Alias)
	assert.Equal(t, "i", res.Iterator1)

	res = ParseFor("(val, key, idx) of obj")
	require.NotNil(t, res)
	assert.Equal(t, "obj", res.For)
	assert.Equal(t, "val", res.Alias)
	assert.Equal(t, "key", res.Iterator1)
	assert.Equal(t, "idx", res.Iterator2)

	require.Nil(t, ParseFor("items"))
}

func TestParseForOnElement(t *testing.T) {
	root := mustParse(t, `<ul><li v-for="(item, i) in items">{{item}}</li></ul>`)
	li := root.Children[0].(*ast.Element)
	assert.Equal(t, "items", li.For)
	assert.Equal(t, "item", li.Alias)
	assert.Equal(t, "i", li.Iterator1)
	assert.True(t, li.InFor())
}

func TestParseInvalidFor(t *testing.T) {
	_, warnings := parseWithWarnings(`<ul><li v-for="items"></li></ul>`)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Invalid v-for expression")
}

func TestParseConditionalChain(t *testing.T) {
	root := mustParse(t,
		`<div><p v-if="a">1</p><p v-else-if="b">2</p><p v-else>3</p></div>`)
	// Else branches attach to the primary branch, not the parent.
	require.Len(t, root.Children, 1)
	p := root.Children[0].(*ast.Element)
	assert.Equal(t, "a", p.If)
	require.Len(t, p.IfConditions, 3)
	assert.Equal(t, "a", p.IfConditions[0].Exp)
	assert.Same(t, p, p.IfConditions[0].Block)
	assert.Equal(t, "b", p.IfConditions[1].Exp)
	assert.Equal(t, "", p.IfConditions[2].Exp)
	assert.True(t, p.IfConditions[2].Block.Else)
}

func TestParseElseWithoutIf(t *testing.T) {
	_, warnings := parseWithWarnings(`<div><p v-else>3</p></div>`)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "without corresponding v-if")
}

func TestParseMultipleRoots(t *testing.T) {
	_, warnings := parseWithWarnings(`<p>1</p><p>2</p>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "exactly one root element")
}

func TestParseConditionalRoots(t *testing.T) {
	// Multiple roots are fine when they form one conditional chain.
	root := mustParse(t, `<p v-if="a">1</p><p v-else>2</p>`)
	require.Len(t, root.IfConditions, 2)
}

func TestParseRootConstraints(t *testing.T) {
	_, warnings := parseWithWarnings(`<div v-for="x in xs">{{x}}</div>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "Cannot use v-for on stateful component root")

	_, warnings = parseWithWarnings(`<slot></slot>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "Cannot use <slot> as component root")
}

func TestParseEventHandlers(t *testing.T) {
	root := mustParse(t, `<button @click.stop="go" @click="log">x</button>`)
	handlers := root.Events["click"]
	require.Len(t, handlers, 2)
	assert.Equal(t, "go", handlers[0].Value)
	assert.True(t, handlers[0].Modifiers["stop"])
	assert.Equal(t, "log", handlers[1].Value)
}

func TestParseEventModifierMarkers(t *testing.T) {
	root := mustParse(t, `<div @click.capture="a" @scroll.passive="b" @load.once="c"></div>`)
	assert.Contains(t, root.Events, "!click")
	assert.Contains(t, root.Events, "&scroll")
	assert.Contains(t, root.Events, "~load")
}

func TestParseRightClickRemap(t *testing.T) {
	root := mustParse(t, `<div @click.right="menu"></div>`)
	require.Contains(t, root.Events, "contextmenu")
	assert.NotContains(t, root.Events, "click")
}

func TestParseCustomDirective(t *testing.T) {
	root := mustParse(t, `<div v-focus:arg.mod="value"></div>`)
	require.Len(t, root.Directives, 1)
	dir := root.Directives[0]
	assert.Equal(t, "focus", dir.Name)
	assert.Equal(t, "v-focus:arg.mod", dir.RawName)
	assert.Equal(t, "value", dir.Value)
	assert.Equal(t, "arg", dir.Arg)
	assert.True(t, dir.Modifiers["mod"])
}

func TestParseVPre(t *testing.T) {
	root := mustParse(t, `<div v-pre><span :id="x">{{raw}}</span></div>`)
	assert.True(t, root.Pre)
	span := root.Children[0].(*ast.Element)
	// Inside v-pre nothing compiles: bindings stay literal and
	// interpolation stays text.
	require.Len(t, span.Attrs, 1)
	assert.Equal(t, ":id", span.Attrs[0].Name)
	text, ok := span.Children[0].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "{{raw}}", text.Text)
}

func TestParseVOnce(t *testing.T) {
	root := mustParse(t, `<div v-once>{{msg}}</div>`)
	assert.True(t, root.Once)
}

func TestParseKeyAndRef(t *testing.T) {
	root := mustParse(t, `<div><span :key="id" ref="el">x</span></div>`)
	span := root.Children[0].(*ast.Element)
	assert.Equal(t, "id", span.Key)
	assert.Equal(t, "'el'", span.Ref)
	assert.False(t, span.RefInFor)
}

func TestParseKeyOnTemplateWarns(t *testing.T) {
	_, warnings := parseWithWarnings(`<div><template :key="id">x</template></div>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "<template> cannot be keyed")
}

func TestParseSlotTarget(t *testing.T) {
	root := mustParse(t, `<comp><span slot="header">x</span></comp>`)
	span := root.Children[0].(*ast.Element)
	assert.Equal(t, "'header'", span.SlotTarget)
	assert.False(t, span.SlotTargetDynamic)
}

func TestParseScopedSlot(t *testing.T) {
	root := mustParse(t,
		`<comp><template slot-scope="props"><span>{{props.a}}</span></template></comp>`)
	// Scoped slot content hangs off the component, not its child list.
	require.Empty(t, root.Children)
	require.Contains(t, root.ScopedSlots, "'default'")
	slot := root.ScopedSlots["'default'"]
	assert.Equal(t, "props", slot.SlotScope)
}

func TestParseSlotOutlet(t *testing.T) {
	root := mustParse(t, `<div><slot name="header"></slot></div>`)
	slot := root.Children[0].(*ast.Element)
	assert.Equal(t, "'header'", slot.SlotName)
}

func TestParseDynamicComponent(t *testing.T) {
	root := mustParse(t, `<component :is="view"></component>`)
	assert.Equal(t, "view", root.Component)
}

func TestParseMissingEndTagRecovers(t *testing.T) {
	root, warnings := parseWithWarnings(`<div><p>one</div>`)
	require.NotNil(t, root)
	assert.Equal(t, "div", root.Tag)
	require.Len(t, root.Children, 1)
	p, ok := root.Children[0].(*ast.Element)
	require.True(t, ok)
	assert.Equal(t, "p", p.Tag)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "<p> has no matching end tag")
}

func TestParseForbiddenTag(t *testing.T) {
	root, warnings := parseWithWarnings(`<div><script>alert(1)</script></div>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "side-effects")
	// The forbidden element is dropped from the tree.
	require.NotNil(t, root)
	assert.Empty(t, root.Children)
}

func TestParseInterpolationInAttribute(t *testing.T) {
	_, warnings := parseWithWarnings(`<div id="{{x}}"></div>`)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "interpolation inside attributes has been removed")
}

func TestParseComments(t *testing.T) {
	opts := DefaultOptions()
	opts.Comments = true
	root := Parse(`<div><!-- note --></div>`, opts)
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	comment := root.Children[0].(*ast.Text)
	assert.True(t, comment.IsComment)
	assert.Equal(t, " note ", comment.Text)
}

func TestParseWhitespaceCondense(t *testing.T) {
	opts := DefaultOptions()
	opts.Whitespace = WhitespaceCondense
	root := Parse("<div>\n  <span>a</span>\n  <span>b</span>\n</div>", opts)
	require.NotNil(t, root)
	// Inter-tag whitespace containing line breaks disappears entirely.
	require.Len(t, root.Children, 2)
}

func TestParseWhitespacePreserve(t *testing.T) {
	root := mustParse(t, "<div><span>a</span> <span>b</span></div>")
	// The space between spans condenses to a single text node.
	require.Len(t, root.Children, 3)
	text, ok := root.Children[1].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, " ", text.Text)
}

func TestParseModelDirectiveRecorded(t *testing.T) {
	root := mustParse(t, `<input v-model="msg">`)
	require.Len(t, root.Directives, 1)
	assert.Equal(t, "model", root.Directives[0].Name)
}

func TestParseSyncModifier(t *testing.T) {
	root := mustParse(t, `<comp :visible.sync="shown"></comp>`)
	require.Contains(t, root.Events, "update:visible")
	assert.Equal(t, "shown=$event", root.Events["update:visible"][0].Value)
}
