package loom

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/loom/reactive"
	"github.com/deepnoodle-ai/loom/vdom"
)

func newState(t *testing.T, src map[string]any) (*reactive.Runtime, *reactive.Map) {
	t.Helper()
	rt := reactive.NewRuntime(reactive.WithSyncScheduler())
	m := reactive.MapOf(rt, src)
	rt.Observe(m)
	return rt, m
}

func textOf(n *vdom.VNode) string {
	var sb strings.Builder
	var walk func(*vdom.VNode)
	walk = func(n *vdom.VNode) {
		if n.IsComment {
			return
		}
		sb.WriteString(n.Text)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func TestCompileClean(t *testing.T) {
	res, err := Compile(`<div id="app">{{msg}}</div>`)
	require.NoError(t, err)
	require.NotNil(t, res.AST)
	assert.Equal(t, "div", res.AST.Tag)
	assert.Empty(t, res.Errors)
}

func TestCompileAggregatesErrors(t *testing.T) {
	_, err := Compile(`<div><p>{{ a b }}</p><p>{{ c d }}</p></div>`)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.GreaterOrEqual(t, len(merr.Errors), 2)
}

func TestCompileForbiddenRootTag(t *testing.T) {
	res, err := Compile(`<script>alert(1)</script>`)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Errors)
}

func TestCompileToFunctionsMemoizes(t *testing.T) {
	a, err := CompileToFunctions(`<div>{{memoized}}</div>`)
	require.NoError(t, err)
	b, err := CompileToFunctions(`<div>{{memoized}}</div>`)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := CompileToFunctions(`<div>[[memoized]]</div>`, WithDelimiters("[[", "]]"))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestCompileToFunctionsErrorNotCached(t *testing.T) {
	_, err := CompileToFunctions(`<div>{{ not valid }}</div>`)
	require.Error(t, err)
	_, err = CompileToFunctions(`<div>{{ not valid }}</div>`)
	require.Error(t, err)
}

func TestRenderEndToEnd(t *testing.T) {
	tpl, err := CompileToFunctions(`<ul><li v-for="(item, i) in items">{{i}}:{{item}}</li></ul>`)
	require.NoError(t, err)

	_, m := newState(t, map[string]any{"items": []any{"a", "b"}})
	node, err := tpl.Render(m)
	require.NoError(t, err)
	assert.Equal(t, "ul", node.Tag)
	require.Len(t, node.Children, 2)
	assert.Equal(t, "0:a", textOf(node.Children[0]))
	assert.Equal(t, "1:b", textOf(node.Children[1]))
}

func TestRenderWithRegisteredFilter(t *testing.T) {
	tpl, err := CompileToFunctions(`<p>{{msg | shout}}</p>`,
		WithFilter("shout", strings.ToUpper))
	require.NoError(t, err)

	_, m := newState(t, map[string]any{"msg": "hey"})
	node, err := tpl.Render(m)
	require.NoError(t, err)
	assert.Equal(t, "HEY", textOf(node))
}

func TestCustomDelimiters(t *testing.T) {
	tpl, err := CompileToFunctions(`<p>${msg}</p>`, WithDelimiters("${", "}"))
	require.NoError(t, err)

	_, m := newState(t, map[string]any{"msg": "ok"})
	node, err := tpl.Render(m)
	require.NoError(t, err)
	assert.Equal(t, "ok", textOf(node))
}

func TestRenderContextReusesStaticCache(t *testing.T) {
	tpl, err := CompileToFunctions(`<div><p class="a"><span>fixed</span></p>{{n}}</div>`)
	require.NoError(t, err)

	_, m := newState(t, map[string]any{"n": 1})
	ctx := tpl.Context(m)
	first, err := tpl.RenderContext(ctx)
	require.NoError(t, err)
	second, err := tpl.RenderContext(ctx)
	require.NoError(t, err)

	assert.False(t, first.Children[0].IsCloned)
	assert.True(t, second.Children[0].IsCloned)
}

func TestWatchReRendersOnMutation(t *testing.T) {
	tpl, err := CompileToFunctions(`<p>{{msg}}</p>`)
	require.NoError(t, err)

	rt, m := newState(t, map[string]any{"msg": "one"})
	var got []string
	w, err := tpl.Watch(rt, m, func(n *vdom.VNode) {
		got = append(got, textOf(n))
	})
	require.NoError(t, err)
	defer w.Teardown()

	require.Equal(t, []string{"one"}, got)
	m.Set("msg", "two")
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestWatchStopsAfterTeardown(t *testing.T) {
	tpl, err := CompileToFunctions(`<p>{{msg}}</p>`)
	require.NoError(t, err)

	rt, m := newState(t, map[string]any{"msg": "one"})
	calls := 0
	w, err := tpl.Watch(rt, m, func(*vdom.VNode) { calls++ })
	require.NoError(t, err)

	w.Teardown()
	m.Set("msg", "two")
	assert.Equal(t, 1, calls)
}

func TestCompiledTemplateAccessors(t *testing.T) {
	tpl, err := CompileToFunctions(`<div>x</div>`, WithFilename("app.tmpl"))
	require.NoError(t, err)
	assert.Equal(t, `<div>x</div>`, tpl.Source())
	assert.Equal(t, "app.tmpl", tpl.Filename())
	require.NotNil(t, tpl.Result())
	assert.NotEmpty(t, tpl.Result().Render)
}
