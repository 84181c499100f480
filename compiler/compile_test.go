package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/loom/diag"
	"github.com/deepnoodle-ai/loom/internal/token"
)

func TestCompileClean(t *testing.T) {
	res := Compile(`<div id="app">{{ msg | cap }}</div>`, DefaultOptions())
	require.NotNil(t, res)
	require.Empty(t, res.Errors)
	require.NoError(t, res.Err())
	assert.NotNil(t, res.AST)
	assert.Equal(t,
		`with(this){return _c('div',{attrs:{"id":'app'}},[_v(_s(_f("cap")(msg)))])}`,
		res.Render)
}

func TestCompileCollectsParseErrors(t *testing.T) {
	res := Compile(`<p>1</p><p>2</p>`, DefaultOptions())
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "exactly one root element")
	assert.Equal(t, diag.KindSyntax, res.Errors[0].Kind)
	require.Error(t, res.Err())
}

func TestCompileDetectsExpressionErrors(t *testing.T) {
	res := Compile(`<div>{{ foo( }}</div>`, DefaultOptions())
	require.NotEmpty(t, res.Errors)
	found := false
	for _, err := range res.Errors {
		if err.Kind == diag.KindExpression {
			found = true
		}
	}
	assert.True(t, found, "expected an expression diagnostic")
}

func TestCompileDetectsBadForAlias(t *testing.T) {
	res := Compile(`<div><p v-for="a.b in items">x</p></div>`, DefaultOptions())
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "v-for alias")
}

func TestCompileAttachesSourceLines(t *testing.T) {
	res := Compile("<div>\n  <p v-else>x</p>\n</div>", DefaultOptions())
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "  <p v-else>x</p>", res.Errors[0].Source)
	assert.Equal(t, 2, res.Errors[0].Start.LineNumber())
}

func TestCompileForwardsWarnings(t *testing.T) {
	var forwarded []string
	opts := DefaultOptions()
	opts.Warn = func(msg string, _, _ token.Position, _ bool) {
		forwarded = append(forwarded, msg)
	}
	Compile(`<div><p v-else>x</p></div>`, opts)
	require.Len(t, forwarded, 1)
}

func TestCompileCustomDelimiters(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiters = [2]string{"${", "}"}
	res := Compile(`<div>${msg}</div>`, opts)
	require.Empty(t, res.Errors)
	assert.Contains(t, res.Render, "_v(_s(msg))")
}

func TestCompileScriptRootRendersNothing(t *testing.T) {
	res := Compile(`<script>x</script>`, DefaultOptions())
	assert.Equal(t, "with(this){return null}", res.Render)
}

func TestMergeOptions(t *testing.T) {
	base := DefaultOptions()
	merged := Merge(base, &Options{
		Filename:   "app.tmpl",
		Delimiters: [2]string{"[[", "]]"},
		Comments:   true,
	})
	assert.Equal(t, "app.tmpl", merged.Filename)
	assert.Equal(t, [2]string{"[[", "]]"}, merged.Delimiters)
	assert.True(t, merged.Comments)
	// Platform configuration carries through.
	assert.NotNil(t, merged.IsReservedTag)
	assert.Len(t, merged.Modules, 2)
	// The originals are untouched.
	assert.False(t, base.Comments)
	assert.Empty(t, base.Filename)
}
