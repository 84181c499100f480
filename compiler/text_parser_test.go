package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/loom/ast"
)

func TestParseTextPlain(t *testing.T) {
	// Text without delimiters is not an interpolation at all.
	require.Nil(t, ParseText("hello", [2]string{}))
}

func TestParseTextSingleBinding(t *testing.T) {
	res := ParseText("{{name}}", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, "_s(name)", res.Expression)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, "name", res.Tokens[0].Binding)
}

func TestParseTextMixed(t *testing.T) {
	res := ParseText("abc{{name}}def", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, "'abc'+_s(name)+'def'", res.Expression)
	assert.Equal(t, []ast.TextToken{
		{Text: "abc"},
		{Binding: "name"},
		{Text: "def"},
	}, res.Tokens)
}

func TestParseTextMultipleBindings(t *testing.T) {
	res := ParseText("{{a}} and {{b}}", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, "_s(a)+' and '+_s(b)", res.Expression)
}

func TestParseTextFilters(t *testing.T) {
	res := ParseText("{{ msg | upper }}", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, `_s(_f("upper")(msg))`, res.Expression)
}

func TestParseTextCustomDelimiters(t *testing.T) {
	res := ParseText("a ${x} b", [2]string{"${", "}"})
	require.NotNil(t, res)
	assert.Equal(t, "'a '+_s(x)+' b'", res.Expression)
	// The default delimiters no longer match.
	require.Nil(t, ParseText("{{x}}", [2]string{"${", "}"}))
}

func TestParseTextEscapesLiterals(t *testing.T) {
	res := ParseText("it's {{x}}\n", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, `'it\'s '+_s(x)+'\n'`, res.Expression)
}

func TestParseTextBindingSpansLines(t *testing.T) {
	res := ParseText("{{\n  name\n}}", [2]string{})
	require.NotNil(t, res)
	assert.Equal(t, "_s(name)", res.Expression)
}
