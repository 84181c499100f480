package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFiltersPlainExpression(t *testing.T) {
	// No pipes means the expression passes through untouched.
	require.Equal(t, "msg", ParseFilters("msg"))
	require.Equal(t, "a + b", ParseFilters("a + b"))
}

func TestParseFiltersSingle(t *testing.T) {
	require.Equal(t, `_f("capitalize")(msg)`, ParseFilters("msg | capitalize"))
}

func TestParseFiltersChain(t *testing.T) {
	// Each filter wraps everything to its left.
	require.Equal(t, `_f("filterB")(_f("filterA")(msg),arg)`,
		ParseFilters("msg | filterA | filterB(arg)"))
}

func TestParseFiltersArguments(t *testing.T) {
	require.Equal(t, `_f("pad")(n,2,"0")`, ParseFilters(`n | pad(2,"0")`))
	// An empty argument list behaves like no arguments.
	require.Equal(t, `_f("trim")(s)`, ParseFilters("s | trim()"))
}

func TestParseFiltersIgnoresLogicalOr(t *testing.T) {
	require.Equal(t, "a || b", ParseFilters("a || b"))
	require.Equal(t, `_f("fmt")(a || b)`, ParseFilters("a || b | fmt"))
}

func TestParseFiltersIgnoresPipesInStrings(t *testing.T) {
	require.Equal(t, `"a|b"`, ParseFilters(`"a|b"`))
	require.Equal(t, `'a|b'`, ParseFilters(`'a|b'`))
	require.Equal(t, "`a|b`", ParseFilters("`a|b`"))
}

func TestParseFiltersIgnoresPipesInBrackets(t *testing.T) {
	require.Equal(t, "fn(a | b)", ParseFilters("fn(a | b)"))
	require.Equal(t, "m[a | b]", ParseFilters("m[a | b]"))
	require.Equal(t, "{k: a | b}", ParseFilters("{k: a | b}"))
}

func TestParseFiltersRegexLiteral(t *testing.T) {
	// The pipe inside a regex literal is not a filter separator.
	require.Equal(t, `_f("test")(/a|b/)`, ParseFilters("/a|b/ | test"))
	// A slash after an operand is division, so the pipe splits normally.
	require.Equal(t, `_f("half")(a / b)`, ParseFilters("a / b | half"))
}

func TestParseFiltersWhitespace(t *testing.T) {
	require.Equal(t, `_f("upper")(msg)`, ParseFilters("  msg  |  upper  "))
}
