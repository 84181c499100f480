package expr

import (
	"fmt"
	"testing"

	"github.com/deepnoodle-ai/loom/diag"
	"github.com/stretchr/testify/require"
)

func TestIdentExpression(t *testing.T) {
	node, err := Parse("foobar")
	require.Nil(t, err)
	ident, ok := node.(*Ident)
	require.True(t, ok)
	require.Equal(t, "foobar", ident.Name)
}

func TestIntLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"5", 5},
		{"990211", 990211},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err)
		lit, ok := node.(*Int)
		require.True(t, ok)
		require.Equal(t, tt.want, lit.Value)
	}
}

func TestFloatLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"0.5", 0.5},
		{"3.0", 3.0},
		{"1e3", 1000.0},
		{"2.5e-1", 0.25},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err)
		lit, ok := node.(*Float)
		require.True(t, ok)
		require.Equal(t, tt.want, lit.Value)
	}
}

func TestBoolAndNilLiterals(t *testing.T) {
	node, err := Parse("true")
	require.Nil(t, err)
	b, ok := node.(*Bool)
	require.True(t, ok)
	require.True(t, b.Value)

	node, err = Parse("null")
	require.Nil(t, err)
	_, ok = node.(*Nil)
	require.True(t, ok)

	node, err = Parse("undefined")
	require.Nil(t, err)
	_, ok = node.(*Nil)
	require.True(t, ok)
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"double"`, "double"},
		{`'single'`, "single"},
		{`'it\'s'`, "it's"},
		{`"tab\there"`, "tab\there"},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err)
		str, ok := node.(*String)
		require.True(t, ok)
		require.Equal(t, tt.want, str.Value)
	}
}

func TestPrefixExpressions(t *testing.T) {
	tests := []struct {
		input string
		op    string
		want  any
	}{
		{"!visible", "!", "visible"},
		{"-15", "-", int64(15)},
		{"!true", "!", true},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err)
		prefix, ok := node.(*Prefix)
		require.True(t, ok)
		require.Equal(t, tt.op, prefix.Op)
		switch want := tt.want.(type) {
		case string:
			ident, ok := prefix.X.(*Ident)
			require.True(t, ok)
			require.Equal(t, want, ident.Name)
		case int64:
			lit, ok := prefix.X.(*Int)
			require.True(t, ok)
			require.Equal(t, want, lit.Value)
		case bool:
			lit, ok := prefix.X.(*Bool)
			require.True(t, ok)
			require.Equal(t, want, lit.Value)
		}
	}
}

func TestInfixExpressions(t *testing.T) {
	tests := []struct {
		input string
		left  int64
		op    string
		right int64
	}{
		{"5 + 5", 5, "+", 5},
		{"5 - 5", 5, "-", 5},
		{"5 * 5", 5, "*", 5},
		{"5 / 5", 5, "/", 5},
		{"5 % 5", 5, "%", 5},
		{"5 ** 5", 5, "**", 5},
		{"5 > 5", 5, ">", 5},
		{"5 < 5", 5, "<", 5},
		{"5 == 5", 5, "==", 5},
		{"5 != 5", 5, "!=", 5},
		{"5 === 5", 5, "===", 5},
		{"5 !== 5", 5, "!==", 5},
		{"5 >= 5", 5, ">=", 5},
		{"5 <= 5", 5, "<=", 5},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err, tt.input)
		infix, ok := node.(*Infix)
		require.True(t, ok, tt.input)
		require.Equal(t, tt.op, infix.Op)
		left, ok := infix.X.(*Int)
		require.True(t, ok)
		require.Equal(t, tt.left, left.Value)
		right, ok := infix.Y.(*Int)
		require.True(t, ok)
		require.Equal(t, tt.right, right.Value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"-a * b", "((-a) * b)"},
		{"!-a", "(!(-a))"},
		{"a + b + c", "((a + b) + c)"},
		{"a + b - c", "((a + b) - c)"},
		{"a * b * c", "((a * b) * c)"},
		{"a * b / c", "((a * b) / c)"},
		{"a + b / c", "(a + (b / c))"},
		{"a + b % c", "(a + (b % c))"},
		{"a + b * c + d / e - f", "(((a + (b * c)) + (d / e)) - f)"},
		{"5 > 4 == 3 < 4", "((5 > 4) == (3 < 4))"},
		{"3 + 4 * 5 == 3 * 1 + 4 * 5", "((3 + (4 * 5)) == ((3 * 1) + (4 * 5)))"},
		{"(5 + 5) * 2", "((5 + 5) * 2)"},
		{"2 / (5 + 5)", "(2 / (5 + 5))"},
		{"-(5 + 5)", "(-(5 + 5))"},
		{"!(true == true)", "(!(true == true))"},
		{"a + add(b * c) + d", "((a + add((b * c))) + d)"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"a && b || c", "((a && b) || c)"},
		{"a || b && c", "(a || (b && c))"},
		{"a ?? b || c", "(a ?? (b || c))"},
		{"a == b && c != d", "((a == b) && (c != d))"},
		{"count + 1 > limit", "((count + 1) > limit)"},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err, tt.input)
		require.Equal(t, tt.want, node.String(), tt.input)
	}
}

func TestTernaryExpressions(t *testing.T) {
	node, err := Parse("ok ? 'yes' : 'no'")
	require.Nil(t, err)
	tern, ok := node.(*Ternary)
	require.True(t, ok)
	require.Equal(t, "ok", tern.Cond.String())
	require.Equal(t, `"yes"`, tern.IfTrue.String())
	require.Equal(t, `"no"`, tern.IfFalse.String())

	// Nested ternaries associate through the branches.
	node, err = Parse("a ? b : c ? d : e")
	require.Nil(t, err)
	require.Equal(t, "(a ? b : (c ? d : e))", node.String())

	node, err = Parse("a ? b ? c : d : e")
	require.Nil(t, err)
	require.Equal(t, "(a ? (b ? c : d) : e)", node.String())
}

func TestNullishCoalescing(t *testing.T) {
	node, err := Parse("value ?? fallback ?? 'default'")
	require.Nil(t, err)
	require.Equal(t, `((value ?? fallback) ?? "default")`, node.String())
}

func TestCallExpressions(t *testing.T) {
	node, err := Parse("add(1, 2 * 3, 4 + 5)")
	require.Nil(t, err)
	call, ok := node.(*Call)
	require.True(t, ok)
	require.Equal(t, "add", call.Fun.String())
	require.Len(t, call.Args, 3)
	require.Equal(t, "1", call.Args[0].String())
	require.Equal(t, "(2 * 3)", call.Args[1].String())
	require.Equal(t, "(4 + 5)", call.Args[2].String())

	// Zero arguments and trailing commas are fine.
	node, err = Parse("refresh()")
	require.Nil(t, err)
	call, ok = node.(*Call)
	require.True(t, ok)
	require.Len(t, call.Args, 0)

	node, err = Parse("add(1, 2,)")
	require.Nil(t, err)
	call, ok = node.(*Call)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
}

func TestGetAttrExpressions(t *testing.T) {
	node, err := Parse("user.profile.name")
	require.Nil(t, err)
	require.Equal(t, "user.profile.name", node.String())

	attr, ok := node.(*GetAttr)
	require.True(t, ok)
	require.Equal(t, "name", attr.Attr.Name)
	require.False(t, attr.Optional)

	inner, ok := attr.X.(*GetAttr)
	require.True(t, ok)
	require.Equal(t, "profile", inner.Attr.Name)
}

func TestOptionalChainingParse(t *testing.T) {
	node, err := Parse("user?.profile?.name")
	require.Nil(t, err)
	require.Equal(t, "user?.profile?.name", node.String())

	attr, ok := node.(*GetAttr)
	require.True(t, ok)
	require.True(t, attr.Optional)
}

func TestIndexExpressions(t *testing.T) {
	node, err := Parse("items[i + 1]")
	require.Nil(t, err)
	idx, ok := node.(*Index)
	require.True(t, ok)
	require.Equal(t, "items", idx.X.String())
	require.Equal(t, "(i + 1)", idx.Index.String())

	node, err = Parse("matrix[0][1]")
	require.Nil(t, err)
	require.Equal(t, "matrix[0][1]", node.String())

	node, err = Parse(`row['name']`)
	require.Nil(t, err)
	require.Equal(t, `row["name"]`, node.String())
}

func TestListLiterals(t *testing.T) {
	node, err := Parse("[1, 2 * 2, 3 + 3]")
	require.Nil(t, err)
	list, ok := node.(*List)
	require.True(t, ok)
	require.Len(t, list.Items, 3)
	require.Equal(t, "(2 * 2)", list.Items[1].String())

	node, err = Parse("[]")
	require.Nil(t, err)
	list, ok = node.(*List)
	require.True(t, ok)
	require.Len(t, list.Items, 0)

	node, err = Parse("[1, 2,]")
	require.Nil(t, err)
	list, ok = node.(*List)
	require.True(t, ok)
	require.Len(t, list.Items, 2)
}

func TestMapLiterals(t *testing.T) {
	node, err := Parse(`{active: isActive, 'text-danger': hasError}`)
	require.Nil(t, err)
	m, ok := node.(*Map)
	require.True(t, ok)
	require.Len(t, m.Items, 2)

	key, ok := m.Items[0].Key.(*Ident)
	require.True(t, ok)
	require.Equal(t, "active", key.Name)
	require.Equal(t, "isActive", m.Items[0].Value.String())

	strKey, ok := m.Items[1].Key.(*String)
	require.True(t, ok)
	require.Equal(t, "text-danger", strKey.Value)
}

func TestMapShorthand(t *testing.T) {
	node, err := Parse("{visible}")
	require.Nil(t, err)
	m, ok := node.(*Map)
	require.True(t, ok)
	require.Len(t, m.Items, 1)

	key, ok := m.Items[0].Key.(*Ident)
	require.True(t, ok)
	require.Equal(t, "visible", key.Name)

	value, ok := m.Items[0].Value.(*Ident)
	require.True(t, ok)
	require.Equal(t, "visible", value.Name)
}

func TestMapIntKeys(t *testing.T) {
	node, err := Parse("{1: 'one', 2: 'two'}")
	require.Nil(t, err)
	m, ok := node.(*Map)
	require.True(t, ok)
	require.Len(t, m.Items, 2)
	_, ok = m.Items[0].Key.(*Int)
	require.True(t, ok)
}

func TestAssignExpressions(t *testing.T) {
	node, err := Parse("count = count + 1")
	require.Nil(t, err)
	assign, ok := node.(*Assign)
	require.True(t, ok)
	require.Equal(t, "count", assign.X.String())
	require.Equal(t, "(count + 1)", assign.Y.String())

	node, err = Parse("user.name = 'Ada'")
	require.Nil(t, err)
	assign, ok = node.(*Assign)
	require.True(t, ok)
	_, ok = assign.X.(*GetAttr)
	require.True(t, ok)

	node, err = Parse("items[0] = first")
	require.Nil(t, err)
	assign, ok = node.(*Assign)
	require.True(t, ok)
	_, ok = assign.X.(*Index)
	require.True(t, ok)
}

func TestInvalidAssignTargets(t *testing.T) {
	tests := []string{
		"1 = 2",
		"a + b = c",
		"f() = 3",
	}
	for _, input := range tests {
		_, err := Parse(input)
		require.NotNil(t, err, input)
	}
}

func TestPostfixExpressions(t *testing.T) {
	node, err := Parse("count++")
	require.Nil(t, err)
	post, ok := node.(*Postfix)
	require.True(t, ok)
	require.Equal(t, "++", post.Op)
	require.Equal(t, "count", post.X.String())

	node, err = Parse("total--")
	require.Nil(t, err)
	post, ok = node.(*Postfix)
	require.True(t, ok)
	require.Equal(t, "--", post.Op)
}

func TestTemplateStrings(t *testing.T) {
	node, err := Parse("`Hello ${name}!`")
	require.Nil(t, err)
	str, ok := node.(*String)
	require.True(t, ok)
	require.NotNil(t, str.Template)
	require.Len(t, str.Exprs, 1)
	require.Equal(t, "name", str.Exprs[0].String())

	frags := str.Template.Fragments()
	require.Len(t, frags, 3)
	require.Equal(t, "Hello ", frags[0].Value())
	require.False(t, frags[0].IsVariable())
	require.Equal(t, "name", frags[1].Value())
	require.True(t, frags[1].IsVariable())
	require.Equal(t, "!", frags[2].Value())
}

func TestTemplateStringExpressions(t *testing.T) {
	node, err := Parse("`${count + 1} items`")
	require.Nil(t, err)
	str, ok := node.(*String)
	require.True(t, ok)
	require.Len(t, str.Exprs, 1)
	require.Equal(t, "(count + 1)", str.Exprs[0].String())
}

func TestTemplateStringErrors(t *testing.T) {
	_, err := Parse("`value: ${}`")
	require.NotNil(t, err)

	_, err = Parse("`broken ${1 +}`")
	require.NotNil(t, err)
}

func TestParseProgram(t *testing.T) {
	program, err := ParseProgram("count++; refresh()")
	require.Nil(t, err)
	require.Len(t, program.Exprs, 2)
	require.Equal(t, "count++; refresh()", program.String())

	// Trailing and repeated separators are tolerated.
	program, err = ParseProgram("a = 1;")
	require.Nil(t, err)
	require.Len(t, program.Exprs, 1)

	program, err = ParseProgram("a = 1;; b = 2")
	require.Nil(t, err)
	require.Len(t, program.Exprs, 2)
}

func TestParseProgramEmpty(t *testing.T) {
	_, err := ParseProgram("")
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "empty expression")

	_, err = ParseProgram(";;")
	require.NotNil(t, err)
}

func TestTrailingTokens(t *testing.T) {
	tests := []string{
		"a b",
		"1 2",
		"x++ y",
	}
	for _, input := range tests {
		_, err := Parse(input)
		require.NotNil(t, err, input)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "unexpected end of expression"},
		{"(1 + 2", "expected )"},
		{"[1, 2", "expected ]"},
		{"{a: 1", "expected }"},
		{"a ? b", "expected :"},
		{"a.", "attribute access"},
		{"1 +", "unexpected end of expression"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.input)
		require.NotNil(t, err, tt.input)
		require.Contains(t, err.Error(), tt.want, tt.input)
	}
}

func TestParseErrorPositions(t *testing.T) {
	_, err := Parse("count + ", WithFilename("widget.html"))
	require.NotNil(t, err)
	var list *diag.List
	require.ErrorAs(t, err, &list)
	require.True(t, list.Count() >= 1)
	first := list.First()
	require.Equal(t, "widget.html", first.File)
	require.Equal(t, diag.KindExpression, first.Kind)
}

func TestParseErrorFormatting(t *testing.T) {
	_, err := Parse("total +", WithFilename("app.html"))
	require.NotNil(t, err)
	var list *diag.List
	require.ErrorAs(t, err, &list)
	msg := list.First().FriendlyErrorMessage()
	require.Contains(t, msg, "app.html")
	require.Contains(t, msg, "total +")
	require.Contains(t, msg, "-->")
}

func TestMaxDepth(t *testing.T) {
	input := "x"
	for i := 0; i < 200; i++ {
		input = "(" + input + ")"
	}
	_, err := Parse(input)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "maximum nesting depth")

	_, err = Parse("((x))", WithMaxDepth(1))
	require.NotNil(t, err)
}

func TestDollarIdentifiers(t *testing.T) {
	node, err := Parse("handle($event, $index)")
	require.Nil(t, err)
	call, ok := node.(*Call)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	require.Equal(t, "$event", call.Args[0].String())
}

func TestIsSimplePath(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"user", true},
		{"user.profile.name", true},
		{"items[0]", true},
		{"rows['key']", true},
		{"items[i]", false},
		{"a + b", false},
		{"f()", false},
		{"user?.name", true},
	}
	for _, tt := range tests {
		node, err := Parse(tt.input)
		require.Nil(t, err, tt.input)
		require.Equal(t, tt.want, IsSimplePath(node), tt.input)
	}
}

func TestValidateIdentifier(t *testing.T) {
	require.Nil(t, ValidateIdentifier("item"))
	require.Nil(t, ValidateIdentifier("$item"))
	require.NotNil(t, ValidateIdentifier("item.name"))
	require.NotNil(t, ValidateIdentifier("1"))
	require.NotNil(t, ValidateIdentifier(""))
}

func TestNodePositions(t *testing.T) {
	node, err := Parse("  count  ")
	require.Nil(t, err)
	require.Equal(t, 2, node.Pos().Char)
	require.Equal(t, 7, node.End().Char)
}

func TestParseFuzzCorpus(t *testing.T) {
	// Inputs that must not panic, whatever the outcome.
	inputs := []string{
		"?", ":", "??", "...", "((((", "]]]]", "{{", "a?.", "a??",
		"'", "`", "${", "a ? : b", "= 1", ", ,", ". .",
	}
	for _, input := range inputs {
		func() {
			defer func() {
				require.Nil(t, recover(), fmt.Sprintf("panic on %q", input))
			}()
			Parse(input)
		}()
	}
}
