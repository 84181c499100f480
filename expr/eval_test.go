package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type testScope map[string]any

func (s testScope) Resolve(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

func (s testScope) Assign(name string, value any) error {
	s[name] = value
	return nil
}

func evalExpr(t *testing.T, input string, scope Scope) any {
	t.Helper()
	node, err := Parse(input)
	require.Nil(t, err)
	v, err := Eval(node, scope)
	require.Nil(t, err)
	return v
}

func TestEvalLiterals(t *testing.T) {
	scope := testScope{}
	require.Equal(t, int64(42), evalExpr(t, "42", scope))
	require.Equal(t, 1.5, evalExpr(t, "1.5", scope))
	require.Equal(t, "hi", evalExpr(t, "'hi'", scope))
	require.Equal(t, true, evalExpr(t, "true", scope))
	require.Equal(t, false, evalExpr(t, "false", scope))
	require.Nil(t, evalExpr(t, "null", scope))
	require.Nil(t, evalExpr(t, "undefined", scope))
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, 0, int64(0), 0.0, math.NaN(), ""}
	for _, v := range falsy {
		require.False(t, Truthy(v), "%v should be falsy", v)
	}
	truthy := []any{true, 1, int64(-1), 0.5, "a", "0",
		[]any{}, map[string]any{}, NewDict()}
	for _, v := range truthy {
		require.True(t, Truthy(v), "%v should be truthy", v)
	}
}

func TestEvalArithmetic(t *testing.T) {
	scope := testScope{"x": int64(3)}
	require.Equal(t, int64(3), evalExpr(t, "1 + 2", scope))
	require.Equal(t, 3.5, evalExpr(t, "1 + 2.5", scope))
	require.Equal(t, int64(6), evalExpr(t, "2 * x", scope))
	require.Equal(t, int64(-3), evalExpr(t, "-x", scope))
	require.Equal(t, -1.5, evalExpr(t, "-1.5", scope))
	require.Equal(t, int64(1), evalExpr(t, "7 % 3", scope))
	require.Equal(t, 1.5, evalExpr(t, "7.5 % 2", scope))
	require.Equal(t, float64(1024), evalExpr(t, "2 ** 10", scope))
	require.Equal(t, float64(512), evalExpr(t, "2 ** 3 ** 2", scope))
}

func TestDivisionIsAlwaysFloat(t *testing.T) {
	scope := testScope{}
	require.Equal(t, 3.5, evalExpr(t, "7 / 2", scope))
	require.Equal(t, 2.0, evalExpr(t, "4 / 2", scope))

	v := evalExpr(t, "1 / 0", scope)
	f, ok := v.(float64)
	require.True(t, ok)
	require.True(t, math.IsInf(f, 1))
}

func TestModuloByZero(t *testing.T) {
	scope := testScope{}
	v := evalExpr(t, "5 % 0", scope)
	f, ok := v.(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(f))

	v = evalExpr(t, "5.5 % 0", scope)
	f, ok = v.(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
}

func TestStringConcat(t *testing.T) {
	scope := testScope{"count": int64(3)}
	require.Equal(t, "ab", evalExpr(t, "'a' + 'b'", scope))
	require.Equal(t, "total: 3", evalExpr(t, "'total: ' + count", scope))
	require.Equal(t, "3 items", evalExpr(t, "count + ' items'", scope))
	require.Equal(t, "", evalExpr(t, "'' + null", scope))
	require.Equal(t, "yes: true", evalExpr(t, "'yes: ' + true", scope))
	require.Equal(t, "pi is 3.14", evalExpr(t, "'pi is ' + 3.14", scope))
}

func TestShortCircuitReturnsOperands(t *testing.T) {
	scope := testScope{"zero": int64(0), "name": "Ada"}

	// && yields the first falsy operand or the last operand.
	require.Equal(t, int64(0), evalExpr(t, "zero && name", scope))
	require.Equal(t, "Ada", evalExpr(t, "1 && name", scope))

	// || yields the first truthy operand or the last operand.
	require.Equal(t, "Ada", evalExpr(t, "zero || name", scope))
	require.Equal(t, "Ada", evalExpr(t, "name || zero", scope))

	// The right side is not evaluated when the left decides the result,
	// so the undefined variable here is never resolved.
	require.Equal(t, "Ada", evalExpr(t, "name || missing", scope))
	require.Equal(t, int64(0), evalExpr(t, "zero && missing", scope))
}

func TestNullishOperator(t *testing.T) {
	scope := testScope{"unset": nil, "zero": int64(0), "empty": ""}
	require.Equal(t, "fallback", evalExpr(t, "unset ?? 'fallback'", scope))
	// Zero and empty string are not nullish.
	require.Equal(t, int64(0), evalExpr(t, "zero ?? 5", scope))
	require.Equal(t, "", evalExpr(t, "empty ?? 'x'", scope))
	require.Equal(t, false, evalExpr(t, "false ?? true", scope))
}

func TestComparisons(t *testing.T) {
	scope := testScope{}
	tests := []struct {
		input string
		want  bool
	}{
		{"1 == 1", true},
		{"1 == 1.0", true},
		{"1 === 1.0", true},
		{"1 == 2", false},
		{"'a' == 'a'", true},
		{"'1' == 1", false},
		{"true == 1", false},
		{"null == null", true},
		{"null == 0", false},
		{"1 != 2", true},
		{"1 !== 1", false},
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 2.5", true},
		{"'a' < 'b'", true},
		{"'b' >= 'b'", true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, evalExpr(t, tt.input, scope), tt.input)
	}
}

func TestComparisonTypeErrors(t *testing.T) {
	node, err := Parse("1 < 'a'")
	require.Nil(t, err)
	_, err = Eval(node, testScope{})
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "unsupported operand types")
}

func TestEvalNot(t *testing.T) {
	scope := testScope{"name": "Ada", "zero": int64(0)}
	require.Equal(t, false, evalExpr(t, "!name", scope))
	require.Equal(t, true, evalExpr(t, "!zero", scope))
	require.Equal(t, true, evalExpr(t, "!!name", scope))
}

func TestEvalTernary(t *testing.T) {
	scope := testScope{"count": int64(2)}
	require.Equal(t, "some", evalExpr(t, "count > 0 ? 'some' : 'none'", scope))
	require.Equal(t, "none", evalExpr(t, "count > 5 ? 'some' : 'none'", scope))
	require.Equal(t, "b", evalExpr(t, "0 ? 'a' : 1 ? 'b' : 'c'", scope))
}

func TestEvalList(t *testing.T) {
	scope := testScope{"x": int64(10)}
	v := evalExpr(t, "[1, x, 'three']", scope)
	list, ok := v.([]any)
	require.True(t, ok)
	require.Equal(t, []any{int64(1), int64(10), "three"}, list)
}

func TestEvalMapOrder(t *testing.T) {
	scope := testScope{"isActive": true}
	v := evalExpr(t, "{b: 1, a: 2, 'text-danger': isActive}", scope)
	dict, ok := v.(*Dict)
	require.True(t, ok)
	require.Equal(t, []string{"b", "a", "text-danger"}, dict.Keys())

	got, ok := dict.Get("text-danger")
	require.True(t, ok)
	require.Equal(t, true, got)
}

func TestMapShorthandEval(t *testing.T) {
	scope := testScope{"visible": true}
	v := evalExpr(t, "{visible}", scope)
	dict, ok := v.(*Dict)
	require.True(t, ok)
	got, ok := dict.Get("visible")
	require.True(t, ok)
	require.Equal(t, true, got)
}

func TestGetAttrOnMaps(t *testing.T) {
	scope := testScope{
		"user": map[string]any{
			"name": "Ada",
			"profile": map[string]any{
				"city": "London",
			},
		},
	}
	require.Equal(t, "Ada", evalExpr(t, "user.name", scope))
	require.Equal(t, "London", evalExpr(t, "user.profile.city", scope))

	// Missing attributes read as null without an error.
	require.Nil(t, evalExpr(t, "user.missing", scope))
}

func TestGetAttrOnNull(t *testing.T) {
	scope := testScope{"user": nil}
	node, err := Parse("user.name")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), `cannot read attribute "name" of null`)
}

func TestOptionalChaining(t *testing.T) {
	scope := testScope{"user": nil}
	require.Nil(t, evalExpr(t, "user?.name", scope))
	require.Nil(t, evalExpr(t, "user?.profile?.city", scope))

	scope["user"] = map[string]any{"name": "Ada"}
	require.Equal(t, "Ada", evalExpr(t, "user?.name", scope))
}

type evalPerson struct {
	Name string
	Age  int
}

func (p evalPerson) Greeting() string {
	return "hi " + p.Name
}

func TestGetAttrStructBridging(t *testing.T) {
	scope := testScope{"user": evalPerson{Name: "Ada", Age: 36}}
	require.Equal(t, "Ada", evalExpr(t, "user.name", scope))
	require.Equal(t, "Ada", evalExpr(t, "user.Name", scope))
	require.Equal(t, 36, evalExpr(t, "user.age", scope))
	require.Equal(t, "hi Ada", evalExpr(t, "user.greeting()", scope))
	require.Nil(t, evalExpr(t, "user.missing", scope))
}

func TestSetAttrOnStructPointer(t *testing.T) {
	user := &evalPerson{Name: "Ada"}
	scope := testScope{"user": user}
	evalExpr(t, "user.name = 'Grace'", scope)
	require.Equal(t, "Grace", user.Name)

	evalExpr(t, "user.age = 46", scope)
	require.Equal(t, 46, user.Age)
}

func TestLengthAttribute(t *testing.T) {
	scope := testScope{
		"items": []any{"a", "b", "c"},
		"name":  "héllo",
	}
	require.Equal(t, int64(3), evalExpr(t, "items.length", scope))
	require.Equal(t, int64(5), evalExpr(t, "name.length", scope))
	require.Equal(t, true, evalExpr(t, "items.length > 0", scope))
}

func TestIndexAccess(t *testing.T) {
	scope := testScope{
		"items": []any{"a", "b", "c"},
		"data":  map[string]any{"k": int64(1)},
		"word":  "héllo",
	}
	require.Equal(t, "b", evalExpr(t, "items[1]", scope))
	require.Equal(t, "c", evalExpr(t, "items[items.length - 1]", scope))
	require.Equal(t, int64(1), evalExpr(t, "data['k']", scope))
	require.Equal(t, "é", evalExpr(t, "word[1]", scope))

	// Out of range reads yield null.
	require.Nil(t, evalExpr(t, "items[10]", scope))
	require.Nil(t, evalExpr(t, "items[-1]", scope))
	require.Nil(t, evalExpr(t, "word[99]", scope))
}

func TestIndexAssignment(t *testing.T) {
	items := []any{"a", "b"}
	scope := testScope{"items": items}
	evalExpr(t, "items[0] = 'z'", scope)
	require.Equal(t, "z", items[0])

	node, err := Parse("items[9] = 'x'")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestAssignment(t *testing.T) {
	scope := testScope{"count": int64(1)}
	v := evalExpr(t, "count = count + 1", scope)
	require.Equal(t, int64(2), v)
	require.Equal(t, int64(2), scope["count"])

	evalExpr(t, "fresh = 'new'", scope)
	require.Equal(t, "new", scope["fresh"])
}

func TestAssignmentReadOnlyScope(t *testing.T) {
	scope := ScopeFunc(func(name string) (any, bool) {
		if name == "count" {
			return int64(1), true
		}
		return nil, false
	})
	node, err := Parse("count = 2")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "read-only")
}

func TestPostfixOperators(t *testing.T) {
	scope := testScope{"count": int64(5), "ratio": 1.5}

	// The expression yields the value before the update.
	require.Equal(t, int64(5), evalExpr(t, "count++", scope))
	require.Equal(t, int64(6), scope["count"])

	require.Equal(t, int64(6), evalExpr(t, "count--", scope))
	require.Equal(t, int64(5), scope["count"])

	require.Equal(t, 1.5, evalExpr(t, "ratio++", scope))
	require.Equal(t, 2.5, scope["ratio"])
}

func TestEvalProgram(t *testing.T) {
	scope := testScope{}
	prog, err := ParseProgram("a = 1; b = a + 1; b * 2")
	require.Nil(t, err)
	v, err := Eval(prog, scope)
	require.Nil(t, err)
	require.Equal(t, int64(4), v)
	require.Equal(t, int64(1), scope["a"])
	require.Equal(t, int64(2), scope["b"])
}

func TestCallBuiltin(t *testing.T) {
	scope := testScope{
		"argCount": BuiltinFunc(func(args ...any) (any, error) {
			return int64(len(args)), nil
		}),
	}
	require.Equal(t, int64(3), evalExpr(t, "argCount(1, 2, 3)", scope))
	require.Equal(t, int64(0), evalExpr(t, "argCount()", scope))
}

func TestCallGoFunctions(t *testing.T) {
	scope := testScope{
		"add": func(a, b int) int { return a + b },
		"sum": func(nums ...int) int {
			total := 0
			for _, n := range nums {
				total += n
			}
			return total
		},
		"upper": func(s string) string { return s },
	}
	require.Equal(t, 7, evalExpr(t, "add(3, 4)", scope))
	require.Equal(t, 6, evalExpr(t, "sum(1, 2, 3)", scope))
	require.Equal(t, 0, evalExpr(t, "sum()", scope))
	require.Equal(t, "x", evalExpr(t, "upper('x')", scope))
}

func TestCallErrorReturn(t *testing.T) {
	boom := errors.New("boom")
	scope := testScope{
		"fail": func() (string, error) { return "", boom },
		"ok":   func() (string, error) { return "fine", nil },
	}
	require.Equal(t, "fine", evalExpr(t, "ok()", scope))

	node, err := Parse("fail()")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.True(t, errors.Is(err, boom))
}

func TestCallArgumentErrors(t *testing.T) {
	scope := testScope{
		"add":   func(a, b int) int { return a + b },
		"value": int64(1),
	}

	node, err := Parse("add(1)")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "wrong number of arguments")

	node, err = Parse("value()")
	require.Nil(t, err)
	_, err = Eval(node, scope)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "not a function")
}

func TestTemplateStringEval(t *testing.T) {
	scope := testScope{"name": "Go", "a": int64(2), "b": int64(3)}
	require.Equal(t, "Hello Go!", evalExpr(t, "`Hello ${name}!`", scope))
	require.Equal(t, "5 items", evalExpr(t, "`${a + b} items`", scope))
	require.Equal(t, "plain", evalExpr(t, "`plain`", scope))
}

func TestUndefinedVariable(t *testing.T) {
	node, err := Parse("missing + 1")
	require.Nil(t, err)
	_, err = Eval(node, testScope{})
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "undefined variable: missing")
}

func TestDisplayString(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{3.0, "3"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DisplayString(tt.value))
	}
}

func TestDisplayStringContainers(t *testing.T) {
	got := DisplayString([]any{int64(1), "a"})
	require.Equal(t, "[\n  1,\n  \"a\"\n]", got)

	got = DisplayString(map[string]any{"k": int64(1)})
	require.Equal(t, "{\n  \"k\": 1\n}", got)
}

func TestDictDisplayOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", int64(1))
	d.Set("a", int64(2))
	require.Equal(t, "{\n  \"b\": 1,\n  \"a\": 2\n}", DisplayString(d))
	require.Equal(t, `{"b":1,"a":2}`, d.String())
}

func TestDictAttrAccess(t *testing.T) {
	scope := testScope{}
	require.Equal(t, int64(1), evalExpr(t, "{a: 1}.a", scope))
	require.Equal(t, int64(2), evalExpr(t, "{a: 1, b: 2}['b']", scope))
}
