package expr

import (
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"
)

// Scope resolves names for expression evaluation.
type Scope interface {
	Resolve(name string) (any, bool)
}

// MutableScope is a scope that additionally supports assignment to names,
// as required by event handler expressions.
type MutableScope interface {
	Scope
	Assign(name string, value any) error
}

// ScopeFunc adapts a function to the Scope interface.
type ScopeFunc func(name string) (any, bool)

// Resolve implements Scope.
func (f ScopeFunc) Resolve(name string) (any, bool) {
	return f(name)
}

// Eval evaluates an expression AST against a scope and returns its value.
func Eval(node Node, scope Scope) (any, error) {
	switch node := node.(type) {
	case *Program:
		var result any
		var err error
		for _, e := range node.Exprs {
			result, err = Eval(e, scope)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	case *Ident:
		v, ok := scope.Resolve(node.Name)
		if !ok {
			return nil, fmt.Errorf("undefined variable: %s", node.Name)
		}
		return v, nil
	case *Int:
		return node.Value, nil
	case *Float:
		return node.Value, nil
	case *Bool:
		return node.Value, nil
	case *Nil:
		return nil, nil
	case *String:
		return evalString(node, scope)
	case *List:
		items := make([]any, 0, len(node.Items))
		for _, item := range node.Items {
			v, err := Eval(item, scope)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case *Map:
		return evalMap(node, scope)
	case *Prefix:
		return evalPrefix(node, scope)
	case *Infix:
		return evalInfix(node, scope)
	case *Postfix:
		return evalPostfix(node, scope)
	case *Ternary:
		cond, err := Eval(node.Cond, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return Eval(node.IfTrue, scope)
		}
		return Eval(node.IfFalse, scope)
	case *GetAttr:
		return evalGetAttr(node, scope)
	case *Index:
		return evalIndex(node, scope)
	case *Call:
		return evalCall(node, scope)
	case *Assign:
		value, err := Eval(node.Y, scope)
		if err != nil {
			return nil, err
		}
		if err := assign(node.X, value, scope); err != nil {
			return nil, err
		}
		return value, nil
	case nil:
		return nil, fmt.Errorf("cannot evaluate nil expression")
	default:
		return nil, fmt.Errorf("unsupported expression node: %T", node)
	}
}

func evalString(node *String, scope Scope) (any, error) {
	if node.Template == nil {
		return node.Value, nil
	}
	var out []byte
	exprIdx := 0
	for _, frag := range node.Template.Fragments() {
		if !frag.IsVariable() {
			out = append(out, frag.Value()...)
			continue
		}
		if exprIdx >= len(node.Exprs) {
			return nil, fmt.Errorf("template string fragment mismatch")
		}
		v, err := Eval(node.Exprs[exprIdx], scope)
		if err != nil {
			return nil, err
		}
		out = append(out, DisplayString(v)...)
		exprIdx++
	}
	return string(out), nil
}

func evalMap(node *Map, scope Scope) (any, error) {
	dict := NewDict()
	for _, item := range node.Items {
		var key string
		switch k := item.Key.(type) {
		case *Ident:
			key = k.Name
		case *String:
			key = k.Value
		case *Int:
			key = k.Literal
		default:
			return nil, fmt.Errorf("invalid map key: %s", item.Key.String())
		}
		value, err := Eval(item.Value, scope)
		if err != nil {
			return nil, err
		}
		dict.Set(key, value)
	}
	return dict, nil
}

func evalPrefix(node *Prefix, scope Scope) (any, error) {
	x, err := Eval(node.X, scope)
	if err != nil {
		return nil, err
	}
	switch node.Op {
	case "!":
		return !Truthy(x), nil
	case "-":
		if i, ok := asInt(x); ok {
			return -i, nil
		}
		if f, ok := asNumber(x); ok {
			return -f, nil
		}
		return nil, fmt.Errorf("unsupported operand type for -: %s", typeName(x))
	default:
		return nil, fmt.Errorf("unknown prefix operator: %s", node.Op)
	}
}

func evalInfix(node *Infix, scope Scope) (any, error) {
	// Short-circuit operators evaluate the right side conditionally and
	// yield operand values rather than booleans.
	switch node.Op {
	case "&&":
		left, err := Eval(node.X, scope)
		if err != nil {
			return nil, err
		}
		if !Truthy(left) {
			return left, nil
		}
		return Eval(node.Y, scope)
	case "||":
		left, err := Eval(node.X, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(left) {
			return left, nil
		}
		return Eval(node.Y, scope)
	case "??":
		left, err := Eval(node.X, scope)
		if err != nil {
			return nil, err
		}
		if left != nil {
			return left, nil
		}
		return Eval(node.Y, scope)
	}

	left, err := Eval(node.X, scope)
	if err != nil {
		return nil, err
	}
	right, err := Eval(node.Y, scope)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case "+":
		return evalPlus(left, right)
	case "-", "*", "/", "%", "**":
		return evalArithmetic(node.Op, left, right)
	case "==":
		return looseEquals(left, right), nil
	case "!=":
		return !looseEquals(left, right), nil
	case "===":
		return strictEquals(left, right), nil
	case "!==":
		return !strictEquals(left, right), nil
	case "<", "<=", ">", ">=":
		return compareValues(node.Op, left, right)
	default:
		return nil, fmt.Errorf("unknown operator: %s", node.Op)
	}
}

func evalPlus(left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		return ls + DisplayString(right), nil
	}
	if rs, ok := right.(string); ok {
		return DisplayString(left) + rs, nil
	}
	if li, ok := asInt(left); ok {
		if ri, ok := asInt(right); ok {
			return li + ri, nil
		}
	}
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if lok && rok {
		return lf + rf, nil
	}
	return nil, fmt.Errorf("unsupported operand types for +: %s and %s", typeName(left), typeName(right))
}

func evalArithmetic(op string, left, right any) (any, error) {
	li, lIsInt := asInt(left)
	ri, rIsInt := asInt(right)
	if lIsInt && rIsInt {
		switch op {
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return math.NaN(), nil
			}
			return li % ri, nil
		}
	}
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(left), typeName(right))
	}
	switch op {
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		return lf / rf, nil
	case "%":
		return math.Mod(lf, rf), nil
	case "**":
		return math.Pow(lf, rf), nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", op)
	}
}

func evalPostfix(node *Postfix, scope Scope) (any, error) {
	old, err := Eval(node.X, scope)
	if err != nil {
		return nil, err
	}
	var next any
	if i, ok := asInt(old); ok {
		if node.Op == "++" {
			next = i + 1
		} else {
			next = i - 1
		}
	} else if f, ok := asNumber(old); ok {
		if node.Op == "++" {
			next = f + 1
		} else {
			next = f - 1
		}
	} else {
		return nil, fmt.Errorf("unsupported operand type for %s: %s", node.Op, typeName(old))
	}
	if err := assign(node.X, next, scope); err != nil {
		return nil, err
	}
	return old, nil
}

func evalGetAttr(node *GetAttr, scope Scope) (any, error) {
	x, err := Eval(node.X, scope)
	if err != nil {
		return nil, err
	}
	if x == nil {
		if node.Optional {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read attribute %q of null", node.Attr.Name)
	}
	return getAttr(x, node.Attr.Name)
}

// GetAttribute resolves attribute access on a value using the same rules
// as a.b expressions, so runtime helpers can read event payloads and
// loop items uniformly.
func GetAttribute(v any, name string) (any, error) {
	if v == nil {
		return nil, nil
	}
	return getAttr(v, name)
}

// getAttr resolves attribute access on a value. Missing attributes yield
// nil rather than an error, so optional data reads stay quiet; only
// attribute access on null is an error (handled by the caller).
func getAttr(v any, name string) (any, error) {
	if obj, ok := v.(Object); ok {
		attr, _ := obj.GetAttr(name)
		return attr, nil
	}
	switch v := v.(type) {
	case map[string]any:
		return v[name], nil
	case []any:
		if name == "length" {
			return int64(len(v)), nil
		}
		return nil, nil
	case string:
		if name == "length" {
			return int64(utf8.RuneCountInString(v)), nil
		}
		return nil, nil
	}
	return reflectAttr(v, name)
}

// reflectAttr reads a struct field or method by name, trying the exact name
// first and then the exported form, so templates can write user.name against
// a Name field.
func reflectAttr(v any, name string) (any, error) {
	rv := reflect.ValueOf(v)
	for _, candidate := range []string{name, exportedName(name)} {
		if m := rv.MethodByName(candidate); m.IsValid() {
			return m.Interface(), nil
		}
		sv := rv
		for sv.Kind() == reflect.Pointer {
			if sv.IsNil() {
				return nil, nil
			}
			sv = sv.Elem()
		}
		if sv.Kind() == reflect.Struct {
			if f := sv.FieldByName(candidate); f.IsValid() && f.CanInterface() {
				return f.Interface(), nil
			}
		}
	}
	return nil, nil
}

func exportedName(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	if r >= 'a' && r <= 'z' {
		return string(r-'a'+'A') + name[size:]
	}
	return name
}

func evalIndex(node *Index, scope Scope) (any, error) {
	x, err := Eval(node.X, scope)
	if err != nil {
		return nil, err
	}
	key, err := Eval(node.Index, scope)
	if err != nil {
		return nil, err
	}
	return getIndex(x, key)
}

// getIndex resolves subscript access. Out-of-range list and string indexes
// yield nil.
func getIndex(v, key any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot index null")
	}
	if ix, ok := v.(Indexable); ok {
		return ix.GetIndex(key)
	}
	switch v := v.(type) {
	case []any:
		i, ok := asInt(key)
		if !ok {
			return nil, fmt.Errorf("list index must be a number, got %s", typeName(key))
		}
		if i < 0 || i >= int64(len(v)) {
			return nil, nil
		}
		return v[i], nil
	case map[string]any:
		return v[DisplayString(key)], nil
	case string:
		i, ok := asInt(key)
		if !ok {
			return nil, fmt.Errorf("string index must be a number, got %s", typeName(key))
		}
		runes := []rune(v)
		if i < 0 || i >= int64(len(runes)) {
			return nil, nil
		}
		return string(runes[i]), nil
	}
	// Fall back to attribute access for obj["key"] on attribute carriers.
	if s, ok := key.(string); ok {
		return getAttr(v, s)
	}
	return nil, fmt.Errorf("type %s does not support indexing", typeName(v))
}

func evalCall(node *Call, scope Scope) (any, error) {
	fn, err := Eval(node.Fun, scope)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(node.Args))
	for _, argNode := range node.Args {
		arg, err := Eval(argNode, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	result, err := CallFunction(fn, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Fun.String(), err)
	}
	return result, nil
}

// CallFunction invokes a function value with the given arguments. Builtin
// functions are called directly; other Go functions are called through
// reflection with numeric argument bridging.
func CallFunction(fn any, args []any) (any, error) {
	if fn == nil {
		return nil, fmt.Errorf("not a function (null)")
	}
	if builtin, ok := fn.(BuiltinFunc); ok {
		return builtin(args...)
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function (%s)", typeName(fn))
	}
	rt := rv.Type()

	expected := rt.NumIn()
	if rt.IsVariadic() {
		if len(args) < expected-1 {
			return nil, fmt.Errorf("wrong number of arguments: want at least %d, got %d", expected-1, len(args))
		}
	} else if len(args) != expected {
		return nil, fmt.Errorf("wrong number of arguments: want %d, got %d", expected, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if rt.IsVariadic() && i >= expected-1 {
			paramType = rt.In(expected - 1).Elem()
		} else {
			paramType = rt.In(i)
		}
		converted, err := convertArg(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in[i] = converted
	}

	out := rv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return resultValue(out[0])
	case 2:
		if errVal, ok := out[1].Interface().(error); ok && errVal != nil {
			return nil, errVal
		}
		v, _ := resultValue(out[0])
		return v, nil
	default:
		return nil, fmt.Errorf("function returns too many values")
	}
}

func resultValue(v reflect.Value) (any, error) {
	if errVal, ok := v.Interface().(error); ok {
		return nil, errVal
	}
	return v.Interface(), nil
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot pass null as %s", t)
	}
	rv := reflect.ValueOf(arg)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t == anyType {
		return rv, nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", typeName(arg), t)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// assign stores a value into the location named by an assignable node.
func assign(target Node, value any, scope Scope) error {
	switch target := target.(type) {
	case *Ident:
		ms, ok := scope.(MutableScope)
		if !ok {
			return fmt.Errorf("cannot assign to %s: scope is read-only", target.Name)
		}
		return ms.Assign(target.Name, value)
	case *GetAttr:
		x, err := Eval(target.X, scope)
		if err != nil {
			return err
		}
		return setAttr(x, target.Attr.Name, value)
	case *Index:
		x, err := Eval(target.X, scope)
		if err != nil {
			return err
		}
		key, err := Eval(target.Index, scope)
		if err != nil {
			return err
		}
		return setIndex(x, key, value)
	default:
		return fmt.Errorf("invalid assignment target")
	}
}

func setAttr(v any, name string, value any) error {
	if v == nil {
		return fmt.Errorf("cannot set attribute %q of null", name)
	}
	if obj, ok := v.(MutableObject); ok {
		return obj.SetAttr(name, value)
	}
	if m, ok := v.(map[string]any); ok {
		m[name] = value
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		for _, candidate := range []string{name, exportedName(name)} {
			f := rv.Elem().FieldByName(candidate)
			if f.IsValid() && f.CanSet() {
				converted, err := convertArg(value, f.Type())
				if err != nil {
					return err
				}
				f.Set(converted)
				return nil
			}
		}
	}
	return fmt.Errorf("cannot set attribute %q on %s", name, typeName(v))
}

func setIndex(v, key, value any) error {
	if v == nil {
		return fmt.Errorf("cannot index null")
	}
	if ix, ok := v.(MutableIndexable); ok {
		return ix.SetIndex(key, value)
	}
	switch v := v.(type) {
	case []any:
		i, ok := asInt(key)
		if !ok {
			return fmt.Errorf("list index must be a number, got %s", typeName(key))
		}
		if i < 0 || i >= int64(len(v)) {
			return fmt.Errorf("list index out of range: %d", i)
		}
		v[i] = value
		return nil
	case map[string]any:
		v[DisplayString(key)] = value
		return nil
	}
	return fmt.Errorf("type %s does not support index assignment", typeName(v))
}
