package expr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/loom/internal/tmpl"
	"github.com/deepnoodle-ai/loom/internal/token"
)

// Node represents a portion of an expression syntax tree. All nodes have
// position information indicating where they appear in the source.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() token.Position

	// End returns the position of the first character immediately after the node.
	End() token.Position

	// String returns a human friendly representation of the Node. This should
	// be similar to the original source code, but not necessarily identical.
	String() string

	exprNode()
}

// Ident is an expression node that refers to a variable by name.
type Ident struct {
	NamePos token.Position // position of identifier
	Name    string         // identifier name
}

func (x *Ident) exprNode() {}

func (x *Ident) Pos() token.Position { return x.NamePos }
func (x *Ident) End() token.Position { return x.NamePos.Advance(len(x.Name)) }

func (x *Ident) String() string { return x.Name }

// Int is an expression node that holds an integer literal.
type Int struct {
	ValuePos token.Position // position of the literal
	Literal  string         // the literal text
	Value    int64          // the parsed value
}

func (x *Int) exprNode() {}

func (x *Int) Pos() token.Position { return x.ValuePos }
func (x *Int) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Int) String() string { return x.Literal }

// Float is an expression node that holds a floating point literal.
type Float struct {
	ValuePos token.Position // position of the literal
	Literal  string         // the literal text
	Value    float64        // the parsed value
}

func (x *Float) exprNode() {}

func (x *Float) Pos() token.Position { return x.ValuePos }
func (x *Float) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Float) String() string { return x.Literal }

// Bool is an expression node that holds a boolean literal.
type Bool struct {
	ValuePos token.Position // position of "true" or "false"
	Literal  string         // "true" or "false"
	Value    bool           // the boolean value
}

func (x *Bool) exprNode() {}

func (x *Bool) Pos() token.Position { return x.ValuePos }
func (x *Bool) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Bool) String() string { return x.Literal }

// Nil is an expression node that holds a null or undefined literal.
type Nil struct {
	NilPos  token.Position // position of the keyword
	Literal string         // "null" or "undefined"
}

func (x *Nil) exprNode() {}

func (x *Nil) Pos() token.Position { return x.NilPos }
func (x *Nil) End() token.Position { return x.NilPos.Advance(len(x.Literal)) }

func (x *Nil) String() string { return x.Literal }

// String is an expression node that holds a string literal. Backtick-quoted
// strings may embed ${...} expressions, in which case Template holds the
// parsed fragments and Exprs the sub-expressions in fragment order.
type String struct {
	ValuePos token.Position // position of opening quote
	Value    string         // the unquoted string value
	Template *tmpl.Template // template if this is a template string
	Exprs    []Node         // embedded expressions for templates
}

func (x *String) exprNode() {}

func (x *String) Pos() token.Position { return x.ValuePos }

// End assumes the literal contains no escape sequences; escaped characters
// shift the true end position right by the width of each escape.
func (x *String) End() token.Position { return x.ValuePos.Advance(len(x.Value) + 2) }

func (x *String) String() string { return fmt.Sprintf("%q", x.Value) }

// Prefix is an operator expression where the operator precedes the operand.
// Examples include "!visible" and "-x".
type Prefix struct {
	OpPos token.Position // position of operator
	Op    string         // operator: "!" or "-"
	X     Node           // operand
}

func (x *Prefix) exprNode() {}

func (x *Prefix) Pos() token.Position { return x.OpPos }
func (x *Prefix) End() token.Position { return x.X.End() }

func (x *Prefix) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(x.Op)
	out.WriteString(x.X.String())
	out.WriteString(")")
	return out.String()
}

// Infix is an operator expression where the operator is between the operands.
// Examples include "x + y" and "count > 0".
type Infix struct {
	X     Node           // left operand
	OpPos token.Position // position of operator
	Op    string         // operator: "+", "-", "==", "&&", etc.
	Y     Node           // right operand
}

func (x *Infix) exprNode() {}

func (x *Infix) Pos() token.Position { return x.X.Pos() }
func (x *Infix) End() token.Position { return x.Y.End() }

func (x *Infix) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(x.X.String())
	out.WriteString(" " + x.Op + " ")
	out.WriteString(x.Y.String())
	out.WriteString(")")
	return out.String()
}

// Postfix is an operator expression where the operator follows the operand.
// Examples include "count++" and "count--".
type Postfix struct {
	X     Node           // operand
	OpPos token.Position // position of operator
	Op    string         // operator: "++" or "--"
}

func (x *Postfix) exprNode() {}

func (x *Postfix) Pos() token.Position { return x.X.Pos() }
func (x *Postfix) End() token.Position { return x.OpPos.Advance(len(x.Op)) }

func (x *Postfix) String() string { return x.X.String() + x.Op }

// Ternary is an expression node that evaluates to one of two values based on
// a condition.
type Ternary struct {
	Cond     Node           // condition
	Question token.Position // position of "?"
	IfTrue   Node           // value if condition is true
	Colon    token.Position // position of ":"
	IfFalse  Node           // value if condition is false
}

func (x *Ternary) exprNode() {}

func (x *Ternary) Pos() token.Position { return x.Cond.Pos() }
func (x *Ternary) End() token.Position { return x.IfFalse.End() }

func (x *Ternary) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(x.Cond.String())
	out.WriteString(" ? ")
	out.WriteString(x.IfTrue.String())
	out.WriteString(" : ")
	out.WriteString(x.IfFalse.String())
	out.WriteString(")")
	return out.String()
}

// Call is an expression node that describes the invocation of a function.
type Call struct {
	Fun    Node           // function expression
	Lparen token.Position // position of "("
	Args   []Node         // function arguments
	Rparen token.Position // position of ")"
}

func (x *Call) exprNode() {}

func (x *Call) Pos() token.Position { return x.Fun.Pos() }
func (x *Call) End() token.Position { return x.Rparen.Advance(1) }

func (x *Call) String() string {
	var out bytes.Buffer
	args := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		args = append(args, a.String())
	}
	out.WriteString(x.Fun.String())
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")
	return out.String()
}

// GetAttr is an expression node that describes the access of an attribute
// on an object.
type GetAttr struct {
	X        Node           // object expression
	Period   token.Position // position of "." or "?."
	Attr     *Ident         // attribute name
	Optional bool           // true if optional chaining (?.)
}

func (x *GetAttr) exprNode() {}

func (x *GetAttr) Pos() token.Position { return x.X.Pos() }
func (x *GetAttr) End() token.Position { return x.Attr.End() }

func (x *GetAttr) String() string {
	var out bytes.Buffer
	out.WriteString(x.X.String())
	if x.Optional {
		out.WriteString("?.")
	} else {
		out.WriteString(".")
	}
	out.WriteString(x.Attr.Name)
	return out.String()
}

// Index is an expression node that describes subscript access on an object.
type Index struct {
	X      Node           // object expression
	Lbrack token.Position // position of "["
	Index  Node           // index expression
	Rbrack token.Position // position of "]"
}

func (x *Index) exprNode() {}

func (x *Index) Pos() token.Position { return x.X.Pos() }
func (x *Index) End() token.Position { return x.Rbrack.Advance(1) }

func (x *Index) String() string {
	var out bytes.Buffer
	out.WriteString(x.X.String())
	out.WriteString("[")
	out.WriteString(x.Index.String())
	out.WriteString("]")
	return out.String()
}

// List is an expression node that builds a list value.
type List struct {
	Lbrack token.Position // position of "["
	Items  []Node         // list elements
	Rbrack token.Position // position of "]"
}

func (x *List) exprNode() {}

func (x *List) Pos() token.Position { return x.Lbrack }
func (x *List) End() token.Position { return x.Rbrack.Advance(1) }

func (x *List) String() string {
	var out bytes.Buffer
	items := make([]string, 0, len(x.Items))
	for _, item := range x.Items {
		items = append(items, item.String())
	}
	out.WriteString("[")
	out.WriteString(strings.Join(items, ", "))
	out.WriteString("]")
	return out.String()
}

// MapItem represents a single key-value pair in a map literal.
type MapItem struct {
	Key   Node // Ident, String, or Int
	Value Node
}

func (x *MapItem) String() string {
	return x.Key.String() + ": " + x.Value.String()
}

// Map is an expression node that builds a map value. Item order is preserved.
type Map struct {
	Lbrace token.Position // position of "{"
	Items  []*MapItem     // key-value pairs
	Rbrace token.Position // position of "}"
}

func (x *Map) exprNode() {}

func (x *Map) Pos() token.Position { return x.Lbrace }
func (x *Map) End() token.Position { return x.Rbrace.Advance(1) }

func (x *Map) String() string {
	var out bytes.Buffer
	items := make([]string, 0, len(x.Items))
	for _, item := range x.Items {
		items = append(items, item.String())
	}
	out.WriteString("{")
	out.WriteString(strings.Join(items, ", "))
	out.WriteString("}")
	return out.String()
}

// Assign is an expression node that assigns a value to an identifier,
// attribute, or subscript.
type Assign struct {
	X     Node           // assignment target
	OpPos token.Position // position of "="
	Y     Node           // value expression
}

func (x *Assign) exprNode() {}

func (x *Assign) Pos() token.Position { return x.X.Pos() }
func (x *Assign) End() token.Position { return x.Y.End() }

func (x *Assign) String() string {
	return x.X.String() + " = " + x.Y.String()
}

// Program is a sequence of expressions separated by semicolons, as allowed
// in event handler attributes. Evaluating a program evaluates each
// expression in order and yields the value of the last one.
type Program struct {
	Exprs []Node
}

func (x *Program) exprNode() {}

func (x *Program) Pos() token.Position {
	if len(x.Exprs) == 0 {
		return token.NoPos
	}
	return x.Exprs[0].Pos()
}

func (x *Program) End() token.Position {
	if len(x.Exprs) == 0 {
		return token.NoPos
	}
	return x.Exprs[len(x.Exprs)-1].End()
}

func (x *Program) String() string {
	parts := make([]string, 0, len(x.Exprs))
	for _, e := range x.Exprs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
