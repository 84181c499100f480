package expr

import (
	"fmt"
)

// Validate parses the input as a single expression and returns any
// diagnostics, without evaluating it. Used to check expressions extracted
// from templates after parsing.
func Validate(input string, options ...Option) error {
	_, err := Parse(input, options...)
	return err
}

// ValidateProgram parses the input as a semicolon-separated expression
// sequence, the grammar accepted by event handler attributes.
func ValidateProgram(input string, options ...Option) error {
	_, err := ParseProgram(input, options...)
	return err
}

// ValidateIdentifier checks that the input is a single plain identifier,
// as required for iteration aliases.
func ValidateIdentifier(input string, options ...Option) error {
	node, err := Parse(input, options...)
	if err != nil {
		return err
	}
	if _, ok := node.(*Ident); !ok {
		return fmt.Errorf("expected an identifier, got %s", node.String())
	}
	return nil
}

// IsSimplePath reports whether a node is a bare identifier or a chain of
// attribute and constant subscript accesses rooted at one, such as
// user.profile.name or items[0]. Watch expressions of this form can be
// re-read cheaply on each evaluation.
func IsSimplePath(node Node) bool {
	switch node := node.(type) {
	case *Ident:
		return true
	case *GetAttr:
		return IsSimplePath(node.X)
	case *Index:
		switch node.Index.(type) {
		case *Int, *String:
			return IsSimplePath(node.X)
		}
		return false
	default:
		return false
	}
}
