package compiler

import (
	"sort"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/expr"
	"github.com/deepnoodle-ai/loom/internal/token"
)

// DetectErrors validates every expression embedded in the tree against the
// template expression grammar, reporting problems through warn with the
// position of the attribute or text that contains them.
func DetectErrors(root *ast.Element, warn WarnFn) {
	if root == nil || warn == nil {
		return
	}
	checkNode(root, warn)
}

func checkNode(node ast.Node, warn WarnFn) {
	switch n := node.(type) {
	case *ast.Element:
		names := make([]string, 0, len(n.RawAttrsMap))
		for name := range n.RawAttrsMap {
			if dirRE.MatchString(name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			attr := n.RawAttrsMap[name]
			switch {
			case name == "v-for":
				checkFor(n, attr, warn)
			case onRE.MatchString(name):
				checkEvent(attr.Value, attr, warn)
			default:
				// Bindings may carry filter chains, which are template
				// grammar rather than expression grammar.
				checkExpression(ParseFilters(attr.Value), attr.Value,
					attr.StartPos, attr.EndPos, warn)
			}
		}
		for _, child := range n.Children {
			checkNode(child, warn)
		}
		for i, cond := range n.IfConditions {
			if i == 0 {
				continue
			}
			checkNode(cond.Block, warn)
		}
		for _, slot := range n.ScopedSlots {
			checkNode(slot, warn)
		}
	case *ast.Expression:
		checkExpression(n.Expr, n.Text, n.StartPos, n.EndPos, warn)
	}
}

// checkEvent validates a handler, which may be a semicolon-separated
// statement sequence rather than a single expression.
func checkEvent(exp string, attr ast.Attr, warn WarnFn) {
	if strings.TrimSpace(exp) == "" {
		return
	}
	if err := expr.ValidateProgram(exp); err != nil {
		warn("invalid handler expression: "+err.Error()+" in\n\n    "+exp+"\n",
			attr.StartPos, attr.EndPos, false)
	}
}

func checkFor(el *ast.Element, attr ast.Attr, warn WarnFn) {
	checkExpression(el.For, attr.Value, attr.StartPos, attr.EndPos, warn)
	checkIdentifier(el.Alias, "v-for alias", attr, warn)
	checkIdentifier(el.Iterator1, "v-for iterator", attr, warn)
	checkIdentifier(el.Iterator2, "v-for iterator", attr, warn)
}

func checkIdentifier(ident, kind string, attr ast.Attr, warn WarnFn) {
	if ident == "" {
		return
	}
	if err := expr.ValidateIdentifier(ident); err != nil {
		warn("invalid "+kind+` "`+ident+`" in expression: `+attr.Value,
			attr.StartPos, attr.EndPos, false)
	}
}

func checkExpression(exp, raw string, start, end token.Position, warn WarnFn) {
	if strings.TrimSpace(exp) == "" {
		return
	}
	if err := expr.Validate(exp); err != nil {
		warn("invalid expression: "+err.Error()+" in\n\n    "+exp+
			"\n\n  Raw expression: "+strings.TrimSpace(raw)+"\n",
			start, end, false)
	}
}
