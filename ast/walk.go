package ast

import (
	"iter"
	"sort"
)

// Visitor defines the interface for AST traversal. If Visit returns nil,
// children of the node are not visited. Otherwise, the returned Visitor
// is used to visit children.
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order. It starts by calling
// v.Visit(node); if the returned visitor w is not nil, Walk is invoked
// recursively with visitor w for each of the non-nil children of node.
// Conditional alternates and scoped slot content are visited along with
// regular children; scoped slots in sorted target order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	switch n := node.(type) {
	case *Element:
		for _, cond := range n.IfConditions {
			// The primary branch block is the element itself.
			if cond.Block != nil && cond.Block != n {
				Walk(v, cond.Block)
			}
		}
		for _, child := range n.Children {
			Walk(v, child)
		}
		for _, target := range sortedSlotTargets(n.ScopedSlots) {
			Walk(v, n.ScopedSlots[target])
		}
	case *Expression:
		// No children
	case *Text:
		// No children
	}
}

func sortedSlotTargets(slots map[string]*Element) []string {
	if len(slots) == 0 {
		return nil
	}
	targets := make([]string, 0, len(slots))
	for target := range slots {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}

// Inspect traverses an AST in depth-first order. It calls f(node) for each
// node; if f returns true, Inspect invokes f recursively for each of the
// non-nil children of node.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Preorder returns an iterator over all the nodes of the AST rooted at node
// in depth-first preorder.
func Preorder(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		var visit func(Node) bool
		visit = func(n Node) bool {
			if !yield(n) {
				return false
			}
			switch node := n.(type) {
			case *Element:
				for _, cond := range node.IfConditions {
					if cond.Block != nil && cond.Block != node {
						if !visit(cond.Block) {
							return false
						}
					}
				}
				for _, child := range node.Children {
					if !visit(child) {
						return false
					}
				}
				for _, target := range sortedSlotTargets(node.ScopedSlots) {
					if !visit(node.ScopedSlots[target]) {
						return false
					}
				}
			}
			return true
		}
		visit(root)
	}
}
