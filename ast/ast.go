// Package ast defines the tree representation of parsed templates.
//
// The parser builds one Element tree per template. Transform passes
// (directive extraction, the static analyzer) annotate the tree in place;
// the code generator then reads it without further mutation.
package ast

import (
	"github.com/deepnoodle-ai/loom/internal/token"
)

// Node represents a portion of a parsed template. All nodes have position
// information indicating where they appear in the source.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() token.Position

	// End returns the position of the first character immediately after the node.
	End() token.Position

	templateNode()
}

// Attr is a single attribute with its source text and position. The parser
// also reuses this shape for processed bindings, where Value holds a
// generated expression rather than raw attribute text.
type Attr struct {
	Name     string         `json:"name"`
	Value    string         `json:"value"`
	Dynamic  bool           `json:"dynamic,omitempty"` // name is a [bracketed] runtime expression
	StartPos token.Position `json:"start"`
	EndPos   token.Position `json:"end"`
}

// Handler describes one listener bound to an event name. A single event
// name accumulates multiple handlers in registration order.
type Handler struct {
	Value     string          `json:"value"`
	Dynamic   bool            `json:"dynamic,omitempty"`
	Modifiers map[string]bool `json:"modifiers,omitempty"`
	StartPos  token.Position  `json:"start"`
	EndPos    token.Position  `json:"end"`
}

// Directive is a custom directive binding (v-name:arg.modifier="value").
type Directive struct {
	Name       string          `json:"name"`    // canonical name, without the v- prefix
	RawName    string          `json:"rawName"` // attribute name as written
	Value      string          `json:"value,omitempty"`
	Arg        string          `json:"arg,omitempty"`
	DynamicArg bool            `json:"dynamicArg,omitempty"`
	Modifiers  map[string]bool `json:"modifiers,omitempty"`
	StartPos   token.Position  `json:"start"`
	EndPos     token.Position  `json:"end"`

	// Codegen bookkeeping: set once the directive's compile-time generator
	// has run, recording whether a runtime descriptor is still needed.
	// Generators mutate the element, so later passes reuse the recorded
	// decision instead of running them again.
	Processed    bool `json:"-"`
	NeedsRuntime bool `json:"-"`
}

// IfCondition is one branch of a conditional chain. The primary branch
// holds the annotated element itself; else-if and else branches hold their
// own elements, which are attached here instead of to the parent's child
// list. Exp is empty for a final else branch.
type IfCondition struct {
	Exp   string   `json:"exp"`
	Block *Element `json:"block"`
}

// Element is a tag node in the template tree.
type Element struct {
	Tag       string   `json:"tag"`
	Namespace string   `json:"ns,omitempty"`
	Parent    *Element `json:"-"`
	Children  []Node   `json:"children,omitempty"`

	// Attributes as scanned, before directive processing. AttrsList shrinks
	// as structural and directive attributes are consumed; RawAttrsMap keeps
	// every attribute as written for position lookups.
	AttrsList   []Attr            `json:"attrsList,omitempty"`
	AttrsMap    map[string]string `json:"attrsMap,omitempty"`
	RawAttrsMap map[string]Attr   `json:"-"`

	// Structural directives.
	If           string        `json:"if,omitempty"`
	ElseIf       string        `json:"elseif,omitempty"`
	Else         bool          `json:"else,omitempty"`
	IfConditions []IfCondition `json:"ifConditions,omitempty"`
	For          string        `json:"for,omitempty"`
	Alias        string        `json:"alias,omitempty"`
	Iterator1    string        `json:"iterator1,omitempty"`
	Iterator2    string        `json:"iterator2,omitempty"`
	Once         bool          `json:"once,omitempty"`
	Pre          bool          `json:"pre,omitempty"`

	Key      string `json:"key,omitempty"`
	Ref      string `json:"ref,omitempty"`
	RefInFor bool   `json:"refInFor,omitempty"`

	// Slot metadata. SlotName is set on <slot> outlets; SlotTarget and
	// SlotScope describe slot content; scoped slot content hangs off the
	// component element rather than its child list.
	SlotName          string              `json:"slotName,omitempty"`
	SlotTarget        string              `json:"slotTarget,omitempty"`
	SlotTargetDynamic bool                `json:"slotTargetDynamic,omitempty"`
	SlotScope         string              `json:"slotScope,omitempty"`
	ScopedSlots       map[string]*Element `json:"scopedSlots,omitempty"`

	// Component holds the "is" binding for dynamic components.
	Component      string `json:"component,omitempty"`
	InlineTemplate bool   `json:"inlineTemplate,omitempty"`

	// HasBindings is set when any directive-syntax attribute was present,
	// regardless of whether processing consumed it.
	HasBindings bool `json:"hasBindings,omitempty"`

	// Model carries a component v-model binding, split into the bound value
	// expression and the assignment callback body.
	Model *ModelBinding `json:"model,omitempty"`

	// Processed bindings.
	Plain        bool                 `json:"plain,omitempty"`
	Attrs        []Attr               `json:"attrs,omitempty"`
	DynamicAttrs []Attr               `json:"dynamicAttrs,omitempty"`
	Props        []Attr               `json:"props,omitempty"`
	Events       map[string][]Handler `json:"events,omitempty"`
	NativeEvents map[string][]Handler `json:"nativeEvents,omitempty"`
	Directives   []Directive          `json:"directives,omitempty"`

	// Class and style module output. Static values are pre-serialized to
	// JSON; bindings hold raw expression text.
	StaticClass  string `json:"staticClass,omitempty"`
	ClassBinding string `json:"classBinding,omitempty"`
	StaticStyle  string `json:"staticStyle,omitempty"`
	StyleBinding string `json:"styleBinding,omitempty"`

	// Forbidden marks tags that are never rendered (script, style).
	Forbidden bool `json:"forbidden,omitempty"`

	// Static analyzer output.
	Static      bool `json:"static,omitempty"`
	StaticRoot  bool `json:"staticRoot,omitempty"`
	StaticInFor bool `json:"staticInFor,omitempty"`

	// Codegen bookkeeping, so an element entered through one structural
	// concern is not re-entered through it when generation recurses.
	StaticProcessed bool `json:"-"`
	OnceProcessed   bool `json:"-"`
	ForProcessed    bool `json:"-"`
	IfProcessed     bool `json:"-"`

	StartPos token.Position `json:"start"`
	EndPos   token.Position `json:"end"`
}

func (e *Element) templateNode() {}

func (e *Element) Pos() token.Position { return e.StartPos }
func (e *Element) End() token.Position { return e.EndPos }

// NewElement creates an element for a scanned start tag, recording the
// attribute list in source order alongside name-keyed lookup maps. When two
// attributes share a name the first value wins the map entry; the caller is
// expected to diagnose the duplicate.
func NewElement(tag string, attrs []Attr, parent *Element) *Element {
	el := &Element{
		Tag:         tag,
		AttrsList:   attrs,
		AttrsMap:    make(map[string]string, len(attrs)),
		RawAttrsMap: make(map[string]Attr, len(attrs)),
		Parent:      parent,
	}
	for _, attr := range attrs {
		if _, ok := el.AttrsMap[attr.Name]; !ok {
			el.AttrsMap[attr.Name] = attr.Value
			el.RawAttrsMap[attr.Name] = attr
		}
	}
	return el
}

// InFor reports whether the element or any ancestor carries a loop binding.
func (e *Element) InFor() bool {
	for el := e; el != nil; el = el.Parent {
		if el.For != "" {
			return true
		}
	}
	return false
}

// PrevElement returns the nearest preceding element sibling among the
// given children, dropping any trailing text nodes. Used to attach else
// branches to their conditional.
func PrevElement(children []Node) (*Element, []Node) {
	for len(children) > 0 {
		last := children[len(children)-1]
		if el, ok := last.(*Element); ok {
			return el, children
		}
		children = children[:len(children)-1]
	}
	return nil, children
}

// ModelBinding is the compiled form of v-model on a component: the bound
// value expression, its quoted source text, and the assignment to run when
// the component emits an update.
type ModelBinding struct {
	Value      string `json:"value"`
	Expression string `json:"expression"`
	Callback   string `json:"callback"`
}

// Expression is a text node containing one or more interpolations. Expr
// holds the generated expression text and Tokens the alternating literal
// and binding segments.
type Expression struct {
	Text     string         `json:"text"`
	Expr     string         `json:"expression"`
	Tokens   []TextToken    `json:"tokens"`
	StartPos token.Position `json:"start"`
	EndPos   token.Position `json:"end"`
}

func (e *Expression) templateNode() {}

func (e *Expression) Pos() token.Position { return e.StartPos }
func (e *Expression) End() token.Position { return e.EndPos }

// TextToken is one segment of an interpolated text node: either a literal
// run or a binding expression.
type TextToken struct {
	Text    string `json:"text,omitempty"`
	Binding string `json:"binding,omitempty"`
}

// IsBinding reports whether the token is an expression segment.
func (t TextToken) IsBinding() bool { return t.Binding != "" }

// Text is a literal text or comment node.
type Text struct {
	Text      string         `json:"text"`
	IsComment bool           `json:"isComment,omitempty"`
	StartPos  token.Position `json:"start"`
	EndPos    token.Position `json:"end"`
}

func (t *Text) templateNode() {}

func (t *Text) Pos() token.Position { return t.StartPos }
func (t *Text) End() token.Position { return t.EndPos }
