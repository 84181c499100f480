// Package vdom defines the virtual node trees produced by rendering a
// compiled template. The engine only builds trees; applying them to an
// output surface (and diffing successive trees) is the embedder's concern.
package vdom

// VNode is one node in a rendered tree: an element, a text run, or a
// comment.
type VNode struct {
	Tag       string
	Data      *Data
	Children  []*VNode
	Text      string
	IsComment bool

	// Key carries the evaluated :key binding, used by external patchers
	// for list reconciliation.
	Key any

	Namespace string

	// IsStatic marks nodes built from hoisted static subtrees. Static
	// nodes are reused across renders; a patcher may skip them entirely.
	IsStatic bool

	// IsComponent marks tags the platform does not recognize as reserved
	// elements. The engine renders them as plain nodes carrying their
	// component data (props, model, scoped slots) for the embedder.
	IsComponent bool

	// IsCloned marks reused static nodes so patchers can tell a fresh
	// render from a cached tree.
	IsCloned bool
}

// ReactiveInternal marks vnodes as framework-internal so trees stored in
// observed state are never converted into reactive containers.
func (n *VNode) ReactiveInternal() {}

// NewElement creates an element node.
func NewElement(tag string, data *Data, children []*VNode) *VNode {
	n := &VNode{Tag: tag, Data: data, Children: children}
	if data != nil {
		n.Key = data.Key
	}
	return n
}

// NewText creates a text node.
func NewText(text string) *VNode {
	return &VNode{Text: text}
}

// NewComment creates a comment node.
func NewComment(text string) *VNode {
	return &VNode{Text: text, IsComment: true}
}

// Empty returns the placeholder node rendered for a false conditional
// branch.
func Empty() *VNode {
	return &VNode{IsComment: true}
}

// Clone returns a copy of the node sharing its Data and child nodes. The
// children slice itself is copied so the clone can be normalized without
// disturbing the original.
func (n *VNode) Clone() *VNode {
	cloned := *n
	cloned.Children = append([]*VNode(nil), n.Children...)
	cloned.IsCloned = true
	return &cloned
}

// CloneAll clones every node in a slice. Static trees are cached per render
// context and cloned on each reuse.
func CloneAll(nodes []*VNode) []*VNode {
	if nodes == nil {
		return nil
	}
	out := make([]*VNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// HandlerFunc is an event listener closure. The event value is whatever
// the embedder dispatches; handlers read it through the same attribute
// access rules as template expressions.
type HandlerFunc func(event any) error

// EventHandler pairs a listener with the flags compiled from its
// modifiers. Guard modifiers (stop, prevent, keys) are already folded
// into Fn; these flags are the ones only the embedder can honor.
type EventHandler struct {
	Fn      HandlerFunc
	Capture bool
	Once    bool
	Passive bool
}

// ScopedSlotFunc renders scoped slot content for the props a child
// component passes in.
type ScopedSlotFunc func(props any) ([]*VNode, error)

// ScopedSlot is one entry of a component's scoped slot table.
type ScopedSlot struct {
	Fn ScopedSlotFunc

	// Proxy marks slots written without a scope binding, which components
	// may also expose as plain slot content.
	Proxy bool
}

// DirectiveBinding is the runtime descriptor for a directive with no
// compile-time expansion, such as v-show. The embedder interprets it when
// applying the tree.
type DirectiveBinding struct {
	Name       string
	RawName    string
	Value      any
	Expression string
	Arg        string
	Modifiers  map[string]bool
}

// Model is the two-way binding contract compiled from v-model on a
// component: the current value and a callback that writes an emitted
// value back into component state.
type Model struct {
	Value      any
	Expression string
	Callback   func(value any) error
}

// Data is the evaluated data descriptor of an element node.
type Data struct {
	Key      any
	Ref      string
	RefInFor bool

	// Pre marks subtrees compiled under v-pre.
	Pre bool

	// Tag preserves the literal tag name for dynamic components.
	Tag string

	Slot string

	StaticClass string
	Class       any
	StaticStyle map[string]string
	Style       any

	Attrs    map[string]any
	DomProps map[string]any
	Props    map[string]any

	On       map[string][]*EventHandler
	NativeOn map[string][]*EventHandler

	Directives  []DirectiveBinding
	ScopedSlots map[string]*ScopedSlot
	Model       *Model
}

// AddHandler appends a listener for an event name, preserving
// registration order.
func (d *Data) AddHandler(name string, h *EventHandler, native bool) {
	if native {
		if d.NativeOn == nil {
			d.NativeOn = make(map[string][]*EventHandler)
		}
		d.NativeOn[name] = append(d.NativeOn[name], h)
		return
	}
	if d.On == nil {
		d.On = make(map[string][]*EventHandler)
	}
	d.On[name] = append(d.On[name], h)
}
