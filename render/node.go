package render

import "context"

// Node is an element of a message tree. A nil Node renders nothing.
type Node interface {
	node()
}

// TextNode is plain text content.
type TextNode struct{ Value string }

// BreakNode separates text content into different messages.
type BreakNode struct{}

// FragmentNode groups children without adding anything itself.
type FragmentNode struct{ Children []Node }

// UnitNode carries a platform-specific value that becomes its own message.
type UnitNode struct{ Value any }

// PartNode carries a platform-specific value that is only valid inside a
// containing unit, such as a keyboard button.
type PartNode struct{ Value any }

// ComponentNode renders lazily: Render is invoked during rendering and its
// output is rendered in place.
type ComponentNode struct {
	Name   string
	Render func(ctx context.Context) (Node, error)
}

func (TextNode) node()      {}
func (BreakNode) node()     {}
func (FragmentNode) node()  {}
func (UnitNode) node()      {}
func (PartNode) node()      {}
func (ComponentNode) node() {}

// Text returns a text node.
func Text(s string) Node { return TextNode{Value: s} }

// Break returns a break node.
func Break() Node { return BreakNode{} }

// Fragment groups nodes.
func Fragment(children ...Node) Node { return FragmentNode{Children: children} }

// Unit wraps a platform-specific message value.
func Unit(v any) Node { return UnitNode{Value: v} }

// Part wraps a platform-specific sub-element value.
func Part(v any) Node { return PartNode{Value: v} }

// Component wraps a lazily rendered node.
func Component(name string, fn func(ctx context.Context) (Node, error)) Node {
	return ComponentNode{Name: name, Render: fn}
}
