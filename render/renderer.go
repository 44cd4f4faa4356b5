package render

import (
	"context"
	"fmt"
	"strconv"
)

// Renderer flattens a message tree into segments. A nil or empty result
// means the tree has no content.
type Renderer interface {
	Render(ctx context.Context, node Node) ([]Segment, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, node Node) ([]Segment, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, node Node) ([]Segment, error) {
	return f(ctx, node)
}

// maxDepth bounds component recursion.
const maxDepth = 64

// Default is the standard renderer. Adjacent text is merged into one
// segment, breaks are kept only between content, and empty text is dropped.
type Default struct{}

var _ Renderer = Default{}

// Render implements Renderer.
func (Default) Render(ctx context.Context, node Node) ([]Segment, error) {
	r := &flattener{}
	if err := r.walk(ctx, node, "$", 0); err != nil {
		return nil, err
	}
	r.flushText()

	// Trim trailing break.
	for len(r.out) > 0 && r.out[len(r.out)-1].Kind == KindBreak {
		r.out = r.out[:len(r.out)-1]
	}
	if len(r.out) == 0 {
		return nil, nil
	}
	return r.out, nil
}

type flattener struct {
	out      []Segment
	text     []byte
	textPath string
	hasText  bool
}

func (f *flattener) walk(ctx context.Context, node Node, path string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch n := node.(type) {
	case nil:
		return nil
	case TextNode:
		if n.Value == "" {
			return nil
		}
		if !f.hasText {
			f.textPath = path
			f.hasText = true
		}
		f.text = append(f.text, n.Value...)
	case BreakNode:
		f.flushText()
		if len(f.out) > 0 && f.out[len(f.out)-1].Kind != KindBreak {
			f.out = append(f.out, Segment{Kind: KindBreak, Path: path})
		}
	case FragmentNode:
		for i, child := range n.Children {
			if err := f.walk(ctx, child, path+":"+strconv.Itoa(i), depth); err != nil {
				return err
			}
		}
	case UnitNode:
		f.flushText()
		f.out = append(f.out, Segment{Kind: KindUnit, Value: n.Value, Path: path})
	case PartNode:
		f.flushText()
		f.out = append(f.out, Segment{Kind: KindPart, Value: n.Value, Path: path})
	case ComponentNode:
		if depth >= maxDepth {
			return fmt.Errorf("render: component %q exceeds max depth %d", n.Name, maxDepth)
		}
		if n.Render == nil {
			return nil
		}
		child, err := n.Render(ctx)
		if err != nil {
			return fmt.Errorf("render: component %q: %w", n.Name, err)
		}
		return f.walk(ctx, child, path+"#"+n.Name, depth+1)
	default:
		return fmt.Errorf("render: unknown node type %T at %s", node, path)
	}
	return nil
}

func (f *flattener) flushText() {
	if !f.hasText {
		return
	}
	f.out = append(f.out, Segment{Kind: KindText, Value: string(f.text), Path: f.textPath})
	f.text = f.text[:0]
	f.hasText = false
}
