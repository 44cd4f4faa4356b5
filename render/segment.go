package render

import "fmt"

// Kind identifies the type of a Segment.
type Kind int

const (
	KindText Kind = iota + 1
	KindUnit
	KindBreak
	KindPart
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindUnit:
		return "unit"
	case KindBreak:
		return "break"
	case KindPart:
		return "part"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Segment is one flattened piece of rendered content.
type Segment struct {
	Kind Kind

	// Value is a string for text segments, the platform value for unit
	// and part segments, and nil for breaks.
	Value any

	// Path locates the originating node in the tree, e.g. "$:0:2".
	Path string
}

// Text returns the segment text, or "" for non-text segments.
func (s Segment) Text() string {
	if s.Kind != KindText {
		return ""
	}
	str, _ := s.Value.(string)
	return str
}
