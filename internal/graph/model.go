package graph

// Shape classifies a diagram node by its source element kind.
type Shape string

const (
	ShapeBox     Shape = "box"
	ShapeEllipse Shape = "ellipse"
	ShapeDiamond Shape = "diamond"
)

// Model is the canonical intermediate representation produced by one
// conversion call. Nodes, Edges, Groups and Styles all preserve first-seen
// order so emitted text is byte-identical across repeated calls.
type Model struct {
	Nodes  []*Node
	Edges  []Edge
	Groups []GroupBlock
	Styles []*StyleClass
}

// Node is a read-only snapshot of one shape element. Canonical ids are
// assigned fresh every conversion; no cross-call identity is preserved.
type Node struct {
	ID       string // canonical id (A..Z, then AA, AB, ...)
	SourceID string // renderer element id
	Shape    Shape
	Label    string
	Style    *StyleClass // nil when the node carries no explicit colors
	GroupIDs []string
}

// Edge connects two canonical node ids. Edges whose endpoints could not be
// resolved never make it into the model.
type Edge struct {
	From  string
	To    string
	Label string
}

// StyleClass is a deduplicated (fill, stroke) pair. Two nodes with identical
// colors share one StyleClass within a conversion.
type StyleClass struct {
	Name   string
	Fill   string
	Stroke string
}

// GroupBlock pairs a group identifier with the ordered canonical node ids
// belonging to it. A node id may appear in more than one block.
type GroupBlock struct {
	ID      string
	NodeIDs []string
}

// CanonicalID returns the id for the n-th node encountered (zero-based):
// A..Z, then AA, AB, ... in base-26 letters.
func CanonicalID(n int) string {
	id := ""
	for {
		id = string(rune('A'+n%26)) + id
		n = n/26 - 1
		if n < 0 {
			return id
		}
	}
}
