package schema

// Element type constants as produced by the renderer.
const (
	ElementRectangle = "rectangle"
	ElementEllipse   = "ellipse"
	ElementDiamond   = "diamond"
	ElementArrow     = "arrow"
	ElementText      = "text"
)

// Scene is the visual element graph exchanged with the renderer. Elements
// appear in z-order, which is also the order conversions traverse them.
type Scene struct {
	Elements []*Element `json:"elements"`
	Files    map[string]any `json:"files,omitempty"`
}

// Element is one canvas element. Shape elements (rectangle, ellipse, diamond)
// carry geometry, style, bound-element references and group memberships. Text
// elements carry the raw text plus the container they are attached to, if
// any. Arrows carry start/end bindings to the shapes they connect.
type Element struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	X               float64         `json:"x"`
	Y               float64         `json:"y"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	Angle           float64         `json:"angle,omitempty"`
	Text            string          `json:"text,omitempty"`
	ContainerID     string          `json:"containerId,omitempty"`
	BoundElements   []BoundElement  `json:"boundElements,omitempty"`
	StartBinding    *PointBinding   `json:"startBinding,omitempty"`
	EndBinding      *PointBinding   `json:"endBinding,omitempty"`
	BackgroundColor string          `json:"backgroundColor,omitempty"`
	StrokeColor     string          `json:"strokeColor,omitempty"`
	GroupIDs        []string        `json:"groupIds,omitempty"`
	IsDeleted       bool            `json:"isDeleted,omitempty"`
}

// BoundElement is a reference from a shape or arrow to an attached element,
// typically a bound text label.
type BoundElement struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// PointBinding records which element an arrow endpoint is attached to.
type PointBinding struct {
	ElementID string  `json:"elementId"`
	Focus     float64 `json:"focus,omitempty"`
	Gap       float64 `json:"gap,omitempty"`
}

// IsShape reports whether the element is one of the node-producing kinds.
func (e *Element) IsShape() bool {
	switch e.Type {
	case ElementRectangle, ElementEllipse, ElementDiamond:
		return true
	}
	return false
}
