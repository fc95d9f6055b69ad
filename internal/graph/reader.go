package graph

import (
	"fmt"
	"strings"

	"github.com/diagen/diagen/pkg/schema"
)

// Read walks a visual element graph and builds the canonical intermediate
// model. It is a pure, single-pass-per-concern function over an immutable
// snapshot: every lookup table it builds lives for this call only.
//
// Pass one collects text content by element id. Pass two visits shape
// elements in scene order, resolving bound labels, assigning canonical ids,
// deduplicating style classes and recording group memberships. Pass three
// resolves arrows to edges, silently dropping any arrow whose endpoint does
// not resolve to a recognized shape — dangling bindings are routine during
// freehand editing, not an error.
func Read(scene *schema.Scene) *Model {
	m := &Model{}
	if scene == nil {
		return m
	}

	// Pass 1: text content by element id, plus text indexed by container.
	textByID := make(map[string]string)
	textByContainer := make(map[string]string)
	for _, el := range scene.Elements {
		if el.IsDeleted || el.Type != schema.ElementText {
			continue
		}
		label := collapseWhitespace(el.Text)
		textByID[el.ID] = label
		if el.ContainerID != "" {
			if _, seen := textByContainer[el.ContainerID]; !seen {
				textByContainer[el.ContainerID] = label
			}
		}
	}

	// Pass 2: shapes in scene order.
	canonical := make(map[string]string) // source element id -> canonical id
	styleIndex := make(map[string]*StyleClass)
	groupIndex := make(map[string]int) // group id -> position in m.Groups
	for _, el := range scene.Elements {
		if el.IsDeleted || !el.IsShape() {
			continue
		}

		id := CanonicalID(len(m.Nodes))
		canonical[el.ID] = id

		node := &Node{
			ID:       id,
			SourceID: el.ID,
			Shape:    shapeOf(el.Type),
			Label:    resolveBoundLabel(el, textByID, textByContainer),
			Style:    resolveStyle(el, styleIndex, m),
			GroupIDs: el.GroupIDs,
		}
		m.Nodes = append(m.Nodes, node)

		for _, gid := range el.GroupIDs {
			pos, ok := groupIndex[gid]
			if !ok {
				pos = len(m.Groups)
				groupIndex[gid] = pos
				m.Groups = append(m.Groups, GroupBlock{ID: gid})
			}
			m.Groups[pos].NodeIDs = append(m.Groups[pos].NodeIDs, id)
		}
	}

	// Pass 3: arrows to edges.
	for _, el := range scene.Elements {
		if el.IsDeleted || el.Type != schema.ElementArrow {
			continue
		}
		if el.StartBinding == nil || el.EndBinding == nil {
			continue
		}
		from, okFrom := canonical[el.StartBinding.ElementID]
		to, okTo := canonical[el.EndBinding.ElementID]
		if !okFrom || !okTo {
			continue
		}
		m.Edges = append(m.Edges, Edge{
			From:  from,
			To:    to,
			Label: resolveBoundLabel(el, textByID, textByContainer),
		})
	}

	return m
}

// resolveBoundLabel finds the text bound to a shape or arrow. The recorded
// binding (boundElements) wins; a text element pointing back via containerId
// is the fallback. No bound text yields an empty label.
func resolveBoundLabel(el *schema.Element, textByID, textByContainer map[string]string) string {
	for _, b := range el.BoundElements {
		if b.Type != schema.ElementText {
			continue
		}
		if label, ok := textByID[b.ID]; ok {
			return label
		}
	}
	return textByContainer[el.ID]
}

// resolveStyle returns the deduplicated StyleClass for the element's colors,
// registering a new class in first-seen order when needed. Elements without
// explicit colors map to nil.
func resolveStyle(el *schema.Element, index map[string]*StyleClass, m *Model) *StyleClass {
	fill := normalizeColor(el.BackgroundColor)
	stroke := normalizeColor(el.StrokeColor)
	if fill == "" && stroke == "" {
		return nil
	}

	key := fill + "\x00" + stroke
	if sc, ok := index[key]; ok {
		return sc
	}
	sc := &StyleClass{
		Name:   fmt.Sprintf("style%d", len(m.Styles)),
		Fill:   fill,
		Stroke: stroke,
	}
	index[key] = sc
	m.Styles = append(m.Styles, sc)
	return sc
}

func shapeOf(elementType string) Shape {
	switch elementType {
	case schema.ElementEllipse:
		return ShapeEllipse
	case schema.ElementDiamond:
		return ShapeDiamond
	default:
		return ShapeBox
	}
}

// normalizeColor treats the renderer's "no fill" marker as unstyled.
func normalizeColor(c string) string {
	if c == "transparent" {
		return ""
	}
	return c
}

// collapseWhitespace folds all runs of whitespace, including the line breaks
// the canvas inserts for wrapping, into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
