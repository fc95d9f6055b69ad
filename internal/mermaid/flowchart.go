package mermaid

import (
	"fmt"
	"strings"

	"github.com/diagen/diagen/internal/graph"
)

// renderFlowchart renders the model as a Mermaid flowchart. Grouped nodes are
// partitioned into subgraph blocks before edges are listed; nodes outside
// every group are declared at the top level. Style classes are defined once
// at the end, in first-seen order.
func renderFlowchart(m *graph.Model) string {
	var b strings.Builder

	b.WriteString("flowchart TD\n")

	grouped := make(map[string]bool)
	for _, g := range m.Groups {
		for _, id := range g.NodeIDs {
			grouped[id] = true
		}
	}
	nodeByID := make(map[string]*graph.Node, len(m.Nodes))
	for _, n := range m.Nodes {
		nodeByID[n.ID] = n
	}

	for _, g := range m.Groups {
		fmt.Fprintf(&b, "    subgraph %s\n", g.ID)
		for _, id := range g.NodeIDs {
			if n, ok := nodeByID[id]; ok {
				fmt.Fprintf(&b, "        %s\n", flowchartNodeDef(n))
			}
		}
		b.WriteString("    end\n")
	}

	for _, n := range m.Nodes {
		if grouped[n.ID] {
			continue
		}
		fmt.Fprintf(&b, "    %s\n", flowchartNodeDef(n))
	}

	for _, e := range m.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf("|%s|", escapeLabel(e.Label))
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", e.From, label, e.To)
	}

	for _, sc := range m.Styles {
		fmt.Fprintf(&b, "    classDef %s %s\n", sc.Name, classDefBody(sc))
	}

	return b.String()
}

// flowchartNodeDef returns a node declaration with the shape brackets for its
// kind and an optional style-class suffix.
func flowchartNodeDef(n *graph.Node) string {
	label := escapeLabel(displayLabel(n))

	var def string
	switch n.Shape {
	case graph.ShapeDiamond:
		def = fmt.Sprintf("%s{\"%s\"}", n.ID, label)
	case graph.ShapeEllipse:
		def = fmt.Sprintf("%s([\"%s\"])", n.ID, label)
	default: // box
		def = fmt.Sprintf("%s[\"%s\"]", n.ID, label)
	}

	if n.Style != nil {
		def += ":::" + n.Style.Name
	}
	return def
}

// classDefBody renders the fill/stroke attributes of a style class, omitting
// whichever color is absent.
func classDefBody(sc *graph.StyleClass) string {
	var parts []string
	if sc.Fill != "" {
		parts = append(parts, "fill:"+sc.Fill)
	}
	if sc.Stroke != "" {
		parts = append(parts, "stroke:"+sc.Stroke)
	}
	return strings.Join(parts, ",")
}
