package mermaid

import (
	"fmt"
	"strings"

	"github.com/diagen/diagen/internal/graph"
)

// renderClassDiagram renders the model as a Mermaid class diagram. Shape
// kinds, colors and arrow semantics do not survive this variant: every node
// becomes a bare class declaration and every edge an inheritance arrow
// between canonical ids.
func renderClassDiagram(m *graph.Model) string {
	var b strings.Builder

	b.WriteString("classDiagram\n")

	for _, n := range m.Nodes {
		fmt.Fprintf(&b, "    class %s\n", className(n))
	}

	for _, e := range m.Edges {
		fmt.Fprintf(&b, "    %s <|-- %s\n", e.From, e.To)
	}

	return b.String()
}

// className strips bracket characters from the label; an empty result falls
// back to the canonical id.
func className(n *graph.Node) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '{', '}', '(', ')', '<', '>':
			return -1
		}
		return r
	}, n.Label)
	name = strings.TrimSpace(name)
	if name == "" {
		return n.ID
	}
	return name
}
