package mermaid

import (
	"fmt"
	"strings"

	"github.com/diagen/diagen/internal/graph"
)

// renderSequenceDiagram renders the model as a Mermaid sequence diagram.
// Participants need no standalone declarations; only edges are emitted, each
// as a message arrow.
func renderSequenceDiagram(m *graph.Model) string {
	var b strings.Builder

	b.WriteString("sequenceDiagram\n")

	for _, e := range m.Edges {
		fmt.Fprintf(&b, "    %s->>%s: %s\n", e.From, e.To, escapeLabel(e.Label))
	}

	return b.String()
}
