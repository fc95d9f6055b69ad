// Package mermaid renders the canonical graph model as Mermaid diagram text.
package mermaid

import (
	"strings"

	"github.com/diagen/diagen/internal/graph"
	"github.com/diagen/diagen/pkg/schema"
)

// Variant selects the target diagram syntax.
type Variant string

const (
	VariantFlowchart Variant = "flowchart"
	VariantClass     Variant = "class"
	VariantSequence  Variant = "sequence"
)

// ParseVariant maps a request string to a Variant. Empty input defaults to
// flowchart.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantFlowchart, "":
		return VariantFlowchart, nil
	case VariantClass:
		return VariantClass, nil
	case VariantSequence:
		return VariantSequence, nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram variant %q", s)
}

// Emit renders the model as diagram text for the given variant. Output is
// byte-identical across repeated calls on the same model: the emitters walk
// only the model's ordered slices.
func Emit(m *graph.Model, variant Variant) (string, error) {
	switch variant {
	case VariantFlowchart:
		return renderFlowchart(m), nil
	case VariantClass:
		return renderClassDiagram(m), nil
	case VariantSequence:
		return renderSequenceDiagram(m), nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram variant %q", string(variant))
}

// escapeLabel makes a label safe inside a quoted Mermaid string.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

// displayLabel falls back to the canonical id for unlabeled nodes.
func displayLabel(n *graph.Node) string {
	if n.Label == "" {
		return n.ID
	}
	return n.Label
}
