package ai

import "fmt"

const generateSystemPrompt = `You are a diagram author. Produce a single Mermaid diagram that captures the user's description.

Rules:
- Output only the Mermaid source, optionally inside one fenced code block.
- Prefer "flowchart TD" unless the description clearly asks for a class or sequence diagram.
- Keep node labels short; put detail on edge labels.
- Never include prose before or after the diagram.`

const optimizeSystemPrompt = `You are a diagram editor. You receive an existing Mermaid diagram and instructions for improving it.

Rules:
- Output only the revised Mermaid source, optionally inside one fenced code block.
- Preserve the diagram type and every node the instructions do not ask you to remove.
- Never include prose before or after the diagram.`

func optimizeUserPrompt(mermaid, instructions string) string {
	return fmt.Sprintf("Current diagram:\n\n%s\n\nInstructions:\n\n%s", mermaid, instructions)
}
