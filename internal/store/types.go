package store

import "time"

// Conversion source constants.
const (
	SourceGenerate = "generate"
	SourceOptimize = "optimize"
	SourceConvert  = "convert"
)

// Conversion is one persisted history entry: the prompt (or input DSL) that
// produced a diagram and the DSL text that came out.
type Conversion struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Prompt    string    `json:"prompt,omitempty"`
	Mermaid   string    `json:"mermaid"`
	Variant   string    `json:"variant"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversionFilter narrows ListConversions results. Zero values match
// everything; Limit 0 means no limit.
type ConversionFilter struct {
	Source string
	Limit  int
}
