package schema

// EventKind tags the closed set of application-level stream events.
type EventKind string

const (
	// EventDelta carries an incremental piece of generated text.
	EventDelta EventKind = "delta"
	// EventFinal carries the complete result and terminates the stream.
	EventFinal EventKind = "final"
	// EventError carries a failure message and terminates the stream.
	EventError EventKind = "error"
)

// StreamEvent is one decoded application-level event. Exactly one of the
// payload fields is meaningful for a given Kind: Text for delta, Content for
// final, Message for error. Within a stream, deltas arrive in emission order
// and at most one final or error terminates it.
type StreamEvent struct {
	Kind    EventKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Delta builds a delta event.
func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

// Final builds a terminal success event.
func Final(content string) StreamEvent {
	return StreamEvent{Kind: EventFinal, Content: content}
}

// ErrorEvent builds a terminal failure event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventFinal || e.Kind == EventError
}

// GenerationFrame is one message of the generation wire protocol: a bare JSON
// object per logical message. A frame with Error set is a terminal failure;
// Done=true with MermaidCode set is the terminal success; Chunk with Done
// false/absent is a content delta.
type GenerationFrame struct {
	Chunk       string `json:"chunk,omitempty"`
	MermaidCode string `json:"mermaidCode,omitempty"`
	Error       string `json:"error,omitempty"`
	Done        bool   `json:"done,omitempty"`
}

// Optimize frame types for the SSE optimization wire protocol.
const (
	OptimizeFrameChunk = "chunk"
	OptimizeFrameFinal = "final"
	OptimizeFrameError = "error"
)

// OptimizeFrame is the JSON body of one SSE data: event on the optimization
// stream.
type OptimizeFrame struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
}
