package stream

import (
	"encoding/json"
	"strings"

	"github.com/diagen/diagen/pkg/schema"
)

// DecodeGeneration decodes one complete generation-protocol span into an
// application event. The second return is false when the span matches none of
// the known frame shapes; such spans are tolerated and ignored so the
// protocol can grow new fields without breaking older consumers.
func DecodeGeneration(span string) (schema.StreamEvent, bool) {
	idx := strings.IndexByte(span, '{')
	if idx < 0 {
		return schema.StreamEvent{}, false
	}

	var frame schema.GenerationFrame
	if err := json.Unmarshal([]byte(span[idx:]), &frame); err != nil {
		return schema.StreamEvent{}, false
	}

	switch {
	case frame.Error != "":
		return schema.ErrorEvent(frame.Error), true
	case frame.Done && frame.MermaidCode != "":
		return schema.Final(frame.MermaidCode), true
	case !frame.Done && frame.Chunk != "":
		return schema.Delta(frame.Chunk), true
	}
	return schema.StreamEvent{}, false
}

// DecodeOptimize decodes one complete SSE event span into an application
// event. Every data: line in the span is stripped of its prefix, trimmed and
// parsed as an OptimizeFrame; malformed payloads are skipped rather than
// aborting the stream.
func DecodeOptimize(span string) (schema.StreamEvent, bool) {
	for _, line := range strings.Split(span, "\n") {
		line = strings.TrimSuffix(line, "\r")
		rest, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			continue
		}

		var frame schema.OptimizeFrame
		if err := json.Unmarshal([]byte(rest), &frame); err != nil {
			continue
		}

		switch frame.Type {
		case schema.OptimizeFrameChunk:
			if frame.Data != "" {
				return schema.Delta(frame.Data), true
			}
		case schema.OptimizeFrameFinal:
			if frame.OK {
				return schema.Final(frame.Data), true
			}
		case schema.OptimizeFrameError:
			return schema.ErrorEvent(frame.Message), true
		}
	}
	return schema.StreamEvent{}, false
}

// decodeMessage dispatches to the decoder for the given framing.
func decodeMessage(framing Framing, span string) (schema.StreamEvent, bool) {
	if framing == FramingSSE {
		return DecodeOptimize(span)
	}
	return DecodeGeneration(span)
}
