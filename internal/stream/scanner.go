package stream

import "strings"

// Framing selects the wire format a stream is scanned and decoded with.
type Framing int

const (
	// FramingJSON frames messages as bare JSON objects, one per logical
	// message, with no guarantee that chunk boundaries align with object
	// boundaries.
	FramingJSON Framing = iota
	// FramingSSE frames messages as Server-Sent Events: data: lines
	// terminated by a blank line.
	FramingSSE
)

// NextJSONObject returns the offset one past the end of the next complete,
// balanced JSON object in buf at or after start, and true. If no complete
// object exists yet, it returns 0 and false; the caller must retain the
// unconsumed tail and rescan once more bytes arrive.
//
// Brace depth is tracked while respecting string literals and backslash
// escapes, so braces inside quoted values never affect the count.
func NextJSONObject(buf string, start int) (int, bool) {
	open := strings.IndexByte(buf[start:], '{')
	if open < 0 {
		return 0, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start + open; i < len(buf); i++ {
		c := buf[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1, true
				}
			}
		}
	}
	return 0, false
}

// NextSSEEvent returns the offset one past the blank-line separator ending
// the next SSE event in buf at or after start, and true. An event is complete
// only once a blank line is observed after at least one data:-prefixed line.
func NextSSEEvent(buf string, start int) (int, bool) {
	i := start
	sawData := false
	for i < len(buf) {
		nl := strings.IndexByte(buf[i:], '\n')
		if nl < 0 {
			return 0, false
		}
		line := strings.TrimSuffix(buf[i:i+nl], "\r")
		i += nl + 1
		if line == "" {
			if sawData {
				return i, true
			}
			// Leading blank lines carry no event; keep scanning.
			continue
		}
		if strings.HasPrefix(line, "data:") {
			sawData = true
		}
	}
	return 0, false
}

// nextMessage dispatches to the scanner for the given framing. It returns the
// message span [start:end) boundaries via end, consistent across both modes.
func nextMessage(framing Framing, buf string, start int) (int, bool) {
	if framing == FramingSSE {
		return NextSSEEvent(buf, start)
	}
	return NextJSONObject(buf, start)
}
