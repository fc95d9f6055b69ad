package stream

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/diagen/diagen/pkg/schema"
)

// readChunkSize is the transport read granularity. Message boundaries never
// align with it; the scanner carries partial messages across reads.
const readChunkSize = 4096

// DeltaSink receives incremental content deltas in emission order. It runs
// synchronously inside the chunk-processing step and must not block.
type DeltaSink func(text string)

// State is the incremental scan state threaded through successive feeds of
// one stream. It owns the accumulation buffer exclusively; a new State is
// created per stream and never shared.
type State struct {
	framing    Framing
	pending    string
	content    string
	errMessage string
	terminated bool
	failed     bool
}

// NewState creates scan state for one stream with the given framing.
func NewState(framing Framing) *State {
	return &State{framing: framing}
}

// Feed appends a transport chunk to the pending buffer, extracts every
// complete message now available, and dispatches decoded events. Unconsumed
// tail bytes are retained verbatim for the next feed. Events arriving after
// a terminal event are ignored.
func (s *State) Feed(chunk string, sink DeltaSink) {
	s.pending += chunk

	start := 0
	for {
		end, ok := nextMessage(s.framing, s.pending, start)
		if !ok {
			break
		}
		span := s.pending[start:end]
		start = end

		event, ok := decodeMessage(s.framing, span)
		if !ok || s.terminated {
			continue
		}

		switch event.Kind {
		case schema.EventDelta:
			if sink != nil {
				sink(event.Text)
			}
		case schema.EventFinal:
			s.content = event.Content
			s.terminated = true
		case schema.EventError:
			s.errMessage = event.Message
			s.failed = true
			s.terminated = true
		}
	}
	s.pending = s.pending[start:]
}

// Terminated reports whether a terminal event has been observed.
func (s *State) Terminated() bool {
	return s.terminated
}

// Result resolves the stream outcome. A terminal error discards any
// accumulated content and surfaces only the carried message. A stream that
// ended without a final event resolves to empty content, not an error, to
// tolerate backends that omit an explicit terminator.
func (s *State) Result() (string, error) {
	if s.failed {
		return "", schema.NewError(schema.ErrCodeProtocol, s.errMessage)
	}
	return StripFence(s.content), nil
}

// Consumer drives one live response source through the scanner and decoder.
// Each Consume call owns its State and buffer exclusively; independent calls
// share nothing.
type Consumer struct {
	framing Framing
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the given framing.
func NewConsumer(framing Framing, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Consumer{framing: framing, logger: logger}
}

// Consume reads r to completion, invoking sink for every delta, and returns
// the final content with an optional enclosing code fence stripped. Transport
// failures surface as UPSTREAM_ERROR; an explicit error event surfaces as
// PROTOCOL_ERROR. Cancellation is caller-driven via ctx.
func (c *Consumer) Consume(ctx context.Context, r io.Reader, sink DeltaSink) (string, error) {
	state := NewState(c.framing)
	buf := make([]byte, readChunkSize)

	for !state.Terminated() {
		if err := ctx.Err(); err != nil {
			return "", schema.NewError(schema.ErrCodeCancelled, "stream cancelled").WithCause(err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			state.Feed(string(buf[:n]), sink)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", schema.NewErrorf(schema.ErrCodeUpstream, "read stream: %v", err).WithCause(err)
		}
	}

	content, err := state.Result()
	if err != nil {
		c.logger.WarnContext(ctx, "stream terminated with error", slog.String("error", err.Error()))
		return "", err
	}
	return content, nil
}

// StripFence removes one enclosing fenced code block (a delimiter line, the
// body, a closing delimiter line) and returns the inner body. Input without
// an enclosing fence is returned unchanged.
func StripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return s
	}
	body := trimmed[nl+1:]
	closing := strings.LastIndex(body, "```")
	if closing < 0 {
		return s
	}
	return strings.TrimSpace(body[:closing])
}
