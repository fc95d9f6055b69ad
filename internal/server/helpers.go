package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a structured error to an HTTP status and writes it as the
// response body. Unstructured errors surface as opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var derr *schema.DiagenError
	if !errors.As(err, &derr) {
		derr = schema.NewError(schema.ErrCodeStore, "internal error").WithCause(err)
	}
	writeJSON(w, statusFor(derr.Code), derr)
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeParse:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeRender:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeUpstream, schema.ErrCodeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errMessage extracts the human-readable message for a wire frame.
func errMessage(err error) string {
	var derr *schema.DiagenError
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}

// persist writes a conversion to history. Persistence failures are logged
// and swallowed: the client already has its result.
func (s *Server) persist(ctx context.Context, c *store.Conversion) {
	if s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.CreateConversion(ctx, c); err != nil {
		s.deps.Logger.ErrorContext(ctx, "persist conversion failed",
			slog.String("conversion_id", c.ID),
			slog.String("error", err.Error()),
		)
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
