package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Reason  string                  `json:"reason,omitempty"`
	Details []curriculum.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// errorResponse maps err to a status and a body safe to show the caller.
// Errors the pipeline did not classify become internal_error.
func errorResponse(err error) (int, errorBody) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, errorBody{
			Error:   "internal_error",
			Message: "Internal server error.",
		}
	}
	return perr.Kind.HTTPStatus(), errorBody{
		Error:   perr.Kind.Code(),
		Message: perr.Message,
		Reason:  perr.Reason,
		Details: perr.Fields,
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", body.Error, "error", err)
	}
	writeJSON(w, status, body)
}

// readBody reads a bounded request body. Oversized or unreadable bodies
// are bad requests.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &pipeline.Error{
			Kind:    pipeline.BadRequest,
			Message: "Request body could not be read.",
			Err:     fmt.Errorf("read body: %w", err),
		}
	}
	return body, nil
}
