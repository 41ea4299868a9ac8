package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	BadRequest Kind = iota + 1
	ContentBlocked
	AuthenticationRequired
	Forbidden
	NotFound
	QuotaExceeded
	PersistFailed
	MalformedOutput
	SchemaViolation
	UpstreamUnavailable
)

var kindInfo = map[Kind]struct {
	code   string
	status int
}{
	BadRequest:             {"bad_request", http.StatusBadRequest},
	ContentBlocked:         {"content_blocked", http.StatusBadRequest},
	AuthenticationRequired: {"authentication_required", http.StatusUnauthorized},
	Forbidden:              {"forbidden", http.StatusForbidden},
	NotFound:               {"not_found", http.StatusNotFound},
	QuotaExceeded:          {"quota_exceeded", http.StatusTooManyRequests},
	PersistFailed:          {"persist_failed", http.StatusInternalServerError},
	MalformedOutput:        {"malformed_output", http.StatusBadGateway},
	SchemaViolation:        {"schema_violation", http.StatusBadGateway},
	UpstreamUnavailable:    {"upstream_unavailable", http.StatusServiceUnavailable},
}

// Code is the short error code sent to clients.
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return "internal_error"
}

// HTTPStatus is the status a failure of this kind maps to.
func (k Kind) HTTPStatus() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	return k.Code()
}

// Error is a classified pipeline failure. Message is safe to show to the
// caller; Err carries internal detail and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Reason  string                  // block reason for ContentBlocked
	Fields  []curriculum.FieldError // offending fields for BadRequest and SchemaViolation
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a pipeline error, or 0 when err is not one.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// badRequest classifies a request body that failed parsing or schema checks.
func badRequest(err error) *Error {
	var ve *curriculum.ValidationError
	if !errors.As(err, &ve) {
		return newError(BadRequest, "Invalid request body.", err)
	}
	if ve.Kind == curriculum.MalformedOutput {
		return newError(BadRequest, "Request body is not valid JSON.", err)
	}
	e := newError(BadRequest, "Request body failed validation.", err)
	e.Fields = ve.Fields
	return e
}

// outputError classifies model output that failed parsing or schema checks.
func outputError(err error) *Error {
	var ve *curriculum.ValidationError
	if errors.As(err, &ve) && ve.Kind == curriculum.SchemaViolation {
		e := newError(SchemaViolation, "The model returned a document that does not match the expected shape.", err)
		e.Fields = ve.Fields
		return e
	}
	return newError(MalformedOutput, "The model returned output that could not be parsed.", err)
}
