package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

// SessionContext is the slice of the owning session a module may see.
type SessionContext interface {
	Token() string
	Username() string
	IsAdmin() bool
}

// Socket is a bound client connection a module can push events to.
type Socket interface {
	SendJSON(v any) error
}

// Range selects a slice of a listing.
type Range struct {
	Start int
	Count int
}

// Request is one fully parsed API call, built once per inbound message.
type Request struct {
	Module  string
	Version int
	Method  string
	Path    []string
	Body    json.RawMessage
	Range   *Range

	Session SessionContext
}

// HasBody reports whether a JSON body was supplied.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

// DecodeBody unmarshals the request body into dst. Failures are reported as
// validation errors.
func (r *Request) DecodeBody(dst any) error {
	if !r.HasBody() {
		return domain.Invalidf("request body missing")
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return domain.Invalidf("malformed request body: %s", err.Error())
	}
	return nil
}

// Param returns the path segment at the given position after the section
// name, or "" when out of range.
func (r *Request) Param(pos int) string {
	// Path[0] is the section; params follow.
	if pos+1 >= len(r.Path) {
		return ""
	}
	return r.Path[pos+1]
}

// Response is the outcome of dispatching a Request.
type Response struct {
	Code  int
	Body  any
	Error string
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.Code >= 200 && r.Code < 300
}

func successResponse(body any) *Response {
	if body == nil {
		return &Response{Code: http.StatusNoContent}
	}
	return &Response{Code: http.StatusOK, Body: body}
}

// ErrorResponse builds a failure response with the given status code.
func ErrorResponse(code int, message string) *Response {
	return &Response{Code: code, Error: message}
}

func errorResponse(code int, message string) *Response {
	return ErrorResponse(code, message)
}

// failureResponse maps an error returned by a handler or the engine to a
// status class, preserving the original message verbatim.
func failureResponse(err error) *Response {
	return errorResponse(statusOf(err), err.Error())
}

// ErrForbidden marks requests whose principal lacks the required access.
var ErrForbidden = errors.New("access denied")

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func subscriptionNotFound(name string) error {
	return domain.NotFoundf("unknown subscription %q", name)
}

// requiredField extracts a required body field, failing with a
// field-qualified validation error when absent.
func requiredField[T comparable](body json.RawMessage, name string) (T, error) {
	var zero T
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return zero, domain.Invalidf("malformed request body: %s", err.Error())
	}
	raw, ok := fields[name]
	if !ok {
		return zero, domain.Invalidf("field %s: missing", name)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("field %s: %s: %w", name, err.Error(), domain.ErrInvalid)
	}
	if v == zero {
		return zero, domain.Invalidf("field %s: empty", name)
	}
	return v, nil
}

// optionalField extracts an optional body field, returning the zero value
// when absent.
func optionalField[T any](body json.RawMessage, name string) (T, error) {
	var zero T
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return zero, domain.Invalidf("malformed request body: %s", err.Error())
	}
	raw, ok := fields[name]
	if !ok {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("field %s: %s: %w", name, err.Error(), domain.ErrInvalid)
	}
	return v, nil
}
