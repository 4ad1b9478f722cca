// Package models holds the wire-level request/response types for the HTTP API.
package models

import (
	"encoding/json"
	"net/http"
)

// Problem types (RFC 7807).
const (
	ProblemTypeValidation         = "https://api.nimbusgraph.dev/problems/validation-error"
	ProblemTypeUnauthorized       = "https://api.nimbusgraph.dev/problems/unauthorized"
	ProblemTypeNotFound           = "https://api.nimbusgraph.dev/problems/not-found"
	ProblemTypeConflict           = "https://api.nimbusgraph.dev/problems/conflict"
	ProblemTypeTooManyRequests    = "https://api.nimbusgraph.dev/problems/too-many-requests"
	ProblemTypeInternal           = "https://api.nimbusgraph.dev/problems/internal-error"
	ProblemTypeServiceUnavailable = "https://api.nimbusgraph.dev/problems/service-unavailable"
	ProblemTypeNoRoute            = "https://api.nimbusgraph.dev/problems/no-route"
	ProblemTypePlaceNotFound      = "https://api.nimbusgraph.dev/problems/place-not-found"
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem is an RFC 7807 application/problem+json body.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"trace_id,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// NewProblem builds a Problem with the given type/title/status/trace ID.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the Detail field and returns the Problem for chaining.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithErrors sets the field errors and returns the Problem for chaining.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write serializes the Problem as application/problem+json.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p) //nolint:errcheck // best effort, client already has the status code
}

// NewBadRequest builds a 400 validation Problem.
func NewBadRequest(traceID, detail string, errs []FieldError) *Problem {
	p := NewProblem(ProblemTypeValidation, "Validation failed", http.StatusBadRequest, traceID).WithDetail(detail)
	return p.WithErrors(errs)
}

// NewUnauthorized builds a 401 Problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).WithDetail(detail)
}

// NewNotFound builds a 404 Problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).WithDetail(detail)
}

// NewConflict builds a 409 Problem.
func NewConflict(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID).WithDetail(detail)
}

// NewTooManyRequests builds a 429 Problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID).WithDetail(detail)
}

// NewInternalError builds a 500 Problem.
func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, "Internal error", http.StatusInternalServerError, traceID).WithDetail(detail)
}

// NewServiceUnavailable builds a 503 Problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeServiceUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).WithDetail(detail)
}

// NewNoRoute builds a 404 Problem for the NoRoute plan error.
func NewNoRoute(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNoRoute, "No route found", http.StatusNotFound, traceID).WithDetail(detail)
}

// NewPlaceNotFound builds a 404 Problem for the Unresolved plan error.
func NewPlaceNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypePlaceNotFound, "Place not found", http.StatusNotFound, traceID).WithDetail(detail)
}
