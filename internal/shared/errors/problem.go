// Package errors renders RFC 7807 problem details for the order and kitchen APIs.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetail is an RFC 7807 problem response.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Extensions carries problem-specific members such as the expected and
	// actual lifecycle state of a rejected transition.
	Extensions map[string]any `json:"extensions,omitempty"`
	// RetryAfter is sent as the Retry-After header when set.
	RetryAfter time.Duration `json:"-"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with one more extension member.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	extensions := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		extensions[k] = v
	}
	extensions[key] = value
	p.Extensions = extensions
	return p
}

// WithRetryAfter returns a copy that tells clients when to retry.
func (p ProblemDetail) WithRetryAfter(d time.Duration) ProblemDetail {
	p.RetryAfter = d
	return p
}

const (
	TypeValidation    = "/problems/validation-error"
	TypeNotFound      = "/problems/not-found"
	TypeConflict      = "/problems/conflict"
	TypeInternal      = "/problems/internal-error"
	TypeBadRequest    = "/problems/bad-request"
	TypeUnprocessable = "/problems/unprocessable-entity"
	TypeUnavailable   = "/problems/service-unavailable"
)

var (
	ErrNotFound = ProblemDetail{
		Type:   TypeNotFound,
		Title:  "Resource Not Found",
		Status: http.StatusNotFound,
	}

	ErrValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}

	ErrBadRequest = ProblemDetail{
		Type:   TypeBadRequest,
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
	}

	// ErrConflict is a lifecycle precondition failure: the resource is not in
	// the state the operation requires.
	ErrConflict = ProblemDetail{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
	}

	ErrInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}

	// ErrUnprocessable is a domain rejection other than a state mismatch,
	// such as confirming an empty basket.
	ErrUnprocessable = ProblemDetail{
		Type:   TypeUnprocessable,
		Title:  "Unprocessable Entity",
		Status: http.StatusUnprocessableEntity,
	}

	// ErrUnavailable is a store or workflow engine failure; the request is safe to retry.
	ErrUnavailable = ProblemDetail{
		Type:       TypeUnavailable,
		Title:      "Service Unavailable",
		Status:     http.StatusServiceUnavailable,
		RetryAfter: time.Second,
	}
)

// NewStateConflict describes an operation attempted from the wrong lifecycle state.
func NewStateConflict(operation, expected, actual, detail string) ProblemDetail {
	return ErrConflict.WithDetail(detail).
		WithExtension("operation", operation).
		WithExtension("expected", expected).
		WithExtension("actual", actual)
}

// NewNotFoundProblem names the missing resource and its id.
func NewNotFoundProblem(resourceType, id string) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s %q not found", resourceType, id)).
		WithExtension("resourceType", resourceType).
		WithExtension("id", id)
}
