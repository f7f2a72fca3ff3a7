package errors

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// ErrorMapper turns a domain or application error into a problem. The bool
// reports whether the mapper recognised err.
type ErrorMapper func(err error) (ProblemDetail, bool)

// Responder writes problem responses. Mappers are tried in order; errors no
// mapper recognises become a 500 and are logged.
type Responder struct {
	baseURI string
	mappers []ErrorMapper
	logger  *slog.Logger
}

type ResponderOption func(*Responder)

// WithBaseURI prefixes relative problem type URIs.
func WithBaseURI(uri string) ResponderOption {
	return func(r *Responder) {
		r.baseURI = uri
	}
}

// WithResponderLogger logs unmapped errors to logger.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResponder(mappers []ErrorMapper, opts ...ResponderOption) *Responder {
	r := &Responder{
		mappers: mappers,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Respond writes problem. Instance defaults to the request path.
func (r *Responder) Respond(c *gin.Context, problem ProblemDetail) {
	if r.baseURI != "" && len(problem.Type) > 0 && problem.Type[0] == '/' {
		problem.Type = r.baseURI + problem.Type
	}
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	if problem.RetryAfter > 0 {
		seconds := int(problem.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.JSON(problem.Status, problem)
}

// RespondError maps err and writes the result.
func (r *Responder) RespondError(c *gin.Context, err error) {
	problem := r.Problem(err)
	r.Respond(c, problem)
	if status := problem.Status; status >= http.StatusInternalServerError {
		r.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
}

// Problem returns the problem err maps to.
func (r *Responder) Problem(err error) ProblemDetail {
	var problem ProblemDetail
	if errors.As(err, &problem) {
		return problem
	}
	for _, mapper := range r.mappers {
		if problem, ok := mapper(err); ok {
			return problem
		}
	}
	return ErrInternal.WithDetail(err.Error())
}

// BadRequest writes a 400 for a request that could not be decoded or bound.
func (r *Responder) BadRequest(c *gin.Context, detail string) {
	r.Respond(c, ErrBadRequest.WithDetail(detail))
}
