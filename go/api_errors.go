package ordersserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	kitchenapp "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/application"
	kitchenports "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	ordersapp "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	apierrors "github.com/Apurer/order-lifecycle-engine/internal/shared/errors"
)

const (
	// HeaderNoop marks a response whose operation was already applied earlier.
	HeaderNoop = "Idempotent-Replayed"
	// HeaderIdempotencyKey lets a client retry an AddItem without choosing the item id itself.
	HeaderIdempotencyKey = "Idempotency-Key"
)

var problems = apierrors.NewResponder([]apierrors.ErrorMapper{orderProblem, kitchenProblem})

// respondServiceError maps application errors through the shared responder.
func respondServiceError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	problems.RespondError(c, err)
}

func respondBadRequest(c *gin.Context, err error) {
	problems.BadRequest(c, err.Error())
}

// orderProblem turns order rejections into problem details. Precondition
// failures carry the state the operation needed and the state the order is in.
func orderProblem(err error) (apierrors.ProblemDetail, bool) {
	var transition *domain.TransitionError
	switch {
	case errors.As(err, &transition):
		return apierrors.NewStateConflict(string(transition.Operation),
			string(transition.Expected), string(transition.Actual), err.Error()), true
	case errors.Is(err, ordersports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ordersports.ErrLifecycleEnded):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case domain.IsRejection(err):
		return apierrors.ErrUnprocessable.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrUnavailable.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func kitchenProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, kitchenports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, kitchenapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, kitchenapp.ErrTransient):
		return apierrors.ErrUnavailable.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

// pathParam binds a required simple-style path parameter.
func pathParam(c *gin.Context, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		respondBadRequest(c, fmt.Errorf("invalid format for parameter %s: %w", name, err))
		return "", false
	}
	return value, true
}

// stateQuery binds the optional repeated ?state= filter.
func stateQuery(c *gin.Context) ([]string, bool) {
	var states []string
	if err := runtime.BindQueryParameter("form", true, false, "state", c.Request.URL.Query(), &states); err != nil {
		respondBadRequest(c, fmt.Errorf("invalid format for parameter state: %w", err))
		return nil, false
	}
	return states, true
}
