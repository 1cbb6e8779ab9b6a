// Package marketplace is the HTTP adapter over the request lifecycle.
package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// Lifecycle is the part of *lifecycle.Manager the handlers drive.
type Lifecycle interface {
	Create(ctx context.Context, actor lifecycle.Actor, workerID string, terms lifecycle.Terms) (*lifecycle.ServiceRequest, error)
	Transition(ctx context.Context, requestID string, actor lifecycle.Actor, target lifecycle.Status) (*lifecycle.ServiceRequest, error)
	RecordReview(ctx context.Context, requestID string, actor lifecycle.Actor, rating int, comment string) (*lifecycle.Review, lifecycle.RatingSummary, error)
	Get(ctx context.Context, requestID string, actor lifecycle.Actor) (*lifecycle.ServiceRequest, error)
	List(ctx context.Context, actor lifecycle.Actor, filter lifecycle.RequestFilter) ([]lifecycle.ServiceRequest, error)
	RecordPayment(ctx context.Context, requestID, paymentRef string) (*lifecycle.ServiceRequest, error)
}

var _ Lifecycle = (*lifecycle.Manager)(nil)

type Handler struct {
	requests Lifecycle
}

func NewHandler(requests Lifecycle) *Handler {
	return &Handler{requests: requests}
}

// statusFor maps lifecycle errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidRole), errors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, lifecycle.ErrConflict),
		errors.Is(err, lifecycle.ErrDuplicateReview):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotCompleted), errors.Is(err, lifecycle.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(c echo.Context, err error, msg string) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg(msg)
		return c.JSON(code, echo.Map{"error": msg})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}
