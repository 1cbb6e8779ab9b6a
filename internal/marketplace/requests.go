package marketplace

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/middleware"
)

type CreateRequest struct {
	WorkerID    string                `json:"worker_id" validate:"required"`
	ListingType lifecycle.ListingType `json:"listing_type" validate:"required,oneof=on-demand project job"`
	Price       float64               `json:"price" validate:"gt=0"`
	Duration    string                `json:"duration" validate:"max=100"`
	ScheduledAt *time.Time            `json:"scheduled_at"`
	Address     *lifecycle.Address    `json:"address"`
	Message     string                `json:"message" validate:"max=1000"`
}

// POST /requests
func (h *Handler) CreateRequest(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body CreateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	req, err := h.requests.Create(c.Request().Context(), actor, body.WorkerID, lifecycle.Terms{
		ListingType: body.ListingType,
		Price:       body.Price,
		Duration:    body.Duration,
		ScheduledAt: body.ScheduledAt,
		Address:     body.Address,
		Message:     body.Message,
	})
	if err != nil {
		return fail(c, err, "failed to create request")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"request": req,
		"message": "Request sent. Awaiting worker acceptance.",
	})
}

// GET /requests?status=&limit=&offset=
func (h *Handler) ListRequests(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.list(c, actor)
}

func (h *Handler) list(c echo.Context, actor lifecycle.Actor) error {
	filter := lifecycle.RequestFilter{Status: lifecycle.Status(c.QueryParam("status"))}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		filter.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offset"})
		}
		filter.Offset = n
	}

	items, err := h.requests.List(c.Request().Context(), actor, filter)
	if err != nil {
		return fail(c, err, "failed to list requests")
	}
	if items == nil {
		items = []lifecycle.ServiceRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": items})
}

// GET /requests/:id
func (h *Handler) GetRequest(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, err := h.requests.Get(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return fail(c, err, "failed to load request")
	}
	return c.JSON(http.StatusOK, echo.Map{"request": req})
}

type StatusRequest struct {
	Status lifecycle.Status `json:"status" validate:"required"`
}

// PATCH /requests/:id/status
//
// A lost race is retried once against the fresh status; a second conflict
// is returned to the client.
func (h *Handler) UpdateStatus(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body StatusRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !body.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status " + string(body.Status)})
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	req, err := h.requests.Transition(ctx, id, actor, body.Status)
	if errors.Is(err, lifecycle.ErrConflict) {
		log.Ctx(ctx).Debug().Str("request_id", id).Msg("status conflict, retrying")
		req, err = h.requests.Transition(ctx, id, actor, body.Status)
	}
	if err != nil {
		return fail(c, err, "failed to update status")
	}
	return c.JSON(http.StatusOK, echo.Map{"request": req})
}
