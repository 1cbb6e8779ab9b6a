package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// GET /admin/requests?status=
func (h *Handler) ListRequests(c echo.Context) error {
	actor := lifecycle.Actor{Role: lifecycle.RoleAdmin}
	actor.UserID, _ = c.Get("user_id").(string)

	items, err := h.requests.List(c.Request().Context(), actor, lifecycle.RequestFilter{
		Status: lifecycle.Status(c.QueryParam("status")),
	})
	if errors.Is(err, lifecycle.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err != nil {
		log.Error().Err(err).Msg("admin list requests")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch requests"})
	}
	if items == nil {
		items = []lifecycle.ServiceRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": items})
}
