package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
)

// GET /admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("admin list users")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch users"})
	}
	if users == nil {
		users = []user.User{}
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// POST /admin/users/:id/suspend
func (h *Handler) SuspendUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == c.Get("user_id") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot suspend yourself"})
	}
	return h.setBlocked(c, userID, true, "user suspended")
}

// POST /admin/users/:id/activate
func (h *Handler) ActivateUser(c echo.Context) error {
	return h.setBlocked(c, c.Param("id"), false, "user activated")
}

func (h *Handler) setBlocked(c echo.Context, userID string, blocked bool, msg string) error {
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	err := h.users.SetBlocked(c.Request().Context(), userID, blocked)
	if errors.Is(err, lifecycle.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Bool("blocked", blocked).Msg("admin set blocked")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}
	adminID, _ := c.Get("user_id").(string)
	log.Info().Str("user_id", userID).Bool("blocked", blocked).Str("admin_id", adminID).Msg(msg)
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "user_id": userID})
}
