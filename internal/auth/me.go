package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/servicehub/internal/user"
)

// Me returns the currently authenticated user's record
func Me(c echo.Context) error {
	u, ok := c.Get("user").(*user.User)
	if !ok || u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"is_blocked": u.IsBlocked,
		"created_at": u.CreatedAt,
	})
}
