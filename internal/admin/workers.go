package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// POST /admin/workers/:id/verify
func (h *Handler) VerifyWorker(c echo.Context) error {
	return h.setVerified(c, true, "worker verified")
}

// POST /admin/workers/:id/unverify
func (h *Handler) UnverifyWorker(c echo.Context) error {
	return h.setVerified(c, false, "worker unverified")
}

func (h *Handler) setVerified(c echo.Context, verified bool, msg string) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "worker profile id required"})
	}
	ctx := c.Request().Context()
	err := h.workers.SetVerified(ctx, id, verified)
	if errors.Is(err, lifecycle.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "worker profile not found"})
	}
	if err != nil {
		log.Error().Err(err).Str("profile_id", id).Msg("admin set verified")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update worker profile"})
	}
	// Verified profiles sort first in discovery.
	if err := h.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("discovery cache invalidation failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "profile_id": id})
}
