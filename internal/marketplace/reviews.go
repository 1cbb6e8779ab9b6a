package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/servicehub/internal/middleware"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// POST /requests/:id/review
func (h *Handler) CreateReview(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body ReviewRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	review, summary, err := h.requests.RecordReview(c.Request().Context(), c.Param("id"), actor, body.Rating, body.Comment)
	if err != nil {
		return fail(c, err, "failed to submit review")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"review":        review,
		"rating":        summary.Average,
		"total_reviews": summary.Count,
	})
}
