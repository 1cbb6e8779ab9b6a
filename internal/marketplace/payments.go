package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type PaymentRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required,max=200"`
}

// POST /admin/requests/:id/paid
func (h *Handler) MarkPaid(c echo.Context) error {
	var body PaymentRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	req, err := h.requests.RecordPayment(c.Request().Context(), c.Param("id"), body.PaymentRef)
	if err != nil {
		return fail(c, err, "failed to record payment")
	}
	return c.JSON(http.StatusOK, echo.Map{"request": req})
}
