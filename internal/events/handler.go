package events

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/middleware"
)

// RequestReader loads a request on behalf of an actor, enforcing visibility.
type RequestReader interface {
	Get(ctx context.Context, requestID string, actor lifecycle.Actor) (*lifecycle.ServiceRequest, error)
}

type Handler struct {
	hub      *Hub
	requests RequestReader
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, requests RequestReader) *Handler {
	return &Handler{
		hub:      hub,
		requests: requests,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RequestEvents - GET /requests/:id/events, streams status changes to a party
func (h *Handler) RequestEvents(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id"})
	}

	req, err := h.requests.Get(c.Request().Context(), requestID, actor)
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
	case errors.Is(err, lifecycle.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this request"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load request"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: ws}
	h.hub.register(req.ID, cl)

	// Greet with the current status so a late subscriber starts in sync.
	_ = cl.write(mustJSON(wsEvent{Type: "snapshot", Data: StatusEvent{
		RequestID: req.ID,
		From:      req.Status,
		To:        req.Status,
		At:        req.UpdatedAt,
	}}))

	// Server push only; reads just detect the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.hub.unregister(req.ID, cl)
			_ = ws.Close()
			return nil
		}
	}
}
