// Package events pushes request status changes to connected parties over
// websockets.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

const writeWait = 5 * time.Second

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StatusEvent is the payload of a "status" event.
type StatusEvent struct {
	RequestID string           `json:"request_id"`
	From      lifecycle.Status `json:"from"`
	To        lifecycle.Status `json:"to"`
	At        time.Time        `json:"at"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub keeps one room of subscribers per request.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

var _ lifecycle.TransitionListener = (*Hub)(nil)

func (h *Hub) register(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[requestID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[requestID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[requestID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, requestID)
	}
}

// Subscribers returns how many connections watch a request.
func (h *Hub) Subscribers(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[requestID])
}

func (h *Hub) broadcast(requestID string, evt wsEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("type", evt.Type).Msg("encode event")
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[requestID]))
	for c := range h.rooms[requestID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			log.Debug().Err(err).Str("request_id", requestID).Msg("drop websocket subscriber")
			h.unregister(requestID, c)
			_ = c.conn.Close()
		}
	}
}

// OnTransition publishes the new status to every subscriber of the request.
func (h *Hub) OnTransition(_ context.Context, req lifecycle.ServiceRequest, from lifecycle.Status) {
	h.broadcast(req.ID, wsEvent{Type: "status", Data: StatusEvent{
		RequestID: req.ID,
		From:      from,
		To:        req.Status,
		At:        req.UpdatedAt,
	}})
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
