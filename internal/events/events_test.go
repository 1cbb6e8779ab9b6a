package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/servicehub/internal/events"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/store/memory"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

type message struct {
	Type string             `json:"type"`
	Data events.StatusEvent `json:"data"`
}

// fakeAuth stands in for the JWT middleware: X-User and X-Role become the actor.
func fakeAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set("user_id", c.Request().Header.Get("X-User"))
		c.Set("role", c.Request().Header.Get("X-Role"))
		return next(c)
	}
}

type setup struct {
	mgr *lifecycle.Manager
	hub *events.Hub
	srv *httptest.Server
	req *lifecycle.ServiceRequest
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.UpsertProfile(context.Background(), &workers.Profile{UserID: "w1", DisplayName: "Ada", Category: "Tailor"}))

	hub := events.NewHub()
	mgr := lifecycle.NewManager(st, lifecycle.NewKeyedLocker(), lifecycle.WithTransitionListener(hub))
	req, err := mgr.Create(context.Background(),
		lifecycle.Actor{UserID: "c1", Role: lifecycle.RoleCustomer}, "w1",
		lifecycle.Terms{ListingType: lifecycle.ListingOnDemand, Price: 100})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/requests/:id/events", events.NewHandler(hub, mgr).RequestEvents, fakeAuth)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &setup{mgr: mgr, hub: hub, srv: srv, req: req}
}

func (s *setup) dial(t *testing.T, userID, role string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/requests/" + s.req.ID + "/events"
	header := http.Header{}
	header.Set("X-User", userID)
	header.Set("X-Role", role)
	return websocket.DefaultDialer.Dial(url, header)
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var m message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestPartiesReceiveStatusEvents(t *testing.T) {
	s := newSetup(t)

	customerConn, _, err := s.dial(t, "c1", "CUSTOMER")
	require.NoError(t, err)
	defer customerConn.Close()
	workerConn, _, err := s.dial(t, "w1", "WORKER")
	require.NoError(t, err)
	defer workerConn.Close()

	snap := read(t, customerConn)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, lifecycle.StatusPending, snap.Data.To)
	read(t, workerConn)
	assert.Equal(t, 2, s.hub.Subscribers(s.req.ID))

	_, err = s.mgr.Transition(context.Background(), s.req.ID,
		lifecycle.Actor{UserID: "w1", Role: lifecycle.RoleWorker}, lifecycle.StatusAccepted)
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{customerConn, workerConn} {
		m := read(t, conn)
		assert.Equal(t, "status", m.Type)
		assert.Equal(t, s.req.ID, m.Data.RequestID)
		assert.Equal(t, lifecycle.StatusPending, m.Data.From)
		assert.Equal(t, lifecycle.StatusAccepted, m.Data.To)
	}
}

func TestOutsiderIsRejected(t *testing.T) {
	s := newSetup(t)

	_, resp, err := s.dial(t, "stranger", "CUSTOMER")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, s.hub.Subscribers(s.req.ID))
}

func TestUnknownRequestIsNotFound(t *testing.T) {
	s := newSetup(t)
	s.req = &lifecycle.ServiceRequest{ID: "missing"}

	_, resp, err := s.dial(t, "c1", "CUSTOMER")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	s := newSetup(t)
	conn, _, err := s.dial(t, "c1", "CUSTOMER")
	require.NoError(t, err)
	read(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return s.hub.Subscribers(s.req.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
