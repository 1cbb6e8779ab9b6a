// Package admin serves the oversight endpoints mounted under /admin.
package admin

import (
	"context"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

// RequestLister lists requests visible to an actor; admins see every request.
type RequestLister interface {
	List(ctx context.Context, actor lifecycle.Actor, filter lifecycle.RequestFilter) ([]lifecycle.ServiceRequest, error)
}

type Handler struct {
	users    user.Store
	workers  workers.Store
	cache    workers.Cache
	requests RequestLister
}

func NewHandler(users user.Store, profiles workers.Store, cache workers.Cache, requests RequestLister) *Handler {
	if cache == nil {
		cache = workers.NopCache{}
	}
	return &Handler{users: users, workers: profiles, cache: cache, requests: requests}
}
