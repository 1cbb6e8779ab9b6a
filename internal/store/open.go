// Package store selects and connects the configured storage driver.
package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/config"
	"github.com/sudo-init-do/servicehub/internal/db"
	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/store/memory"
	"github.com/sudo-init-do/servicehub/internal/store/mongostore"
	"github.com/sudo-init-do/servicehub/internal/store/postgres"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

// Store is implemented by every driver.
type Store interface {
	lifecycle.Store
	workers.Store
	jobs.Store
	user.Store
	alerts.Store
}

// Handle is an open driver.
type Handle struct {
	Store Store
	// Ping reports whether the backing database is reachable.
	Ping  func(ctx context.Context) error
	Close func()
}

// Open connects the driver named by cfg.StoreDriver and prepares its schema
// or indexes.
func Open(ctx context.Context, cfg *config.Config) (*Handle, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return &Handle{
			Store: memory.New(),
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil

	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.Mongo.Database)
		if err := db.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &Handle{
			Store: mongostore.New(database),
			Ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					log.Warn().Err(err).Msg("mongo disconnect")
				}
			},
		}, nil

	default:
		pool, err := db.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Handle{Store: postgres.New(pool), Ping: pool.Ping, Close: pool.Close}, nil
	}
}
