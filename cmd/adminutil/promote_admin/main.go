package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/config"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/logging"
	"github.com/sudo-init-do/servicehub/internal/store"
)

// promote_admin sets a local user's role to ADMIN. The user must have
// signed in at least once so the identity middleware has mirrored them.
// Usage:
//
//	go run ./cmd/adminutil/promote_admin -id <user id>
func main() {
	id := flag.String("id", "", "ID of the user to promote to admin")
	flag.Parse()

	if *id == "" {
		fmt.Println("usage: go run ./cmd/adminutil/promote_admin -id <user id>")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init("promote_admin", cfg.Env)
	if cfg.StoreDriver == config.DriverMemory {
		log.Fatal().Msg("promote_admin needs a persistent STORE_DRIVER")
	}

	ctx := context.Background()
	handle, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer handle.Close()

	if err := handle.Store.SetRole(ctx, *id, lifecycle.RoleAdmin); err != nil {
		log.Fatal().Err(err).Str("user_id", *id).Msg("failed to promote user to admin")
	}
	fmt.Printf("User %s promoted to admin.\n", *id)
}
