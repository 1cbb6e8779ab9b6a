package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/config"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/logging"
	"github.com/sudo-init-do/servicehub/internal/middleware"
	"github.com/sudo-init-do/servicehub/internal/store"
	"github.com/sudo-init-do/servicehub/internal/user"
)

// issue_token registers a principal locally and prints a signed token for
// it. It stands in for the identity provider during development.
// Usage:
//
//	go run ./cmd/adminutil/issue_token -role WORKER -name "Ada" -email ada@example.com
func main() {
	id := flag.String("id", "", "user ID (random when empty)")
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "email address")
	role := flag.String("role", string(lifecycle.RoleCustomer), "CUSTOMER, WORKER, BUSINESS or ADMIN")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if !lifecycle.Role(*role).Valid() {
		log.Fatal().Str("role", *role).Msg("unknown role")
	}
	if *id == "" {
		*id = uuid.New().String()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init("issue_token", cfg.Env)

	ctx := context.Background()
	handle, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer handle.Close()

	u, err := handle.Store.EnsureUser(ctx, &user.User{
		ID:        *id,
		Name:      *name,
		Email:     *email,
		Role:      lifecycle.Role(*role),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("register user")
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, *u, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}
	fmt.Printf("user_id: %s\nrole:    %s\ntoken:   %s\n", u.ID, u.Role, token)
}
