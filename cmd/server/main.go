package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/config"
	"github.com/sudo-init-do/servicehub/internal/db"
	"github.com/sudo-init-do/servicehub/internal/events"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/logging"
	"github.com/sudo-init-do/servicehub/internal/redislock"
	"github.com/sudo-init-do/servicehub/internal/store"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init("servicehub", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer handle.Close()
	st := handle.Store

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()
	}

	var locker lifecycle.Locker = lifecycle.NewKeyedLocker()
	if cfg.LockBackend == config.LockRedis {
		locker = redislock.New(rdb, cfg.LockTTL)
	}

	var cache workers.Cache = workers.NopCache{}
	hub := events.NewHub()
	opts := []lifecycle.Option{lifecycle.WithTransitionListener(hub)}
	if rdb != nil {
		rc := workers.NewRedisCache(rdb, cfg.CacheTTL)
		cache = rc
		opts = append(opts, lifecycle.WithRatingListener(rc))
	}

	var worker *asynq.Server
	if cfg.AlertsEnabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		client := asynq.NewClient(redisOpt)
		defer client.Close()

		notifier := alerts.NewNotifier(client)
		opts = append(opts,
			lifecycle.WithCompletionHook(notifier),
			lifecycle.WithTransitionListener(notifier),
		)

		worker = alerts.NewServer(redisOpt, cfg.AlertsConcurrency)
		if err := worker.Start(alerts.NewProcessor(st).Mux()); err != nil {
			log.Fatal().Err(err).Msg("start alerts worker")
		}
		log.Info().Int("concurrency", cfg.AlertsConcurrency).Msg("alerts worker started")
	}

	mgr := lifecycle.NewManager(st, locker, opts...)

	e := newServer(cfg, deps{
		store:   st,
		manager: mgr,
		cache:   cache,
		hub:     hub,
		ready:   handle.Ping,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("locks", cfg.LockBackend).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if worker != nil {
		worker.Shutdown()
	}
}
