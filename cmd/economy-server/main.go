package main

import (
	"context"
	"net/http"
	"time"

	"pawshop-economy/internal/cache"
	"pawshop-economy/internal/config"
	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/economy"
	"pawshop-economy/internal/logging"
	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"
	httptransport "pawshop-economy/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	var remote cache.Remote
	if cfg.RedisAddr != "" {
		remote = cache.NewRedisRemote(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR unset, config cache runs on the in-process fallback only")
	}
	resilient := cache.New(remote, cache.Options{
		FailureThreshold: cfg.CacheBreakerFailures,
		Cooldown:         time.Duration(cfg.CacheBreakerCooldown) * time.Second,
	})
	cfgStore := configstore.New(st, resilient, nil)

	if cfg.SeedConfigPath != "" {
		if err := seedConfigs(context.Background(), st, cfg.SeedConfigPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.SeedConfigPath).Msg("config seeding failed")
		}
	}

	mut := mutator.New(st)
	machine := session.NewMachine(st, mut, cfgStore, nil, nil)
	svc := economy.NewService(st, mut, cfgStore, machine, nil, nil, cfg)

	go runDailyReset(context.Background(), svc)

	r := httptransport.NewRouter(svc, st, cfg)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// runDailyReset fires the wheel-counter reset shortly after every UTC
// midnight. The job is idempotent and backstopped by the lazy per-account
// reset, so a missed or doubled tick is harmless.
func runDailyReset(ctx context.Context, svc *economy.Service) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24*time.Hour + time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if err := svc.RunDailyReset(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled daily reset failed")
		}
	}
}
