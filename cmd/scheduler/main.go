package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/internal/scheduler"
	"backoffice_portal_backend/platform/cache"
	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsRedisEnabled() {
		log.Error("REDIS_URL not configured; scheduler cannot run")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	profile, err := config.LoadProviderProfile(cfg.GetProviderProfilePath())
	if err != nil {
		log.Error("failed to load provider profile", "error", err)
		panic("failed to load provider profile: " + err.Error())
	}

	responseCache := client.NewCache(cfg, rdb, log)
	clients := map[string]*client.Client{
		"domestic":      client.New(profile.Domestic, client.VariantDomestic, cfg, responseCache, log),
		"international": client.New(profile.International, client.VariantInternational, cfg, responseCache, log),
	}

	worker, err := scheduler.NewWorker(cfg, clients, responseCache, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return periodic.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
