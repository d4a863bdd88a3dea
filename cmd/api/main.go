package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scrapesafe/scrapesafe-backend/api/routes"
	"github.com/scrapesafe/scrapesafe-backend/internal/cron"
	"github.com/scrapesafe/scrapesafe-backend/internal/licensing"
	"github.com/scrapesafe/scrapesafe-backend/internal/nonces"
	"github.com/scrapesafe/scrapesafe-backend/internal/sites"
	"github.com/scrapesafe/scrapesafe-backend/internal/verification"
	"github.com/scrapesafe/scrapesafe-backend/pkg/config"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
	"github.com/scrapesafe/scrapesafe-backend/pkg/metrics"
	"github.com/scrapesafe/scrapesafe-backend/pkg/migrate"
	"github.com/scrapesafe/scrapesafe-backend/pkg/pinning"
	"github.com/scrapesafe/scrapesafe-backend/pkg/redis"
	"github.com/scrapesafe/scrapesafe-backend/pkg/signer"
	"github.com/scrapesafe/scrapesafe-backend/pkg/story"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	apiMetrics := metrics.NewAPIMetrics(promRegistry)

	signingIdentity, err := signer.New(cfg.Signer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to load signing identity", err)
		os.Exit(1)
	}

	storyClient := story.NewClient(cfg.Story.BaseURL, cfg.Story.APIKey, cfg.Story.SPGNFT, cfg.Story.Timeout)
	pinningClient := pinning.NewClient(cfg.Pinning.BaseURL, cfg.Pinning.Token, cfg.Pinning.Timeout)

	sitesRepo := sites.NewRepository(dbClient.DB())
	sitesService, err := sites.NewService(sitesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create site service", err)
		os.Exit(1)
	}

	checker := verification.NewChecker(nil, verification.NewHTTPFetcher(cfg.Verification.FetchTimeout))
	verificationService, err := verification.NewService(verification.ServiceParams{
		Repo:      sitesRepo,
		Checker:   checker,
		Registrar: storyClient,
		Metrics:   apiMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	checkCache := licensing.NewCheckCache(cfg.LicenseCache.TTL, nil)
	licensingService, err := licensing.NewService(licensing.ServiceParams{
		Repo:    licensing.NewRepository(dbClient.DB()),
		Sites:   sitesRepo,
		Signer:  signingIdentity,
		Pinner:  pinningClient,
		Cache:   checkCache,
		Metrics: apiMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create licensing service", err)
		os.Exit(1)
	}

	noncesService, err := nonces.NewService(nonces.NewRepository(dbClient.DB()), nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create nonce service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewCacheSweepJob(cron.CacheSweepJobParams{
		Logger: logg,
		Cache:  checkCache,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cache sweep job", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			sitesService,
			verificationService,
			licensingService,
			noncesService,
		),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The check cache lives in this process, so its sweep runs here rather
	// than in the cron worker.
	go func() {
		ticker := time.NewTicker(cfg.LicenseCache.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCtx.Done():
				return
			case <-ticker.C:
				if err := sweepJob.Run(stopCtx); err != nil {
					logg.Error(stopCtx, "cache sweep failed", err)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
