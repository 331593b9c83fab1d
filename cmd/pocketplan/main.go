package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pocketplan/internal/aggregate"
	"pocketplan/internal/amqp"
	"pocketplan/internal/auth"
	"pocketplan/internal/cache"
	"pocketplan/internal/cli"
	"pocketplan/internal/core"
	apphttp "pocketplan/internal/http"
	"pocketplan/internal/log"
	"pocketplan/internal/services"
	"pocketplan/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	res, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Change messages keep caches coherent across instances. Optional.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	locale := core.ParseLocale(cfg.Locale)
	bucketer := aggregate.New(cfg.Location(), locale)
	ledgers := services.NewLedgerService(res.Store, publisher, bucketer, services.LedgerOptions{
		CacheTTL: cfg.CacheTTL,
	}, logger)

	var google auth.TokenVerifier
	if cfg.GoogleClientID != "" {
		v, err := auth.NewIDTokenVerifier(context.Background(), cfg.GoogleClientID)
		if err != nil {
			logger.Error("Failed to initialize Google token verifier", log.FieldError, err)
			os.Exit(1)
		}
		google = v
	}

	tokenBook := auth.NewTokenBook()
	provider := auth.NewLocalProvider(res.Store, tokenBook, auth.LocalOptions{
		BcryptCost:    cfg.BcryptCost,
		PublicBaseURL: cfg.PublicBaseURL,
		Google:        google,
	}, logger)
	registry := auth.NewRegistry()
	tokens := auth.NewTokens(cli.SessionSecret(logger, cfg), cfg.SessionTTL, registry)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Backend:            cfg.DataBackend,
		AuthRequired:       cfg.AuthRequired,
		Locale:             locale,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Ledgers:  ledgers,
		Provider: provider,
		Tokens:   tokens,
		Store:    res.Store,
		Logger:   logger,
	})

	caches := cache.NewManager(logger)
	for name, c := range ledgers.Caches() {
		caches.Register(name, c)
	}
	caches.Register("sessions", registry)
	caches.Register("email_tokens", tokenBook)
	caches.Register("rate_limit_clients", srv.Limiter())
	if err := caches.StartCleanup(time.Minute); err != nil {
		logger.Error("Failed to schedule cache cleanup", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	if amqpClient != nil {
		changes := worker.NewChangeWorker(amqpClient, ledgers, logger)
		go func() {
			if err := changes.Run(ctx); err != nil {
				logger.Error("Change consumption failed", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting pocketplan server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_required", cfg.AuthRequired,
		"demo", res.Demo)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		<-done
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
