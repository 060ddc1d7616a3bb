package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sendora/sendora/internal/api"
	"github.com/sendora/sendora/internal/config"
	"github.com/sendora/sendora/internal/database"
	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/nats"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/publisher"
	"github.com/sendora/sendora/internal/renderer"
	"github.com/sendora/sendora/internal/repository"
	"github.com/sendora/sendora/internal/templates"
	"github.com/sendora/sendora/internal/transport"
	"github.com/sendora/sendora/internal/web"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting send wizard service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Load template catalog
	catalog, err := templates.Load(cfg.TemplatesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load certificate templates")
	}
	log.Info().Int("templates", len(catalog.List())).Msg("certificate templates loaded")

	// 5. Connect to database (optional batch history)
	var history api.BatchHistory
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		batchesRepo := repository.NewBatchesRepository(db.GORM)
		if err := batchesRepo.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate batch history tables")
		}
		history = batchesRepo
	} else {
		log.Info().Msg("DATABASE_URL not set, batch history disabled")
	}

	// 6. Connect to NATS (optional event publishing)
	var pub dispatcher.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureDeliveryStream(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure delivery stream")
			}
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	// 7. WebSocket hub for live delivery progress
	hub := web.NewHub()
	go hub.Run()

	// 8. Delivery pipeline
	limiter := dispatcher.NewRateLimiter(cfg.SendRatePerSec, cfg.SendBurst)
	tracker := dispatcher.NewTracker(hub, pub, log)
	disp := dispatcher.NewService(dispatcher.Options{
		Concurrency: cfg.SendConcurrency,
		MaxRetries:  cfg.MaxRetries,
		RetryBase:   time.Duration(cfg.RetryBaseMS) * time.Millisecond,
	}, limiter, tracker, log)

	transports := func(creds models.SMTPCredentials) transport.Transport {
		return transport.NewSMTP(creds)
	}

	pipe := pipeline.NewService(catalog, renderer.New(catalog), disp, transports, log)
	registry := api.NewBatchRegistry(pipe, history, log)

	// 9. Web server (static wizard UI + websocket)
	webServer := web.NewServer(&web.Config{
		Port:      cfg.HTTPPort,
		StaticDir: cfg.StaticDir,
	}, hub)
	webServer.SetupSPAFallback()

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
		if err := webServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("web server error")
		}
	}()

	// 10. REST API server
	apiServer := api.NewServer(&api.Config{
		Port:        cfg.APIPort,
		Title:       "Sendora API",
		Description: "Bulk certificate and email distribution",
		Version:     "1.0.0",
	}, &api.Dependencies{
		Catalog:    catalog,
		History:    history,
		Transports: transports,
		Hub:        hub,
		Registry:   registry,
	})

	go func() {
		log.Info().Int("port", cfg.APIPort).Msg("starting api server")
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("api server error")
		}
	}()

	// 11. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = webServer.Stop(shutdownCtx)
	_ = apiServer.Stop(shutdownCtx)

	log.Info().Msg("shutdown complete")
}
