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

	"github.com/blockedby/spending-stats/internal/config"
	"github.com/blockedby/spending-stats/internal/database"
	"github.com/blockedby/spending-stats/internal/logger"
	"github.com/blockedby/spending-stats/internal/publisher"
	"github.com/blockedby/spending-stats/internal/repository"
	"github.com/blockedby/spending-stats/internal/web"
	"github.com/blockedby/spending-stats/internal/web/handlers"
)

func main() {
	// 1. Load .env (optional) and config
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting spending stats service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 4. Open database
	db, err := database.Open(ctx, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Str("dialect", string(db.Dialect)).Msg("database ready")

	// 5. Connect to NATS when configured
	var events handlers.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := publisher.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			events = publisher.NewNATSPublisher(nc)
		}
	}

	// 6. Templates, repositories and handlers
	tmpl := web.NewTemplateEngine(web.DefaultTemplates())
	if err := tmpl.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}

	spendingRepo := repository.NewSpendingRepository(db)
	pagesHandler := handlers.NewPagesHandler(tmpl)
	spendingHandler := handlers.NewSpendingHandler(spendingRepo, tmpl, events)

	// 7. Server
	server := web.NewServer(&web.Config{
		Port:               cfg.HTTPPort,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WriteRateLimit:     cfg.WriteRateLimit,
		WriteRateBurst:     cfg.WriteRateBurst,
	}, db, log)
	server.RegisterPagesHandler(pagesHandler)
	server.RegisterSpendingHandler(spendingHandler)

	log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// 8. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
