package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"campus-market/internal/config"
	"campus-market/internal/database"
	"campus-market/internal/engine"
	"campus-market/internal/handlers"
	"campus-market/internal/middleware"
	"campus-market/internal/notify"
	"campus-market/internal/utils"
	"campus-market/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	middleware.SetJWTSecret(cfg.JWTSecret)
	metrics := utils.NewMetricsCollector()

	// Optional write-through store. "memory" runs the engine without one.
	var store database.StoreAdapter
	if cfg.Database.Type == "postgres" {
		pg, err := database.NewPostgresDB(cfg.Database.URI)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.InitializeTables(ctx); err != nil {
			cancel()
			logger.Fatal("failed to initialize tables", zap.Error(err))
		}
		cancel()
		defer pg.Close(context.Background())
		store = pg
		logger.Info("postgres store initialized")
	}

	system := actor.NewActorSystem()
	marketEngine := engine.NewEngine(system, store, metrics, logger)

	hub := websocket.NewHub(metrics, logger)
	limiter := middleware.NewSendLimiter(cfg.SendRatePerMinute, logger)
	notifier := notify.NewEmailNotifier(cfg.Email.APIKey, cfg.Email.SenderEmail, cfg.Email.SenderName, logger)

	server := handlers.NewServer(system, marketEngine, metrics, hub, limiter, notifier, logger)

	cors := middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins))
	handler := cors(server.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("db_type", cfg.Database.Type),
		zap.Bool("email_enabled", notifier.Enabled()))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
