package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/callpulse/lead-intake/internal/auth"
	"github.com/callpulse/lead-intake/internal/config"
	"github.com/callpulse/lead-intake/internal/database"
	"github.com/callpulse/lead-intake/internal/handler"
	"github.com/callpulse/lead-intake/internal/metrics"
	middlewarepkg "github.com/callpulse/lead-intake/internal/middleware"
	"github.com/callpulse/lead-intake/internal/queue"
	"github.com/callpulse/lead-intake/internal/repository"
	"github.com/callpulse/lead-intake/internal/router"
	"github.com/callpulse/lead-intake/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer pool.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	usersRepo := repository.NewPGXUsersRepository(pool)
	leadsRepo := repository.NewPGXLeadsRepository(pool)
	dedupRepo := repository.NewPGXDedupRepository(pool, cfg.DedupWindow)
	queueRepo := repository.NewPGXSyncQueueRepository(pool)

	authService := service.NewAuthService(usersRepo, jwtManager)
	receiverService := service.NewReceiverService(leadsRepo, dedupRepo, queueRepo, cfg.StorageTimeout)
	leadsService := service.NewLeadsService(leadsRepo)

	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Webhook: handler.NewWebhookHandler(receiverService),
		Leads:   handler.NewLeadAdminHandler(leadsService),
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	// The sync worker only runs when a broker is configured; without one
	// leads still queue up in crm_sync_queue for a worker elsewhere.
	if cfg.AMQPURL != "" {
		publisher, err := queue.NewAMQPPublisher(cfg.AMQPURL, cfg.SyncExchange, cfg.SyncRoutingKey)
		if err != nil {
			log.Fatalf("failed to connect broker: %v", err)
		}
		defer publisher.Close()

		worker := queue.NewWorker(queueRepo, leadsRepo, publisher, cfg.SyncPollInterval, cfg.SyncMaxAttempts)
		go worker.Run(workerCtx)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(metrics.HTTP())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, handlers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
