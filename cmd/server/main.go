package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/zjoart/varlixo/cmd/routes"
	"github.com/zjoart/varlixo/internal/fx"
	"github.com/zjoart/varlixo/internal/middleware"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/support"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/config"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/events"
	"github.com/zjoart/varlixo/pkg/logger"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Env)
	defer logger.Sync()

	db := database.Connect(cfg.DBUrl)
	database.Migrate(db, routes.Models()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := events.NewRedisClient(cfg)
	defer redisClient.Close()

	// start background worker
	worker := notification.NewWorker(redisClient, notification.NewSMTPMailer(cfg.SMTP))
	worker.Start(ctx)

	chatRepo := support.NewMemoryRepository()
	if cfg.MongoURI != "" {
		mongoClient, mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", logger.WithError(err))
		}
		defer mongoClient.Disconnect(context.Background())

		chatRepo, err = support.NewMongoRepository(ctx, mongoDB)
		if err != nil {
			logger.Fatal("Failed to prepare support chat collections", logger.WithError(err))
		}
	} else {
		logger.Warn("MONGODB_URI not set, support chat is kept in memory")
	}

	limiter := middleware.NewRateLimiter(rate.Limit(1), 5)
	defer limiter.Stop()

	r := mux.NewRouter()
	handler := routes.RegisterRoutes(r, cfg, routes.Dependencies{
		DB:       db,
		Notifier: notification.NewQueueNotifier(user.NewRepository(db), redisClient),
		ChatRepo: chatRepo,
		Rates:    fx.NewDefaultClient(cfg.FXTimeout),
		Limiter:  limiter,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.Fields{"port": cfg.Port, "env": cfg.Env})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", logger.Fields{"port": cfg.Port, "error": err.Error()})
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", logger.WithError(err))
	}
	worker.Wait()
	logger.Info("Server gracefully shut down")
}
