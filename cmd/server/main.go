// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/nearby-market/internal/config"
	"github.com/javajoker/nearby-market/internal/database"
	"github.com/javajoker/nearby-market/internal/i18n"
	"github.com/javajoker/nearby-market/internal/middleware"
	"github.com/javajoker/nearby-market/internal/repository"
	"github.com/javajoker/nearby-market/internal/repository/gormstore"
	"github.com/javajoker/nearby-market/internal/repository/memstore"
	"github.com/javajoker/nearby-market/internal/repository/mongostore"
	"github.com/javajoker/nearby-market/internal/router"
	"github.com/javajoker/nearby-market/internal/scheduler"
)

func main() {
	log := logrus.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogger(log, cfg.Logging)

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer store.Close()

	svc := router.NewServices(store, cfg.Marketplace, log, nil)

	// The geo index lives in memory only; reload it from the store
	if _, err := svc.Vendors.RebuildIndex(ctx); err != nil {
		log.WithError(err).Fatal("Failed to rebuild geo index")
	}

	sweeper := scheduler.NewExpirySweeper(svc.Campaigns, cfg.Marketplace.ExpirySchedule, cfg.Marketplace.ExpiryTimeout, log.WithField("component", "expiry"))
	if err := sweeper.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start campaign expiry sweeper")
	}
	defer sweeper.Stop()

	// Other instances may onboard vendors into a shared store
	if cfg.Database.Driver != config.DriverMemory {
		refresher := scheduler.NewIndexRefresher(svc.Vendors, cfg.Marketplace.IndexSyncSchedule, cfg.Marketplace.ExpiryTimeout, log.WithField("component", "geo-sync"))
		if err := refresher.Start(ctx); err != nil {
			log.WithError(err).Fatal("Failed to start geo index refresher")
		}
		defer refresher.Stop()
	}

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router.Initialize(svc, cfg, limiter, log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Server.Port,
			"driver": cfg.Database.Driver,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("Server stopped unexpectedly")
	}
	log.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func configureLogger(log *logrus.Logger, cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("Using the in-memory store; data is lost on restart")
		return memstore.New(), nil
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		store := mongostore.New(client, cfg.Database.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := database.RunMigrations(db, log); err != nil {
		return nil, err
	}

	return gormstore.New(db), nil
}
