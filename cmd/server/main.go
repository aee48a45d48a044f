package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"route_editor/internal/config"
	"route_editor/internal/controllers"
	"route_editor/internal/directions"
	"route_editor/internal/editor"
	"route_editor/internal/logger"
	"route_editor/internal/middleware"
	"route_editor/internal/routes"
	"route_editor/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogFile, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}
	middleware.SetSecret(cfg.JWTSecret)

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Database unavailable.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	routeStore := store.New(db)
	paths := directions.NewClient(cfg.DirectionsAPIKey, cfg.DirectionsBaseURL)
	if cfg.DirectionsAPIKey == "" {
		logrus.Warn("DIRECTIONS_API_KEY not set, path previews will be straight lines.")
	}
	sessions := editor.NewRegistry(routeStore, paths)

	var feed *store.Feed
	if cfg.FeedEnabled {
		feed = store.NewFeed(routeStore)
		go feed.Run(ctx)
		if err := store.Listen(ctx, cfg.DSN(), feed); err != nil {
			logrus.WithError(err).Warn("Live route feed disabled.")
			feed = nil
		}
	}

	h := controllers.NewHandler(routeStore, sessions, paths, feed)
	r := routes.SetupRouter(h)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: middleware.CORS(cfg.AllowedOrigins)(r),
	}
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server stopped.")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed.")
	}
}
