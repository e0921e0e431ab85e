// superparty/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"superparty/config"
	"superparty/database"
	"superparty/handlers"
	"superparty/listeners"
	"superparty/logging"
	"superparty/middleware"
	"superparty/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() && cfg.CORSOrigins == "http://localhost:3000" {
		log.Warn("CORS_ORIGINS not properly configured for production")
	}

	// Storage initialization failure is fatal.
	if err := database.InitDB(cfg, log); err != nil {
		log.Error("database initialization failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer database.CloseDB()

	store := services.NewEntityStore(database.GetDB(), services.StoreOptions{
		MaxPartySize:    cfg.MaxPartySize,
		MaxTeams:        cfg.MaxTeams,
		DefaultTeamName: cfg.DefaultTeamName,
	}, log)
	ctrl := services.NewDatabaseController(store, listeners.NewRegistry(log), log)
	if err := ctrl.Bootstrap(cfg.SeedDefaultHeroes); err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	cleanup := services.NewCleanupService(ctrl, cfg.CleanupInterval, log)

	if err := serve(cfg, ctrl, cleanup, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, ctrl *services.DatabaseController, cleanup *services.CleanupService, log *slog.Logger) error {
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(cfg.IsProduction()),
		BodyLimit:             1 * 1024 * 1024, // 1MB
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handlers.NewPartyHandler(ctrl, cleanup, log, cfg.IsProduction()).Routes(app, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server starting", "port", cfg.Port, "env", cfg.AppEnv, "driver", cfg.DBDriver)
		log.Info("change feed available", "url", "ws://localhost:"+cfg.Port+"/ws")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		if !limiter.Enabled() {
			return nil
		}
		return limiter.Run(gctx, 10*time.Minute, 30*time.Minute)
	})
	g.Go(func() error {
		return cleanup.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
