package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const shutdownTimeout = 30 * time.Second

func runServer(cfg *config.Config) error {
	logx.Info("🚀 Starting chatkeep API server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Cleanup()

	app := newApp(container)

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	container.StartBackgroundServices(bgCtx)

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logx.Info("=" + strings.Repeat("=", 60))
		logx.Infof("🚀 Server listening on %s", addr)
		logx.Infof("💚 Health Check: http://localhost%s/health", addr)
		logx.Infof("📈 Metrics: http://localhost%s/metrics", addr)
		logx.Info("=" + strings.Repeat("=", 60))
		listenErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		logx.Info("🛑 Shutdown signal received, shutting down gracefully...")
	case err := <-listenErr:
		cancelBackground()
		container.Chat.Wait()
		return err
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	cancelBackground()
	container.Chat.Wait()

	logx.Info("✅ Server exited successfully")
	return nil
}

func newApp(container *Container) *fiber.App {
	cfg := container.Config

	app := fiber.New(fiber.Config{
		AppName:               "chatkeep",
		DisableStartupMessage: true,
		ErrorHandler:          errx.FiberErrorHandler(cfg.Server.Debug),
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: func() string { return "req-" + uuid.NewString() },
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-User-ID, X-Request-ID",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: fiber.HeaderXRequestID,
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${respHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Get("/health", healthCheckHandler(container))
	app.Get("/metrics", adaptor.HTTPHandler(container.Metrics.Handler()))

	container.Chat.Handlers.RegisterRoutes(app, container.Chat.IdentityMiddleware)

	app.Use(notFoundHandler)
	return app
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "chatkeep",
			"version": container.Config.Server.Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		}

		status := fiber.StatusOK
		for name, state := range container.Health(c.UserContext()) {
			health[name] = state
			if state != "healthy" {
				health["status"] = "degraded"
				status = fiber.StatusServiceUnavailable
			}
		}

		health["handle_cache"] = container.Chat.Service.CacheStats().Total
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
}
