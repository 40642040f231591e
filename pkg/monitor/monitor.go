// Package monitor serves health, metrics and the tool catalogue on a
// separate admin listener.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/NERVsystems/mapagent/pkg/tools"
	"github.com/NERVsystems/mapagent/pkg/version"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Monitor is the admin HTTP server.
type Monitor struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
}

// New builds the admin app. groups limits /tools to the served tool groups.
func New(addr string, registry *tools.Registry, gatherer prometheus.Gatherer, logger *slog.Logger, groups ...tools.Group) *Monitor {
	app := fiber.New(fiber.Config{
		AppName:               "mapagent monitor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Use(recover.New())

	app.Get("/healthz", HealthHandler())
	app.Get("/metrics", MetricsHandler(gatherer))
	app.Get("/tools", ToolsHandler(registry, groups...))

	return &Monitor{app: app, addr: addr, logger: logger}
}

// App returns the fiber app, for tests.
func (m *Monitor) App() *fiber.App { return m.app }

// Run listens until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("monitor server starting", "addr", m.addr)
		errCh <- m.app.Listen(m.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// HealthHandler reports liveness and build metadata.
func HealthHandler() fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version.Info(),
		})
	}
}

// MetricsHandler serves the Prometheus exposition format for gatherer.
func MetricsHandler(gatherer prometheus.Gatherer) fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// ToolsHandler lists the declared tools with their parameters.
func ToolsHandler(registry *tools.Registry, groups ...tools.Group) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defs := registry.Definitions(groups...)
		return c.JSON(fiber.Map{
			"count": len(defs),
			"tools": defs,
		})
	}
}
