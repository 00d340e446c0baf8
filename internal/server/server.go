// Package server exposes the webhook receiver, health checks and metrics
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/ingest"
	"github.com/edgard/inboxintel/internal/logger"
)

const (
	serviceName     = "InboxIntel"
	bodyLimit       = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Ingester stores a received message.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (ingest.Result, error)
}

// HealthChecker reports store health and backlog.
type HealthChecker interface {
	Ping(ctx context.Context) error
	CountByState(ctx context.Context) (map[database.ProcessingState]int, error)
}

// Server is the HTTP front of the pipeline.
type Server struct {
	app    *fiber.App
	cfg    config.ServerConfig
	ingest Ingester
	health HealthChecker
	log    *slog.Logger
}

// New creates a Server and registers its routes.
func New(cfg config.ServerConfig, ingester Ingester, health HealthChecker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http_server")

	s := &Server{cfg: cfg, ingest: ingester, health: health, log: log}
	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             bodyLimit,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(logger.Middleware(log))

	s.app.Get("/", s.root)
	s.app.Get("/healthz", s.healthz)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Post("/webhooks/:source/messages", s.receiveMessage)

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	msg := err.Error()
	if code >= fiber.StatusInternalServerError && fe == nil {
		msg = "internal server error"
	}
	return c.Status(code).JSON(errorResponse{Success: false, Error: msg})
}
