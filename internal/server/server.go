// Package server exposes a read-only HTTP API over the persisted
// promotion snapshots. The pipeline itself runs out of band; the API
// only serves what the last run wrote.
package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"promowatch/internal/metrics"
	"promowatch/internal/track"
)

type Server struct {
	app    *fiber.App
	store  *track.Store
	logger *slog.Logger
}

func New(store *track.Store, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s := &Server{app: app, store: store, logger: logger}

	// Request ID + logging + metrics middleware.
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status)
		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
		}
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/plain; version=0.0.4")
		return c.SendString(metrics.Export())
	})

	app.Get("/v1/promotions", s.listCompetitors)
	app.Get("/v1/promotions/:competitor", s.getCompetitor)

	return s
}

func (s *Server) listCompetitors(c *fiber.Ctx) error {
	names, err := s.store.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "listing snapshots failed",
		})
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"success": true, "competitors": names})
}

func (s *Server) getCompetitor(c *fiber.Ctx) error {
	doc, err := s.store.Read(c.Params("competitor"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "no snapshot for competitor",
		})
	}
	return c.JSON(fiber.Map{"success": true, "run": doc})
}

// Listen blocks serving HTTP until the listener fails or the app is
// shut down.
func (s *Server) Listen(host string, port int) error {
	return s.app.Listen(fmt.Sprintf("%s:%d", host, port))
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
