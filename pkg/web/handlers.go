package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/grovesy/watchpost/pkg/presence"
)

// handleStatus returns the session status plus connection counts.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := s.session.Status()
	return c.JSON(fiber.Map{
		"session": status,
		"clients": fiber.Map{
			"overlay": s.overlayHub.ClientCount(),
			"frames":  s.frameHub.ClientCount(),
			"status":  s.statusHub.ClientCount(),
		},
	})
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	s.session.Start()
	return c.JSON(fiber.Map{"state": s.session.Status().State})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.session.Stop()
	return c.JSON(fiber.Map{"state": s.session.Status().State})
}

// WatchRequest reconfigures what the presence tracker watches.
type WatchRequest struct {
	Class         string `json:"class"`
	WindowSeconds *int   `json:"window_seconds"`
}

func (s *Server) handleGetWatch(c *fiber.Ctx) error {
	status := s.session.Status()
	return c.JSON(fiber.Map{
		"class":          status.WatchClass,
		"window_seconds": int(status.Window / time.Second),
		"choices":        presence.WindowChoices,
	})
}

func (s *Server) handleSetWatch(c *fiber.Ctx) error {
	var req WatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if req.Class != "" {
		s.session.SetWatchClass(req.Class)
	}
	if req.WindowSeconds != nil {
		if *req.WindowSeconds < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "window_seconds must be >= 0"})
		}
		s.session.SetWindow(time.Duration(*req.WindowSeconds) * time.Second)
	}

	return s.handleGetWatch(c)
}

// handleCapture runs a manual capture-and-analyze and waits for the result.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := s.session.CaptureNow(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

func (s *Server) handleAnalyses(c *fiber.Ctx) error {
	s.analysesMu.RLock()
	defer s.analysesMu.RUnlock()
	return c.JSON(s.analyses)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.cameras.GetConfigJSON())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := s.cameras.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.cameras.GetConfigJSON())
}

// ViewportRequest reports the browser's display size so boxes can be mapped
// into the element the stream is rendered in.
type ViewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleViewport(c *fiber.Ctx) error {
	var req ViewportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Width <= 0 || req.Height <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "width and height must be > 0"})
	}

	s.session.SetDisplaySize(req.Width, req.Height)
	return c.SendStatus(fiber.StatusNoContent)
}
