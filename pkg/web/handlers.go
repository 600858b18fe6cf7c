package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/wayfindr/go-wayfind/pkg/hub"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
)

// handleHealth returns the pipeline health snapshot.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.HealthFn == nil {
		return c.JSON(pipeline.Health{})
	}
	return c.JSON(s.HealthFn())
}

// handleOutput returns the most recent navigation output.
func (s *Server) handleOutput(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasLast {
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
	return c.JSON(s.last)
}

// handleGetTarget returns the selected target label.
func (s *Server) handleGetTarget(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"label": s.Target()})
}

// SetTargetRequest is the request body for selecting a target.
type SetTargetRequest struct {
	Label string `json:"label"`
}

// handleSetTarget selects a new navigation target.
func (s *Server) handleSetTarget(c *fiber.Ctx) error {
	var req SetTargetRequest
	if err := c.BodyParser(&req); err != nil || req.Label == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be {\"label\": \"...\"}",
		})
	}

	if s.OnSetTarget == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "target selection not configured",
		})
	}
	if err := s.OnSetTarget(req.Label); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.SetTarget(req.Label)
	return c.JSON(fiber.Map{"label": req.Label})
}

// handleNavWS streams navigation updates. New subscribers get the latest
// output immediately so the overlay renders without waiting for a frame.
func (s *Server) handleNavWS(c *websocket.Conn) {
	client := hub.NewClient(s.navHub, c)
	if client == nil {
		c.Close()
		return
	}

	s.mu.RLock()
	last, has := s.last, s.hasLast
	s.mu.RUnlock()
	if has {
		c.WriteJSON(last)
	}

	client.Run()
}

// handleCameraWS streams JPEG camera frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}
