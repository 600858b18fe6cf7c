// Package web provides the real-time monitoring dashboard: REST endpoints
// for health and target selection plus websocket streams for navigation
// updates and the camera feed.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/wayfindr/go-wayfind/internal/log"
	"github.com/wayfindr/go-wayfind/pkg/hub"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
	"github.com/wayfindr/go-wayfind/pkg/steering"
)

// NavUpdate is the wire form of a navigation output.
type NavUpdate struct {
	Command        string       `json:"command"`
	DangerLevel    int          `json:"danger_level"`
	TargetCentered bool         `json:"target_centered"`
	Path           [][2]float64 `json:"path,omitempty"`
}

// toNavUpdate flattens a steering output for JSON transport.
func toNavUpdate(out steering.Output) NavUpdate {
	u := NavUpdate{
		Command:        out.Command,
		DangerLevel:    out.DangerLevel,
		TargetCentered: out.TargetCentered,
	}
	for _, p := range out.Path {
		u.Path = append(u.Path, [2]float64{p.X, p.Y})
	}
	return u
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	port string

	// HealthFn supplies the pipeline health snapshot for /api/health.
	HealthFn func() pipeline.Health

	// OnSetTarget validates and applies a target-label change. Required
	// for POST /api/target.
	OnSetTarget func(label string) error

	mu      sync.RWMutex
	last    NavUpdate
	hasLast bool
	target  string

	navHub    *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates the dashboard server listening on the given port.
func NewServer(port string) *Server {
	s := &Server{
		port:      port,
		navHub:    hub.New("nav"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Wayfind Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/output", s.handleOutput)
	api.Get("/target", s.handleGetTarget)
	api.Post("/target", s.handleSetTarget)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/nav", websocket.New(s.handleNavWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and the HTTP listener. Blocks until the listener
// stops; the hubs stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info("dashboard listening", "port", s.port)
	go s.navHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs Start in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("dashboard server stopped", "err", err)
		}
	}()
}

// PublishOutput records the latest navigation output and broadcasts it to
// nav stream subscribers.
func (s *Server) PublishOutput(out steering.Output) {
	u := toNavUpdate(out)

	s.mu.Lock()
	s.last = u
	s.hasLast = true
	s.mu.Unlock()

	s.navHub.BroadcastJSON(u)
}

// PublishFrame broadcasts a JPEG camera frame to feed subscribers. Skipped
// entirely when nobody is watching.
func (s *Server) PublishFrame(jpeg []byte) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(jpeg)
}

// Target returns the currently selected target label.
func (s *Server) Target() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// SetTarget records the selected target label.
func (s *Server) SetTarget(label string) {
	s.mu.Lock()
	s.target = label
	s.mu.Unlock()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
