// Package web provides the real-time watchpost dashboard: REST control
// surface plus websocket streams for overlay records, frames and status.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/analyze"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/hub"
	"github.com/grovesy/watchpost/pkg/overlay"
	"github.com/grovesy/watchpost/pkg/session"
)

const maxStoredAnalyses = 50

// OverlayFrame is the JSON document pushed to overlay websocket clients once
// per rendered frame.
type OverlayFrame struct {
	Records      []overlay.Record `json:"records"`
	WatchPresent bool             `json:"watch_present"`
	Time         string           `json:"time"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	port string

	session *session.Session
	cameras *camera.Manager

	// Recent analyses (newest last)
	analyses   []*analyze.Result
	analysesMu sync.RWMutex

	// Hubs for websocket broadcast
	overlayHub *hub.Hub
	frameHub   *hub.Hub
	statusHub  *hub.Hub
}

// NewServer creates the dashboard server and wires itself into the session's
// callbacks.
func NewServer(port string, sess *session.Session, cameras *camera.Manager) *Server {
	s := &Server{
		port:       port,
		session:    sess,
		cameras:    cameras,
		overlayHub: hub.New("overlay"),
		frameHub:   hub.New("frames"),
		statusHub:  hub.New("status"),
	}

	sess.OnRecords = s.broadcastOverlay
	sess.OnFrame = s.frameHub.BroadcastBinary
	sess.OnAnalysis = s.storeAnalysis
	sess.OnAnalysisError = s.broadcastAnalysisError
	sess.OnStateChange = s.broadcastState

	app := fiber.New(fiber.Config{
		AppName:               "Watchpost Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Get("/watch", s.handleGetWatch)
	api.Post("/watch", s.handleSetWatch)
	api.Post("/capture", s.handleCapture)
	api.Get("/analyses", s.handleAnalyses)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Post("/viewport", s.handleViewport)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/overlay", websocket.New(s.handleHubWS(s.overlayHub)))
	app.Get("/ws/frames", websocket.New(s.handleHubWS(s.frameHub)))
	app.Get("/ws/status", websocket.New(s.handleHubWS(s.statusHub)))

	s.app = app
	return s
}

// App exposes the underlying Fiber app so callers can mount extra routes,
// such as the camera agent ingest hub.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the web server
func (s *Server) Start() error {
	log.Info("dashboard listening", "port", s.port)

	// Start all hubs
	go s.overlayHub.Run()
	go s.frameHub.Run()
	go s.statusHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// broadcastOverlay pushes a rendered frame's records to overlay clients.
func (s *Server) broadcastOverlay(records []overlay.Record, watchPresent bool) {
	s.overlayHub.BroadcastJSON(OverlayFrame{
		Records:      records,
		WatchPresent: watchPresent,
		Time:         time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// storeAnalysis keeps a bounded buffer of results and notifies status clients.
func (s *Server) storeAnalysis(result *analyze.Result) {
	s.analysesMu.Lock()
	s.analyses = append(s.analyses, result)
	if len(s.analyses) > maxStoredAnalyses {
		s.analyses = s.analyses[len(s.analyses)-maxStoredAnalyses:]
	}
	s.analysesMu.Unlock()

	s.statusHub.BroadcastJSON(fiber.Map{
		"event":  "analysis",
		"result": result,
	})
}

func (s *Server) broadcastAnalysisError(err error) {
	s.statusHub.BroadcastJSON(fiber.Map{
		"event": "analysis_error",
		"error": err.Error(),
	})
}

func (s *Server) broadcastState(state session.State) {
	s.statusHub.BroadcastJSON(fiber.Map{
		"event": "state",
		"state": state,
	})
}

// handleHubWS registers a websocket connection with a hub and pumps it.
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		client.Run()
	}
}
