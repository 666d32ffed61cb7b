// Package web serves the analyze proxy endpoint and the assistant dashboard.
package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-visionassist/pkg/assistant"
	"github.com/teslashibe/go-visionassist/pkg/camera"
	"github.com/teslashibe/go-visionassist/pkg/hub"
	"github.com/teslashibe/go-visionassist/pkg/vision"
)

// Assistant is the local tap loop the dashboard controls.
type Assistant interface {
	Tap(ctx context.Context) assistant.State
	Repeat() bool
	Status() assistant.Status
}

// Config configures the server.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string

	// StaticDir is served at "/". Empty disables static files.
	StaticDir string

	// Describer answers /api/analyze-image. Nil makes the endpoint 503.
	Describer vision.Describer

	Metrics *Metrics
	Logger  *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	app       *fiber.App
	addr      string
	describer vision.Describer
	metrics   *Metrics
	logger    *slog.Logger

	assistant Assistant

	statusHub *hub.Hub
	cameraHub *hub.Hub
	stopHubs  context.CancelFunc
}

// NewServer builds the fiber app and its routes. The websocket hubs are
// started by Start or RunHubs.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		m, err := NewMetrics("visionassist")
		if err != nil {
			return nil, err
		}
		cfg.Metrics = m
	}
	logger := cfg.Logger.With("component", "web")

	s := &Server{
		addr:      cfg.Addr,
		describer: cfg.Describer,
		metrics:   cfg.Metrics,
		logger:    logger,
		statusHub: hub.New("status", hub.WithReplay(), hub.WithLogger(logger)),
		cameraHub: hub.New("camera", hub.WithLogger(logger)),
		stopHubs:  func() {},
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vision Assistant",
		DisableStartupMessage: true,
		BodyLimit:             20 * 1024 * 1024,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := app.Group("/api")
	api.Post("/analyze-image", s.handleAnalyze)
	api.Get("/status", s.handleStatus)
	api.Post("/tap", s.handleTap)
	api.Post("/repeat", s.handleRepeat)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetAssistant attaches the local assistant. Call before Start.
func (s *Server) SetAssistant(a Assistant) {
	s.assistant = a
}

// RunHubs starts the websocket hubs until ctx is cancelled.
func (s *Server) RunHubs(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.stopHubs = cancel
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
}

// Start runs the hubs and listens until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.RunHubs(ctx)
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown closes the hubs, which drops websocket clients, then stops
// accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopHubs()
	err := s.app.ShutdownWithContext(ctx)
	if merr := s.metrics.Shutdown(ctx); merr != nil {
		err = errors.Join(err, merr)
	}
	return err
}

// PublishStatus pushes an assistant status to dashboard clients.
func (s *Server) PublishStatus(status assistant.Status) {
	if err := s.statusHub.BroadcastJSON(status); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}

// SendFrame implements camera.PreviewSink.
func (s *Server) SendFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
	s.metrics.ObserveFrame()
}

// ClearFrame implements camera.PreviewSink.
func (s *Server) ClearFrame() {
	s.cameraHub.BroadcastClear()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(code).JSON(errorResponse{Error: msgInternal})
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

var _ camera.PreviewSink = (*Server)(nil)
