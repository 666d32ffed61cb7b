package web

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-visionassist/pkg/assistant"
	"github.com/teslashibe/go-visionassist/pkg/hub"
	"github.com/teslashibe/go-visionassist/pkg/vision"
)

// Client-facing error messages. Upstream detail is logged, never returned.
const (
	msgInternal      = "Internal server error"
	msgImageRequired = "Image data is required"
	msgUpstream      = "Failed to analyze image with Gemini API"
	msgUnconfigured  = "Image analysis is not configured"
	msgNoAssistant   = "Assistant is not running"
	msgNothingToRead = "Nothing to repeat yet"
)

// AnalyzeRequest is the body of POST /api/analyze-image.
type AnalyzeRequest struct {
	Image string `json:"image"`
}

// AnalyzeResponse is a successful analysis.
type AnalyzeResponse struct {
	Description string `json:"description"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Assistant bool              `json:"assistant"`
	Status    *assistant.Status `json:"status,omitempty"`
	Viewers   int               `json:"viewers"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleAnalyze forwards one image to the describer. It keeps no state
// between requests.
func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	start := time.Now()
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("X-Request-ID", requestID)
	logger := s.logger.With("request_id", requestID)

	reply := func(status int, outcome string, body any) error {
		elapsed := time.Since(start)
		s.metrics.ObserveAnalyze(c.UserContext(), outcome, elapsed)
		logger.Info("analyze", "status", status, "outcome", outcome, "latency_ms", elapsed.Milliseconds())
		return c.Status(status).JSON(body)
	}

	if s.describer == nil {
		return reply(fiber.StatusServiceUnavailable, OutcomeUnconfigured, errorResponse{Error: msgUnconfigured})
	}

	var req AnalyzeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		logger.Warn("invalid analyze body", "error", err)
		return reply(fiber.StatusInternalServerError, OutcomeInternal, errorResponse{Error: msgInternal})
	}
	if req.Image == "" {
		return reply(fiber.StatusBadRequest, OutcomeBadRequest, errorResponse{Error: msgImageRequired})
	}

	description, err := s.describer.Describe(c.UserContext(), req.Image)
	if err != nil {
		if vision.IsUpstream(err) {
			logger.Error("gemini error", "error", err)
			return reply(fiber.StatusInternalServerError, OutcomeUpstream, errorResponse{Error: msgUpstream})
		}
		if errors.Is(err, vision.ErrEmptyImage) {
			return reply(fiber.StatusBadRequest, OutcomeBadRequest, errorResponse{Error: msgImageRequired})
		}
		logger.Error("analyze failed", "error", err)
		return reply(fiber.StatusInternalServerError, OutcomeInternal, errorResponse{Error: msgInternal})
	}

	logger.Debug("analyze image", "image_b64_bytes", len(req.Image))
	return reply(fiber.StatusOK, OutcomeOK, AnalyzeResponse{Description: description})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{Viewers: s.cameraHub.ClientCount()}
	if s.assistant != nil {
		status := s.assistant.Status()
		resp.Assistant = true
		resp.Status = &status
	}
	return c.JSON(resp)
}

func (s *Server) handleTap(c *fiber.Ctx) error {
	if s.assistant == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: msgNoAssistant})
	}
	state := s.assistant.Tap(c.UserContext())
	return c.JSON(fiber.Map{"state": state})
}

func (s *Server) handleRepeat(c *fiber.Ctx) error {
	if s.assistant == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: msgNoAssistant})
	}
	if !s.assistant.Repeat() {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: msgNothingToRead})
	}
	return c.JSON(fiber.Map{"repeated": true})
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.serveHub(s.statusHub, c)
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.serveHub(s.cameraHub, c)
}

func (s *Server) serveHub(h *hub.Hub, c *websocket.Conn) {
	client, err := hub.NewClient(h, c)
	if err != nil {
		s.logger.Debug("websocket rejected", "error", err)
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	client.Run()
}
