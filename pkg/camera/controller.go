package camera

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// previewQuality keeps preview frames small; stills use Config.Quality.
const previewQuality = 60

// Controller manages the camera lifecycle. The stream it opens is owned
// exclusively by the controller until Stop.
type Controller struct {
	device  Device
	cfg     Config
	sink    PreviewSink
	preview *Grabber
	logger  *slog.Logger

	mu      sync.Mutex
	session *session
}

type session struct {
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller. sink may be nil (no preview).
func NewController(device Device, cfg Config, sink PreviewSink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		device:  device,
		cfg:     cfg,
		sink:    sink,
		preview: NewGrabber(previewQuality),
		logger:  logger.With("component", "camera.controller"),
	}
}

// Config returns the capture configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Start opens the camera and begins live preview. Calling Start while a
// stream is active is a no-op. Failures are returned as *DeviceError and
// are never retried.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil
	}

	stream, err := c.device.Open(ctx, c.cfg)
	if err != nil {
		c.logger.Warn("camera open failed", "device", c.cfg.Device, "facing", c.cfg.Facing, "error", err)
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return err
		}
		return &DeviceError{Op: "open", Err: err}
	}

	width, height := stream.Size()
	c.logger.Info("camera started",
		"device", c.cfg.Device,
		"facing", c.cfg.Facing,
		"requested", []int{c.cfg.Width, c.cfg.Height},
		"native", []int{width, height},
	)

	previewCtx, cancel := context.WithCancel(context.Background())
	s := &session{stream: stream, cancel: cancel, done: make(chan struct{})}
	c.session = s

	if c.sink != nil && c.cfg.Framerate > 0 {
		go c.runPreview(previewCtx, s)
	} else {
		close(s.done)
	}

	return nil
}

// Stop releases the stream and clears the preview. Safe to call when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()
	<-s.done

	if err := s.stream.Close(); err != nil {
		c.logger.Warn("camera close failed", "error", err)
	}
	if c.sink != nil {
		c.sink.ClearFrame()
	}
	c.logger.Info("camera stopped")
}

// Stream returns the active stream, or nil when stopped.
func (c *Controller) Stream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.stream
}

// Active reports whether a stream is open.
func (c *Controller) Active() bool {
	return c.Stream() != nil
}

// runPreview pushes frames to the sink until ctx is cancelled.
func (c *Controller) runPreview(ctx context.Context, s *session) {
	defer close(s.done)

	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.Framerate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := c.preview.Grab(s.stream)
			if err != nil {
				c.logger.Debug("preview frame dropped", "error", err)
				continue
			}
			c.sink.SendFrame(frame)
		}
	}
}
