// Package opencv implements camera.Device on top of OpenCV (gocv).
package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-visionassist/pkg/camera"
	"gocv.io/x/gocv"
)

// Device opens local cameras through OpenCV.
// OpenCV has no notion of facing; Config.Device selects the camera.
type Device struct{}

// NewDevice returns an OpenCV-backed device.
func NewDevice() *Device {
	return &Device{}
}

// Open opens camera cfg.Device and requests cfg.Width x cfg.Height.
func (d *Device) Open(ctx context.Context, cfg camera.Config) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, &camera.DeviceError{Op: "open", Err: fmt.Errorf("%w: %v", camera.ErrUnavailable, err)}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &camera.DeviceError{Op: "open", Err: camera.ErrPermissionDenied}
	}

	// Best effort: drivers silently fall back to a supported mode.
	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	s := &stream{
		capture: capture,
		frame:   gocv.NewMat(),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}

	// Prime the stream so a denied or busy device fails here, not on
	// the first grab.
	if _, err := s.Snapshot(); err != nil {
		s.Close()
		return nil, &camera.DeviceError{Op: "read", Err: err}
	}

	return s, nil
}

type stream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	width   int
	height  int
	closed  bool
}

func (s *stream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, camera.ErrNoStream
	}
	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, camera.ErrEmptyFrame
	}
	if s.width <= 0 || s.height <= 0 {
		s.width, s.height = s.frame.Cols(), s.frame.Rows()
	}
	return s.frame.ToImage()
}

func (s *stream) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.frame.Close()
	return s.capture.Close()
}

// Verify Device implements camera.Device at compile time.
var _ camera.Device = (*Device)(nil)
