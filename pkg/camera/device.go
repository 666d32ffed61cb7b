package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when no camera could be opened.
	ErrUnavailable = errors.New("camera: device unavailable")

	// ErrPermissionDenied is returned when the OS refused camera access.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNoStream is returned when grabbing without an active stream.
	ErrNoStream = errors.New("camera: no active stream")

	// ErrEmptyFrame is returned when the stream produced no pixels.
	ErrEmptyFrame = errors.New("camera: empty frame")
)

// Device is the platform media-capture service.
type Device interface {
	// Open requests a stream honoring cfg on a best-effort basis.
	// It may block while the OS prompts for permission.
	Open(ctx context.Context, cfg Config) (Stream, error)
}

// Stream is a live capture session.
type Stream interface {
	// Snapshot returns the frame currently being displayed.
	// It is called from the preview loop and the grabber concurrently.
	Snapshot() (image.Image, error)

	// Size returns the stream's native resolution.
	Size() (width, height int)

	// Close releases all tracks of the stream.
	Close() error
}

// PreviewSink renders live video to the user.
type PreviewSink interface {
	// SendFrame displays one JPEG frame.
	SendFrame(jpeg []byte)

	// ClearFrame blanks the preview.
	ClearFrame()
}

// DeviceError reports a failure to acquire or use the camera.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
