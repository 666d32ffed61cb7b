package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// MockDevice implements Device for testing.
type MockDevice struct {
	// OpenErr, when set, is returned by every Open call.
	OpenErr error

	// Frame is served by opened streams. Defaults to a gray 64x48 image.
	Frame image.Image

	mu      sync.Mutex
	opens   int
	streams []*MockStream
}

// NewMockDevice returns a device that opens successfully.
func NewMockDevice() *MockDevice {
	return &MockDevice{Frame: SolidFrame(64, 48, color.Gray{Y: 128})}
}

// Open returns a MockStream or OpenErr.
func (d *MockDevice) Open(ctx context.Context, cfg Config) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &MockStream{frame: d.Frame}
	d.streams = append(d.streams, s)
	return s, nil
}

// Opens returns the number of Open calls.
func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Streams returns every stream handed out.
func (d *MockDevice) Streams() []*MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockStream, len(d.streams))
	copy(out, d.streams)
	return out
}

// MockStream serves a fixed frame.
type MockStream struct {
	mu        sync.Mutex
	frame     image.Image
	snapshots int
	closed    bool
}

// Snapshot returns the fixed frame.
func (s *MockStream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNoStream
	}
	s.snapshots++
	return s.frame, nil
}

// Size returns the frame bounds.
func (s *MockStream) Size() (int, int) {
	if s.frame == nil {
		return 0, 0
	}
	b := s.frame.Bounds()
	return b.Dx(), b.Dy()
}

// Close marks the stream closed.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SolidFrame builds a w x h image filled with c.
func SolidFrame(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	_ Device = (*MockDevice)(nil)
	_ Stream = (*MockStream)(nil)
)
