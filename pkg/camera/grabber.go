package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// Grabber rasterizes the current frame of a stream into a JPEG still.
type Grabber struct {
	quality int
}

// NewGrabber creates a grabber encoding at the given JPEG quality.
func NewGrabber(quality int) *Grabber {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Grabber{quality: quality}
}

// Grab draws the current frame onto an off-screen bitmap sized to the
// stream's native resolution and encodes it. One call, one image.
func (g *Grabber) Grab(s Stream) ([]byte, error) {
	if s == nil {
		return nil, ErrNoStream
	}

	frame, err := s.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if frame == nil {
		return nil, ErrEmptyFrame
	}

	width, height := s.Size()
	if width <= 0 || height <= 0 {
		b := frame.Bounds()
		width, height = b.Dx(), b.Dy()
	}
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyFrame
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	return g.encode(canvas)
}

func (g *Grabber) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: g.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
