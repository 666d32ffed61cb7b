// Package camera owns the assistant's camera: opening a capture stream,
// pushing live preview frames, and grabbing a single still for analysis.
package camera

// Facing mirrors the browser facingMode constraint.
type Facing string

const (
	FacingEnvironment Facing = "environment" // rear camera
	FacingUser        Facing = "user"        // front camera
)

// Config holds capture parameters. Width and Height are preferences:
// devices may deliver a different native resolution.
type Config struct {
	Device    int    `json:"device"`    // OS camera index
	Facing    Facing `json:"facing"`    // Requested camera direction
	Width     int    `json:"width"`     // Preferred frame width in pixels
	Height    int    `json:"height"`    // Preferred frame height in pixels
	Framerate int    `json:"framerate"` // Preview FPS, 0 disables preview
	Quality   int    `json:"quality"`   // JPEG quality 1-100
}

// DefaultConfig returns a rear-facing 720p configuration.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Facing:    FacingEnvironment,
		Width:     1280,
		Height:    720,
		Framerate: 10,
		Quality:   90,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Facing != FacingEnvironment && c.Facing != FacingUser {
		errors = append(errors, "facing must be environment or user")
	}
	if c.Width < 160 || c.Width > 4096 {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > 2160 {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 0 || c.Framerate > 60 {
		errors = append(errors, "framerate must be between 0 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
