package vision

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds Gemini client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Prompt  string

	// Generation parameters
	Temperature     float64
	MaxOutputTokens int

	Timeout    time.Duration
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the API base URL.
// Example: "https://generativelanguage.googleapis.com/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithPrompt replaces the scene prompt.
func WithPrompt(prompt string) Option {
	return func(c *Config) { c.Prompt = prompt }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxOutputTokens bounds the generated description.
func WithMaxOutputTokens(n int) Option {
	return func(c *Config) { c.MaxOutputTokens = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient replaces the HTTP client. Timeout is ignored when set.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the settings the assistant ships with.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://generativelanguage.googleapis.com/v1",
		Model:           "gemini-2.0-flash-001",
		Prompt:          ScenePrompt,
		Temperature:     0.4,
		MaxOutputTokens: 1024,
		Timeout:         30 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
