// Package config loads go-visionassist configuration from an optional YAML
// file and the environment. Flag parsing is done in cmd/visionassist; this
// package is data plus validation only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultPort            = 3000
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1"
	DefaultGeminiModel     = "gemini-2.0-flash-001"
	DefaultTemperature     = 0.4
	DefaultMaxOutputTokens = 1024
)

type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bind      string `yaml:"bind"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type GeminiConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

type CameraConfig struct {
	Device    int    `yaml:"device"`
	Facing    string `yaml:"facing"` // environment, user
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
	Quality   int    `yaml:"quality"`
}

type TTSConfig struct {
	Mode      string  `yaml:"mode"` // exec, openai, chain, mock
	Command   string  `yaml:"command"`
	Voice     string  `yaml:"voice"`
	Rate      float64 `yaml:"rate"`
	Pitch     float64 `yaml:"pitch"`
	OpenAIKey string  `yaml:"openai_api_key"`
}

type PlayerConfig struct {
	Command string `yaml:"command"`
}

type AssistantConfig struct {
	Enabled bool `yaml:"enabled"`
	// ProxyURL points at a remote /api/analyze-image. Empty means the
	// assistant calls Gemini in-process.
	ProxyURL string       `yaml:"proxy_url"`
	Camera   CameraConfig `yaml:"camera"`
	TTS      TTSConfig    `yaml:"tts"`
	Player   PlayerConfig `yaml:"player"`
}

// Config holds all configuration for the vision assistant.
type Config struct {
	Environment string          `yaml:"environment"`
	LogLevel    string          `yaml:"log_level"`
	HTTP        HTTPConfig      `yaml:"http"`
	Gemini      GeminiConfig    `yaml:"gemini"`
	Assistant   AssistantConfig `yaml:"assistant"`
}

// Default returns sensible defaults. The Gemini API key has no default and
// must come from the file or GEMINI_API_KEY.
func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		HTTP: HTTPConfig{
			Enabled:   true,
			Bind:      "0.0.0.0",
			Port:      DefaultPort,
			StaticDir: "./web",
		},
		Gemini: GeminiConfig{
			BaseURL:         DefaultGeminiBaseURL,
			Model:           DefaultGeminiModel,
			Temperature:     DefaultTemperature,
			MaxOutputTokens: DefaultMaxOutputTokens,
			TimeoutSeconds:  30,
		},
		Assistant: AssistantConfig{
			Camera: CameraConfig{
				Facing:    "environment",
				Width:     1280,
				Height:    720,
				Framerate: 10,
				Quality:   90,
			},
			TTS: TTSConfig{
				Mode:    "exec",
				Command: "espeak-ng --stdout -s {rate} -p {pitch} --stdin",
				Rate:    1.0,
				Pitch:   1.0,
			},
			Player: PlayerConfig{
				Command: "ffplay -nodisp -autoexit -loglevel quiet -i -",
			},
		},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that layer flags on top
// before validating.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Environment, "GO_ENV")
	overrideString(&cfg.LogLevel, "VISIONASSIST_LOG_LEVEL")
	overrideBool(&cfg.HTTP.Enabled, "VISIONASSIST_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "VISIONASSIST_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PORT")
	overrideInt(&cfg.HTTP.Port, "VISIONASSIST_HTTP_PORT")
	overrideString(&cfg.HTTP.StaticDir, "VISIONASSIST_STATIC_DIR")
	overrideString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Gemini.BaseURL, "VISIONASSIST_GEMINI_BASE_URL")
	overrideString(&cfg.Gemini.Model, "VISIONASSIST_GEMINI_MODEL")
	overrideFloat(&cfg.Gemini.Temperature, "VISIONASSIST_GEMINI_TEMPERATURE")
	overrideInt(&cfg.Gemini.MaxOutputTokens, "VISIONASSIST_GEMINI_MAX_OUTPUT_TOKENS")
	overrideBool(&cfg.Assistant.Enabled, "VISIONASSIST_ASSISTANT_ENABLED")
	overrideString(&cfg.Assistant.ProxyURL, "VISIONASSIST_PROXY_URL")
	overrideInt(&cfg.Assistant.Camera.Device, "VISIONASSIST_CAMERA_DEVICE")
	overrideString(&cfg.Assistant.Camera.Facing, "VISIONASSIST_CAMERA_FACING")
	overrideString(&cfg.Assistant.TTS.Mode, "VISIONASSIST_TTS_MODE")
	overrideString(&cfg.Assistant.TTS.Command, "VISIONASSIST_TTS_COMMAND")
	overrideString(&cfg.Assistant.TTS.Voice, "VISIONASSIST_TTS_VOICE")
	overrideString(&cfg.Assistant.TTS.OpenAIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Assistant.Player.Command, "VISIONASSIST_PLAYER_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// NeedsGemini reports whether this process calls Gemini itself: either it
// serves the proxy endpoint or the assistant analyzes in-process.
func (c Config) NeedsGemini() bool {
	return c.HTTP.Enabled || (c.Assistant.Enabled && c.Assistant.ProxyURL == "")
}

// Validate checks that required configuration is present and in range.
func (c Config) Validate() error {
	if !c.HTTP.Enabled && !c.Assistant.Enabled {
		return errors.New("nothing to run: enable http or assistant")
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return errors.New("http.port must be between 1 and 65535")
	}
	if c.NeedsGemini() {
		if c.Gemini.APIKey == "" {
			return &Error{Field: "gemini.api_key", Message: "GEMINI_API_KEY environment variable is required"}
		}
		if c.Gemini.Model == "" {
			return &Error{Field: "gemini.model", Message: "gemini.model must not be empty"}
		}
		if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
			return &Error{Field: "gemini.temperature", Message: "gemini.temperature must be between 0 and 2"}
		}
		if c.Gemini.MaxOutputTokens <= 0 {
			return &Error{Field: "gemini.max_output_tokens", Message: "gemini.max_output_tokens must be positive"}
		}
	}
	if c.Assistant.Enabled {
		return c.Assistant.validate()
	}
	return nil
}

func (a AssistantConfig) validate() error {
	cam := a.Camera
	if cam.Facing != "environment" && cam.Facing != "user" {
		return &Error{Field: "assistant.camera.facing", Message: "camera facing must be environment or user"}
	}
	if cam.Width <= 0 || cam.Height <= 0 {
		return &Error{Field: "assistant.camera", Message: "camera width and height must be positive"}
	}
	if cam.Quality < 1 || cam.Quality > 100 {
		return &Error{Field: "assistant.camera.quality", Message: "camera quality must be between 1 and 100"}
	}
	switch a.TTS.Mode {
	case "exec", "mock":
	case "openai", "chain":
		if a.TTS.OpenAIKey == "" {
			return &Error{Field: "assistant.tts.openai_api_key", Message: "OPENAI_API_KEY environment variable is required for OpenAI TTS"}
		}
	default:
		return &Error{Field: "assistant.tts.mode", Message: fmt.Sprintf("unknown tts mode %q", a.TTS.Mode)}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
