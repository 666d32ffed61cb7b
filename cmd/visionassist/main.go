// Vision Assistant - tap to describe your surroundings.
//
// Serves POST /api/analyze-image (a Gemini vision proxy) and, with
// -assistant, runs the local tap loop: camera, capture, describe, speak.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/teslashibe/go-visionassist/internal/config"
	vlog "github.com/teslashibe/go-visionassist/internal/log"
	"github.com/teslashibe/go-visionassist/pkg/assistant"
	"github.com/teslashibe/go-visionassist/pkg/audio"
	"github.com/teslashibe/go-visionassist/pkg/camera"
	"github.com/teslashibe/go-visionassist/pkg/camera/opencv"
	"github.com/teslashibe/go-visionassist/pkg/speech"
	"github.com/teslashibe/go-visionassist/pkg/tts"
	"github.com/teslashibe/go-visionassist/pkg/vision"
	"github.com/teslashibe/go-visionassist/pkg/web"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath   string
	debug        bool
	port         int
	assistant    bool
	noHTTP       bool
	proxyURL     string
	cameraPreset string
	cameraDevice int
	ttsMode      string
}

func main() {
	opts := parseFlags()

	cfg, err := config.Read(opts.configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	applyFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	vlog.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts.cameraPreset); err != nil {
		log.Fatalf("Runtime error: %v", err)
	}
}

// parseFlags parses command line flags. Flags override the config file
// and environment.
func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	flag.BoolVar(&o.debug, "debug", false, "Enable verbose debug logging")
	flag.IntVar(&o.port, "port", 0, "HTTP port (overrides PORT env var)")
	flag.BoolVar(&o.assistant, "assistant", false, "Run the local tap loop (camera, speech, keyboard)")
	flag.BoolVar(&o.noHTTP, "no-http", false, "Do not serve HTTP; requires -assistant")
	flag.StringVar(&o.proxyURL, "proxy-url", "", "Remote /api/analyze-image URL for the assistant")
	flag.StringVar(&o.cameraPreset, "camera-preset", "", "Camera preset: default, vga, 720p, 1080p, selfie")
	flag.IntVar(&o.cameraDevice, "camera-device", -1, "Camera device index")
	flag.StringVar(&o.ttsMode, "tts", "", "TTS provider: exec, openai, chain, mock")
	flag.Parse()
	return o
}

func applyFlags(cfg *config.Config, o options) {
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if o.port > 0 {
		cfg.HTTP.Port = o.port
	}
	if o.assistant {
		cfg.Assistant.Enabled = true
	}
	if o.noHTTP {
		cfg.HTTP.Enabled = false
	}
	if o.proxyURL != "" {
		cfg.Assistant.ProxyURL = o.proxyURL
	}
	if o.cameraDevice >= 0 {
		cfg.Assistant.Camera.Device = o.cameraDevice
	}
	if o.ttsMode != "" {
		cfg.Assistant.TTS.Mode = o.ttsMode
	}
}

func run(ctx context.Context, cfg config.Config, preset string) error {
	logger := vlog.L()

	var describer vision.Describer
	if cfg.NeedsGemini() {
		g, err := vision.NewGemini(
			vision.WithAPIKey(cfg.Gemini.APIKey),
			vision.WithBaseURL(cfg.Gemini.BaseURL),
			vision.WithModel(cfg.Gemini.Model),
			vision.WithTemperature(cfg.Gemini.Temperature),
			vision.WithMaxOutputTokens(cfg.Gemini.MaxOutputTokens),
			vision.WithTimeout(time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second),
			vision.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		describer = g
	}

	var server *web.Server
	if cfg.HTTP.Enabled {
		s, err := web.NewServer(web.Config{
			Addr:      net.JoinHostPort(cfg.HTTP.Bind, strconv.Itoa(cfg.HTTP.Port)),
			StaticDir: cfg.HTTP.StaticDir,
			Describer: describer,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("web: %w", err)
		}
		server = s
	}

	var a *assistant.Assistant
	if cfg.Assistant.Enabled {
		built, err := buildAssistant(cfg, preset, describer, server)
		if err != nil {
			return fmt.Errorf("assistant: %w", err)
		}
		a = built
		defer a.Close()
		if server != nil {
			server.SetAssistant(a)
		}
	}

	errc := make(chan error, 2)
	if server != nil {
		go func() { errc <- server.Start(ctx) }()
	}
	if a != nil {
		a.Start(ctx)
		logger.Info("press Enter or Space then Enter to tap, r to repeat, q to quit")
		go func() { errc <- readKeys(ctx, os.Stdin, a) }()
	}

	if err := waitForExit(ctx, errc, logger); err != nil {
		return err
	}

	logger.Info("shutting down")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
	return nil
}

func buildAssistant(cfg config.Config, preset string, describer vision.Describer, server *web.Server) (*assistant.Assistant, error) {
	logger := vlog.L()
	ac := cfg.Assistant

	camCfg := camera.Config{
		Device:    ac.Camera.Device,
		Facing:    camera.Facing(ac.Camera.Facing),
		Width:     ac.Camera.Width,
		Height:    ac.Camera.Height,
		Framerate: ac.Camera.Framerate,
		Quality:   ac.Camera.Quality,
	}
	if preset != "" {
		p := camera.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown camera preset %q (have %v)", preset, camera.PresetNames())
		}
		p.Device = camCfg.Device
		camCfg = *p
	}
	if problems := camCfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("camera config: %v", problems)
	}

	var sink camera.PreviewSink
	if server != nil {
		sink = server
	}
	controller := camera.NewController(opencv.NewDevice(), camCfg, sink, logger)

	var analyzer assistant.Analyzer
	if ac.ProxyURL != "" {
		analyzer = assistant.NewHTTPAnalyzer(ac.ProxyURL, nil, logger)
	} else {
		analyzer = assistant.NewDescriberAnalyzer(describer)
	}

	provider, err := newTTS(ac.TTS)
	if err != nil {
		return nil, err
	}
	var player audio.Sink
	if ac.TTS.Mode == "mock" {
		player = audio.NewMockSink()
	} else {
		p, err := audio.NewPlayer(ac.Player.Command, logger)
		if err != nil {
			return nil, err
		}
		player = p
	}
	narrator := speech.NewNarrator(provider, player, logger)

	opts := assistant.Options{
		Camera:   controller,
		Grabber:  camera.NewGrabber(camCfg.Quality),
		Analyzer: analyzer,
		Speaker:  narrator,
		Logger:   logger,
	}
	if server != nil {
		opts.OnStateChange = server.PublishStatus
	}
	return assistant.New(opts)
}

func newTTS(c config.TTSConfig) (tts.Provider, error) {
	logger := vlog.L()
	execTTS := func() (tts.Provider, error) {
		return tts.NewExec(
			tts.WithCommand(c.Command),
			tts.WithVoice(c.Voice),
			tts.WithRate(c.Rate),
			tts.WithPitch(c.Pitch),
			tts.WithLogger(logger),
		)
	}
	openAITTS := func() (tts.Provider, error) {
		voice := c.Voice
		if voice == "" {
			voice = tts.VoiceShimmer
		}
		return tts.NewOpenAI(
			tts.WithAPIKey(c.OpenAIKey),
			tts.WithVoice(voice),
			tts.WithRate(c.Rate),
			tts.WithLogger(logger),
		)
	}

	switch c.Mode {
	case "openai":
		return openAITTS()
	case "chain":
		primary, err := openAITTS()
		if err != nil {
			return nil, err
		}
		fallback, err := execTTS()
		if err != nil {
			return nil, err
		}
		return tts.NewChain(logger, primary, fallback)
	case "mock":
		return tts.NewMock(), nil
	default:
		return execTTS()
	}
}
