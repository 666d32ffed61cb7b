package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

const providerExec = "exec"

// DefaultExecCommand drives espeak-ng, writing WAV to stdout.
const DefaultExecCommand = "espeak-ng --stdout -s {rate} -p {pitch} --stdin"

// espeak's neutral settings, scaled by Config.Rate and Config.Pitch.
const (
	baseWordsPerMinute = 175
	basePitch          = 50
)

// Exec implements Provider by running a local synthesizer per utterance.
// Text goes to stdin so it is never parsed as arguments.
type Exec struct {
	config *Config
	args   []string
	logger *slog.Logger
}

// NewExec creates a local synthesizer provider.
func NewExec(opts ...Option) (*Exec, error) {
	cfg := DefaultConfig()
	cfg.Command = DefaultExecCommand
	cfg.Apply(opts...)

	if strings.TrimSpace(cfg.Command) == "" {
		return nil, WrapError(providerExec, ErrNoCommand)
	}

	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, WrapError(providerExec, fmt.Errorf("parse command: %w", err))
	}
	if len(args) == 0 {
		return nil, WrapError(providerExec, ErrNoCommand)
	}

	return &Exec{
		config: cfg,
		args:   args,
		logger: cfg.Logger.With("component", "tts.exec"),
	}, nil
}

// Args returns the command line with rate, pitch and voice substituted.
// Without a voice, an argument carrying {voice} is dropped, and so is the
// flag before a bare {voice}, leaving the synthesizer on its default.
func (e *Exec) Args() []string {
	rate := strconv.Itoa(int(math.Round(baseWordsPerMinute * e.config.Rate)))
	pitch := strconv.Itoa(int(math.Round(basePitch * e.config.Pitch)))
	voice := e.config.VoiceID

	out := make([]string, 0, len(e.args))
	for _, arg := range e.args {
		if voice == "" && strings.Contains(arg, "{voice}") {
			if arg == "{voice}" && len(out) > 1 && isFlag(out[len(out)-1]) {
				out = out[:len(out)-1]
			}
			continue
		}
		arg = strings.ReplaceAll(arg, "{rate}", rate)
		arg = strings.ReplaceAll(arg, "{pitch}", pitch)
		arg = strings.ReplaceAll(arg, "{voice}", voice)
		out = append(out, arg)
	}
	return out
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && !strings.Contains(arg, "=")
}

// Synthesize runs the command with text on stdin and returns its stdout.
func (e *Exec) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerExec, ErrEmptyText)
	}
	start := time.Now()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	args := e.Args()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(providerExec, fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(stderr.String())))
	}

	latency := time.Since(start)
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", stdout.Len(),
		"latency_ms", latency.Milliseconds(),
	)

	return &AudioResult{
		Audio:     stdout.Bytes(),
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: 22050, Channels: 1},
		CharCount: len(text),
		Latency:   latency,
	}, nil
}

// Health checks the synthesizer binary is on PATH.
func (e *Exec) Health(ctx context.Context) error {
	if _, err := exec.LookPath(e.args[0]); err != nil {
		return WrapError(providerExec, err)
	}
	return nil
}

// Close is a no-op; each utterance is its own process.
func (e *Exec) Close() error {
	return nil
}

// Verify Exec implements Provider at compile time.
var _ Provider = (*Exec)(nil)
