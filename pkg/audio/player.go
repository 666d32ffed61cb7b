// Package audio plays synthesized speech on the local machine.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// DefaultCommand plays any container ffmpeg understands from stdin.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet -i -"

// ErrNoCommand is returned when the player command line is empty.
var ErrNoCommand = errors.New("audio: player command required")

// Sink plays one complete audio clip. Play blocks until playback finishes
// or ctx is cancelled, in which case playback stops immediately.
type Sink interface {
	Play(ctx context.Context, audio []byte) error
}

// Player pipes audio into an external player process, one process per clip.
type Player struct {
	args   []string
	logger *slog.Logger

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	mu      sync.Mutex
	playing bool
}

// NewPlayer parses command and returns a player. An empty command uses
// DefaultCommand.
func NewPlayer(command string, logger *slog.Logger) (*Player, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrNoCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{args: args, logger: logger.With("component", "audio.player")}, nil
}

// Play writes audio to the player's stdin and waits for it to exit.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.args[0], p.args[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	p.setPlaying(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}

	err := cmd.Wait()

	p.setPlaying(false)
	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}

	if ctx.Err() != nil {
		p.logger.Debug("playback cancelled")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("playback: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// IsPlaying returns whether a clip is currently playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) setPlaying(v bool) {
	p.mu.Lock()
	p.playing = v
	p.mu.Unlock()
}

var _ Sink = (*Player)(nil)
