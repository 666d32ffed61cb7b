// Package speech speaks short notices and descriptions to the user.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-visionassist/pkg/audio"
	"github.com/teslashibe/go-visionassist/pkg/tts"
)

// Narrator speaks one utterance at a time. A new utterance cuts off the
// one in progress; nothing is queued behind it.
type Narrator struct {
	provider tts.Provider
	sink     audio.Sink
	logger   *slog.Logger

	// speakMu serializes Speak and Stop so the wait on the previous
	// utterance cannot interleave with starting the next.
	speakMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	last     string
	speaking bool
}

// NewNarrator creates a narrator over a synthesizer and a playback sink.
func NewNarrator(provider tts.Provider, sink audio.Sink, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{
		provider: provider,
		sink:     sink,
		logger:   logger.With("component", "speech.narrator"),
	}
}

// Speak cancels the current utterance, waits for it to release the sink,
// and starts speaking text in the background.
func (n *Narrator) Speak(text string) {
	n.speakMu.Lock()
	defer n.speakMu.Unlock()

	n.stopLocked()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	n.cancel = cancel
	n.done = done
	n.last = text
	n.speaking = true
	n.mu.Unlock()

	go n.run(ctx, text, done)
}

// Stop cancels the current utterance, if any, and waits for it to end.
func (n *Narrator) Stop() {
	n.speakMu.Lock()
	defer n.speakMu.Unlock()
	n.stopLocked()
}

// Wait blocks until the current utterance finishes on its own.
func (n *Narrator) Wait() {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Speaking reports whether an utterance is in progress.
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.speaking
}

// Last returns the most recently requested text.
func (n *Narrator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// stopLocked must be called with speakMu held.
func (n *Narrator) stopLocked() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (n *Narrator) run(ctx context.Context, text string, done chan struct{}) {
	defer func() {
		n.mu.Lock()
		if n.done == done || n.done == nil {
			n.speaking = false
		}
		n.mu.Unlock()
		close(done)
	}()

	result, err := n.provider.Synthesize(ctx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			n.logger.Warn("synthesis failed", "error", err, "chars", len(text))
		}
		return
	}

	if err := n.sink.Play(ctx, result.Audio); err != nil && !errors.Is(err, context.Canceled) {
		n.logger.Warn("playback failed", "error", err)
		return
	}
	n.logger.Debug("spoke", "chars", len(text), "synth_ms", result.Latency.Milliseconds())
}
