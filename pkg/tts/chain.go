package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Chain speaks with the first voice that works. The narrator cancels ctx
// when a newer utterance arrives; a cancelled utterance is abandoned rather
// than handed to the next voice.
type Chain struct {
	voices []Provider
	logger *slog.Logger
}

// NewChain returns a Chain over voices, tried in order. A nil logger
// means slog.Default.
func NewChain(logger *slog.Logger, voices ...Provider) (*Chain, error) {
	if len(voices) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{voices: voices, logger: logger.With("component", "tts.chain")}, nil
}

// Synthesize implements Provider.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var failures []error
	for i, voice := range c.voices {
		audio, err := voice.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("spoke with fallback voice", "voice", i, "chars", len(text))
			}
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures = append(failures, err)
		c.logger.Warn("voice failed", "voice", i, "error", err)
	}
	return nil, &ChainError{Errors: failures}
}

// Health passes when at least one voice is usable.
func (c *Chain) Health(ctx context.Context) error {
	var failures []error
	for _, voice := range c.voices {
		if err := voice.Health(ctx); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) == len(c.voices) {
		return &ChainError{Errors: failures}
	}
	c.logger.Debug("voices checked", "usable", len(c.voices)-len(failures), "total", len(c.voices))
	return nil
}

// Close closes every voice.
func (c *Chain) Close() error {
	var errs []error
	for _, voice := range c.voices {
		errs = append(errs, voice.Close())
	}
	return errors.Join(errs...)
}

// ChainError holds one error per voice tried, in order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("tts: no voice could speak (%s)", strings.Join(parts, "; "))
}

// Unwrap lets errors.Is and errors.As see every voice's failure.
func (e *ChainError) Unwrap() []error { return e.Errors }

var _ Provider = (*Chain)(nil)
