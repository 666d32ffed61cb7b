package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-visionassist/pkg/assistant"
)

var (
	errQuit        = errors.New("quit")
	errInputClosed = errors.New("input closed")
)

type tapper interface {
	Tap(ctx context.Context) assistant.State
	Repeat() bool
}

// readKeys maps terminal lines to assistant actions. The terminal is in
// line mode, so a bare Enter or a line of spaces is a tap. A clean end of
// input returns errInputClosed: stdin is often /dev/null under a service
// manager, and the dashboard still drives the assistant.
func readKeys(ctx context.Context, r io.Reader, a tapper) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			a.Tap(ctx)
		case "r":
			a.Repeat()
		case "q":
			return errQuit
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errInputClosed
}

// waitForExit blocks until ctx is done, the user quits or a worker fails.
// Closed input alone does not end the process.
func waitForExit(ctx context.Context, errc <-chan error, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			switch {
			case errors.Is(err, errInputClosed):
				logger.Info("stdin closed, taps only from the dashboard")
			case err == nil, errors.Is(err, errQuit):
				return nil
			default:
				return err
			}
		}
	}
}
