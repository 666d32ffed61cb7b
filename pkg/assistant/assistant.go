// Package assistant drives the tap-to-describe loop: the first tap opens
// the camera, the second captures a frame and has it described aloud.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-visionassist/pkg/camera"
)

// Spoken notices.
const (
	NoticeWelcome        = "Welcome to Vision Assistant. Tap anywhere on the screen to capture and analyze your surroundings."
	NoticeCameraActive   = "Camera is now active. Please point your camera at what you want to analyze."
	NoticeCameraFailed   = "Could not access the camera. Please make sure you've granted camera permissions."
	NoticeAnalyzing      = "Analyzing your surroundings. Please wait a moment."
	NoticeAnalysisFailed = "Sorry, there was an error analyzing the image. Please try again."
)

// Camera is the capture lifecycle the assistant needs.
type Camera interface {
	Start(ctx context.Context) error
	Stop()
	Stream() camera.Stream
}

// Speaker says one thing at a time, cutting off whatever came before.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Status is a snapshot published on every transition.
type Status struct {
	State  State     `json:"state"`
	Result string    `json:"result,omitempty"`
	At     time.Time `json:"at"`
}

// Options are the collaborators an Assistant composes.
type Options struct {
	Camera   Camera
	Grabber  *camera.Grabber
	Analyzer Analyzer
	Speaker  Speaker
	Logger   *slog.Logger

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(Status)
}

// Assistant owns the state machine and its collaborators.
type Assistant struct {
	camera   Camera
	grabber  *camera.Grabber
	analyzer Analyzer
	speaker  Speaker
	logger   *slog.Logger
	onChange func(Status)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	result     string
	generation uint64
	opening    bool
	closed     bool
}

// New validates the collaborators and returns an idle assistant.
func New(opts Options) (*Assistant, error) {
	if opts.Camera == nil {
		return nil, errors.New("assistant: camera required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("assistant: analyzer required")
	}
	if opts.Speaker == nil {
		return nil, errors.New("assistant: speaker required")
	}
	if opts.Grabber == nil {
		opts.Grabber = camera.NewGrabber(camera.DefaultConfig().Quality)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Assistant{
		camera:   opts.Camera,
		grabber:  opts.Grabber,
		analyzer: opts.Analyzer,
		speaker:  opts.Speaker,
		logger:   opts.Logger.With("component", "assistant"),
		onChange: opts.OnStateChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start announces the assistant.
func (a *Assistant) Start(ctx context.Context) {
	a.speaker.Speak(NoticeWelcome)
	a.logger.Info("assistant ready")
}

// Tap handles one tap and returns the state it leaves the assistant in.
// The camera open and the frame grab run without the lock held, so status
// reads and the published Capturing state are not held up by the device.
func (a *Assistant) Tap(ctx context.Context) State {
	a.mu.Lock()
	if a.closed || a.opening {
		defer a.mu.Unlock()
		return a.state
	}

	next, action := Next(a.state, EventTap)
	switch action {
	case ActionStartCamera:
		return a.startCamera(ctx, next)
	case ActionCapture:
		return a.capture(next)
	default:
		a.logger.Debug("tap ignored", "state", a.state)
		defer a.mu.Unlock()
		return a.state
	}
}

// startCamera is called with mu held and releases it.
func (a *Assistant) startCamera(ctx context.Context, next State) State {
	a.state = next
	a.opening = true
	a.generation++
	gen := a.generation
	a.unlockAndNotify()

	err := a.camera.Start(ctx)

	a.mu.Lock()
	a.opening = false
	if gen != a.generation || a.closed {
		state := a.state
		a.mu.Unlock()
		a.logger.Debug("camera opened after close", "generation", gen)
		if err == nil {
			a.camera.Stop()
		}
		return state
	}

	if err != nil {
		a.logger.Warn("camera unavailable", "error", err)
		a.state, _ = Next(a.state, EventCameraFailed)
		state := a.unlockAndNotify()
		a.speaker.Speak(NoticeCameraFailed)
		return state
	}
	state := a.state
	a.mu.Unlock()
	a.speaker.Speak(NoticeCameraActive)
	return state
}

// capture is called with mu held and releases it. The state moves to
// Analyzing before the grab so further taps are ignored while it runs.
func (a *Assistant) capture(next State) State {
	a.state = next
	a.generation++
	gen := a.generation
	a.mu.Unlock()

	frame, err := a.grabber.Grab(a.camera.Stream())
	a.camera.Stop()

	a.mu.Lock()
	if gen != a.generation || a.closed {
		state := a.state
		a.mu.Unlock()
		return state
	}

	if err != nil {
		a.logger.Warn("frame grab failed", "error", err)
		a.state = Idle
		state := a.unlockAndNotify()
		a.speaker.Speak(NoticeAnalysisFailed)
		return state
	}

	a.wg.Add(1)
	state := a.unlockAndNotify()
	a.speaker.Speak(NoticeAnalyzing)
	go a.analyze(gen, frame)
	return state
}

func (a *Assistant) analyze(gen uint64, frame []byte) {
	defer a.wg.Done()

	start := time.Now()
	description, err := a.analyzer.Analyze(a.ctx, frame)

	a.mu.Lock()
	if gen != a.generation || a.closed {
		a.mu.Unlock()
		a.logger.Debug("dropping stale analysis", "generation", gen)
		return
	}

	say := NoticeAnalysisFailed
	if err != nil {
		a.logger.Warn("analysis failed", "error", err, "latency_ms", time.Since(start).Milliseconds())
	} else {
		a.logger.Info("analysis complete", "chars", len(description), "latency_ms", time.Since(start).Milliseconds())
		a.result = description
		say = description
	}
	a.mu.Unlock()

	// Taps are still ignored here; Idle is published once speech is queued.
	a.speaker.Speak(say)

	a.mu.Lock()
	if gen != a.generation || a.closed {
		a.mu.Unlock()
		return
	}
	a.state, _ = Next(a.state, EventAnalysisDone)
	a.unlockAndNotify()
}

// Repeat speaks the last description again. It reports false when there
// is nothing to repeat.
func (a *Assistant) Repeat() bool {
	a.mu.Lock()
	result := a.result
	a.mu.Unlock()

	if result == "" {
		return false
	}
	a.speaker.Speak(result)
	return true
}

// State returns the current state.
func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Result returns the last description, or "".
func (a *Assistant) Result() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Status returns a snapshot of state and result.
func (a *Assistant) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked()
}

// Close abandons any in-flight analysis and releases the camera and voice.
// Results arriving afterwards are discarded.
func (a *Assistant) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.generation++
	a.state = Idle
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.camera.Stop()
	a.speaker.Stop()
	return nil
}

func (a *Assistant) statusLocked() Status {
	return Status{State: a.state, Result: a.result, At: time.Now()}
}

// unlockAndNotify releases mu and publishes the new status.
func (a *Assistant) unlockAndNotify() State {
	status := a.statusLocked()
	a.mu.Unlock()

	a.logger.Debug("state changed", "state", status.State)
	if a.onChange != nil {
		a.onChange(status)
	}
	return status.State
}
