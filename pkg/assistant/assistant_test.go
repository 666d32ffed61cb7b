package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-visionassist/internal/log"
	"github.com/teslashibe/go-visionassist/pkg/camera"
	"github.com/teslashibe/go-visionassist/pkg/vision"
)

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
}

func (s *recordingSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *recordingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *recordingSpeaker) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spoken) == 0 {
		return ""
	}
	return s.spoken[len(s.spoken)-1]
}

type analyzerFunc func(ctx context.Context, jpeg []byte) (string, error)

func (f analyzerFunc) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	return f(ctx, jpeg)
}

type fixture struct {
	assistant *Assistant
	device    *camera.MockDevice
	speaker   *recordingSpeaker

	mu       sync.Mutex
	statuses []Status
}

func newFixture(t *testing.T, analyzer Analyzer) *fixture {
	t.Helper()
	f := &fixture{device: camera.NewMockDevice(), speaker: &recordingSpeaker{}}
	ctrl := camera.NewController(f.device, camera.DefaultConfig(), nil, log.Discard())

	a, err := New(Options{
		Camera:   ctrl,
		Analyzer: analyzer,
		Speaker:  f.speaker,
		Logger:   log.Discard(),
		OnStateChange: func(s Status) {
			f.mu.Lock()
			f.statuses = append(f.statuses, s)
			f.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	f.assistant = a
	return f
}

func (f *fixture) states() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.statuses))
	for i, s := range f.statuses {
		out[i] = s.State
	}
	return out
}

func waitState(t *testing.T, a *Assistant, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", a.State(), want)
}

func TestNextTable(t *testing.T) {
	tests := []struct {
		state  State
		event  Event
		want   State
		action Action
	}{
		{Idle, EventTap, Capturing, ActionStartCamera},
		{Capturing, EventTap, Analyzing, ActionCapture},
		{Capturing, EventCameraFailed, Idle, ActionNone},
		{Analyzing, EventAnalysisDone, Idle, ActionNone},
		{Analyzing, EventTap, Analyzing, ActionNone},
		{Idle, EventCameraFailed, Idle, ActionNone},
		{Idle, EventAnalysisDone, Idle, ActionNone},
		{Capturing, EventAnalysisDone, Capturing, ActionNone},
		{Analyzing, EventCameraFailed, Analyzing, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.state.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, action := Next(tt.state, tt.event)
			if got != tt.want || action != tt.action {
				t.Errorf("Next(%s, %s) = (%s, %d), want (%s, %d)", tt.state, tt.event, got, action, tt.want, tt.action)
			}
		})
	}
}

func TestStartSpeaksWelcome(t *testing.T) {
	f := newFixture(t, analyzerFunc(func(context.Context, []byte) (string, error) { return "", nil }))
	f.assistant.Start(context.Background())
	if f.speaker.Last() != NoticeWelcome {
		t.Errorf("expected welcome, got %q", f.speaker.Last())
	}
}

func TestFullCycle(t *testing.T) {
	var gotFrame []byte
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		gotFrame = jpeg
		return "A hallway with a door on the left.", nil
	}))
	ctx := context.Background()

	if s := f.assistant.Tap(ctx); s != Capturing {
		t.Fatalf("first tap: %s", s)
	}
	if f.speaker.Last() != NoticeCameraActive {
		t.Errorf("expected camera notice, got %q", f.speaker.Last())
	}
	if f.device.Opens() != 1 {
		t.Errorf("expected camera opened once, got %d", f.device.Opens())
	}

	if s := f.assistant.Tap(ctx); s != Analyzing {
		t.Fatalf("second tap: %s", s)
	}
	if !f.device.Streams()[0].Closed() {
		t.Error("expected camera stopped after capture")
	}

	waitState(t, f.assistant, Idle)

	if f.assistant.Result() != "A hallway with a door on the left." {
		t.Errorf("unexpected result %q", f.assistant.Result())
	}
	if len(gotFrame) < 2 || gotFrame[0] != 0xFF || gotFrame[1] != 0xD8 {
		t.Error("expected a JPEG frame")
	}
	want := []string{NoticeCameraActive, NoticeAnalyzing, "A hallway with a door on the left."}
	spoken := f.speaker.Spoken()
	if len(spoken) != len(want) {
		t.Fatalf("spoken = %v", spoken)
	}
	for i := range want {
		if spoken[i] != want[i] {
			t.Errorf("spoken[%d] = %q, want %q", i, spoken[i], want[i])
		}
	}
	states := f.states()
	if len(states) != 3 || states[0] != Capturing || states[1] != Analyzing || states[2] != Idle {
		t.Errorf("unexpected transitions %v", states)
	}
}

func TestTapWhileAnalyzingIsIgnored(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return "done", nil
	}))
	ctx := context.Background()

	f.assistant.Tap(ctx)
	f.assistant.Tap(ctx)
	for i := 0; i < 3; i++ {
		if s := f.assistant.Tap(ctx); s != Analyzing {
			t.Fatalf("tap %d while analyzing: %s", i, s)
		}
	}
	close(release)
	waitState(t, f.assistant, Idle)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected one analysis, got %d", calls)
	}
	if f.device.Opens() != 1 {
		t.Errorf("expected no extra camera opens, got %d", f.device.Opens())
	}
}

func TestCameraDenied(t *testing.T) {
	called := false
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		called = true
		return "", nil
	}))
	f.device.OpenErr = camera.ErrPermissionDenied

	if s := f.assistant.Tap(context.Background()); s != Idle {
		t.Fatalf("expected idle after denial, got %s", s)
	}
	if f.speaker.Last() != NoticeCameraFailed {
		t.Errorf("expected camera failed notice, got %q", f.speaker.Last())
	}
	if called {
		t.Error("analyzer must not be called")
	}

	// A later tap tries the camera again.
	f.device.OpenErr = nil
	if s := f.assistant.Tap(context.Background()); s != Capturing {
		t.Errorf("expected capturing on retry tap, got %s", s)
	}
}

type slowCamera struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	stops int
}

func (c *slowCamera) Start(ctx context.Context) error {
	close(c.started)
	<-c.release
	return nil
}

func (c *slowCamera) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *slowCamera) Stream() camera.Stream { return nil }

func TestSlowCameraOpenDoesNotBlockStatus(t *testing.T) {
	cam := &slowCamera{started: make(chan struct{}), release: make(chan struct{})}
	speaker := &recordingSpeaker{}
	published := make(chan Status, 8)
	a, err := New(Options{
		Camera:        cam,
		Analyzer:      analyzerFunc(func(context.Context, []byte) (string, error) { return "", nil }),
		Speaker:       speaker,
		Logger:        log.Discard(),
		OnStateChange: func(s Status) { published <- s },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	tapped := make(chan State, 1)
	go func() { tapped <- a.Tap(context.Background()) }()
	<-cam.started

	select {
	case s := <-published:
		if s.State != Capturing {
			t.Errorf("published %s while opening, want capturing", s.State)
		}
	case <-time.After(time.Second):
		t.Fatal("capturing not published before the camera opened")
	}

	statusc := make(chan Status, 1)
	go func() { statusc <- a.Status() }()
	select {
	case s := <-statusc:
		if s.State != Capturing {
			t.Errorf("Status().State = %s, want capturing", s.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Status blocked while the camera was opening")
	}

	if s := a.Tap(context.Background()); s != Capturing {
		t.Errorf("tap while opening = %s, want capturing", s)
	}
	if len(speaker.Spoken()) != 0 {
		t.Errorf("nothing should be spoken before the camera opens, got %v", speaker.Spoken())
	}

	close(cam.release)
	if s := <-tapped; s != Capturing {
		t.Errorf("first tap = %s, want capturing", s)
	}
	if speaker.Last() != NoticeCameraActive {
		t.Errorf("expected camera notice, got %q", speaker.Last())
	}
}

func TestCloseWhileCameraOpeningReleasesIt(t *testing.T) {
	cam := &slowCamera{started: make(chan struct{}), release: make(chan struct{})}
	a, err := New(Options{
		Camera:   cam,
		Analyzer: analyzerFunc(func(context.Context, []byte) (string, error) { return "", nil }),
		Speaker:  &recordingSpeaker{},
		Logger:   log.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tapped := make(chan State, 1)
	go func() { tapped <- a.Tap(context.Background()) }()
	<-cam.started

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(cam.release)
	if s := <-tapped; s != Idle {
		t.Errorf("tap finishing after close = %s, want idle", s)
	}

	cam.mu.Lock()
	defer cam.mu.Unlock()
	if cam.stops != 2 {
		t.Errorf("expected camera stopped by Close and by the late open, got %d stops", cam.stops)
	}
}

func TestAnalysisFailureKeepsPreviousResult(t *testing.T) {
	fail := false
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		if fail {
			return "", &RemoteError{StatusCode: 500, Message: "Failed to analyze image with Gemini API"}
		}
		return "A kitchen.", nil
	}))
	ctx := context.Background()

	f.assistant.Tap(ctx)
	f.assistant.Tap(ctx)
	waitState(t, f.assistant, Idle)

	fail = true
	f.assistant.Tap(ctx)
	f.assistant.Tap(ctx)
	waitState(t, f.assistant, Idle)

	if f.speaker.Last() != NoticeAnalysisFailed {
		t.Errorf("expected failure notice, got %q", f.speaker.Last())
	}
	if f.assistant.Result() != "A kitchen." {
		t.Errorf("expected previous result kept, got %q", f.assistant.Result())
	}
}

func TestGrabFailureReturnsIdleWithoutRequest(t *testing.T) {
	called := false
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		called = true
		return "", nil
	}))
	f.device.Frame = camera.SolidFrame(0, 0, nil)

	f.assistant.Tap(context.Background())
	if s := f.assistant.Tap(context.Background()); s != Idle {
		t.Fatalf("expected idle, got %s", s)
	}
	if called {
		t.Error("analyzer must not be called")
	}
	if f.speaker.Last() != NoticeAnalysisFailed {
		t.Errorf("expected failure notice, got %q", f.speaker.Last())
	}
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		close(started)
		<-ctx.Done()
		return "too late", nil
	}))

	f.assistant.Tap(context.Background())
	f.assistant.Tap(context.Background())
	<-started

	if err := f.assistant.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.assistant.Result() != "" {
		t.Errorf("stale result stored: %q", f.assistant.Result())
	}
	if f.assistant.State() != Idle {
		t.Errorf("expected idle after close, got %s", f.assistant.State())
	}
	if f.assistant.Tap(context.Background()) != Idle {
		t.Error("taps after close must be ignored")
	}
}

func TestRepeat(t *testing.T) {
	f := newFixture(t, analyzerFunc(func(ctx context.Context, jpeg []byte) (string, error) {
		return "A park bench.", nil
	}))

	if f.assistant.Repeat() {
		t.Error("expected nothing to repeat")
	}

	f.assistant.Tap(context.Background())
	f.assistant.Tap(context.Background())
	waitState(t, f.assistant, Idle)

	if !f.assistant.Repeat() {
		t.Fatal("expected repeat")
	}
	if f.speaker.Last() != "A park bench." {
		t.Errorf("unexpected repeat %q", f.speaker.Last())
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(Status{State: Analyzing})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	_ = json.Unmarshal(data, &decoded)
	if decoded["state"] != "analyzing" {
		t.Errorf("unexpected state field %v", decoded["state"])
	}
}

func TestHTTPAnalyzer(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id")
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Image != base64.StdEncoding.EncodeToString(frame) {
			t.Errorf("unexpected image %q", req.Image)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"description":"A red door."}`))
	}))
	defer server.Close()

	a := NewHTTPAnalyzer(server.URL+"/api/analyze-image", server.Client(), log.Discard())
	got, err := a.Analyze(context.Background(), frame)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "A red door." {
		t.Errorf("got %q", got)
	}
}

func TestHTTPAnalyzerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "upstream failure",
			status: http.StatusInternalServerError,
			body:   `{"error":"Failed to analyze image with Gemini API"}`,
			check: func(t *testing.T, err error) {
				var remote *RemoteError
				if !errors.As(err, &remote) || remote.Message != "Failed to analyze image with Gemini API" {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
		{
			name:   "bad request without body",
			status: http.StatusBadRequest,
			body:   ``,
			check: func(t *testing.T, err error) {
				var remote *RemoteError
				if !errors.As(err, &remote) || remote.StatusCode != 400 || remote.Message != "Bad Request" {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
		{
			name:   "empty description",
			status: http.StatusOK,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyDescription) {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPAnalyzer(server.URL, nil, log.Discard()).Analyze(context.Background(), []byte{1})
			tt.check(t, err)
		})
	}
}

func TestDescriberAnalyzer(t *testing.T) {
	mock := vision.NewMock("A staircase going down.")
	a := NewDescriberAnalyzer(mock)

	got, err := a.Analyze(context.Background(), []byte("jpeg"))
	if err != nil || got != "A staircase going down." {
		t.Fatalf("Analyze = %q, %v", got, err)
	}
	if mock.LastImage() != base64.StdEncoding.EncodeToString([]byte("jpeg")) {
		t.Errorf("unexpected image %q", mock.LastImage())
	}
}
