package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/teslashibe/go-visionassist/internal/log"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGemini(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithLogger(log.Discard()),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return g
}

func TestGeminiDescribe(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/gemini-2.0-flash-001:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("Expected api key header, got %q", got)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Fatalf("expected one content with two parts, got %+v", req.Contents)
		}
		if req.Contents[0].Parts[0].Text != ScenePrompt {
			t.Errorf("expected scene prompt, got %q", req.Contents[0].Parts[0].Text)
		}
		img := req.Contents[0].Parts[1].InlineData
		if img == nil || img.MimeType != "image/jpeg" || img.Data != "aGVsbG8=" {
			t.Errorf("unexpected inline data: %+v", img)
		}
		if req.GenerationConfig.Temperature != 0.4 || req.GenerationConfig.MaxOutputTokens != 1024 {
			t.Errorf("unexpected generation config: %+v", req.GenerationConfig)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A person stands near a doorway."}]}}]}`))
	})

	text, err := g.Describe(context.Background(), "aGVsbG8=")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text != "A person stands near a doorway." {
		t.Errorf("Unexpected description: %q", text)
	}
}

func TestGeminiDescribeFallback(t *testing.T) {
	bodies := map[string]string{
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"empty text":    `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
		"empty object":  `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			text, err := g.Describe(context.Background(), "aGVsbG8=")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != FallbackDescription {
				t.Errorf("expected fallback, got %q", text)
			}
		})
	}
}

func TestGeminiDescribeAPIError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := g.Describe(context.Background(), "aGVsbG8=")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Message != "API key not valid" || apiErr.Status != "INVALID_ARGUMENT" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
	if !IsUpstream(err) {
		t.Error("expected IsUpstream to be true")
	}
}

func TestGeminiDescribeNonJSONError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.Describe(context.Background(), "aGVsbG8=")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "Bad Gateway" {
		t.Errorf("expected status text message, got %q", apiErr.Message)
	}
}

func TestGeminiDescribeMalformedBody(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := g.Describe(context.Background(), "aGVsbG8=")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsUpstream(err) {
		t.Error("malformed body must not be reported as an upstream error")
	}
	if !strings.Contains(err.Error(), "decode response") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGeminiDescribeEmptyImage(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty image")
	})

	if _, err := g.Describe(context.Background(), ""); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock("a hallway")
	text, err := m.Describe(context.Background(), "abc")
	if err != nil || text != "a hallway" {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if m.Calls() != 1 || m.LastImage() != "abc" {
		t.Fatalf("calls not recorded")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"caf\u00e9!", 4, "caf"},
		{"\u65e5\u672c\u8a9e", 4, "\u65e5"},
		{"\u65e5\u672c", 2, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
