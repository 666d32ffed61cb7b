package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/teslashibe/go-visionassist/internal/httpc"
	"github.com/teslashibe/go-visionassist/pkg/vision"
)

// Analyzer turns a captured JPEG into a spoken description.
type Analyzer interface {
	Analyze(ctx context.Context, jpeg []byte) (string, error)
}

// ErrEmptyDescription is returned when the proxy answers 2xx without text.
var ErrEmptyDescription = errors.New("assistant: empty description")

// RemoteError is a non-2xx answer from the analyze endpoint.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("analyze: status %d: %s", e.StatusCode, e.Message)
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Description string `json:"description"`
	Error       string `json:"error"`
}

// HTTPAnalyzer posts frames to a remote /api/analyze-image.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPAnalyzer creates an analyzer for the endpoint at url. A nil
// client uses the shared httpc client.
func NewHTTPAnalyzer(url string, client *http.Client, logger *slog.Logger) *HTTPAnalyzer {
	if client == nil {
		client = httpc.Client
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPAnalyzer{
		url:    url,
		client: client,
		logger: logger.With("component", "assistant.http_analyzer"),
	}
}

// Analyze sends the frame base64-encoded and returns the description.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	body, err := json.Marshal(analyzeRequest{Image: base64.StdEncoding.EncodeToString(jpeg)})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed analyzeResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		a.logger.Warn("analyze failed", "request_id", requestID, "status", resp.StatusCode, "error", msg)
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	if parsed.Description == "" {
		return "", ErrEmptyDescription
	}

	a.logger.Debug("analyze ok", "request_id", requestID, "bytes", len(jpeg))
	return parsed.Description, nil
}

// DescriberAnalyzer analyzes in-process through a vision.Describer.
type DescriberAnalyzer struct {
	describer vision.Describer
}

// NewDescriberAnalyzer wraps d.
func NewDescriberAnalyzer(d vision.Describer) *DescriberAnalyzer {
	return &DescriberAnalyzer{describer: d}
}

// Analyze encodes the frame and describes it.
func (a *DescriberAnalyzer) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	return a.describer.Describe(ctx, base64.StdEncoding.EncodeToString(jpeg))
}

var (
	_ Analyzer = (*HTTPAnalyzer)(nil)
	_ Analyzer = (*DescriberAnalyzer)(nil)
)
