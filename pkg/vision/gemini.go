package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/go-visionassist/internal/httpc"
)

const providerGemini = "gemini"

// Gemini implements Describer against the generateContent endpoint.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini describer.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gemini{
		config: cfg,
		http:   client,
		logger: logger.With("component", "vision.gemini"),
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generation_config"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// geminiResponse is the subset of generateContent output we read.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Describe sends the scene prompt plus the image and returns the first
// candidate's text, or FallbackDescription when there is none.
func (g *Gemini) Describe(ctx context.Context, imageB64 string) (string, error) {
	if imageB64 == "" {
		return "", WrapError(providerGemini, ErrEmptyImage)
	}
	start := time.Now()

	payload := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: g.config.Prompt},
				{InlineData: &inlineData{MimeType: ImageMIMEType, Data: imageB64}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     g.config.Temperature,
			MaxOutputTokens: g.config.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("marshal payload: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.config.BaseURL, "/"), g.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.config.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, respBody)
		g.logger.Error("gemini API error",
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return "", apiErr
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("decode response: %w (body: %s)", err, truncate(string(respBody), 200)))
	}

	if result.Error != nil && result.Error.Message != "" {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Status:     result.Error.Status,
			Provider:   providerGemini,
		}
	}

	description := FallbackDescription
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		if text := result.Candidates[0].Content.Parts[0].Text; text != "" {
			description = text
		}
	}

	g.logger.Debug("described image",
		"image_b64_bytes", len(imageB64),
		"chars", len(description),
		"latency_ms", time.Since(start).Milliseconds(),
		"fallback", description == FallbackDescription,
	)

	return description, nil
}

// parseError builds an APIError from a non-success response body.
func parseError(status int, body []byte) *APIError {
	var errResp struct {
		Error geminiError `json:"error"`
	}

	message := truncate(strings.TrimSpace(string(body)), 300)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return &APIError{
		StatusCode: status,
		Message:    message,
		Status:     code,
		Provider:   providerGemini,
	}
}

// truncate shortens a string to at most maxLen bytes without splitting a
// UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Verify Gemini implements Describer at compile time.
var _ Describer = (*Gemini)(nil)
