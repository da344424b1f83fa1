// Package analysis implements the coaching analyzers: a Gemini REST client
// and a gRPC sidecar client.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
)

const maxErrorBodySize = 4 << 10

var errNoAPIKey = errors.New("gemini API key not configured")

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

// GeminiClient calls models/{model}:generateContent with inline frames.
type GeminiClient struct {
	cfg    GeminiConfig
	http   *http.Client
	logger *slog.Logger
}

// NewGeminiClient creates a client. The HTTP client has no timeout of its
// own; callers bound each call with the context.
func NewGeminiClient(cfg GeminiConfig, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &GeminiClient{
		cfg:    cfg,
		http:   &http.Client{Transport: http.DefaultTransport},
		logger: logger,
	}
}

// Analyze sends the prompt and frames and returns the concatenated text of
// the first candidate. A response without candidates yields "".
func (c *GeminiClient) Analyze(ctx context.Context, frames []domain.Frame, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errNoAPIKey
	}
	start := time.Now()

	parts := make([]geminiPart, 0, len(frames)+1)
	for _, f := range frames {
		parts = append(parts, geminiPart{InlineData: &geminiBlob{MIMEType: f.MIMEType, Data: f.Base64()}})
	}
	parts = append(parts, geminiPart{Text: prompt})

	body, err := json.Marshal(geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.3,
			TopK:            32,
			TopP:            1,
			MaxOutputTokens: 256,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.Endpoint, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Key in a header keeps it out of access logs.
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	c.logger.Debug("Gemini analysis complete",
		"model", c.cfg.Model,
		"frames", len(frames),
		"latency", time.Since(start),
		"finish_reason", out.Candidates[0].FinishReason)
	return text.String(), nil
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
