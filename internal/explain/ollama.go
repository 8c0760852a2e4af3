package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

const (
	defaultBaseURL = "http://localhost:11434"
	// DefaultModel is used when no model is configured.
	DefaultModel = "llama3.2"

	systemPrompt = "You are a concise, tasteful music copywriter."
)

var errEmptyResponse = errors.New("ollama: empty response")

// Ollama asks a local Ollama model for the description and falls back to
// Template whenever the model cannot answer.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	fallback   Describer
	log        *zap.Logger
}

// Option configures Ollama.
type Option func(*Ollama)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Ollama) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Ollama) {
		if l != nil {
			o.log = l
		}
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// NewOllama creates a Describer backed by the Ollama server at baseURL.
func NewOllama(baseURL, model string, opts ...Option) *Ollama {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	o := &Ollama{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		fallback: Template{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Describe implements Describer.
func (o *Ollama) Describe(ctx context.Context, mood, listeningContext string, tracks []scoring.ScoredTrack) string {
	text, err := o.chat(ctx, prompt(mood, listeningContext, tracks))
	if err != nil {
		o.log.Warn("describing playlist with ollama, using template", zap.Error(err))
		return o.fallback.Describe(ctx, mood, listeningContext, tracks)
	}
	return text
}

func (o *Ollama) chat(ctx context.Context, message string) (string, error) {
	payload := chatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}

	text := strings.Trim(strings.TrimSpace(parsed.Message.Content), `"`)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
