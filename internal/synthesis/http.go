package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"overdub/internal/config"
	"overdub/internal/services"
)

const (
	defaultVoice       = "alloy"
	defaultSpeechURL   = "https://api.openai.com/v1/audio/speech"
	defaultHTTPTimeout = 120 * time.Second
)

// speechProvider posts to an OpenAI-style /audio/speech endpoint.
type speechProvider struct {
	baseURL    string
	model      string
	voice      string
	sampleRate int
	httpClient *http.Client
}

// Option customizes a provider.
type Option func(*speechProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *speechProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

func newSpeechProvider(cfg config.Synthesis, model, voice string, opts ...Option) *speechProvider {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultSpeechURL
	}
	provider := &speechProvider{
		baseURL:    baseURL,
		model:      model,
		voice:      voice,
		sampleRate: cfg.SampleRate,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

func (p *speechProvider) Name() string {
	return p.model + ":" + p.voice
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
	SampleRate     int    `json:"sample_rate,omitempty"`
}

// Synthesize renders text to WAV bytes.
func (p *speechProvider) Synthesize(ctx context.Context, apiKey, text string) ([]byte, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrCredential, "synthesis", "request", "api key required", nil)
	}

	encoded, err := json.Marshal(speechRequest{
		Model:          p.model,
		Voice:          p.voice,
		Input:          text,
		ResponseFormat: "wav",
		SampleRate:     p.sampleRate,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "synthesis", "request", "encode body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "synthesis", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, "synthesis", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode, body)
	}
	return body, nil
}

func classifyStatus(status int, body []byte) error {
	detail := fmt.Sprintf("http %d: %s", status, payloadSnippet(body))
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return services.Wrap(services.ErrCredential, "synthesis", "request", detail, nil)
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return services.Wrap(services.ErrQuota, "synthesis", "request", detail, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrNetwork, "synthesis", "request", detail, nil)
	default:
		return services.Wrap(services.ErrProcessing, "synthesis", "request", detail, nil)
	}
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "synthesis", "request", "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrNetwork, "synthesis", "request", "transport failure", err)
	}
	return services.Wrap(services.ErrProcessing, "synthesis", "request", "request failed", err)
}

func payloadSnippet(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
