// Package openrouter implements the outbound client for the OpenRouter
// chat completion API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatbot-api/internal/config"

	log "github.com/sirupsen/logrus"
)

// Sentinel errors callers use to distinguish gateway failure modes.
var (
	// ErrNotConfigured indicates no API key is present.
	ErrNotConfigured = errors.New("openrouter: api key is not configured")
	// ErrUnauthorized indicates the configured API key was rejected upstream.
	ErrUnauthorized = errors.New("openrouter: invalid api key")
)

// Generation defaults applied when the request omits them.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	requestTimeout     = 60 * time.Second
)

// ChatMessage is a single turn in upstream wire format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest describes a completion call.
type GenerateRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   int
}

// GenerateResult carries the assistant reply and usage accounting.
type GenerateResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Model describes an upstream model listing entry.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

// Client calls the OpenRouter HTTP API.
type Client struct {
	cfg        config.OpenRouterConfig
	httpClient *http.Client
}

// NewClient constructs a Client. A missing API key is allowed; calls will
// fail with ErrNotConfigured until one is provided.
func NewClient(cfg config.OpenRouterConfig) *Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("openrouter api key is not set")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// DefaultModel returns the fallback model identifier.
func (c *Client) DefaultModel() string {
	return c.cfg.DefaultModel
}

// wire types for the completion endpoint.
type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate requests a chat completion. Upstream failures are returned as-is
// with no retry; the caller decides how to degrade.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if !c.IsConfigured() {
		return GenerateResult{}, ErrNotConfigured
	}
	if len(req.Messages) == 0 {
		return GenerateResult{}, errors.New("openrouter: no messages")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload, errMarshal := json.Marshal(completionRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if errMarshal != nil {
		return GenerateResult{}, fmt.Errorf("openrouter: marshal request: %w", errMarshal)
	}

	body, status, errDo := c.do(ctx, http.MethodPost, "/chat/completions", payload)
	if errDo != nil {
		return GenerateResult{}, errDo
	}
	if status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return GenerateResult{}, ErrUnauthorized
		}
		return GenerateResult{}, fmt.Errorf("openrouter: %s", upstreamMessage(body, status))
	}

	var parsed completionResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return GenerateResult{}, fmt.Errorf("openrouter: decode response: %w", errUnmarshal)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResult{}, errors.New("openrouter: empty completion")
	}
	return GenerateResult{
		Content:          parsed.Choices[0].Message.Content,
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// Models lists the models available upstream.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	body, status, errDo := c.do(ctx, http.MethodGet, "/models", nil)
	if errDo != nil {
		return nil, errDo
	}
	if status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("openrouter: %s", upstreamMessage(body, status))
	}

	var parsed struct {
		Data []Model `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return nil, fmt.Errorf("openrouter: decode models: %w", errUnmarshal)
	}
	return parsed.Data, nil
}

// do executes an API request and returns the raw body and status code.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, errReq := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if errReq != nil {
		return nil, 0, fmt.Errorf("openrouter: build request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, 0, fmt.Errorf("openrouter: request failed: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, 0, fmt.Errorf("openrouter: read response: %w", errRead)
	}
	return body, resp.StatusCode, nil
}

// upstreamMessage extracts a readable error message from an error body.
func upstreamMessage(body []byte, status int) string {
	var parsed errorResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("upstream error: status %d", status)
}
