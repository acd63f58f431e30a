// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for the OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds a request when the caller's context has no deadline.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the largest response body the client will read.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "tierguard/1.0"
)

// sharedTransport pools connections across every Client.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// OpenRouterModels maps friendly names to full model identifiers.
var OpenRouterModels = map[string]string{
	"auto":   "openrouter/auto",
	"haiku":  "anthropic/claude-3.5-haiku",
	"sonnet": "anthropic/claude-3.5-sonnet",
	"opus":   "anthropic/claude-3-opus",
	"gpt4o":  "openai/gpt-4o",
	"mini":   "openai/gpt-4o-mini",
}

// ResolveModel expands a friendly name; full identifiers pass through.
func ResolveModel(name string) string {
	if full, ok := OpenRouterModels[name]; ok {
		return full
	}
	return name
}

// =============================================================================
// ERRORS
// =============================================================================

// Error variables for common OpenRouter failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrAuthFailed indicates an invalid or expired API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account is out of credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrEmptyResponse indicates a 200 response with no choices.
	ErrEmptyResponse = errors.New("response contained no choices")
)

// APIError is a non-200 response from OpenRouter.
type APIError struct {
	Code    string
	Message string
	Status  int

	kind error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	prefix := "OpenRouter error"
	if e.kind != nil {
		prefix = e.kind.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s [%s] (HTTP %d): %s", prefix, e.Code, e.Status, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", prefix, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", prefix, e.Status, e.Message)
}

// Unwrap returns the matching sentinel, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Transient reports whether the same request may succeed if repeated:
// rate limiting and server-side failures.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status < 600)
}

// apiErrorResponse is the error body OpenRouter sends.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// ChatRequest is the body of a chat completions request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Usage is the token accounting returned with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a chat completions response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// GetContent returns the content of the first choice, or "" if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// Pricing is the per-token price of a model, as decimal strings.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ContextSize int     `json:"context_length"`
	Pricing     Pricing `json:"pricing"`
}

type modelsResponse struct {
	Data []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		ContextLength int      `json:"context_length"`
		Pricing       *Pricing `json:"pricing"`
	} `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the OpenRouter API. It is safe for concurrent use.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	siteURL     string
	siteName    string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient creates a client for apiKey. An empty key still yields a
// client, but Chat fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultOpenRouterURL,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		siteURL:  "https://github.com/jeranaias/tierguard",
		siteName: "tierguard",
		logger:   slog.Default().With("component", "cloud"),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithSiteName sets the X-Title header OpenRouter uses for attribution.
func (c *Client) WithSiteName(name string) *Client {
	c.siteName = name
	return c
}

// WithSampling sets temperature and the completion token cap. Zero values
// are left out of the request.
func (c *Client) WithSampling(temperature float64, maxTokens int) *Client {
	c.temperature = temperature
	c.maxTokens = maxTokens
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIKeyMasked returns a display form of the key that exposes none of it.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), c.KeyFingerprint())
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// Chat performs one chat completion with model. Friendly model names are
// expanded through OpenRouterModels.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	reqBody := ChatRequest{
		Model:       ResolveModel(model),
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api response", "path", req.URL.Path, "model", reqBody.Model, "status", resp.StatusCode, "duration", time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &chatResp, nil
}

// ListModels retrieves the models OpenRouter currently offers.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	models := make([]ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		info := ModelInfo{ID: m.ID, Name: m.Name, ContextSize: m.ContextLength}
		if m.Pricing != nil {
			info.Pricing = *m.Pricing
		}
		models = append(models, info)
	}
	return models, nil
}

// readResponse reads the body, refusing anything over MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-200 response into an *APIError.
func handleErrorResponse(status int, body []byte) error {
	e := &APIError{Status: status}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.kind = ErrAuthFailed
	case http.StatusPaymentRequired:
		e.kind = ErrInsufficientCredits
	case http.StatusNotFound:
		e.kind = ErrModelNotFound
	case http.StatusTooManyRequests:
		e.kind = ErrRateLimited
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		e.Message = apiErr.Error.Message
		if apiErr.Error.Code != nil {
			e.Code = fmt.Sprint(apiErr.Error.Code)
		}
		return e
	}
	if e.kind == nil {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

// ValidateAPIKey checks that apiKey looks like an OpenRouter key. It does
// not contact the API.
func ValidateAPIKey(apiKey string) bool {
	apiKey = strings.TrimSpace(apiKey)
	if !strings.HasPrefix(apiKey, "sk-or-") || len(apiKey) < 38 {
		return false
	}
	unique := make(map[rune]bool)
	for _, r := range apiKey[6:] {
		unique[r] = true
	}
	return len(unique) >= 10
}
