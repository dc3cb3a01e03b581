// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/model"
)

// DefaultBaseURL is the backend location used when nothing is configured.
const DefaultBaseURL = "http://127.0.0.1:38001"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeStream
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "backend is not reachable"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:38001)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// HealthTimeout bounds a single health probe (default: 5s)
	HealthTimeout time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       DefaultBaseURL,
		Timeout:       30 * time.Second,
		HealthTimeout: 5 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat backend.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HealthTimeout == 0 {
		config.HealthTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the configured backend location.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// IsDefaultLocation reports whether the client talks to the default backend
// location.
func (c *Client) IsDefaultLocation() bool {
	return c.config.BaseURL == DefaultBaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health probes GET /api/health. Any 2xx is healthy; everything else,
// including a timeout, is an error.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unhealthy backend: " + resp.Status,
		}
	}
	return nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Configure fetches GET /api/configure.
func (c *Client) Configure(ctx context.Context) (*FrontendConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/configure", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "configure request failed: " + resp.Status,
		}
	}

	var result FrontendConfig
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// LoadFrontendConfig is Configure that never fails: an unreachable backend or
// a malformed answer degrades to an empty configuration.
func (c *Client) LoadFrontendConfig(ctx context.Context) *FrontendConfig {
	cfg, err := c.Configure(ctx)
	if err != nil {
		c.logger.Warn("backend configuration unavailable", zap.String("url", c.config.BaseURL), zap.Error(err))
		return &FrontendConfig{}
	}
	return cfg
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// EmitFunc receives a snapshot of the assistant message after every chunk.
// Snapshots are independent copies.
type EmitFunc func(msg model.Message)

// Stream sends a chat request and folds the UI-message stream into assistant
// message snapshots passed to emit. emit is called synchronously, in stream
// order. Returns when the stream is complete, fails, or ctx is cancelled
// (in which case ctx.Err() is returned).
func (c *Client) Stream(ctx context.Context, r ChatRequest, emit EmitFunc) error {
	body, err := encodeChatRequest(r)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// Use a client without timeout for streaming (we handle timeout via context)
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := "chat request failed: " + resp.Status
		if data, rerr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); rerr == nil {
			if detail := errorDetail(data); detail != "" {
				msg = detail
			}
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}

	reader := NewStreamReader(resp.Body)
	assembler := NewAssembler()
	err = reader.Process(ctx, func(chunk []byte) error {
		changed, err := assembler.Apply(chunk)
		if changed && emit != nil {
			emit(assembler.Snapshot())
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// encodeChatRequest builds the JSON body, merging the option bag into the
// top-level object.
func encodeChatRequest(r ChatRequest) ([]byte, error) {
	trigger := r.Trigger
	if trigger == "" {
		trigger = TriggerSubmit
	}
	msgs := r.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}

	body, err := json.Marshal(chatBody{
		ID:        r.ID,
		Messages:  msgs,
		Trigger:   trigger,
		MessageID: r.MessageID,
	})
	if err != nil {
		return nil, err
	}

	if r.Options.Model != "" {
		if body, err = sjson.SetBytes(body, "model", r.Options.Model); err != nil {
			return nil, err
		}
	}
	if body, err = sjson.SetBytes(body, "webSearch", r.Options.WebSearch); err != nil {
		return nil, err
	}
	if len(r.Options.BuiltinTools) > 0 {
		if body, err = sjson.SetBytes(body, "builtinTools", r.Options.BuiltinTools); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// errorDetail pulls a message out of a JSON error body
// ({"error": "..."}, {"detail": "..."} or {"error": {"message": "..."}}).
func errorDetail(data []byte) string {
	if !gjson.ValidBytes(data) {
		return strings.TrimSpace(string(data))
	}
	for _, path := range []string{"error.message", "error", "detail", "message"} {
		if v := gjson.GetBytes(data, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// =============================================================================
// HELPERS
// =============================================================================

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: ErrNotRunning.Message, Cause: err}
}

// IsNotRunning checks if an error indicates the backend could not be reached.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsStreamError checks if an error was reported inside the chat stream.
func IsStreamError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeStream
	}
	return false
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
