// Package assistant forwards chat messages to the external AI endpoint.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/medblog/pkg/logger"
)

const (
	defaultTimeout    = 15 * time.Second
	maxMessageRunes   = 4000
	maxHistory        = 20
	maxResponseBytes  = 1 << 20
	errorSnippetBytes = 256
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
}

type chatResponse struct {
	Reply    string `json:"reply"`
	Response string `json:"response"`
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client proxies chat messages. A client with an empty endpoint is disabled.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("assistant")
	}
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.endpoint != "" }

// Ask sends message with the recent history and returns the reply text.
func (c *Client) Ask(ctx context.Context, message string, history []Message) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message must not be empty: %w", ErrInvalidInput)
	}
	if n := len([]rune(message)); n > maxMessageRunes {
		return "", fmt.Errorf("message has %d characters, limit is %d: %w", n, maxMessageRunes, ErrInvalidInput)
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	body, err := json.Marshal(chatRequest{Message: message, History: history})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn(ctx, "assistant request failed", logger.Error(err))
		return "", fmt.Errorf("send request: %v: %w", err, ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %v: %w", err, ErrUpstream)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > errorSnippetBytes {
			snippet = snippet[:errorSnippetBytes]
		}
		c.log.Warn(ctx, "assistant returned error status",
			logger.Int("status", resp.StatusCode),
			logger.String("body", snippet),
		)
		return "", fmt.Errorf("unexpected status %d: %w", resp.StatusCode, ErrUpstream)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %v: %w", err, ErrUpstream)
	}
	reply := out.Reply
	if reply == "" {
		reply = out.Response
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("empty reply: %w", ErrUpstream)
	}
	c.log.Debug(ctx, "assistant replied", logger.Duration("latency", time.Since(start)))
	return reply, nil
}
