// Package nlu translates free-form natural-language text into structured
// control commands by calling an external reasoning service.
package nlu

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

	"github.com/vkotlar/deskbridge/internal/protocol"
)

var (
	// ErrNotConfigured means no API key was provided.
	ErrNotConfigured = errors.New("reasoning service not configured")
	// ErrUnparseable means the service answered but not with a usable command.
	ErrUnparseable = errors.New("reasoning service returned an unparseable command")
)

// systemPrompt enumerates the supported actions for the reasoning service.
// The service must answer with a single JSON object {type, params}.
const systemPrompt = `You are an assistant that converts natural language commands into structured computer control actions.

Available actions:
- mouse_click: {x, y}
- mouse_move: {x, y}
- keyboard_type: {text}
- keyboard_press: {key}
- open_url: {url}
- open_app: {app}
- scroll: {amount}

Return a single JSON object: {"type": ..., "params": {...}}. No prose, no markdown.`

// Config holds configuration for the reasoning-service client.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint and parses
// the answer into a validated Command.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	logger     *slog.Logger
}

// NewClient creates a reasoning-service client. It fails fast when no API
// key is configured so the caller can disable the feature at startup.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseCommand translates text into a validated Command. Any failure is a
// request-level error for the original caller; it never touches relay state.
func (c *Client) ParseCommand(ctx context.Context, text string) (protocol.Command, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return protocol.Command{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return protocol.Command{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return protocol.Command{}, fmt.Errorf("reasoning service request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return protocol.Command{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return protocol.Command{}, fmt.Errorf("reasoning service returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return protocol.Command{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return protocol.Command{}, fmt.Errorf("reasoning service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return protocol.Command{}, ErrUnparseable
	}

	cmd, err := commandFromContent(parsed.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("Reasoning service answer rejected", "error", err)
		return protocol.Command{}, err
	}

	c.logger.Debug("Parsed natural-language command", "kind", cmd.Type)
	return cmd, nil
}

// commandFromContent extracts and validates the {type, params} object from
// the model's answer. Models occasionally wrap JSON in markdown fences even
// when told not to, so those are stripped first.
func commandFromContent(content string) (protocol.Command, error) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	var cmd protocol.Command
	if err := json.Unmarshal([]byte(content), &cmd); err != nil {
		return protocol.Command{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if _, err := cmd.Decode(); err != nil {
		return protocol.Command{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return cmd, nil
}
