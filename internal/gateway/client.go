package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	errStatus        = errors.New("completion gateway returned non-success status")
	errEmptyResponse = errors.New("completion gateway returned empty response")
)

// maxErrorBodySize caps how much of an error body is read for diagnostics.
const maxErrorBodySize = 4 << 10 // 4KB

// Completer is the interface the conversation controller depends on.
type Completer interface {
	// Complete sends a message plus context bundle and returns generated text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Client is an HTTP client for the completion gateway.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientConfig holds configuration for the gateway client.
type ClientConfig struct {
	URL     string
	Timeout time.Duration
}

// NewClient creates a completion gateway client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Complete posts the request to the gateway and decodes the response.
// Timeouts, non-2xx statuses, and malformed bodies are all returned as errors;
// the caller owns the user-visible degradation path.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call completion gateway: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close gateway response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Warn("completion gateway error status",
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return nil, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if out.Response == "" {
		return nil, errEmptyResponse
	}

	return &out, nil
}

// Ensure Client implements Completer.
var _ Completer = (*Client)(nil)
