// Package facilitator wraps the external x402 facilitator's verify and
// settle endpoints in a resilient HTTP client with bounded retry.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dongruixiao/cyberbuddha/logger"
	"github.com/dongruixiao/cyberbuddha/retry"
	"github.com/dongruixiao/cyberbuddha/types"
)

// DefaultURL is the PayAI facilitator, which supports mainnets without
// authentication.
const DefaultURL = "https://facilitator.payai.network"

// Sentinel errors distinguishing transport faults from facilitator
// rejections. Unavailable is retryable; rejected is not.
var (
	ErrUnavailable = errors.New("facilitator: service unavailable")
	ErrRejected    = errors.New("facilitator: request rejected")
)

// Client talks to a facilitator's /verify and /settle endpoints. The zero
// value is not usable; construct with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	auth       string
	log        logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryConfig overrides the default retry schedule.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithAuthorization sets a static Authorization header value, e.g.
// "Basic <credentials>" for facilitators that require API keys.
func WithAuthorization(auth string) Option {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a facilitator client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryCfg:   retry.DefaultConfig,
		log:        logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify checks a payment authorization against requirements without
// executing the transfer.
func (c *Client) Verify(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.VerifyResponse, error) {
	var result types.VerifyResponse
	if err := c.post(ctx, "/verify", payload, requirements, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Settle executes a previously verified payment on-chain. Once the
// facilitator has accepted the call the transfer can no longer be
// cancelled by this client.
func (c *Client) Settle(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.SettleResponse, error) {
	var result types.SettleResponse
	if err := c.post(ctx, "/settle", payload, requirements, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a verify/settle request with bounded retry. Transport
// failures and facilitator 5xx responses are retried with exponential
// backoff; a 4xx indicates a request the facilitator will never accept
// and fails immediately.
func (c *Client) post(ctx context.Context, path string, payload types.PaymentPayload, requirements types.PaymentRequirements, result any) error {
	body := types.VerifyRequest{
		X402Version:         types.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = retry.WithRetry(ctx, c.retryCfg, isUnavailable, func() (struct{}, error) {
		return struct{}{}, c.doOnce(ctx, path, data, result)
	})
	return err
}

func (c *Client) doOnce(ctx context.Context, path string, data []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("facilitator transport failure", map[string]any{"path": path, "error": err.Error()})
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		c.log.Warn("facilitator server error", map[string]any{"path": path, "status": resp.StatusCode})
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return rejectionError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// rejectionError extracts a reason from a non-retryable facilitator
// response.
func rejectionError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	var errBody map[string]any
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil {
		if reason, ok := errBody["invalidReason"].(string); ok && reason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", ErrRejected, resp.StatusCode, reason)
		}
		if reason, ok := errBody["errorReason"].(string); ok && reason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", ErrRejected, resp.StatusCode, reason)
		}
	}
	if len(bodyBytes) > 0 {
		return fmt.Errorf("%w: status %d, body: %s", ErrRejected, resp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
