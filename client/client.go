// Package client implements the paying side of the x402 cycle: request a
// wish unauthenticated, receive the 402 challenge, obtain a signed
// authorization, and retry exactly once with the payment proof attached.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dongruixiao/cyberbuddha/logger"
	"github.com/dongruixiao/cyberbuddha/types"
)

// State tracks the position in the payment-required cycle. The cycle is
// strictly forward: a second 402 after authorization never loops back.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingAuthorization
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

var (
	// ErrNoRequirements means the server answered 402 without offering any
	// way to pay.
	ErrNoRequirements = errors.New("client: no payment requirements offered")

	// ErrPaymentNotAccepted means the server returned a second 402 after a
	// signed payment was presented. Retrying would loop forever, so the
	// cycle treats it as a protocol fault.
	ErrPaymentNotAccepted = errors.New("client: payment proof not accepted")
)

// AuthorizationSigner produces a signed payment payload for the
// requirements chosen from a 402 challenge. wallet.Signer implements it.
type AuthorizationSigner interface {
	Sign(ctx context.Context, requirements types.PaymentRequirements) (types.PaymentPayload, error)
}

// Observer receives cycle progress notifications, for a UI layer that
// wants to show "signing..." or a settlement link. All methods are called
// synchronously from MakeWish; a nil Observer field disables them.
type Observer struct {
	OnStateChange func(state State)
	OnSettled     func(settlement types.SettleResponse)
	OnFailure     func(state State, err error)
}

// Client purchases wishes from a cyberbuddha server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     AuthorizationSigner
	observer   Observer
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

// WithObserver attaches cycle progress callbacks.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client for the server at baseURL. The signer is invoked
// when the server demands payment.
func New(baseURL string, signer AuthorizationSigner, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		signer:     signer,
		log:        logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MakeWish runs the full payment cycle for one wish. On success the
// server's response is returned together with the settlement record
// decoded from the X-PAYMENT-RESPONSE header, when present.
func (c *Client) MakeWish(ctx context.Context, wish types.WishRequest) (*types.WishResponse, *types.SettleResponse, error) {
	body, err := json.Marshal(wish)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal wish: %w", err)
	}

	c.setState(StateUnauthenticated)

	resp, err := c.postWish(ctx, body, "")
	if err != nil {
		return nil, nil, c.fail(StateUnauthenticated, err)
	}

	if resp.status != http.StatusPaymentRequired {
		// Either a free wish or a non-payment failure; no cycle needed.
		wishResp, settlement, err := resp.result()
		if err != nil {
			return nil, nil, c.fail(StateUnauthenticated, err)
		}
		return wishResp, settlement, nil
	}

	requirements, err := pickRequirements(resp.body)
	if err != nil {
		return nil, nil, c.fail(StateUnauthenticated, err)
	}

	c.setState(StateAwaitingAuthorization)
	c.log.Info("payment required", map[string]any{
		"network": requirements.Network,
		"amount":  requirements.MaxAmountRequired,
		"payTo":   requirements.PayTo,
	})

	payload, err := c.signer.Sign(ctx, requirements)
	if err != nil {
		return nil, nil, c.fail(StateAwaitingAuthorization, err)
	}

	header, err := types.EncodePaymentHeader(payload)
	if err != nil {
		return nil, nil, c.fail(StateAwaitingAuthorization, err)
	}

	c.setState(StateAuthorized)

	resp, err = c.postWish(ctx, body, header)
	if err != nil {
		return nil, nil, c.fail(StateAuthorized, err)
	}
	if resp.status == http.StatusPaymentRequired {
		return nil, nil, c.fail(StateAuthorized, fmt.Errorf("%w: server demanded payment again", ErrPaymentNotAccepted))
	}

	wishResp, settlement, err := resp.result()
	if err != nil {
		return nil, nil, c.fail(StateAuthorized, err)
	}
	if settlement != nil && c.observer.OnSettled != nil {
		c.observer.OnSettled(*settlement)
	}
	return wishResp, settlement, nil
}

// FetchConfig returns the server's payment configuration.
func (c *Client) FetchConfig(ctx context.Context) (*types.WishConfig, error) {
	var config types.WishConfig
	if err := c.getJSON(ctx, "/api/wish", &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// ListWishes returns a page of the wish wall.
func (c *Client) ListWishes(ctx context.Context, limit, offset int) (*types.WishList, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/wishes"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var list types.WishList
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// wishResponse is one raw exchange with the server.
type wishResponse struct {
	status           int
	body             []byte
	settlementHeader string
}

// result interprets a non-402 exchange as either a wish response or a
// server error body.
func (r *wishResponse) result() (*types.WishResponse, *types.SettleResponse, error) {
	if r.status != http.StatusOK {
		return nil, nil, serverError(r.status, r.body)
	}

	var wishResp types.WishResponse
	if err := json.Unmarshal(r.body, &wishResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode wish response: %w", err)
	}

	var settlement *types.SettleResponse
	if r.settlementHeader != "" {
		decoded, err := types.DecodeSettlementHeader(r.settlementHeader)
		if err == nil {
			settlement = &decoded
		}
	}
	return &wishResp, settlement, nil
}

func (c *Client) postWish(ctx context.Context, body []byte, paymentHeader string) (*wishResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/wish", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if paymentHeader != "" {
		req.Header.Set(types.PaymentHeader, paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &wishResponse{
		status:           resp.StatusCode,
		body:             respBody,
		settlementHeader: resp.Header.Get(types.PaymentResponseHeader),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return serverError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// pickRequirements extracts the first offered requirements from a 402
// body.
func pickRequirements(body []byte) (types.PaymentRequirements, error) {
	var challenge types.PaymentRequired
	if err := json.Unmarshal(body, &challenge); err != nil {
		return types.PaymentRequirements{}, fmt.Errorf("failed to decode payment challenge: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return types.PaymentRequirements{}, ErrNoRequirements
	}
	return challenge.Accepts[0], nil
}

// serverError converts an error response body into an error carrying the
// server's code and message when they decode.
func serverError(status int, body []byte) error {
	var errBody types.ErrorBody
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Error.Code != "" {
		return fmt.Errorf("server returned %d: %w", status, errBody.Error)
	}
	return fmt.Errorf("server returned %d", status)
}

func (c *Client) setState(state State) {
	if c.observer.OnStateChange != nil {
		c.observer.OnStateChange(state)
	}
}

func (c *Client) fail(state State, err error) error {
	if c.observer.OnFailure != nil {
		c.observer.OnFailure(state, err)
	}
	return err
}
