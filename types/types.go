// Package types defines the x402 v1 wire types and the request/response
// shapes exchanged between the wish client, the resource server, and the
// payment facilitator.
package types

import "fmt"

// X402Version is the protocol version spoken on the wire.
const X402Version = 1

// SchemeExact is the only payment scheme this service supports.
const SchemeExact = "exact"

// PaymentHeader is the HTTP request header carrying the base64-encoded
// payment payload, and PaymentResponseHeader the settlement echo.
const (
	PaymentHeader         = "X-PAYMENT"
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)

// PaymentRequirements defines what a resource server accepts as payment.
// It is built deterministically per request and must be byte-identical
// between the 402 challenge and the later verify/settle calls.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use. Always "exact" here.
	Scheme string `json:"scheme"`

	// Network of the blockchain to send payment on (e.g., "base-sepolia").
	Network string `json:"network"`

	// Maximum amount required to pay for the resource in atomic units of
	// the asset. Represented as a string because Go has no uint256.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// URL of the resource to pay for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// MIME type of the resource response.
	MimeType string `json:"mimeType"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo"`

	// Maximum time in seconds for the payment authorization to stay valid.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset"`

	// Extra carries the EIP-712 domain parameters (`name`, `version`)
	// of the token contract.
	Extra map[string]string `json:"extra,omitempty"`
}

// Validate checks that the requirements contain all fields a facilitator
// needs to act on them.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}
	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}
	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}
	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}
	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}
	if pr.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must be greater than 0")
	}
	return nil
}

// PaymentRequired is the body of a 402 response: the payment options the
// server accepts plus a human-readable reason.
type PaymentRequired struct {
	// Version of the x402 payment protocol.
	X402Version int `json:"x402Version"`

	// Message from the resource server indicating why payment is needed
	// or why the presented payment was rejected.
	Error string `json:"error"`

	// List of payment requirements that the resource server accepts.
	Accepts []PaymentRequirements `json:"accepts"`

	// Payer is set when verification identified the paying address.
	Payer string `json:"payer,omitempty"`
}

// Authorization is an EIP-3009 TransferWithAuthorization record. All
// numeric fields are integer strings to survive the JSON boundary intact.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // unix seconds
	ValidBefore string `json:"validBefore"` // unix seconds
	Nonce       string `json:"nonce"`       // 32-byte hex
}

// ExactEvmPayload is the signed payment proof for the exact scheme on EVM
// chains: a typed-data signature over the authorization record.
type ExactEvmPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the client-produced envelope carried in the X-PAYMENT
// header as base64-encoded JSON.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// Validate checks the envelope structure before it is forwarded anywhere.
func (pp *PaymentPayload) Validate() error {
	if pp.X402Version != X402Version {
		return fmt.Errorf("unsupported x402 version: %d", pp.X402Version)
	}
	if pp.Scheme != SchemeExact {
		return fmt.Errorf("unsupported payment scheme: %s", pp.Scheme)
	}
	if pp.Network == "" {
		return fmt.Errorf("paymentPayload.network is required")
	}
	if pp.Payload.Signature == "" {
		return fmt.Errorf("paymentPayload.payload.signature is required")
	}
	auth := pp.Payload.Authorization
	if auth.From == "" || auth.To == "" || auth.Value == "" || auth.Nonce == "" {
		return fmt.Errorf("paymentPayload.payload.authorization is incomplete")
	}
	return nil
}

// VerifyRequest is the payload POSTed to the facilitator's /verify and
// /settle endpoints.
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's verification result. Transient,
// facilitator-owned, never stored.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's settlement result.
type SettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// WishRequest is the body of POST /api/wish. Amount is a decimal USD
// string; network overrides the server default when present.
type WishRequest struct {
	Amount  string `json:"amount" validate:"required,usdamount"`
	Content string `json:"content,omitempty" validate:"omitempty,max=200"`
	Network string `json:"network,omitempty"`
}

// WishResponse is returned once a wish has been paid for and recorded.
type WishResponse struct {
	Message  string `json:"message"`
	Blessing string `json:"blessing"`
	TxHash   string `json:"txHash,omitempty"`
	// Warning is set when the payment settled but the wish could not be
	// written to the ledger.
	Warning string `json:"warning,omitempty"`
}

// WishConfig is returned by GET /api/wish.
type WishConfig struct {
	Network   string  `json:"network"`
	Asset     string  `json:"asset"`
	MinAmount float64 `json:"minAmount"`
	Recipient string  `json:"recipient"`
}

// WishRecord is a settled payment as persisted by the ledger and exposed
// on the wish wall. Created exactly once per successful settlement, never
// mutated.
type WishRecord struct {
	ID        uint    `json:"id"`
	TxHash    string  `json:"txHash"`
	Payer     string  `json:"payer"`
	Amount    float64 `json:"amount"`
	Content   string  `json:"content"`
	Network   string  `json:"network"`
	CreatedAt int64   `json:"createdAt"`
}

// WishList is the paginated wish wall response.
type WishList struct {
	Wishes []WishRecord `json:"wishes"`
	Total  int64        `json:"total"`
}

// ErrorBody is the JSON error envelope for 4xx/5xx responses.
type ErrorBody struct {
	Error X402Error `json:"error"`
}

// X402Error is a coded error surfaced to API callers.
type X402Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e X402Error) Error() string {
	return e.Message
}

// Error codes returned by the resource server.
const (
	ErrInvalidBody        = "INVALID_BODY"
	ErrInvalidNetwork     = "INVALID_NETWORK"
	ErrInvalidAmount      = "INVALID_AMOUNT"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrNotConfigured      = "NOT_CONFIGURED"
	ErrSettleFailed       = "SETTLE_FAILED"
	ErrPaymentError       = "PAYMENT_ERROR"
)
