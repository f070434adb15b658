package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodePaymentHeader converts a PaymentPayload to the base64-encoded JSON
// form carried in the X-PAYMENT request header.
func EncodePaymentHeader(payload PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader parses an X-PAYMENT header value back into a
// PaymentPayload.
func DecodePaymentHeader(encoded string) (PaymentPayload, error) {
	var payload PaymentPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payload, fmt.Errorf("failed to decode base64: %w", err)
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payment payload: %w", err)
	}
	return payload, nil
}

// EncodeSettlementHeader converts a SettleResponse to the base64-encoded
// JSON form echoed in the X-PAYMENT-RESPONSE response header.
func EncodeSettlementHeader(settlement SettleResponse) (string, error) {
	data, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettlementHeader parses an X-PAYMENT-RESPONSE header value.
func DecodeSettlementHeader(encoded string) (SettleResponse, error) {
	var settlement SettleResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return settlement, fmt.Errorf("failed to decode base64: %w", err)
	}
	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}
	return settlement, nil
}
