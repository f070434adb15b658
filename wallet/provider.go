// Package wallet produces signed EIP-3009 payment authorizations. The
// Signer drives a wallet Provider through account discovery, network
// switching, and typed-data signing; providers differ only in where the
// key material lives.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Stable error conditions surfaced by the signer so callers never have to
// match on provider-specific error codes.
var (
	ErrWalletNotConnected     = errors.New("wallet: not connected")
	ErrChainSwitchRejected    = errors.New("wallet: chain switch rejected")
	ErrChainSwitchUnsupported = errors.New("wallet: chain not known to wallet")
	ErrUserRejectedSignature  = errors.New("wallet: signature cancelled by user")
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

// RPCError is a provider-level error with an EIP-1193 code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet: provider error %d: %s", e.Code, e.Message)
}

// Provider is the capability a wallet backend must offer. Implementations
// must be safe to call from a single goroutine at a time; the signer never
// calls concurrently.
type Provider interface {
	// RequestAccounts returns the addresses the wallet exposes. An empty
	// result means no account is connected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID reports the chain the wallet currently points at.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain asks the wallet to move to another chain. A user
	// refusal maps to code 4001, an unknown chain to code 4902.
	SwitchChain(ctx context.Context, chainID int64) error

	// SignTypedData signs an EIP-712 payload with the key behind from
	// and returns the 65-byte signature as 0x-prefixed hex.
	SignTypedData(ctx context.Context, from common.Address, typedData apitypes.TypedData) (string, error)
}
