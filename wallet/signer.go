package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dongruixiao/cyberbuddha/chains"
	"github.com/dongruixiao/cyberbuddha/logger"
	"github.com/dongruixiao/cyberbuddha/types"
)

// Signer turns payment requirements into a signed payment payload by
// walking a wallet provider through account discovery, network
// switching, and typed-data signing.
type Signer struct {
	provider Provider
	log      logger.Logger
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerLogger attaches a logger to the signing flow.
func WithSignerLogger(log logger.Logger) SignerOption {
	return func(s *Signer) {
		s.log = log
	}
}

// NewSigner wraps a wallet provider.
func NewSigner(provider Provider, opts ...SignerOption) *Signer {
	s := &Signer{
		provider: provider,
		log:      logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign produces a payment payload satisfying the given requirements. The
// provider ends up on the requirements' network; errors caused by the
// user declining a prompt come back as the package sentinels.
func (s *Signer) Sign(ctx context.Context, requirements types.PaymentRequirements) (types.PaymentPayload, error) {
	chain, err := chains.Lookup(requirements.Network)
	if err != nil {
		return types.PaymentPayload{}, err
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return types.PaymentPayload{}, fmt.Errorf("failed to request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return types.PaymentPayload{}, ErrWalletNotConnected
	}
	from := accounts[0]

	if err := s.ensureChain(ctx, chain.ChainID); err != nil {
		return types.PaymentPayload{}, err
	}

	value, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok || value.Sign() < 0 {
		return types.PaymentPayload{}, fmt.Errorf("invalid payment amount: %s", requirements.MaxAmountRequired)
	}

	auth, err := NewAuthorization(from, common.HexToAddress(requirements.PayTo), value, requirements.MaxTimeoutSeconds)
	if err != nil {
		return types.PaymentPayload{}, err
	}

	name, version := domainParams(requirements)
	typedData := auth.TypedData(chain.ChainID, common.HexToAddress(requirements.Asset), name, version)

	s.log.Debug("signing payment authorization", map[string]any{
		"network": requirements.Network,
		"from":    from.Hex(),
		"value":   value.String(),
	})

	signature, err := s.provider.SignTypedData(ctx, from, typedData)
	if err != nil {
		if isUserRejection(err) {
			return types.PaymentPayload{}, ErrUserRejectedSignature
		}
		return types.PaymentPayload{}, fmt.Errorf("failed to sign authorization: %w", err)
	}

	return types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeExact,
		Network:     requirements.Network,
		Payload: types.ExactEvmPayload{
			Signature: signature,
			Authorization: types.Authorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       common.BytesToHash(auth.Nonce[:]).Hex(),
			},
		},
	}, nil
}

// ensureChain moves the provider onto chainID when it is elsewhere.
func (s *Signer) ensureChain(ctx context.Context, chainID int64) error {
	current, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet chain: %w", err)
	}
	if current == chainID {
		return nil
	}

	err = s.provider.SwitchChain(ctx, chainID)
	if err == nil {
		s.log.Info("switched wallet network", map[string]any{"chainId": chainID})
		return nil
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case CodeUserRejected:
			return ErrChainSwitchRejected
		case CodeUnrecognizedChain:
			return ErrChainSwitchUnsupported
		}
	}
	return fmt.Errorf("failed to switch chain: %w", err)
}

// domainParams extracts the token's EIP-712 domain name and version from
// the requirements, falling back to the canonical USDC domain.
func domainParams(requirements types.PaymentRequirements) (string, string) {
	name := requirements.Extra["name"]
	if name == "" {
		name = "USDC"
	}
	version := requirements.Extra["version"]
	if version == "" {
		version = "2"
	}
	return name, version
}

// isUserRejection reports whether a signing error means the user declined
// the wallet prompt rather than the operation failing.
func isUserRejection(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == CodeUserRejected {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "user rejected")
}
