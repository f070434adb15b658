package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// KeyProvider is a wallet backend holding a single in-memory ECDSA key.
// It approves every prompt; chain switching succeeds for any chain in its
// configured set and fails with code 4902 otherwise.
type KeyProvider struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu             sync.Mutex
	currentChainID int64
	knownChainIDs  map[int64]bool
}

var _ Provider = (*KeyProvider)(nil)

// NewKeyProvider creates a key-backed provider from a hex private key,
// initially pointed at chainID. knownChainIDs lists the chains the wallet
// can switch to; when empty, every chain is accepted.
func NewKeyProvider(privateKeyHex string, chainID int64, knownChainIDs ...int64) (*KeyProvider, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}

	known := make(map[int64]bool, len(knownChainIDs))
	for _, id := range knownChainIDs {
		known[id] = true
	}

	return &KeyProvider{
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(privateKey.PublicKey),
		currentChainID: chainID,
		knownChainIDs:  known,
	}, nil
}

// Address returns the account behind the key.
func (p *KeyProvider) Address() common.Address {
	return p.address
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) ChainID(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentChainID, nil
}

func (p *KeyProvider) SwitchChain(ctx context.Context, chainID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.knownChainIDs) > 0 && !p.knownChainIDs[chainID] {
		return &RPCError{Code: CodeUnrecognizedChain, Message: "unrecognized chain id"}
	}
	p.currentChainID = chainID
	return nil
}

func (p *KeyProvider) SignTypedData(ctx context.Context, from common.Address, typedData apitypes.TypedData) (string, error) {
	if from != p.address {
		return "", &RPCError{Code: CodeUserRejected, Message: "unknown account"}
	}

	digest, err := TypedDataDigest(typedData)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, p.privateKey)
	if err != nil {
		return "", err
	}

	// Contracts expect the legacy recovery id.
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
