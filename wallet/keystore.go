package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// KeystoreProvider is a wallet backend over a go-ethereum encrypted
// keystore directory. The account stays locked until the first signing
// request.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	account    accounts.Account
	passphrase string

	mu             sync.Mutex
	unlocked       bool
	currentChainID int64
	knownChainIDs  map[int64]bool
}

var _ Provider = (*KeystoreProvider)(nil)

// NewKeystoreProvider opens the keystore directory and selects the
// account with the given address, or the only account when address is
// the zero value.
func NewKeystoreProvider(dir, passphrase string, address common.Address, chainID int64, knownChainIDs ...int64) (*KeystoreProvider, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)

	all := ks.Accounts()
	if len(all) == 0 {
		return nil, fmt.Errorf("wallet: keystore %s holds no accounts", dir)
	}

	account := all[0]
	if (address != common.Address{}) {
		found := false
		for _, a := range all {
			if a.Address == address {
				account = a
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("wallet: account %s not in keystore %s", address.Hex(), dir)
		}
	}

	known := make(map[int64]bool, len(knownChainIDs))
	for _, id := range knownChainIDs {
		known[id] = true
	}

	return &KeystoreProvider{
		ks:             ks,
		account:        account,
		passphrase:     passphrase,
		currentChainID: chainID,
		knownChainIDs:  known,
	}, nil
}

// Address returns the selected keystore account.
func (p *KeystoreProvider) Address() common.Address {
	return p.account.Address
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.account.Address}, nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentChainID, nil
}

func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.knownChainIDs) > 0 && !p.knownChainIDs[chainID] {
		return &RPCError{Code: CodeUnrecognizedChain, Message: "unrecognized chain id"}
	}
	p.currentChainID = chainID
	return nil
}

func (p *KeystoreProvider) SignTypedData(ctx context.Context, from common.Address, typedData apitypes.TypedData) (string, error) {
	if from != p.account.Address {
		return "", &RPCError{Code: CodeUserRejected, Message: "unknown account"}
	}

	if err := p.unlock(); err != nil {
		// A wrong passphrase behaves like the user declining the prompt.
		return "", &RPCError{Code: CodeUserRejected, Message: err.Error()}
	}

	digest, err := TypedDataDigest(typedData)
	if err != nil {
		return "", err
	}

	signature, err := p.ks.SignHash(p.account, digest)
	if err != nil {
		return "", err
	}
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

func (p *KeystoreProvider) unlock() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unlocked {
		return nil
	}
	if err := p.ks.Unlock(p.account, p.passphrase); err != nil {
		return err
	}
	p.unlocked = true
	return nil
}
