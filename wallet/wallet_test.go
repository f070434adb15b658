package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/dongruixiao/cyberbuddha/types"
)

// well-known anvil test key, never funded on any real network
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testRequirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           "base-sepolia",
		MaxAmountRequired: "2048000",
		Resource:          "https://wish.example.com/api/wish",
		Description:       "make a wish",
		MimeType:          "application/json",
		PayTo:             "0x1111111111111111111111111111111111111111",
		MaxTimeoutSeconds: 300,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Extra:             map[string]string{"name": "USDC", "version": "2"},
	}
}

func TestSignerProducesRecoverableSignature(t *testing.T) {
	provider, err := NewKeyProvider(testPrivateKey, 84532)
	if err != nil {
		t.Fatalf("NewKeyProvider: %v", err)
	}

	signer := NewSigner(provider)
	payload, err := signer.Sign(context.Background(), testRequirements())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if payload.X402Version != types.X402Version {
		t.Errorf("x402Version = %d, want %d", payload.X402Version, types.X402Version)
	}
	if payload.Scheme != types.SchemeExact {
		t.Errorf("scheme = %q, want %q", payload.Scheme, types.SchemeExact)
	}
	if payload.Network != "base-sepolia" {
		t.Errorf("network = %q", payload.Network)
	}

	auth := payload.Payload.Authorization
	if auth.From != provider.Address().Hex() {
		t.Errorf("authorization.from = %s, want %s", auth.From, provider.Address().Hex())
	}
	if auth.Value != "2048000" {
		t.Errorf("authorization.value = %s, want 2048000", auth.Value)
	}
	if len(auth.Nonce) != 66 {
		t.Errorf("nonce length = %d, want 66 hex chars", len(auth.Nonce))
	}

	validAfter, _ := new(big.Int).SetString(auth.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(auth.ValidBefore, 10)
	if validAfter == nil || validBefore == nil || validAfter.Cmp(validBefore) >= 0 {
		t.Fatalf("invalid validity window [%s, %s)", auth.ValidAfter, auth.ValidBefore)
	}

	// Rebuild the digest from the wire form and recover the signer.
	value, _ := new(big.Int).SetString(auth.Value, 10)
	reconstructed := &Authorization{
		From:        common.HexToAddress(auth.From),
		To:          common.HexToAddress(auth.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       [32]byte(common.HexToHash(auth.Nonce)),
	}
	typedData := reconstructed.TypedData(84532, common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"), "USDC", "2")
	digest, err := TypedDataDigest(typedData)
	if err != nil {
		t.Fatalf("TypedDataDigest: %v", err)
	}

	sig := common.FromHex(payload.Payload.Signature)
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != provider.Address() {
		t.Errorf("recovered signer %s, want %s", recovered.Hex(), provider.Address().Hex())
	}
}

func TestSignerSwitchesChain(t *testing.T) {
	provider, err := NewKeyProvider(testPrivateKey, 8453, 8453, 84532)
	if err != nil {
		t.Fatalf("NewKeyProvider: %v", err)
	}

	signer := NewSigner(provider)
	if _, err := signer.Sign(context.Background(), testRequirements()); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	current, _ := provider.ChainID(context.Background())
	if current != 84532 {
		t.Errorf("wallet chain = %d, want 84532", current)
	}
}

func TestSignerChainSwitchUnsupported(t *testing.T) {
	// Wallet only knows mainnet Base; the requirements want base-sepolia.
	provider, err := NewKeyProvider(testPrivateKey, 8453, 8453)
	if err != nil {
		t.Fatalf("NewKeyProvider: %v", err)
	}

	signer := NewSigner(provider)
	_, err = signer.Sign(context.Background(), testRequirements())
	if !errors.Is(err, ErrChainSwitchUnsupported) {
		t.Errorf("err = %v, want ErrChainSwitchUnsupported", err)
	}
}

func TestSignerUnknownNetwork(t *testing.T) {
	provider, err := NewKeyProvider(testPrivateKey, 84532)
	if err != nil {
		t.Fatalf("NewKeyProvider: %v", err)
	}

	requirements := testRequirements()
	requirements.Network = "dogechain"

	signer := NewSigner(provider)
	if _, err := signer.Sign(context.Background(), requirements); err == nil {
		t.Error("expected error for unknown network")
	}
}

// fakeProvider scripts provider behavior for the error-classification
// tests.
type fakeProvider struct {
	accounts    []common.Address
	chainID     int64
	switchErr   error
	signErr     error
	signedCalls int
}

func (f *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return f.accounts, nil
}

func (f *fakeProvider) ChainID(ctx context.Context) (int64, error) {
	return f.chainID, nil
}

func (f *fakeProvider) SwitchChain(ctx context.Context, chainID int64) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.chainID = chainID
	return nil
}

func (f *fakeProvider) SignTypedData(ctx context.Context, from common.Address, typedData apitypes.TypedData) (string, error) {
	f.signedCalls++
	if f.signErr != nil {
		return "", f.signErr
	}
	return "", errors.New("fake provider cannot sign")
}

func TestSignerNotConnected(t *testing.T) {
	signer := NewSigner(&fakeProvider{chainID: 84532})
	_, err := signer.Sign(context.Background(), testRequirements())
	if !errors.Is(err, ErrWalletNotConnected) {
		t.Errorf("err = %v, want ErrWalletNotConnected", err)
	}
}

func TestSignerChainSwitchRejected(t *testing.T) {
	provider := &fakeProvider{
		accounts:  []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")},
		chainID:   1,
		switchErr: &RPCError{Code: CodeUserRejected, Message: "user rejected the request"},
	}

	signer := NewSigner(provider)
	_, err := signer.Sign(context.Background(), testRequirements())
	if !errors.Is(err, ErrChainSwitchRejected) {
		t.Errorf("err = %v, want ErrChainSwitchRejected", err)
	}
	if provider.signedCalls != 0 {
		t.Errorf("signing attempted after refused chain switch")
	}
}

func TestSignerUserRejectedSignature(t *testing.T) {
	tests := []struct {
		name    string
		signErr error
	}{
		{"eip1193 code", &RPCError{Code: CodeUserRejected, Message: "denied"}},
		{"message substring", errors.New("MetaMask Tx Signature: User rejected the request")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{
				accounts: []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")},
				chainID:  84532,
				signErr:  tc.signErr,
			}

			signer := NewSigner(provider)
			_, err := signer.Sign(context.Background(), testRequirements())
			if !errors.Is(err, ErrUserRejectedSignature) {
				t.Errorf("err = %v, want ErrUserRejectedSignature", err)
			}
		})
	}
}

func TestSignerRejectsMalformedAmount(t *testing.T) {
	provider := &fakeProvider{
		accounts: []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")},
		chainID:  84532,
	}

	for _, amount := range []string{"", "2.5", "-1", "lots"} {
		requirements := testRequirements()
		requirements.MaxAmountRequired = amount

		signer := NewSigner(provider)
		if _, err := signer.Sign(context.Background(), requirements); err == nil {
			t.Errorf("amount %q: expected error", amount)
		}
	}
}

func TestDomainParamsFallback(t *testing.T) {
	requirements := testRequirements()
	requirements.Extra = nil

	name, version := domainParams(requirements)
	if name != "USDC" || version != "2" {
		t.Errorf("domainParams = (%q, %q), want (USDC, 2)", name, version)
	}
}
