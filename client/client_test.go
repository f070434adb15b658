package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dongruixiao/cyberbuddha/types"
)

func challengeBody() types.PaymentRequired {
	return types.PaymentRequired{
		X402Version: types.X402Version,
		Error:       "payment header required",
		Accepts: []types.PaymentRequirements{{
			Scheme:            types.SchemeExact,
			Network:           "base-sepolia",
			MaxAmountRequired: "2048000",
			Resource:          "https://wish.example.com/api/wish",
			Description:       "make a wish (2.048 USDC)",
			MimeType:          "application/json",
			PayTo:             "0x1111111111111111111111111111111111111111",
			MaxTimeoutSeconds: 300,
			Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Extra:             map[string]string{"name": "USDC", "version": "2"},
		}},
	}
}

func signedPayload() types.PaymentPayload {
	return types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeExact,
		Network:     "base-sepolia",
		Payload: types.ExactEvmPayload{
			Signature: "0xabcdef",
			Authorization: types.Authorization{
				From:        "0x2222222222222222222222222222222222222222",
				To:          "0x1111111111111111111111111111111111111111",
				Value:       "2048000",
				ValidAfter:  "1700000000",
				ValidBefore: "1700003600",
				Nonce:       "0x0101010101010101010101010101010101010101010101010101010101010101",
			},
		},
	}
}

// fakeSigner returns a canned payload or error.
type fakeSigner struct {
	payload types.PaymentPayload
	err     error
	calls   int
}

func (f *fakeSigner) Sign(ctx context.Context, requirements types.PaymentRequirements) (types.PaymentPayload, error) {
	f.calls++
	if f.err != nil {
		return types.PaymentPayload{}, f.err
	}
	return f.payload, nil
}

func TestMakeWishFullCycle(t *testing.T) {
	var sawPaymentHeader string
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wish" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		calls++

		header := r.Header.Get(types.PaymentHeader)
		if header == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(challengeBody())
			return
		}

		sawPaymentHeader = header
		settlementHeader, _ := types.EncodeSettlementHeader(types.SettleResponse{
			Success:     true,
			Transaction: "0xdeadbeef",
			Network:     "base-sepolia",
		})
		w.Header().Set(types.PaymentResponseHeader, settlementHeader)
		json.NewEncoder(w).Encode(types.WishResponse{
			Message: "karma on-chain. buddha has seen it. no reply.",
			TxHash:  "0xdeadbeef",
		})
	}))
	defer server.Close()

	signer := &fakeSigner{payload: signedPayload()}

	var states []State
	c := New(server.URL, signer, WithObserver(Observer{
		OnStateChange: func(s State) { states = append(states, s) },
	}))

	resp, settlement, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "2.048", Network: "base-sepolia"})
	if err != nil {
		t.Fatalf("MakeWish: %v", err)
	}

	if calls != 2 {
		t.Errorf("server calls = %d, want 2", calls)
	}
	if signer.calls != 1 {
		t.Errorf("signer calls = %d, want 1", signer.calls)
	}
	if resp.TxHash != "0xdeadbeef" {
		t.Errorf("txHash = %q", resp.TxHash)
	}
	if settlement == nil || !settlement.Success || settlement.Transaction != "0xdeadbeef" {
		t.Errorf("settlement = %+v", settlement)
	}

	decoded, err := types.DecodePaymentHeader(sawPaymentHeader)
	if err != nil {
		t.Fatalf("server received undecodable payment header: %v", err)
	}
	if decoded.Payload.Authorization.Value != "2048000" {
		t.Errorf("forwarded value = %s", decoded.Payload.Authorization.Value)
	}

	wantStates := []State{StateUnauthenticated, StateAwaitingAuthorization, StateAuthorized}
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	for i := range wantStates {
		if states[i] != wantStates[i] {
			t.Errorf("state[%d] = %v, want %v", i, states[i], wantStates[i])
		}
	}
}

func TestMakeWishFreeResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.WishResponse{Message: "ok"})
	}))
	defer server.Close()

	signer := &fakeSigner{}
	c := New(server.URL, signer)

	resp, _, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "1"})
	if err != nil {
		t.Fatalf("MakeWish: %v", err)
	}
	if resp.Message != "ok" {
		t.Errorf("message = %q", resp.Message)
	}
	if signer.calls != 0 {
		t.Errorf("signer invoked for a free resource")
	}
}

func TestMakeWishNoRequirementsOffered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(types.PaymentRequired{X402Version: 1, Error: "pay up"})
	}))
	defer server.Close()

	c := New(server.URL, &fakeSigner{})
	_, _, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "1"})
	if !errors.Is(err, ErrNoRequirements) {
		t.Errorf("err = %v, want ErrNoRequirements", err)
	}
}

func TestMakeWishSecondPaymentRequiredIsFatal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(challengeBody())
	}))
	defer server.Close()

	signer := &fakeSigner{payload: signedPayload()}

	var failedState State
	c := New(server.URL, signer, WithObserver(Observer{
		OnFailure: func(s State, err error) { failedState = s },
	}))

	_, _, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "1"})
	if !errors.Is(err, ErrPaymentNotAccepted) {
		t.Errorf("err = %v, want ErrPaymentNotAccepted", err)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want exactly 2 (no retry loop)", calls)
	}
	if failedState != StateAuthorized {
		t.Errorf("failure reported in state %v, want authorized", failedState)
	}
}

func TestMakeWishSignerFailureAborts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(challengeBody())
	}))
	defer server.Close()

	signErr := errors.New("wallet: signature cancelled by user")
	c := New(server.URL, &fakeSigner{err: signErr})

	_, _, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "1"})
	if !errors.Is(err, signErr) {
		t.Errorf("err = %v, want signer error", err)
	}
	if calls != 1 {
		t.Errorf("server calls = %d, want 1 (no authorized retry)", calls)
	}
}

func TestMakeWishServerErrorSurfacesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(types.ErrorBody{Error: types.X402Error{
			Code:    types.ErrInvalidAmount,
			Message: "amount must be between 0.01 and 10000",
		}})
	}))
	defer server.Close()

	c := New(server.URL, &fakeSigner{})
	_, _, err := c.MakeWish(context.Background(), types.WishRequest{Amount: "0.001"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr types.X402Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want wrapped X402Error", err)
	}
	if apiErr.Code != types.ErrInvalidAmount {
		t.Errorf("code = %q, want %q", apiErr.Code, types.ErrInvalidAmount)
	}
}

func TestFetchConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wish" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(types.WishConfig{
			Network:   "base-sepolia",
			Asset:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			MinAmount: 0.01,
			Recipient: "0x1111111111111111111111111111111111111111",
		})
	}))
	defer server.Close()

	c := New(server.URL, &fakeSigner{})
	config, err := c.FetchConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchConfig: %v", err)
	}
	if config.Network != "base-sepolia" || config.MinAmount != 0.01 {
		t.Errorf("config = %+v", config)
	}
}

func TestListWishes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wishes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		json.NewEncoder(w).Encode(types.WishList{
			Wishes: []types.WishRecord{{ID: 1, TxHash: "0xdeadbeef", Amount: 2.048}},
			Total:  1,
		})
	}))
	defer server.Close()

	c := New(server.URL, &fakeSigner{})
	list, err := c.ListWishes(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("ListWishes: %v", err)
	}
	if list.Total != 1 || len(list.Wishes) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingAuthorization.String() != "awaiting_authorization" {
		t.Errorf("unexpected state name %q", StateAwaitingAuthorization)
	}
}
