package chains

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	config, err := Lookup("base-sepolia")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if config.ChainID != 84532 {
		t.Errorf("expected chain id 84532, got %d", config.ChainID)
	}
	if config.USDCAddress != "0x036CbD53842c5426634e7929541eC2318f3dCF7e" {
		t.Errorf("unexpected USDC address: %s", config.USDCAddress)
	}
	if config.EIP3009Name != "USDC" || config.EIP3009Version != "2" {
		t.Errorf("unexpected EIP-3009 domain: %s/%s", config.EIP3009Name, config.EIP3009Version)
	}
}

func TestLookupUnknownNetwork(t *testing.T) {
	for _, network := range []string{"", "solana-mainnet", "mainnet", "BASE"} {
		_, err := Lookup(network)
		if !errors.Is(err, ErrUnknownNetwork) {
			t.Errorf("Lookup(%q): expected ErrUnknownNetwork, got %v", network, err)
		}
	}
}

func TestSupportedAllResolve(t *testing.T) {
	for _, network := range Supported() {
		if !IsSupported(network.String()) {
			t.Errorf("network %s not supported by its own registry", network)
		}
		config, err := Lookup(network.String())
		if err != nil {
			t.Fatalf("Lookup(%s): %v", network, err)
		}
		if config.ChainID == 0 || config.USDCAddress == "" || config.ExplorerBase == "" {
			t.Errorf("incomplete config for %s: %+v", network, config)
		}
	}
}

func TestIsTestnet(t *testing.T) {
	if NetworkBase.IsTestnet() {
		t.Error("base should not be a testnet")
	}
	if !NetworkBaseSepolia.IsTestnet() {
		t.Error("base-sepolia should be a testnet")
	}
}

func TestExplorerTxURL(t *testing.T) {
	url, err := ExplorerTxURL("base", "0xdeadbeef")
	if err != nil {
		t.Fatalf("ExplorerTxURL: %v", err)
	}
	if url != "https://basescan.org/tx/0xdeadbeef" {
		t.Errorf("unexpected explorer URL: %s", url)
	}
}
