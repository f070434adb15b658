package config

import (
	"testing"
)

func TestLoadRequiresAddress(t *testing.T) {
	t.Setenv("ADDRESS", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when ADDRESS is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("NETWORK", "")
	t.Setenv("PORT", "")
	t.Setenv("FACILITATOR_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network != "base-sepolia" {
		t.Errorf("network = %q", cfg.Network)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.FacilitatorURL != "https://facilitator.payai.network" {
		t.Errorf("facilitator = %q", cfg.FacilitatorURL)
	}
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	t.Setenv("ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("NETWORK", "dogechain")

	if _, err := Load(); err == nil {
		t.Error("expected error for unsupported network")
	}
}

func TestLoadFacilitatorAuth(t *testing.T) {
	t.Setenv("ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("NETWORK", "base-sepolia")
	t.Setenv("CDP_API_KEY_ID", "key")
	t.Setenv("CDP_API_KEY_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// base64("key:secret")
	if cfg.FacilitatorAuth != "Basic a2V5OnNlY3JldA==" {
		t.Errorf("auth = %q", cfg.FacilitatorAuth)
	}
}
