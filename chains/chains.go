// Package chains is the static registry of payment networks: chain ids,
// USDC contract addresses, block explorers, and EIP-3009 domain parameters.
// Pure data, no behavior beyond lookup.
package chains

import "fmt"

// Network identifies a supported blockchain network.
type Network string

const (
	NetworkBase          Network = "base"
	NetworkBaseSepolia   Network = "base-sepolia"
	NetworkPolygon       Network = "polygon"
	NetworkPolygonAmoy   Network = "polygon-amoy"
	NetworkAvalanche     Network = "avalanche"
	NetworkAvalancheFuji Network = "avalanche-fuji"
)

func (n Network) String() string {
	return string(n)
}

// IsTestnet reports whether the network is a test network.
func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkPolygonAmoy || n == NetworkAvalancheFuji
}

// Config holds the per-network constants needed to quote and sign a
// USDC payment.
type Config struct {
	// ChainID is the EIP-155 chain id.
	ChainID int64

	// Name is the human-readable network name.
	Name string

	// USDCAddress is the official Circle USDC contract address.
	USDCAddress string

	// ExplorerBase is the block-explorer transaction URL prefix.
	ExplorerBase string

	// EIP3009Name and EIP3009Version are the EIP-712 domain parameters
	// of the USDC contract on this network.
	EIP3009Name    string
	EIP3009Version string
}

// configByNetwork maps network identifiers to their configuration.
// USDC addresses match the official Circle deployments.
var configByNetwork = map[Network]Config{
	NetworkBase: {
		ChainID:        8453,
		Name:           "Base",
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ExplorerBase:   "https://basescan.org/tx/",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	},
	NetworkBaseSepolia: {
		ChainID:        84532,
		Name:           "Base Sepolia",
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		ExplorerBase:   "https://sepolia.basescan.org/tx/",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	},
	NetworkPolygon: {
		ChainID:        137,
		Name:           "Polygon",
		USDCAddress:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		ExplorerBase:   "https://polygonscan.com/tx/",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	},
	NetworkPolygonAmoy: {
		ChainID:        80002,
		Name:           "Polygon Amoy",
		USDCAddress:    "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		ExplorerBase:   "https://amoy.polygonscan.com/tx/",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	},
	NetworkAvalanche: {
		ChainID:        43114,
		Name:           "Avalanche",
		USDCAddress:    "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		ExplorerBase:   "https://snowtrace.io/tx/",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	},
	NetworkAvalancheFuji: {
		ChainID:        43113,
		Name:           "Avalanche Fuji",
		USDCAddress:    "0x5425890298aed601595a70AB815c96711a31Bc65",
		ExplorerBase:   "https://testnet.snowtrace.io/tx/",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	},
}

// ErrUnknownNetwork is returned when a network is not in the registry.
// An unknown network is an input-validation error, not a runtime fault.
var ErrUnknownNetwork = fmt.Errorf("chains: unknown network")

// Lookup returns the configuration for a network identifier.
func Lookup(network string) (Config, error) {
	config, ok := configByNetwork[Network(network)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return config, nil
}

// IsSupported reports whether a network identifier is in the registry.
func IsSupported(network string) bool {
	_, ok := configByNetwork[Network(network)]
	return ok
}

// Supported returns the identifiers of all registered networks.
func Supported() []Network {
	return []Network{
		NetworkBase,
		NetworkBaseSepolia,
		NetworkPolygon,
		NetworkPolygonAmoy,
		NetworkAvalanche,
		NetworkAvalancheFuji,
	}
}

// ExplorerTxURL builds a block-explorer link for a transaction hash.
func ExplorerTxURL(network, txHash string) (string, error) {
	config, err := Lookup(network)
	if err != nil {
		return "", err
	}
	return config.ExplorerBase + txHash, nil
}
