package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// Network identifies one of the supported networks.
type Network string

const (
	Optimism Network = "optimism"
	Arbitrum Network = "arbitrum"
)

// Endpoint holds configuration for an EVM network connection.
type Endpoint struct {
	Network        Network
	Name           string
	ChainID        *big.Int
	RPCURLs        []string
	ExplorerAPIURL string
	NativeCurrency string
	// RequiresPoA marks networks whose blocks carry PoA-style extraData that
	// must be decoded with the tolerant header type (see poa.go).
	RequiresPoA bool
}

// ParseNetwork maps a user-supplied name to a Network
func ParseNetwork(name string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(name))); n {
	case Optimism, Arbitrum:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
}

// DefaultEndpoints returns the built-in endpoint configurations
func DefaultEndpoints() map[Network]Endpoint {
	return map[Network]Endpoint{
		Optimism: {
			Network:        Optimism,
			Name:           "Optimism",
			ChainID:        big.NewInt(10),
			RPCURLs:        []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			ExplorerAPIURL: "https://api-optimistic.etherscan.io",
			NativeCurrency: "ETH",
			RequiresPoA:    true,
		},
		Arbitrum: {
			Network:        Arbitrum,
			Name:           "Arbitrum One",
			ChainID:        big.NewInt(42161),
			RPCURLs:        []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			ExplorerAPIURL: "https://api.arbiscan.io",
			NativeCurrency: "ETH",
		},
	}
}

// ResolveEndpoint returns the default endpoint for network, with rpcURL
// (when non-empty) taking precedence over the built-in RPC list.
func ResolveEndpoint(network Network, rpcURL string) (Endpoint, error) {
	ep, ok := DefaultEndpoints()[network]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}
	if rpcURL = strings.TrimSpace(rpcURL); rpcURL != "" {
		ep.RPCURLs = []string{rpcURL}
	}
	return ep, nil
}
