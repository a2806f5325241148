package evm

import (
	"math/big"
)

const (
	// Scheme identifier
	SchemeExact = "exact"

	// Default token decimals for USDC
	DefaultDecimals = 6

	// Primary type signed for EIP-3009 transfers
	PrimaryTypeTransferWithAuthorization = "TransferWithAuthorization"

	// Default validity period (1 hour), used when requirements omit maxTimeoutSeconds
	DefaultValidityPeriod = 3600 // seconds

	// ValidAfterSkew backdates validAfter to absorb clock skew and block time
	ValidAfterSkew = 30 // seconds

	// NetworkWildcard matches every CAIP-2 EVM network
	NetworkWildcard = "eip155:*"
)

var (
	// Network chain IDs
	ChainIDMainnet     = big.NewInt(1)
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)
	ChainIDPolygon     = big.NewInt(137)
	ChainIDPolygonAmoy = big.NewInt(80002)

	usdcMainnet = AssetInfo{
		Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: DefaultDecimals,
	}
	usdcBase = AssetInfo{
		Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: DefaultDecimals,
	}
	usdcBaseSepolia = AssetInfo{
		Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Name:     "USDC",
		Version:  "2",
		Decimals: DefaultDecimals,
	}
	usdcPolygon = AssetInfo{
		Address:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: DefaultDecimals,
	}
	usdcPolygonAmoy = AssetInfo{
		Address:  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Name:     "USDC",
		Version:  "2",
		Decimals: DefaultDecimals,
	}

	// NetworkConfigs is keyed by CAIP-2 id
	NetworkConfigs = map[string]NetworkConfig{
		"eip155:1":     newNetworkConfig(ChainIDMainnet, usdcMainnet),
		"eip155:8453":  newNetworkConfig(ChainIDBase, usdcBase),
		"eip155:84532": newNetworkConfig(ChainIDBaseSepolia, usdcBaseSepolia),
		"eip155:137":   newNetworkConfig(ChainIDPolygon, usdcPolygon),
		"eip155:80002": newNetworkConfig(ChainIDPolygonAmoy, usdcPolygonAmoy),
	}

	// LegacyNetworks maps v1 network names to their CAIP-2 id
	LegacyNetworks = map[string]string{
		"ethereum":     "eip155:1",
		"base":         "eip155:8453",
		"base-mainnet": "eip155:8453",
		"base-sepolia": "eip155:84532",
		"polygon":      "eip155:137",
		"polygon-amoy": "eip155:80002",
	}
)

func newNetworkConfig(chainID *big.Int, usdc AssetInfo) NetworkConfig {
	return NetworkConfig{
		ChainID:      chainID,
		DefaultAsset: usdc,
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc,
		},
	}
}
