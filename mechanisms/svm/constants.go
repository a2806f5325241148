package svm

const (
	// SchemeExact is the scheme identifier
	SchemeExact = "exact"

	// DefaultDecimals is the USDC mint precision
	DefaultDecimals = 6

	// NetworkWildcard matches every CAIP-2 Solana cluster
	NetworkWildcard = "solana:*"

	// CAIP-2 cluster ids (genesis hash prefixes)
	SolanaMainnetCAIP2 = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	SolanaDevnetCAIP2  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	SolanaTestnetCAIP2 = "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"

	// Public RPC endpoints
	MainnetRPCURL = "https://api.mainnet-beta.solana.com"
	DevnetRPCURL  = "https://api.devnet.solana.com"
	TestnetRPCURL = "https://api.testnet.solana.com"

	// USDC mints
	USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDevnetMint  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

	// Compute budget attached to every payment transaction
	DefaultComputeUnitLimit uint32 = 20000
	DefaultComputeUnitPrice uint64 = 1 // micro-lamports per CU
)

var (
	// NetworkConfigs is keyed by CAIP-2 id
	NetworkConfigs = map[string]NetworkConfig{
		SolanaMainnetCAIP2: {
			Name:   "mainnet-beta",
			RPCURL: MainnetRPCURL,
			DefaultAsset: AssetInfo{
				Address:  USDCMainnetMint,
				Symbol:   "USDC",
				Decimals: DefaultDecimals,
			},
		},
		SolanaDevnetCAIP2: {
			Name:   "devnet",
			RPCURL: DevnetRPCURL,
			DefaultAsset: AssetInfo{
				Address:  USDCDevnetMint,
				Symbol:   "USDC",
				Decimals: DefaultDecimals,
			},
		},
		SolanaTestnetCAIP2: {
			Name:   "testnet",
			RPCURL: TestnetRPCURL,
			DefaultAsset: AssetInfo{
				Address:  USDCDevnetMint,
				Symbol:   "USDC",
				Decimals: DefaultDecimals,
			},
		},
	}

	// LegacyNetworks maps v1 network names to their CAIP-2 id
	LegacyNetworks = map[string]string{
		"solana":         SolanaMainnetCAIP2,
		"solana-mainnet": SolanaMainnetCAIP2,
		"solana-devnet":  SolanaDevnetCAIP2,
		"solana-testnet": SolanaTestnetCAIP2,
	}
)
