package evm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// NormalizeNetwork maps legacy v1 names to their CAIP-2 id and returns
// CAIP-2 ids unchanged.
func NormalizeNetwork(network string) string {
	if caip, ok := LegacyNetworks[network]; ok {
		return caip
	}
	return network
}

// IsValidNetwork checks if the network is an EVM network this package can sign for
func IsValidNetwork(network string) bool {
	_, err := GetEvmChainId(network)
	return err == nil
}

// GetEvmChainId returns the chain ID for a given network
func GetEvmChainId(network string) (*big.Int, error) {
	networkStr := NormalizeNetwork(network)

	if config, ok := NetworkConfigs[networkStr]; ok {
		return config.ChainID, nil
	}

	// Try to parse from CAIP-2 format (eip155:chainId)
	if strings.HasPrefix(networkStr, "eip155:") {
		chainIdStr := strings.TrimPrefix(networkStr, "eip155:")
		chainId, ok := new(big.Int).SetString(chainIdStr, 10)
		if ok && chainId.Sign() > 0 {
			return chainId, nil
		}
	}

	return nil, fmt.Errorf("unsupported network: %s", network)
}

// CreateNonce generates a random 32-byte nonce
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	_, err := rand.Read(nonce)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce), nil
}

// NormalizeAddress ensures an Ethereum address is in the correct format
func NormalizeAddress(address string) string {
	addr := strings.TrimPrefix(strings.ToLower(address), "0x")
	return "0x" + addr
}

// IsValidAddress checks if a string is a valid Ethereum address
func IsValidAddress(address string) bool {
	addr := strings.TrimPrefix(address, "0x")
	if len(addr) != 40 {
		return false
	}
	_, err := hex.DecodeString(addr)
	return err == nil
}

// GetNetworkConfig returns the configuration for a known network
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	if config, ok := NetworkConfigs[NormalizeNetwork(network)]; ok {
		return &config, nil
	}
	return nil, fmt.Errorf("unsupported network: %s", network)
}

// GetAssetInfo resolves token metadata for an asset on a network.
// Explicit name/version from the requirement's extra always wins over
// built-in defaults, since they form the EIP-712 domain the token verifies.
func GetAssetInfo(network string, assetSymbolOrAddress string, extra map[string]interface{}) (*AssetInfo, error) {
	info := AssetInfo{Version: "1", Decimals: DefaultDecimals}
	known := false

	if config, err := GetNetworkConfig(network); err == nil {
		if IsValidAddress(assetSymbolOrAddress) {
			if NormalizeAddress(assetSymbolOrAddress) == NormalizeAddress(config.DefaultAsset.Address) {
				info = config.DefaultAsset
				known = true
			}
		} else if asset, ok := config.SupportedAssets[strings.ToUpper(assetSymbolOrAddress)]; ok {
			info = asset
			known = true
		} else if assetSymbolOrAddress == "" {
			info = config.DefaultAsset
			known = true
		}
	}

	if !known {
		if !IsValidAddress(assetSymbolOrAddress) {
			return nil, fmt.Errorf("unknown asset %q on %s", assetSymbolOrAddress, network)
		}
		info.Address = assetSymbolOrAddress
	}

	if name, ok := extra["name"].(string); ok && name != "" {
		info.Name = name
	}
	if ver, ok := extra["version"].(string); ok && ver != "" {
		info.Version = ver
	}
	switch d := extra["decimals"].(type) {
	case float64:
		if d < 0 || d > 255 || d != float64(int(d)) {
			return nil, fmt.Errorf("invalid decimals: %v", d)
		}
		info.Decimals = int(d)
	case int:
		if d < 0 || d > 255 {
			return nil, fmt.Errorf("invalid decimals: %d", d)
		}
		info.Decimals = d
	}
	if info.Name == "" {
		return nil, fmt.Errorf("missing EIP-712 token name for asset %s", info.Address)
	}

	return &info, nil
}

// CreateValidityWindow creates valid after/before timestamps
func CreateValidityWindow(duration time.Duration) (validAfter, validBefore *big.Int) {
	now := time.Now().Unix()
	validAfter = big.NewInt(now - ValidAfterSkew)
	validBefore = big.NewInt(now + int64(duration.Seconds()))
	return validAfter, validBefore
}

// HexToBytes converts a hex string to bytes
func HexToBytes(hexStr string) ([]byte, error) {
	cleaned := strings.TrimPrefix(hexStr, "0x")
	return hex.DecodeString(cleaned)
}
