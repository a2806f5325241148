package svm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// NormalizeNetwork maps legacy v1 names to their CAIP-2 id and returns
// CAIP-2 ids unchanged.
func NormalizeNetwork(network string) string {
	if caip, ok := LegacyNetworks[network]; ok {
		return caip
	}
	return network
}

// IsValidNetwork checks if the network is a known Solana cluster
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[NormalizeNetwork(network)]
	return ok
}

// GetNetworkConfig returns the configuration for a known cluster
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	if config, ok := NetworkConfigs[NormalizeNetwork(network)]; ok {
		return &config, nil
	}
	return nil, fmt.Errorf("unsupported network: %s", network)
}

// GetAssetInfo resolves the mint and its decimals. extra["decimals"] wins;
// otherwise mints other than the cluster's USDC are assumed to use
// DefaultDecimals.
func GetAssetInfo(network string, asset string, extra map[string]interface{}) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	info := config.DefaultAsset
	if asset != "" && asset != config.DefaultAsset.Address && !strings.EqualFold(asset, config.DefaultAsset.Symbol) {
		if _, err := solana.PublicKeyFromBase58(asset); err != nil {
			return nil, fmt.Errorf("invalid asset mint %q: %w", asset, err)
		}
		info = AssetInfo{Address: asset, Decimals: DefaultDecimals}
	}

	switch d := extra["decimals"].(type) {
	case float64:
		if d < 0 || d > 255 || d != float64(int(d)) {
			return nil, fmt.Errorf("invalid decimals: %v", d)
		}
		info.Decimals = uint8(d)
	case int:
		if d < 0 || d > 255 {
			return nil, fmt.Errorf("invalid decimals: %d", d)
		}
		info.Decimals = uint8(d)
	}

	return &info, nil
}

// DecodeTransaction decodes a base64 wire transaction
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// EncodeTransaction serializes a transaction to base64 wire format
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RPCBlockhashSource fetches blockhashes over JSON-RPC, one client per
// endpoint. A non-empty override URL is used for every cluster.
type RPCBlockhashSource struct {
	overrideURL string

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

// NewRPCBlockhashSource creates a BlockhashSource backed by solana-go's RPC client
func NewRPCBlockhashSource(overrideURL string) *RPCBlockhashSource {
	return &RPCBlockhashSource{
		overrideURL: overrideURL,
		clients:     make(map[string]*rpc.Client),
	}
}

// LatestBlockhash returns the latest confirmed blockhash for the cluster
func (s *RPCBlockhashSource) LatestBlockhash(ctx context.Context, network string) (solana.Hash, error) {
	url := s.overrideURL
	if url == "" {
		config, err := GetNetworkConfig(network)
		if err != nil {
			return solana.Hash{}, err
		}
		url = config.RPCURL
	}

	out, err := s.client(url).GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty blockhash response from %s", url)
	}
	return out.Value.Blockhash, nil
}

func (s *RPCBlockhashSource) client(url string) *rpc.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[url]; ok {
		return c
	}
	c := rpc.New(url)
	s.clients[url] = c
	return c
}
