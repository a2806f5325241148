package svm

import (
	"context"

	solana "github.com/gagliardetto/solana-go"
)

// ExactSvmPayload is the scheme payload: a base64 wire transaction that the
// payer has signed and the fee payer has not.
type ExactSvmPayload struct {
	Transaction string `json:"transaction"`
}

// ToMap converts the payload to a map for JSON marshaling
func (p *ExactSvmPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction": p.Transaction,
	}
}

// PayloadFromMap creates an ExactSvmPayload from a map
func PayloadFromMap(data map[string]interface{}) (*ExactSvmPayload, error) {
	tx, _ := data["transaction"].(string)
	return &ExactSvmPayload{Transaction: tx}, nil
}

// ClientSvmSigner defines the client-side Solana signing operations
type ClientSvmSigner interface {
	// Address returns the payer public key
	Address() solana.PublicKey

	// SignTransaction adds the payer signature to tx, leaving every other
	// required signature slot untouched.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// BlockhashSource supplies a recent blockhash for a cluster
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context, network string) (solana.Hash, error)
}

// AssetInfo describes an SPL token mint
type AssetInfo struct {
	Address  string
	Symbol   string
	Decimals uint8
}

// NetworkConfig contains cluster-specific configuration
type NetworkConfig struct {
	Name         string
	RPCURL       string
	DefaultAsset AssetInfo
}
