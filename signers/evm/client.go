package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402evm "github.com/Orac-G/x402-pay-with-safety/mechanisms/evm"
)

var _ x402evm.ClientEvmSigner = (*ClientSigner)(nil)

// ClientSigner implements x402evm.ClientEvmSigner using an ECDSA private key.
// It never talks to a node: EIP-3009 payments are signed off-chain.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded
// private key, with or without a "0x" prefix.
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey(os.Getenv("EVM_PRIVATE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := x402.NewX402Client().
//	    Register("eip155:*", evmclient.NewExactEvmScheme(signer))
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the checksummed Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// SignTypedData signs EIP-712 typed data and returns a 65-byte (r, s, v)
// signature with v in {27, 28}.
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain x402evm.TypedDataDomain,
	types map[string][]x402evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := x402evm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// recovery id 0/1 -> 27/28
	signature[64] += 27

	return signature, nil
}
