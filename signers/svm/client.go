package svm

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"

	x402svm "github.com/Orac-G/x402-pay-with-safety/mechanisms/svm"
)

var _ x402svm.ClientSvmSigner = (*ClientSigner)(nil)

// ClientSigner implements svm.ClientSvmSigner using an ed25519 keypair.
type ClientSigner struct {
	privateKey solana.PrivateKey
}

// NewClientSignerFromPrivateKey creates a client signer from a base58-encoded
// 64-byte keypair (the format printed by solana-keygen and most wallets).
func NewClientSignerFromPrivateKey(privateKeyBase58 string) (*ClientSigner, error) {
	privateKeyBase58 = strings.TrimSpace(privateKeyBase58)
	if privateKeyBase58 == "" {
		return nil, errors.New("invalid private key: empty")
	}

	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}

	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return nil, errors.New("invalid private key: public half does not match seed")
	}

	return &ClientSigner{privateKey: key}, nil
}

// Address returns the signer's public key
func (s *ClientSigner) Address() solana.PublicKey {
	return s.privateKey.PublicKey()
}

// SignTransaction signs tx's message and stores the signature in the slot of
// the signer's account key. The signatures array is grown to the number of
// required signatures so that other signers can fill their own slots later.
func (s *ClientSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("malformed message: %d required signatures, %d account keys", required, len(tx.Message.AccountKeys))
	}

	pub := s.Address()
	index := -1
	for i, key := range tx.Message.AccountKeys[:required] {
		if key.Equals(pub) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%s is not a required signer of this transaction", pub)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	signature, err := s.privateKey.Sign(message)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	if len(tx.Signatures) < required {
		expanded := make([]solana.Signature, required)
		copy(expanded, tx.Signatures)
		tx.Signatures = expanded
	}
	tx.Signatures[index] = signature

	return nil
}
