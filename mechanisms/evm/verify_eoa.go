package evm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyEOASignature reports whether a 65-byte (r, s, v) signature over hash
// recovers to expectedAddress. Both v = 0/1 and v = 27/28 are accepted.
func VerifyEOASignature(
	hash []byte,
	signature []byte,
	expectedAddress common.Address,
) (bool, error) {
	if len(signature) != 65 {
		return false, errors.New("invalid EOA signature length: expected 65 bytes")
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false, err
	}

	return crypto.PubkeyToAddress(*pubKey) == expectedAddress, nil
}

// VerifyAuthorizationSignature recovers the signer of an EIP-3009
// authorization and checks it against authorization.From.
func VerifyAuthorizationSignature(
	authorization ExactEIP3009Authorization,
	signature []byte,
	chainID *big.Int,
	asset AssetInfo,
) (bool, error) {
	hash, err := HashEIP3009Authorization(authorization, chainID, asset.Address, asset.Name, asset.Version)
	if err != nil {
		return false, err
	}
	return VerifyEOASignature(hash, signature, common.HexToAddress(authorization.From))
}
