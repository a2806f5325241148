package client

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/mechanisms/evm"
	"github.com/Orac-G/x402-pay-with-safety/types"
)

// ExactEvmScheme creates gasless EIP-3009 authorizations for the "exact"
// scheme on EVM networks. The payer only signs; the facilitator submits.
type ExactEvmScheme struct {
	signer evm.ClientEvmSigner
}

// NewExactEvmScheme creates a new ExactEvmScheme
func NewExactEvmScheme(signer evm.ClientEvmSigner) *ExactEvmScheme {
	return &ExactEvmScheme{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactEvmScheme) Scheme() string {
	return evm.SchemeExact
}

// Address returns the payer address
func (c *ExactEvmScheme) Address() string {
	return c.signer.Address()
}

// DescribeAsset reports the symbol and decimals of the requirement's token.
// The network's default asset is USDC; other tokens take extra.symbol, or
// their address when the server named none.
func (c *ExactEvmScheme) DescribeAsset(requirements types.PaymentRequirements) (x402.AssetUnit, error) {
	info, err := evm.GetAssetInfo(requirements.Network, requirements.Asset, requirements.Extra)
	if err != nil {
		return x402.AssetUnit{}, err
	}

	unit := x402.AssetUnit{Symbol: info.Address, Decimals: info.Decimals}
	if symbol, ok := requirements.Extra["symbol"].(string); ok && symbol != "" {
		unit.Symbol = symbol
	} else if config, err := evm.GetNetworkConfig(requirements.Network); err == nil &&
		evm.NormalizeAddress(info.Address) == evm.NormalizeAddress(config.DefaultAsset.Address) {
		unit.Symbol = x402.DefaultAssetUnit.Symbol
	}
	return unit, nil
}

// CreatePaymentPayload signs a TransferWithAuthorization for the requirement
// and returns the scheme payload {signature, authorization}.
func (c *ExactEvmScheme) CreatePaymentPayload(
	ctx context.Context,
	requirements types.PaymentRequirements,
) (map[string]interface{}, error) {
	chainID, err := evm.GetEvmChainId(requirements.Network)
	if err != nil {
		return nil, err
	}

	assetInfo, err := evm.GetAssetInfo(requirements.Network, requirements.Asset, requirements.Extra)
	if err != nil {
		return nil, err
	}

	if !evm.IsValidAddress(requirements.PayTo) {
		return nil, fmt.Errorf("invalid payTo address: %q", requirements.PayTo)
	}

	value, ok := new(big.Int).SetString(requirements.GetAmount(), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", requirements.GetAmount())
	}

	nonce, err := evm.CreateNonce()
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(requirements.MaxTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = evm.DefaultValidityPeriod * time.Second
	}
	validAfter, validBefore := evm.CreateValidityWindow(timeout)

	authorization := evm.ExactEIP3009Authorization{
		From:        c.signer.Address(),
		To:          requirements.PayTo,
		Value:       value.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonce,
	}

	signature, err := c.signAuthorization(ctx, authorization, chainID, *assetInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}

	valid, err := evm.VerifyAuthorizationSignature(authorization, signature, chainID, *assetInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !valid {
		return nil, errors.New("signature does not recover to payer address")
	}

	payload := &evm.ExactEIP3009Payload{
		Signature:     "0x" + hex.EncodeToString(signature),
		Authorization: authorization,
	}
	return payload.ToMap(), nil
}

func (c *ExactEvmScheme) signAuthorization(
	ctx context.Context,
	authorization evm.ExactEIP3009Authorization,
	chainID *big.Int,
	asset evm.AssetInfo,
) ([]byte, error) {
	domain := evm.TypedDataDomain{
		Name:              asset.Name,
		Version:           asset.Version,
		ChainID:           chainID,
		VerifyingContract: asset.Address,
	}

	message, err := evm.AuthorizationMessage(authorization)
	if err != nil {
		return nil, err
	}

	return c.signer.SignTypedData(ctx, domain, evm.TransferWithAuthorizationTypes(), evm.PrimaryTypeTransferWithAuthorization, message)
}
