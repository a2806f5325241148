package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/mechanisms/svm"
	"github.com/Orac-G/x402-pay-with-safety/types"
)

// ExactSvmScheme builds SPL TransferChecked payments for the "exact" scheme
// on Solana. The facilitator named in extra.feePayer pays the fee and adds
// its own signature before broadcasting.
type ExactSvmScheme struct {
	signer      svm.ClientSvmSigner
	blockhashes svm.BlockhashSource

	computeUnitLimit uint32
	computeUnitPrice uint64
}

// Option configures an ExactSvmScheme
type Option func(*ExactSvmScheme)

// WithBlockhashSource replaces the default RPC blockhash source
func WithBlockhashSource(source svm.BlockhashSource) Option {
	return func(s *ExactSvmScheme) {
		s.blockhashes = source
	}
}

// WithComputeUnitLimit sets the compute unit limit instruction value
func WithComputeUnitLimit(units uint32) Option {
	return func(s *ExactSvmScheme) {
		s.computeUnitLimit = units
	}
}

// WithComputeUnitPrice sets the priority fee in micro-lamports per unit
func WithComputeUnitPrice(microLamports uint64) Option {
	return func(s *ExactSvmScheme) {
		s.computeUnitPrice = microLamports
	}
}

// NewExactSvmScheme creates a new ExactSvmScheme. Without WithBlockhashSource
// blockhashes come from the cluster's public RPC endpoint.
func NewExactSvmScheme(signer svm.ClientSvmSigner, opts ...Option) *ExactSvmScheme {
	s := &ExactSvmScheme{
		signer:           signer,
		computeUnitLimit: svm.DefaultComputeUnitLimit,
		computeUnitPrice: svm.DefaultComputeUnitPrice,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blockhashes == nil {
		s.blockhashes = svm.NewRPCBlockhashSource("")
	}
	return s
}

// Scheme returns the scheme identifier
func (c *ExactSvmScheme) Scheme() string {
	return svm.SchemeExact
}

// Address returns the payer public key in base58
func (c *ExactSvmScheme) Address() string {
	return c.signer.Address().String()
}

// DescribeAsset reports the symbol and decimals of the requirement's mint.
// extra.decimals overrides the cluster default.
func (c *ExactSvmScheme) DescribeAsset(requirements types.PaymentRequirements) (x402.AssetUnit, error) {
	info, err := svm.GetAssetInfo(requirements.Network, requirements.Asset, requirements.Extra)
	if err != nil {
		return x402.AssetUnit{}, err
	}

	unit := x402.AssetUnit{Symbol: info.Symbol, Decimals: int(info.Decimals)}
	if symbol, ok := requirements.Extra["symbol"].(string); ok && symbol != "" {
		unit.Symbol = symbol
	}
	if unit.Symbol == "" {
		unit.Symbol = info.Address
	}
	return unit, nil
}

// CreatePaymentPayload builds and partially signs the transfer transaction
// and returns the scheme payload {transaction}.
func (c *ExactSvmScheme) CreatePaymentPayload(
	ctx context.Context,
	requirements types.PaymentRequirements,
) (map[string]interface{}, error) {
	assetInfo, err := svm.GetAssetInfo(requirements.Network, requirements.Asset, requirements.Extra)
	if err != nil {
		return nil, err
	}

	amount, err := strconv.ParseUint(requirements.GetAmount(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %q", requirements.GetAmount())
	}

	payTo, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return nil, fmt.Errorf("invalid payTo address %q: %w", requirements.PayTo, err)
	}

	feePayerStr := requirements.ExtraString("feePayer")
	if feePayerStr == "" {
		return nil, errors.New("requirements missing extra.feePayer")
	}
	feePayer, err := solana.PublicKeyFromBase58(feePayerStr)
	if err != nil {
		return nil, fmt.Errorf("invalid feePayer %q: %w", feePayerStr, err)
	}

	mint, err := solana.PublicKeyFromBase58(assetInfo.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid asset mint %q: %w", assetInfo.Address, err)
	}

	payer := c.signer.Address()
	source, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive payer token account: %w", err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive payee token account: %w", err)
	}

	blockhash, err := c.blockhashes.LatestBlockhash(ctx, requirements.Network)
	if err != nil {
		return nil, err
	}

	transfer, err := token.NewTransferCheckedInstruction(
		amount,
		assetInfo.Decimals,
		source,
		mint,
		destination,
		payer,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(c.computeUnitLimit).Build(),
			computebudget.NewSetComputeUnitPriceInstruction(c.computeUnitPrice).Build(),
			transfer,
		},
		blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := c.signer.SignTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	encoded, err := svm.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	payload := &svm.ExactSvmPayload{Transaction: encoded}
	return payload.ToMap(), nil
}
