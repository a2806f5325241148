package client

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/mechanisms/svm"
	svmsigners "github.com/Orac-G/x402-pay-with-safety/signers/svm"
	"github.com/Orac-G/x402-pay-with-safety/types"
)

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

type staticBlockhash struct {
	hash    solana.Hash
	err     error
	network string
}

func (s *staticBlockhash) LatestBlockhash(_ context.Context, network string) (solana.Hash, error) {
	s.network = network
	return s.hash, s.err
}

type fixture struct {
	signer   *svmsigners.ClientSigner
	feePayer solana.PublicKey
	payTo    solana.PublicKey
	source   *staticBlockhash
	scheme   *ExactSvmScheme
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	payerKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer, err := svmsigners.NewClientSignerFromPrivateKey(payerKey.String())
	require.NoError(t, err)

	feePayerKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	payToKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	source := &staticBlockhash{hash: solana.Hash{7, 7, 7}}
	return &fixture{
		signer:   signer,
		feePayer: feePayerKey.PublicKey(),
		payTo:    payToKey.PublicKey(),
		source:   source,
		scheme:   NewExactSvmScheme(signer, WithBlockhashSource(source), WithComputeUnitPrice(5)),
	}
}

func (f *fixture) requirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:  "exact",
		Network: svm.SolanaDevnetCAIP2,
		Asset:   svm.USDCDevnetMint,
		PayTo:   f.payTo.String(),
		Amount:  "5000",
		Extra:   map[string]interface{}{"feePayer": f.feePayer.String()},
	}
}

func TestExactSvmScheme_CreatePaymentPayload(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "exact", f.scheme.Scheme())
	assert.Equal(t, f.signer.Address().String(), f.scheme.Address())

	payload, err := f.scheme.CreatePaymentPayload(context.Background(), f.requirements())
	require.NoError(t, err)
	assert.Equal(t, svm.SolanaDevnetCAIP2, f.source.network)

	parsed, err := svm.PayloadFromMap(payload)
	require.NoError(t, err)
	tx, err := svm.DecodeTransaction(parsed.Transaction)
	require.NoError(t, err)

	assert.Equal(t, f.source.hash, tx.Message.RecentBlockhash)

	t.Run("fee payer is the facilitator and only the payer signed", func(t *testing.T) {
		require.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
		require.Len(t, tx.Signatures, 2)
		assert.True(t, tx.Message.AccountKeys[0].Equals(f.feePayer))
		assert.Equal(t, solana.Signature{}, tx.Signatures[0])

		message, err := tx.Message.MarshalBinary()
		require.NoError(t, err)
		assert.True(t, tx.Message.AccountKeys[1].Equals(f.signer.Address()))
		assert.True(t, tx.Signatures[1].Verify(f.signer.Address(), message))
	})

	t.Run("compute budget then transferChecked", func(t *testing.T) {
		require.Len(t, tx.Message.Instructions, 3)
		keys := tx.Message.AccountKeys

		assert.True(t, keys[tx.Message.Instructions[0].ProgramIDIndex].Equals(computeBudgetProgramID))
		assert.True(t, keys[tx.Message.Instructions[1].ProgramIDIndex].Equals(computeBudgetProgramID))

		transfer := tx.Message.Instructions[2]
		assert.True(t, keys[transfer.ProgramIDIndex].Equals(solana.TokenProgramID))

		// TransferChecked: [12, amount u64 LE, decimals u8]
		data := []byte(transfer.Data)
		require.Len(t, data, 10)
		assert.Equal(t, byte(12), data[0])
		assert.Equal(t, uint64(5000), binary.LittleEndian.Uint64(data[1:9]))
		assert.Equal(t, byte(6), data[9])

		mint := solana.MustPublicKeyFromBase58(svm.USDCDevnetMint)
		sourceATA, _, err := solana.FindAssociatedTokenAddress(f.signer.Address(), mint)
		require.NoError(t, err)
		destATA, _, err := solana.FindAssociatedTokenAddress(f.payTo, mint)
		require.NoError(t, err)

		require.Len(t, transfer.Accounts, 4)
		assert.True(t, keys[transfer.Accounts[0]].Equals(sourceATA))
		assert.True(t, keys[transfer.Accounts[1]].Equals(mint))
		assert.True(t, keys[transfer.Accounts[2]].Equals(destATA))
		assert.True(t, keys[transfer.Accounts[3]].Equals(f.signer.Address()))
	})
}

func TestExactSvmScheme_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PaymentRequirements)
	}{
		{"missing fee payer", func(r *types.PaymentRequirements) { r.Extra = nil }},
		{"bad fee payer", func(r *types.PaymentRequirements) { r.Extra = map[string]interface{}{"feePayer": "nope0"} }},
		{"bad payTo", func(r *types.PaymentRequirements) { r.PayTo = "0x9876543210987654321098765432109876543210" }},
		{"bad amount", func(r *types.PaymentRequirements) { r.Amount = "12.5" }},
		{"evm network", func(r *types.PaymentRequirements) { r.Network = "eip155:8453" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.requirements()
			tt.mutate(&req)
			_, err := f.scheme.CreatePaymentPayload(context.Background(), req)
			assert.Error(t, err)
		})
	}

	t.Run("blockhash unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.source.err = errors.New("rpc down")
		_, err := f.scheme.CreatePaymentPayload(context.Background(), f.requirements())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rpc down")
	})
}

func TestExactSvmScheme_LegacyNetworkAndAmountField(t *testing.T) {
	f := newFixture(t)
	req := f.requirements()
	req.Network = "solana-devnet"
	req.Amount = ""
	req.MaxAmountRequired = "42"

	payload, err := f.scheme.CreatePaymentPayload(context.Background(), req)
	require.NoError(t, err)

	parsed, _ := svm.PayloadFromMap(payload)
	tx, err := svm.DecodeTransaction(parsed.Transaction)
	require.NoError(t, err)
	data := []byte(tx.Message.Instructions[2].Data)
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[1:9]))
}

func TestExactSvmScheme_DescribeAsset(t *testing.T) {
	f := newFixture(t)
	mintKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	mint := mintKey.PublicKey().String()

	tests := []struct {
		name   string
		asset  string
		extra  map[string]interface{}
		want   x402.AssetUnit
		errMsg string
	}{
		{name: "devnet usdc", asset: svm.USDCDevnetMint, want: x402.AssetUnit{Symbol: "USDC", Decimals: 6}},
		{name: "nine decimal mint with symbol", asset: mint, extra: map[string]interface{}{"decimals": float64(9), "symbol": "WSOL"}, want: x402.AssetUnit{Symbol: "WSOL", Decimals: 9}},
		{name: "unnamed mint falls back to address", asset: mint, extra: map[string]interface{}{"decimals": 9}, want: x402.AssetUnit{Symbol: mint, Decimals: 9}},
		{name: "bad decimals", asset: mint, extra: map[string]interface{}{"decimals": 1.5}, errMsg: "invalid decimals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.requirements()
			req.Asset = tt.asset
			for k, v := range tt.extra {
				req.Extra[k] = v
			}
			got, err := f.scheme.DescribeAsset(req)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
