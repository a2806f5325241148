package x402

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Orac-G/x402-pay-with-safety/types"
)

// PaymentOutcome is the terminal value of one negotiation
type PaymentOutcome struct {
	Paid   bool `json:"paid"`
	Status int  `json:"status"`

	// Cost is Amount scaled by the asset's decimals, e.g. "0.001000" for USDC
	Cost string `json:"cost,omitempty"`

	// Amount is the paid price in the asset's smallest unit
	Amount    string `json:"amount,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Network   string `json:"network,omitempty"`
	Asset     string `json:"asset,omitempty"`

	// Symbol names the unit Cost is expressed in
	Symbol string `json:"symbol,omitempty"`

	Body []byte `json:"-"`

	// Settlement is the server's confirmation, when it sent one
	Settlement *types.SettleResponse `json:"settlement,omitempty"`
}

// AssetUnit is the display unit of the asset a requirement is priced in
type AssetUnit struct {
	Symbol   string
	Decimals int
}

// DefaultAssetUnit applies when no scheme describes the asset
var DefaultAssetUnit = AssetUnit{Symbol: "USDC", Decimals: USDCDecimals}

// AssetDescriber is implemented by schemes and signers that can resolve the
// unit of a requirement's asset.
type AssetDescriber interface {
	DescribeAsset(requirements types.PaymentRequirements) (AssetUnit, error)
}

// FormatCost renders an integer minor-unit USDC amount as a decimal string
// with exactly USDCDecimals places.
func FormatCost(minorUnits string) (string, error) {
	return FormatCostWithDecimals(minorUnits, USDCDecimals)
}

// FormatCostWithDecimals renders an integer minor-unit amount scaled down by
// 10^decimals, with exactly decimals places.
func FormatCostWithDecimals(minorUnits string, decimals int) (string, error) {
	if decimals < 0 || decimals > 255 {
		return "", fmt.Errorf("invalid decimals: %d", decimals)
	}
	n, ok := new(big.Int).SetString(minorUnits, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount: %q", minorUnits)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("negative amount: %s", minorUnits)
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).StringFixed(int32(decimals)), nil
}
