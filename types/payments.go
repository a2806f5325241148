package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// PaymentRequirements is one payment option offered by a resource server in
// its 402 response. Amounts are integer strings in the asset's smallest unit.
type PaymentRequirements struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
	Asset   string `json:"asset"`
	PayTo   string `json:"payTo"`

	// Amount is the v2 field name for the price
	Amount string `json:"amount,omitempty"`

	// MaxAmountRequired is the v1 field name for the price
	MaxAmountRequired string `json:"maxAmountRequired,omitempty"`

	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
	Resource          string `json:"resource,omitempty"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`

	// Extra carries scheme-specific fields such as the EIP-712 token
	// name/version on EVM or the fee payer on Solana.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// UnmarshalJSON accepts amount and maxAmountRequired either as strings or
// as JSON integers. Fractional and negative amounts are rejected.
func (r *PaymentRequirements) UnmarshalJSON(data []byte) error {
	type plain PaymentRequirements
	aux := struct {
		*plain
		Amount            json.RawMessage `json:"amount,omitempty"`
		MaxAmountRequired json.RawMessage `json:"maxAmountRequired,omitempty"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if r.Amount, err = parseAmount("amount", aux.Amount); err != nil {
		return err
	}
	if r.MaxAmountRequired, err = parseAmount("maxAmountRequired", aux.MaxAmountRequired); err != nil {
		return err
	}
	return nil
}

func parseAmount(field string, raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("%s: %w", field, err)
		}
		if text == "" {
			return "", nil
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return "", fmt.Errorf("%s must be a string or integer: %w", field, err)
		}
		text = num.String()
	}

	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return "", fmt.Errorf("%s must be an integer in smallest units, got %s", field, text)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("%s must not be negative, got %s", field, text)
	}
	return n.String(), nil
}

// GetAmount returns the price in smallest units regardless of protocol version
func (r PaymentRequirements) GetAmount() string {
	if r.Amount != "" {
		return r.Amount
	}
	return r.MaxAmountRequired
}

// GetScheme returns the scheme identifier
func (r PaymentRequirements) GetScheme() string {
	return r.Scheme
}

// GetNetwork returns the network identifier
func (r PaymentRequirements) GetNetwork() string {
	return r.Network
}

// ExtraString returns a string field from Extra, or "" if absent
func (r PaymentRequirements) ExtraString(key string) string {
	if r.Extra == nil {
		return ""
	}
	if v, ok := r.Extra[key].(string); ok {
		return v
	}
	return ""
}

// PaymentRequired is the body of a 402 Payment Required response
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// PaymentPayload is a signed authorization bound to exactly one requirement.
// Payload holds the scheme-specific body produced by a chain mechanism.
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Accepted    PaymentRequirements    `json:"accepted"`
	Payload     map[string]interface{} `json:"payload"`
}

// SettleResponse is the facilitator settlement summary a resource server
// echoes back in the PAYMENT-RESPONSE header.
type SettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}
