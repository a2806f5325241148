package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DetectVersion extracts x402Version from JSON bytes.
// A missing version is reported as 1, the version that predates the field
// being mandatory.
func DetectVersion(data []byte) (int, error) {
	var detector struct {
		X402Version *int `json:"x402Version"`
	}
	if err := json.Unmarshal(data, &detector); err != nil {
		return 0, fmt.Errorf("failed to detect version: %w", err)
	}
	if detector.X402Version == nil {
		return 1, nil
	}
	if *detector.X402Version < 1 {
		return 0, fmt.Errorf("invalid version: %d", *detector.X402Version)
	}
	return *detector.X402Version, nil
}

// PaymentRequiredPartial for extracting accepts array as raw bytes
// Keeps accepts as raw bytes to avoid version-specific unmarshaling
type PaymentRequiredPartial struct {
	X402Version int               `json:"x402Version"`
	Error       string            `json:"error,omitempty"`
	Accepts     []json.RawMessage `json:"accepts"`
}

// ToPaymentRequiredPartial unmarshals PaymentRequired keeping accepts as raw bytes
func ToPaymentRequiredPartial(data []byte) (*PaymentRequiredPartial, error) {
	var required PaymentRequiredPartial
	if err := json.Unmarshal(data, &required); err != nil {
		return nil, err
	}
	return &required, nil
}

// ParsePaymentRequired decodes a 402 body. Accepts entries that fail to decode
// are reported as errors rather than skipped so that server ordering is never
// silently changed.
func ParsePaymentRequired(data []byte) (*PaymentRequired, error) {
	version, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}

	partial, err := ToPaymentRequiredPartial(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment required: %w", err)
	}

	required := &PaymentRequired{
		X402Version: version,
		Error:       partial.Error,
		Accepts:     make([]PaymentRequirements, 0, len(partial.Accepts)),
	}
	for i, raw := range partial.Accepts {
		var req PaymentRequirements
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("failed to parse accepts[%d]: %w", i, err)
		}
		required.Accepts = append(required.Accepts, req)
	}
	return required, nil
}

// DecodePaymentRequiredHeader decodes the base64 JSON carried in the v2
// PAYMENT-REQUIRED response header.
func DecodePaymentRequiredHeader(value string) (*PaymentRequired, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT-REQUIRED header: %w", err)
	}
	return ParsePaymentRequired(decoded)
}

// DecodeSettleResponseHeader decodes the base64 JSON carried in the
// PAYMENT-RESPONSE / X-PAYMENT-RESPONSE header.
func DecodeSettleResponseHeader(value string) (*SettleResponse, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid payment response header: %w", err)
	}
	var settle SettleResponse
	if err := json.Unmarshal(decoded, &settle); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	return &settle, nil
}
