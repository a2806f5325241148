package types

import (
	"encoding/json"
	"fmt"
)

type payloadV1 struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

type payloadV2 struct {
	X402Version int                    `json:"x402Version"`
	Accepted    PaymentRequirements    `json:"accepted"`
	Payload     map[string]interface{} `json:"payload"`
}

// MarshalPaymentPayload renders a payload in the wire shape of its version:
// v1 carries scheme and network at the top level, v2 echoes the accepted
// requirement. GetSchemeAndNetwork reads both shapes back.
func MarshalPaymentPayload(p *PaymentPayload) ([]byte, error) {
	switch p.X402Version {
	case 1:
		return json.Marshal(payloadV1{
			X402Version: 1,
			Scheme:      p.Scheme,
			Network:     p.Network,
			Payload:     p.Payload,
		})
	case 2:
		return json.Marshal(payloadV2{
			X402Version: 2,
			Accepted:    p.Accepted,
			Payload:     p.Payload,
		})
	default:
		return nil, fmt.Errorf("unsupported version: %d", p.X402Version)
	}
}

// GetSchemeAndNetwork extracts scheme and network from payment payload bytes
func GetSchemeAndNetwork(version int, payloadBytes []byte) (scheme string, network string, err error) {
	switch version {
	case 1:
		var partial payloadV1
		if err := json.Unmarshal(payloadBytes, &partial); err != nil {
			return "", "", fmt.Errorf("failed to parse v1 payload: %w", err)
		}
		return partial.Scheme, partial.Network, nil

	case 2:
		var partial payloadV2
		if err := json.Unmarshal(payloadBytes, &partial); err != nil {
			return "", "", fmt.Errorf("failed to parse v2 payload: %w", err)
		}
		return partial.Accepted.Scheme, partial.Accepted.Network, nil

	default:
		return "", "", fmt.Errorf("unsupported version: %d", version)
	}
}

// MatchPayloadToRequirements reports whether encoded payload bytes target the
// given requirement. v1 payloads only carry scheme and network; v2 payloads
// echo the full requirement and must agree on price and recipient too.
func MatchPayloadToRequirements(version int, payloadBytes []byte, req PaymentRequirements) (bool, error) {
	scheme, network, err := GetSchemeAndNetwork(version, payloadBytes)
	if err != nil {
		return false, err
	}
	if scheme != req.Scheme || network != req.Network {
		return false, nil
	}
	if version == 1 {
		return true, nil
	}

	var partial payloadV2
	if err := json.Unmarshal(payloadBytes, &partial); err != nil {
		return false, err
	}
	return partial.Accepted.GetAmount() == req.GetAmount() &&
		partial.Accepted.Asset == req.Asset &&
		partial.Accepted.PayTo == req.PayTo, nil
}
