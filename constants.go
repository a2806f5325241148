package x402

// Version constants
const (
	// Version is the module version reported in User-Agent
	Version = "0.3.0"

	// ProtocolVersion is the current x402 protocol version
	ProtocolVersion = 2

	// ProtocolVersionV1 is the legacy x402 protocol version
	ProtocolVersionV1 = 1
)

// HTTP header names
const (
	// HeaderPaymentSignature carries the payment payload in v2
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"

	// HeaderXPayment carries the payment payload in v1
	HeaderXPayment = "X-PAYMENT"

	// HeaderPaymentRequired carries the base64 requirement set in v2 402 responses
	HeaderPaymentRequired = "PAYMENT-REQUIRED"

	// HeaderPaymentResponse carries the settlement result in v2
	HeaderPaymentResponse = "PAYMENT-RESPONSE"

	// HeaderXPaymentResponse carries the settlement result in v1
	HeaderXPaymentResponse = "X-PAYMENT-RESPONSE"
)

// USDCDecimals is the minor-unit precision used to render costs
const USDCDecimals = 6
