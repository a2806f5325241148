// Package http negotiates x402 payments over HTTP: an unpaid request, the 402
// requirement set, and a single paid retry.
package http

import (
	"context"
	"errors"
	"net/http"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/logger"
	"github.com/Orac-G/x402-pay-with-safety/types"
)

// HTTPClient runs x402 negotiations against arbitrary URLs
type HTTPClient struct {
	transport Transport
	logger    logger.Logger
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithTransport replaces the default net/http transport
func WithTransport(t Transport) Option {
	return func(c *HTTPClient) {
		c.transport = t
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewClient creates a negotiator. The default transport times out after
// DefaultTimeout.
func NewClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{logger: logger.NoopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewNetTransport(DefaultTimeout)
	}
	return c
}

// Negotiate POSTs body to url and pays once if the server asks for it.
// It makes at most two requests; a failed paid retry is never repeated.
// Errors are *x402.PaymentError.
func (c *HTTPClient) Negotiate(ctx context.Context, url string, body []byte, signer x402.PaymentSigner) (*x402.PaymentOutcome, error) {
	return c.NegotiateWithLogger(ctx, url, body, signer, c.logger)
}

// NegotiateWithLogger is Negotiate with a per-call logger, typically one
// carrying a request id.
func (c *HTTPClient) NegotiateWithLogger(ctx context.Context, url string, body []byte, signer x402.PaymentSigner, log logger.Logger) (*x402.PaymentOutcome, error) {
	if log == nil {
		log = c.logger
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}

	log.Debug("requesting resource", map[string]any{"url": url})
	resp, err := c.transport.Post(ctx, url, body, headers)
	if err != nil {
		return nil, x402.NewTransportError("request to "+url+" failed", err)
	}

	switch resp.Status {
	case http.StatusOK:
		return &x402.PaymentOutcome{Paid: false, Status: resp.Status, Body: resp.Body}, nil
	case http.StatusPaymentRequired:
	default:
		return nil, x402.NewProtocolError("unexpected status", resp.Status, resp.Body)
	}

	required, err := parsePaymentRequired(resp)
	if err != nil {
		return nil, err
	}

	payload, err := signer.Sign(ctx, required)
	if err != nil {
		return nil, asSigningError("failed to sign payment", err)
	}

	accepted := payload.Accepted
	unit := x402.DefaultAssetUnit
	if d, ok := signer.(x402.AssetDescriber); ok {
		if u, err := d.DescribeAsset(accepted); err == nil {
			unit = u
		} else {
			log.Warn("asset unit unknown, assuming USDC", map[string]any{"asset": accepted.Asset, "network": accepted.Network, "error": err.Error()})
		}
	}
	cost, err := x402.FormatCostWithDecimals(accepted.GetAmount(), unit.Decimals)
	if err != nil {
		return nil, x402.NewProtocolError(err.Error(), resp.Status, nil)
	}

	paymentHeaders, err := signer.EncodeHeader(payload)
	if err != nil {
		return nil, asSigningError("failed to encode payment header", err)
	}
	for k, v := range paymentHeaders {
		headers[k] = v
	}

	log.Info("sending payment", map[string]any{
		"url":       url,
		"network":   accepted.Network,
		"amount":    accepted.GetAmount(),
		"cost":      cost,
		"symbol":    unit.Symbol,
		"recipient": accepted.PayTo,
	})

	paid, err := c.transport.Post(ctx, url, body, headers)
	if err != nil {
		return nil, x402.NewTransportError("paid request to "+url+" failed", err)
	}

	settlement := decodeSettlement(paid.Header, log)

	if paid.Status != http.StatusOK {
		perr := x402.NewProtocolError("payment failed", paid.Status, paid.Body)
		if settlement != nil && settlement.ErrorReason != "" {
			perr.Message = "payment failed: " + settlement.ErrorReason
		}
		return nil, perr
	}

	return &x402.PaymentOutcome{
		Paid:       true,
		Status:     paid.Status,
		Cost:       cost,
		Amount:     accepted.GetAmount(),
		Recipient:  accepted.PayTo,
		Network:    accepted.Network,
		Asset:      accepted.Asset,
		Symbol:     unit.Symbol,
		Body:       paid.Body,
		Settlement: settlement,
	}, nil
}

// parsePaymentRequired reads the requirement set from the 402 body, falling
// back to the v2 PAYMENT-REQUIRED header when the body has no options.
func parsePaymentRequired(resp *Response) (*types.PaymentRequired, error) {
	required, bodyErr := types.ParsePaymentRequired(resp.Body)
	if bodyErr == nil && len(required.Accepts) > 0 {
		return required, nil
	}

	if encoded := resp.Header.Get(x402.HeaderPaymentRequired); encoded != "" {
		fromHeader, err := types.DecodePaymentRequiredHeader(encoded)
		if err != nil {
			return nil, &x402.PaymentError{
				Code:    x402.CodeProtocol,
				Message: "malformed " + x402.HeaderPaymentRequired + " header",
				Status:  resp.Status,
				Snippet: x402.Snippet(resp.Body),
				Err:     err,
			}
		}
		if len(fromHeader.Accepts) > 0 {
			return fromHeader, nil
		}
	}

	if bodyErr != nil {
		perr := x402.NewProtocolError("malformed payment requirements", resp.Status, resp.Body)
		perr.Err = bodyErr
		return nil, perr
	}
	return nil, x402.NewProtocolError("no payment options", resp.Status, resp.Body)
}

func decodeSettlement(header http.Header, log logger.Logger) *types.SettleResponse {
	for _, name := range []string{x402.HeaderPaymentResponse, x402.HeaderXPaymentResponse} {
		encoded := header.Get(name)
		if encoded == "" {
			continue
		}
		settlement, err := types.DecodeSettleResponseHeader(encoded)
		if err != nil {
			log.Warn("ignoring undecodable settlement header", map[string]any{"header": name, "error": err})
			return nil
		}
		return settlement
	}
	return nil
}

func asSigningError(message string, err error) error {
	var perr *x402.PaymentError
	if errors.As(err, &perr) {
		return err
	}
	return x402.NewSigningError(message, err)
}
