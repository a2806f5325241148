// Package pay runs one paid request end to end: an optional safety screen
// of the triggering context, then an x402 negotiation with the target.
package pay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	x402http "github.com/Orac-G/x402-pay-with-safety/http"
	"github.com/Orac-G/x402-pay-with-safety/logger"
	"github.com/Orac-G/x402-pay-with-safety/metrics"
	"github.com/Orac-G/x402-pay-with-safety/safety"
)

// Negotiator performs a single x402 exchange with a per-call logger
type Negotiator interface {
	NegotiateWithLogger(ctx context.Context, url string, body []byte, signer x402.PaymentSigner, log logger.Logger) (*x402.PaymentOutcome, error)
}

// Screener judges the triggering context before the target is contacted
type Screener interface {
	Screen(ctx context.Context, prompt string, signer x402.PaymentSigner) safety.Verdict
}

// Request is one call to Pay
type Request struct {
	TargetURL string `validate:"required,http_url"`

	// RequestBody is the JSON sent to the target; empty means "{}"
	RequestBody string `validate:"omitempty,json"`

	// Context is the text that triggered the request, screened when
	// SafetyCheck is set
	Context     string
	SafetyCheck bool
}

// Client is stateless between calls
type Client struct {
	signer     *x402.X402Client
	negotiator Negotiator
	screener   Screener
	scanURL    string
	logger     logger.Logger
	metrics    metrics.Recorder
	maxAmount  *big.Int
	validate   *validator.Validate
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithNegotiator replaces the default HTTP negotiator
func WithNegotiator(n Negotiator) Option {
	return func(c *Client) {
		c.negotiator = n
	}
}

// WithScreener replaces the default safety screener
func WithScreener(s Screener) Option {
	return func(c *Client) {
		c.screener = s
	}
}

// WithScanURL points the default screener at another scanner
func WithScanURL(url string) Option {
	return func(c *Client) {
		c.scanURL = url
	}
}

// WithMaxAmount refuses to sign any requirement priced above limit smallest
// units. A nil limit disables the cap.
func WithMaxAmount(limit *big.Int) Option {
	return func(c *Client) {
		c.maxAmount = limit
	}
}

// NewClient creates a Client that pays with signer. A spend cap is installed
// on a clone, so signer itself is left untouched.
func NewClient(signer *x402.X402Client, opts ...Option) *Client {
	c := &Client{
		signer:   signer,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.negotiator == nil {
		c.negotiator = x402http.NewClient(x402http.WithLogger(c.logger))
	}
	if c.screener == nil {
		// the scan is paid through the same negotiator as the target
		n, ok := c.negotiator.(safety.Negotiator)
		if !ok {
			n = x402http.NewClient(x402http.WithLogger(c.logger))
		}
		c.screener = safety.NewScreener(n, safety.WithScanURL(c.scanURL), safety.WithLogger(c.logger))
	}
	if c.maxAmount != nil {
		c.signer = signer.Clone().OnBeforePaymentCreation(spendCap(c.maxAmount))
	}
	return c
}

func spendCap(limit *big.Int) x402.BeforePaymentCreationHook {
	return func(ctx x402.PaymentCreationContext) (*x402.BeforePaymentCreationHookResult, error) {
		amount, ok := new(big.Int).SetString(ctx.SelectedRequirements.GetAmount(), 10)
		if !ok {
			return &x402.BeforePaymentCreationHookResult{
				Abort:  true,
				Reason: fmt.Sprintf("unparseable amount %q", ctx.SelectedRequirements.GetAmount()),
			}, nil
		}
		if amount.Cmp(limit) > 0 {
			return &x402.BeforePaymentCreationHookResult{
				Abort:  true,
				Reason: fmt.Sprintf("amount %s exceeds spend cap %s", amount, limit),
			}, nil
		}
		return nil, nil
	}
}

// Pay screens req.Context when asked, then negotiates with the target. A
// MALICIOUS verdict returns a blocked Outcome without contacting the target.
// On error the returned Outcome still carries the scan and its warnings.
func (c *Client) Pay(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{RequestID: uuid.NewString(), Warnings: []string{}}
	log := logger.With(c.logger, map[string]any{"request_id": out.RequestID})

	if err := c.validate.Struct(req); err != nil {
		return out, fmt.Errorf("invalid request: %w", err)
	}
	body := req.RequestBody
	if body == "" {
		body = "{}"
	}

	if req.SafetyCheck && req.Context != "" {
		start := time.Now()
		verdict := c.screener.Screen(ctx, req.Context, c.signer)
		c.metrics.ObserveLatency(metrics.ScanLatency, time.Since(start), nil)
		out.Scan = &verdict

		switch verdict.Verdict {
		case safety.VerdictMalicious:
			log.Warn("blocked by safety scan", map[string]any{
				"url":        req.TargetURL,
				"risk_score": verdict.RiskScore,
				"findings":   len(verdict.Findings),
			})
			c.metrics.IncCounter(metrics.BlockedTotal, nil)
			out.Kind = KindBlocked
			out.Block = &Block{
				Reason:    "safety scan rated the context MALICIOUS",
				RiskScore: verdict.RiskScore,
				Findings:  verdict.Findings,
			}
			return out, nil
		case safety.VerdictSuspicious:
			warning := fmt.Sprintf("safety scan rated the context SUSPICIOUS (risk score %d)", verdict.RiskScore)
			log.Warn(warning, map[string]any{"findings": len(verdict.Findings)})
			out.Warnings = append(out.Warnings, warning)
		case safety.VerdictUnknown:
			c.metrics.IncCounter(metrics.ScanUnknownTotal, nil)
			out.Warnings = append(out.Warnings, verdict.Warning)
		}
	} else if req.SafetyCheck {
		log.Debug("no context given, skipping safety scan", nil)
	}

	start := time.Now()
	payment, err := c.negotiator.NegotiateWithLogger(ctx, req.TargetURL, []byte(body), c.signer, log)
	if err != nil {
		c.metrics.IncCounter(metrics.ErrorsTotal, nil)
		log.Error("payment negotiation failed", map[string]any{"url": req.TargetURL, "error": err})
		return out, err
	}

	labels := map[string]string{"network": payment.Network}
	c.metrics.ObserveLatency(metrics.NegotiationLatency, time.Since(start), labels)

	out.Payment = payment
	if payment.Paid {
		out.Kind = KindPaid
		c.metrics.IncCounter(metrics.PaymentsTotal, labels)
		log.Info("paid request complete", map[string]any{
			"url":       req.TargetURL,
			"cost":      payment.Cost,
			"network":   payment.Network,
			"recipient": payment.Recipient,
		})
	} else {
		out.Kind = KindUnpaid
		c.metrics.IncCounter(metrics.UnpaidTotal, labels)
		log.Info("resource served without payment", map[string]any{"url": req.TargetURL})
	}
	return out, nil
}
