// Package safety screens a prompt for injection risk with a remote scanner
// that is itself paid for over x402. Scanner failures fail open.
package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/logger"
)

// DefaultScanURL is the hosted prompt-injection scanner
const DefaultScanURL = "https://orac-safety.orac.workers.dev/v1/scan"

const responseSchema = `{
	"type": "object",
	"required": ["verdict", "riskScore"],
	"properties": {
		"verdict": {"type": "string", "minLength": 1},
		"riskScore": {"type": "integer", "minimum": 0, "maximum": 100},
		"findings": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"severity": {"type": "string"},
					"description": {"type": "string"}
				}
			}
		}
	}
}`

var schema = mustSchema(responseSchema)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("safety: invalid response schema: %v", err))
	}
	return compiled
}

// Negotiator pays for and performs one HTTP exchange
type Negotiator interface {
	Negotiate(ctx context.Context, url string, body []byte, signer x402.PaymentSigner) (*x402.PaymentOutcome, error)
}

// Screener runs scans through a Negotiator
type Screener struct {
	negotiator Negotiator
	scanURL    string
	logger     logger.Logger
}

// Option configures a Screener
type Option func(*Screener)

// WithScanURL overrides DefaultScanURL
func WithScanURL(url string) Option {
	return func(s *Screener) {
		if url != "" {
			s.scanURL = url
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Screener) {
		s.logger = l
	}
}

// NewScreener creates a Screener
func NewScreener(negotiator Negotiator, opts ...Option) *Screener {
	s := &Screener{
		negotiator: negotiator,
		scanURL:    DefaultScanURL,
		logger:     logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanURL returns the scanner endpoint in use
func (s *Screener) ScanURL() string {
	return s.scanURL
}

type scanRequest struct {
	Prompt string `json:"prompt"`
}

type scanResponse struct {
	Verdict   string    `json:"verdict"`
	RiskScore int       `json:"riskScore"`
	Findings  []Finding `json:"findings"`
}

// Screen scans prompt and never fails: any problem reaching or paying the
// scanner, or understanding its answer, yields an UNKNOWN verdict with a
// warning.
func (s *Screener) Screen(ctx context.Context, prompt string, signer x402.PaymentSigner) Verdict {
	start := time.Now()
	verdict, err := s.screen(ctx, prompt, signer)
	if err != nil {
		warning := "safety scan unavailable, proceeding without it: " + err.Error()
		s.logger.Warn("safety scan failed open", map[string]any{
			"url":   s.scanURL,
			"error": err,
		})
		return Unknown(warning)
	}

	s.logger.Info("safety scan complete", map[string]any{
		"verdict":    string(verdict.Verdict),
		"risk_score": verdict.RiskScore,
		"findings":   len(verdict.Findings),
		"elapsed":    time.Since(start).String(),
	})
	return verdict
}

func (s *Screener) screen(ctx context.Context, prompt string, signer x402.PaymentSigner) (Verdict, error) {
	body, err := json.Marshal(scanRequest{Prompt: prompt})
	if err != nil {
		return Verdict{}, x402.NewSafetyUnavailableError("failed to encode scan request", err)
	}

	outcome, err := s.negotiator.Negotiate(ctx, s.scanURL, body, signer)
	if err != nil {
		return Verdict{}, x402.NewSafetyUnavailableError("scan request failed", err)
	}

	return parseScanResponse(outcome)
}

func parseScanResponse(outcome *x402.PaymentOutcome) (Verdict, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(outcome.Body))
	if err != nil {
		return Verdict{}, x402.NewSafetyUnavailableError("scan response is not JSON", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Verdict{}, x402.NewSafetyUnavailableError("scan response rejected", errors.New(strings.Join(msgs, "; ")))
	}

	var resp scanResponse
	if err := json.Unmarshal(outcome.Body, &resp); err != nil {
		return Verdict{}, x402.NewSafetyUnavailableError("failed to decode scan response", err)
	}

	label, ok := ParseLabel(resp.Verdict)
	if !ok {
		return Verdict{}, x402.NewSafetyUnavailableError(fmt.Sprintf("unrecognized verdict %q", resp.Verdict), nil)
	}

	findings := resp.Findings
	if findings == nil {
		findings = []Finding{}
	}

	return Verdict{
		Verdict:   label,
		RiskScore: resp.RiskScore,
		Findings:  findings,
		Cost:      outcome.Cost,
	}, nil
}
