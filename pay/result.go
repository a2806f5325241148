package pay

import (
	"errors"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/safety"
)

// Kind tags how a Pay call ended
type Kind string

const (
	KindPaid    Kind = "paid"
	KindUnpaid  Kind = "unpaid"
	KindBlocked Kind = "blocked"
)

// Block explains why the target was never contacted
type Block struct {
	Reason    string           `json:"reason"`
	RiskScore int              `json:"riskScore"`
	Findings  []safety.Finding `json:"findings"`
}

// Outcome is the result of one Pay call. Payment is set for KindPaid and
// KindUnpaid, Block for KindBlocked. Scan is set whenever a screen ran.
type Outcome struct {
	Kind      Kind
	RequestID string
	Payment   *x402.PaymentOutcome
	Scan      *safety.Verdict
	Block     *Block
	Warnings  []string
}

// Status is the coarse result reported to callers
type Status string

const (
	StatusSuccess Status = "success"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Process exit codes. Paid and unpaid are both success.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitBlocked = 2
)

// Result is the flat, printable form of an Outcome
type Result struct {
	Status    Status `json:"status"`
	ExitCode  int    `json:"-"`
	RequestID string `json:"requestId,omitempty"`

	Paid        bool   `json:"paid"`
	HTTPStatus  int    `json:"httpStatus,omitempty"`
	Cost        string `json:"cost,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Network     string `json:"network,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Body        string `json:"body,omitempty"`

	Reason    string           `json:"reason,omitempty"`
	RiskScore int              `json:"riskScore,omitempty"`
	Findings  []safety.Finding `json:"findings,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// MapResult turns what Pay returned into a Result and exit code
func MapResult(out *Outcome, err error) Result {
	var r Result
	if out != nil {
		r.RequestID = out.RequestID
		r.Warnings = out.Warnings
	}

	if err != nil {
		r.Status = StatusError
		r.ExitCode = ExitError
		r.Error = err.Error()
		var perr *x402.PaymentError
		if errors.As(err, &perr) {
			r.ErrorCode = string(perr.Code)
			r.HTTPStatus = perr.Status
			r.Snippet = perr.Snippet
		}
		return r
	}

	if out == nil {
		r.Status = StatusError
		r.ExitCode = ExitError
		r.Error = "no outcome"
		return r
	}

	switch out.Kind {
	case KindBlocked:
		r.Status = StatusBlocked
		r.ExitCode = ExitBlocked
		if out.Block != nil {
			r.Reason = out.Block.Reason
			r.RiskScore = out.Block.RiskScore
			r.Findings = out.Block.Findings
		}
		return r
	case KindPaid, KindUnpaid:
		r.Status = StatusSuccess
		r.ExitCode = ExitSuccess
		if p := out.Payment; p != nil {
			r.Paid = p.Paid
			r.HTTPStatus = p.Status
			r.Cost = p.Cost
			r.Unit = p.Symbol
			r.Recipient = p.Recipient
			r.Network = p.Network
			r.Body = string(p.Body)
			if p.Settlement != nil {
				r.Transaction = p.Settlement.Transaction
			}
		}
		return r
	default:
		r.Status = StatusError
		r.ExitCode = ExitError
		r.Error = "unknown outcome kind " + string(out.Kind)
		return r
	}
}
