// Package metrics records payment counters and latencies.
package metrics

import "time"

// Metric names emitted by the pay client
const (
	PaymentsTotal      = "payments"
	UnpaidTotal        = "unpaid"
	BlockedTotal       = "blocked"
	ErrorsTotal        = "errors"
	ScanUnknownTotal   = "scan_unknown"
	NegotiationLatency = "negotiation"
	ScanLatency        = "scan"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
