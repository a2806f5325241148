// Command x402-pay makes one paid HTTP request, optionally screening the
// triggering context first, and exits 0 on success, 1 on error and 2 when
// the safety scan blocked the request.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/config"
	x402http "github.com/Orac-G/x402-pay-with-safety/http"
	"github.com/Orac-G/x402-pay-with-safety/logger"
	x402evm "github.com/Orac-G/x402-pay-with-safety/mechanisms/evm"
	x402svm "github.com/Orac-G/x402-pay-with-safety/mechanisms/svm"
	svmclient "github.com/Orac-G/x402-pay-with-safety/mechanisms/svm/exact/client"
	"github.com/Orac-G/x402-pay-with-safety/metrics"
	"github.com/Orac-G/x402-pay-with-safety/pay"
	evmsigners "github.com/Orac-G/x402-pay-with-safety/signers/evm"
	svmsigners "github.com/Orac-G/x402-pay-with-safety/signers/svm"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("x402-pay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "", "target URL (required)")
	body := fs.String("body", "{}", "JSON request body")
	prompt := fs.String("context", "", "text that triggered the request, screened when -safety is set")
	safetyCheck := fs.Bool("safety", true, "screen -context for prompt injection before paying")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return pay.ExitError
	}
	if *url == "" {
		fmt.Fprintln(stderr, "x402-pay: -url is required")
		fs.Usage()
		return pay.ExitError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "x402-pay: %v\n", err)
		return pay.ExitError
	}

	zl, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "x402-pay: failed to build logger: %v\n", err)
		return pay.ExitError
	}
	defer zl.Sync() //nolint:errcheck

	signer, err := buildSigner(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "x402-pay: %v\n", err)
		return pay.ExitError
	}
	for pattern, addr := range signer.Addresses() {
		if strings.HasSuffix(pattern, ":*") {
			zl.Info("payer configured", map[string]any{"networks": pattern, "address": addr})
		}
	}

	opts := []pay.Option{
		pay.WithLogger(zl),
		pay.WithNegotiator(x402http.NewClient(
			x402http.WithTransport(x402http.NewNetTransport(cfg.HTTPTimeout)),
			x402http.WithLogger(zl),
		)),
		pay.WithScanURL(cfg.SafetyScanURL),
		pay.WithMaxAmount(cfg.MaxAmount()),
	}

	var registry *prometheus.Registry
	if cfg.EnableMetrics {
		registry = prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheusRecorder(registry)
		if err != nil {
			fmt.Fprintf(stderr, "x402-pay: failed to register metrics: %v\n", err)
			return pay.ExitError
		}
		opts = append(opts, pay.WithMetrics(recorder))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := pay.NewClient(signer, opts...)
	outcome, err := client.Pay(ctx, pay.Request{
		TargetURL:   *url,
		RequestBody: *body,
		Context:     *prompt,
		SafetyCheck: *safetyCheck,
	})
	result := pay.MapResult(outcome, err)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printResult(stdout, result)
	}

	if registry != nil {
		dumpMetrics(stderr, registry)
	}
	return result.ExitCode
}

func buildSigner(cfg *config.Config) (*x402.X402Client, error) {
	var evmSigner x402evm.ClientEvmSigner
	if cfg.Keys.EVMPrivateKey != "" {
		s, err := evmsigners.NewClientSignerFromPrivateKey(cfg.Keys.EVMPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("EVM_PRIVATE_KEY: %w", err)
		}
		evmSigner = s
	}

	var svmSigner x402svm.ClientSvmSigner
	if cfg.Keys.SVMPrivateKey != "" {
		s, err := svmsigners.NewClientSignerFromPrivateKey(cfg.Keys.SVMPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("SVM_PRIVATE_KEY: %w", err)
		}
		svmSigner = s
	}

	return pay.NewSigner(evmSigner, svmSigner,
		svmclient.WithBlockhashSource(x402svm.NewRPCBlockhashSource(cfg.SolanaRPCURL)))
}

func printResult(w io.Writer, r pay.Result) {
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	switch r.Status {
	case pay.StatusBlocked:
		fmt.Fprintf(w, "blocked: %s (risk score %d)\n", r.Reason, r.RiskScore)
		for _, f := range r.Findings {
			fmt.Fprintf(w, "  [%s] %s %s\n", f.Severity, f.ID, f.Description)
		}
	case pay.StatusSuccess:
		if r.Paid {
			unit := r.Unit
			if unit == "" {
				unit = x402.DefaultAssetUnit.Symbol
			}
			fmt.Fprintf(w, "paid %s %s to %s on %s\n", r.Cost, unit, r.Recipient, r.Network)
			if r.Transaction != "" {
				fmt.Fprintf(w, "transaction: %s\n", r.Transaction)
			}
		} else {
			fmt.Fprintln(w, "no payment required")
		}
		fmt.Fprintln(w, r.Body)
	default:
		fmt.Fprintf(w, "error: %s\n", r.Error)
		if r.Snippet != "" {
			fmt.Fprintf(w, "response: %s\n", r.Snippet)
		}
	}
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		_, _ = expfmt.MetricFamilyToText(w, mf)
	}
}
