// Package config builds the process configuration from a .env file and the
// environment. Only cmd/x402-pay calls it; library packages take values.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the pay command
type Config struct {
	Keys KeyConfig

	SolanaRPCURL  string        `env:"SOLANA_RPC_URL" validate:"omitempty,url"`
	SafetyScanURL string        `env:"SAFETY_SCAN_URL" validate:"omitempty,http_url"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	LogLevel      string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// MaxPayment caps a single payment in the asset's smallest unit
	MaxPayment    string `env:"MAX_PAYMENT" validate:"omitempty,number"`
	EnableMetrics bool   `env:"ENABLE_METRICS"`
}

// KeyConfig holds the payer keys. At least one must be set.
type KeyConfig struct {
	EVMPrivateKey string `env:"EVM_PRIVATE_KEY" validate:"required_without=SVMPrivateKey"`
	SVMPrivateKey string `env:"SVM_PRIVATE_KEY" validate:"required_without=EVMPrivateKey"`
}

// MaxAmount returns MaxPayment as an integer, or nil when no cap is set
func (c *Config) MaxAmount() *big.Int {
	if c.MaxPayment == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(c.MaxPayment, 10)
	if !ok {
		return nil
	}
	return n
}

// Load reads the given dotenv files (".env" when none are named, missing
// files ignored), then the environment, applies defaults and validates.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.Keys.EVMPrivateKey = ldr.getString("EVM_PRIVATE_KEY", "")
	cfg.Keys.SVMPrivateKey = ldr.getString("SVM_PRIVATE_KEY", "")
	cfg.SolanaRPCURL = ldr.getString("SOLANA_RPC_URL", "")
	cfg.SafetyScanURL = ldr.getString("SAFETY_SCAN_URL", "")
	cfg.HTTPTimeout = ldr.getDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.LogLevel = strings.ToLower(ldr.getString("LOG_LEVEL", "info"))
	cfg.MaxPayment = ldr.getString("MAX_PAYMENT", "")
	cfg.EnableMetrics = ldr.getBool("ENABLE_METRICS", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func validateStruct(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required_without":
			msgs = append(msgs, "EVM_PRIVATE_KEY or SVM_PRIVATE_KEY is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		case "number":
			msgs = append(msgs, fmt.Sprintf("%s must be a non-negative integer", fe.Field()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be positive", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(dedupe(msgs), "; "))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		if val = strings.TrimSpace(val); val != "" {
			return val
		}
	}
	return def
}

func (l *envLoader) getDuration(key string, def time.Duration) time.Duration {
	raw := l.getString(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("%s must be a duration such as 30s", key))
		return def
	}
	return d
}

func (l *envLoader) getBool(key string, def bool) bool {
	raw := l.getString(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return b
}
