package x402

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Orac-G/x402-pay-with-safety/types"
)

// PaymentSigner turns a 402 requirement set into a signed payload and
// renders that payload as request headers. The negotiator depends on this
// interface only.
type PaymentSigner interface {
	Sign(ctx context.Context, required *types.PaymentRequired) (*types.PaymentPayload, error)
	EncodeHeader(payload *types.PaymentPayload) (map[string]string, error)
}

// SchemeNetworkClient is one chain-specific way to pay, such as EIP-3009 on
// EVM networks or an SPL transfer on Solana.
type SchemeNetworkClient interface {
	Scheme() string
	Address() string
	CreatePaymentPayload(ctx context.Context, requirements types.PaymentRequirements) (map[string]interface{}, error)
}

// PaymentCreationContext describes the payment about to be created
type PaymentCreationContext struct {
	Ctx                  context.Context
	Version              int
	PaymentRequired      *types.PaymentRequired
	SelectedRequirements types.PaymentRequirements
}

// BeforePaymentCreationHookResult aborts payment creation when Abort is set
type BeforePaymentCreationHookResult struct {
	Abort  bool
	Reason string
}

// PaymentCreatedContext is passed to after-creation hooks
type PaymentCreatedContext struct {
	PaymentCreationContext
	Payload *types.PaymentPayload
}

// PaymentCreationFailureContext is passed to failure hooks
type PaymentCreationFailureContext struct {
	PaymentCreationContext
	Error error
}

// PaymentCreationFailureHookResult lets a failure hook supply a payload
type PaymentCreationFailureHookResult struct {
	Recovered bool
	Payload   *types.PaymentPayload
}

type (
	BeforePaymentCreationHook  func(PaymentCreationContext) (*BeforePaymentCreationHookResult, error)
	AfterPaymentCreationHook   func(PaymentCreatedContext) error
	PaymentCreationFailureHook func(PaymentCreationFailureContext) (*PaymentCreationFailureHookResult, error)
)

type registration struct {
	pattern string
	client  SchemeNetworkClient
}

// X402Client selects a registered scheme for a requirement set and creates
// the payload with it. Register and the hook setters are meant for setup;
// the client is read-only once payments start.
type X402Client struct {
	schemes []registration

	beforeHooks  []BeforePaymentCreationHook
	afterHooks   []AfterPaymentCreationHook
	failureHooks []PaymentCreationFailureHook
}

var _ PaymentSigner = (*X402Client)(nil)

// NewX402Client creates an empty client
func NewX402Client() *X402Client {
	return &X402Client{}
}

// Register adds a scheme for a network pattern: an exact network id
// ("eip155:8453", "base-sepolia") or a CAIP-2 namespace wildcard ("eip155:*").
func (c *X402Client) Register(pattern string, client SchemeNetworkClient) *X402Client {
	c.schemes = append(c.schemes, registration{pattern: pattern, client: client})
	return c
}

// OnBeforePaymentCreation registers a hook run after selection and before signing
func (c *X402Client) OnBeforePaymentCreation(hook BeforePaymentCreationHook) *X402Client {
	c.beforeHooks = append(c.beforeHooks, hook)
	return c
}

// OnAfterPaymentCreation registers a hook run after a payload was created.
// Hook errors do not fail the payment.
func (c *X402Client) OnAfterPaymentCreation(hook AfterPaymentCreationHook) *X402Client {
	c.afterHooks = append(c.afterHooks, hook)
	return c
}

// OnPaymentCreationFailure registers a hook run when signing fails
func (c *X402Client) OnPaymentCreationFailure(hook PaymentCreationFailureHook) *X402Client {
	c.failureHooks = append(c.failureHooks, hook)
	return c
}

// Clone returns a client with the same registrations and copies of the hook
// lists, so hooks added to the clone do not reach c.
func (c *X402Client) Clone() *X402Client {
	return &X402Client{
		schemes:      append([]registration(nil), c.schemes...),
		beforeHooks:  append([]BeforePaymentCreationHook(nil), c.beforeHooks...),
		afterHooks:   append([]AfterPaymentCreationHook(nil), c.afterHooks...),
		failureHooks: append([]PaymentCreationFailureHook(nil), c.failureHooks...),
	}
}

// DescribeAsset resolves the unit of req's asset through the scheme that
// would pay it. Schemes that cannot describe assets yield DefaultAssetUnit.
func (c *X402Client) DescribeAsset(req types.PaymentRequirements) (AssetUnit, error) {
	if d, ok := c.lookup(req).(AssetDescriber); ok {
		return d.DescribeAsset(req)
	}
	return DefaultAssetUnit, nil
}

// Addresses returns the payer address per registered pattern
func (c *X402Client) Addresses() map[string]string {
	out := make(map[string]string, len(c.schemes))
	for _, s := range c.schemes {
		out[s.pattern] = s.client.Address()
	}
	return out
}

// MatchesNetwork reports whether a registration pattern covers network
func MatchesNetwork(pattern, network string) bool {
	if pattern == network {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, ":") {
		return strings.HasPrefix(network, prefix) && len(network) > len(prefix)
	}
	return false
}

func (c *X402Client) lookup(req types.PaymentRequirements) SchemeNetworkClient {
	var wildcard SchemeNetworkClient
	for _, s := range c.schemes {
		if s.client.Scheme() != req.Scheme || !MatchesNetwork(s.pattern, req.Network) {
			continue
		}
		if s.pattern == req.Network {
			return s.client
		}
		if wildcard == nil {
			wildcard = s.client
		}
	}
	return wildcard
}

// SelectPaymentRequirements returns the first offered requirement, in server
// order, that a registered scheme can pay.
func (c *X402Client) SelectPaymentRequirements(accepts []types.PaymentRequirements) (types.PaymentRequirements, SchemeNetworkClient, error) {
	for _, req := range accepts {
		if client := c.lookup(req); client != nil {
			return req, client, nil
		}
	}

	offered := make([]string, 0, len(accepts))
	for _, req := range accepts {
		offered = append(offered, req.Scheme+"/"+req.Network)
	}
	return types.PaymentRequirements{}, nil, NewSigningError("no compatible payment method",
		fmt.Errorf("offered %s", strings.Join(offered, ", ")))
}

// Sign selects a requirement and creates a payload bound to it
func (c *X402Client) Sign(ctx context.Context, required *types.PaymentRequired) (*types.PaymentPayload, error) {
	if required == nil || len(required.Accepts) == 0 {
		return nil, NewSigningError("no payment options to sign", nil)
	}

	selected, scheme, err := c.SelectPaymentRequirements(required.Accepts)
	if err != nil {
		return nil, err
	}

	version := required.X402Version
	if version == 0 {
		version = ProtocolVersionV1
	}

	hookCtx := PaymentCreationContext{
		Ctx:                  ctx,
		Version:              version,
		PaymentRequired:      required,
		SelectedRequirements: selected,
	}

	for _, hook := range c.beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, NewSigningError("before payment creation hook failed", err)
		}
		if result != nil && result.Abort {
			return nil, NewSigningError("payment creation aborted: "+result.Reason, nil)
		}
	}

	inner, err := scheme.CreatePaymentPayload(ctx, selected)
	if err != nil {
		failCtx := PaymentCreationFailureContext{PaymentCreationContext: hookCtx, Error: err}
		for _, hook := range c.failureHooks {
			result, hookErr := hook(failCtx)
			if hookErr != nil || result == nil || !result.Recovered || result.Payload == nil {
				continue
			}
			if !boundTo(result.Payload, selected) {
				err = fmt.Errorf("recovered payload does not match selected requirement: %w", err)
				continue
			}
			return result.Payload, nil
		}
		return nil, NewSigningError(fmt.Sprintf("failed to create %s payment on %s", selected.Scheme, selected.Network), err)
	}

	payload := &types.PaymentPayload{
		X402Version: version,
		Scheme:      selected.Scheme,
		Network:     selected.Network,
		Accepted:    selected,
		Payload:     inner,
	}

	createdCtx := PaymentCreatedContext{PaymentCreationContext: hookCtx, Payload: payload}
	for _, hook := range c.afterHooks {
		_ = hook(createdCtx)
	}

	return payload, nil
}

// boundTo reports whether payload pays the selected requirement
func boundTo(payload *types.PaymentPayload, selected types.PaymentRequirements) bool {
	accepted := payload.Accepted
	return accepted.Scheme == selected.Scheme &&
		accepted.Network == selected.Network &&
		accepted.GetAmount() == selected.GetAmount() &&
		strings.EqualFold(accepted.PayTo, selected.PayTo)
}

// EncodeHeader renders the payload as base64 JSON under the header name of
// its protocol version.
func (c *X402Client) EncodeHeader(payload *types.PaymentPayload) (map[string]string, error) {
	if payload == nil {
		return nil, NewSigningError("nil payment payload", nil)
	}

	data, err := types.MarshalPaymentPayload(payload)
	if err != nil {
		return nil, NewSigningError("failed to encode payment payload", err)
	}

	name := HeaderPaymentSignature
	if payload.X402Version == ProtocolVersionV1 {
		name = HeaderXPayment
	}
	return map[string]string{name: base64.StdEncoding.EncodeToString(data)}, nil
}
