package pay

import (
	"errors"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	x402evm "github.com/Orac-G/x402-pay-with-safety/mechanisms/evm"
	evmclient "github.com/Orac-G/x402-pay-with-safety/mechanisms/evm/exact/client"
	x402svm "github.com/Orac-G/x402-pay-with-safety/mechanisms/svm"
	svmclient "github.com/Orac-G/x402-pay-with-safety/mechanisms/svm/exact/client"
)

// ErrNoKeys is returned when neither an EVM nor a Solana signer is given
var ErrNoKeys = errors.New("at least one of an EVM or Solana signer is required")

// NewSigner registers the exact scheme for every network family that has a
// signer: CAIP-2 wildcards plus the v1 network names.
func NewSigner(evmSigner x402evm.ClientEvmSigner, svmSigner x402svm.ClientSvmSigner, svmOpts ...svmclient.Option) (*x402.X402Client, error) {
	if evmSigner == nil && svmSigner == nil {
		return nil, ErrNoKeys
	}

	client := x402.NewX402Client()

	if evmSigner != nil {
		scheme := evmclient.NewExactEvmScheme(evmSigner)
		client.Register(x402evm.NetworkWildcard, scheme)
		for name := range x402evm.LegacyNetworks {
			client.Register(name, scheme)
		}
	}

	if svmSigner != nil {
		scheme := svmclient.NewExactSvmScheme(svmSigner, svmOpts...)
		client.Register(x402svm.NetworkWildcard, scheme)
		for name := range x402svm.LegacyNetworks {
			client.Register(name, scheme)
		}
	}

	return client, nil
}
