package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// VerifyResult is the outcome of a payment verification against the
// provider. Amount is in major currency units.
type VerifyResult struct {
	Success       bool
	Amount        decimal.Decimal
	Currency      string
	ProviderTxnID string
}

// Destination identifies where a transfer lands: an operator payout
// account or a guest refund target, both opaque provider references.
type Destination struct {
	Kind       string // "payout" or "refund"
	AccountRef string
}

type TransferResult struct {
	Reference string
	Status    string
}

// Gateway is the capability contract the engine depends on. Provider
// identity is a per-booking configuration value; nothing above this
// interface branches on which provider is in play.
type Gateway interface {
	Name() string
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	Transfer(ctx context.Context, dest Destination, amount decimal.Decimal, currency, reference string) (*TransferResult, error)
}

// Registry holds the configured gateway adapters keyed by provider name.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for provider %q", name)
	}
	return g, nil
}
