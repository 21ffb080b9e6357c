// Package oracle normalizes heterogeneous on-chain price feeds into USD
// prices for the accrual core.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/market"
)

// ErrUnavailable is returned by a Source when a feed cannot be read at the
// requested block time. The normalizer converts it into the zero-price
// sentinel rather than failing event processing.
var ErrUnavailable = errors.New("oracle: price unavailable")

// Reading is a raw feed observation. Exactly one shape is populated,
// selected by Kind.
type Reading struct {
	Kind market.OracleKind

	// Scalar feeds.
	Price decimal.Decimal

	// Wrapped-tuple feeds.
	MinUnderlying decimal.Decimal
	MaxUnderlying decimal.Decimal
	MinRate       decimal.Decimal
	MaxRate       decimal.Decimal
}

// Source reads raw oracle values. Implementations wrap an RPC client or, in
// tests, a fixture table.
type Source interface {
	// Read returns the feed state for a market's oracle as of the given
	// unix-seconds block time.
	Read(ctx context.Context, oracleAddr string, at int64) (Reading, error)
}

// Normalizer converts raw readings into USD prices using each market's
// decode rule and peg.
type Normalizer struct {
	src Source
	reg *market.Registry
}

func NewNormalizer(src Source, reg *market.Registry) *Normalizer {
	return &Normalizer{src: src, reg: reg}
}

var oneUSD = decimal.NewFromInt(1)

// PriceUSD returns the USD price of one whole token for the market at the
// given block time. A feed read failure, on the market's own oracle or on
// its peg feed, yields decimal.Zero and a nil error: the caller treats
// zero as "no fresh price" and keeps the prior valuation. Decode errors on
// a successful read are returned as errors.
func (n *Normalizer) PriceUSD(ctx context.Context, m *market.Market, at int64) (decimal.Decimal, error) {
	r, err := n.src.Read(ctx, m.OracleAddress, at)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("oracle read %s: %w", m.OracleAddress, err)
	}
	peg, err := n.pegUSD(ctx, m.Peg, at)
	if err != nil {
		return decimal.Zero, err
	}
	if peg.IsZero() {
		return decimal.Zero, nil
	}
	return Normalize(m, r, peg)
}

// pegUSD resolves the USD price of a market's peg asset at a block time.
// USD pegs are identically 1; other pegs read their configured scalar feed
// through the same source as market oracles. An unreadable or non-positive
// peg answer returns zero so the caller degrades to the sentinel.
func (n *Normalizer) pegUSD(ctx context.Context, peg string, at int64) (decimal.Decimal, error) {
	if peg == "" || peg == "usd" {
		return oneUSD, nil
	}
	addr, ok := n.reg.PegFeed(peg)
	if !ok {
		return decimal.Zero, fmt.Errorf("oracle: no feed configured for peg %q", peg)
	}
	r, err := n.src.Read(ctx, addr, at)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("oracle: peg feed %s: %w", addr, err)
	}
	if r.Kind != market.OracleScalar {
		return decimal.Zero, fmt.Errorf("oracle: peg feed %s: unexpected reading kind %q", addr, r.Kind)
	}
	if !r.Price.IsPositive() {
		return decimal.Zero, nil
	}
	return r.Price, nil
}

// Normalize applies a market's decode rule to a raw reading and converts
// the pegged value to USD at the given peg price.
func Normalize(m *market.Market, r Reading, pegUSD decimal.Decimal) (decimal.Decimal, error) {
	var pegged decimal.Decimal
	switch r.Kind {
	case market.OracleScalar:
		pegged = r.Price
	case market.OracleWrappedTuple:
		pegged = r.MaxUnderlying.Mul(r.MaxRate)
	default:
		return decimal.Zero, fmt.Errorf("oracle: market %s: unknown reading kind %q", m.ID, r.Kind)
	}
	if pegged.IsNegative() {
		return decimal.Zero, fmt.Errorf("oracle: market %s: negative price %s", m.ID, pegged)
	}
	return pegged.Mul(pegUSD), nil
}

// StaticSource serves readings from a fixed table keyed by oracle address.
// It backs tests and replay runs against captured feed data.
type StaticSource struct {
	Readings map[string]Reading
}

func (s *StaticSource) Read(_ context.Context, oracleAddr string, _ int64) (Reading, error) {
	r, ok := s.Readings[oracleAddr]
	if !ok {
		return Reading{}, ErrUnavailable
	}
	return r, nil
}
