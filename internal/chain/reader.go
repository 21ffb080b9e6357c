// Package chain declares the read-only on-chain lookups the core needs.
// Balances are re-read from the chain rather than tracked as event deltas,
// which keeps replay after a reorg idempotent.
package chain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoBalance is returned when a contract has no record for the user.
// Callers treat it as a zero balance.
var ErrNoBalance = errors.New("chain: no balance record")

// BalanceReader reads authoritative balances at a block height. Amounts are
// raw 18-decimal base units.
type BalanceReader interface {
	// TokenBalance reads an ERC-20 balanceOf.
	TokenBalance(ctx context.Context, token, user string, block uint64) (decimal.Decimal, error)

	// PoolBalance reads a user's stability pool deposit.
	PoolBalance(ctx context.Context, pool, user string, block uint64) (decimal.Decimal, error)
}

// StaticReader serves balances from fixed tables keyed by
// "contract:user". Missing entries read as zero. It backs tests and
// deterministic replay fixtures.
type StaticReader struct {
	Tokens map[string]decimal.Decimal
	Pools  map[string]decimal.Decimal
}

func (r *StaticReader) TokenBalance(_ context.Context, token, user string, _ uint64) (decimal.Decimal, error) {
	return r.Tokens[token+":"+user], nil
}

func (r *StaticReader) PoolBalance(_ context.Context, pool, user string, _ uint64) (decimal.Decimal, error) {
	return r.Pools[pool+":"+user], nil
}
