package event

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PoolDeposit signals that a user's stability pool deposit changed via a
// deposit transaction. The event intentionally carries no amount: the core
// re-reads the authoritative pool balance rather than applying deltas.
type PoolDeposit struct {
	Pool      string
	User      string
	Order     OrderKey
	Timestamp int64
}

func (e *PoolDeposit) EventKind() Kind { return KindPoolDeposit }

func (e *PoolDeposit) IdempotencyKey() string {
	return fmt.Sprintf("pool-deposit:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *PoolDeposit) OrderKey() OrderKey { return e.Order }
func (e *PoolDeposit) BlockTime() int64   { return e.Timestamp }
func (e *PoolDeposit) Partition() string  { return e.Pool }

// PoolWithdraw mirrors PoolDeposit for withdrawal transactions.
type PoolWithdraw struct {
	Pool      string
	User      string
	Order     OrderKey
	Timestamp int64
}

func (e *PoolWithdraw) EventKind() Kind { return KindPoolWithdraw }

func (e *PoolWithdraw) IdempotencyKey() string {
	return fmt.Sprintf("pool-withdraw:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *PoolWithdraw) OrderKey() OrderKey { return e.Order }
func (e *PoolWithdraw) BlockTime() int64   { return e.Timestamp }
func (e *PoolWithdraw) Partition() string  { return e.Pool }

// PoolDepositChange reports a rebased/liquidated pool balance. NewDeposit is
// the authoritative post-change balance in raw 18-decimal units; it is used
// directly when the pool cannot be re-read at the event's block.
type PoolDepositChange struct {
	Pool       string
	User       string
	NewDeposit decimal.Decimal
	Order      OrderKey
	Timestamp  int64
}

func (e *PoolDepositChange) EventKind() Kind { return KindPoolDepositChange }

func (e *PoolDepositChange) IdempotencyKey() string {
	return fmt.Sprintf("pool-change:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *PoolDepositChange) OrderKey() OrderKey { return e.Order }
func (e *PoolDepositChange) BlockTime() int64   { return e.Timestamp }
func (e *PoolDepositChange) Partition() string  { return e.Pool }
