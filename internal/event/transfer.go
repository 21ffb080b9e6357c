package event

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenTransfer is an ERC-20 Transfer log for a tracked reward token.
// Amount is in raw 18-decimal base units. A zero From is a mint, a zero To
// is a burn; the zero side carries no balance record.
type TokenTransfer struct {
	Token     string
	From      string
	To        string
	Amount    decimal.Decimal
	Order     OrderKey
	Timestamp int64
}

func (e *TokenTransfer) EventKind() Kind { return KindTokenTransfer }

func (e *TokenTransfer) IdempotencyKey() string {
	return fmt.Sprintf("transfer:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *TokenTransfer) OrderKey() OrderKey { return e.Order }
func (e *TokenTransfer) BlockTime() int64   { return e.Timestamp }
func (e *TokenTransfer) Partition() string  { return e.Token }
