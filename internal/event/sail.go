package event

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenMint is a leveraged-token mint: CollateralIn (raw 18-decimal units)
// entered the minter contract, TokenOut sail tokens were issued to User.
type TokenMint struct {
	Minter       string
	User         string
	CollateralIn decimal.Decimal
	TokenOut     decimal.Decimal
	Order        OrderKey
	Timestamp    int64
}

func (e *TokenMint) EventKind() Kind { return KindTokenMint }

func (e *TokenMint) IdempotencyKey() string {
	return fmt.Sprintf("mint:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *TokenMint) OrderKey() OrderKey { return e.Order }
func (e *TokenMint) BlockTime() int64   { return e.Timestamp }
func (e *TokenMint) Partition() string  { return e.Minter }

// TokenRedeem is a leveraged-token redemption: TokenBurned sail tokens were
// burned and CollateralOut collateral returned to User.
type TokenRedeem struct {
	Minter        string
	User          string
	TokenBurned   decimal.Decimal
	CollateralOut decimal.Decimal
	Order         OrderKey
	Timestamp     int64
}

func (e *TokenRedeem) EventKind() Kind { return KindTokenRedeem }

func (e *TokenRedeem) IdempotencyKey() string {
	return fmt.Sprintf("redeem:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *TokenRedeem) OrderKey() OrderKey { return e.Order }
func (e *TokenRedeem) BlockTime() int64   { return e.Timestamp }
func (e *TokenRedeem) Partition() string  { return e.Minter }
