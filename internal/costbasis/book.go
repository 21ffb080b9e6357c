// Package costbasis keeps FIFO acquisition lots per (token, user) and
// computes realized profit and loss when lots are consumed.
package costbasis

import (
	"github.com/shopspring/decimal"
)

// LotKind records how a lot was acquired.
type LotKind string

const (
	LotMint    LotKind = "mint"
	LotGenesis LotKind = "genesis"
)

// Lot is one acquisition. TokenAmount and CostUSD shrink as the lot is
// consumed; the Original fields never change after creation.
type Lot struct {
	Index           int
	Kind            LotKind
	TokenAmount     decimal.Decimal
	OriginalAmount  decimal.Decimal
	CostUSD         decimal.Decimal
	OriginalCostUSD decimal.Decimal
	PricePerToken   decimal.Decimal
	IsFullyRedeemed bool
	CreatedAt       int64
}

// Position aggregates one user's lots for one token. Balance and
// TotalCostBasisUSD are recomputed from the lots after every mutation
// rather than maintained incrementally.
type Position struct {
	Token string
	User  string
	Lots  []*Lot

	Balance             decimal.Decimal
	TotalCostBasisUSD   decimal.Decimal
	AverageCostPerToken decimal.Decimal

	RealizedPnLUSD    decimal.Decimal
	TotalTokensBought decimal.Decimal
	TotalTokensSold   decimal.Decimal
	TotalSpentUSD     decimal.Decimal
	TotalReceivedUSD  decimal.Decimal

	LastUpdated int64
}

// Clone deep-copies the position, lots included. Emitted outputs carry
// clones because redemptions mutate lots in place.
func (p *Position) Clone() *Position {
	c := *p
	c.Lots = make([]*Lot, len(p.Lots))
	for i, lot := range p.Lots {
		lc := *lot
		c.Lots[i] = &lc
	}
	return &c
}

type bookKey struct {
	token string
	user  string
}

// Book holds every tracked position. Single-writer, like the other
// ledgers.
type Book struct {
	positions map[bookKey]*Position
}

func NewBook() *Book {
	return &Book{positions: make(map[bookKey]*Position)}
}

// Get returns a position, or nil.
func (b *Book) Get(token, user string) *Position {
	return b.positions[bookKey{token, user}]
}

// Positions returns every position, for snapshots and queries.
func (b *Book) Positions() []*Position {
	out := make([]*Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out
}

// UserPositions returns all of one user's positions.
func (b *Book) UserPositions(user string) []*Position {
	var out []*Position
	for key, p := range b.positions {
		if key.user == user {
			out = append(out, p)
		}
	}
	return out
}

func (b *Book) getOrCreate(token, user string) *Position {
	key := bookKey{token, user}
	p, ok := b.positions[key]
	if !ok {
		p = &Position{Token: token, User: user}
		b.positions[key] = p
	}
	return p
}

// Credit appends a new lot. tokens and costUSD are whole-token units and
// USD respectively; a non-positive token amount is ignored.
func (b *Book) Credit(token, user string, tokens, costUSD decimal.Decimal, kind LotKind, now int64) *Lot {
	if !tokens.IsPositive() {
		return nil
	}
	p := b.getOrCreate(token, user)

	lot := &Lot{
		Index:           len(p.Lots),
		Kind:            kind,
		TokenAmount:     tokens,
		OriginalAmount:  tokens,
		CostUSD:         costUSD,
		OriginalCostUSD: costUSD,
		PricePerToken:   costUSD.Div(tokens),
		CreatedAt:       now,
	}
	p.Lots = append(p.Lots, lot)

	p.TotalTokensBought = p.TotalTokensBought.Add(tokens)
	p.TotalSpentUSD = p.TotalSpentUSD.Add(costUSD)
	p.LastUpdated = now
	b.refold(p)
	return lot
}

// RedeemResult reports what a redemption consumed. TokensConsumed can be
// less than requested when the position's lots run out; the shortfall is
// clamped rather than driving the book negative.
type RedeemResult struct {
	Position       *Position
	TokensConsumed decimal.Decimal
	CostConsumed   decimal.Decimal
	RealizedPnL    decimal.Decimal
	Clamped        bool
}

// Redeem consumes tokens from the oldest lots first and realizes P&L
// against proceedsUSD. A lot is either fully retired or partially consumed
// with its remaining cost scaled by the exact fraction removed.
func (b *Book) Redeem(token, user string, tokens, proceedsUSD decimal.Decimal, now int64) RedeemResult {
	p := b.getOrCreate(token, user)
	res := RedeemResult{Position: p}
	if !tokens.IsPositive() {
		return res
	}

	remaining := tokens
	for _, lot := range p.Lots {
		if lot.IsFullyRedeemed {
			continue
		}
		if remaining.IsZero() {
			break
		}
		if lot.TokenAmount.LessThanOrEqual(remaining) {
			remaining = remaining.Sub(lot.TokenAmount)
			res.TokensConsumed = res.TokensConsumed.Add(lot.TokenAmount)
			res.CostConsumed = res.CostConsumed.Add(lot.CostUSD)
			lot.TokenAmount = decimal.Zero
			lot.CostUSD = decimal.Zero
			lot.IsFullyRedeemed = true
			continue
		}
		fraction := remaining.Div(lot.TokenAmount)
		cost := lot.CostUSD.Mul(fraction)
		lot.TokenAmount = lot.TokenAmount.Sub(remaining)
		lot.CostUSD = lot.CostUSD.Sub(cost)
		res.TokensConsumed = res.TokensConsumed.Add(remaining)
		res.CostConsumed = res.CostConsumed.Add(cost)
		remaining = decimal.Zero
	}
	res.Clamped = !remaining.IsZero()

	res.RealizedPnL = proceedsUSD.Sub(res.CostConsumed)
	p.RealizedPnLUSD = p.RealizedPnLUSD.Add(res.RealizedPnL)
	p.TotalTokensSold = p.TotalTokensSold.Add(res.TokensConsumed)
	p.TotalReceivedUSD = p.TotalReceivedUSD.Add(proceedsUSD)
	p.LastUpdated = now
	b.refold(p)
	return res
}

// refold recomputes the live aggregates from the non-redeemed lots. The
// fold is the source of truth; incremental updates are never trusted.
func (b *Book) refold(p *Position) {
	balance := decimal.Zero
	cost := decimal.Zero
	for _, lot := range p.Lots {
		if lot.IsFullyRedeemed {
			continue
		}
		balance = balance.Add(lot.TokenAmount)
		cost = cost.Add(lot.CostUSD)
	}
	p.Balance = balance
	p.TotalCostBasisUSD = cost
	if balance.IsPositive() {
		p.AverageCostPerToken = cost.Div(balance)
	} else {
		p.AverageCostPerToken = decimal.Zero
	}
}

// Restore reinstalls a snapshotted position.
func (b *Book) Restore(p *Position) {
	b.positions[bookKey{p.Token, p.User}] = p
}
