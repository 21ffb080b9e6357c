// Package genesis tracks deposit campaigns: running deposit totals, the
// early-bird threshold race, proportional marks forfeiture on withdrawal,
// and end-of-campaign bonus awards.
package genesis

import (
	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/marks"
)

// Position is one user's stake in one campaign. Cumulative fields never
// decrease; Current fields shrink on withdrawal.
type Position struct {
	Campaign string
	User     string

	TotalDeposited    decimal.Decimal
	TotalDepositedUSD decimal.Decimal
	CurrentDeposit    decimal.Decimal
	CurrentDepositUSD decimal.Decimal

	CurrentMarks        decimal.Decimal
	TotalMarksEarned    decimal.Decimal
	TotalMarksForfeited decimal.Decimal
	BonusMarks          decimal.Decimal
	EarlyBonusMarks     decimal.Decimal

	QualifiesForEarlyBonus       bool
	EarlyBonusEligibleDepositUSD decimal.Decimal

	GenesisStartDate int64
	GenesisEndDate   int64
	GenesisEnded     bool
	LastUpdated      int64
}

// MarksPerDay is the position's current accrual rate. Ended campaigns are
// pinned to zero.
func (p *Position) MarksPerDay(ratePerDay decimal.Decimal) decimal.Decimal {
	if p.GenesisEnded {
		return decimal.Zero
	}
	return p.CurrentDepositUSD.Mul(ratePerDay)
}

// BonusStatus is the campaign-wide early-bird race state. Deposits are
// counted in raw token units, not USD, so qualification is unaffected by
// price movement during the campaign.
type BonusStatus struct {
	Campaign           string
	CumulativeDeposits decimal.Decimal
	ThresholdAmount    decimal.Decimal
	ThresholdReached   bool
	ThresholdReachedAt int64
}

// Clone returns a value copy of the position for emitted outputs.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// Clone returns a value copy of the race state for emitted outputs.
func (s *BonusStatus) Clone() *BonusStatus {
	c := *s
	return &c
}

type posKey struct {
	campaign string
	user     string
}

// Ledger holds every campaign position and per-campaign bonus status.
// Mutations come only from the single-writer event loop.
type Ledger struct {
	positions  map[posKey]*Position
	byCampaign map[string]map[string]*Position
	status     map[string]*BonusStatus
}

func NewLedger() *Ledger {
	return &Ledger{
		positions:  make(map[posKey]*Position),
		byCampaign: make(map[string]map[string]*Position),
		status:     make(map[string]*BonusStatus),
	}
}

// Get returns a user's position, or nil.
func (l *Ledger) Get(campaign, user string) *Position {
	return l.positions[posKey{campaign, user}]
}

// Status returns the campaign's bonus race state, or nil if no deposit has
// been seen yet.
func (l *Ledger) Status(campaign string) *BonusStatus {
	return l.status[campaign]
}

// CampaignPositions returns all positions for one campaign.
func (l *Ledger) CampaignPositions(campaign string) []*Position {
	users := l.byCampaign[campaign]
	out := make([]*Position, 0, len(users))
	for _, p := range users {
		out = append(out, p)
	}
	return out
}

// UserPositions returns all of one user's campaign positions.
func (l *Ledger) UserPositions(user string) []*Position {
	var out []*Position
	for key, p := range l.positions {
		if key.user == user {
			out = append(out, p)
		}
	}
	return out
}

// Positions returns every position, for snapshots and the daily sweep.
func (l *Ledger) Positions() []*Position {
	out := make([]*Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// Statuses returns every campaign's bonus status.
func (l *Ledger) Statuses() []*BonusStatus {
	out := make([]*BonusStatus, 0, len(l.status))
	for _, s := range l.status {
		out = append(out, s)
	}
	return out
}

func (l *Ledger) getOrCreate(campaign, user string, now int64) *Position {
	key := posKey{campaign, user}
	p, ok := l.positions[key]
	if !ok {
		p = &Position{Campaign: campaign, User: user, GenesisStartDate: now}
		l.positions[key] = p
		users, ok := l.byCampaign[campaign]
		if !ok {
			users = make(map[string]*Position)
			l.byCampaign[campaign] = users
		}
		users[user] = p
	}
	return p
}

func (l *Ledger) statusOrCreate(campaign string, threshold decimal.Decimal) *BonusStatus {
	s, ok := l.status[campaign]
	if !ok {
		s = &BonusStatus{Campaign: campaign, ThresholdAmount: threshold}
		l.status[campaign] = s
	}
	return s
}

// settle folds accrual since LastUpdated into the position. Ended
// campaigns accrue nothing.
func (l *Ledger) settle(p *Position, now int64, ratePerDay decimal.Decimal) {
	if !p.GenesisEnded {
		earned := marks.Accrue(p.LastUpdated, now, p.CurrentDepositUSD, ratePerDay, nil)
		p.CurrentMarks = p.CurrentMarks.Add(earned)
		p.TotalMarksEarned = p.TotalMarksEarned.Add(earned)
	}
	p.LastUpdated = now
}

// Deposit applies a campaign deposit. amountRaw is the deposited amount in
// raw 18-decimal units and priceUSD the collateral's USD price at the
// event's block time. The qualifying portion of the deposit is the part
// that fits under the campaign's early-bird threshold, measured in token
// units across all depositors.
func (l *Ledger) Deposit(campaign, user string, now int64, amountRaw, priceUSD, ratePerDay, threshold decimal.Decimal) *Position {
	p := l.getOrCreate(campaign, user, now)
	l.settle(p, now, ratePerDay)

	units := amountRaw.Shift(-18)
	usd := units.Mul(priceUSD)

	// Tranches booked during a price outage carry a zero valuation. The
	// first deposit with a good price re-values those recorded units so
	// accrual stops running on a zero base.
	if priceUSD.IsPositive() && p.CurrentDepositUSD.IsZero() && p.CurrentDeposit.IsPositive() {
		revalued := p.CurrentDeposit.Mul(priceUSD)
		p.CurrentDepositUSD = revalued
		p.TotalDepositedUSD = p.TotalDepositedUSD.Add(revalued)
	}

	p.TotalDeposited = p.TotalDeposited.Add(units)
	p.TotalDepositedUSD = p.TotalDepositedUSD.Add(usd)
	p.CurrentDeposit = p.CurrentDeposit.Add(units)
	p.CurrentDepositUSD = p.CurrentDepositUSD.Add(usd)

	if !p.GenesisEnded && threshold.IsPositive() {
		s := l.statusOrCreate(campaign, threshold)
		before := s.CumulativeDeposits
		s.CumulativeDeposits = s.CumulativeDeposits.Add(units)

		if !s.ThresholdReached {
			qualifying := units
			if room := s.ThresholdAmount.Sub(before); room.LessThan(units) {
				qualifying = room
			}
			if qualifying.IsPositive() {
				p.QualifiesForEarlyBonus = true
				p.EarlyBonusEligibleDepositUSD = p.EarlyBonusEligibleDepositUSD.Add(qualifying.Mul(priceUSD))
			}
			if s.CumulativeDeposits.GreaterThanOrEqual(s.ThresholdAmount) {
				s.ThresholdReached = true
				s.ThresholdReachedAt = now
			}
		}
	}
	return p
}

// WithdrawResult reports what a withdrawal did to the position, including
// whether the requested amount had to be clamped to the recorded deposit.
type WithdrawResult struct {
	Position  *Position
	Forfeited decimal.Decimal
	Clamped   bool
}

// Withdraw applies a pre-end withdrawal. Marks are forfeited in proportion
// to the share of the deposit removed, and the early-bonus-eligible stake
// shrinks by the same share.
func (l *Ledger) Withdraw(campaign, user string, now int64, amountRaw, ratePerDay decimal.Decimal) WithdrawResult {
	p := l.getOrCreate(campaign, user, now)
	l.settle(p, now, ratePerDay)

	units := amountRaw.Shift(-18)
	res := WithdrawResult{Position: p}
	if p.CurrentDeposit.IsZero() || !units.IsPositive() {
		res.Clamped = units.IsPositive()
		return res
	}
	if units.GreaterThan(p.CurrentDeposit) {
		units = p.CurrentDeposit
		res.Clamped = true
	}

	pct := units.Div(p.CurrentDeposit)

	forfeit := p.CurrentMarks.Mul(pct)
	if forfeit.GreaterThan(p.CurrentMarks) {
		forfeit = p.CurrentMarks
	}
	p.CurrentMarks = p.CurrentMarks.Sub(forfeit)
	p.TotalMarksForfeited = p.TotalMarksForfeited.Add(forfeit)
	res.Forfeited = forfeit

	remain := decimal.NewFromInt(1).Sub(pct)
	p.CurrentDeposit = p.CurrentDeposit.Sub(units)
	p.CurrentDepositUSD = p.CurrentDepositUSD.Mul(remain)
	p.EarlyBonusEligibleDepositUSD = p.EarlyBonusEligibleDepositUSD.Mul(remain)
	if p.CurrentDeposit.IsZero() {
		p.CurrentDepositUSD = decimal.Zero
	}
	if p.EarlyBonusEligibleDepositUSD.IsZero() {
		p.QualifiesForEarlyBonus = false
	}
	return res
}

// End settles every depositor of a campaign through the end timestamp,
// pins further accrual to zero, and awards completion and early-bird
// bonuses. Positions already ended are left untouched, so replaying the
// end event is harmless.
func (l *Ledger) End(campaign string, now int64, ratePerDay, bonusRate, earlyBonusRate decimal.Decimal) []*Position {
	var settled []*Position
	for _, p := range l.byCampaign[campaign] {
		if p.GenesisEnded {
			continue
		}
		l.settle(p, now, ratePerDay)
		p.GenesisEnded = true
		p.GenesisEndDate = now

		p.BonusMarks = p.CurrentDepositUSD.Mul(bonusRate)
		if p.QualifiesForEarlyBonus {
			p.EarlyBonusMarks = p.EarlyBonusEligibleDepositUSD.Mul(earlyBonusRate)
		}
		award := p.BonusMarks.Add(p.EarlyBonusMarks)
		p.CurrentMarks = p.CurrentMarks.Add(award)
		p.TotalMarksEarned = p.TotalMarksEarned.Add(award)
		settled = append(settled, p)
	}
	return settled
}

// Sweep settles accrual for every live position of every campaign, used by
// the daily revaluation tick.
func (l *Ledger) Sweep(now int64, rateFor func(campaign string) decimal.Decimal) []*Position {
	var touched []*Position
	for _, p := range l.positions {
		if p.GenesisEnded {
			continue
		}
		l.settle(p, now, rateFor(p.Campaign))
		touched = append(touched, p)
	}
	return touched
}

// Restore reinstalls snapshot state.
func (l *Ledger) Restore(p *Position) {
	key := posKey{p.Campaign, p.User}
	l.positions[key] = p
	users, ok := l.byCampaign[p.Campaign]
	if !ok {
		users = make(map[string]*Position)
		l.byCampaign[p.Campaign] = users
	}
	users[p.User] = p
}

// RestoreStatus reinstalls a snapshotted bonus status.
func (l *Ledger) RestoreStatus(s *BonusStatus) {
	l.status[s.Campaign] = s
}
