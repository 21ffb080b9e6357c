// Package query serves read-only views over the persisted state tables.
// Reads go to Postgres, not the live engine, so they never contend with
// the single-writer loop.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SourceMarks is one (source kind, source, user) accrual row.
type SourceMarks struct {
	SourceKind       string          `json:"source_kind"`
	Source           string          `json:"source"`
	BalanceRaw       decimal.Decimal `json:"balance_raw"`
	BalanceUSD       decimal.Decimal `json:"balance_usd"`
	AccruedMarks     decimal.Decimal `json:"accrued_marks"`
	TotalMarksEarned decimal.Decimal `json:"total_marks_earned"`
	MarksPerDay      decimal.Decimal `json:"marks_per_day"`
	FirstSeenAt      int64           `json:"first_seen_at"`
	LastUpdated      int64           `json:"last_updated"`
}

// UserMarks is the user rollup plus the per-source breakdown.
type UserMarks struct {
	User             string          `json:"user"`
	AccruedMarks     decimal.Decimal `json:"accrued_marks"`
	TotalMarksEarned decimal.Decimal `json:"total_marks_earned"`
	MarksPerDay      decimal.Decimal `json:"marks_per_day"`
	Sources          []SourceMarks   `json:"sources"`
}

// CampaignPosition is a user's genesis campaign view.
type CampaignPosition struct {
	Campaign                 string          `json:"campaign"`
	User                     string          `json:"user"`
	TotalDeposited           decimal.Decimal `json:"total_deposited"`
	TotalDepositedUSD        decimal.Decimal `json:"total_deposited_usd"`
	CurrentDeposit           decimal.Decimal `json:"current_deposit"`
	CurrentDepositUSD        decimal.Decimal `json:"current_deposit_usd"`
	CurrentMarks             decimal.Decimal `json:"current_marks"`
	TotalMarksEarned         decimal.Decimal `json:"total_marks_earned"`
	TotalMarksForfeited      decimal.Decimal `json:"total_marks_forfeited"`
	BonusMarks               decimal.Decimal `json:"bonus_marks"`
	EarlyBonusMarks          decimal.Decimal `json:"early_bonus_marks"`
	QualifiesForEarlyBonus   bool            `json:"qualifies_for_early_bonus"`
	EarlyBonusEligibleUSD    decimal.Decimal `json:"early_bonus_eligible_usd"`
	GenesisStartDate         int64           `json:"genesis_start_date"`
	GenesisEndDate           int64           `json:"genesis_end_date"`
	GenesisEnded             bool            `json:"genesis_ended"`
}

// BonusStatus is the campaign-wide early-bird race view.
type BonusStatus struct {
	Campaign           string          `json:"campaign"`
	CumulativeDeposits decimal.Decimal `json:"cumulative_deposits"`
	ThresholdAmount    decimal.Decimal `json:"threshold_amount"`
	ThresholdReached   bool            `json:"threshold_reached"`
	ThresholdReachedAt int64           `json:"threshold_reached_at"`
}

// SailPosition is a user's leveraged-token cost-basis view.
type SailPosition struct {
	Token               string          `json:"token"`
	User                string          `json:"user"`
	Balance             decimal.Decimal `json:"balance"`
	TotalCostBasisUSD   decimal.Decimal `json:"total_cost_basis_usd"`
	AverageCostPerToken decimal.Decimal `json:"average_cost_per_token"`
	RealizedPnLUSD      decimal.Decimal `json:"realized_pnl_usd"`
	TotalTokensBought   decimal.Decimal `json:"total_tokens_bought"`
	TotalTokensSold     decimal.Decimal `json:"total_tokens_sold"`
	TotalSpentUSD       decimal.Decimal `json:"total_spent_usd"`
	TotalReceivedUSD    decimal.Decimal `json:"total_received_usd"`
}

// Lot is one FIFO acquisition row.
type Lot struct {
	LotIndex        int             `json:"lot_index"`
	LotKind         string          `json:"lot_kind"`
	TokenAmount     decimal.Decimal `json:"token_amount"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	CostUSD         decimal.Decimal `json:"cost_usd"`
	OriginalCostUSD decimal.Decimal `json:"original_cost_usd"`
	PricePerToken   decimal.Decimal `json:"price_per_token"`
	IsFullyRedeemed bool            `json:"is_fully_redeemed"`
	CreatedAt       int64           `json:"created_at"`
}

// BoostWindow is the public window view.
type BoostWindow struct {
	SourceKind string          `json:"source_kind"`
	Source     string          `json:"source"`
	StartTime  int64           `json:"start_time"`
	EndTime    int64           `json:"end_time"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// ErrNotFound means the requested entity has never been seen.
var ErrNotFound = errors.New("query: not found")

// Service executes the read queries.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// UserMarks returns a user's total marks summed across every source,
// with the per-source breakdown.
func (s *Service) UserMarks(ctx context.Context, user string) (*UserMarks, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_kind, source, balance_raw, balance_usd,
		       accrued_marks, total_marks_earned, marks_per_day,
		       first_seen_at, last_updated
		FROM marks_balances
		WHERE "user" = $1
		ORDER BY source_kind, source`, user)
	if err != nil {
		return nil, fmt.Errorf("query user marks: %w", err)
	}
	defer rows.Close()

	out := &UserMarks{User: user}
	for rows.Next() {
		var m SourceMarks
		if err := rows.Scan(&m.SourceKind, &m.Source, &m.BalanceRaw, &m.BalanceUSD,
			&m.AccruedMarks, &m.TotalMarksEarned, &m.MarksPerDay,
			&m.FirstSeenAt, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan user marks: %w", err)
		}
		out.Sources = append(out.Sources, m)
		out.AccruedMarks = out.AccruedMarks.Add(m.AccruedMarks)
		out.TotalMarksEarned = out.TotalMarksEarned.Add(m.TotalMarksEarned)
		out.MarksPerDay = out.MarksPerDay.Add(m.MarksPerDay)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out.Sources) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// UserCampaigns returns a user's genesis positions.
func (s *Service) UserCampaigns(ctx context.Context, user string) ([]CampaignPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign, "user", total_deposited, total_deposited_usd,
		       current_deposit, current_deposit_usd,
		       current_marks, total_marks_earned, total_marks_forfeited,
		       bonus_marks, early_bonus_marks,
		       qualifies_for_early_bonus, early_bonus_eligible_usd,
		       genesis_start_date, genesis_end_date, genesis_ended
		FROM genesis_positions
		WHERE "user" = $1
		ORDER BY campaign`, user)
	if err != nil {
		return nil, fmt.Errorf("query user campaigns: %w", err)
	}
	defer rows.Close()

	var out []CampaignPosition
	for rows.Next() {
		var p CampaignPosition
		if err := rows.Scan(&p.Campaign, &p.User, &p.TotalDeposited, &p.TotalDepositedUSD,
			&p.CurrentDeposit, &p.CurrentDepositUSD,
			&p.CurrentMarks, &p.TotalMarksEarned, &p.TotalMarksForfeited,
			&p.BonusMarks, &p.EarlyBonusMarks,
			&p.QualifiesForEarlyBonus, &p.EarlyBonusEligibleUSD,
			&p.GenesisStartDate, &p.GenesisEndDate, &p.GenesisEnded); err != nil {
			return nil, fmt.Errorf("scan campaign position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CampaignStatus returns the early-bird race state for a campaign.
func (s *Service) CampaignStatus(ctx context.Context, campaign string) (*BonusStatus, error) {
	var st BonusStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT campaign, cumulative_deposits, threshold_amount,
		       threshold_reached, threshold_reached_at
		FROM genesis_bonus_status
		WHERE campaign = $1`, campaign).
		Scan(&st.Campaign, &st.CumulativeDeposits, &st.ThresholdAmount,
			&st.ThresholdReached, &st.ThresholdReachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query campaign status: %w", err)
	}
	return &st, nil
}

// UserSailPositions returns a user's cost-basis positions.
func (s *Service) UserSailPositions(ctx context.Context, user string) ([]SailPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, "user", balance, total_cost_basis_usd, average_cost_per_token,
		       realized_pnl_usd, total_tokens_bought, total_tokens_sold,
		       total_spent_usd, total_received_usd
		FROM sail_positions
		WHERE "user" = $1
		ORDER BY token`, user)
	if err != nil {
		return nil, fmt.Errorf("query sail positions: %w", err)
	}
	defer rows.Close()

	var out []SailPosition
	for rows.Next() {
		var p SailPosition
		if err := rows.Scan(&p.Token, &p.User, &p.Balance, &p.TotalCostBasisUSD,
			&p.AverageCostPerToken, &p.RealizedPnLUSD,
			&p.TotalTokensBought, &p.TotalTokensSold,
			&p.TotalSpentUSD, &p.TotalReceivedUSD); err != nil {
			return nil, fmt.Errorf("scan sail position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PositionLots returns the FIFO lots of one position, oldest first.
func (s *Service) PositionLots(ctx context.Context, token, user string) ([]Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lot_index, lot_kind, token_amount, original_amount,
		       cost_usd, original_cost_usd, price_per_token,
		       is_fully_redeemed, created_at
		FROM sail_lots
		WHERE token = $1 AND "user" = $2
		ORDER BY lot_index ASC`, token, user)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.LotIndex, &l.LotKind, &l.TokenAmount, &l.OriginalAmount,
			&l.CostUSD, &l.OriginalCostUSD, &l.PricePerToken,
			&l.IsFullyRedeemed, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Windows returns every boost window.
func (s *Service) Windows(ctx context.Context) ([]BoostWindow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_kind, source, start_time, end_time, multiplier
		FROM boost_windows
		ORDER BY source_kind, source`)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var out []BoostWindow
	for rows.Next() {
		var w BoostWindow
		if err := rows.Scan(&w.SourceKind, &w.Source, &w.StartTime, &w.EndTime, &w.Multiplier); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
