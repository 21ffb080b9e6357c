// Package persistence writes the event log, state projections, and
// snapshots to Postgres, and serves the durable tier of idempotency
// lookups.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/baofinance/harbor-app-sub003/internal/core"
)

// Writer issues batched inserts and upserts. Event rows are append-only
// with ON CONFLICT DO NOTHING so replayed flushes are idempotent; state
// rows are keyed upserts that always carry the latest record.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WriteEvents appends envelopes to the event log.
func (w *Writer) WriteEvents(ctx context.Context, tx execer, outputs []core.Output) error {
	if len(outputs) == 0 {
		return nil
	}
	const cols = 6
	values := make([]string, 0, len(outputs))
	args := make([]interface{}, 0, len(outputs)*cols)
	for i, out := range outputs {
		env := out.Envelope
		base := i * cols
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args,
			env.Sequence, env.Kind.String(), env.IdempotencyKey,
			env.Order.BlockNumber, env.Timestamp, env.Payload,
		)
	}
	query := `INSERT INTO events
		(sequence, event_type, idempotency_key, block_number, block_time, payload)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (sequence) DO NOTHING`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteBalances upserts marks balance records.
func (w *Writer) WriteBalances(ctx context.Context, tx execer, outputs []core.Output) (int, error) {
	count := 0
	for _, out := range outputs {
		for _, rec := range out.Balances {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO marks_balances
					(source_kind, source, "user", balance_raw, balance_usd,
					 accrued_marks, total_marks_earned, marks_per_day,
					 first_seen_at, last_updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (source_kind, source, "user") DO UPDATE SET
					balance_raw = EXCLUDED.balance_raw,
					balance_usd = EXCLUDED.balance_usd,
					accrued_marks = EXCLUDED.accrued_marks,
					total_marks_earned = EXCLUDED.total_marks_earned,
					marks_per_day = EXCLUDED.marks_per_day,
					first_seen_at = EXCLUDED.first_seen_at,
					last_updated = EXCLUDED.last_updated`,
				rec.SourceKind.String(), rec.Source, rec.User,
				rec.BalanceRaw, rec.BalanceUSD,
				rec.AccruedMarks, rec.TotalMarksEarned, rec.MarksPerDay,
				rec.FirstSeenAt, rec.LastUpdated,
			)
			if err != nil {
				return count, fmt.Errorf("upsert marks balance: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// WriteWindows upserts boost windows.
func (w *Writer) WriteWindows(ctx context.Context, tx execer, outputs []core.Output) (int, error) {
	count := 0
	for _, out := range outputs {
		for _, win := range out.Windows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO boost_windows
					(source_kind, source, start_time, end_time, multiplier)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (source_kind, source) DO UPDATE SET
					start_time = EXCLUDED.start_time,
					end_time = EXCLUDED.end_time,
					multiplier = EXCLUDED.multiplier`,
				win.SourceKind.String(), win.Source, win.Start, win.End, win.Multiplier,
			)
			if err != nil {
				return count, fmt.Errorf("upsert boost window: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// WritePositions upserts genesis campaign positions.
func (w *Writer) WritePositions(ctx context.Context, tx execer, outputs []core.Output) (int, error) {
	count := 0
	for _, out := range outputs {
		for _, p := range out.Positions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO genesis_positions
					(campaign, "user", total_deposited, total_deposited_usd,
					 current_deposit, current_deposit_usd,
					 current_marks, total_marks_earned, total_marks_forfeited,
					 bonus_marks, early_bonus_marks,
					 qualifies_for_early_bonus, early_bonus_eligible_usd,
					 genesis_start_date, genesis_end_date, genesis_ended, last_updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
				ON CONFLICT (campaign, "user") DO UPDATE SET
					total_deposited = EXCLUDED.total_deposited,
					total_deposited_usd = EXCLUDED.total_deposited_usd,
					current_deposit = EXCLUDED.current_deposit,
					current_deposit_usd = EXCLUDED.current_deposit_usd,
					current_marks = EXCLUDED.current_marks,
					total_marks_earned = EXCLUDED.total_marks_earned,
					total_marks_forfeited = EXCLUDED.total_marks_forfeited,
					bonus_marks = EXCLUDED.bonus_marks,
					early_bonus_marks = EXCLUDED.early_bonus_marks,
					qualifies_for_early_bonus = EXCLUDED.qualifies_for_early_bonus,
					early_bonus_eligible_usd = EXCLUDED.early_bonus_eligible_usd,
					genesis_start_date = EXCLUDED.genesis_start_date,
					genesis_end_date = EXCLUDED.genesis_end_date,
					genesis_ended = EXCLUDED.genesis_ended,
					last_updated = EXCLUDED.last_updated`,
				p.Campaign, p.User, p.TotalDeposited, p.TotalDepositedUSD,
				p.CurrentDeposit, p.CurrentDepositUSD,
				p.CurrentMarks, p.TotalMarksEarned, p.TotalMarksForfeited,
				p.BonusMarks, p.EarlyBonusMarks,
				p.QualifiesForEarlyBonus, p.EarlyBonusEligibleDepositUSD,
				p.GenesisStartDate, p.GenesisEndDate, p.GenesisEnded, p.LastUpdated,
			)
			if err != nil {
				return count, fmt.Errorf("upsert genesis position: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// WriteStatuses upserts campaign bonus race statuses.
func (w *Writer) WriteStatuses(ctx context.Context, tx execer, outputs []core.Output) (int, error) {
	count := 0
	for _, out := range outputs {
		for _, s := range out.Statuses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO genesis_bonus_status
					(campaign, cumulative_deposits, threshold_amount,
					 threshold_reached, threshold_reached_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (campaign) DO UPDATE SET
					cumulative_deposits = EXCLUDED.cumulative_deposits,
					threshold_amount = EXCLUDED.threshold_amount,
					threshold_reached = EXCLUDED.threshold_reached,
					threshold_reached_at = EXCLUDED.threshold_reached_at`,
				s.Campaign, s.CumulativeDeposits, s.ThresholdAmount,
				s.ThresholdReached, s.ThresholdReachedAt,
			)
			if err != nil {
				return count, fmt.Errorf("upsert bonus status: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// WriteSailPositions upserts cost-basis positions and their lots.
func (w *Writer) WriteSailPositions(ctx context.Context, tx execer, outputs []core.Output) (int, error) {
	count := 0
	for _, out := range outputs {
		for _, p := range out.SailPositions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sail_positions
					(token, "user", balance, total_cost_basis_usd, average_cost_per_token,
					 realized_pnl_usd, total_tokens_bought, total_tokens_sold,
					 total_spent_usd, total_received_usd, last_updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (token, "user") DO UPDATE SET
					balance = EXCLUDED.balance,
					total_cost_basis_usd = EXCLUDED.total_cost_basis_usd,
					average_cost_per_token = EXCLUDED.average_cost_per_token,
					realized_pnl_usd = EXCLUDED.realized_pnl_usd,
					total_tokens_bought = EXCLUDED.total_tokens_bought,
					total_tokens_sold = EXCLUDED.total_tokens_sold,
					total_spent_usd = EXCLUDED.total_spent_usd,
					total_received_usd = EXCLUDED.total_received_usd,
					last_updated = EXCLUDED.last_updated`,
				p.Token, p.User, p.Balance, p.TotalCostBasisUSD, p.AverageCostPerToken,
				p.RealizedPnLUSD, p.TotalTokensBought, p.TotalTokensSold,
				p.TotalSpentUSD, p.TotalReceivedUSD, p.LastUpdated,
			)
			if err != nil {
				return count, fmt.Errorf("upsert sail position: %w", err)
			}
			count++

			for _, lot := range p.Lots {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO sail_lots
						(token, "user", lot_index, lot_kind,
						 token_amount, original_amount, cost_usd, original_cost_usd,
						 price_per_token, is_fully_redeemed, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
					ON CONFLICT (token, "user", lot_index) DO UPDATE SET
						token_amount = EXCLUDED.token_amount,
						cost_usd = EXCLUDED.cost_usd,
						is_fully_redeemed = EXCLUDED.is_fully_redeemed`,
					p.Token, p.User, lot.Index, string(lot.Kind),
					lot.TokenAmount, lot.OriginalAmount, lot.CostUSD, lot.OriginalCostUSD,
					lot.PricePerToken, lot.IsFullyRedeemed, lot.CreatedAt,
				)
				if err != nil {
					return count, fmt.Errorf("upsert sail lot: %w", err)
				}
			}
		}
	}
	return count, nil
}

// WriteSweepWatermark records the latest daily-sweep run.
func (w *Writer) WriteSweepWatermark(ctx context.Context, tx execer, outputs []core.Output) error {
	var latest int64
	for _, out := range outputs {
		if out.SweepRun > latest {
			latest = out.SweepRun
		}
	}
	if latest == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sweep_watermark (id, last_run) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_run = GREATEST(sweep_watermark.last_run, EXCLUDED.last_run)`,
		latest,
	)
	return err
}
