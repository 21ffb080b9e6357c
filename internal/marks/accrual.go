package marks

import "github.com/shopspring/decimal"

var secondsPerDay = decimal.NewFromInt(SecondsPerDay)

// Accrue computes marks earned over [lastUpdated, now) at ratePerDay marks
// per USD per day, splitting the interval at the window's boundaries.
//
// balanceUSD must be the valuation held DURING the interval, so callers
// settle with the pre-event balance before applying the event's mutation.
func Accrue(lastUpdated, now int64, balanceUSD, ratePerDay decimal.Decimal, w *Window) decimal.Decimal {
	if lastUpdated == 0 || now <= lastUpdated {
		return decimal.Zero
	}
	if balanceUSD.IsZero() || ratePerDay.IsZero() {
		return decimal.Zero
	}

	totalSeconds := now - lastUpdated
	if w == nil {
		return rate(balanceUSD, ratePerDay, totalSeconds)
	}

	boostedStart := max64(lastUpdated, w.Start)
	boostedEnd := min64(now, w.End)
	boostedSeconds := boostedEnd - boostedStart
	if boostedSeconds < 0 {
		boostedSeconds = 0
	}
	unboostedSeconds := totalSeconds - boostedSeconds

	plain := rate(balanceUSD, ratePerDay, unboostedSeconds)
	boosted := rate(balanceUSD, ratePerDay, boostedSeconds).Mul(w.Multiplier)
	return plain.Add(boosted)
}

// MarksPerDay is the instantaneous accrual rate at now, reported as a
// projection field alongside balances.
func MarksPerDay(balanceUSD, ratePerDay, multiplier decimal.Decimal) decimal.Decimal {
	return balanceUSD.Mul(ratePerDay).Mul(multiplier)
}

func rate(balanceUSD, ratePerDay decimal.Decimal, seconds int64) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	return balanceUSD.Mul(ratePerDay).Mul(decimal.NewFromInt(seconds)).Div(secondsPerDay)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
