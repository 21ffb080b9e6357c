package marks

import "github.com/shopspring/decimal"

// UserTotals is the user-level rollup across every reward source.
type UserTotals struct {
	User             string
	AccruedMarks     decimal.Decimal
	TotalMarksEarned decimal.Decimal
	MarksPerDay      decimal.Decimal
	Sources          int
}

// Aggregate sums a user's records into a single total. Every source the
// user has ever touched contributes, not just the most recently updated
// one.
func Aggregate(user string, records []*Balance) UserTotals {
	t := UserTotals{User: user}
	for _, rec := range records {
		if rec.User != user {
			continue
		}
		t.AccruedMarks = t.AccruedMarks.Add(rec.AccruedMarks)
		t.TotalMarksEarned = t.TotalMarksEarned.Add(rec.TotalMarksEarned)
		t.MarksPerDay = t.MarksPerDay.Add(rec.MarksPerDay)
		t.Sources++
	}
	return t
}

// AggregateAll rolls every record up into per-user totals.
func AggregateAll(records []*Balance) map[string]UserTotals {
	out := make(map[string]UserTotals)
	for _, rec := range records {
		t := out[rec.User]
		t.User = rec.User
		t.AccruedMarks = t.AccruedMarks.Add(rec.AccruedMarks)
		t.TotalMarksEarned = t.TotalMarksEarned.Add(rec.TotalMarksEarned)
		t.MarksPerDay = t.MarksPerDay.Add(rec.MarksPerDay)
		t.Sources++
		out[rec.User] = t
	}
	return out
}
