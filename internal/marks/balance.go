package marks

import (
	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/event"
)

var rawShift = int32(-18)

// Balance is the accrual record for one (source kind, source, user) triple.
// AccruedMarks resets when the balance returns to zero; TotalMarksEarned
// never decreases.
type Balance struct {
	SourceKind event.SourceKind
	Source     string
	User       string

	BalanceRaw decimal.Decimal
	BalanceUSD decimal.Decimal

	AccruedMarks     decimal.Decimal
	TotalMarksEarned decimal.Decimal
	MarksPerDay      decimal.Decimal

	FirstSeenAt int64
	LastUpdated int64
}

// Clone returns a value copy of the record. Emitted outputs carry clones
// so downstream goroutines never see the live record mid-mutation.
func (b *Balance) Clone() *Balance {
	c := *b
	return &c
}

type balanceKey struct {
	kind   event.SourceKind
	source string
	user   string
}

// Ledger tracks every balance record the system has observed. Records are
// never deleted; a zero balance can reactivate on later activity.
type Ledger struct {
	records map[balanceKey]*Balance
}

func NewLedger() *Ledger {
	return &Ledger{records: make(map[balanceKey]*Balance)}
}

// Get returns the record for a triple, or nil if none exists yet.
func (l *Ledger) Get(kind event.SourceKind, source, user string) *Balance {
	return l.records[balanceKey{kind, source, user}]
}

// Apply settles accrual up to now against the record's previous valuation,
// then installs the re-read ground-truth balance.
//
// balanceRaw is the authoritative raw 18-decimal amount read from chain,
// not an event delta. A zero priceUSD means the feed could not be read:
// the prior BalanceUSD is kept and only the clock advances. Replaying the
// same event is a no-op because the re-read balance and the non-advancing
// clock both leave the record unchanged.
func (l *Ledger) Apply(kind event.SourceKind, source, user string, now int64, balanceRaw, priceUSD, ratePerDay decimal.Decimal, w *Window) *Balance {
	key := balanceKey{kind, source, user}
	rec, ok := l.records[key]
	if !ok {
		rec = &Balance{SourceKind: kind, Source: source, User: user}
		l.records[key] = rec
	}

	earned := Accrue(rec.LastUpdated, now, rec.BalanceUSD, ratePerDay, w)
	rec.AccruedMarks = rec.AccruedMarks.Add(earned)
	rec.TotalMarksEarned = rec.TotalMarksEarned.Add(earned)

	rec.BalanceRaw = balanceRaw
	switch {
	case balanceRaw.IsZero():
		rec.BalanceUSD = decimal.Zero
	case priceUSD.IsZero():
		// Valuation temporarily unknown. Keep the prior snapshot.
	default:
		rec.BalanceUSD = balanceRaw.Shift(rawShift).Mul(priceUSD)
	}

	if balanceRaw.IsZero() {
		rec.AccruedMarks = decimal.Zero
		rec.FirstSeenAt = 0
	} else if rec.FirstSeenAt == 0 {
		rec.FirstSeenAt = now
	}
	rec.LastUpdated = now
	rec.MarksPerDay = MarksPerDay(rec.BalanceUSD, ratePerDay, w.MultiplierAt(now))
	return rec
}

// Records returns every record in the ledger, in map order. The daily
// sweep and the snapshot writer iterate this.
func (l *Ledger) Records() []*Balance {
	out := make([]*Balance, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	return out
}

// UserRecords returns all of one user's records across sources.
func (l *Ledger) UserRecords(user string) []*Balance {
	var out []*Balance
	for _, rec := range l.records {
		if rec.User == user {
			out = append(out, rec)
		}
	}
	return out
}

// Restore reinstalls a record loaded from a snapshot.
func (l *Ledger) Restore(rec *Balance) {
	l.records[balanceKey{rec.SourceKind, rec.Source, rec.User}] = rec
}

// Len reports the number of tracked records.
func (l *Ledger) Len() int { return len(l.records) }
