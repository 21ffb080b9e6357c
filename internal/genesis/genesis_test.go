package genesis_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/genesis"
)

const (
	campaign = "0x00000000000000000000000000000000000000c1"
	alice    = "0x00000000000000000000000000000000000000a1"
	bob      = "0x00000000000000000000000000000000000000b1"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func raw18(s string) decimal.Decimal {
	return d(s).Shift(18)
}

var tolerance = d("0.000000001")

func approxEqual(t *testing.T, got, want decimal.Decimal, label string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(tolerance) {
		t.Errorf("%s: got %s, want %s", label, got, want)
	}
}

// ============================================================================
// Test: Deposit and the early-bird threshold race
// ============================================================================

func TestDeposit_TracksTotals(t *testing.T) {
	l := genesis.NewLedger()
	p := l.Deposit(campaign, alice, 1000, raw18("100"), d("2"), d("1"), d("1000"))

	if !p.CurrentDeposit.Equal(d("100")) {
		t.Errorf("CurrentDeposit: got %s, want 100", p.CurrentDeposit)
	}
	if !p.CurrentDepositUSD.Equal(d("200")) {
		t.Errorf("CurrentDepositUSD: got %s, want 200", p.CurrentDepositUSD)
	}
	if !p.TotalDeposited.Equal(d("100")) {
		t.Errorf("TotalDeposited: got %s, want 100", p.TotalDeposited)
	}
	if p.GenesisStartDate != 1000 {
		t.Errorf("GenesisStartDate: got %d, want 1000", p.GenesisStartDate)
	}
}

func TestDeposit_ThresholdRace(t *testing.T) {
	// Threshold 1000 token units. Alice deposits 600, bob deposits 600:
	// alice fully qualifies, bob qualifies for the 400 that fit.
	l := genesis.NewLedger()
	price := d("1")

	a := l.Deposit(campaign, alice, 1000, raw18("600"), price, d("1"), d("1000"))
	if !a.QualifiesForEarlyBonus {
		t.Fatal("alice should qualify for early bonus")
	}
	if !a.EarlyBonusEligibleDepositUSD.Equal(d("600")) {
		t.Errorf("alice eligible USD: got %s, want 600", a.EarlyBonusEligibleDepositUSD)
	}

	b := l.Deposit(campaign, bob, 2000, raw18("600"), price, d("1"), d("1000"))
	if !b.QualifiesForEarlyBonus {
		t.Fatal("bob should qualify for the portion under the threshold")
	}
	if !b.EarlyBonusEligibleDepositUSD.Equal(d("400")) {
		t.Errorf("bob eligible USD: got %s, want 400", b.EarlyBonusEligibleDepositUSD)
	}

	s := l.Status(campaign)
	if s == nil || !s.ThresholdReached {
		t.Fatal("threshold should be reached after 1200 cumulative units")
	}
	if s.ThresholdReachedAt != 2000 {
		t.Errorf("ThresholdReachedAt: got %d, want 2000", s.ThresholdReachedAt)
	}

	// Deposits after the flip earn no eligibility.
	c := l.Deposit(campaign, "0xcarol", 3000, raw18("50"), price, d("1"), d("1000"))
	if c.QualifiesForEarlyBonus {
		t.Error("deposits after the threshold flip must not qualify")
	}
}

func TestDeposit_ThresholdCountedInUnitsNotUSD(t *testing.T) {
	// 600 units at price 5 is 3000 USD, still under a 1000-unit threshold.
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("600"), d("5"), d("1"), d("1000"))

	s := l.Status(campaign)
	if s.ThresholdReached {
		t.Error("threshold race must be measured in token units, not USD")
	}
	if !s.CumulativeDeposits.Equal(d("600")) {
		t.Errorf("CumulativeDeposits: got %s, want 600", s.CumulativeDeposits)
	}
}

// ============================================================================
// Test: Withdraw and proportional forfeiture
// ============================================================================

func TestWithdraw_ProportionalForfeiture(t *testing.T) {
	// 100 USD deposited, rate 10 marks/USD/day, one day of accrual yields
	// 1000 marks. Withdrawing half forfeits half of them.
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), decimal.Zero)

	res := l.Withdraw(campaign, alice, 1000+86400, raw18("50"), d("10"))
	approxEqual(t, res.Forfeited, d("500"), "forfeited marks")
	approxEqual(t, res.Position.CurrentMarks, d("500"), "surviving marks")
	approxEqual(t, res.Position.TotalMarksForfeited, d("500"), "lifetime forfeited")
	approxEqual(t, res.Position.TotalMarksEarned, d("1000"), "lifetime earned unchanged")
	if !res.Position.CurrentDeposit.Equal(d("50")) {
		t.Errorf("CurrentDeposit: got %s, want 50", res.Position.CurrentDeposit)
	}
	approxEqual(t, res.Position.CurrentDepositUSD, d("50"), "deposit USD scaled")
	if res.Clamped {
		t.Error("in-range withdrawal should not clamp")
	}
}

func TestWithdraw_FullExitZeroesPosition(t *testing.T) {
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), d("1000"))

	res := l.Withdraw(campaign, alice, 1000+86400, raw18("100"), d("10"))
	approxEqual(t, res.Forfeited, d("1000"), "full exit forfeits everything")
	if !res.Position.CurrentDeposit.IsZero() || !res.Position.CurrentDepositUSD.IsZero() {
		t.Errorf("position should be empty: %s units, %s USD",
			res.Position.CurrentDeposit, res.Position.CurrentDepositUSD)
	}
	if res.Position.QualifiesForEarlyBonus {
		t.Error("full exit should drop early-bonus qualification")
	}
}

func TestWithdraw_ClampsToRecordedDeposit(t *testing.T) {
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), decimal.Zero)

	res := l.Withdraw(campaign, alice, 2000, raw18("250"), d("10"))
	if !res.Clamped {
		t.Error("over-withdrawal must be clamped")
	}
	if !res.Position.CurrentDeposit.IsZero() {
		t.Errorf("clamped withdrawal should empty the deposit, got %s", res.Position.CurrentDeposit)
	}
}

// ============================================================================
// Test: End
// ============================================================================

func TestEnd_AwardsBonuses(t *testing.T) {
	// Alice holds 100 USD through a one-day campaign at 10/day, fully
	// early-bird qualified. bonusRate 0.10, earlyRate 0.05.
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), d("1000"))

	settled := l.End(campaign, 1000+86400, d("10"), d("0.10"), d("0.05"))
	if len(settled) != 1 {
		t.Fatalf("settled %d positions, want 1", len(settled))
	}
	p := settled[0]
	approxEqual(t, p.BonusMarks, d("10"), "completion bonus")
	approxEqual(t, p.EarlyBonusMarks, d("5"), "early-bird bonus")
	approxEqual(t, p.CurrentMarks, d("1015"), "accrued + bonuses")
	if !p.GenesisEnded {
		t.Error("position should be marked ended")
	}
	if p.GenesisEndDate != 1000+86400 {
		t.Errorf("GenesisEndDate: got %d, want %d", p.GenesisEndDate, 1000+86400)
	}
}

func TestEnd_IsIdempotent(t *testing.T) {
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), decimal.Zero)

	first := l.End(campaign, 1000+86400, d("10"), d("0.10"), d("0.05"))
	marks := first[0].CurrentMarks

	// Replayed end event: nothing settles again, no double bonus.
	second := l.End(campaign, 1000+86400, d("10"), d("0.10"), d("0.05"))
	if len(second) != 0 {
		t.Fatalf("replayed end settled %d positions, want 0", len(second))
	}
	if !l.Get(campaign, alice).CurrentMarks.Equal(marks) {
		t.Errorf("replayed end changed marks: %s -> %s", marks, l.Get(campaign, alice).CurrentMarks)
	}
}

func TestEnd_PinsAccrualToZero(t *testing.T) {
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), decimal.Zero)
	l.End(campaign, 1000+86400, d("10"), decimal.Zero, decimal.Zero)

	p := l.Get(campaign, alice)
	after := p.CurrentMarks

	// A later sweep must not accrue on the ended position.
	touched := l.Sweep(1000+2*86400, func(string) decimal.Decimal { return d("10") })
	if len(touched) != 0 {
		t.Errorf("sweep touched %d ended positions", len(touched))
	}
	if !p.CurrentMarks.Equal(after) {
		t.Errorf("ended position accrued: %s -> %s", after, p.CurrentMarks)
	}
	if !p.MarksPerDay(d("10")).IsZero() {
		t.Error("ended position must report zero marks per day")
	}
}

func TestSweep_SettlesLivePositions(t *testing.T) {
	l := genesis.NewLedger()
	l.Deposit(campaign, alice, 1000, raw18("100"), d("1"), d("10"), decimal.Zero)
	l.Deposit("0xother", bob, 1000, raw18("50"), d("1"), d("2"), decimal.Zero)

	rates := map[string]decimal.Decimal{campaign: d("10"), "0xother": d("2")}
	touched := l.Sweep(1000+86400, func(c string) decimal.Decimal { return rates[c] })
	if len(touched) != 2 {
		t.Fatalf("sweep touched %d positions, want 2", len(touched))
	}
	approxEqual(t, l.Get(campaign, alice).CurrentMarks, d("1000"), "alice swept accrual")
	approxEqual(t, l.Get("0xother", bob).CurrentMarks, d("100"), "bob swept accrual")
}

func TestDeposit_PriceOutageTrancheRevaluedLater(t *testing.T) {
	l := genesis.NewLedger()

	// The oracle is down at deposit time: the tranche books at zero USD
	// and accrues nothing.
	p := l.Deposit(campaign, alice, 1000, raw18("100"), decimal.Zero, d("1"), decimal.Zero)
	if !p.CurrentDepositUSD.IsZero() {
		t.Fatalf("outage tranche USD: got %s, want 0", p.CurrentDepositUSD)
	}

	// The next deposit with a good price re-values the recorded units, so
	// accrual resumes on the full stake.
	l.Deposit(campaign, alice, 1000+86400, raw18("50"), d("2"), d("1"), decimal.Zero)
	if !p.CurrentDepositUSD.Equal(d("300")) {
		t.Errorf("revalued CurrentDepositUSD: got %s, want 300", p.CurrentDepositUSD)
	}
	if !p.TotalDepositedUSD.Equal(d("300")) {
		t.Errorf("revalued TotalDepositedUSD: got %s, want 300", p.TotalDepositedUSD)
	}
	if !p.TotalDeposited.Equal(d("150")) {
		t.Errorf("TotalDeposited: got %s, want 150", p.TotalDeposited)
	}

	// A day at 300 USD and rate 1.
	l.Sweep(1000+2*86400, func(string) decimal.Decimal { return d("1") })
	approxEqual(t, p.CurrentMarks, d("300"), "accrual after revaluation")
}
