package costbasis_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/costbasis"
)

const (
	sailToken = "0x00000000000000000000000000000000000000e1"
	alice     = "0x00000000000000000000000000000000000000a1"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCredit_BuildsLots(t *testing.T) {
	b := costbasis.NewBook()
	lot := b.Credit(sailToken, alice, d("10"), d("100"), costbasis.LotMint, 1000)

	if lot == nil {
		t.Fatal("credit should create a lot")
	}
	if !lot.PricePerToken.Equal(d("10")) {
		t.Errorf("PricePerToken: got %s, want 10", lot.PricePerToken)
	}

	p := b.Get(sailToken, alice)
	if !p.Balance.Equal(d("10")) || !p.TotalCostBasisUSD.Equal(d("100")) {
		t.Errorf("aggregates: balance %s, cost %s", p.Balance, p.TotalCostBasisUSD)
	}
	if !p.AverageCostPerToken.Equal(d("10")) {
		t.Errorf("AverageCostPerToken: got %s, want 10", p.AverageCostPerToken)
	}
}

func TestCredit_IgnoresNonPositiveAmounts(t *testing.T) {
	b := costbasis.NewBook()
	if lot := b.Credit(sailToken, alice, decimal.Zero, d("100"), costbasis.LotMint, 1000); lot != nil {
		t.Error("zero-token credit should be ignored")
	}
	if lot := b.Credit(sailToken, alice, d("-5"), d("100"), costbasis.LotMint, 1000); lot != nil {
		t.Error("negative-token credit should be ignored")
	}
}

func TestRedeem_ConsumesOldestLotsFirst(t *testing.T) {
	b := costbasis.NewBook()
	b.Credit(sailToken, alice, d("10"), d("100"), costbasis.LotMint, 1000) // 10 @ $10
	b.Credit(sailToken, alice, d("10"), d("200"), costbasis.LotMint, 2000) // 10 @ $20

	// Redeem 15: all of lot 0 plus half of lot 1. Cost = 100 + 100.
	res := b.Redeem(sailToken, alice, d("15"), d("300"), 3000)
	if !res.TokensConsumed.Equal(d("15")) {
		t.Errorf("TokensConsumed: got %s, want 15", res.TokensConsumed)
	}
	if !res.CostConsumed.Equal(d("200")) {
		t.Errorf("CostConsumed: got %s, want 200", res.CostConsumed)
	}
	if !res.RealizedPnL.Equal(d("100")) {
		t.Errorf("RealizedPnL: got %s, want 100", res.RealizedPnL)
	}

	p := res.Position
	if !p.Balance.Equal(d("5")) || !p.TotalCostBasisUSD.Equal(d("100")) {
		t.Errorf("remaining position: balance %s, cost %s", p.Balance, p.TotalCostBasisUSD)
	}
	if !p.Lots[0].IsFullyRedeemed {
		t.Error("oldest lot should be fully retired")
	}
	if p.Lots[1].IsFullyRedeemed {
		t.Error("newer lot should survive partially")
	}
	if !p.Lots[1].TokenAmount.Equal(d("5")) || !p.Lots[1].CostUSD.Equal(d("100")) {
		t.Errorf("partial lot: %s tokens, %s cost", p.Lots[1].TokenAmount, p.Lots[1].CostUSD)
	}
	// Original fields never change.
	if !p.Lots[1].OriginalAmount.Equal(d("10")) || !p.Lots[1].OriginalCostUSD.Equal(d("200")) {
		t.Error("original lot fields must be immutable")
	}
}

func TestRedeem_FractionalCostScaling(t *testing.T) {
	b := costbasis.NewBook()
	b.Credit(sailToken, alice, d("3"), d("100"), costbasis.LotMint, 1000)

	// Consume one third: one third of the cost leaves the lot.
	res := b.Redeem(sailToken, alice, d("1"), d("50"), 2000)
	want := d("100").Div(d("3"))
	tolerance := d("0.000000001")
	if res.CostConsumed.Sub(want).Abs().GreaterThan(tolerance) {
		t.Errorf("CostConsumed: got %s, want %s", res.CostConsumed, want)
	}
	p := res.Position
	if p.TotalCostBasisUSD.Sub(d("100").Sub(want)).Abs().GreaterThan(tolerance) {
		t.Errorf("remaining cost: got %s, want %s", p.TotalCostBasisUSD, d("100").Sub(want))
	}
	// Consumed plus remaining still folds back to the original cost.
	if !res.CostConsumed.Add(p.TotalCostBasisUSD).Equal(d("100")) {
		t.Errorf("cost leaked: consumed %s + remaining %s != 100", res.CostConsumed, p.TotalCostBasisUSD)
	}
}

func TestRedeem_ClampsWhenLotsRunOut(t *testing.T) {
	b := costbasis.NewBook()
	b.Credit(sailToken, alice, d("10"), d("100"), costbasis.LotMint, 1000)

	res := b.Redeem(sailToken, alice, d("25"), d("500"), 2000)
	if !res.Clamped {
		t.Error("redeeming past the book must clamp")
	}
	if !res.TokensConsumed.Equal(d("10")) {
		t.Errorf("TokensConsumed: got %s, want 10", res.TokensConsumed)
	}
	// P&L realizes against what was actually consumed.
	if !res.RealizedPnL.Equal(d("400")) {
		t.Errorf("RealizedPnL: got %s, want 400", res.RealizedPnL)
	}
	if !res.Position.Balance.IsZero() {
		t.Errorf("balance after exhaustion: got %s", res.Position.Balance)
	}
	if !res.Position.AverageCostPerToken.IsZero() {
		t.Errorf("average cost after exhaustion: got %s", res.Position.AverageCostPerToken)
	}
}

func TestRedeem_LossIsNegativePnL(t *testing.T) {
	b := costbasis.NewBook()
	b.Credit(sailToken, alice, d("10"), d("100"), costbasis.LotMint, 1000)

	res := b.Redeem(sailToken, alice, d("10"), d("60"), 2000)
	if !res.RealizedPnL.Equal(d("-40")) {
		t.Errorf("RealizedPnL: got %s, want -40", res.RealizedPnL)
	}
	if !res.Position.RealizedPnLUSD.Equal(d("-40")) {
		t.Errorf("position RealizedPnLUSD: got %s, want -40", res.Position.RealizedPnLUSD)
	}
}

func TestBook_LifetimeCounters(t *testing.T) {
	b := costbasis.NewBook()
	b.Credit(sailToken, alice, d("10"), d("100"), costbasis.LotMint, 1000)
	b.Credit(sailToken, alice, d("5"), d("75"), costbasis.LotGenesis, 2000)
	b.Redeem(sailToken, alice, d("12"), d("180"), 3000)

	p := b.Get(sailToken, alice)
	if !p.TotalTokensBought.Equal(d("15")) {
		t.Errorf("TotalTokensBought: got %s, want 15", p.TotalTokensBought)
	}
	if !p.TotalTokensSold.Equal(d("12")) {
		t.Errorf("TotalTokensSold: got %s, want 12", p.TotalTokensSold)
	}
	if !p.TotalSpentUSD.Equal(d("175")) {
		t.Errorf("TotalSpentUSD: got %s, want 175", p.TotalSpentUSD)
	}
	if !p.TotalReceivedUSD.Equal(d("180")) {
		t.Errorf("TotalReceivedUSD: got %s, want 180", p.TotalReceivedUSD)
	}
	if !p.Balance.Equal(d("3")) {
		t.Errorf("Balance: got %s, want 3", p.Balance)
	}
}
