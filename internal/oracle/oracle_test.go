package oracle_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/market"
	"github.com/baofinance/harbor-app-sub003/internal/oracle"
)

const ethFeedAddr = "0xccc0000000000000000000000000000000000001"

const marketsYAML = `
peg_feeds:
  eth: "` + ethFeedAddr + `"
markets:
  - id: hausd
    peg: usd
    oracle_address: "0xAAA0000000000000000000000000000000000001"
    oracle_kind: scalar
    anchor_token: "0xAAA0000000000000000000000000000000000002"
    sail_token: "0xAAA0000000000000000000000000000000000003"
  - id: haeth
    peg: eth
    oracle_address: "0xBBB0000000000000000000000000000000000001"
    oracle_kind: wrapped_tuple
    anchor_token: "0xBBB0000000000000000000000000000000000002"
    sail_token: "0xBBB0000000000000000000000000000000000003"
`

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testRegistry(t *testing.T) *market.Registry {
	t.Helper()
	reg, err := market.Parse([]byte(marketsYAML))
	if err != nil {
		t.Fatalf("parse market config: %v", err)
	}
	return reg
}

// sourceFunc adapts a closure into an oracle.Source for feeds whose
// answers depend on the read time.
type sourceFunc func(addr string, at int64) (oracle.Reading, error)

func (f sourceFunc) Read(_ context.Context, addr string, at int64) (oracle.Reading, error) {
	return f(addr, at)
}

func TestNormalize_Scalar(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("hausd")

	price, err := oracle.Normalize(m, oracle.Reading{Kind: market.OracleScalar, Price: d("1.02")}, d("1"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !price.Equal(d("1.02")) {
		t.Errorf("scalar price: got %s, want 1.02", price)
	}
}

func TestNormalize_WrappedTupleUsesMaxLegAndPeg(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("haeth")

	// Wrapped value is max underlying times max rate, then the ETH peg.
	price, err := oracle.Normalize(m, oracle.Reading{
		Kind:          market.OracleWrappedTuple,
		MinUnderlying: d("0.99"),
		MaxUnderlying: d("1.01"),
		MinRate:       d("1.0"),
		MaxRate:       d("1.1"),
	}, d("3500"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := d("1.01").Mul(d("1.1")).Mul(d("3500"))
	if !price.Equal(want) {
		t.Errorf("wrapped price: got %s, want %s", price, want)
	}
}

func TestNormalize_NegativePriceRejected(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("hausd")

	if _, err := oracle.Normalize(m, oracle.Reading{Kind: market.OracleScalar, Price: d("-1")}, d("1")); err == nil {
		t.Error("negative price should be an error")
	}
}

func TestPriceUSD_UnavailableFeedYieldsZeroSentinel(t *testing.T) {
	reg := testRegistry(t)
	src := &oracle.StaticSource{Readings: map[string]oracle.Reading{}}
	n := oracle.NewNormalizer(src, reg)
	m, _ := reg.ByID("hausd")

	price, err := n.PriceUSD(context.Background(), m, 1000)
	if err != nil {
		t.Fatalf("unavailable feed must not error, got %v", err)
	}
	if !price.IsZero() {
		t.Errorf("unavailable feed must yield the zero sentinel, got %s", price)
	}
}

func TestPriceUSD_ReadsThroughSource(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("hausd")
	src := &oracle.StaticSource{Readings: map[string]oracle.Reading{
		m.OracleAddress: {Kind: market.OracleScalar, Price: d("0.98")},
	}}
	n := oracle.NewNormalizer(src, reg)

	price, err := n.PriceUSD(context.Background(), m, 1000)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Equal(d("0.98")) {
		t.Errorf("price: got %s, want 0.98", price)
	}
}

func TestPriceUSD_PegFollowsLiveFeed(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("haeth")

	// The ETH/USD feed moves between the two reads; the market's own
	// oracle does not. The USD price must track the peg feed.
	src := sourceFunc(func(addr string, at int64) (oracle.Reading, error) {
		if addr == ethFeedAddr {
			peg := d("3500")
			if at >= 9_000_000 {
				peg = d("2000")
			}
			return oracle.Reading{Kind: market.OracleScalar, Price: peg}, nil
		}
		return oracle.Reading{
			Kind:          market.OracleWrappedTuple,
			MaxUnderlying: d("1"),
			MaxRate:       d("1"),
		}, nil
	})
	n := oracle.NewNormalizer(src, reg)

	early, err := n.PriceUSD(context.Background(), m, 1000)
	if err != nil {
		t.Fatalf("early price: %v", err)
	}
	late, err := n.PriceUSD(context.Background(), m, 9_000_000)
	if err != nil {
		t.Fatalf("late price: %v", err)
	}
	if !early.Equal(d("3500")) {
		t.Errorf("early price: got %s, want 3500", early)
	}
	if !late.Equal(d("2000")) {
		t.Errorf("late price: got %s, want 2000", late)
	}
}

func TestPriceUSD_PegFeedOutageYieldsZeroSentinel(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("haeth")

	// The market's own oracle answers but the peg feed does not. The
	// price degrades to the sentinel instead of using a stale peg.
	src := &oracle.StaticSource{Readings: map[string]oracle.Reading{
		m.OracleAddress: {
			Kind:          market.OracleWrappedTuple,
			MaxUnderlying: d("1"),
			MaxRate:       d("1"),
		},
	}}
	n := oracle.NewNormalizer(src, reg)

	price, err := n.PriceUSD(context.Background(), m, 1000)
	if err != nil {
		t.Fatalf("peg outage must not error, got %v", err)
	}
	if !price.IsZero() {
		t.Errorf("peg outage must yield the zero sentinel, got %s", price)
	}
}

func TestPriceUSD_NonPositivePegYieldsZeroSentinel(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.ByID("haeth")

	src := &oracle.StaticSource{Readings: map[string]oracle.Reading{
		m.OracleAddress: {
			Kind:          market.OracleWrappedTuple,
			MaxUnderlying: d("1"),
			MaxRate:       d("1"),
		},
		ethFeedAddr: {Kind: market.OracleScalar, Price: d("-1")},
	}}
	n := oracle.NewNormalizer(src, reg)

	price, err := n.PriceUSD(context.Background(), m, 1000)
	if err != nil {
		t.Fatalf("negative peg must not error, got %v", err)
	}
	if !price.IsZero() {
		t.Errorf("negative peg must yield the zero sentinel, got %s", price)
	}
}
