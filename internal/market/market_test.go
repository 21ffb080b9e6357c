package market_test

import (
	"testing"

	"github.com/baofinance/harbor-app-sub003/internal/market"
)

const validYAML = `
peg_feeds:
  eth: "0xAAA000000000000000000000000000000000FEED"
markets:
  - id: haeth
    peg: ETH
    oracle_address: "0xAAA0000000000000000000000000000000000001"
    oracle_kind: wrapped_tuple
    anchor_token: "0xAAA0000000000000000000000000000000000002"
    sail_token: "0xAAA0000000000000000000000000000000000003"
    collateral_token: "0xAAA0000000000000000000000000000000000004"
    minter: "0xAAA0000000000000000000000000000000000005"
    pools:
      - "0xAAA0000000000000000000000000000000000006"
    campaign: "0xAAA0000000000000000000000000000000000007"
    base_rate_per_day: "2"
    early_bird_threshold: "1000"
    bonus_rate: "0.10"
    early_bonus_rate: "0.05"
`

func TestParse_BuildsLookups(t *testing.T) {
	reg, err := market.Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m, ok := reg.ByID("haeth")
	if !ok {
		t.Fatal("market haeth not found")
	}
	if m.BaseRatePerDay.String() != "2" {
		t.Errorf("BaseRatePerDay: got %s, want 2", m.BaseRatePerDay)
	}

	// Lookups are case-insensitive on addresses.
	if _, ok := reg.ByAnchorToken("0xAAA0000000000000000000000000000000000002"); !ok {
		t.Error("anchor token lookup failed")
	}
	if _, ok := reg.BySailToken("0xaaa0000000000000000000000000000000000003"); !ok {
		t.Error("sail token lookup failed")
	}
	if _, ok := reg.ByPool("0xaaa0000000000000000000000000000000000006"); !ok {
		t.Error("pool lookup failed")
	}
	if _, ok := reg.ByCampaign("0xAAA0000000000000000000000000000000000007"); !ok {
		t.Error("campaign lookup failed")
	}
	if _, ok := reg.ByMinter("0xaaa0000000000000000000000000000000000005"); !ok {
		t.Error("minter lookup failed")
	}

	// Peg feed addresses are lowercased like every other address.
	feed, ok := reg.PegFeed("ETH")
	if !ok || feed != "0xaaa000000000000000000000000000000000feed" {
		t.Errorf("peg feed eth: got %s (ok=%v)", feed, ok)
	}
	if _, ok := reg.PegFeed("doge"); ok {
		t.Error("unconfigured peg must have no feed")
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty config", `markets: []`},
		{"missing id", `
markets:
  - peg: usd
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
`},
		{"unknown oracle kind", `
markets:
  - id: m1
    oracle_kind: magic
    anchor_token: "0x01"
    sail_token: "0x02"
`},
		{"peg without feed", `
markets:
  - id: m1
    peg: doge
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
`},
		{"empty peg feed address", `
peg_feeds:
  eth: ""
markets:
  - id: m1
    peg: eth
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
`},
		{"negative rate", `
markets:
  - id: m1
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
    base_rate_per_day: "-1"
`},
		{"duplicate id", `
markets:
  - id: m1
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
  - id: m1
    oracle_kind: scalar
    anchor_token: "0x03"
    sail_token: "0x04"
`},
	}

	for _, tc := range cases {
		if _, err := market.Parse([]byte(tc.yaml)); err == nil {
			t.Errorf("%s: expected parse error", tc.name)
		}
	}
}

func TestParse_Defaults(t *testing.T) {
	reg, err := market.Parse([]byte(`
markets:
  - id: m1
    oracle_kind: scalar
    anchor_token: "0x01"
    sail_token: "0x02"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, _ := reg.ByID("m1")
	if m.Peg != "usd" {
		t.Errorf("default peg: got %q, want usd", m.Peg)
	}
	if m.BaseRatePerDay.String() != "1" {
		t.Errorf("default base rate: got %s, want 1", m.BaseRatePerDay)
	}
	if !m.EarlyBirdThreshold.IsZero() || !m.BonusRate.IsZero() {
		t.Error("optional campaign rates should default to zero")
	}
}
