package ingestion_test

import (
	"testing"

	"github.com/baofinance/harbor-app-sub003/internal/event"
	"github.com/baofinance/harbor-app-sub003/internal/ingestion"
)

func rawEvent(subject string, data string) ingestion.RawEvent {
	return ingestion.RawEvent{Subject: subject, Data: []byte(data)}
}

func TestParseRawEvent_TokenTransfer(t *testing.T) {
	raw := rawEvent("harbor.transfers.0xABC", `{
		"token": "0xABC0000000000000000000000000000000000001",
		"from": "0xABC0000000000000000000000000000000000002",
		"to": "0xABC0000000000000000000000000000000000003",
		"amount": "1000000000000000000",
		"block_number": 123,
		"log_index": 7,
		"timestamp": 1700000000
	}`)

	evt, err := ingestion.ParseRawEvent(raw, "TokenTransfer")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, ok := evt.(*event.TokenTransfer)
	if !ok {
		t.Fatalf("wrong type %T", evt)
	}
	// Addresses are lowercased on ingest.
	if tr.Token != "0xabc0000000000000000000000000000000000001" {
		t.Errorf("token not lowercased: %s", tr.Token)
	}
	if tr.Order.BlockNumber != 123 || tr.Order.LogIndex != 7 {
		t.Errorf("order key: %+v", tr.Order)
	}
	if tr.IdempotencyKey() != "transfer:123:7" {
		t.Errorf("idempotency key: %s", tr.IdempotencyKey())
	}
	if tr.Amount.String() != "1000000000000000000" {
		t.Errorf("amount: %s", tr.Amount)
	}
}

func TestParseRawEvent_CampaignDeposit(t *testing.T) {
	raw := rawEvent("harbor.campaigns.deposit.0xC", `{
		"campaign": "0xC000000000000000000000000000000000000001",
		"user": "0xC000000000000000000000000000000000000002",
		"amount_in": "5000000000000000000",
		"block_number": 55,
		"log_index": 1,
		"timestamp": 1700000100
	}`)

	evt, err := ingestion.ParseRawEvent(raw, "CampaignDeposit")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dep := evt.(*event.CampaignDeposit)
	if dep.AmountIn.Shift(-18).String() != "5" {
		t.Errorf("amount: %s", dep.AmountIn)
	}
	if dep.Partition() != dep.Campaign {
		t.Errorf("partition should be the campaign, got %s", dep.Partition())
	}
}

func TestParseRawEvent_TokenMint(t *testing.T) {
	raw := rawEvent("harbor.sail.mint.0xM", `{
		"minter": "0xM1",
		"user": "0xU1",
		"collateral_in": "100000000000000000000",
		"token_out": "10000000000000000000",
		"block_number": 9,
		"log_index": 0,
		"timestamp": 1700000200
	}`)

	evt, err := ingestion.ParseRawEvent(raw, "TokenMint")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mint := evt.(*event.TokenMint)
	if mint.CollateralIn.Shift(-18).String() != "100" || mint.TokenOut.Shift(-18).String() != "10" {
		t.Errorf("amounts: in %s out %s", mint.CollateralIn, mint.TokenOut)
	}
}

func TestParseRawEvent_BlockTick(t *testing.T) {
	raw := rawEvent("harbor.ticks.1", `{"block_number": 777, "timestamp": 1700000300}`)
	evt, err := ingestion.ParseRawEvent(raw, "BlockTick")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tick := evt.(*event.BlockTick)
	if tick.Partition() != "global" {
		t.Errorf("tick partition: %s", tick.Partition())
	}
	if tick.IdempotencyKey() != "tick:777" {
		t.Errorf("tick idempotency key: %s", tick.IdempotencyKey())
	}
}

func TestParseRawEvent_Rejections(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		data      string
	}{
		{"unknown type", "Nope", `{}`},
		{"malformed json", "TokenTransfer", `{not json`},
		{"negative amount", "TokenTransfer", `{
			"token": "0x01", "from": "0x02", "to": "0x03",
			"amount": "-5", "block_number": 1, "log_index": 0, "timestamp": 1
		}`},
		{"non-numeric amount", "CampaignDeposit", `{
			"campaign": "0x01", "user": "0x02",
			"amount_in": "lots", "block_number": 1, "log_index": 0, "timestamp": 1
		}`},
	}

	for _, tc := range cases {
		if _, err := ingestion.ParseRawEvent(rawEvent("s", tc.data), tc.eventType); err == nil {
			t.Errorf("%s: expected parse error", tc.name)
		}
	}
}

func TestDefaultSubjects_CoverEveryEventType(t *testing.T) {
	want := map[string]bool{
		"TokenTransfer": false, "PoolDeposit": false, "PoolWithdraw": false,
		"PoolDepositChange": false, "CampaignDeposit": false,
		"CampaignWithdraw": false, "CampaignEnd": false, "GenesisClaim": false,
		"TokenMint": false, "TokenRedeem": false, "BlockTick": false,
	}
	for _, cfg := range ingestion.DefaultSubjects() {
		if _, ok := want[cfg.EventType]; !ok {
			t.Errorf("unexpected event type %s", cfg.EventType)
		}
		want[cfg.EventType] = true
	}
	for eventType, seen := range want {
		if !seen {
			t.Errorf("no subject mapped for %s", eventType)
		}
	}
}
