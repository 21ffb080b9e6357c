package event

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CampaignDeposit is a deposit into a genesis campaign vault.
// AmountIn is the deposited collateral in raw 18-decimal units.
type CampaignDeposit struct {
	Campaign  string
	User      string
	AmountIn  decimal.Decimal
	Order     OrderKey
	Timestamp int64
}

func (e *CampaignDeposit) EventKind() Kind { return KindCampaignDeposit }

func (e *CampaignDeposit) IdempotencyKey() string {
	return fmt.Sprintf("campaign-deposit:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *CampaignDeposit) OrderKey() OrderKey { return e.Order }
func (e *CampaignDeposit) BlockTime() int64   { return e.Timestamp }
func (e *CampaignDeposit) Partition() string  { return e.Campaign }

// CampaignWithdraw is a pre-end withdrawal from a genesis campaign vault.
type CampaignWithdraw struct {
	Campaign  string
	User      string
	AmountOut decimal.Decimal
	Order     OrderKey
	Timestamp int64
}

func (e *CampaignWithdraw) EventKind() Kind { return KindCampaignWithdraw }

func (e *CampaignWithdraw) IdempotencyKey() string {
	return fmt.Sprintf("campaign-withdraw:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *CampaignWithdraw) OrderKey() OrderKey { return e.Order }
func (e *CampaignWithdraw) BlockTime() int64   { return e.Timestamp }
func (e *CampaignWithdraw) Partition() string  { return e.Campaign }

// CampaignEnd fires once per campaign contract when the genesis window
// closes. It settles every depositor, awards bonuses, and opens boost
// windows for the market's reward sources.
type CampaignEnd struct {
	Campaign  string
	Order     OrderKey
	Timestamp int64
}

func (e *CampaignEnd) EventKind() Kind { return KindCampaignEnd }

func (e *CampaignEnd) IdempotencyKey() string {
	return fmt.Sprintf("campaign-end:%s", e.Campaign)
}

func (e *CampaignEnd) OrderKey() OrderKey { return e.Order }
func (e *CampaignEnd) BlockTime() int64   { return e.Timestamp }
func (e *CampaignEnd) Partition() string  { return e.Campaign }

// GenesisClaim is a post-end claim of sail tokens from a campaign vault.
// SailOut is in raw 18-decimal units; the claim opens a genesis cost-basis
// lot valued at the claim-time sail price.
type GenesisClaim struct {
	Campaign  string
	User      string
	SailOut   decimal.Decimal
	Order     OrderKey
	Timestamp int64
}

func (e *GenesisClaim) EventKind() Kind { return KindGenesisClaim }

func (e *GenesisClaim) IdempotencyKey() string {
	return fmt.Sprintf("genesis-claim:%d:%d", e.Order.BlockNumber, e.Order.LogIndex)
}

func (e *GenesisClaim) OrderKey() OrderKey { return e.Order }
func (e *GenesisClaim) BlockTime() int64   { return e.Timestamp }
func (e *GenesisClaim) Partition() string  { return e.Campaign }
