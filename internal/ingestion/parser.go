package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The shell validates and converts before anything
// reaches the core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "TokenTransfer":
		return parseTokenTransfer(raw.Data)
	case "PoolDeposit":
		return parsePoolDeposit(raw.Data)
	case "PoolWithdraw":
		return parsePoolWithdraw(raw.Data)
	case "PoolDepositChange":
		return parsePoolDepositChange(raw.Data)
	case "CampaignDeposit":
		return parseCampaignDeposit(raw.Data)
	case "CampaignWithdraw":
		return parseCampaignWithdraw(raw.Data)
	case "CampaignEnd":
		return parseCampaignEnd(raw.Data)
	case "GenesisClaim":
		return parseGenesisClaim(raw.Data)
	case "TokenMint":
		return parseTokenMint(raw.Data)
	case "TokenRedeem":
		return parseTokenRedeem(raw.Data)
	case "BlockTick":
		return parseBlockTick(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match the upstream indexer. Token amounts
// arrive as decimal strings in raw 18-decimal base units.

type chainPosJSON struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint32 `json:"log_index"`
	Timestamp   int64  `json:"timestamp"`
}

func (j chainPosJSON) orderKey() event.OrderKey {
	return event.OrderKey{BlockNumber: j.BlockNumber, LogIndex: j.LogIndex}
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("parse %s: negative amount %s", field, d)
	}
	return d, nil
}

func addr(s string) string { return strings.ToLower(s) }

type tokenTransferJSON struct {
	chainPosJSON
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func parseTokenTransfer(data []byte) (*event.TokenTransfer, error) {
	var j tokenTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenTransfer: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.TokenTransfer{
		Token:     addr(j.Token),
		From:      addr(j.From),
		To:        addr(j.To),
		Amount:    amount,
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type poolEventJSON struct {
	chainPosJSON
	Pool string `json:"pool"`
	User string `json:"user"`
}

func parsePoolDeposit(data []byte) (*event.PoolDeposit, error) {
	var j poolEventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolDeposit: %w", err)
	}
	return &event.PoolDeposit{
		Pool:      addr(j.Pool),
		User:      addr(j.User),
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

func parsePoolWithdraw(data []byte) (*event.PoolWithdraw, error) {
	var j poolEventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolWithdraw: %w", err)
	}
	return &event.PoolWithdraw{
		Pool:      addr(j.Pool),
		User:      addr(j.User),
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type poolChangeJSON struct {
	chainPosJSON
	Pool       string `json:"pool"`
	User       string `json:"user"`
	NewDeposit string `json:"new_deposit"`
}

func parsePoolDepositChange(data []byte) (*event.PoolDepositChange, error) {
	var j poolChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolDepositChange: %w", err)
	}
	newDeposit, err := parseAmount("new_deposit", j.NewDeposit)
	if err != nil {
		return nil, err
	}
	return &event.PoolDepositChange{
		Pool:       addr(j.Pool),
		User:       addr(j.User),
		NewDeposit: newDeposit,
		Order:      j.orderKey(),
		Timestamp:  j.Timestamp,
	}, nil
}

type campaignDepositJSON struct {
	chainPosJSON
	Campaign string `json:"campaign"`
	User     string `json:"user"`
	AmountIn string `json:"amount_in"`
}

func parseCampaignDeposit(data []byte) (*event.CampaignDeposit, error) {
	var j campaignDepositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CampaignDeposit: %w", err)
	}
	amount, err := parseAmount("amount_in", j.AmountIn)
	if err != nil {
		return nil, err
	}
	return &event.CampaignDeposit{
		Campaign:  addr(j.Campaign),
		User:      addr(j.User),
		AmountIn:  amount,
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type campaignWithdrawJSON struct {
	chainPosJSON
	Campaign  string `json:"campaign"`
	User      string `json:"user"`
	AmountOut string `json:"amount_out"`
}

func parseCampaignWithdraw(data []byte) (*event.CampaignWithdraw, error) {
	var j campaignWithdrawJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CampaignWithdraw: %w", err)
	}
	amount, err := parseAmount("amount_out", j.AmountOut)
	if err != nil {
		return nil, err
	}
	return &event.CampaignWithdraw{
		Campaign:  addr(j.Campaign),
		User:      addr(j.User),
		AmountOut: amount,
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type campaignEndJSON struct {
	chainPosJSON
	Campaign string `json:"campaign"`
}

func parseCampaignEnd(data []byte) (*event.CampaignEnd, error) {
	var j campaignEndJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CampaignEnd: %w", err)
	}
	return &event.CampaignEnd{
		Campaign:  addr(j.Campaign),
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type genesisClaimJSON struct {
	chainPosJSON
	Campaign string `json:"campaign"`
	User     string `json:"user"`
	SailOut  string `json:"sail_out"`
}

func parseGenesisClaim(data []byte) (*event.GenesisClaim, error) {
	var j genesisClaimJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse GenesisClaim: %w", err)
	}
	sailOut, err := parseAmount("sail_out", j.SailOut)
	if err != nil {
		return nil, err
	}
	return &event.GenesisClaim{
		Campaign:  addr(j.Campaign),
		User:      addr(j.User),
		SailOut:   sailOut,
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}

type tokenMintJSON struct {
	chainPosJSON
	Minter       string `json:"minter"`
	User         string `json:"user"`
	CollateralIn string `json:"collateral_in"`
	TokenOut     string `json:"token_out"`
}

func parseTokenMint(data []byte) (*event.TokenMint, error) {
	var j tokenMintJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenMint: %w", err)
	}
	collateralIn, err := parseAmount("collateral_in", j.CollateralIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := parseAmount("token_out", j.TokenOut)
	if err != nil {
		return nil, err
	}
	return &event.TokenMint{
		Minter:       addr(j.Minter),
		User:         addr(j.User),
		CollateralIn: collateralIn,
		TokenOut:     tokenOut,
		Order:        j.orderKey(),
		Timestamp:    j.Timestamp,
	}, nil
}

type tokenRedeemJSON struct {
	chainPosJSON
	Minter        string `json:"minter"`
	User          string `json:"user"`
	TokenBurned   string `json:"token_burned"`
	CollateralOut string `json:"collateral_out"`
}

func parseTokenRedeem(data []byte) (*event.TokenRedeem, error) {
	var j tokenRedeemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenRedeem: %w", err)
	}
	tokenBurned, err := parseAmount("token_burned", j.TokenBurned)
	if err != nil {
		return nil, err
	}
	collateralOut, err := parseAmount("collateral_out", j.CollateralOut)
	if err != nil {
		return nil, err
	}
	return &event.TokenRedeem{
		Minter:        addr(j.Minter),
		User:          addr(j.User),
		TokenBurned:   tokenBurned,
		CollateralOut: collateralOut,
		Order:         j.orderKey(),
		Timestamp:     j.Timestamp,
	}, nil
}

func parseBlockTick(data []byte) (*event.BlockTick, error) {
	var j chainPosJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BlockTick: %w", err)
	}
	return &event.BlockTick{
		Order:     j.orderKey(),
		Timestamp: j.Timestamp,
	}, nil
}
