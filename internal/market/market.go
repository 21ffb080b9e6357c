// Package market loads the static per-market configuration that binds
// on-chain contract addresses to accrual rates, oracle feeds, and genesis
// campaign parameters.
package market

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// OracleKind selects the decode path for a market's price feed.
type OracleKind string

const (
	// OracleScalar feeds return a single price value.
	OracleScalar OracleKind = "scalar"
	// OracleWrappedTuple feeds return min/max underlying and wrapped-rate
	// pairs that must be multiplied together.
	OracleWrappedTuple OracleKind = "wrapped_tuple"
)

// Market is one configured market: a peg currency, an oracle feed, the
// token and pool contracts whose balances earn marks, and the genesis
// campaign attached to it.
type Market struct {
	ID              string
	Peg             string
	OracleAddress   string
	OracleKind      OracleKind
	AnchorToken     string
	SailToken       string
	CollateralToken string
	Minter          string
	Pools           []string
	Campaign        string

	BaseRatePerDay     decimal.Decimal
	EarlyBirdThreshold decimal.Decimal
	BonusRate          decimal.Decimal
	EarlyBonusRate     decimal.Decimal
}

type marketYAML struct {
	ID              string   `yaml:"id"`
	Peg             string   `yaml:"peg"`
	OracleAddress   string   `yaml:"oracle_address"`
	OracleKind      string   `yaml:"oracle_kind"`
	AnchorToken     string   `yaml:"anchor_token"`
	SailToken       string   `yaml:"sail_token"`
	CollateralToken string   `yaml:"collateral_token"`
	Minter          string   `yaml:"minter"`
	Pools           []string `yaml:"pools"`
	Campaign        string   `yaml:"campaign"`

	BaseRatePerDay     string `yaml:"base_rate_per_day"`
	EarlyBirdThreshold string `yaml:"early_bird_threshold"`
	BonusRate          string `yaml:"bonus_rate"`
	EarlyBonusRate     string `yaml:"early_bonus_rate"`
}

type configYAML struct {
	Markets  []marketYAML      `yaml:"markets"`
	PegFeeds map[string]string `yaml:"peg_feeds"`
}

// Registry resolves contract addresses seen in events back to their market.
// All lookups are by lowercased address. Registries are immutable after
// Load, so they are safe for concurrent readers.
type Registry struct {
	markets    []*Market
	byID       map[string]*Market
	byCampaign map[string]*Market
	byPool     map[string]*Market
	byToken    map[string]*Market
	bySail     map[string]*Market
	byMinter   map[string]*Market
	pegFeeds   map[string]string
}

// Load reads a market config file and builds the registry.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}
	return Parse(raw)
}

// Parse builds a registry from raw YAML bytes.
func Parse(raw []byte) (*Registry, error) {
	var cfg configYAML
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse market config: %w", err)
	}
	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("market config: no markets defined")
	}

	r := &Registry{
		byID:       make(map[string]*Market),
		byCampaign: make(map[string]*Market),
		byPool:     make(map[string]*Market),
		byToken:    make(map[string]*Market),
		bySail:     make(map[string]*Market),
		byMinter:   make(map[string]*Market),
		pegFeeds:   make(map[string]string),
	}

	for peg, addr := range cfg.PegFeeds {
		if addr == "" {
			return nil, fmt.Errorf("market config: peg %q: empty feed address", peg)
		}
		r.pegFeeds[strings.ToLower(peg)] = strings.ToLower(addr)
	}

	for i, my := range cfg.Markets {
		m, err := buildMarket(my)
		if err != nil {
			return nil, fmt.Errorf("market config: markets[%d]: %w", i, err)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("market config: duplicate market id %q", m.ID)
		}
		if m.Peg != "usd" {
			if _, ok := r.pegFeeds[m.Peg]; !ok {
				return nil, fmt.Errorf("market config: market %q: peg %q has no feed in peg_feeds", m.ID, m.Peg)
			}
		}
		r.markets = append(r.markets, m)
		r.byID[m.ID] = m
		if m.Campaign != "" {
			r.byCampaign[m.Campaign] = m
		}
		r.byToken[m.AnchorToken] = m
		r.bySail[m.SailToken] = m
		if m.Minter != "" {
			r.byMinter[m.Minter] = m
		}
		for _, p := range m.Pools {
			r.byPool[p] = m
		}
	}
	return r, nil
}

func buildMarket(my marketYAML) (*Market, error) {
	if my.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if my.AnchorToken == "" || my.SailToken == "" {
		return nil, fmt.Errorf("market %q: anchor_token and sail_token are required", my.ID)
	}
	kind := OracleKind(my.OracleKind)
	switch kind {
	case OracleScalar, OracleWrappedTuple:
	default:
		return nil, fmt.Errorf("market %q: unknown oracle_kind %q", my.ID, my.OracleKind)
	}

	m := &Market{
		ID:              my.ID,
		Peg:             strings.ToLower(my.Peg),
		OracleAddress:   strings.ToLower(my.OracleAddress),
		OracleKind:      kind,
		AnchorToken:     strings.ToLower(my.AnchorToken),
		SailToken:       strings.ToLower(my.SailToken),
		CollateralToken: strings.ToLower(my.CollateralToken),
		Minter:          strings.ToLower(my.Minter),
		Campaign:        strings.ToLower(my.Campaign),
	}
	if m.Peg == "" {
		m.Peg = "usd"
	}
	for _, p := range my.Pools {
		m.Pools = append(m.Pools, strings.ToLower(p))
	}

	var err error
	if m.BaseRatePerDay, err = parseRate(my.BaseRatePerDay, "1"); err != nil {
		return nil, fmt.Errorf("market %q: base_rate_per_day: %w", my.ID, err)
	}
	if m.EarlyBirdThreshold, err = parseRate(my.EarlyBirdThreshold, "0"); err != nil {
		return nil, fmt.Errorf("market %q: early_bird_threshold: %w", my.ID, err)
	}
	if m.BonusRate, err = parseRate(my.BonusRate, "0"); err != nil {
		return nil, fmt.Errorf("market %q: bonus_rate: %w", my.ID, err)
	}
	if m.EarlyBonusRate, err = parseRate(my.EarlyBonusRate, "0"); err != nil {
		return nil, fmt.Errorf("market %q: early_bonus_rate: %w", my.ID, err)
	}
	return m, nil
}

func parseRate(s, fallback string) (decimal.Decimal, error) {
	if s == "" {
		s = fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must be non-negative, got %s", d)
	}
	return d, nil
}

// Markets returns all configured markets in file order.
func (r *Registry) Markets() []*Market { return r.markets }

// ByID looks a market up by its config id.
func (r *Registry) ByID(id string) (*Market, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// ByCampaign resolves a genesis campaign contract address.
func (r *Registry) ByCampaign(addr string) (*Market, bool) {
	m, ok := r.byCampaign[strings.ToLower(addr)]
	return m, ok
}

// ByPool resolves a stability pool contract address.
func (r *Registry) ByPool(addr string) (*Market, bool) {
	m, ok := r.byPool[strings.ToLower(addr)]
	return m, ok
}

// ByAnchorToken resolves an anchor (pegged) token contract address.
func (r *Registry) ByAnchorToken(addr string) (*Market, bool) {
	m, ok := r.byToken[strings.ToLower(addr)]
	return m, ok
}

// BySailToken resolves a sail (leveraged) token contract address.
func (r *Registry) BySailToken(addr string) (*Market, bool) {
	m, ok := r.bySail[strings.ToLower(addr)]
	return m, ok
}

// ByMinter resolves a leveraged-token minter contract address.
func (r *Registry) ByMinter(addr string) (*Market, bool) {
	m, ok := r.byMinter[strings.ToLower(addr)]
	return m, ok
}

// PegFeed returns the scalar USD feed address for a non-USD peg currency.
func (r *Registry) PegFeed(peg string) (string, bool) {
	addr, ok := r.pegFeeds[strings.ToLower(peg)]
	return addr, ok
}

// PegFeeds returns the peg currency to feed address table.
func (r *Registry) PegFeeds() map[string]string { return r.pegFeeds }
