// Package core is the single-writer event processor. Every mutation of the
// derived ledgers flows through Engine.ProcessEvent, one event at a time,
// driven purely by versioned inputs (block timestamps, chain reads at a
// block height). The core never calls the wall clock.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/chain"
	"github.com/baofinance/harbor-app-sub003/internal/costbasis"
	"github.com/baofinance/harbor-app-sub003/internal/event"
	"github.com/baofinance/harbor-app-sub003/internal/genesis"
	"github.com/baofinance/harbor-app-sub003/internal/market"
	"github.com/baofinance/harbor-app-sub003/internal/marks"
	"github.com/baofinance/harbor-app-sub003/internal/observability"
	"github.com/baofinance/harbor-app-sub003/internal/oracle"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Output is what the core emits per applied event: the envelope for the
// event log plus every state row the event touched, ready for upsert.
type Output struct {
	Envelope      *event.Envelope
	Balances      []*marks.Balance
	Windows       []*marks.Window
	Positions     []*genesis.Position
	Statuses      []*genesis.BonusStatus
	SailPositions []*costbasis.Position
	SweepRun      int64
}

// detach replaces every row in the output with a value copy, so consumers
// on the persistence and projection channels read a stable snapshot.
func (o Output) detach() Output {
	c := o
	c.Balances = make([]*marks.Balance, len(o.Balances))
	for i, b := range o.Balances {
		c.Balances[i] = b.Clone()
	}
	c.Windows = make([]*marks.Window, len(o.Windows))
	for i, w := range o.Windows {
		c.Windows[i] = w.Clone()
	}
	c.Positions = make([]*genesis.Position, len(o.Positions))
	for i, p := range o.Positions {
		c.Positions[i] = p.Clone()
	}
	c.Statuses = make([]*genesis.BonusStatus, len(o.Statuses))
	for i, s := range o.Statuses {
		c.Statuses[i] = s.Clone()
	}
	c.SailPositions = make([]*costbasis.Position, len(o.SailPositions))
	for i, p := range o.SailPositions {
		c.SailPositions[i] = p.Clone()
	}
	return c
}

// Engine owns all ledger state. It is not safe for concurrent use; the
// ingestion loop is its only caller.
type Engine struct {
	sequence int64

	markets *market.Registry
	prices  *oracle.Normalizer
	reader  chain.BalanceReader

	balances  *marks.Ledger
	windows   *marks.WindowRegistry
	campaigns *genesis.Ledger
	book      *costbasis.Book
	sweep     *marks.SweepGate

	idempotency *IdempotencyChecker
	order       *OrderGuard

	metrics *observability.Metrics
	log     zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Config carries the engine's collaborators.
type Config struct {
	Markets        *market.Registry
	Prices         *oracle.Normalizer
	Reader         chain.BalanceReader
	DBChecker      DBIdempotencyChecker
	Metrics        *observability.Metrics
	PersistChan    chan<- Output
	ProjectionChan chan<- Output
	StartSequence  int64
	SweepWatermark int64
	LRUCapacity    int
}

func NewEngine(cfg Config) *Engine {
	capacity := cfg.LRUCapacity
	if capacity <= 0 {
		capacity = 1_000_000
	}
	return &Engine{
		sequence:       cfg.StartSequence,
		markets:        cfg.Markets,
		prices:         cfg.Prices,
		reader:         cfg.Reader,
		balances:       marks.NewLedger(),
		windows:        marks.NewWindowRegistry(),
		campaigns:      genesis.NewLedger(),
		book:           costbasis.NewBook(),
		sweep:          marks.NewSweepGate(cfg.SweepWatermark),
		idempotency:    NewIdempotencyChecker(capacity, cfg.DBChecker),
		order:          NewOrderGuard(),
		metrics:        cfg.Metrics,
		log:            observability.NewLogger("core"),
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
	}
}

// Balances exposes the marks ledger for projections and recovery.
func (e *Engine) Balances() *marks.Ledger { return e.balances }

// Windows exposes the boost window registry.
func (e *Engine) Windows() *marks.WindowRegistry { return e.windows }

// Campaigns exposes the genesis ledger.
func (e *Engine) Campaigns() *genesis.Ledger { return e.campaigns }

// Book exposes the cost-basis book.
func (e *Engine) Book() *costbasis.Book { return e.book }

// Sequence returns the next sequence the core will assign.
func (e *Engine) Sequence() int64 { return e.sequence }

// SweepWatermark returns the daily-sweep watermark for persistence.
func (e *Engine) SweepWatermark() int64 { return e.sweep.LastRun() }

// Idempotency exposes the dedup checker for LRU warming on startup.
func (e *Engine) Idempotency() *IdempotencyChecker { return e.idempotency }

// needsDedup reports whether a kind applies deltas and therefore must not
// be applied twice. Balance events re-read ground truth and replay safely.
func needsDedup(kind event.Kind) bool {
	switch kind {
	case event.KindCampaignDeposit, event.KindCampaignWithdraw,
		event.KindCampaignEnd, event.KindGenesisClaim,
		event.KindTokenMint, event.KindTokenRedeem:
		return true
	}
	return false
}

// ProcessEvent runs the full pipeline for one inbound event: dedup,
// ordering observation, dispatch, daily-sweep check, envelope, emit.
func (e *Engine) ProcessEvent(ctx context.Context, evt event.Event) error {
	start := time.Now()
	kind := evt.EventKind()
	key := evt.IdempotencyKey()

	dedup := needsDedup(kind)
	if dedup && e.idempotency.IsDuplicate(key) {
		if e.metrics != nil {
			e.metrics.CoreEventsRejected.WithLabelValues(kind.String(), "duplicate").Inc()
		}
		return nil
	}

	if replayed := e.order.Observe(evt.Partition(), evt.OrderKey()); replayed {
		// Reorg replay. Handlers are idempotent, so the event still runs.
		if e.metrics != nil {
			e.metrics.EventOutOfOrder.WithLabelValues(evt.Partition()).Inc()
		}
		e.log.Debug().
			Str("event", kind.String()).
			Str("partition", evt.Partition()).
			Uint64("block", evt.OrderKey().BlockNumber).
			Msg("replayed order key")
	}

	out, err := e.dispatch(ctx, evt)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", kind, err)
	}

	if e.sweep.ShouldRun(evt.BlockTime()) {
		e.runSweep(ctx, evt.BlockTime(), &out)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	out.Envelope = &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: key,
		Kind:           kind,
		Order:          evt.OrderKey(),
		Timestamp:      evt.BlockTime(),
		Payload:        payload,
	}
	e.sequence++

	// Rows cross goroutine boundaries here while the engine keeps
	// mutating the live records, so the output carries value copies.
	out = out.detach()

	// Persistence gets a blocking send so no applied event is lost.
	// Projections are best-effort and rebuild from the event log.
	e.persistChan <- out
	select {
	case e.projectionChan <- out:
	default:
		if e.metrics != nil {
			e.metrics.ProjectionDrops.Inc()
		}
	}

	if dedup {
		e.idempotency.MarkProcessed(key)
	}

	if e.metrics != nil {
		e.metrics.CoreEventsApplied.WithLabelValues(kind.String()).Inc()
		e.metrics.CoreEventDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.DedupLRUSize.Set(float64(e.idempotency.Size()))
	}
	return nil
}

// Replay applies an already-logged event during startup recovery. It
// skips dedup (the key is in the log by definition) and emits nothing;
// only in-memory state and the watermarks advance.
func (e *Engine) Replay(ctx context.Context, evt event.Event) error {
	e.order.Observe(evt.Partition(), evt.OrderKey())
	out, err := e.dispatch(ctx, evt)
	if err != nil {
		return fmt.Errorf("replay %s: %w", evt.EventKind(), err)
	}
	if e.sweep.ShouldRun(evt.BlockTime()) {
		e.runSweep(ctx, evt.BlockTime(), &out)
	}
	e.sequence++
	return nil
}

func (e *Engine) dispatch(ctx context.Context, evt event.Event) (Output, error) {
	switch ev := evt.(type) {
	case *event.TokenTransfer:
		return e.handleTokenTransfer(ctx, ev)
	case *event.PoolDeposit:
		return e.handlePoolActivity(ctx, ev.Pool, ev.User, ev.OrderKey().BlockNumber, ev.Timestamp)
	case *event.PoolWithdraw:
		return e.handlePoolActivity(ctx, ev.Pool, ev.User, ev.OrderKey().BlockNumber, ev.Timestamp)
	case *event.PoolDepositChange:
		return e.handlePoolDepositChange(ctx, ev)
	case *event.CampaignDeposit:
		return e.handleCampaignDeposit(ctx, ev)
	case *event.CampaignWithdraw:
		return e.handleCampaignWithdraw(ev)
	case *event.CampaignEnd:
		return e.handleCampaignEnd(ev)
	case *event.GenesisClaim:
		return e.handleGenesisClaim(ctx, ev)
	case *event.TokenMint:
		return e.handleTokenMint(ctx, ev)
	case *event.TokenRedeem:
		return e.handleTokenRedeem(ctx, ev)
	case *event.BlockTick:
		// The sweep check after dispatch does the work.
		return Output{}, nil
	default:
		return Output{}, fmt.Errorf("unhandled event type %T", evt)
	}
}

// marketPrice resolves the market's oracle price at a block time, counting
// zero-price degradations.
func (e *Engine) marketPrice(ctx context.Context, m *market.Market, at int64) decimal.Decimal {
	price, err := e.prices.PriceUSD(ctx, m, at)
	if err != nil {
		e.log.Warn().Err(err).Str("market", m.ID).Msg("price normalization failed")
		price = decimal.Zero
	}
	if price.IsZero() && e.metrics != nil {
		e.metrics.ZeroPriceReads.WithLabelValues(m.ID).Inc()
	}
	return price
}

// applyBalance settles and re-values one (kind, source, user) record from
// ground truth.
func (e *Engine) applyBalance(out *Output, m *market.Market, kind event.SourceKind, source, user string, now int64, balanceRaw, price decimal.Decimal) {
	w := e.windows.GetOrCreate(kind, source, now, marks.DefaultMultiplier(kind))
	rec := e.balances.Apply(kind, source, user, now, balanceRaw, price, m.BaseRatePerDay, w)
	out.Balances = append(out.Balances, rec)
	out.Windows = appendWindow(out.Windows, w)
	if e.metrics != nil {
		e.metrics.MarksSettled.WithLabelValues(kind.String()).Inc()
	}
}

func (e *Engine) handleTokenTransfer(ctx context.Context, ev *event.TokenTransfer) (Output, error) {
	var out Output
	m, kind, ok := e.resolveToken(ev.Token)
	if !ok {
		e.rejectUnknown(event.KindTokenTransfer, ev.Token)
		return out, nil
	}
	price := e.marketPrice(ctx, m, ev.Timestamp)

	for _, user := range []string{ev.From, ev.To} {
		if user == "" || user == zeroAddress {
			continue
		}
		balance, err := e.reader.TokenBalance(ctx, ev.Token, user, ev.Order.BlockNumber)
		if err != nil {
			balance = e.degradedBalance(kind, ev.Token, user, err)
		}
		e.applyBalance(&out, m, kind, ev.Token, user, ev.Timestamp, balance, price)
	}
	return out, nil
}

// degradedBalance is the fallback when a ground-truth read fails: the last
// recorded raw balance, or zero for a never-seen user. The record still
// settles and its clock advances; the next successful read or daily sweep
// re-installs ground truth. Failing the event instead would exhaust its
// redeliveries and lose the accrual entirely.
func (e *Engine) degradedBalance(kind event.SourceKind, source, user string, err error) decimal.Decimal {
	if e.metrics != nil {
		e.metrics.BalanceReadFailures.WithLabelValues(kind.String()).Inc()
	}
	e.log.Warn().Err(err).
		Str("source", source).
		Str("user", user).
		Msg("balance read failed, keeping recorded balance")
	if rec := e.balances.Get(kind, source, user); rec != nil {
		return rec.BalanceRaw
	}
	return decimal.Zero
}

func (e *Engine) resolveToken(token string) (*market.Market, event.SourceKind, bool) {
	if m, ok := e.markets.ByAnchorToken(token); ok {
		return m, event.SourceTokenHolding, true
	}
	if m, ok := e.markets.BySailToken(token); ok {
		return m, event.SourceSailToken, true
	}
	return nil, event.SourceUnknown, false
}

func (e *Engine) handlePoolActivity(ctx context.Context, pool, user string, block uint64, ts int64) (Output, error) {
	var out Output
	m, ok := e.markets.ByPool(pool)
	if !ok {
		e.rejectUnknown(event.KindPoolDeposit, pool)
		return out, nil
	}
	balance, err := e.reader.PoolBalance(ctx, pool, user, block)
	if err != nil {
		balance = e.degradedBalance(event.SourcePoolDeposit, pool, user, err)
	}
	price := e.marketPrice(ctx, m, ts)
	e.applyBalance(&out, m, event.SourcePoolDeposit, pool, user, ts, balance, price)
	return out, nil
}

func (e *Engine) handlePoolDepositChange(ctx context.Context, ev *event.PoolDepositChange) (Output, error) {
	var out Output
	m, ok := e.markets.ByPool(ev.Pool)
	if !ok {
		e.rejectUnknown(event.KindPoolDepositChange, ev.Pool)
		return out, nil
	}
	// The event carries the authoritative post-change balance; rebases and
	// liquidations may not be readable at this block.
	price := e.marketPrice(ctx, m, ev.Timestamp)
	e.applyBalance(&out, m, event.SourcePoolDeposit, ev.Pool, ev.User, ev.Timestamp, ev.NewDeposit, price)
	return out, nil
}

func (e *Engine) handleCampaignDeposit(ctx context.Context, ev *event.CampaignDeposit) (Output, error) {
	var out Output
	m, ok := e.markets.ByCampaign(ev.Campaign)
	if !ok {
		e.rejectUnknown(event.KindCampaignDeposit, ev.Campaign)
		return out, nil
	}
	price := e.marketPrice(ctx, m, ev.Timestamp)
	pos := e.campaigns.Deposit(ev.Campaign, ev.User, ev.Timestamp, ev.AmountIn, price, m.BaseRatePerDay, m.EarlyBirdThreshold)
	out.Positions = append(out.Positions, pos)
	if s := e.campaigns.Status(ev.Campaign); s != nil {
		out.Statuses = append(out.Statuses, s)
	}
	return out, nil
}

func (e *Engine) handleCampaignWithdraw(ev *event.CampaignWithdraw) (Output, error) {
	var out Output
	m, ok := e.markets.ByCampaign(ev.Campaign)
	if !ok {
		e.rejectUnknown(event.KindCampaignWithdraw, ev.Campaign)
		return out, nil
	}
	res := e.campaigns.Withdraw(ev.Campaign, ev.User, ev.Timestamp, ev.AmountOut, m.BaseRatePerDay)
	if res.Clamped {
		e.logClamp(event.KindCampaignWithdraw, ev.Campaign, ev.User)
	}
	if e.metrics != nil && res.Forfeited.IsPositive() {
		f, _ := res.Forfeited.Float64()
		e.metrics.MarksForfeited.Add(f)
	}
	out.Positions = append(out.Positions, res.Position)
	return out, nil
}

func (e *Engine) handleCampaignEnd(ev *event.CampaignEnd) (Output, error) {
	var out Output
	m, ok := e.markets.ByCampaign(ev.Campaign)
	if !ok {
		e.rejectUnknown(event.KindCampaignEnd, ev.Campaign)
		return out, nil
	}

	settled := e.campaigns.End(ev.Campaign, ev.Timestamp, m.BaseRatePerDay, m.BonusRate, m.EarlyBonusRate)
	out.Positions = append(out.Positions, settled...)
	if e.metrics != nil {
		for _, p := range settled {
			if p.BonusMarks.IsPositive() {
				e.metrics.BonusesAwarded.WithLabelValues("completion").Inc()
			}
			if p.EarlyBonusMarks.IsPositive() {
				e.metrics.BonusesAwarded.WithLabelValues("early_bird").Inc()
			}
		}
	}

	// Open boost windows for every reward source of the market, pinned to
	// the campaign-end timestamp. Explicit open replaces lazy windows.
	start := ev.Timestamp
	end := start + marks.BoostWindowDuration
	open := func(kind event.SourceKind, source string) {
		if source == "" {
			return
		}
		w := e.windows.Open(kind, source, start, end, marks.DefaultMultiplier(kind))
		out.Windows = appendWindow(out.Windows, w)
		if e.metrics != nil {
			e.metrics.WindowsOpened.WithLabelValues("explicit").Inc()
		}
	}
	open(event.SourceTokenHolding, m.AnchorToken)
	open(event.SourceSailToken, m.SailToken)
	for _, pool := range m.Pools {
		open(event.SourcePoolDeposit, pool)
	}

	e.log.Info().
		Str("campaign", ev.Campaign).
		Str("market", m.ID).
		Int("positions", len(settled)).
		Int64("end", ev.Timestamp).
		Msg("campaign ended")
	return out, nil
}

func (e *Engine) handleGenesisClaim(ctx context.Context, ev *event.GenesisClaim) (Output, error) {
	var out Output
	m, ok := e.markets.ByCampaign(ev.Campaign)
	if !ok {
		e.rejectUnknown(event.KindGenesisClaim, ev.Campaign)
		return out, nil
	}
	price := e.marketPrice(ctx, m, ev.Timestamp)
	tokens := ev.SailOut.Shift(-18)
	lot := e.book.Credit(m.SailToken, ev.User, tokens, tokens.Mul(price), costbasis.LotGenesis, ev.Timestamp)
	if lot != nil {
		out.SailPositions = append(out.SailPositions, e.book.Get(m.SailToken, ev.User))
		if e.metrics != nil {
			e.metrics.LotsCreated.WithLabelValues(string(costbasis.LotGenesis)).Inc()
		}
	}
	return out, nil
}

func (e *Engine) handleTokenMint(ctx context.Context, ev *event.TokenMint) (Output, error) {
	var out Output
	m, ok := e.markets.ByMinter(ev.Minter)
	if !ok {
		e.rejectUnknown(event.KindTokenMint, ev.Minter)
		return out, nil
	}
	price := e.marketPrice(ctx, m, ev.Timestamp)
	tokens := ev.TokenOut.Shift(-18)
	cost := ev.CollateralIn.Shift(-18).Mul(price)
	lot := e.book.Credit(m.SailToken, ev.User, tokens, cost, costbasis.LotMint, ev.Timestamp)
	if lot != nil {
		out.SailPositions = append(out.SailPositions, e.book.Get(m.SailToken, ev.User))
		if e.metrics != nil {
			e.metrics.LotsCreated.WithLabelValues(string(costbasis.LotMint)).Inc()
		}
	}
	return out, nil
}

func (e *Engine) handleTokenRedeem(ctx context.Context, ev *event.TokenRedeem) (Output, error) {
	var out Output
	m, ok := e.markets.ByMinter(ev.Minter)
	if !ok {
		e.rejectUnknown(event.KindTokenRedeem, ev.Minter)
		return out, nil
	}
	price := e.marketPrice(ctx, m, ev.Timestamp)
	proceeds := ev.CollateralOut.Shift(-18).Mul(price)
	res := e.book.Redeem(m.SailToken, ev.User, ev.TokenBurned.Shift(-18), proceeds, ev.Timestamp)
	if res.Clamped {
		e.logClamp(event.KindTokenRedeem, ev.Minter, ev.User)
	}
	out.SailPositions = append(out.SailPositions, res.Position)
	if e.metrics != nil {
		e.metrics.RealizedPnLTotal.WithLabelValues(m.SailToken).Inc()
	}
	return out, nil
}

// runSweep revalues every known balance record and settles every live
// campaign position, then advances the daily watermark. It runs inside the
// triggering event's transaction, so its rows ride the same Output.
func (e *Engine) runSweep(ctx context.Context, now int64, out *Output) {
	start := time.Now()
	count := 0

	for _, rec := range e.balances.Records() {
		m, ok := e.resolveSource(rec.SourceKind, rec.Source)
		if !ok {
			continue
		}
		balance, err := e.readGroundTruth(ctx, rec)
		if err != nil {
			if e.metrics != nil {
				e.metrics.BalanceReadFailures.WithLabelValues(rec.SourceKind.String()).Inc()
			}
			e.log.Warn().Err(err).
				Str("source", rec.Source).
				Str("user", rec.User).
				Msg("sweep balance read failed, keeping recorded balance")
			balance = rec.BalanceRaw
		}
		price := e.marketPrice(ctx, m, now)
		e.applyBalance(out, m, rec.SourceKind, rec.Source, rec.User, now, balance, price)
		count++
	}

	touched := e.campaigns.Sweep(now, func(campaign string) decimal.Decimal {
		if m, ok := e.markets.ByCampaign(campaign); ok {
			return m.BaseRatePerDay
		}
		return decimal.Zero
	})
	out.Positions = append(out.Positions, touched...)
	count += len(touched)

	e.sweep.MarkRun(now)
	out.SweepRun = now

	if e.metrics != nil {
		e.metrics.SweepRuns.Inc()
		e.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		e.metrics.SweepRecords.Observe(float64(count))
	}
	e.log.Info().Int64("at", now).Int("records", count).Msg("daily revaluation sweep")
}

func (e *Engine) resolveSource(kind event.SourceKind, source string) (*market.Market, bool) {
	switch kind {
	case event.SourceTokenHolding:
		return e.markets.ByAnchorToken(source)
	case event.SourceSailToken:
		return e.markets.BySailToken(source)
	case event.SourcePoolDeposit:
		return e.markets.ByPool(source)
	}
	return nil, false
}

func (e *Engine) readGroundTruth(ctx context.Context, rec *marks.Balance) (decimal.Decimal, error) {
	// Sweeps have no block context; read at the head.
	if rec.SourceKind == event.SourcePoolDeposit {
		return e.reader.PoolBalance(ctx, rec.Source, rec.User, 0)
	}
	return e.reader.TokenBalance(ctx, rec.Source, rec.User, 0)
}

func (e *Engine) rejectUnknown(kind event.Kind, contract string) {
	if e.metrics != nil {
		e.metrics.CoreEventsRejected.WithLabelValues(kind.String(), "unknown_contract").Inc()
	}
	e.log.Warn().Str("event", kind.String()).Str("contract", contract).Msg("event for unconfigured contract")
}

func (e *Engine) logClamp(kind event.Kind, contract, user string) {
	if e.metrics != nil {
		e.metrics.ClampedEvents.WithLabelValues(kind.String()).Inc()
	}
	e.log.Warn().
		Str("event", kind.String()).
		Str("contract", contract).
		Str("user", user).
		Msg("amount exceeded recorded balance, clamped")
}

func appendWindow(ws []*marks.Window, w *marks.Window) []*marks.Window {
	for _, existing := range ws {
		if existing == w {
			return ws
		}
	}
	return append(ws, w)
}
