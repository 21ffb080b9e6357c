// Package marks implements time-weighted loyalty point accrual over
// USD-valued balances, with promotional boost windows and a watermark-gated
// daily revaluation sweep.
package marks

import (
	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/event"
)

const (
	// SecondsPerDay is the accrual day used by every rate in the system.
	SecondsPerDay = 86400

	// BoostWindowDuration is the span of an explicitly opened window,
	// in seconds (8 days).
	BoostWindowDuration = 8 * SecondsPerDay
)

var (
	one = decimal.NewFromInt(1)

	// HoldingBoostMultiplier applies to token-holding and pool-deposit
	// sources when a campaign-end window opens.
	HoldingBoostMultiplier = decimal.NewFromInt(10)

	// SailBoostMultiplier applies to leveraged-token sources.
	SailBoostMultiplier = decimal.NewFromInt(2)
)

// Window is a bounded multiplier interval [Start, End) for one reward
// source. Outside the interval the source accrues at its base rate.
type Window struct {
	SourceKind event.SourceKind
	Source     string
	Start      int64
	End        int64
	Multiplier decimal.Decimal
}

// MultiplierAt returns the window's multiplier when now falls inside
// [Start, End), else 1. A nil window always yields 1.
func (w *Window) MultiplierAt(now int64) decimal.Decimal {
	if w == nil || now < w.Start || now >= w.End {
		return one
	}
	return w.Multiplier
}

// Clone returns a value copy for emitted outputs.
func (w *Window) Clone() *Window {
	c := *w
	return &c
}

type windowKey struct {
	kind   event.SourceKind
	source string
}

// WindowRegistry holds at most one window per (source kind, source
// address). It is only mutated from the single-writer event loop.
type WindowRegistry struct {
	windows map[windowKey]*Window
}

func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{windows: make(map[windowKey]*Window)}
}

// Get returns the window for a source, or nil.
func (r *WindowRegistry) Get(kind event.SourceKind, source string) *Window {
	return r.windows[windowKey{kind, source}]
}

// GetOrCreate returns the existing window or lazily opens one starting at
// now with the default duration and the given multiplier. The lazy path
// covers sources that see activity before any campaign-end trigger.
func (r *WindowRegistry) GetOrCreate(kind event.SourceKind, source string, now int64, multiplier decimal.Decimal) *Window {
	key := windowKey{kind, source}
	if w, ok := r.windows[key]; ok {
		return w
	}
	w := &Window{
		SourceKind: kind,
		Source:     source,
		Start:      now,
		End:        now + BoostWindowDuration,
		Multiplier: multiplier,
	}
	r.windows[key] = w
	return w
}

// Open installs a window with explicit bounds, replacing any existing one.
// The campaign-end path uses this to pin the start to the end-of-campaign
// timestamp even when a lazy window was created earlier.
func (r *WindowRegistry) Open(kind event.SourceKind, source string, start, end int64, multiplier decimal.Decimal) *Window {
	w := &Window{
		SourceKind: kind,
		Source:     source,
		Start:      start,
		End:        end,
		Multiplier: multiplier,
	}
	r.windows[windowKey{kind, source}] = w
	return w
}

// ActiveMultiplier reports the effective multiplier for a source at now.
func (r *WindowRegistry) ActiveMultiplier(kind event.SourceKind, source string, now int64) decimal.Decimal {
	return r.Get(kind, source).MultiplierAt(now)
}

// All returns every registered window. Used by the snapshot writer.
func (r *WindowRegistry) All() []*Window {
	out := make([]*Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	return out
}

// DefaultMultiplier returns the boost multiplier used when a window opens
// for the given source kind.
func DefaultMultiplier(kind event.SourceKind) decimal.Decimal {
	if kind == event.SourceSailToken {
		return SailBoostMultiplier
	}
	return HoldingBoostMultiplier
}
