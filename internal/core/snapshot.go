package core

import (
	"github.com/baofinance/harbor-app-sub003/internal/costbasis"
	"github.com/baofinance/harbor-app-sub003/internal/event"
	"github.com/baofinance/harbor-app-sub003/internal/genesis"
	"github.com/baofinance/harbor-app-sub003/internal/marks"
)

// Snapshot is the full engine state at a sequence boundary. The snapshot
// writer serializes it; on restart the engine restores from the most
// recent one and replays the event log from Sequence forward.
type Snapshot struct {
	Sequence       int64                      `json:"sequence"`
	SweepWatermark int64                      `json:"sweep_watermark"`
	Watermarks     map[string]event.OrderKey  `json:"watermarks"`
	Balances       []*marks.Balance           `json:"balances"`
	Windows        []*marks.Window            `json:"windows"`
	Positions      []*genesis.Position        `json:"positions"`
	Statuses       []*genesis.BonusStatus     `json:"statuses"`
	SailPositions  []*costbasis.Position      `json:"sail_positions"`
}

// Snapshot captures the engine's current state.
func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{
		Sequence:       e.sequence,
		SweepWatermark: e.sweep.LastRun(),
		Watermarks:     make(map[string]event.OrderKey, len(e.order.watermarks)),
		Balances:       e.balances.Records(),
		Windows:        e.windows.All(),
		Positions:      e.campaigns.Positions(),
		Statuses:       e.campaigns.Statuses(),
		SailPositions:  e.book.Positions(),
	}
	for partition, wm := range e.order.watermarks {
		s.Watermarks[partition] = wm
	}
	return s
}

// Restore reinstalls a snapshot. Must run before any event is processed.
func (e *Engine) Restore(s *Snapshot) {
	e.sequence = s.Sequence
	e.sweep = marks.NewSweepGate(s.SweepWatermark)
	for partition, wm := range s.Watermarks {
		e.order.SetWatermark(partition, wm)
	}
	for _, rec := range s.Balances {
		e.balances.Restore(rec)
	}
	for _, w := range s.Windows {
		e.windows.Open(w.SourceKind, w.Source, w.Start, w.End, w.Multiplier)
	}
	for _, p := range s.Positions {
		e.campaigns.Restore(p)
	}
	for _, st := range s.Statuses {
		e.campaigns.RestoreStatus(st)
	}
	for _, p := range s.SailPositions {
		e.book.Restore(p)
	}
}
