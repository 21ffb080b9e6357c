package core

import (
	"github.com/baofinance/harbor-app-sub003/internal/event"
)

// OrderGuard tracks the highest (block number, log index) seen per
// partition. Upstream guarantees non-decreasing delivery, so a key below
// the watermark is a reorg replay, not a defect; the guard reports it and
// leaves rejection decisions to the handlers, which are idempotent.
type OrderGuard struct {
	watermarks map[string]event.OrderKey
	replays    map[string]int64
}

func NewOrderGuard() *OrderGuard {
	return &OrderGuard{
		watermarks: make(map[string]event.OrderKey),
		replays:    make(map[string]int64),
	}
}

// Observe records an order key and reports whether it replays at or below
// the partition's watermark.
func (g *OrderGuard) Observe(partition string, key event.OrderKey) (replayed bool) {
	wm, seen := g.watermarks[partition]
	if seen && !wm.Before(key) {
		g.replays[partition]++
		return true
	}
	g.watermarks[partition] = key
	return false
}

// Watermark returns the highest key seen for a partition.
func (g *OrderGuard) Watermark(partition string) (event.OrderKey, bool) {
	wm, ok := g.watermarks[partition]
	return wm, ok
}

// SetWatermark seeds a partition during snapshot recovery.
func (g *OrderGuard) SetWatermark(partition string, key event.OrderKey) {
	g.watermarks[partition] = key
}

// Replays returns how many replayed keys a partition has produced.
func (g *OrderGuard) Replays(partition string) int64 {
	return g.replays[partition]
}
