package core_test

import (
	"testing"

	"github.com/baofinance/harbor-app-sub003/internal/core"
	"github.com/baofinance/harbor-app-sub003/internal/event"
)

func TestOrderKey_Before(t *testing.T) {
	a := event.OrderKey{BlockNumber: 10, LogIndex: 5}

	if !a.Before(event.OrderKey{BlockNumber: 11, LogIndex: 0}) {
		t.Error("higher block should order after")
	}
	if !a.Before(event.OrderKey{BlockNumber: 10, LogIndex: 6}) {
		t.Error("higher log index in the same block should order after")
	}
	if a.Before(event.OrderKey{BlockNumber: 10, LogIndex: 5}) {
		t.Error("equal keys are not before each other")
	}
	if a.Before(event.OrderKey{BlockNumber: 9, LogIndex: 99}) {
		t.Error("lower block should not order after")
	}
}

func TestOrderGuard_AdvancesWatermark(t *testing.T) {
	g := core.NewOrderGuard()

	if g.Observe("p1", event.OrderKey{BlockNumber: 10, LogIndex: 0}) {
		t.Error("first key should not be a replay")
	}
	if g.Observe("p1", event.OrderKey{BlockNumber: 10, LogIndex: 1}) {
		t.Error("advancing key should not be a replay")
	}

	wm, ok := g.Watermark("p1")
	if !ok || wm.BlockNumber != 10 || wm.LogIndex != 1 {
		t.Errorf("watermark: got %+v (ok=%v)", wm, ok)
	}
}

func TestOrderGuard_DetectsReplay(t *testing.T) {
	g := core.NewOrderGuard()
	g.Observe("p1", event.OrderKey{BlockNumber: 20, LogIndex: 3})

	// Reorg replay at or below the watermark.
	if !g.Observe("p1", event.OrderKey{BlockNumber: 20, LogIndex: 3}) {
		t.Error("equal key should report as replay")
	}
	if !g.Observe("p1", event.OrderKey{BlockNumber: 15, LogIndex: 0}) {
		t.Error("lower key should report as replay")
	}
	if g.Replays("p1") != 2 {
		t.Errorf("replay count: got %d, want 2", g.Replays("p1"))
	}

	// Replays never regress the watermark.
	wm, _ := g.Watermark("p1")
	if wm.BlockNumber != 20 || wm.LogIndex != 3 {
		t.Errorf("watermark regressed: %+v", wm)
	}
}

func TestOrderGuard_PartitionsAreIndependent(t *testing.T) {
	g := core.NewOrderGuard()
	g.Observe("p1", event.OrderKey{BlockNumber: 100})

	if g.Observe("p2", event.OrderKey{BlockNumber: 1}) {
		t.Error("fresh partition should accept any key")
	}
}

func TestOrderGuard_SeededWatermark(t *testing.T) {
	g := core.NewOrderGuard()
	g.SetWatermark("p1", event.OrderKey{BlockNumber: 50, LogIndex: 2})

	if !g.Observe("p1", event.OrderKey{BlockNumber: 49}) {
		t.Error("key below the seeded watermark should be a replay")
	}
	if g.Observe("p1", event.OrderKey{BlockNumber: 51}) {
		t.Error("key above the seeded watermark should pass")
	}
}
