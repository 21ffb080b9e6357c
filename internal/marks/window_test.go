package marks_test

import (
	"testing"

	"github.com/baofinance/harbor-app-sub003/internal/event"
	"github.com/baofinance/harbor-app-sub003/internal/marks"
)

func TestWindow_MultiplierAt(t *testing.T) {
	w := &marks.Window{Start: 100, End: 200, Multiplier: d("10")}

	if got := w.MultiplierAt(99); !got.Equal(d("1")) {
		t.Errorf("before start: got %s, want 1", got)
	}
	if got := w.MultiplierAt(100); !got.Equal(d("10")) {
		t.Errorf("at start: got %s, want 10", got)
	}
	if got := w.MultiplierAt(199); !got.Equal(d("10")) {
		t.Errorf("inside: got %s, want 10", got)
	}
	// End is exclusive.
	if got := w.MultiplierAt(200); !got.Equal(d("1")) {
		t.Errorf("at end: got %s, want 1", got)
	}

	var nilWindow *marks.Window
	if got := nilWindow.MultiplierAt(150); !got.Equal(d("1")) {
		t.Errorf("nil window: got %s, want 1", got)
	}
}

func TestWindowRegistry_GetOrCreateIsLazy(t *testing.T) {
	r := marks.NewWindowRegistry()

	w := r.GetOrCreate(event.SourceTokenHolding, token, 5000, d("10"))
	if w.Start != 5000 || w.End != 5000+marks.BoostWindowDuration {
		t.Errorf("lazy window bounds: got [%d, %d)", w.Start, w.End)
	}

	// A second call must return the same window, not restart it.
	again := r.GetOrCreate(event.SourceTokenHolding, token, 9000, d("10"))
	if again != w {
		t.Error("GetOrCreate should return the existing window")
	}
	if again.Start != 5000 {
		t.Errorf("lazy window restarted: start %d", again.Start)
	}
}

func TestWindowRegistry_OpenReplacesLazyWindow(t *testing.T) {
	r := marks.NewWindowRegistry()
	r.GetOrCreate(event.SourceTokenHolding, token, 5000, d("10"))

	// Campaign end pins the window to its own timestamp.
	w := r.Open(event.SourceTokenHolding, token, 20000, 20000+marks.BoostWindowDuration, d("10"))
	if got := r.Get(event.SourceTokenHolding, token); got != w {
		t.Error("Open should replace the lazy window")
	}
	if w.Start != 20000 {
		t.Errorf("pinned start: got %d, want 20000", w.Start)
	}
}

func TestWindowRegistry_OnePerSourceKind(t *testing.T) {
	r := marks.NewWindowRegistry()
	holding := r.GetOrCreate(event.SourceTokenHolding, token, 1000, d("10"))
	sail := r.GetOrCreate(event.SourceSailToken, token, 2000, d("2"))
	if holding == sail {
		t.Error("windows must be keyed by source kind, not address alone")
	}
}

func TestDefaultMultiplier(t *testing.T) {
	if got := marks.DefaultMultiplier(event.SourceTokenHolding); !got.Equal(d("10")) {
		t.Errorf("holding multiplier: got %s, want 10", got)
	}
	if got := marks.DefaultMultiplier(event.SourcePoolDeposit); !got.Equal(d("10")) {
		t.Errorf("pool multiplier: got %s, want 10", got)
	}
	if got := marks.DefaultMultiplier(event.SourceSailToken); !got.Equal(d("2")) {
		t.Errorf("sail multiplier: got %s, want 2", got)
	}
}

func TestSweepGate(t *testing.T) {
	g := marks.NewSweepGate(0)

	// Cold start: the first tick of any day triggers.
	if !g.ShouldRun(100000) {
		t.Error("cold gate should run on first tick")
	}
	g.MarkRun(100000)

	// Same UTC day: no re-run.
	if g.ShouldRun(100001) {
		t.Error("gate should not re-run within the same day")
	}
	// Replayed earlier tick: no run.
	if g.ShouldRun(99000) {
		t.Error("gate should ignore ticks at or below the watermark")
	}
	// Next UTC day.
	if !g.ShouldRun(2 * 86400) {
		t.Error("gate should run on the next UTC day")
	}

	// MarkRun never moves backwards.
	g.MarkRun(50)
	if g.LastRun() != 100000 {
		t.Errorf("watermark regressed to %d", g.LastRun())
	}
}
