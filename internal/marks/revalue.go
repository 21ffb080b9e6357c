package marks

// SweepGate decides when the daily revaluation sweep runs. Any observed
// block tick may trigger it, but at most once per UTC day, and replayed
// ticks at or below the watermark never re-trigger it.
type SweepGate struct {
	lastRun int64
}

func NewSweepGate(lastRun int64) *SweepGate {
	return &SweepGate{lastRun: lastRun}
}

// ShouldRun reports whether a tick at now crosses into a new UTC day past
// the watermark. It does not advance the watermark.
func (g *SweepGate) ShouldRun(now int64) bool {
	if now <= g.lastRun {
		return false
	}
	return utcDay(now) > utcDay(g.lastRun)
}

// MarkRun advances the watermark after a completed sweep. Timestamps not
// strictly greater than the watermark are ignored, keeping the gate
// monotonic under replay.
func (g *SweepGate) MarkRun(now int64) {
	if now > g.lastRun {
		g.lastRun = now
	}
}

// LastRun returns the current watermark for persistence.
func (g *SweepGate) LastRun() int64 { return g.lastRun }

// utcDay maps a unix timestamp to its UTC day ordinal.
func utcDay(ts int64) int64 {
	if ts <= 0 {
		return -1
	}
	return ts / SecondsPerDay
}
