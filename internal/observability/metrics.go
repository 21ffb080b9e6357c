package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the marks ledger.
type Metrics struct {
	// Core processing
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreSequence       prometheus.Gauge

	// Accrual
	MarksSettled     *prometheus.CounterVec
	MarksForfeited   prometheus.Counter
	BonusesAwarded   *prometheus.CounterVec
	WindowsOpened    *prometheus.CounterVec
	SweepRuns        prometheus.Counter
	SweepDuration    prometheus.Histogram
	SweepRecords     prometheus.Histogram
	ZeroPriceReads      *prometheus.CounterVec
	BalanceReadFailures *prometheus.CounterVec
	ClampedEvents       *prometheus.CounterVec
	RealizedPnLTotal *prometheus.CounterVec
	LotsCreated      *prometheus.CounterVec

	// Idempotency
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Duration    prometheus.Histogram
	EventOutOfOrder       *prometheus.CounterVec

	// Channels
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PersistBackpressure prometheus.Counter

	// Persistence
	PersistEventsWritten prometheus.Counter
	PersistRowsWritten   *prometheus.CounterVec
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// Snapshot
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge

	// Query API
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_core_events_applied_total",
			Help: "Events successfully applied by core",
		}, []string{"event_type"}),

		CoreEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_core_events_rejected_total",
			Help: "Events rejected (dedup, watermark, unknown contract)",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harbor_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event in core",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harbor_core_sequence",
			Help: "Current global sequence number",
		}),

		MarksSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_marks_settled_total",
			Help: "Marks settled into records",
		}, []string{"source_kind"}),

		MarksForfeited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_marks_forfeited_total",
			Help: "Marks forfeited on campaign withdrawals",
		}),

		BonusesAwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_bonuses_awarded_total",
			Help: "Campaign bonus marks awarded",
		}, []string{"bonus_type"}),

		WindowsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_boost_windows_opened_total",
			Help: "Boost windows opened (lazy/explicit)",
		}, []string{"path"}),

		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_sweep_runs_total",
			Help: "Daily revaluation sweeps executed",
		}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_sweep_duration_seconds",
			Help:    "Daily sweep execution time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		SweepRecords: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_sweep_records",
			Help:    "Records revalued per sweep",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),

		ZeroPriceReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_zero_price_reads_total",
			Help: "Oracle reads that degraded to the zero-price sentinel",
		}, []string{"market_id"}),

		BalanceReadFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_balance_read_failures_total",
			Help: "Ground-truth balance reads that fell back to the recorded balance",
		}, []string{"source"}),

		ClampedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_clamped_events_total",
			Help: "Malformed amounts clamped to recorded balances",
		}, []string{"event_type"}),

		RealizedPnLTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_realized_pnl_events_total",
			Help: "Redemptions that realized P&L",
		}, []string{"token"}),

		LotsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_cost_basis_lots_created_total",
			Help: "FIFO lots appended",
		}, []string{"lot_kind"}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harbor_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		EventOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_event_out_of_order_total",
			Help: "Events below the partition watermark",
		}, []string{"partition"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harbor_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harbor_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harbor_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistRowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_persist_rows_written_total",
			Help: "State rows upserted, by table",
		}, []string{"table"}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harbor_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harbor_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harbor_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harbor_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harbor_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harbor_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harbor_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
