package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PoolLedger.
type Metrics struct {
	// --- Core Processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreJournals         *prometheus.CounterVec
	CoreSequence         prometheus.Gauge

	// --- Latency ---
	IngestToApply     *prometheus.HistogramVec
	ApplyToPersist    prometheus.Histogram
	QueryFreshnessLag *prometheus.HistogramVec
	PersistBatchDur   prometheus.Histogram
	ProjectionUpdateDur *prometheus.HistogramVec

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & Ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupTier2Duration    prometheus.Histogram
	CommandSequenceGap    *prometheus.CounterVec
	CommandOutOfOrder     *prometheus.CounterVec

	// --- Pool Domain ---
	TreasuryBalance     prometheus.Gauge
	PoliciesActive      prometheus.Gauge
	PoliciesCreated     prometheus.Counter
	PremiumsCollected   prometheus.Counter
	RiskScoreUpdates    prometheus.Counter
	ClaimsSubmitted     prometheus.Counter
	ClaimsSettled       *prometheus.CounterVec
	ClaimPayoutTotal    prometheus.Counter
	VotesCast           *prometheus.CounterVec
	SurplusDistributed  prometheus.Counter
	SurplusShareReports prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	QueryCacheHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core Processing
		CoreCommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_core_commands_applied_total",
			Help: "Commands successfully applied by core",
		}, []string{"command_type"}),

		CoreCommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_core_commands_rejected_total",
			Help: "Commands rejected (dedup, ordering, domain error)",
		}, []string{"command_type", "reason"}),

		CoreCommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in core",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_core_sequence",
			Help: "Current global sequence number",
		}),

		// Latency
		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_ingest_to_apply_seconds",
			Help:    "Edge receive to core apply complete",
			Buckets: ingestBuckets,
		}, []string{"command_type"}),

		ApplyToPersist: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_apply_to_persist_seconds",
			Help:    "Core emit to Postgres commit",
			Buckets: latencyBuckets,
		}),

		QueryFreshnessLag: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_query_freshness_lag_seconds",
			Help:    "Core sequence minus projection sequence (in time)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0},
		}, []string{"endpoint"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_publish_drops_total",
			Help: "Outputs dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		// Idempotency & Ordering
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupTier2Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		CommandSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_command_sequence_gap_total",
			Help: "Source sequence gaps (tolerated)",
		}, []string{"partition"}),

		CommandOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_command_out_of_order_total",
			Help: "Stale command rejections",
		}, []string{"partition"}),

		// Pool Domain
		TreasuryBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_treasury_balance",
			Help: "Current pool treasury balance",
		}),

		PoliciesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_policies_active",
			Help: "Active policies",
		}),

		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_policies_created_total",
			Help: "Policies created by joins",
		}),

		PremiumsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_premiums_collected_total",
			Help: "Total premium amount collected",
		}),

		RiskScoreUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_risk_score_updates_total",
			Help: "Oracle risk score updates applied",
		}),

		ClaimsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_claims_submitted_total",
			Help: "Claims admitted",
		}),

		ClaimsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_claims_settled_total",
			Help: "Claims settled by outcome",
		}, []string{"outcome"}),

		ClaimPayoutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_claim_payout_total",
			Help: "Total amount paid out on approved claims",
		}),

		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_votes_cast_total",
			Help: "Votes recorded",
		}, []string{"approve"}),

		SurplusDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_surplus_distributions_total",
			Help: "Surplus distribution computations",
		}),

		SurplusShareReports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_surplus_share_reports_total",
			Help: "Per-policy share reports published",
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_events_written_total",
			Help: "Envelopes written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_size",
			Help:    "Envelopes per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_replay_events_total",
			Help: "Envelopes replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		QueryCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_query_cache_hits_total",
			Help: "Redis cache lookups by result",
		}, []string{"endpoint", "result"}),
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
