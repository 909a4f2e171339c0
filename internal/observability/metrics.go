package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges shared by
// the ingestion and classification pipelines.
type Metrics struct {
	RowsRead          prometheus.Counter
	RowsWithoutValue  prometheus.Counter
	RecordsAggregated prometheus.Counter
	RecordsClassified prometheus.Counter
	RowsPersisted     *prometheus.CounterVec // labels: table={flights,humidity_rank}
	PersistFailures   *prometheus.CounterVec // labels: table={flights,humidity_rank}

	StageRetries  *prometheus.CounterVec   // labels: stage
	StageDuration *prometheus.HistogramVec // labels: stage

	MilestonesAppended *prometheus.CounterVec // labels: kind
	GateWaitDuration   prometheus.Histogram

	PipelineRunning *prometheus.GaugeVec // labels: pipeline={ingestion,classification}
	RunsCompleted   *prometheus.CounterVec
	RunsFailed      *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsWithoutValue,
		m.RecordsAggregated,
		m.RecordsClassified,
		m.RowsPersisted,
		m.PersistFailures,
		m.StageRetries,
		m.StageDuration,
		m.MilestonesAppended,
		m.GateWaitDuration,
		m.PipelineRunning,
		m.RunsCompleted,
		m.RunsFailed,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "rows_read_total",
			Help:      "Total raw observation rows read from the feed.",
		}),
		RowsWithoutValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "rows_without_humidity_total",
			Help:      "Raw rows dropped for missing or malformed humidity.",
		}),
		RecordsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "records_aggregated_total",
			Help:      "Canonical aggregate records produced.",
		}),
		RecordsClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "records_classified_total",
			Help:      "Records assigned a takeoff rank.",
		}),
		RowsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "rows_persisted_total",
			Help:      "Rows committed to the store by table.",
		}, []string{"table"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "persist_failures_total",
			Help:      "Failed batch writes by table. Failures are surfaced, never swallowed.",
		}, []string{"table"}),
		StageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "stage_retries_total",
			Help:      "Stage attempts beyond the first, by stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "takeoff_humidity",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		MilestonesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "milestones_appended_total",
			Help:      "Milestone events appended to the operations log by kind.",
		}, []string{"kind"}),
		GateWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "takeoff_humidity",
			Name:      "gate_wait_duration_seconds",
			Help:      "Time spent blocked on the readiness gate.",
			Buckets:   []float64{1, 5, 15, 60, 120, 300, 600, 1800},
		}),
		PipelineRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "takeoff_humidity",
			Name:      "pipeline_running",
			Help:      "1 while the named pipeline has a run in flight.",
		}, []string{"pipeline"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "runs_completed_total",
			Help:      "Successful pipeline runs by pipeline.",
		}, []string{"pipeline"}),
		RunsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takeoff_humidity",
			Name:      "runs_failed_total",
			Help:      "Failed pipeline runs by pipeline.",
		}, []string{"pipeline"}),
	}
}
