package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Relayer metrics
	RelayerTxSubmitted    prometheus.Counter
	RelayerTxConfirmed    prometheus.Counter
	RelayerTxReverted     prometheus.Counter
	RelayerNonceResyncs   prometheus.Counter
	RelayerTxInflight     prometheus.Gauge
	RelayerConfirmLatency prometheus.Histogram

	// Saga metrics
	SagasStarted   *prometheus.CounterVec
	SagasFailed    *prometheus.CounterVec
	OrphansFlagged prometheus.Counter

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		RelayerTxSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_tx_submitted_total",
			Help:      "Total number of transactions handed to the relayer",
		}),
		RelayerTxConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_tx_confirmed_total",
			Help:      "Total number of transactions mined successfully",
		}),
		RelayerTxReverted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_tx_reverted_total",
			Help:      "Total number of transactions mined but reverted",
		}),
		RelayerNonceResyncs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_nonce_resyncs_total",
			Help:      "Total number of nonce counter resynchronizations",
		}),
		RelayerTxInflight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_tx_inflight",
			Help:      "Transactions currently awaiting confirmation",
		}),
		RelayerConfirmLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relayer_confirm_duration_seconds",
			Help:      "Time from submission to mined receipt",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		SagasStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registration_sagas_started_total",
			Help:      "Registration sagas started, by kind",
		}, []string{"kind"}),
		SagasFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registration_sagas_failed_total",
			Help:      "Registration sagas that ended in a failed status, by kind",
		}, []string{"kind"}),
		OrphansFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconciliation_orphans_flagged_total",
			Help:      "Local identities flagged with no confirmed registration event",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}
