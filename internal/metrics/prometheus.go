package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalogd"

// Metrics holds all Prometheus metrics for the catalog engine
type Metrics struct {
	// Option fetcher metrics
	OptionFetchesTotal    *prometheus.CounterVec
	OptionFetchDuration   *prometheus.HistogramVec
	FallbackRetainedTotal *prometheus.CounterVec
	DegradedDimensions    prometheus.Gauge

	// Staleness guard metrics
	StaleResponsesTotal *prometheus.CounterVec

	// Search / dataset metrics
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	DatasetEntries      prometheus.Gauge
	CapExceededTotal    prometheus.Counter

	// Remote client metrics
	RemoteRetriesTotal *prometheus.CounterVec

	// Session metrics
	FilterChangesTotal *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OptionFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "options",
			Name:      "fetches_total",
			Help:      "Total number of option list fetches by dimension and result",
		}, []string{"dimension", "result"}),
		OptionFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "options",
			Name:      "fetch_duration_seconds",
			Help:      "Histogram of option list fetch durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dimension"}),
		FallbackRetainedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "options",
			Name:      "fallback_retained_total",
			Help:      "Empty network lists ignored in favour of a non-empty fallback",
		}, []string{"dimension"}),
		DegradedDimensions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "options",
			Name:      "degraded_dimensions",
			Help:      "Number of dimensions currently serving last-known-good options",
		}),

		StaleResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request superseded them",
		}, []string{"component"}),

		SearchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of dataset searches by result",
		}, []string{"result"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Histogram of dataset search durations",
			Buckets:   prometheus.DefBuckets,
		}),
		DatasetEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "dataset_entries",
			Help:      "Entries held by the most recently applied dataset",
		}),
		CapExceededTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cap_exceeded_total",
			Help:      "Searches whose true match count exceeded the entry cap",
		}),

		RemoteRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "retries_total",
			Help:      "Retries issued by the remote catalog client",
		}, []string{"operation"}),

		FilterChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "filter_changes_total",
			Help:      "Filter changes applied by dimension",
		}, []string{"dimension"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of open sessions",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
