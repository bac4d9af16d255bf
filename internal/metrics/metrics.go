// Package metrics holds the prometheus collectors of the resolution core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution phases, used as the "phase" label.
const (
	PhaseIndex    = "index"
	PhaseCache    = "cache"
	PhaseAutoload = "autoload"
	PhasePSR4     = "psr4"
	PhaseStubs    = "stubs"
	PhaseMiss     = "miss"
)

var (
	ClassResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phpls_class_resolution_total",
		Help: "Class lookups by the phase that answered them.",
	}, []string{"phase"})

	FunctionResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phpls_function_resolution_total",
		Help: "Function lookups by the phase that answered them.",
	}, []string{"phase"})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phpls_parse_failures_total",
		Help: "Parses that were aborted by the parse boundary.",
	})

	FileCacheUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phpls_file_cache_updates_total",
		Help: "File cache entries replaced after a parse.",
	})

	ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phpls_parse_seconds",
		Help:    "Time spent extracting declarations from a source file.",
		Buckets: prometheus.DefBuckets,
	})

	IndexedClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phpls_indexed_classes",
		Help: "Number of class locations in the global class index.",
	})

	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phpls_rpc_requests_total",
		Help: "JSON-RPC requests by method.",
	}, []string{"method"})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phpls_rpc_request_seconds",
		Help:    "Time spent answering JSON-RPC requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
