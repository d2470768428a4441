package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for pipeline runs. Exposed via the /metrics
// endpoint when ontodash runs resident in watch mode.
var (
	ontologiesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_ontologies_processed_total",
		Help: "Ontologies taken through the per-ontology pipeline.",
	})

	ontologiesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_ontologies_skipped_total",
		Help: "Ontologies skipped because their result record already existed.",
	})

	ontologyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontodash_ontology_failures_total",
		Help: "Per-ontology pipeline failures by failure tag.",
	}, []string{"failure"})

	toolchainInvocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_toolchain_invocations_total",
		Help: "External toolchain invocations for base and metrics generation.",
	})

	downloadsPerformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_downloads_total",
		Help: "Raw ontology files downloaded (cache misses or stale caches).",
	})

	reportsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_reports_rendered_total",
		Help: "Dashboard reports rendered by the aggregation pass.",
	})

	runsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontodash_runs_completed_total",
		Help: "Full two-pass dashboard runs completed.",
	})
)
