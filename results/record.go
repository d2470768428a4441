// Package results provides the durable per-ontology result records that
// carry pipeline state across runs.
package results

import (
	"github.com/ontodash/ontodash/checks"
)

// Failure tags. Each tag is terminal for the ontology for the current run;
// a later run clears it once the pipeline progresses past the failed stage.
const (
	FailMissingURL            = "missing_url"
	FailMissingBaseNamespaces = "missing_base_namespaces"
	FailDownload              = "failed_download"
	FailNotAnOntology         = "not_an_ontology"
	FailSHA256Hash            = "failed_sha256_hash"
	FailRobotBase             = "failed_robot_base"
	FailBrokenMetricsFile     = "broken_metrics_file"
	FailMissingMetricsFile    = "missing_metrics_file"
	FailEmptyOntology         = "empty_ontology"
	FailInconsistentOntology  = "inconsistent_ontology"
	FailMissingMetrics        = "missing_metrics"
	FailDashboard             = "failed_ontology_dashboard"
	FailCorruptedResultsFile  = "corrupted_results_file"
)

// Metric labels under which toolchain-derived values are flattened into a
// record. The labels are part of the on-disk record format.
const (
	MetricConsistency         = "Info: Logical consistency"
	MetricUnsatisfiable       = "Entities: Number of unsatisfiable classes"
	MetricAxiomCount          = "Axioms: Number of axioms"
	MetricClassCount          = "Entities: Number of classes"
	MetricObjPropertyCount    = "Entities: Number of object properties"
	MetricEntitiesReused      = "Entities: % of entities reused"
	MetricNamespaceAxiomUse   = "Info: Usage of namespaces in axioms"
	MetricIndividualCount     = "Entities: Number of individuals"
	MetricDataPropertyCount   = "Entities: Number of data properties"
	MetricAnnotationPropCount = "Entities: Number of annotation properties"
	MetricAxiomTypes          = "Axioms: Breakdown of axiom types"
	MetricClassExpressions    = "Info: Breakdown of OWL class expressions used"
	MetricOWL2DL              = "Info: Does the ontology fall under OWL 2 DL?"
	MetricSyntax              = "Info: Syntax"
	MetricUsedBy              = "Info: How many ontologies use it?"
	// MetricScore holds the derived scores under a private-convention key
	// set ("_impact", "_reuse") to keep them apart from toolchain values.
	MetricScore = "Info: Experimental dashboard score"
)

// Record is the durable state of one ontology across runs. Fields beyond the
// identity key are present only once the pipeline stage that produces them
// has completed; omitempty keeps absent fields out of the serialized form
// so "absent" and "empty" stay distinguishable.
type Record struct {
	Namespace     string                   `yaml:"namespace"`
	SHA256        string                   `yaml:"sha256_hash,omitempty"`
	Changed       bool                     `yaml:"changed"`
	BaseGenerated bool                     `yaml:"base_generated"`
	MirrorFrom    string                   `yaml:"mirror_from,omitempty"`
	BasePrefixes  []string                 `yaml:"base_prefixes,omitempty"`
	Metrics       map[string]any           `yaml:"metrics,omitempty"`
	Results       map[string]checks.Result `yaml:"results,omitempty"`
	Failure       string                   `yaml:"failure,omitempty"`
}

// NewRecord creates a fresh record for a namespace.
func NewRecord(namespace string) *Record {
	return &Record{Namespace: namespace}
}

// Fail replaces any previous failure tag with the given one.
func (r *Record) Fail(tag string) {
	r.Failure = tag
}

// ClearFailure removes a stale failure tag so a recovered ontology does not
// keep reporting an old error.
func (r *Record) ClearFailure() {
	r.Failure = ""
}

// Failed reports whether the record carries a failure tag.
func (r *Record) Failed() bool {
	return r.Failure != ""
}

// HasMetrics reports whether the record carries a populated metrics block.
func (r *Record) HasMetrics() bool {
	return len(r.Metrics) > 0
}

// HasResults reports whether compliance-check results were ever recorded,
// which doubles as the "rendered at least once" marker.
func (r *Record) HasResults() bool {
	return len(r.Results) > 0
}

// AxiomCount returns the recorded axiom count. ok is false when the metric
// is absent or not numeric.
func (r *Record) AxiomCount() (int, bool) {
	return intMetric(r.Metrics, MetricAxiomCount)
}

// Consistent returns the recorded consistency flag. ok is false when the
// metric is absent or not a bool.
func (r *Record) Consistent() (bool, bool) {
	v, present := r.Metrics[MetricConsistency]
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// ReusedPercentage returns the recorded entity reuse percentage. ok is false
// when the metric is absent or not numeric.
func (r *Record) ReusedPercentage() (float64, bool) {
	v, present := r.Metrics[MetricEntitiesReused]
	if !present {
		return 0, false
	}
	return floatValue(v)
}

// NamespaceAxiomUse returns the per-namespace axiom usage mapping recorded
// from the metrics artifact.
func (r *Record) NamespaceAxiomUse() map[string]int {
	v, present := r.Metrics[MetricNamespaceAxiomUse]
	if !present {
		return nil
	}
	switch m := v.(type) {
	case map[string]int:
		return m
	case map[string]any:
		// Round-tripped through YAML the mapping loses its concrete type.
		out := make(map[string]int, len(m))
		for k, raw := range m {
			if f, ok := floatValue(raw); ok {
				out[k] = int(f)
			}
		}
		return out
	}
	return nil
}

func intMetric(metrics map[string]any, key string) (int, bool) {
	v, present := metrics[key]
	if !present {
		return 0, false
	}
	f, ok := floatValue(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
