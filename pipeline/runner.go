package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ontodash/ontodash/config"
	"github.com/ontodash/ontodash/fetch"
	"github.com/ontodash/ontodash/registry"
	"github.com/ontodash/ontodash/results"
	"github.com/ontodash/ontodash/robot"
)

// Runner drives the per-ontology stage sequence for every registered
// ontology. Stages short-circuit on the first failure for that ontology;
// one ontology's failure never aborts the run.
type Runner struct {
	cfg      *config.Config
	reg      *registry.Registry
	store    *results.Store
	fetcher  *fetch.Fetcher
	gateway  robot.Gateway
	detector *ChangeDetector
	logger   *slog.Logger
	runID    string
}

// NewRunner creates a runner over the given registry.
func NewRunner(cfg *config.Config, reg *registry.Registry, store *results.Store, fetcher *fetch.Fetcher, gateway robot.Gateway, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		reg:      reg,
		store:    store,
		fetcher:  fetcher,
		gateway:  gateway,
		detector: NewChangeDetector(cfg.Pipeline.RedownloadAfter, cfg.Pipeline.ForceRegenerateAfter),
		logger:   logger,
		runID:    uuid.New().String(),
	}
}

// RunID identifies this run in logs and published events.
func (r *Runner) RunID() string {
	return r.runID
}

// RawPath returns the download path for a namespace.
func (r *Runner) RawPath(namespace string) string {
	return filepath.Join(r.cfg.Paths.BuildDir, namespace+"-raw.owl")
}

// BasePath returns the derived base file path for a namespace.
func (r *Runner) BasePath(namespace string) string {
	return filepath.Join(r.cfg.Paths.BuildDir, namespace+".owl")
}

// MetricsPath returns the metrics artifact path for a namespace.
func (r *Runner) MetricsPath(namespace string) string {
	return filepath.Join(r.cfg.Paths.BuildDir, namespace+"-metrics.yml")
}

// Run processes the full registry sequentially and returns the reuse map
// built from every ontology that carries metrics. The map feeds the
// aggregation pass and must be rebuilt on every run.
func (r *Runner) Run(ctx context.Context) (*ReuseMap, error) {
	reuse := NewReuseMap()

	for _, ns := range r.reg.Namespaces() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.processOne(ctx, ns, reuse)
	}

	return reuse, nil
}

// processOne takes one ontology through the stage sequence. Every stage
// transition that changes visible state persists the record, so a crash
// mid-pipeline leaves an informative partial record.
func (r *Runner) processOne(ctx context.Context, ns string, reuse *ReuseMap) {
	log := r.logger.With(slog.String("namespace", ns), slog.String("run_id", r.runID))

	if r.cfg.Pipeline.SkipExisting && r.store.Exists(ns) {
		log.Warn("Result record exists, skipping (skip-existing mode)")
		ontologiesSkipped.Inc()
		return
	}

	ontologiesProcessed.Inc()

	rec, err := r.store.Load(ns)
	switch {
	case errors.Is(err, results.ErrNotFound):
		rec = results.NewRecord(ns)
	case errors.Is(err, results.ErrCorrupted):
		log.Error("Corrupted results file, resetting record", slog.String("error", err.Error()))
		rec = results.NewRecord(ns)
		r.fail(rec, results.FailCorruptedResultsFile, log)
		return
	case err != nil:
		log.Error("Failed to load result record", slog.String("error", err.Error()))
		return
	}
	rec.Namespace = ns

	entry := r.reg.Ontologies[ns]

	// RESOLVE_URL
	if entry.MirrorFrom == "" {
		log.Error("Missing download url in registry")
		r.fail(rec, results.FailMissingURL, log)
		return
	}
	// A mirror that already points at a base artifact needs no base generation.
	makeBase := !strings.Contains(entry.MirrorFrom, ns+"-base.")

	// RESOLVE_BASE_NS
	if len(entry.BaseNamespaces) == 0 {
		log.Error("Missing base namespaces in registry")
		r.fail(rec, results.FailMissingBaseNamespaces, log)
		return
	}

	rawPath := r.RawPath(ns)
	basePath := r.BasePath(ns)
	metricsPath := r.MetricsPath(ns)

	// DOWNLOAD
	if r.detector.ShouldDownload(rawPath) {
		log.Info("Downloading ontology", slog.String("url", entry.MirrorFrom))
		downloadsPerformed.Inc()
		if err := r.fetcher.Download(ctx, entry.MirrorFrom, rawPath); err != nil {
			log.Error("Download failed", slog.String("error", err.Error()))
			r.fail(rec, results.FailDownload, log)
			return
		}
	} else {
		log.Info("Raw file downloaded recently, reusing cached copy")
	}

	// HASH
	hash, err := HashFile(rawPath)
	if err != nil {
		log.Error("Failed to hash downloaded file", slog.String("error", err.Error()))
		r.fail(rec, results.FailSHA256Hash, log)
		return
	}

	changed := r.detector.Changed(hash, rec.SHA256, rawPath)
	if !changed {
		log.Info("Content unchanged within regeneration window")
	}

	// Past change detection the previous run's failure is stale; the retry
	// starts from a clean slate.
	rec.ClearFailure()
	rec.Changed = changed
	rec.SHA256 = hash
	rec.BaseGenerated = makeBase
	rec.MirrorFrom = entry.MirrorFrom
	if err := r.store.Save(rec); err != nil {
		log.Error("Failed to persist record", slog.String("error", err.Error()))
		return
	}

	// VERIFY
	if err := fetch.Verify(rawPath, r.cfg.Pipeline.VerifyMinLines); err != nil {
		log.Error("Downloaded file failed verification", slog.String("error", err.Error()))
		r.fail(rec, results.FailNotAnOntology, log)
		return
	}

	// GENERATE_BASE_AND_METRICS: entered when content changed or a derived
	// artifact is missing from disk, so a lost base or metrics file heals
	// itself even for unchanged content.
	if changed || !fileExists(metricsPath) || !fileExists(basePath) {
		log.Info("Generating base file and metrics", slog.Bool("make_base", makeBase))
		toolchainInvocations.Inc()
		req := robot.Request{
			RawPath:        rawPath,
			BasePath:       basePath,
			MetricsPath:    metricsPath,
			BaseNamespaces: entry.BaseNamespaces,
			MakeBase:       makeBase,
			ExtraPrefixes:  r.cfg.Robot.ExtraPrefixes,
			Opts:           r.cfg.Robot.Opts,
		}
		if err := r.gateway.PrepareOntology(ctx, req); err != nil {
			log.Error("Toolchain failed", slog.String("error", err.Error()))
			r.fail(rec, results.FailRobotBase, log)
			return
		}

		// VALIDATE_METRICS
		if !fileExists(metricsPath) {
			log.Error("Metrics artifact missing after generation", slog.String("path", metricsPath))
			r.fail(rec, results.FailMissingMetricsFile, log)
			return
		}
		artifact, err := robot.LoadMetricsArtifact(metricsPath)
		if err != nil {
			log.Error("Broken metrics artifact", slog.String("error", err.Error()))
			r.fail(rec, results.FailBrokenMetricsFile, log)
			return
		}

		basePrefixes := artifact.Metrics.BasePrefixes(entry.BaseNamespaces)
		rec.BasePrefixes = basePrefixes
		rec.Metrics = flattenMetrics(&artifact.Metrics, basePrefixes, r.cfg.Pipeline.ScorePrecision)
		if err := r.store.Save(rec); err != nil {
			log.Error("Failed to persist record", slog.String("error", err.Error()))
			return
		}
	} else {
		log.Info("Derived artifacts current, skipping generation")
	}

	// The reuse map is ephemeral and rebuilt each run, so usage is recorded
	// from the record's metrics even when generation was skipped. An
	// ontology that resolved no base prefixes of its own contributes
	// nothing; it cannot be attributed as a reuser.
	if len(rec.BasePrefixes) > 0 {
		for usedPrefix := range rec.NamespaceAxiomUse() {
			reuse.Add(usedPrefix, ns)
		}
	}

	// Sanity gates run every run, re-validating metrics even when they were
	// carried over from a previous run's artifacts.
	if !rec.HasMetrics() {
		log.Error("Metrics not available")
		r.fail(rec, results.FailMissingMetrics, log)
		return
	}
	axioms, ok := rec.AxiomCount()
	if !ok {
		log.Error("Axiom count not available")
		r.fail(rec, results.FailMissingMetrics, log)
		return
	}
	if axioms < 1 {
		log.Error("Ontology has no axioms")
		r.fail(rec, results.FailEmptyOntology, log)
		return
	}
	consistent, ok := rec.Consistent()
	if !ok {
		log.Error("Consistency flag not available")
		r.fail(rec, results.FailMissingMetrics, log)
		return
	}
	if !consistent {
		log.Error("Ontology is logically inconsistent")
		r.fail(rec, results.FailInconsistentOntology, log)
		return
	}

	// RECORD
	if err := r.store.Save(rec); err != nil {
		log.Error("Failed to persist record", slog.String("error", err.Error()))
	}
}

// fail replaces any stale failure tag, persists the record, and counts the
// failure. The pipeline then moves on to the next ontology.
func (r *Runner) fail(rec *results.Record, tag string, log *slog.Logger) {
	rec.ClearFailure()
	rec.Fail(tag)
	ontologyFailures.WithLabelValues(tag).Inc()
	if err := r.store.Save(rec); err != nil {
		log.Error("Failed to persist failure record", slog.String("error", err.Error()))
	}
}

// flattenMetrics maps the toolchain artifact into the record's metrics block
// under fixed human-readable labels.
func flattenMetrics(m *robot.Metrics, basePrefixes []string, precision int) map[string]any {
	return map[string]any{
		results.MetricConsistency:         m.Consistent,
		results.MetricUnsatisfiable:       m.UnsatisfiableClassCount,
		results.MetricAxiomCount:          m.AxiomCountIncl,
		results.MetricClassCount:          m.ClassCountIncl,
		results.MetricObjPropertyCount:    m.ObjPropertyCountIncl,
		results.MetricEntitiesReused:      percentageReused(m.NamespaceEntityCountIncl, basePrefixes, precision),
		results.MetricNamespaceAxiomUse:   m.NamespaceAxiomCountIncl,
		results.MetricIndividualCount:     m.IndividualCountIncl,
		results.MetricDataPropertyCount:   m.DataPropertyCountIncl,
		results.MetricAnnotationPropCount: m.AnnotationPropertyCountIncl,
		results.MetricAxiomTypes:          m.AxiomTypeCountIncl,
		results.MetricClassExpressions:    m.ClassExpressionCountIncl,
		results.MetricOWL2DL:              m.OWL2DL,
		results.MetricSyntax:              m.Syntax,
	}
}

// percentageReused computes the share of entities that originate from
// namespaces outside the ontology's own base prefixes.
func percentageReused(entityCounts map[string]int, basePrefixes []string, precision int) float64 {
	base := make(map[string]struct{}, len(basePrefixes))
	for _, p := range basePrefixes {
		base[p] = struct{}{}
	}

	var total, external int
	for prefix, count := range entityCounts {
		total += count
		if _, ok := base[prefix]; !ok {
			external += count
		}
	}
	if total == 0 {
		return 0
	}
	return roundTo(100*float64(external)/float64(total), precision)
}

// roundTo rounds to a fixed number of decimal places.
func roundTo(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	return math.Round(v*factor) / factor
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
