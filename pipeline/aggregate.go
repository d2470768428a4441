package pipeline

import (
	"context"
	"log/slog"

	"github.com/ontodash/ontodash/config"
	"github.com/ontodash/ontodash/registry"
	"github.com/ontodash/ontodash/results"
)

// Renderer builds the static report artifact for one ontology. Implemented
// by render.Renderer. Implementations must set the record's check results
// only on success: a populated results block marks the record as rendered
// and suppresses retries while content is unchanged.
type Renderer interface {
	Render(rec *results.Record, rawPath string) error
}

// RecordPublisher emits a finalized record to downstream consumers.
// Implemented by publish.Publisher; a nil publisher is a no-op.
type RecordPublisher interface {
	PublishRecord(rec *results.Record, runID string) error
}

// Aggregator is the second pass: it computes cross-ontology reuse counts and
// derived scores, then triggers report rendering for changed entries. It
// must only run once every per-ontology pipeline invocation has completed
// and persisted its record.
type Aggregator struct {
	cfg       *config.Config
	reg       *registry.Registry
	store     *results.Store
	renderer  Renderer
	publisher RecordPublisher
	logger    *slog.Logger
}

// NewAggregator creates the aggregation pass. publisher may be nil.
func NewAggregator(cfg *config.Config, reg *registry.Registry, store *results.Store, renderer Renderer, publisher RecordPublisher, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:       cfg,
		reg:       reg,
		store:     store,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

// Aggregate iterates the full registry, writing reuse counts and scores back
// into each successfully recorded ontology and rendering reports where
// needed. rawPathFor resolves the raw ontology file consumed by the
// compliance checks during rendering.
func (a *Aggregator) Aggregate(ctx context.Context, reuse *ReuseMap, runID string, rawPathFor func(namespace string) string) error {
	total := a.reg.Len()

	for _, ns := range a.reg.Namespaces() {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := a.logger.With(slog.String("namespace", ns), slog.String("run_id", runID))

		if !a.store.Exists(ns) {
			log.Info("No result record, skipping aggregation")
			continue
		}
		if a.cfg.Pipeline.SkipExisting {
			log.Warn("Skipping aggregation (skip-existing mode)")
			continue
		}

		rec, err := a.store.Load(ns)
		if err != nil {
			log.Error("Failed to load record for aggregation", slog.String("error", err.Error()))
			continue
		}

		a.aggregateOne(rec, reuse, total, rawPathFor(ns), log)

		if a.publisher != nil {
			if err := a.publisher.PublishRecord(rec, runID); err != nil {
				log.Warn("Failed to publish result event", slog.String("error", err.Error()))
			}
		}
	}

	runsCompleted.Inc()
	return nil
}

func (a *Aggregator) aggregateOne(rec *results.Record, reuse *ReuseMap, total int, rawPath string, log *slog.Logger) {
	// Records that failed this run are excluded from impact aggregation;
	// their stale metrics must not feed anyone's scores.
	if rec.Failed() {
		log.Info("Record carries failure, excluded from aggregation", slog.String("failure", rec.Failure))
		return
	}
	if !rec.HasMetrics() {
		log.Error("Record has no metrics block, excluded from aggregation")
		return
	}

	precision := a.cfg.Pipeline.ScorePrecision

	usedBy := reuse.UserCount(rec.BasePrefixes)
	rec.Metrics[results.MetricUsedBy] = usedBy

	impact := roundTo(float64(usedBy)/float64(total), precision)
	reuseScore := 0.0
	if pct, ok := rec.ReusedPercentage(); ok {
		reuseScore = roundTo(pct/100, precision)
	}
	rec.Metrics[results.MetricScore] = map[string]float64{
		"_impact": impact,
		"_reuse":  reuseScore,
	}

	if err := a.store.Save(rec); err != nil {
		log.Error("Failed to persist aggregated record", slog.String("error", err.Error()))
		return
	}

	// Render when the ontology changed this run or was never rendered
	// before. Rendering failure becomes a failure tag but does not unwind
	// the scores computed above.
	if !rec.Changed && rec.HasResults() {
		log.Info("Unchanged and already rendered, skipping report")
		return
	}

	log.Info("Rendering dashboard report")
	if err := a.renderer.Render(rec, rawPath); err != nil {
		log.Error("Failed to render report", slog.String("error", err.Error()))
		rec.ClearFailure()
		rec.Fail(results.FailDashboard)
		ontologyFailures.WithLabelValues(results.FailDashboard).Inc()
		if err := a.store.Save(rec); err != nil {
			log.Error("Failed to persist failure record", slog.String("error", err.Error()))
		}
		return
	}
	reportsRendered.Inc()

	if err := a.store.Save(rec); err != nil {
		log.Error("Failed to persist rendered record", slog.String("error", err.Error()))
	}
}
