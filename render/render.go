// Package render builds the static per-ontology dashboard report from a
// result record, running the compliance checks as part of the build.
package render

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ontodash/ontodash/checks"
	"github.com/ontodash/ontodash/results"
)

// ReportFile is the rendered report file name inside each ontology's
// dashboard directory.
const ReportFile = "dashboard.html"

// Check labels under which compliance results are recorded.
const (
	CheckCommonFormat = "FP02 Common Format"
	CheckURIs         = "FP03 URIs"
	CheckVersioning   = "FP04 Versioning"
)

// Renderer writes one static report per ontology.
type Renderer struct {
	dashboardDir string
	logger       *slog.Logger
	tmpl         *template.Template
}

// NewRenderer creates a renderer writing under dashboardDir.
func NewRenderer(dashboardDir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		dashboardDir: dashboardDir,
		logger:       logger,
		tmpl:         template.Must(template.New("dashboard").Parse(dashboardTemplate)),
	}
}

// Render runs the compliance checks against the record and its raw ontology
// file, writes the report artifact, and stores the check results on the
// record. Results are assigned only once the report exists: a populated
// results block marks the record as successfully rendered, so a failed
// render must leave it untouched for the next run to retry. The caller
// persists the updated record.
func (r *Renderer) Render(rec *results.Record, rawPath string) error {
	syntax, _ := rec.Metrics[results.MetricSyntax].(string)

	checkResults := map[string]checks.Result{
		CheckCommonFormat: checks.CommonFormat(syntax),
		CheckURIs:         checks.ValidURIs(rec.Namespace, rawPath),
		CheckVersioning:   checks.Versioning(rawPath),
	}

	dir := filepath.Join(r.dashboardDir, rec.Namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	out, err := os.Create(filepath.Join(dir, ReportFile))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer out.Close()

	if err := r.tmpl.Execute(out, buildView(rec, checkResults)); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	rec.Results = checkResults

	r.logger.Debug("Rendered dashboard report",
		slog.String("namespace", rec.Namespace),
		slog.String("path", filepath.Join(dir, ReportFile)))
	return nil
}

type reportView struct {
	Namespace  string
	MirrorFrom string
	Metrics    []metricRow
	Checks     []checkRow
}

type metricRow struct {
	Label string
	Value any
}

type checkRow struct {
	Label   string
	Status  checks.Status
	Comment string
}

func buildView(rec *results.Record, checkResults map[string]checks.Result) reportView {
	view := reportView{
		Namespace:  rec.Namespace,
		MirrorFrom: rec.MirrorFrom,
	}

	labels := make([]string, 0, len(rec.Metrics))
	for label := range rec.Metrics {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		view.Metrics = append(view.Metrics, metricRow{Label: label, Value: rec.Metrics[label]})
	}

	names := make([]string, 0, len(checkResults))
	for name := range checkResults {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := checkResults[name]
		view.Checks = append(view.Checks, checkRow{Label: name, Status: res.Status, Comment: res.Comment})
	}

	return view
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Namespace}} dashboard</title>
</head>
<body>
<h1>{{.Namespace}}</h1>
<p>Source: <a href="{{.MirrorFrom}}">{{.MirrorFrom}}</a></p>
<h2>Compliance</h2>
<table>
<tr><th>Check</th><th>Status</th><th>Comment</th></tr>
{{- range .Checks}}
<tr><td>{{.Label}}</td><td>{{.Status}}</td><td>{{.Comment}}</td></tr>
{{- end}}
</table>
<h2>Metrics</h2>
<table>
<tr><th>Metric</th><th>Value</th></tr>
{{- range .Metrics}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
</body>
</html>
`
