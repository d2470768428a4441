package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ontodash/ontodash/checks"
	"github.com/ontodash/ontodash/config"
	"github.com/ontodash/ontodash/fetch"
	"github.com/ontodash/ontodash/registry"
	"github.com/ontodash/ontodash/render"
	"github.com/ontodash/ontodash/results"
	"github.com/ontodash/ontodash/robot"
)

// ontologyBody is a minimal raw file that passes the line-count sanity check.
func ontologyBody(ns string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n<rdf:RDF>\n")
	b.WriteString(fmt.Sprintf("<owl:Ontology rdf:about=\"http://purl.obolibrary.org/obo/%s.owl\">\n", ns))
	b.WriteString(fmt.Sprintf("<owl:versionIRI rdf:resource=\"http://purl.obolibrary.org/obo/%s/2024-01-09/%s.owl\"/>\n", ns, ns))
	b.WriteString("</owl:Ontology>\n")
	for i := 0; i < 8; i++ {
		b.WriteString("<owl:Class/>\n")
	}
	b.WriteString("</rdf:RDF>\n")
	return b.String()
}

// fakeGateway stands in for the external toolchain: it stages a base file
// and writes a canned metrics artifact per namespace.
type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	metrics map[string]robot.Metrics
	err     error
}

func (g *fakeGateway) PrepareOntology(_ context.Context, req robot.Request) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if g.err != nil {
		return g.err
	}

	if err := os.WriteFile(req.BasePath, []byte("<rdf:RDF/>\n"), 0644); err != nil {
		return err
	}

	ns := strings.TrimSuffix(filepath.Base(req.RawPath), "-raw.owl")
	artifact := robot.MetricsArtifact{Metrics: g.metrics[ns]}
	data, err := yaml.Marshal(&artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(req.MetricsPath, data, 0644)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeRenderer records render invocations without writing report files.
type fakeRenderer struct {
	rendered []string
	err      error
}

func (r *fakeRenderer) Render(rec *results.Record, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.rendered = append(r.rendered, rec.Namespace)
	rec.Results = map[string]checks.Result{
		render.CheckCommonFormat: {Status: checks.StatusPass},
	}
	return nil
}

func defaultMetrics(ns string) robot.Metrics {
	prefix := strings.ToUpper(ns)
	return robot.Metrics{
		Consistent:     true,
		AxiomCountIncl: 100,
		ClassCountIncl: 40,
		NamespaceEntityCountIncl: map[string]int{
			prefix: 80,
			"BFO":  20,
		},
		NamespaceAxiomCountIncl: map[string]int{
			prefix: 90,
			"BFO":  10,
		},
		OWL2DL: true,
		Syntax: "RDF/XML Syntax",
		CurieMap: map[string]string{
			prefix: fmt.Sprintf("http://purl.obolibrary.org/obo/%s_", prefix),
		},
	}
}

type env struct {
	cfg     *config.Config
	reg     *registry.Registry
	store   *results.Store
	gateway *fakeGateway
	srv     *httptest.Server
}

func newEnv(t *testing.T, namespaces ...string) *env {
	t.Helper()
	root := t.TempDir()

	mux := http.NewServeMux()
	for _, ns := range namespaces {
		body := ontologyBody(ns)
		mux.HandleFunc("/"+ns+".owl", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Paths.BuildDir = filepath.Join(root, "build")
	cfg.Paths.DashboardDir = filepath.Join(root, "dashboard")
	require.NoError(t, os.MkdirAll(cfg.Paths.BuildDir, 0755))

	gateway := &fakeGateway{metrics: make(map[string]robot.Metrics)}
	reg := &registry.Registry{Ontologies: make(map[string]registry.Entry)}
	for _, ns := range namespaces {
		reg.Ontologies[ns] = registry.Entry{
			MirrorFrom:     srv.URL + "/" + ns + ".owl",
			BaseNamespaces: []string{fmt.Sprintf("http://purl.obolibrary.org/obo/%s_", strings.ToUpper(ns))},
		}
		gateway.metrics[ns] = defaultMetrics(ns)
	}

	return &env{
		cfg:     cfg,
		reg:     reg,
		store:   results.NewStore(cfg.Paths.DashboardDir),
		gateway: gateway,
		srv:     srv,
	}
}

func (e *env) newRunner() *Runner {
	fetcher := fetch.NewFetcher(5*time.Second, nil)
	return NewRunner(e.cfg, e.reg, e.store, fetcher, e.gateway, nil)
}

// runBoth executes pass one and pass two with the given renderer.
func (e *env) runBoth(t *testing.T, renderer Renderer) *Runner {
	t.Helper()
	runner := e.newRunner()
	reuse, err := runner.Run(context.Background())
	require.NoError(t, err)

	agg := NewAggregator(e.cfg, e.reg, e.store, renderer, nil, nil)
	require.NoError(t, agg.Aggregate(context.Background(), reuse, runner.RunID(), runner.RawPath))
	return runner
}

func TestRunHappyPath(t *testing.T) {
	e := newEnv(t, "obi")
	runner := e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)

	assert.False(t, rec.Failed())
	assert.True(t, rec.Changed)
	assert.NotEmpty(t, rec.SHA256)
	assert.True(t, rec.BaseGenerated)
	assert.Equal(t, []string{"OBI"}, rec.BasePrefixes)
	assert.True(t, rec.HasMetrics())
	assert.True(t, rec.HasResults())

	axioms, ok := rec.AxiomCount()
	require.True(t, ok)
	assert.Equal(t, 100, axioms)

	// Reuse percentage: 20 of 100 entities outside the base prefixes.
	pct, ok := rec.ReusedPercentage()
	require.True(t, ok)
	assert.InDelta(t, 20.0, pct, 0.001)

	// Derived artifacts exist on disk.
	assert.FileExists(t, runner.BasePath("obi"))
	assert.FileExists(t, runner.MetricsPath("obi"))
	assert.Equal(t, 1, e.gateway.callCount())
}

func TestIdempotentRuns(t *testing.T) {
	e := newEnv(t, "obi")
	renderer := render.NewRenderer(e.cfg.Paths.DashboardDir, nil)

	e.runBoth(t, renderer)
	require.Equal(t, 1, e.gateway.callCount())

	// Second run reaches steady state: cached download, unchanged hash.
	e.runBoth(t, renderer)
	assert.Equal(t, 1, e.gateway.callCount(), "unchanged content must not re-invoke the toolchain")
	after2, err := os.ReadFile(e.store.PathFor("obi"))
	require.NoError(t, err)

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.False(t, rec.Changed)

	// Third run must be byte-identical to the second.
	e.runBoth(t, renderer)
	assert.Equal(t, 1, e.gateway.callCount())
	after3, err := os.ReadFile(e.store.PathFor("obi"))
	require.NoError(t, err)
	assert.Equal(t, string(after2), string(after3))
}

func TestBucketErrorPageShortCircuits(t *testing.T) {
	e := newEnv(t, "obi")
	body := "<?xml version=\"1.0\"?>\n<ListBucketResult>\n" + strings.Repeat("<Contents/>\n", 10)
	e.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailNotAnOntology, rec.Failure)
	assert.False(t, rec.HasMetrics())
	assert.Equal(t, 0, e.gateway.callCount(), "toolchain must not run for a bucket error page")
}

func TestTooShortFileIsNotAnOntology(t *testing.T) {
	e := newEnv(t, "obi")
	e.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<rdf:RDF/>\n"))
	})

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailNotAnOntology, rec.Failure)
	assert.Equal(t, 0, e.gateway.callCount())
}

func TestEmptyOntologyGate(t *testing.T) {
	e := newEnv(t, "obi")
	m := e.gateway.metrics["obi"]
	m.AxiomCountIncl = 0
	m.Consistent = true
	e.gateway.metrics["obi"] = m

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailEmptyOntology, rec.Failure)
}

func TestInconsistentOntologyGate(t *testing.T) {
	e := newEnv(t, "obi")
	m := e.gateway.metrics["obi"]
	m.Consistent = false
	e.gateway.metrics["obi"] = m

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailInconsistentOntology, rec.Failure)
}

func TestToolchainFailure(t *testing.T) {
	e := newEnv(t, "obi")
	e.gateway.err = fmt.Errorf("robot exploded")

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailRobotBase, rec.Failure)
}

func TestMissingURLAndBaseNamespaces(t *testing.T) {
	e := newEnv(t, "obi", "pato")
	e.reg.Ontologies["obi"] = registry.Entry{BaseNamespaces: []string{"http://purl.obolibrary.org/obo/OBI_"}}
	e.reg.Ontologies["pato"] = registry.Entry{MirrorFrom: e.srv.URL + "/pato.owl"}

	e.runBoth(t, &fakeRenderer{})

	obi, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailMissingURL, obi.Failure)

	pato, err := e.store.Load("pato")
	require.NoError(t, err)
	assert.Equal(t, results.FailMissingBaseNamespaces, pato.Failure)
}

func TestFailedDownloadRecovery(t *testing.T) {
	e := newEnv(t, "obi")

	var failing bool = true
	body := ontologyBody("obi")
	e.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	})

	e.runBoth(t, &fakeRenderer{})
	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	require.Equal(t, results.FailDownload, rec.Failure)

	// Source recovers; the stale failure must be gone from the persisted
	// record, not merely overwritten with an empty string.
	failing = false
	e.runBoth(t, &fakeRenderer{})

	rec, err = e.store.Load("obi")
	require.NoError(t, err)
	assert.False(t, rec.Failed())

	data, err := os.ReadFile(e.store.PathFor("obi"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "failure")
}

func TestCorruptedRecordReset(t *testing.T) {
	e := newEnv(t, "obi")
	require.NoError(t, os.MkdirAll(e.store.Dir("obi"), 0755))
	require.NoError(t, os.WriteFile(e.store.PathFor("obi"), []byte("{broken: ["), 0644))

	e.runBoth(t, &fakeRenderer{})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailCorruptedResultsFile, rec.Failure)
	assert.Empty(t, rec.SHA256)
	assert.Equal(t, 0, e.gateway.callCount())
}

func TestSkipExisting(t *testing.T) {
	e := newEnv(t, "obi")
	e.cfg.Pipeline.SkipExisting = true

	rec := results.NewRecord("obi")
	rec.SHA256 = "previous"
	require.NoError(t, e.store.Save(rec))
	before, err := os.ReadFile(e.store.PathFor("obi"))
	require.NoError(t, err)

	renderer := &fakeRenderer{}
	e.runBoth(t, renderer)

	after, err := os.ReadFile(e.store.PathFor("obi"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "skip-existing must not touch the record")
	assert.Equal(t, 0, e.gateway.callCount())
	assert.Empty(t, renderer.rendered)
}

func TestSelfHealingRegeneratesMissingBase(t *testing.T) {
	e := newEnv(t, "obi")
	runner := e.runBoth(t, &fakeRenderer{})
	require.Equal(t, 1, e.gateway.callCount())

	// Losing a derived artifact forces regeneration even though the
	// content hash is unchanged.
	require.NoError(t, os.Remove(runner.BasePath("obi")))
	e.runBoth(t, &fakeRenderer{})

	assert.Equal(t, 2, e.gateway.callCount())
	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.False(t, rec.Changed)
	assert.False(t, rec.Failed())
}

func TestReuseIgnoresOntologyWithoutBasePrefixes(t *testing.T) {
	e := newEnv(t, "dep", "usr")

	// usr's curie_map resolves none of its declared base namespaces, so it
	// ends up with no base prefixes even though its axioms use DEP.
	m := e.gateway.metrics["usr"]
	m.CurieMap = nil
	m.NamespaceAxiomCountIncl = map[string]int{"DEP": 5}
	e.gateway.metrics["usr"] = m

	runner := e.newRunner()
	reuse, err := runner.Run(context.Background())
	require.NoError(t, err)

	rec, err := e.store.Load("usr")
	require.NoError(t, err)
	assert.Empty(t, rec.BasePrefixes)

	assert.Contains(t, reuse.Users("DEP"), "dep")
	assert.NotContains(t, reuse.Users("DEP"), "usr", "an ontology without base prefixes must not count as a reuser")
}

func TestRenderFailureBecomesFailureTag(t *testing.T) {
	e := newEnv(t, "obi")
	e.runBoth(t, &fakeRenderer{err: fmt.Errorf("template exploded")})

	rec, err := e.store.Load("obi")
	require.NoError(t, err)
	assert.Equal(t, results.FailDashboard, rec.Failure)
	// Scores computed before the rendering failure survive.
	assert.Contains(t, rec.Metrics, results.MetricScore)
}
