package robot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMetricsArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obi-metrics.yml")
	content := `
metrics:
  consistent: true
  unsatisfiable_class_count: 0
  axiom_count_incl: 31042
  class_count_incl: 4200
  obj_property_count_incl: 90
  namespace_entity_count_incl:
    OBI: 4000
    PATO: 120
  namespace_axiom_count_incl:
    OBI: 29000
    BFO: 800
  individual_count_incl: 250
  dataproperty_count_incl: 7
  annotation_property_count_incl: 60
  axiom_type_count_incl:
    SubClassOf: 9000
  class_expression_count_incl:
    ObjectSomeValuesFrom: 4100
  owl2_dl: true
  syntax: "RDF/XML Syntax"
  curie_map:
    OBI: http://purl.obolibrary.org/obo/OBI_
    PATO: http://purl.obolibrary.org/obo/PATO_
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	artifact, err := LoadMetricsArtifact(path)
	require.NoError(t, err)

	m := artifact.Metrics
	assert.True(t, m.Consistent)
	assert.Equal(t, 31042, m.AxiomCountIncl)
	assert.Equal(t, 4000, m.NamespaceEntityCountIncl["OBI"])
	assert.Equal(t, 800, m.NamespaceAxiomCountIncl["BFO"])
	assert.True(t, m.OWL2DL)
	assert.Equal(t, "RDF/XML Syntax", m.Syntax)
}

func TestLoadMetricsArtifactBroken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(path, []byte("metrics: [oops\n"), 0644))

	_, err := LoadMetricsArtifact(path)
	assert.Error(t, err)
}

func TestLoadMetricsArtifactMissing(t *testing.T) {
	_, err := LoadMetricsArtifact(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestBasePrefixes(t *testing.T) {
	m := &Metrics{
		CurieMap: map[string]string{
			"OBI":  "http://purl.obolibrary.org/obo/OBI_",
			"obi":  "http://purl.obolibrary.org/obo/obi#",
			"PATO": "http://purl.obolibrary.org/obo/PATO_",
		},
	}

	prefixes := m.BasePrefixes([]string{
		"http://purl.obolibrary.org/obo/OBI_",
		"http://purl.obolibrary.org/obo/obi#",
	})

	assert.Equal(t, []string{"OBI", "obi"}, prefixes)
}

func TestBaseArgsIncludePrefixesAndNamespaces(t *testing.T) {
	g := NewExecGateway("robot", nil)
	req := Request{
		RawPath:        "build/obi-raw.owl",
		BasePath:       "build/obi.owl",
		MetricsPath:    "build/obi-metrics.yml",
		BaseNamespaces: []string{"http://purl.obolibrary.org/obo/OBI_"},
		MakeBase:       true,
		ExtraPrefixes:  map[string]string{"OBI": "http://purl.obolibrary.org/obo/OBI_"},
		Opts:           "-vv",
	}

	args := g.baseArgs(req)
	assert.Contains(t, args, "merge")
	assert.Contains(t, args, "remove")
	assert.Contains(t, args, "--base-iri")
	assert.Contains(t, args, "http://purl.obolibrary.org/obo/OBI_")
	assert.Contains(t, args, "OBI: http://purl.obolibrary.org/obo/OBI_")
	assert.Contains(t, args, "-vv")

	measure := g.measureArgs(req)
	assert.Contains(t, measure, "measure")
	assert.Contains(t, measure, "build/obi-metrics.yml")
}

func TestPrepareOntologyCopiesBaseWhenNotGenerating(t *testing.T) {
	// With MakeBase=false the gateway stages the raw file as the base file
	// before measuring; "true" stands in for a toolchain that accepts any
	// arguments so only the copy behavior is exercised.
	dir := t.TempDir()
	raw := filepath.Join(dir, "obi-raw.owl")
	base := filepath.Join(dir, "obi.owl")
	require.NoError(t, os.WriteFile(raw, []byte("<rdf:RDF/>\n"), 0644))

	g := NewExecGateway("true", nil)
	req := Request{RawPath: raw, BasePath: base, MetricsPath: filepath.Join(dir, "m.yml"), MakeBase: false}

	require.NoError(t, g.PrepareOntology(context.Background(), req))

	data, err := os.ReadFile(base)
	require.NoError(t, err)
	assert.Equal(t, "<rdf:RDF/>\n", string(data))
}
