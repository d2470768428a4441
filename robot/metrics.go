package robot

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MetricsArtifact is the toolchain metrics output file.
type MetricsArtifact struct {
	Metrics Metrics `yaml:"metrics"`
}

// Metrics is the schema consumed from the toolchain metrics artifact.
type Metrics struct {
	Consistent                  bool              `yaml:"consistent"`
	UnsatisfiableClassCount     int               `yaml:"unsatisfiable_class_count"`
	AxiomCountIncl              int               `yaml:"axiom_count_incl"`
	ClassCountIncl              int               `yaml:"class_count_incl"`
	ObjPropertyCountIncl        int               `yaml:"obj_property_count_incl"`
	NamespaceEntityCountIncl    map[string]int    `yaml:"namespace_entity_count_incl"`
	NamespaceAxiomCountIncl     map[string]int    `yaml:"namespace_axiom_count_incl"`
	IndividualCountIncl         int               `yaml:"individual_count_incl"`
	DataPropertyCountIncl       int               `yaml:"dataproperty_count_incl"`
	AnnotationPropertyCountIncl int               `yaml:"annotation_property_count_incl"`
	AxiomTypeCountIncl          map[string]int    `yaml:"axiom_type_count_incl"`
	ClassExpressionCountIncl    map[string]int    `yaml:"class_expression_count_incl"`
	OWL2DL                      bool              `yaml:"owl2_dl"`
	Syntax                      string            `yaml:"syntax"`
	CurieMap                    map[string]string `yaml:"curie_map"`
}

// LoadMetricsArtifact reads and parses a toolchain metrics artifact.
func LoadMetricsArtifact(path string) (*MetricsArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics artifact: %w", err)
	}

	var artifact MetricsArtifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse metrics artifact: %w", err)
	}
	return &artifact, nil
}

// BasePrefixes resolves which CURIE prefixes expand into one of the
// ontology's declared base namespaces. Returned sorted for stable records.
func (m *Metrics) BasePrefixes(baseNamespaces []string) []string {
	base := make(map[string]struct{}, len(baseNamespaces))
	for _, ns := range baseNamespaces {
		base[ns] = struct{}{}
	}

	var prefixes []string
	for prefix, expansion := range m.CurieMap {
		if _, ok := base[expansion]; ok {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)
	return prefixes
}
