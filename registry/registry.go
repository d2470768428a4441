// Package registry loads the ontology registry that drives a dashboard run.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for registry operations.
var (
	// ErrNoRegistryFiles is returned when no registry file matches the configured patterns.
	ErrNoRegistryFiles = errors.New("no registry files matched")
	// ErrEmptyRegistry is returned when the merged registry declares no ontologies.
	ErrEmptyRegistry = errors.New("registry declares no ontologies")
)

// Entry is one registered ontology. Immutable for the run.
type Entry struct {
	// MirrorFrom is the URL the raw ontology file is downloaded from.
	MirrorFrom string `yaml:"mirror_from"`
	// BaseNamespaces are the IRI namespaces considered native to this ontology.
	BaseNamespaces []string `yaml:"base_ns"`
}

// Registry maps ontology namespace to its registry entry.
type Registry struct {
	Ontologies map[string]Entry `yaml:"ontologies"`
}

// Namespaces returns the registered ontology namespaces in sorted order.
// Sorting keeps run logs and record iteration deterministic.
func (r *Registry) Namespaces() []string {
	ns := make([]string, 0, len(r.Ontologies))
	for k := range r.Ontologies {
		ns = append(ns, k)
	}
	sort.Strings(ns)
	return ns
}

// Len returns the number of registered ontologies.
func (r *Registry) Len() int {
	return len(r.Ontologies)
}

// ResolveFiles expands the given doublestar patterns into the registry file
// paths a load would read, in merge order.
func ResolveFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		// Plain paths are accepted as-is so a missing file is an error,
		// not an empty glob.
		if !hasGlobMeta(pattern) {
			files = append(files, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid registry pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

// Load expands the given doublestar patterns, loads every matching YAML
// registry file and merges them in order. A namespace declared in a later
// file overrides an earlier declaration.
func Load(patterns []string) (*Registry, error) {
	files, err := ResolveFiles(patterns)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, ErrNoRegistryFiles
	}

	merged := &Registry{Ontologies: make(map[string]Entry)}
	for _, file := range files {
		reg, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		for ns, entry := range reg.Ontologies {
			merged.Ontologies[ns] = entry
		}
	}

	if merged.Len() == 0 {
		return nil, ErrEmptyRegistry
	}
	return merged, nil
}

func loadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", filepath.Clean(path), err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", filepath.Clean(path), err)
	}
	return &reg, nil
}

func hasGlobMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
