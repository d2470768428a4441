// Package pipeline drives the per-ontology processing pipeline and the
// cross-ontology impact aggregation pass.
package pipeline

import (
	"sort"
	"sync"
)

// ReuseMap tracks, per namespace prefix, which ontologies declare axioms
// using that prefix. The per-ontology pass appends; duplicates are kept
// cheap here and deduplicated at read time. Rebuilt from scratch each run,
// never persisted.
//
// Appends are mutex-guarded so a future parallel runner can share one map,
// and Merge supports combining per-worker partial maps at a barrier.
type ReuseMap struct {
	mu    sync.Mutex
	users map[string][]string
}

// NewReuseMap creates an empty reuse map.
func NewReuseMap() *ReuseMap {
	return &ReuseMap{users: make(map[string][]string)}
}

// Add records that the ontology identified by namespace uses usedPrefix in
// its axioms. Append-only; duplicates are allowed.
func (m *ReuseMap) Add(usedPrefix, namespace string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[usedPrefix] = append(m.users[usedPrefix], namespace)
}

// Users returns the deduplicated, sorted set of ontology namespaces using
// the given prefix.
func (m *ReuseMap) Users(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, ns := range m.users[prefix] {
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// UserCount returns the number of distinct ontologies using any of the
// given prefixes, deduplicated by ontology namespace so a dependency reused
// via two of its prefixes counts once.
func (m *ReuseMap) UserCount(prefixes []string) int {
	seen := make(map[string]struct{})
	for _, prefix := range prefixes {
		for _, ns := range m.Users(prefix) {
			seen[ns] = struct{}{}
		}
	}
	return len(seen)
}

// Merge folds another map's appends into this one.
func (m *ReuseMap) Merge(other *ReuseMap) {
	other.mu.Lock()
	defer other.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	for prefix, users := range other.users {
		m.users[prefix] = append(m.users[prefix], users...)
	}
}
