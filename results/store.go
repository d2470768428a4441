package results

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RecordFile is the result record file name inside each ontology's
// dashboard directory.
const RecordFile = "dashboard.yml"

// Store persists result records as one YAML file per ontology under a
// deterministic path keyed by namespace. Records are read-modify-write and
// never deleted, so failure history stays inspectable across runs.
type Store struct {
	baseDir string
}

// NewStore creates a record store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Dir returns the per-ontology dashboard directory.
func (s *Store) Dir(namespace string) string {
	return filepath.Join(s.baseDir, namespace)
}

// PathFor returns the record file path for a namespace.
func (s *Store) PathFor(namespace string) string {
	return filepath.Join(s.baseDir, namespace, RecordFile)
}

// Exists reports whether a record file exists for the namespace.
func (s *Store) Exists(namespace string) bool {
	_, err := os.Stat(s.PathFor(namespace))
	return err == nil
}

// Load reads the record for a namespace. Returns ErrNotFound when no record
// exists yet and ErrCorrupted when the file exists but cannot be parsed.
func (s *Store) Load(namespace string) (*Record, error) {
	data, err := os.ReadFile(s.PathFor(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, namespace)
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, namespace, err)
	}
	return &rec, nil
}

// Save writes the record, creating the ontology's dashboard directory if
// needed. Called after every stage transition that changes visible state so
// a crash mid-pipeline leaves an informative partial record.
func (s *Store) Save(rec *Record) error {
	dir := s.Dir(rec.Namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dashboard directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(s.PathFor(rec.Namespace), data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}
