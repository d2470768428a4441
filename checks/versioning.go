package checks

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

// datedVersionPattern matches the recommended dated version IRI layout
// (NS/YYYY-MM-DD/ontology.owl).
var datedVersionPattern = regexp.MustCompile(`http://purl\.obolibrary\.org/obo/.*/([0-9]{4}-[0-9]{2}-[0-9]{2})/.*`)

// versionIRIPattern extracts the owl:versionIRI declaration from an RDF/XML header.
var versionIRIPattern = regexp.MustCompile(`owl:versionIRI\s+rdf:resource="([^"]+)"`)

// headerScanLimit bounds how far into the file the version IRI is looked for.
// The owl:versionIRI declaration belongs to the ontology header.
const headerScanLimit = 500

// ExtractVersionIRI reads the ontology header and returns the declared
// version IRI, or the empty string if none is declared.
func ExtractVersionIRI(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open ontology file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for i := 0; scanner.Scan() && i < headerScanLimit; i++ {
		if m := versionIRIPattern.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1], nil
		}
	}
	return "", scanner.Err()
}

// Versioning checks that the ontology declares a version IRI and that it
// follows the recommended dated format.
func Versioning(path string) Result {
	versionIRI, err := ExtractVersionIRI(path)
	if err != nil {
		return errorf("Unable to parse ontology")
	}
	return VersionIRI(versionIRI)
}

// VersionIRI checks an already-extracted version IRI.
func VersionIRI(versionIRI string) Result {
	if versionIRI == "" {
		return errorf("Missing version IRI")
	}
	if !datedVersionPattern.MatchString(versionIRI) {
		return warn(fmt.Sprintf("Version IRI '%s' is not in recommended format", versionIRI))
	}
	return pass()
}
