package checks

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const oboNamespaceRoot = "http://purl.obolibrary.org/obo/"

// resourcePattern pulls the rdf:about target out of an RDF/XML line.
var resourcePattern = regexp.MustCompile(`rdf:about="([^"]+)"`)

// annotationPropertyMarker identifies entity declarations exempted from the
// URI check; legacy annotation properties may use hash-based local IDs.
const annotationPropertyMarker = "owl:AnnotationProperty"

// CheckURI classifies a single entity IRI against the namespace's URI rules.
// Entities in the ontology's namespace must separate namespace and local ID
// with an underscore, and the local ID should be numeric. Returns
// StatusError, StatusWarn, or StatusPass.
func CheckURI(namespace, iri string) Status {
	iri = strings.ToLower(iri)
	nsPrefix := strings.ToLower(oboNamespaceRoot + namespace)

	// The ontology IRI itself is allowed to appear in the file.
	if iri == nsPrefix+".owl" {
		return StatusPass
	}
	if !strings.HasPrefix(iri, nsPrefix) {
		return StatusPass
	}
	if !strings.HasPrefix(iri, nsPrefix+"_") {
		return StatusError
	}

	numericPattern := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(nsPrefix) + `_[0-9]{1,9}$`)
	if !numericPattern.MatchString(iri) {
		return StatusWarn
	}
	return StatusPass
}

// ValidURIs scans an RDF/XML ontology file and checks every declared entity
// IRI against the namespace's URI rules.
func ValidURIs(namespace, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return info("Unable to read ontology file")
	}
	defer f.Close()

	var errorCount, warnCount int

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, annotationPropertyMarker) {
			continue
		}
		m := resourcePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch CheckURI(namespace, m[1]) {
		case StatusError:
			errorCount++
		case StatusWarn:
			warnCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return info("Unable to parse ontology")
	}

	switch {
	case errorCount > 0 && warnCount > 0:
		return errorf(fmt.Sprintf("%d invalid IRIs %d warnings on IRIs", errorCount, warnCount))
	case errorCount > 0:
		return errorf(fmt.Sprintf("%d invalid IRIs", errorCount))
	case warnCount > 0:
		return warn(fmt.Sprintf("%d warnings on IRIs", warnCount))
	}
	return pass()
}
