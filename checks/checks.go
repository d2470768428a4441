// Package checks implements the compliance checks run over a processed
// ontology. Each check is a pure predicate over an already-downloaded file
// or a flattened metrics view and reports a status with an optional comment.
package checks

// Status classifies a compliance check outcome.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
	StatusInfo  Status = "INFO"
)

// Result is the outcome of a single compliance check.
type Result struct {
	Status  Status `yaml:"status" json:"status"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

func pass() Result {
	return Result{Status: StatusPass}
}

func errorf(comment string) Result {
	return Result{Status: StatusError, Comment: comment}
}

func warn(comment string) Result {
	return Result{Status: StatusWarn, Comment: comment}
}

func info(comment string) Result {
	return Result{Status: StatusInfo, Comment: comment}
}
