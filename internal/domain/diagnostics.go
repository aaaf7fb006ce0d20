package domain

import "fmt"

// Severity classifies a diagnostic record.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityHint        Severity = "hint"
)

// Severities lists all valid severities in decreasing order of importance.
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInformation, SeverityHint}

// ParseSeverity converts a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityInformation, SeverityHint:
		return Severity(s), nil
	}
	return "", fmt.Errorf("invalid severity %q", s)
}

// Range is a zero-based position span within a file.
type Range struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// DiagnosticRecord is one reported problem. Records are produced transiently
// per query and never persisted.
type DiagnosticRecord struct {
	FilePath string   `json:"file_path"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Source   string   `json:"source,omitempty"`
	Range    Range    `json:"range"`
}
