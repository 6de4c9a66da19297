package exam

import (
	"fmt"
	"strings"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Severity of a validation issue. Errors block conversion, warnings are
// reported alongside the converted result.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding on a submitted form.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

// Issues collects validation findings in the order they were raised.
type Issues []Issue

// Errorf records an error on field.
func (is *Issues) Errorf(field, format string, args ...interface{}) {
	*is = append(*is, Issue{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning on field.
func (is *Issues) Warnf(field, format string, args ...interface{}) {
	*is = append(*is, Issue{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any issue has error severity.
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity issues.
func (is Issues) Errors() Issues {
	return is.filter(SeverityError)
}

// Warnings returns the warning-severity issues.
func (is Issues) Warnings() Issues {
	return is.filter(SeverityWarning)
}

func (is Issues) filter(sev Severity) Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// ValidationIssues converts the issues for an OperationOutcome.
func (is Issues) ValidationIssues() []fhir.ValidationIssue {
	out := make([]fhir.ValidationIssue, 0, len(is))
	for _, i := range is {
		sev := fhir.SeverityError
		code := fhir.VIssueTypeInvariant
		if i.Severity == SeverityWarning {
			sev = fhir.SeverityWarning
			code = fhir.VIssueTypeValue
		}
		out = append(out, fhir.ValidationIssue{
			Severity:    sev,
			Code:        code,
			Location:    i.Field,
			Diagnostics: i.Message,
		})
	}
	return out
}

// ValidationError is returned when a form has error-severity issues.
type ValidationError struct {
	Issues Issues
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues.Errors() {
		msgs = append(msgs, i.Message)
	}
	return "invalid examination: " + strings.Join(msgs, "; ")
}

// Err returns a *ValidationError when the issues contain errors, nil otherwise.
func (is Issues) Err() error {
	if !is.HasErrors() {
		return nil
	}
	return &ValidationError{Issues: is}
}
