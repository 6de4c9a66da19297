package fhir

import (
	"fmt"
	"time"
)

// Issue severities and the R4 issue-type codes this server reports.
const (
	IssueSeverityFatal = "fatal"
	IssueSeverityError = "error"

	IssueTypeInvalid      = "invalid"
	IssueTypeRequired     = "required"
	IssueTypeNotFound     = "not-found"
	IssueTypeProcessing   = "processing"
	IssueTypeNotSupported = "not-supported"
	IssueTypeTooCostly    = "too-costly"
	IssueTypeTimeout      = "timeout"
	IssueTypeException    = "exception"
)

// RequiredFieldOutcome reports a missing field of a form or request.
func RequiredFieldOutcome(field string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    IssueSeverityError,
				Code:        IssueTypeRequired,
				Diagnostics: fmt.Sprintf("%s is required", field),
				Expression:  []string{field},
			},
		},
	}
}

func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}

// BodyTooLargeOutcome reports a request body over limit bytes.
func BodyTooLargeOutcome(limit int64) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTooCostly,
		fmt.Sprintf("request body exceeds the limit of %d bytes", limit))
}

// TimeoutOutcome reports a request that did not finish within d.
func TimeoutOutcome(d time.Duration) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTimeout,
		fmt.Sprintf("request did not complete within %s", d))
}
