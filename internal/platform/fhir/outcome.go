package fhir

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError       ValidationSeverity = "error"
	SeverityWarning     ValidationSeverity = "warning"
	SeverityInformation ValidationSeverity = "information"
)

// ValidationIssueType represents the type of validation issue.
type ValidationIssueType string

const (
	VIssueTypeRequired     ValidationIssueType = "required"
	VIssueTypeValue        ValidationIssueType = "value"
	VIssueTypeInvariant    ValidationIssueType = "invariant"
	VIssueTypeCodeInvalid  ValidationIssueType = "code-invalid"
	VIssueTypeBusinessRule ValidationIssueType = "business-rule"
)

// ValidationIssue represents a single validation problem.
type ValidationIssue struct {
	Severity    ValidationSeverity  `json:"severity"`
	Code        ValidationIssueType `json:"code"`
	Location    string              `json:"location,omitempty"`
	Diagnostics string              `json:"diagnostics"`
}

// MultiValidationOutcome creates an OperationOutcome containing multiple
// validation issues. Each ValidationIssue is mapped to an OperationOutcomeIssue
// with the appropriate severity, code, diagnostics, and expression.
func MultiValidationOutcome(issues []ValidationIssue) *OperationOutcome {
	ooIssues := make([]OperationOutcomeIssue, 0, len(issues))
	for _, vi := range issues {
		issue := OperationOutcomeIssue{
			Severity:    string(vi.Severity),
			Code:        string(vi.Code),
			Diagnostics: vi.Diagnostics,
		}
		if vi.Location != "" {
			issue.Expression = []string{vi.Location}
		}
		ooIssues = append(ooIssues, issue)
	}
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        ooIssues,
	}
}
