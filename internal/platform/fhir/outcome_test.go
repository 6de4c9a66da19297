package fhir

import (
	"encoding/json"
	"testing"
)

func TestMultiValidationOutcome_Empty(t *testing.T) {
	oo := MultiValidationOutcome(nil)

	if oo.ResourceType != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %s", oo.ResourceType)
	}
	if len(oo.Issue) != 0 {
		t.Errorf("expected 0 issues for nil input, got %d", len(oo.Issue))
	}
}

func TestMultiValidationOutcome_MultipleIssues(t *testing.T) {
	issues := []ValidationIssue{
		{
			Severity:    SeverityError,
			Code:        VIssueTypeRequired,
			Diagnostics: "pressure is required for the left eye",
			Location:    "leftEye.pressure",
		},
		{
			Severity:    SeverityWarning,
			Code:        VIssueTypeValue,
			Diagnostics: "no DICOM image attached for the right eye",
		},
	}

	oo := MultiValidationOutcome(issues)

	if len(oo.Issue) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Code != "required" {
		t.Errorf("expected code 'required', got %s", oo.Issue[0].Code)
	}
	if len(oo.Issue[0].Expression) != 1 || oo.Issue[0].Expression[0] != "leftEye.pressure" {
		t.Errorf("expected expression ['leftEye.pressure'], got %v", oo.Issue[0].Expression)
	}
	if oo.Issue[1].Expression != nil {
		t.Errorf("expected no expression for issue without location, got %v", oo.Issue[1].Expression)
	}
}

func TestMultiValidationOutcome_JSON(t *testing.T) {
	oo := MultiValidationOutcome([]ValidationIssue{
		{Severity: SeverityWarning, Code: VIssueTypeValue, Diagnostics: "unknown"},
	})
	data, err := json.Marshal(oo)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed["resourceType"] != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %v", parsed["resourceType"])
	}
}
