package fhir

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewOperationOutcome(t *testing.T) {
	oo := NewOperationOutcome("error", "processing", "something went wrong")

	if oo.ResourceType != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %s", oo.ResourceType)
	}
	if len(oo.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Severity != "error" {
		t.Errorf("expected severity error, got %s", oo.Issue[0].Severity)
	}
	if oo.Issue[0].Code != "processing" {
		t.Errorf("expected code processing, got %s", oo.Issue[0].Code)
	}
	if oo.Issue[0].Diagnostics != "something went wrong" {
		t.Errorf("expected diagnostics 'something went wrong', got %s", oo.Issue[0].Diagnostics)
	}
}

func TestErrorOutcome(t *testing.T) {
	oo := ErrorOutcome("test error")
	if oo.Issue[0].Severity != "error" {
		t.Error("expected error severity")
	}
	if oo.Issue[0].Diagnostics != "test error" {
		t.Errorf("expected diagnostics 'test error', got %s", oo.Issue[0].Diagnostics)
	}
}

func TestNotFoundOutcome(t *testing.T) {
	oo := NotFoundOutcome("Bundle", "123")
	if oo.Issue[0].Code != "not-found" {
		t.Error("expected not-found code")
	}
	if oo.Issue[0].Diagnostics != "Bundle/123 not found" {
		t.Errorf("unexpected diagnostics: %s", oo.Issue[0].Diagnostics)
	}
}

func TestFormatReference(t *testing.T) {
	ref := FormatReference("Device", "device-left-spectralis")
	if ref != "Device/device-left-spectralis" {
		t.Errorf("expected Device/device-left-spectralis, got %s", ref)
	}
}

func TestRequiredFieldOutcome(t *testing.T) {
	oo := RequiredFieldOutcome("leftEye.pressure")

	if oo.Issue[0].Code != IssueTypeRequired {
		t.Errorf("expected code required, got %s", oo.Issue[0].Code)
	}
	if oo.Issue[0].Diagnostics != "leftEye.pressure is required" {
		t.Errorf("unexpected diagnostics: %s", oo.Issue[0].Diagnostics)
	}
	if len(oo.Issue[0].Expression) != 1 || oo.Issue[0].Expression[0] != "leftEye.pressure" {
		t.Errorf("expected expression [leftEye.pressure], got %v", oo.Issue[0].Expression)
	}
}

func TestInternalErrorOutcome_JSON(t *testing.T) {
	oo := InternalErrorOutcome("boom")
	data, err := json.Marshal(oo)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	issues := parsed["issue"].([]interface{})
	issue := issues[0].(map[string]interface{})
	if issue["severity"] != "fatal" {
		t.Errorf("expected fatal severity, got %v", issue["severity"])
	}
	if issue["code"] != "exception" {
		t.Errorf("expected exception code, got %v", issue["code"])
	}
}

func TestLimitOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		oo       *OperationOutcome
		wantCode string
		wantDiag string
	}{
		{"body too large", BodyTooLargeOutcome(1000), IssueTypeTooCostly, "request body exceeds the limit of 1000 bytes"},
		{"timeout", TimeoutOutcome(2 * time.Second), IssueTypeTimeout, "request did not complete within 2s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.oo.Issue) != 1 {
				t.Fatalf("expected 1 issue, got %d", len(tt.oo.Issue))
			}
			is := tt.oo.Issue[0]
			if is.Severity != IssueSeverityError || is.Code != tt.wantCode || is.Diagnostics != tt.wantDiag {
				t.Errorf("unexpected issue %+v", is)
			}
		})
	}
}
