package funduscopy

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/exam/examtest"
)

const form = `{
	"recordedDate": "2024-02-10T14:00:00Z",
	"strict": %s,
	"leftEye": {"papilledema": "Absent", "macularEdema": "Present", "vasculitis": "Unknown", "note": "CME"},
	"rightEye": {"papilledema": "Absent", "macularEdema": "Absent", "vasculitis": "Absent"}
}`

func decode(t *testing.T, strict string) exam.Form {
	t.Helper()
	f, err := Converter{}.Decode([]byte(fmt.Sprintf(form, strict)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func TestUnknownIsWarningUnlessStrict(t *testing.T) {
	lenient := decode(t, "false").Validate()
	if lenient.HasErrors() {
		t.Fatalf("unexpected errors: %+v", lenient.Errors())
	}
	if w := lenient.Warnings(); len(w) != 1 || w[0].Field != "leftEye.vasculitis" {
		t.Errorf("expected one vasculitis warning, got %+v", w)
	}

	strict := decode(t, "true").Validate()
	if e := strict.Errors(); len(e) != 1 || e[0].Field != "leftEye.vasculitis" {
		t.Errorf("expected one vasculitis error, got %+v", e)
	}
}

func TestMissingFindings(t *testing.T) {
	f, err := Converter{}.Decode([]byte(`{"recordedDate": "2024-02-10", "leftEye": {"papilledema": "Absent", "macularEdema": "Absent", "vasculitis": "Absent"}, "rightEye": {"vasculitis": "Perhaps"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var fields []string
	for _, i := range f.Validate().Errors() {
		fields = append(fields, i.Field)
	}
	want := []string{"rightEye.papilledema", "rightEye.macularEdema", "rightEye.vasculitis"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("error fields mismatch (-want +got):\n%s", diff)
	}
}

func TestToFHIR(t *testing.T) {
	bundles := examtest.Convert(t, decode(t, "false"))
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}

	left := examtest.Resources(t, bundles[0])
	obs := examtest.OfType(left, "Observation")
	var codes, values []string
	for _, o := range obs {
		codes = append(codes, examtest.Code(o, "code"))
		values = append(values, examtest.Code(o, "valueCodeableConcept"))
	}
	if diff := cmp.Diff([]string{"423341008", "37231002", "77628002"}, codes); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2667000", "52101004", "261665006"}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	reports := examtest.OfType(left, "DiagnosticReport")
	if len(reports) != 1 {
		t.Fatalf("expected a note report on the left, got %d", len(reports))
	}
	if n := len(reports[0]["result"].([]interface{})); n != 3 {
		t.Errorf("expected the report to reference 3 findings, got %d", n)
	}

	right := examtest.Resources(t, bundles[1])
	if len(examtest.OfType(right, "DiagnosticReport")) != 0 {
		t.Error("right eye has no note and must not get a report")
	}
	if got := examtest.Code(right[0], "bodySite"); got != "1290043002" {
		t.Errorf("expected right body site, got %s", got)
	}
}
