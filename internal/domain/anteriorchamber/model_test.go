package anteriorchamber

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/exam/examtest"
)

func TestToFHIR(t *testing.T) {
	f, err := Converter{}.Decode([]byte(`{
		"recordedDate": "2024-06-01T08:30:00Z",
		"leftEye": {"cells": "(+)", "flare": "++", "synechiae": "Present", "note": "posterior synechiae at 5 o'clock"},
		"rightEye": {"cells": "Absent", "flare": "Absent"}
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bundles := examtest.Convert(t, f)
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}

	left := examtest.Resources(t, bundles[0])
	if len(left) != 4 {
		t.Fatalf("expected cells, flare, synechiae and note on the left, got %d", len(left))
	}
	obs := examtest.OfType(left, "Observation")
	gotValues := make([]string, 0, len(obs))
	for _, o := range obs {
		gotValues = append(gotValues, examtest.Code(o, "valueCodeableConcept"))
	}
	if diff := cmp.Diff([]string{"(+)", "260348001", "52101004"}, gotValues); diff != "" {
		t.Errorf("observation values mismatch (-want +got):\n%s", diff)
	}

	syn := obs[2]["code"].(map[string]interface{})
	if syn["text"] != "Synechiae of iris" {
		t.Errorf("expected synechiae text code, got %v", syn)
	}
	if _, ok := syn["coding"]; ok {
		t.Error("synechiae code must not carry a coding")
	}

	report := examtest.OfType(left, "DiagnosticReport")[0]
	if report["conclusion"] != "posterior synechiae at 5 o'clock" {
		t.Errorf("unexpected conclusion %v", report["conclusion"])
	}
	results := report["result"].([]interface{})
	if len(results) != 3 {
		t.Errorf("expected note to reference 3 observations, got %d", len(results))
	}
	first := results[0].(map[string]interface{})["reference"]
	if want := examtest.FullURL(bundles[0], obs[0]["id"].(string)); first != want {
		t.Errorf("expected reference %s, got %v", want, first)
	}

	right := examtest.Resources(t, bundles[1])
	if len(right) != 2 {
		t.Fatalf("expected only cells and flare on the right, got %d", len(right))
	}
	if got := examtest.Code(right[0], "valueCodeableConcept"); got != "2667000" {
		t.Errorf("expected absent cells, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	f, err := Converter{}.Decode([]byte(`{
		"recordedDate": "2024-06-01",
		"leftEye": {"cells": "+++++", "flare": "(+)"},
		"rightEye": {"synechiae": "Maybe"}
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var fields []string
	for _, i := range f.Validate().Errors() {
		fields = append(fields, i.Field)
	}
	want := []string{"leftEye.cells", "leftEye.flare", "rightEye.cells", "rightEye.flare", "rightEye.synechiae"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("error fields mismatch (-want +got):\n%s", diff)
	}
}

func TestGrades(t *testing.T) {
	if contains(FlareGrades, GradeHalf) {
		t.Error("(+) is a cell grade only")
	}
	for _, g := range CellGrades {
		if _, ok := g.Coding(); !ok {
			t.Errorf("grade %q has no coding", g)
		}
	}
	if (Converter{}).Kind() != exam.KindAnteriorChamber {
		t.Errorf("unexpected kind %s", Converter{}.Kind())
	}
}
