package exam

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"tonometry", KindTonometry, false},
		{"anterior-chamber", KindAnteriorChamber, false},
		{"anteriorChamber", KindAnteriorChamber, false},
		{"anterior_chamber", KindAnteriorChamber, false},
		{" oct ", KindOCT, false},
		{"ivi", KindIVI, false},
		{"perimetry", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownKind) {
				t.Errorf("ParseKind(%q): expected ErrUnknownKind, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKind(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestKindTitle(t *testing.T) {
	want := map[Kind]string{
		KindTonometry:       "Tonometry",
		KindVisus:           "Visus",
		KindAnteriorChamber: "Anterior Chamber",
		KindFunduscopy:      "Funduscopy",
		KindOCT:             "OCT",
		KindIVI:             "IVI",
	}
	for k, title := range want {
		if got := k.Title(); got != title {
			t.Errorf("%s: expected title %q, got %q", k, title, got)
		}
	}
}

func TestSide(t *testing.T) {
	if Left.Label() != "Left" || Right.Label() != "Right" {
		t.Errorf("unexpected labels %q %q", Left.Label(), Right.Label())
	}
	if got := Right.Field("pressure"); got != "rightEye.pressure" {
		t.Errorf("expected rightEye.pressure, got %q", got)
	}
	if got := BodySite(Left).Coding[0].Code; got != "1290041000" {
		t.Errorf("expected left body site 1290041000, got %s", got)
	}
	if got := BodySite(Right).Coding[0].Code; got != "1290043002" {
		t.Errorf("expected right body site 1290043002, got %s", got)
	}
}

type stubConverter struct{ kind Kind }

func (s stubConverter) Kind() Kind                  { return s.kind }
func (s stubConverter) Decode([]byte) (Form, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubConverter{KindIVI}, stubConverter{KindTonometry}, stubConverter{KindOCT})

	want := []Kind{KindTonometry, KindOCT, KindIVI}
	if diff := cmp.Diff(want, r.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	if _, err := r.Get(KindOCT); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Get(KindVisus); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestIssues(t *testing.T) {
	var is Issues
	if is.Err() != nil {
		t.Fatal("expected nil error for empty issues")
	}
	is.Warnf("leftEye.dicom", "no DICOM for the %s eye", Left)
	if is.HasErrors() {
		t.Error("warnings alone must not count as errors")
	}
	is.Errorf("rightEye.pressure", "pressure missing")

	if len(is.Errors()) != 1 || len(is.Warnings()) != 1 {
		t.Fatalf("expected 1 error and 1 warning, got %d/%d", len(is.Errors()), len(is.Warnings()))
	}

	err := is.Err()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "pressure missing") {
		t.Errorf("error message should list error issues, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "DICOM") {
		t.Errorf("error message should not list warnings, got %q", err.Error())
	}

	vis := is.ValidationIssues()
	if vis[0].Severity != fhir.SeverityWarning || vis[1].Severity != fhir.SeverityError {
		t.Errorf("unexpected severities %v %v", vis[0].Severity, vis[1].Severity)
	}
	if vis[1].Location != "rightEye.pressure" {
		t.Errorf("expected location rightEye.pressure, got %q", vis[1].Location)
	}
}

func TestParseRecordedDate(t *testing.T) {
	utc, err := ParseRecordedDate("2024-03-05T10:15:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FormatDateTime(utc); got != "2024-03-05T10:15:00.000Z" {
		t.Errorf("expected 2024-03-05T10:15:00.000Z, got %s", got)
	}

	offset, err := ParseRecordedDate("2024-03-05T11:15:00+01:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !offset.Equal(utc) {
		t.Errorf("expected %v, got %v", utc, offset)
	}

	local, err := ParseRecordedDate("2024-03-05T10:15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if local.Location() != time.Local || local.Hour() != 10 || local.Minute() != 15 {
		t.Errorf("expected 10:15 local time, got %v", local)
	}

	day, err := ParseRecordedDate("2024-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FormatDateTime(day); got != "2024-03-05T00:00:00.000Z" {
		t.Errorf("expected UTC midnight, got %s", got)
	}

	for _, bad := range []string{"", "05.03.2024", "yesterday"} {
		if _, err := ParseRecordedDate(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestCheckRecordedDate(t *testing.T) {
	var is Issues
	CheckRecordedDate(&is, "")
	CheckRecordedDate(&is, "not a date")
	if len(is.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(is.Errors()))
	}
	if is[0].Field != "recordedDate" {
		t.Errorf("expected field recordedDate, got %q", is[0].Field)
	}
}

func TestCheckMeasurement(t *testing.T) {
	neg, zero := -1.0, 0.0
	var is Issues
	CheckMeasurement(&is, Left, "pressure", "the pressure", nil)
	CheckMeasurement(&is, Right, "pressure", "the pressure", &neg)
	CheckMeasurement(&is, Right, "pressure", "the pressure", &zero)

	if len(is) != 2 {
		t.Fatalf("expected 2 issues, got %d: %+v", len(is), is)
	}
	if is[0].Field != "leftEye.pressure" || is[1].Field != "rightEye.pressure" {
		t.Errorf("unexpected fields %q %q", is[0].Field, is[1].Field)
	}
}

func TestNewObservation(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	obs := NewObservation(fhir.Concept(fhir.SNOMED("41633001", "Intraocular pressure")), at, Right)

	if obs["resourceType"] != "Observation" || obs["status"] != "final" {
		t.Errorf("unexpected resource header %v %v", obs["resourceType"], obs["status"])
	}
	if obs["effectiveDateTime"] != "2024-03-05T10:00:00.000Z" {
		t.Errorf("unexpected effectiveDateTime %v", obs["effectiveDateTime"])
	}
	if diff := cmp.Diff(BodySite(Right), obs["bodySite"]); diff != "" {
		t.Errorf("bodySite mismatch (-want +got):\n%s", diff)
	}
	cat := obs["category"].([]fhir.CodeableConcept)
	if cat[0].Coding[0].Code != "exam" {
		t.Errorf("expected exam category, got %v", cat)
	}
}

func TestMydriasisComponent(t *testing.T) {
	if got := MydriasisComponent(true).ValueCodeableConcept.Coding[0].Code; got != "398166005" {
		t.Errorf("expected performed 398166005, got %s", got)
	}
	if got := MydriasisComponent(false).ValueCodeableConcept.Coding[0].Code; got != "262008008" {
		t.Errorf("expected not performed 262008008, got %s", got)
	}
}

func TestPresence(t *testing.T) {
	want := map[Presence]string{Present: "52101004", Absent: "2667000", Unknown: "261665006"}
	for p, code := range want {
		c, ok := p.Coding()
		if !ok || c.Code != code {
			t.Errorf("%s: expected %s, got %s (ok=%v)", p, code, c.Code, ok)
		}
	}
	if _, ok := Presence("Maybe").Coding(); ok {
		t.Error("expected unknown presence to have no coding")
	}
	if PresenceOf(true) != Present || PresenceOf(false) != Absent {
		t.Error("PresenceOf mismatch")
	}
}

func TestNoteReportAndCollect(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	obs := NewObservation(fhir.Concept(fhir.SNOMED("37231002", "Macular retinal edema (disorder)")), at, Left)
	report := NoteReport(at, "mild edema", obs)

	if report["conclusion"] != "mild edema" {
		t.Errorf("unexpected conclusion %v", report["conclusion"])
	}
	refs := report["result"].([]fhir.Reference)
	if want := "urn:uuid:" + obs["id"].(string); refs[0].Reference != want {
		t.Errorf("expected reference %s, got %s", want, refs[0].Reference)
	}

	b, err := Collect(obs, report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type != "collection" || len(b.Entry) != 2 {
		t.Fatalf("expected collection with 2 entries, got %s/%d", b.Type, len(b.Entry))
	}
	if b.Entry[0].FullURL != refs[0].Reference {
		t.Errorf("fullUrl %s does not match reference %s", b.Entry[0].FullURL, refs[0].Reference)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b.Entry[1].Resource, &decoded); err != nil {
		t.Fatalf("entry is not valid JSON: %v", err)
	}
	if decoded["resourceType"] != "DiagnosticReport" {
		t.Errorf("expected DiagnosticReport, got %v", decoded["resourceType"])
	}
}
