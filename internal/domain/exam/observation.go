package exam

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Presence is the three-valued answer for a clinical finding.
type Presence string

const (
	Present Presence = "Present"
	Absent  Presence = "Absent"
	Unknown Presence = "Unknown"
)

var presenceCodings = map[Presence]fhir.Coding{
	Present: fhir.SNOMED("52101004", "Present (qualifier value)"),
	Absent:  fhir.SNOMED("2667000", "Absent (qualifier value)"),
	Unknown: fhir.SNOMED("261665006", "Unknown (qualifier value)"),
}

// Coding returns the SNOMED qualifier for p.
func (p Presence) Coding() (fhir.Coding, bool) {
	c, ok := presenceCodings[p]
	return c, ok
}

// PresenceOf maps a yes/no flag to Present or Absent.
func PresenceOf(b bool) Presence {
	if b {
		return Present
	}
	return Absent
}

// Presences lists the selectable presence values.
var Presences = []Presence{Present, Absent, Unknown}

// SharedCodings returns the codings emitted by the helpers of this package.
func SharedCodings() []fhir.Coding {
	out := make([]fhir.Coding, 0, 9)
	for _, s := range Sides {
		out = append(out, BodySite(s).Coding...)
	}
	for _, p := range Presences {
		out = append(out, presenceCodings[p])
	}
	for _, dilated := range []bool{true, false} {
		c := MydriasisComponent(dilated)
		out = append(out, c.ValueCodeableConcept.Coding...)
	}
	out = append(out, MydriasisComponent(true).Code.Coding...)
	return append(out, noteReportCode)
}

// Category returns the observation-category "exam" concept.
func Category() fhir.CodeableConcept {
	return fhir.Concept(fhir.Coding{System: fhir.SystemObservationCategory, Code: "exam"})
}

// NewObservation builds a final exam Observation for one eye. The caller
// adds the value[x] and any components.
func NewObservation(code fhir.CodeableConcept, effective time.Time, side Side) map[string]interface{} {
	return map[string]interface{}{
		"resourceType":      "Observation",
		"id":                uuid.New().String(),
		"status":            "final",
		"category":          []fhir.CodeableConcept{Category()},
		"code":              code,
		"effectiveDateTime": FormatDateTime(effective),
		"bodySite":          BodySite(side),
	}
}

// MydriasisComponent records whether the pupil was dilated.
func MydriasisComponent(dilated bool) fhir.ObservationComponent {
	value := fhir.Concept(fhir.SNOMED("262008008", "Not performed (qualifier value)"))
	if dilated {
		value = fhir.Concept(fhir.SNOMED("398166005", "Performed (qualifier value)"))
	}
	return fhir.ObservationComponent{
		Code:                 fhir.Concept(fhir.SNOMED("37125009", "Dilated pupil (finding)")),
		ValueCodeableConcept: &value,
	}
}

var noteReportCode = fhir.LOINC("78573-3", "Ophthalmology Diagnostic study note")

// NoteReport wraps a free-text note into an ophthalmology study note
// DiagnosticReport that references the given observations.
func NoteReport(effective time.Time, note string, results ...map[string]interface{}) map[string]interface{} {
	report := map[string]interface{}{
		"resourceType":      "DiagnosticReport",
		"id":                uuid.New().String(),
		"status":            "final",
		"category":          []fhir.CodeableConcept{Category()},
		"code":              fhir.Concept(noteReportCode),
		"effectiveDateTime": FormatDateTime(effective),
		"conclusion":        note,
	}
	if len(results) > 0 {
		refs := make([]fhir.Reference, 0, len(results))
		for _, r := range results {
			refs = append(refs, Ref(r, ""))
		}
		report["result"] = refs
	}
	return report
}

// Ref references a resource built in the same Bundle.
func Ref(resource map[string]interface{}, display string) fhir.Reference {
	rt, _ := resource["resourceType"].(string)
	id, _ := resource["id"].(string)
	return fhir.Reference{Reference: fhir.EntryURL(rt, id), Display: display}
}

// Collect wraps the resources of one eye into a collection Bundle.
func Collect(resources ...map[string]interface{}) (*fhir.Bundle, error) {
	items := make([]interface{}, len(resources))
	for i, r := range resources {
		items[i] = r
	}
	b, err := fhir.NewCollectionBundle(items...)
	if err != nil {
		return nil, fmt.Errorf("collect resources: %w", err)
	}
	return b, nil
}

// HasText reports whether a free-text field carries content.
func HasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
