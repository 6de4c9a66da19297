// Package ivi maps intravitreal injections and the planned follow-up
// schedule to FHIR medication resources.
package ivi

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// SystemRegimen is the Eyematics CodeSystem for treatment regimens.
const SystemRegimen = "https://eyematics.org/fhir/eyematics-kds/CodeSystem/ivi-treatment-regimen"

// MaxFollowUpWeeks bounds a follow-up appointment.
const MaxFollowUpWeeks = 20

// MaxAppointments is the number of follow-up appointments a form can plan.
const MaxAppointments = 3

// Regimen is the anti-VEGF treatment scheme.
type Regimen string

const (
	Fixed          Regimen = "Fixed Interval"
	ProReNata      Regimen = "Pro Re Nata"
	TreatAndExtend Regimen = "Treat-and-Extend"
)

// Regimens lists the selectable regimens.
var Regimens = []Regimen{Fixed, ProReNata, TreatAndExtend}

var regimenCodings = map[Regimen]fhir.Coding{
	Fixed:          {System: SystemRegimen, Code: "Fixed", Display: string(Fixed)},
	ProReNata:      {System: SystemRegimen, Code: "PRN", Display: string(ProReNata)},
	TreatAndExtend: {System: SystemRegimen, Code: "TE", Display: string(TreatAndExtend)},
}

func (r Regimen) Coding() (fhir.Coding, bool) {
	c, ok := regimenCodings[r]
	return c, ok
}

// RegimenCodes returns the regimen concepts in form order.
func RegimenCodes() []fhir.Coding {
	out := make([]fhir.Coding, 0, len(Regimens))
	for _, r := range Regimens {
		out = append(out, regimenCodings[r])
	}
	return out
}

var (
	RouteIntravitreal = fhir.Concept(fhir.Coding{System: fhir.SystemEDQM, Code: "20047000", Display: "Intravitreal use"})
	HandMovementsCode = fhir.Concept(fhir.SNOMED("260295004", "Sees hand movements (finding)"))
)

// Eye holds the injection given to one eye.
type Eye struct {
	Medication   string  `json:"medication"`
	Regimen      Regimen `json:"regimen"`
	Appointments []*int  `json:"appointments"`
	Visus        bool    `json:"visus"`
	Note         string  `json:"note"`
}

// Treated reports whether the eye received an injection.
func (e Eye) Treated() bool {
	return e.Medication != "" && e.Regimen != ""
}

func (e Eye) weeks() []int {
	var out []int
	for _, w := range e.Appointments {
		if w != nil {
			out = append(out, *w)
		}
	}
	return out
}

// Form is the intravitreal injection form.
type Form struct {
	RecordedDate string `json:"recordedDate"`
	LeftEye      Eye    `json:"leftEye"`
	RightEye     Eye    `json:"rightEye"`

	catalog *Catalog
}

func (f *Form) eye(s exam.Side) Eye {
	if s == exam.Left {
		return f.LeftEye
	}
	return f.RightEye
}

func (f *Form) Validate() exam.Issues {
	var issues exam.Issues
	exam.CheckRecordedDate(&issues, f.RecordedDate)

	treated := 0
	for _, s := range exam.Sides {
		e := f.eye(s)
		if !e.Treated() {
			if e.Medication != "" || e.Regimen != "" {
				issues.Warnf(s.Field("medication"), "the %s eye needs both medication and regimen and is not recorded", s)
			}
			continue
		}
		treated++
		if _, ok := f.catalog.Lookup(e.Medication); !ok {
			issues.Errorf(s.Field("medication"), "unknown medication %q", e.Medication)
		}
		if _, ok := e.Regimen.Coding(); !ok {
			issues.Errorf(s.Field("regimen"), "unknown treatment regimen %q", e.Regimen)
		}
		weeks := e.weeks()
		if len(weeks) > MaxAppointments {
			issues.Errorf(s.Field("appointments"), "at most %d follow-up appointments can be planned", MaxAppointments)
		}
		for i, w := range weeks {
			if w < 1 || w > MaxFollowUpWeeks {
				issues.Errorf(s.Field("appointments"), "follow-up in %d weeks is outside 1 to %d weeks", w, MaxFollowUpWeeks)
			}
			if i > 0 && w <= weeks[i-1] {
				issues.Errorf(s.Field("appointments"), "follow-up appointments of the %s eye must be in ascending order", s)
			}
		}
	}
	if treated == 0 {
		issues.Errorf("medication", "please enter medication and treatment regimen for at least one eye")
	}
	return issues
}

// RecordedAt returns the injection time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

// ToFHIR returns one Bundle per treated eye holding the
// MedicationAdministration, the Medication, the follow-up MedicationRequest
// and the hand movement Observation. Both eyes share one Patient.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()
	patient := fhir.Reference{
		Reference: fhir.FormatReference("Patient", uuid.New().String()),
		Display:   "Treated Patient",
	}

	var bundles []*fhir.Bundle
	for _, s := range exam.Sides {
		e := f.eye(s)
		if !e.Treated() {
			continue
		}
		med, _ := f.catalog.Lookup(e.Medication)
		medication := med.Resource()
		medRef := exam.Ref(medication, "Prescribed Medication")
		site := exam.BodySite(s)

		admin := map[string]interface{}{
			"resourceType":        "MedicationAdministration",
			"id":                  uuid.New().String(),
			"status":              "completed",
			"medicationReference": medRef,
			"subject":             patient,
			"effectiveDateTime":   exam.FormatDateTime(at),
			"dosage": map[string]interface{}{
				"site":         site,
				"route":        RouteIntravitreal,
				"dose":         med.Dose(),
				"rateQuantity": fhir.Quantity{Value: ptr(1)},
			},
		}
		if exam.HasText(e.Note) {
			admin["note"] = []fhir.Annotation{{Text: e.Note}}
		}

		request, err := f.request(e, at, patient, medRef, med, site)
		if err != nil {
			return nil, err
		}

		obs := exam.NewObservation(HandMovementsCode, at, s)
		presence, _ := exam.PresenceOf(e.Visus).Coding()
		obs["valueCodeableConcept"] = fhir.Concept(presence)

		b, err := exam.Collect(admin, medication, request, obs)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (f *Form) request(e Eye, at time.Time, patient, medRef fhir.Reference, med Medication, site fhir.CodeableConcept) (map[string]interface{}, error) {
	regimen, ok := e.Regimen.Coding()
	if !ok {
		return nil, fmt.Errorf("unknown treatment regimen %q", e.Regimen)
	}
	weeks := e.weeks()
	instructions := make([]map[string]interface{}, 0, len(weeks))
	for i, w := range weeks {
		instructions = append(instructions, map[string]interface{}{
			"sequence": i + 1,
			"text":     fmt.Sprintf("Follow-up injection in %d weeks", w),
			"timing": map[string]interface{}{
				"event": []string{exam.FormatDateTime(at.AddDate(0, 0, 7*w))},
			},
			"site":  site,
			"route": RouteIntravitreal,
			"doseAndRate": []map[string]interface{}{{
				"doseQuantity": med.Dose(),
			}},
		})
	}
	request := map[string]interface{}{
		"resourceType":        "MedicationRequest",
		"id":                  uuid.New().String(),
		"status":              "active",
		"intent":              "plan",
		"medicationReference": medRef,
		"subject":             patient,
		"authoredOn":          exam.FormatDateTime(at),
		"courseOfTherapyType": fhir.Concept(regimen),
	}
	if len(instructions) > 0 {
		request["dosageInstruction"] = instructions
	}
	return request, nil
}

func ptr(v float64) *float64 { return &v }

// Converter decodes IVI forms against a medication catalog.
type Converter struct {
	Catalog *Catalog
}

func (Converter) Kind() exam.Kind { return exam.KindIVI }

// Codings lists the regimen, route and observation codings together with
// the ATC code of every catalog medication.
func (c Converter) Codings() []fhir.Coding {
	out := RegimenCodes()
	out = append(out, RouteIntravitreal.Coding...)
	out = append(out, HandMovementsCode.Coding...)
	catalog := c.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	for _, m := range catalog.Medications() {
		out = append(out, fhir.Coding{System: SystemATC, Code: m.ATC, Display: m.Substance})
	}
	return out
}

func (c Converter) Decode(data []byte) (exam.Form, error) {
	f := Form{catalog: c.Catalog}
	if f.catalog == nil {
		f.catalog = DefaultCatalog()
	}
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
