// Package funduscopy maps fundus findings to FHIR Observations.
package funduscopy

import (
	"time"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

var (
	PapilledemaCode  = fhir.Concept(fhir.SNOMED("423341008", "Edema of optic disc (disorder)"))
	MacularEdemaCode = fhir.Concept(fhir.SNOMED("37231002", "Macular retinal edema (disorder)"))
	VasculitisCode   = fhir.Concept(fhir.SNOMED("77628002", "Retinal vasculitis (disorder)"))
)

// Eye holds the findings of one eye.
type Eye struct {
	Papilledema  exam.Presence `json:"papilledema"`
	MacularEdema exam.Presence `json:"macularEdema"`
	Vasculitis   exam.Presence `json:"vasculitis"`
	Note         string        `json:"note"`
}

type finding struct {
	field string
	label string
	code  fhir.CodeableConcept
	value exam.Presence
}

func (e Eye) findings() []finding {
	return []finding{
		{"papilledema", "papilledema", PapilledemaCode, e.Papilledema},
		{"macularEdema", "macular edema", MacularEdemaCode, e.MacularEdema},
		{"vasculitis", "signs of vasculitis", VasculitisCode, e.Vasculitis},
	}
}

// Form is the funduscopy examination form. Strict forms reject findings
// left as Unknown.
type Form struct {
	RecordedDate string `json:"recordedDate"`
	Strict       bool   `json:"strict"`
	LeftEye      Eye    `json:"leftEye"`
	RightEye     Eye    `json:"rightEye"`
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
	for _, s := range exam.Sides {
		for _, fd := range f.eye(s).findings() {
			field := s.Field(fd.field)
			if fd.value == "" {
				issues.Errorf(field, "please state whether %s is present in the %s eye", fd.label, s)
				continue
			}
			if _, ok := fd.value.Coding(); !ok {
				issues.Errorf(field, "unknown status %q", fd.value)
				continue
			}
			if fd.value != exam.Unknown {
				continue
			}
			if f.Strict {
				issues.Errorf(field, "please state whether %s is present in the %s eye", fd.label, s)
			} else {
				issues.Warnf(field, "%s of the %s eye recorded as unknown", fd.label, s)
			}
		}
	}
	return issues
}

// RecordedAt returns the examination time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

// ToFHIR returns one Bundle per eye with the three finding Observations
// and a note report referencing them when a note is given.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()

	bundles := make([]*fhir.Bundle, 0, len(exam.Sides))
	for _, s := range exam.Sides {
		e := f.eye(s)
		var resources []map[string]interface{}
		for _, fd := range e.findings() {
			obs := exam.NewObservation(fd.code, at, s)
			c, _ := fd.value.Coding()
			obs["valueCodeableConcept"] = fhir.Concept(c)
			resources = append(resources, obs)
		}
		if exam.HasText(e.Note) {
			resources = append(resources, exam.NoteReport(at, e.Note, resources...))
		}
		b, err := exam.Collect(resources...)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Converter decodes funduscopy forms.
type Converter struct{}

func (Converter) Kind() exam.Kind { return exam.KindFunduscopy }

func (Converter) Codings() []fhir.Coding {
	var out []fhir.Coding
	for _, c := range []fhir.CodeableConcept{PapilledemaCode, MacularEdemaCode, VasculitisCode} {
		out = append(out, c.Coding...)
	}
	return out
}

func (Converter) Decode(data []byte) (exam.Form, error) {
	var f Form
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
