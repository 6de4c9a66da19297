// Package tonometry maps intraocular pressure measurements to FHIR
// Observations.
package tonometry

import (
	"time"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Eye holds the measurement of one eye.
type Eye struct {
	Pressure  *float64 `json:"pressure"`
	Mydriasis bool     `json:"mydriasis"`
}

// Form is the tonometry examination form.
type Form struct {
	RecordedDate string `json:"recordedDate"`
	IOPMethod    Method `json:"iopMethod"`
	LeftEye      Eye    `json:"leftEye"`
	RightEye     Eye    `json:"rightEye"`
}

func (f *Form) eye(s exam.Side) Eye {
	if s == exam.Left {
		return f.LeftEye
	}
	return f.RightEye
}

// Validate checks the examination date, the method and both pressures.
func (f *Form) Validate() exam.Issues {
	var issues exam.Issues
	exam.CheckRecordedDate(&issues, f.RecordedDate)
	if f.IOPMethod == "" {
		issues.Errorf("iopMethod", "please select a tonometry method")
	} else if _, ok := f.IOPMethod.Coding(); !ok {
		issues.Errorf("iopMethod", "unknown tonometry method %q", f.IOPMethod)
	}
	for _, s := range exam.Sides {
		exam.CheckMeasurement(&issues, s, "pressure", "the intraocular pressure", f.eye(s).Pressure)
	}
	return issues
}

// RecordedAt returns the examination time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

// ToFHIR returns one Bundle per eye holding the pressure Observation.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()
	method, _ := f.IOPMethod.Coding()

	bundles := make([]*fhir.Bundle, 0, len(exam.Sides))
	for _, s := range exam.Sides {
		e := f.eye(s)
		obs := exam.NewObservation(IOPCode, at, s)
		obs["valueQuantity"] = fhir.UCUMQuantity(*e.Pressure, "mm[Hg]", "mm[Hg]")
		obs["method"] = fhir.Concept(method)
		obs["component"] = []fhir.ObservationComponent{exam.MydriasisComponent(e.Mydriasis)}

		b, err := exam.Collect(obs)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Converter decodes tonometry forms.
type Converter struct{}

func (Converter) Kind() exam.Kind { return exam.KindTonometry }

// Codings lists the codings tonometry observations carry.
func (Converter) Codings() []fhir.Coding {
	return append(Codings(), IOPCode.Coding...)
}

func (Converter) Decode(data []byte) (exam.Form, error) {
	var f Form
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
