// Package visus maps visual acuity tests to FHIR Observations.
package visus

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Lens is the trial or worn lens specification.
type Lens struct {
	Sphere   *float64 `json:"sphere"`
	Cylinder *float64 `json:"cylinder"`
	Axis     *float64 `json:"axis"`
}

func (l Lens) empty() bool {
	return l.Sphere == nil && l.Cylinder == nil && l.Axis == nil
}

func (l Lens) zero() bool {
	return val(l.Sphere) == 0 && val(l.Cylinder) == 0 && val(l.Axis) == 0
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Eye holds the acuity result of one eye.
type Eye struct {
	Lens      Lens   `json:"lens"`
	Visus     string `json:"visus"`
	Mydriasis bool   `json:"mydriasis"`
	Pinhole   bool   `json:"pinhole"`
}

// Form is the visual acuity examination form.
type Form struct {
	RecordedDate     string           `json:"recordedDate"`
	CorrectionMethod CorrectionMethod `json:"correctionMethod"`
	TestDistance     TestDistance     `json:"testDistance"`
	Optotype         Optotype         `json:"optotype"`
	LeftEye          Eye              `json:"leftEye"`
	RightEye         Eye              `json:"rightEye"`
}

func (f *Form) eye(s exam.Side) Eye {
	if s == exam.Left {
		return f.LeftEye
	}
	return f.RightEye
}

// Value is a parsed acuity: exactly one of Decimal, Ratio or Category is set.
type Value struct {
	Decimal  *decimal.Decimal
	Ratio    *[2]decimal.Decimal
	Category Category
}

// ParseValue interprets an acuity entry. Entries with a decimal separator
// ("0,8", "1.0") are decimal acuities, entries with a slash ("6/12") are
// Snellen fractions and FZ, HBW, LS and NL are qualitative categories.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Value{}, fmt.Errorf("acuity is empty")
	case strings.ContainsAny(s, ",."):
		d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
		if err != nil {
			return Value{}, fmt.Errorf("acuity %q is not a decimal", s)
		}
		if d.IsNegative() {
			return Value{}, fmt.Errorf("acuity %q must not be negative", s)
		}
		return Value{Decimal: &d}, nil
	case strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		num, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			return Value{}, fmt.Errorf("acuity %q has an invalid numerator", s)
		}
		den, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return Value{}, fmt.Errorf("acuity %q has an invalid denominator", s)
		}
		if num.IsNegative() || !den.IsPositive() {
			return Value{}, fmt.Errorf("acuity %q is not a valid fraction", s)
		}
		return Value{Ratio: &[2]decimal.Decimal{num, den}}, nil
	}
	c := Category(strings.ToUpper(s))
	if _, ok := categoryCodings[c]; ok {
		return Value{Category: c}, nil
	}
	return Value{}, fmt.Errorf("acuity %q is neither a decimal, a fraction nor one of FZ, HBW, LS, NL", s)
}

// apply sets the value[x] of obs.
func (v Value) apply(obs map[string]interface{}) {
	switch {
	case v.Decimal != nil:
		n := v.Decimal.InexactFloat64()
		obs["valueQuantity"] = fhir.Quantity{Value: &n, System: SystemDecimalUnit, Code: "Decimal"}
	case v.Ratio != nil:
		num, den := v.Ratio[0].InexactFloat64(), v.Ratio[1].InexactFloat64()
		obs["valueRatio"] = fhir.Ratio{
			Numerator:   &fhir.Quantity{Value: &num},
			Denominator: &fhir.Quantity{Value: &den},
		}
	default:
		obs["valueCodeableConcept"] = fhir.Concept(categoryCodings[v.Category])
	}
}

// Validate checks the test setup and the acuity of both eyes.
func (f *Form) Validate() exam.Issues {
	var issues exam.Issues
	exam.CheckRecordedDate(&issues, f.RecordedDate)

	_, knownMethod := f.CorrectionMethod.Coding()
	if !knownMethod {
		issues.Errorf("correctionMethod", "please select a known correction method")
	}
	if _, ok := f.TestDistance.Coding(); !ok {
		issues.Errorf("testDistance", "please select a known test distance")
	}
	if _, ok := f.Optotype.Codings(); !ok {
		issues.Errorf("optotype", "please select a known optotype")
	}

	for _, s := range exam.Sides {
		e := f.eye(s)
		if _, err := ParseValue(e.Visus); err != nil {
			issues.Errorf(s.Field("visus"), "%s eye: %v", s.Label(), err)
		}
		if !knownMethod || !f.CorrectionMethod.UsesLens() {
			continue
		}
		switch {
		case e.Lens.empty():
			issues.Errorf(s.Field("lens"), "please enter the lens used for the %s eye", s)
			continue
		case e.Lens.Sphere == nil || e.Lens.Cylinder == nil || e.Lens.Axis == nil:
			issues.Errorf(s.Field("lens"), "please enter sphere, cylinder and axis for the %s eye", s)
		case e.Lens.zero():
			issues.Warnf(s.Field("lens"), "the lens of the %s eye has no refractive power", s)
		}
		if a := val(e.Lens.Axis); a < 0 || a > 180 {
			issues.Errorf(s.Field("lens.axis"), "the axis of the %s eye must be between 0 and 180 degrees", s)
		}
	}
	return issues
}

// RecordedAt returns the examination time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

// ToFHIR returns one Bundle per eye holding the acuity Observation.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()

	bundles := make([]*fhir.Bundle, 0, len(exam.Sides))
	for _, s := range exam.Sides {
		e := f.eye(s)
		v, err := ParseValue(e.Visus)
		if err != nil {
			return nil, err
		}
		obs := exam.NewObservation(VisualAcuityCode, at, s)
		v.apply(obs)
		obs["component"] = f.components(s, e)

		b, err := exam.Collect(obs)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (f *Form) components(s exam.Side, e Eye) []fhir.ObservationComponent {
	distance, _ := f.TestDistance.Coding()
	optotypes, _ := f.Optotype.Codings()
	pinhole := fhir.Concept(PinholeNotUsed)
	if e.Pinhole {
		pinhole = fhir.Concept(PinholeUsed)
	}
	distanceValue := fhir.Concept(distance)
	optotypeValue := fhir.Concept(optotypes...)

	return []fhir.ObservationComponent{
		f.correction(s, e.Lens),
		{Code: TestDistanceCode, ValueCodeableConcept: &distanceValue},
		{Code: OptotypeCode, ValueCodeableConcept: &optotypeValue},
		exam.MydriasisComponent(e.Mydriasis),
		{Code: PinholeCode, ValueCodeableConcept: &pinhole},
	}
}

// correction builds the correction component. Lens-based methods carry the
// lens specification as a complex extension.
func (f *Form) correction(s exam.Side, lens Lens) fhir.ObservationComponent {
	method, _ := f.CorrectionMethod.Coding()
	value := fhir.Concept(method)
	c := fhir.ObservationComponent{
		Code:                 PositionCode(s == exam.Left),
		ValueCodeableConcept: &value,
	}
	if !f.CorrectionMethod.UsesLens() {
		return c
	}
	sphere, cylinder, axis := val(lens.Sphere), val(lens.Cylinder), val(lens.Axis)
	c.Extension = []fhir.Extension{{
		URL: LensExtensionURL,
		Extension: []fhir.Extension{
			{URL: "type", ValueCodeableConcept: &value},
			{URL: "sphere", ValueDecimal: &sphere},
			{URL: "cylinder", ValueDecimal: &cylinder},
			{URL: "axis", ValueDecimal: &axis},
		},
	}}
	return c
}

// Converter decodes visual acuity forms.
type Converter struct{}

func (Converter) Kind() exam.Kind { return exam.KindVisus }

func (Converter) Codings() []fhir.Coding { return AllCodings() }

func (Converter) Decode(data []byte) (exam.Form, error) {
	var f Form
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
