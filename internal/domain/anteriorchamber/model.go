// Package anteriorchamber maps SUN graded anterior chamber findings to FHIR.
package anteriorchamber

import (
	"time"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// SystemSUNGrades holds the SUN grade concepts missing from SNOMED.
const SystemSUNGrades = "https://eyematics.org/fhir/eyematics-kds/CodeSystem/sun-grades"

// Grade is a Standardization of Uveitis Nomenclature grade.
type Grade string

const (
	GradeAbsent Grade = "Absent"
	GradeHalf   Grade = "(+)"
	GradeOne    Grade = "+"
	GradeTwo    Grade = "++"
	GradeThree  Grade = "+++"
	GradeFour   Grade = "++++"
)

var (
	// FlareGrades are the selectable flare grades.
	FlareGrades = []Grade{GradeAbsent, GradeOne, GradeTwo, GradeThree, GradeFour}
	// CellGrades are the selectable cell grades, which add (+).
	CellGrades = []Grade{GradeAbsent, GradeHalf, GradeOne, GradeTwo, GradeThree, GradeFour}
)

var gradeCodings = map[Grade]fhir.Coding{
	GradeAbsent: fhir.SNOMED("2667000", "Absent (qualifier value)"),
	GradeHalf:   {System: SystemSUNGrades, Code: "(+)", Display: "Present (+) out of ++++ (qualifier value)"},
	GradeOne:    fhir.SNOMED("260347006", "Present + out of ++++ (qualifier value)"),
	GradeTwo:    fhir.SNOMED("260348001", "Present ++ out of ++++ (qualifier value)"),
	GradeThree:  fhir.SNOMED("260349009", "Present +++ out of ++++ (qualifier value)"),
	GradeFour:   fhir.SNOMED("260350009", "Present ++++ out of ++++ (qualifier value)"),
}

// Coding returns the coding of g.
func (g Grade) Coding() (fhir.Coding, bool) {
	c, ok := gradeCodings[g]
	return c, ok
}

// LocalCodes returns the Eyematics sun-grades concepts.
func LocalCodes() []fhir.Coding {
	return []fhir.Coding{gradeCodings[GradeHalf]}
}

// AllCodings returns every coding the mapping can emit.
func AllCodings() []fhir.Coding {
	out := make([]fhir.Coding, 0, len(CellGrades)+2)
	for _, g := range CellGrades {
		out = append(out, gradeCodings[g])
	}
	return append(out, CellsCode.Coding[0], FlareCode.Coding[0])
}

var (
	CellsCode     = fhir.Concept(fhir.SNOMED("246993000", "Anterior chamber cells (finding)"))
	FlareCode     = fhir.Concept(fhir.SNOMED("246992005", "Anterior chamber flare (finding)"))
	SynechiaeCode = fhir.CodeableConcept{Text: "Synechiae of iris"}
)

// Eye holds the findings of one eye.
type Eye struct {
	Cells     Grade         `json:"cells"`
	Flare     Grade         `json:"flare"`
	Synechiae exam.Presence `json:"synechiae"`
	Note      string        `json:"note"`
}

// Form is the anterior chamber examination form.
type Form struct {
	RecordedDate string `json:"recordedDate"`
	LeftEye      Eye    `json:"leftEye"`
	RightEye     Eye    `json:"rightEye"`
}

func (f *Form) eye(s exam.Side) Eye {
	if s == exam.Left {
		return f.LeftEye
	}
	return f.RightEye
}

func contains(grades []Grade, g Grade) bool {
	for _, x := range grades {
		if x == g {
			return true
		}
	}
	return false
}

// Validate requires cells and flare for both eyes.
func (f *Form) Validate() exam.Issues {
	var issues exam.Issues
	exam.CheckRecordedDate(&issues, f.RecordedDate)
	for _, s := range exam.Sides {
		e := f.eye(s)
		switch {
		case e.Cells == "":
			issues.Errorf(s.Field("cells"), "please grade the anterior chamber cells of the %s eye", s)
		case !contains(CellGrades, e.Cells):
			issues.Errorf(s.Field("cells"), "unknown cell grade %q", e.Cells)
		}
		switch {
		case e.Flare == "":
			issues.Errorf(s.Field("flare"), "please grade the anterior chamber flare of the %s eye", s)
		case !contains(FlareGrades, e.Flare):
			issues.Errorf(s.Field("flare"), "unknown flare grade %q", e.Flare)
		}
		if e.Synechiae != "" {
			if _, ok := e.Synechiae.Coding(); !ok {
				issues.Errorf(s.Field("synechiae"), "unknown synechiae status %q", e.Synechiae)
			}
		}
	}
	return issues
}

// RecordedAt returns the examination time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

func graded(code fhir.CodeableConcept, g Grade, at time.Time, s exam.Side) map[string]interface{} {
	obs := exam.NewObservation(code, at, s)
	c, _ := g.Coding()
	obs["valueCodeableConcept"] = fhir.Concept(c)
	return obs
}

// ToFHIR returns one Bundle per eye with the cells and flare Observations,
// the synechiae Observation when assessed and a note report when given.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()

	bundles := make([]*fhir.Bundle, 0, len(exam.Sides))
	for _, s := range exam.Sides {
		e := f.eye(s)
		resources := []map[string]interface{}{
			graded(CellsCode, e.Cells, at, s),
			graded(FlareCode, e.Flare, at, s),
		}
		if c, ok := e.Synechiae.Coding(); ok {
			obs := exam.NewObservation(SynechiaeCode, at, s)
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

// Converter decodes anterior chamber forms.
type Converter struct{}

func (Converter) Kind() exam.Kind { return exam.KindAnteriorChamber }

func (Converter) Codings() []fhir.Coding { return AllCodings() }

func (Converter) Decode(data []byte) (exam.Form, error) {
	var f Form
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
