package visus

import "github.com/eyecare/eyecare/internal/platform/fhir"

// Eyematics terminology used by the visual acuity mapping.
const (
	SystemCorrectionMethods = "https://eyematics.org/fhir/eyematics-kds/CodeSystem/vs-va-correction-methods"
	SystemOptotypes         = "https://eyematics.org/fhir/eyematics-kds/CodeSystem/va-optotypes"
	ValueSetOptotypes       = "https://eyematics.org/fhir/eyematics-kds/ValueSet/va-optotypes"
	SystemDecimalUnit       = "https://imi-ms.github.io/eyematics-kds/CodeSystem-vs-units.html#vs-units-VAS"
	LensExtensionURL        = "https://larfuma.github.io/fhir-eyecare-ig/StructureDefinition/LensDuringVATestSpecification"
)

// CorrectionMethod is the refractive correction worn during the test.
type CorrectionMethod string

const (
	Uncorrected     CorrectionMethod = "Uncorrected visual acuity"
	Glasses         CorrectionMethod = "Eye glasses, device"
	ContactLenses   CorrectionMethod = "Contact lenses, device"
	Pinhole         CorrectionMethod = "Pinhole Occluder"
	TLAuto          CorrectionMethod = "trial-lenses-autorefraction"
	TLNoCycloplegia CorrectionMethod = "trial-lenses-manifest-without-cycloplegia"
	TLCycloplegia   CorrectionMethod = "trial-lenses-manifest-with-cycloplegia"
	TLRetinoscopy   CorrectionMethod = "trial-lenses-retinoscopy"
	TLNoOrigin      CorrectionMethod = "trial-lenses-unspecified-origin"
)

// CorrectionMethods lists the selectable correction methods.
var CorrectionMethods = []CorrectionMethod{
	Uncorrected, Glasses, ContactLenses, Pinhole,
	TLAuto, TLNoCycloplegia, TLCycloplegia, TLRetinoscopy, TLNoOrigin,
}

func trialLens(code, display string) fhir.Coding {
	return fhir.Coding{System: SystemCorrectionMethods, Code: code, Display: display}
}

var correctionCodings = map[CorrectionMethod]fhir.Coding{
	Uncorrected:     fhir.SNOMED("420050001", "Uncorrected visual acuity"),
	Glasses:         fhir.SNOMED("50121007", "Eye glasses, device"),
	ContactLenses:   fhir.SNOMED("57368009", "Contact lenses, device"),
	Pinhole:         fhir.SNOMED("257492003", "Pinhole (physical object)"),
	TLAuto:          trialLens(string(TLAuto), "Trial lenses, autorefraction"),
	TLNoCycloplegia: trialLens(string(TLNoCycloplegia), "Trial lenses, manifest refraction without cycloplegia"),
	TLCycloplegia:   trialLens(string(TLCycloplegia), "Trial lenses, manifest refraction with cycloplegia"),
	TLRetinoscopy:   trialLens(string(TLRetinoscopy), "Trial lenses, retinoscopy"),
	TLNoOrigin:      trialLens(string(TLNoOrigin), "Trial lenses, unspecified origin"),
}

// Coding returns the coding of m.
func (m CorrectionMethod) Coding() (fhir.Coding, bool) {
	c, ok := correctionCodings[m]
	return c, ok
}

// UsesLens reports whether the method places a lens in front of the eye,
// in which case the lens specification is recorded.
func (m CorrectionMethod) UsesLens() bool {
	return m != Uncorrected && m != Pinhole
}

// TestDistance is the chart distance.
type TestDistance string

const (
	Near         TestDistance = "Near"
	Far          TestDistance = "Far"
	Intermediate TestDistance = "Intermediate"
)

// TestDistances lists the selectable distances.
var TestDistances = []TestDistance{Near, Far, Intermediate}

var distanceCodings = map[TestDistance]fhir.Coding{
	Near:         fhir.LOINC("LA32578-9", "Near"),
	Far:          fhir.LOINC("LA32577-1", "Far"),
	Intermediate: fhir.LOINC("LA16550-8", "Intermediate"),
}

func (d TestDistance) Coding() (fhir.Coding, bool) {
	c, ok := distanceCodings[d]
	return c, ok
}

// Optotype is the symbol set of the acuity chart.
type Optotype string

const (
	LandoltC  Optotype = "Landolt C"
	Sjogren   Optotype = "Sjogren's Hand Test"
	Lea       Optotype = "Lea Symbol Test"
	ETest     Optotype = "E test"
	Kay       Optotype = "Kay picture test"
	Cambridge Optotype = "Cambridge crowded letter charts"
	Sonsken   Optotype = "Sonsken charts"
	Sheridan  Optotype = "Sheridan Gardiner test"
	Stycar    Optotype = "Stycar vision test"
	Cardiff   Optotype = "Cardiff acuity cards"
	Teller    Optotype = "Teller acuity cards"
	Keeler    Optotype = "Keeler acuity cards"
	ETDRS     Optotype = "Treatment chart"
	Allen     Optotype = "Allen figure"
	HOTV      Optotype = "HOTV"
	Numbers   Optotype = "Numbers"
	Snellen   Optotype = "Snellen"
)

// Optotypes lists the selectable optotypes.
var Optotypes = []Optotype{
	LandoltC, Sjogren, Lea, ETest, Kay, Cambridge, Sonsken, Sheridan, Stycar,
	Cardiff, Teller, Keeler, ETDRS, Allen, HOTV, Numbers, Snellen,
}

func optotype(code, display string) fhir.Coding {
	return fhir.Coding{System: SystemOptotypes, Code: code, Display: display}
}

var optotypeCodings = map[Optotype][]fhir.Coding{
	LandoltC:  {optotype("LandoltC", "Landolt C")},
	Sjogren:   {optotype("Sjogren", "Sjogren's Hand Test")},
	Lea:       {optotype("Lea", "Lea Symbol Test")},
	ETest:     {fhir.SNOMED("400911007", "E test (procedure)")},
	Kay:       {fhir.SNOMED("252982005", "Kay picture test")},
	Cambridge: {fhir.SNOMED("252977003", "Cambridge crowded letter charts")},
	Sonsken:   {fhir.SNOMED("252976007", "Sonsken charts")},
	Sheridan:  {fhir.SNOMED("252978008", "Sheridan Gardiner test")},
	Stycar:    {fhir.SNOMED("252884005", "Stycar vision test")},
	Cardiff:   {fhir.SNOMED("285805006", "Cardiff acuity cards")},
	Teller:    {fhir.SNOMED("285803004", "Teller acuity cards"), fhir.LOINC("LA25494-8", "Teller")},
	Keeler:    {fhir.SNOMED("285804005", "Keeler acuity cards")},
	ETDRS:     {fhir.SNOMED("400914004", "Early Treatment of Diabetic Retinopathy Study visual acuity chart (physical object)")},
	Allen:     {fhir.LOINC("LA25495-5", "Allen figure")},
	HOTV:      {fhir.LOINC("LA25496-3", "HOTV")},
	Numbers:   {fhir.LOINC("LA25497-1", "Numbers")},
	Snellen:   {fhir.LOINC("LA25498-9", "Snellen")},
}

// Codings returns the codings of o. Teller cards carry both a SNOMED and a
// LOINC coding.
func (o Optotype) Codings() ([]fhir.Coding, bool) {
	c, ok := optotypeCodings[o]
	return c, ok
}

// Category is a qualitative acuity below the measurable range.
type Category string

const (
	CountFingers  Category = "FZ"
	HandMovements Category = "HBW"
	LightOnly     Category = "LS"
	NoLight       Category = "NL"
)

var categoryCodings = map[Category]fhir.Coding{
	CountFingers:  fhir.LOINC("LA24679-5", "Count fingers (CF)"),
	HandMovements: fhir.SNOMED("260295004", "Sees hand movements (finding)"),
	LightOnly:     fhir.SNOMED("260296003", "Perceives light only (finding)"),
	NoLight:       fhir.SNOMED("63063006", "Visual acuity, no light perception (finding)"),
}

var (
	VisualAcuityCode = fhir.Concept(fhir.SNOMED("260246004", "Visual Acuity finding"))
	TestDistanceCode = fhir.Concept(fhir.SNOMED("252124009", "Test distance"))
	OptotypeCode     = fhir.Concept(fhir.Coding{System: ValueSetOptotypes, Code: "VS_VA_Optotypes", Display: "Visual Acuity Optotypes (Experimental)"})
	PinholeCode      = fhir.Concept(fhir.SNOMED("257492003", "Pinhole (physical object)"))
	PinholeUsed      = fhir.SNOMED("373062004", "Device used (finding)")
	PinholeNotUsed   = fhir.SNOMED("262009000", "Not used")
)

// PositionCode returns the eye position code of the correction component.
func PositionCode(left bool) fhir.CodeableConcept {
	if left {
		return fhir.Concept(fhir.LOINC("29074-2", "Left Eye position"))
	}
	return fhir.Concept(fhir.LOINC("29073-4", "Right Eye position"))
}

// LocalCorrectionCodes returns the Eyematics correction method concepts.
func LocalCorrectionCodes() []fhir.Coding {
	var out []fhir.Coding
	for _, m := range CorrectionMethods {
		if c := correctionCodings[m]; c.System == SystemCorrectionMethods {
			out = append(out, c)
		}
	}
	return out
}

// LocalOptotypeCodes returns the Eyematics optotype concepts.
func LocalOptotypeCodes() []fhir.Coding {
	var out []fhir.Coding
	for _, o := range Optotypes {
		for _, c := range optotypeCodings[o] {
			if c.System == SystemOptotypes {
				out = append(out, c)
			}
		}
	}
	return out
}

// AllCodings returns every coding the mapping can emit, for terminology
// publication.
func AllCodings() []fhir.Coding {
	var out []fhir.Coding
	for _, m := range CorrectionMethods {
		out = append(out, correctionCodings[m])
	}
	for _, d := range TestDistances {
		out = append(out, distanceCodings[d])
	}
	for _, o := range Optotypes {
		out = append(out, optotypeCodings[o]...)
	}
	for _, c := range []Category{CountFingers, HandMovements, LightOnly, NoLight} {
		out = append(out, categoryCodings[c])
	}
	out = append(out, VisualAcuityCode.Coding...)
	out = append(out, TestDistanceCode.Coding...)
	out = append(out, PinholeCode.Coding...)
	out = append(out, PinholeUsed, PinholeNotUsed)
	out = append(out, PositionCode(true).Coding...)
	out = append(out, PositionCode(false).Coding...)
	return out
}
