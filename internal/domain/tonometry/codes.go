package tonometry

import "github.com/eyecare/eyecare/internal/platform/fhir"

// SystemIOPMethods is the Eyematics CodeSystem for tonometry methods
// without a SNOMED concept.
const SystemIOPMethods = "https://eyematics.org/fhir/eyematics-kds/CodeSystem/iop-methods"

// Method is the tonometry technique, identified by its display name.
type Method string

const (
	Applanation    Method = "Applanation tonometry"
	Pneumatic      Method = "Pneumatic tonometry"
	Extended       Method = "Extended tonometry"
	ExtendedOffice Method = "Extended tonometry - office hours"
	Extended24     Method = "Extended tonometry - 24 hours"
	Schiotz        Method = "Schiotz tonometry (procedure)"
	NonContact     Method = "Non-contact tonometry (procedure)"
	Perkins        Method = "Perkins applanation tonometry (procedure)"
	Goldmann       Method = "Goldmann applanation tonometry (procedure)"
	Indentation    Method = "Indentation tonometry (procedure)"
	Rebound        Method = "Rebound tonometry (procedure)"
	MackayMarg     Method = "Mackay-Marg tonometry"
	DynamicContour Method = "Dynamic contour tonometry (procedure)"
	CornealORA     Method = "Corneal compensated tonometry using ocular response analyzer (procedure)"
	GoldmannORA    Method = "Ocular response analyzer tonometry - Goldmann-correlated"
	Digital        Method = "Digital tonometry"
	Portable       Method = "Portable electronic applanation tonometry (procedure)"
	ReboundRemote  Method = "Rebound tonometry remote"
	ContactLens    Method = "Contact lens tonometry"
)

// Methods lists the selectable methods in form order.
var Methods = []Method{
	Applanation, Pneumatic, Extended, ExtendedOffice, Extended24, Schiotz,
	NonContact, Perkins, Goldmann, Indentation, Rebound, MackayMarg,
	DynamicContour, CornealORA, GoldmannORA, Digital, Portable,
	ReboundRemote, ContactLens,
}

var methodCodings = map[Method]fhir.Coding{
	Applanation:    fhir.SNOMED("252803002", string(Applanation)),
	Pneumatic:      fhir.SNOMED("252804008", string(Pneumatic)),
	Extended:       fhir.SNOMED("252833009", string(Extended)),
	ExtendedOffice: fhir.SNOMED("252835002", string(ExtendedOffice)),
	Extended24:     fhir.SNOMED("252836001", string(Extended24)),
	Schiotz:        fhir.SNOMED("389149000", string(Schiotz)),
	NonContact:     fhir.SNOMED("389150000", string(NonContact)),
	Perkins:        fhir.SNOMED("389151001", string(Perkins)),
	Goldmann:       fhir.SNOMED("389152008", string(Goldmann)),
	Indentation:    fhir.SNOMED("392338001", string(Indentation)),
	Rebound:        fhir.SNOMED("1286870002", string(Rebound)),
	MackayMarg:     fhir.SNOMED("1286871003", string(MackayMarg)),
	DynamicContour: fhir.SNOMED("1286902005", string(DynamicContour)),
	CornealORA:     fhir.SNOMED("1286906008", string(CornealORA)),
	GoldmannORA:    fhir.SNOMED("1286913008", string(GoldmannORA)),
	Digital:        fhir.SNOMED("1286917009", string(Digital)),
	Portable:       fhir.SNOMED("1286918004", string(Portable)),
	ReboundRemote:  {System: SystemIOPMethods, Code: "rebound-tonometry-remote", Display: string(ReboundRemote)},
	ContactLens:    {System: SystemIOPMethods, Code: "contact-lens-tonometry", Display: string(ContactLens)},
}

// Coding returns the coding of m.
func (m Method) Coding() (fhir.Coding, bool) {
	c, ok := methodCodings[m]
	return c, ok
}

// LocalCodes returns the Eyematics iop-methods concepts, for CodeSystem
// publication.
func LocalCodes() []fhir.Coding {
	return []fhir.Coding{methodCodings[ReboundRemote], methodCodings[ContactLens]}
}

// Codings returns every method coding in form order.
func Codings() []fhir.Coding {
	out := make([]fhir.Coding, 0, len(Methods))
	for _, m := range Methods {
		out = append(out, methodCodings[m])
	}
	return out
}

var (
	// IOPCode is the observation code for intraocular pressure.
	IOPCode = fhir.Concept(
		fhir.LOINC("56844-4", "Intraocular pressure of Eye"),
		fhir.SNOMED("41633001", "Intraocular pressure"),
	)
)
