package oct

import (
	"strconv"
	"strings"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// MacularPositions lists the macular grid sectors with their LOINC codes.
var MacularPositions = []fhir.Coding{
	fhir.LOINC("57108-3", "Macular grid.center point thickness by OCT"),
	fhir.LOINC("57109-1", "Macular grid.center subfield thickness by OCT"),
	fhir.LOINC("57110-9", "Macular grid.inner superior subfield thickness by OCT"),
	fhir.LOINC("57111-7", "Macular grid.inner nasal subfield thickness by OCT"),
	fhir.LOINC("57112-5", "Macular grid.inner inferior subfield thickness by OCT"),
	fhir.LOINC("57113-3", "Macular grid.inner temporal subfield thickness by OCT"),
	fhir.LOINC("57114-1", "Macular grid.outer superior subfield thickness by OCT"),
	fhir.LOINC("57115-8", "Macular grid.outer nasal subfield thickness by OCT"),
	fhir.LOINC("57116-6", "Macular grid.outer inferior subfield thickness by OCT"),
	fhir.LOINC("57117-4", "Macular grid.outer temporal subfield thickness by OCT"),
	fhir.LOINC("57118-2", "Macular grid.total volume by OCT"),
}

// RNFLPositions lists the peripapillary nerve fiber layer sectors per eye.
var RNFLPositions = map[exam.Side][]fhir.Coding{
	exam.Right: rnfl("Right", []string{
		"86287-0",
		"86283-9",
		"86301-9",
		"86282-1",
		"86280-5",
		"86284-7",
		"86276-3",
		"86274-8",
		"86273-0",
		"86305-0",
		"86306-8",
		"86307-6",
		"86308-4",
		"86309-2",
		"86310-0",
		"86311-8",
		"86312-6",
		"86313-4",
		"86314-2",
		"86315-9",
		"86304-3",
	}),
	exam.Left: rnfl("Left", []string{
		"86289-6",
		"86288-8",
		"86290-4",
		"86272-2",
		"86281-3",
		"86279-7",
		"86277-1",
		"86275-5",
		"86278-9",
		"86293-8",
		"86294-6",
		"86295-3",
		"86296-1",
		"86297-9",
		"86298-7",
		"86299-5",
		"86300-1",
		"86286-2",
		"86302-7",
		"86303-5",
		"86292-0",
	}),
}

var rnflSectors = []string{
	"inferior temporal",
	"inferior",
	"mean",
	"nasal inferior",
	"nasal superior",
	"nasal",
	"superior",
	"temporal superior",
	"temporal",
}

// rnfl pairs codes with the sector displays: the nine named sectors first,
// then clock hours 1 to 12.
func rnfl(side string, codes []string) []fhir.Coding {
	out := make([]fhir.Coding, 0, len(codes))
	for i, code := range codes {
		sector := "clock hour " + strconv.Itoa(i-len(rnflSectors)+1)
		if i < len(rnflSectors) {
			sector = rnflSectors[i]
		}
		out = append(out, fhir.LOINC(code, side+" retina Retinal nerve fiber layer."+sector+" thickness by OCT"))
	}
	return out
}

// OpticDiscDiameterCode is the observation code of the vertical disc diameter.
var OpticDiscDiameterCode = fhir.Concept(fhir.SNOMED("392158006", "Vertical diameter of optic disc (observable entity)"))

// TotalVolumeCode is the one macular grid code measuring a volume.
const TotalVolumeCode = "57118-2"

func lookup(codings []fhir.Coding, position string) (fhir.Coding, bool) {
	p := strings.TrimSpace(position)
	for _, c := range codings {
		if strings.EqualFold(c.Display, p) || c.Code == p {
			return c, true
		}
	}
	return fhir.Coding{}, false
}

// MacularCoding resolves a macular grid position by display or LOINC code.
func MacularCoding(position string) (fhir.Coding, bool) {
	return lookup(MacularPositions, position)
}

// RNFLCoding resolves a nerve fiber layer position of the given eye by
// display or LOINC code.
func RNFLCoding(side exam.Side, position string) (fhir.Coding, bool) {
	return lookup(RNFLPositions[side], position)
}

// AllCodings returns every coding the mapping can emit.
func AllCodings() []fhir.Coding {
	out := append([]fhir.Coding{}, MacularPositions...)
	out = append(out, RNFLPositions[exam.Right]...)
	out = append(out, RNFLPositions[exam.Left]...)
	return append(out, OpticDiscDiameterCode.Coding...)
}
