// Package oct maps optical coherence tomography measurements, and the
// DICOM image and device they were taken from, to FHIR resources.
package oct

import (
	"regexp"
	"strings"
	"time"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// DicomEndpoint is the Endpoint serving uploaded DICOM files.
const DicomEndpoint = "Endpoint/local-dicom-endpoint"

// Measurement is a measured value, positioned where applicable.
type Measurement struct {
	Value    *float64 `json:"value"`
	Position string   `json:"position,omitempty"`
}

// Dicom references the uploaded scan and the device header fields read
// from it.
type Dicom struct {
	URL              string `json:"url"`
	Manufacturer     string `json:"manufacturer"`
	ModelName        string `json:"modelName"`
	SoftwareVersions string `json:"softwareVersions"`
}

func (d Dicom) hasDevice() bool {
	return exam.HasText(d.Manufacturer) && exam.HasText(d.ModelName) && exam.HasText(d.SoftwareVersions)
}

// Eye holds the measurements of one eye.
type Eye struct {
	RetinalThickness  Measurement `json:"retinalThickness"`
	OpticDiscDiameter Measurement `json:"opticDiscDiameter"`
	RNFLThickness     Measurement `json:"rnflThickness"`
	Dicom             Dicom       `json:"dicom"`
}

// Form is the OCT examination form.
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

func (f *Form) Validate() exam.Issues {
	var issues exam.Issues
	exam.CheckRecordedDate(&issues, f.RecordedDate)
	for _, s := range exam.Sides {
		e := f.eye(s)
		exam.CheckMeasurement(&issues, s, "retinalThickness.value", "the retinal thickness", e.RetinalThickness.Value)
		exam.CheckMeasurement(&issues, s, "opticDiscDiameter.value", "the optic disc diameter", e.OpticDiscDiameter.Value)
		exam.CheckMeasurement(&issues, s, "rnflThickness.value", "the RNFL thickness", e.RNFLThickness.Value)

		if p := e.RetinalThickness.Position; p == "" {
			issues.Errorf(s.Field("retinalThickness.position"), "please select the macular grid position for the %s eye", s)
		} else if _, ok := MacularCoding(p); !ok {
			issues.Errorf(s.Field("retinalThickness.position"), "unknown macular grid position %q", p)
		}

		switch p := e.RNFLThickness.Position; {
		case p == "":
			issues.Errorf(s.Field("rnflThickness.position"), "please select the RNFL position for the %s eye", s)
		case !rnflKnown(p):
			issues.Errorf(s.Field("rnflThickness.position"), "unknown RNFL position %q", p)
		default:
			if _, ok := RNFLCoding(s, p); !ok {
				issues.Errorf(s.Field("rnflThickness.position"), "RNFL position %q does not belong to the %s eye", p, s)
			}
		}

		if !exam.HasText(e.Dicom.URL) {
			issues.Warnf(s.Field("dicom"), "no DICOM image attached for the %s eye", s)
		}
	}
	return issues
}

func rnflKnown(position string) bool {
	for _, s := range exam.Sides {
		if _, ok := RNFLCoding(s, position); ok {
			return true
		}
	}
	return false
}

// RecordedAt returns the examination time.
func (f *Form) RecordedAt() time.Time {
	return exam.RecordedAt(f.RecordedDate)
}

// ToFHIR returns one Bundle per eye with the three measurement
// Observations and, when DICOM data is attached, the ImagingStudy and the
// Device they were derived from.
func (f *Form) ToFHIR() ([]*fhir.Bundle, error) {
	if err := f.Validate().Err(); err != nil {
		return nil, err
	}
	at := f.RecordedAt()

	bundles := make([]*fhir.Bundle, 0, len(exam.Sides))
	for _, s := range exam.Sides {
		e := f.eye(s)
		macular, _ := MacularCoding(e.RetinalThickness.Position)
		rnfl, _ := RNFLCoding(s, e.RNFLThickness.Position)

		retina := exam.NewObservation(fhir.Concept(macular), at, s)
		if macular.Code == TotalVolumeCode {
			retina["valueQuantity"] = fhir.UCUMQuantity(*e.RetinalThickness.Value, "mm³", "mm3")
		} else {
			retina["valueQuantity"] = fhir.UCUMQuantity(*e.RetinalThickness.Value, "µm", "um")
		}
		disc := exam.NewObservation(OpticDiscDiameterCode, at, s)
		disc["valueQuantity"] = fhir.UCUMQuantity(*e.OpticDiscDiameter.Value, "mm", "mm")
		nerve := exam.NewObservation(fhir.Concept(rnfl), at, s)
		nerve["valueQuantity"] = fhir.UCUMQuantity(*e.RNFLThickness.Value, "µm", "um")

		observations := []map[string]interface{}{retina, disc, nerve}
		resources := append([]map[string]interface{}{}, observations...)

		if exam.HasText(e.Dicom.URL) {
			study := ImagingStudy(s, e.Dicom.URL)
			ref := exam.Ref(study, "OCT Image Resource "+s.Label())
			for _, obs := range observations {
				obs["derivedFrom"] = []fhir.Reference{ref}
			}
			resources = append(resources, study)
		}
		if e.Dicom.hasDevice() {
			device := Device(s, e.Dicom)
			ref := exam.Ref(device, "OCT Device Resource "+s.Label())
			for _, obs := range observations {
				obs["device"] = ref
			}
			resources = append(resources, device)
		}

		b, err := exam.Collect(resources...)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

var invalidIDChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// ResourceID derives a stable FHIR id from a prefix and a free text key.
// Characters outside the id alphabet collapse to "-" and the result is
// capped at 64 characters.
func ResourceID(prefix, key string) string {
	id := prefix + "-" + strings.Trim(invalidIDChars.ReplaceAllString(strings.ToLower(key), "-"), "-")
	if len(id) > 64 {
		id = strings.TrimRight(id[:64], "-")
	}
	return id
}

// ImagingStudy builds the study for the scan at url.
func ImagingStudy(s exam.Side, url string) map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "ImagingStudy",
		"id":           ResourceID("image-"+string(s), url),
		"status":       "available",
		"subject":      fhir.Reference{Display: "Unidentified patient"},
		"description":  "OCT scan image for analysis of " + string(s) + " eye",
		"endpoint": []fhir.Reference{{
			Reference: DicomEndpoint,
			Display:   "Local DICOM File Access",
		}},
	}
}

// Device builds the OCT device from the DICOM header fields.
func Device(s exam.Side, d Dicom) map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "Device",
		"id":           ResourceID("device-"+string(s), d.ModelName),
		"status":       "active",
		"manufacturer": d.Manufacturer,
		"deviceName": []map[string]interface{}{{
			"name": d.ModelName,
			"type": "model-name",
		}},
		"version": []map[string]interface{}{{
			"type":  fhir.CodeableConcept{Text: "software"},
			"value": d.SoftwareVersions,
		}},
	}
}

// Converter decodes OCT forms.
type Converter struct{}

func (Converter) Kind() exam.Kind { return exam.KindOCT }

func (Converter) Codings() []fhir.Coding { return AllCodings() }

func (Converter) Decode(data []byte) (exam.Form, error) {
	var f Form
	if err := exam.Decode(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
