package oct

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/exam/examtest"
)

const withDicom = `{
	"recordedDate": "2024-04-11T11:00:00Z",
	"leftEye": {
		"retinalThickness": {"value": 280, "position": "Macular grid.center subfield thickness by OCT"},
		"opticDiscDiameter": {"value": 1.8},
		"rnflThickness": {"value": 95, "position": "Left retina Retinal nerve fiber layer.clock hour 9 thickness by OCT"},
		"dicom": {"url": "Scan_0001.DCM", "manufacturer": "Heidelberg Engineering", "modelName": "Spectralis", "softwareVersions": "6.16"}
	},
	"rightEye": {
		"retinalThickness": {"value": 8.6, "position": "57118-2"},
		"opticDiscDiameter": {"value": 1.7},
		"rnflThickness": {"value": 101, "position": "Right retina Retinal nerve fiber layer.mean thickness by OCT"}
	}
}`

func decode(t *testing.T, data string) exam.Form {
	t.Helper()
	f, err := Converter{}.Decode([]byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func TestPositionTables(t *testing.T) {
	if len(MacularPositions) != 11 {
		t.Errorf("expected 11 macular positions, got %d", len(MacularPositions))
	}
	total := len(RNFLPositions[exam.Left]) + len(RNFLPositions[exam.Right])
	if total != 42 {
		t.Errorf("expected 42 RNFL positions, got %d", total)
	}

	tests := []struct {
		side     exam.Side
		position string
		code     string
	}{
		{exam.Right, "Right retina Retinal nerve fiber layer.clock hour 12 thickness by OCT", "86304-3"},
		{exam.Right, "Right retina Retinal nerve fiber layer.inferior temporal thickness by OCT", "86287-0"},
		{exam.Left, "Left retina Retinal nerve fiber layer.clock hour 9 thickness by OCT", "86286-2"},
		{exam.Left, "Left retina Retinal nerve fiber layer.nasal inferior thickness by OCT", "86272-2"},
		{exam.Left, "86292-0", "86292-0"},
	}
	for _, tt := range tests {
		c, ok := RNFLCoding(tt.side, tt.position)
		if !ok || c.Code != tt.code {
			t.Errorf("RNFLCoding(%s, %q): expected %s, got %s (ok=%v)", tt.side, tt.position, tt.code, c.Code, ok)
		}
	}
	if _, ok := RNFLCoding(exam.Left, "Right retina Retinal nerve fiber layer.mean thickness by OCT"); ok {
		t.Error("right eye position must not resolve for the left eye")
	}
}

func TestResourceID(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"device-left", "Spectralis", "device-left-spectralis"},
		{"image-right", "Scan 01/A_b.DCM", "image-right-scan-01-a-b.dcm"},
	}
	for _, tt := range tests {
		if got := ResourceID(tt.prefix, tt.key); got != tt.want {
			t.Errorf("ResourceID(%q, %q): expected %q, got %q", tt.prefix, tt.key, tt.want, got)
		}
	}
	long := ResourceID("image-left", strings.Repeat("x", 100))
	if len(long) != 64 {
		t.Errorf("expected id capped at 64 characters, got %d", len(long))
	}
}

func TestToFHIRWithDicom(t *testing.T) {
	bundles := examtest.Convert(t, decode(t, withDicom))
	left := examtest.Resources(t, bundles[0])
	if len(left) != 5 {
		t.Fatalf("expected 3 observations, study and device, got %d", len(left))
	}

	study := examtest.OfType(left, "ImagingStudy")[0]
	if study["id"] != "image-left-scan-0001.dcm" {
		t.Errorf("unexpected study id %v", study["id"])
	}
	if study["status"] != "available" {
		t.Errorf("expected status available, got %v", study["status"])
	}
	device := examtest.OfType(left, "Device")[0]
	if device["id"] != "device-left-spectralis" || device["status"] != "active" {
		t.Errorf("unexpected device %v/%v", device["id"], device["status"])
	}

	studyURL := examtest.FullURL(bundles[0], study["id"].(string))
	deviceURL := examtest.FullURL(bundles[0], "device-left-spectralis")
	if deviceURL != "Device/device-left-spectralis" {
		t.Errorf("unexpected device fullUrl %s", deviceURL)
	}
	for _, obs := range examtest.OfType(left, "Observation") {
		derived := obs["derivedFrom"].([]interface{})[0].(map[string]interface{})
		if derived["reference"] != studyURL {
			t.Errorf("expected derivedFrom %s, got %v", studyURL, derived["reference"])
		}
		if got := examtest.Reference(obs, "device"); got != deviceURL {
			t.Errorf("expected device %s, got %s", deviceURL, got)
		}
	}

	nerve := examtest.OfType(left, "Observation")[2]
	if got := examtest.Code(nerve, "code"); got != "86286-2" {
		t.Errorf("expected RNFL code 86286-2, got %s", got)
	}
	wantQuantity := map[string]interface{}{"value": 95.0, "unit": "µm", "system": "http://unitsofmeasure.org", "code": "um"}
	if diff := cmp.Diff(wantQuantity, nerve["valueQuantity"]); diff != "" {
		t.Errorf("RNFL quantity mismatch (-want +got):\n%s", diff)
	}

	right := examtest.Resources(t, bundles[1])
	if len(right) != 3 {
		t.Fatalf("expected only observations on the right, got %d", len(right))
	}
	if _, ok := right[0]["derivedFrom"]; ok {
		t.Error("right eye has no DICOM and must not reference a study")
	}
	vol := right[0]["valueQuantity"].(map[string]interface{})
	if vol["code"] != "mm3" {
		t.Errorf("expected total volume in mm3, got %v", vol["code"])
	}
}

func TestValidate(t *testing.T) {
	issues := decode(t, withDicom).Validate()
	if issues.HasErrors() {
		t.Fatalf("unexpected errors: %+v", issues.Errors())
	}
	if w := issues.Warnings(); len(w) != 1 || w[0].Field != "rightEye.dicom" {
		t.Errorf("expected a missing DICOM warning on the right eye, got %+v", w)
	}

	bad := decode(t, `{
		"recordedDate": "2024-04-11",
		"leftEye": {
			"retinalThickness": {"value": -1, "position": "Macular grid.somewhere"},
			"opticDiscDiameter": {},
			"rnflThickness": {"value": 90, "position": "Right retina Retinal nerve fiber layer.mean thickness by OCT"}
		},
		"rightEye": {
			"retinalThickness": {"value": 300, "position": "57109-1"},
			"opticDiscDiameter": {"value": 1.5},
			"rnflThickness": {"value": 90}
		}
	}`).Validate()
	var fields []string
	for _, i := range bad.Errors() {
		fields = append(fields, i.Field)
	}
	want := []string{
		"leftEye.retinalThickness.value",
		"leftEye.opticDiscDiameter.value",
		"leftEye.retinalThickness.position",
		"leftEye.rnflThickness.position",
		"rightEye.rnflThickness.position",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("error fields mismatch (-want +got):\n%s", diff)
	}
}
