package exam

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Form is a decoded examination form.
type Form interface {
	// Validate checks field presence and ranges.
	Validate() Issues
	// ToFHIR maps a valid form to one collection Bundle per documented eye,
	// left eye first.
	ToFHIR() ([]*fhir.Bundle, error)
	// RecordedAt returns the examination time, zero when unparseable.
	RecordedAt() time.Time
}

// Converter decodes the JSON form of one examination kind.
type Converter interface {
	Kind() Kind
	Decode(data []byte) (Form, error)
}

// CodeSource is implemented by converters that can list every coding
// their mapping emits.
type CodeSource interface {
	Codings() []fhir.Coding
}

// Decode unmarshals a JSON form into dst.
func Decode(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

var recordedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseRecordedDate parses the examination timestamp. Timestamps without
// offset are read in local time, bare dates as UTC midnight.
func ParseRecordedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("recorded date is empty")
	}
	for _, layout := range recordedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported recorded date %q", s)
}

// FormatDateTime renders t as a FHIR dateTime in UTC with millisecond
// precision.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// CheckRecordedDate validates the recordedDate field and returns the parsed time.
func CheckRecordedDate(issues *Issues, s string) time.Time {
	if strings.TrimSpace(s) == "" {
		issues.Errorf("recordedDate", "please enter the examination date")
		return time.Time{}
	}
	t, err := ParseRecordedDate(s)
	if err != nil {
		issues.Errorf("recordedDate", "examination date %q is not a valid date", s)
		return time.Time{}
	}
	return t
}

// RecordedAt parses s and returns the zero time when it is invalid.
func RecordedAt(s string) time.Time {
	t, _ := ParseRecordedDate(s)
	return t
}

// CheckMeasurement validates a required non-negative measurement.
func CheckMeasurement(issues *Issues, side Side, field, label string, v *float64) {
	switch {
	case v == nil:
		issues.Errorf(side.Field(field), "please enter %s for the %s eye", label, side)
	case *v < 0:
		issues.Errorf(side.Field(field), "please enter a positive value for %s of the %s eye", label, side)
	}
}
