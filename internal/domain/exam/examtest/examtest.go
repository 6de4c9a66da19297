// Package examtest has helpers for inspecting converted examination Bundles
// in tests.
package examtest

import (
	"encoding/json"
	"testing"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Resources decodes the entries of b.
func Resources(t testing.TB, b *fhir.Bundle) []map[string]interface{} {
	t.Helper()
	out := make([]map[string]interface{}, 0, len(b.Entry))
	for i, e := range b.Entry {
		var m map[string]interface{}
		if err := json.Unmarshal(e.Resource, &m); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}

// OfType returns the resources with the given resourceType.
func OfType(resources []map[string]interface{}, resourceType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, r := range resources {
		if r["resourceType"] == resourceType {
			out = append(out, r)
		}
	}
	return out
}

// Convert runs ToFHIR and fails the test on error.
func Convert(t testing.TB, form interface {
	ToFHIR() ([]*fhir.Bundle, error)
}) []*fhir.Bundle {
	t.Helper()
	bundles, err := form.ToFHIR()
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	return bundles
}

// Code returns the first coding code of the CodeableConcept at key.
func Code(resource map[string]interface{}, key string) string {
	cc, _ := resource[key].(map[string]interface{})
	return FirstCode(cc)
}

// FirstCode returns the first coding code of a decoded CodeableConcept.
func FirstCode(cc map[string]interface{}) string {
	codings, _ := cc["coding"].([]interface{})
	if len(codings) == 0 {
		return ""
	}
	c, _ := codings[0].(map[string]interface{})
	code, _ := c["code"].(string)
	return code
}

// Components returns the decoded Observation components.
func Components(resource map[string]interface{}) []map[string]interface{} {
	raw, _ := resource["component"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, c := range raw {
		m, _ := c.(map[string]interface{})
		out = append(out, m)
	}
	return out
}

// Reference returns the reference string of the Reference at key.
func Reference(resource map[string]interface{}, key string) string {
	ref, _ := resource[key].(map[string]interface{})
	s, _ := ref["reference"].(string)
	return s
}

// FullURL returns the fullUrl of the entry holding the resource with id.
func FullURL(b *fhir.Bundle, id string) string {
	for _, e := range b.Entry {
		var m struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(e.Resource, &m) == nil && m.ID == id {
			return e.FullURL
		}
	}
	return ""
}
