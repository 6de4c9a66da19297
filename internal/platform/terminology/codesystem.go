// Package terminology publishes the code systems used by the examination
// mappings as FHIR CodeSystem resources and validates codes against them.
package terminology

import (
	"sort"
	"strings"

	"github.com/gofhir/fhir/r4"
	"github.com/iancoleman/strcase"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Content values of a CodeSystem.
const (
	ContentComplete = "complete"
	ContentFragment = "fragment"
)

// LocalPrefix is the canonical base of the code systems this service owns.
const LocalPrefix = "https://eyematics.org/fhir/"

// Concept is a single code of a CodeSystem.
type Concept struct {
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// CodeSystem is the published form of a code system.
type CodeSystem struct {
	ID      string
	URL     string
	Name    string
	Title   string
	Content string
	Concept []Concept
}

var externalNames = map[string]string{
	fhir.SystemSNOMED:              "snomed-ct",
	fhir.SystemLOINC:               "loinc",
	fhir.SystemEDQM:                "edqm-standard-terms",
	fhir.SystemObservationCategory: "observation-category",
	"http://www.whocc.no/atc":      "who-atc",
}

// FromCodings groups codings by system into CodeSystems. Systems under
// LocalPrefix are published as complete, everything else as a fragment
// listing only the codes in use. Duplicate codes keep their first display.
func FromCodings(codings ...fhir.Coding) []*CodeSystem {
	bySystem := make(map[string]*CodeSystem)
	seen := make(map[string]bool)
	var order []string
	for _, c := range codings {
		if c.System == "" || c.Code == "" {
			continue
		}
		cs, ok := bySystem[c.System]
		if !ok {
			cs = newCodeSystem(c.System)
			bySystem[c.System] = cs
			order = append(order, c.System)
		}
		key := c.System + "|" + c.Code
		if seen[key] {
			continue
		}
		seen[key] = true
		cs.Concept = append(cs.Concept, Concept{Code: c.Code, Display: c.Display})
	}

	out := make([]*CodeSystem, 0, len(order))
	for _, url := range order {
		out = append(out, bySystem[url])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Content != out[j].Content {
			return out[i].Content == ContentComplete
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func newCodeSystem(url string) *CodeSystem {
	cs := &CodeSystem{URL: url, Content: ContentComplete}
	if strings.HasPrefix(url, LocalPrefix) {
		cs.ID = url[strings.LastIndex(url, "/")+1:]
	} else {
		cs.Content = ContentFragment
		name, ok := externalNames[url]
		if !ok {
			name = strcase.ToKebab(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"))
		}
		cs.ID = name + "-fragment"
	}
	cs.Name = strcase.ToCamel(cs.ID)
	cs.Title = strings.ReplaceAll(strcase.ToDelimited(cs.ID, ' '), "-", " ")
	return cs
}

// Lookup returns the concept for code.
func (cs *CodeSystem) Lookup(code string) (Concept, bool) {
	for _, c := range cs.Concept {
		if c.Code == code {
			return c, true
		}
	}
	return Concept{}, false
}

// ToFHIR renders the CodeSystem resource.
func (cs *CodeSystem) ToFHIR() map[string]interface{} {
	return map[string]interface{}{
		"resourceType":  "CodeSystem",
		"id":            cs.ID,
		"url":           cs.URL,
		"name":          cs.Name,
		"title":         cs.Title,
		"status":        "active",
		"experimental":  strings.HasPrefix(cs.URL, LocalPrefix),
		"caseSensitive": true,
		"content":       cs.Content,
		"count":         len(cs.Concept),
		"concept":       cs.Concept,
	}
}

// R4 converts the CodeSystem to the typed R4 model.
func (cs *CodeSystem) R4() *r4.CodeSystem {
	url := cs.URL
	concepts := make([]r4.CodeSystemConcept, 0, len(cs.Concept))
	for _, c := range cs.Concept {
		code, display := c.Code, c.Display
		concepts = append(concepts, r4.CodeSystemConcept{Code: &code, Display: &display})
	}
	return &r4.CodeSystem{Url: &url, Concept: concepts}
}
