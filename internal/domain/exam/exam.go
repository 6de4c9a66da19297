// Package exam holds the building blocks shared by the ophthalmology
// examination forms: eye sides, validation issues, common codings and the
// converter registry that turns a submitted form into FHIR Bundles.
package exam

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Side identifies the examined eye.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Sides lists both eyes in output order.
var Sides = []Side{Left, Right}

// Label returns the capitalised side name used in displays.
func (s Side) Label() string {
	return strcase.ToCamel(string(s))
}

// Field returns the JSON path of a per-eye form field, e.g. "leftEye.pressure".
func (s Side) Field(name string) string {
	return string(s) + "Eye." + name
}

// BodySite returns the SNOMED body structure for the whole eye.
func BodySite(s Side) fhir.CodeableConcept {
	if s == Left {
		return fhir.Concept(fhir.SNOMED("1290041000", "Entire left eye proper (body structure)"))
	}
	return fhir.Concept(fhir.SNOMED("1290043002", "Entire right eye proper (body structure)"))
}

// Kind names an examination form.
type Kind string

const (
	KindTonometry       Kind = "tonometry"
	KindVisus           Kind = "visus"
	KindAnteriorChamber Kind = "anterior-chamber"
	KindFunduscopy      Kind = "funduscopy"
	KindOCT             Kind = "oct"
	KindIVI             Kind = "ivi"
)

// ErrUnknownKind is returned for an examination kind without a converter.
var ErrUnknownKind = errors.New("unknown examination kind")

// AllKinds lists every examination kind in tab order.
var AllKinds = []Kind{KindTonometry, KindVisus, KindAnteriorChamber, KindFunduscopy, KindOCT, KindIVI}

// ParseKind accepts the canonical slug as well as camel or snake case
// spellings ("anteriorChamber", "anterior_chamber").
func ParseKind(s string) (Kind, error) {
	k := Kind(strcase.ToKebab(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Title returns a human readable name for the kind.
func (k Kind) Title() string {
	switch k {
	case KindOCT:
		return "OCT"
	case KindIVI:
		return "IVI"
	}
	return strings.ReplaceAll(strcase.ToCamel(string(k)), "Chamber", " Chamber")
}

// Registry maps examination kinds to their converters.
type Registry struct {
	converters map[Kind]Converter
}

// NewRegistry creates a registry from the given converters.
func NewRegistry(converters ...Converter) *Registry {
	r := &Registry{converters: make(map[Kind]Converter, len(converters))}
	for _, c := range converters {
		r.converters[c.Kind()] = c
	}
	return r
}

// Get returns the converter for kind.
func (r *Registry) Get(kind Kind) (Converter, error) {
	c, ok := r.converters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return c, nil
}

// Kinds returns the registered kinds sorted in tab order.
func (r *Registry) Kinds() []Kind {
	order := make(map[Kind]int, len(AllKinds))
	for i, k := range AllKinds {
		order[k] = i
	}
	kinds := make([]Kind, 0, len(r.converters))
	for k := range r.converters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return order[kinds[i]] < order[kinds[j]] })
	return kinds
}
