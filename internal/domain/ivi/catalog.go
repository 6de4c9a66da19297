package ivi

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// SystemATC is the WHO ATC classification.
const SystemATC = "http://www.whocc.no/atc"

//go:embed medications.yaml
var catalogYAML []byte

type amount struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

// Medication is a catalog entry.
type Medication struct {
	Name        string `yaml:"name"`
	ATC         string `yaml:"atc"`
	Substance   string `yaml:"substance"`
	Form        string `yaml:"form"`
	Numerator   amount `yaml:"numerator"`
	Denominator amount `yaml:"denominator"`
}

// ID is the stable resource id of the medication.
func (m Medication) ID() string {
	return strcase.ToKebab(m.Name)
}

// Dose is the administered amount per injection, numerator over
// denominator, in the numerator unit.
func (m Medication) Dose() fhir.Quantity {
	d := decimal.NewFromFloat(m.Numerator.Value)
	if m.Denominator.Value != 0 {
		d = d.Div(decimal.NewFromFloat(m.Denominator.Value))
	}
	return fhir.UCUMQuantity(d.InexactFloat64(), m.Numerator.Unit, m.Numerator.Unit)
}

// Resource renders the FHIR Medication.
func (m Medication) Resource() map[string]interface{} {
	num := fhir.UCUMQuantity(m.Numerator.Value, m.Numerator.Unit, m.Numerator.Unit)
	den := m.Denominator.Value
	return map[string]interface{}{
		"resourceType": "Medication",
		"id":           m.ID(),
		"code": fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: SystemATC, Code: m.ATC, Display: m.Substance}},
			Text:   m.Name,
		},
		"status": "active",
		"form":   fhir.CodeableConcept{Text: m.Form},
		"amount": fhir.Ratio{
			Numerator:   &num,
			Denominator: &fhir.Quantity{Value: &den, Unit: m.Denominator.Unit},
		},
	}
}

// Catalog is the set of medications selectable for an injection.
type Catalog struct {
	meds  []Medication
	byKey map[string]Medication
}

// LoadCatalog parses a YAML medication catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Medications []Medication `yaml:"medications"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse medication catalog: %w", err)
	}
	c := &Catalog{byKey: make(map[string]Medication, len(doc.Medications))}
	for _, m := range doc.Medications {
		if m.Name == "" || m.Numerator.Value <= 0 {
			return nil, fmt.Errorf("medication catalog: incomplete entry %q", m.Name)
		}
		c.meds = append(c.meds, m)
		c.byKey[strings.ToLower(m.Name)] = m
	}
	return c, nil
}

var defaultCatalog = mustCatalog()

func mustCatalog() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog { return defaultCatalog }

// Lookup finds a medication by its name, case insensitively.
func (c *Catalog) Lookup(name string) (Medication, bool) {
	m, ok := c.byKey[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// Medications lists the catalog in file order.
func (c *Catalog) Medications() []Medication {
	return append([]Medication(nil), c.meds...)
}
