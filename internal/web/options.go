package web

import (
	"github.com/eyecare/eyecare/internal/domain/anteriorchamber"
	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/ivi"
	"github.com/eyecare/eyecare/internal/domain/oct"
	"github.com/eyecare/eyecare/internal/domain/tonometry"
	"github.com/eyecare/eyecare/internal/domain/visus"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Option is one entry of a select box.
type Option struct {
	Value string
	Label string
}

// Options holds the select box entries of every form.
type Options struct {
	TonometryMethods  []Option
	CorrectionMethods []Option
	TestDistances     []Option
	Optotypes         []Option
	CellGrades        []Option
	FlareGrades       []Option
	Presences         []Option
	MacularPositions  []Option
	RNFLPositions     map[exam.Side][]Option
	Medications       []Option
	Regimens          []Option
}

func values[T ~string](vs []T) []Option {
	out := make([]Option, 0, len(vs))
	for _, v := range vs {
		out = append(out, Option{Value: string(v), Label: string(v)})
	}
	return out
}

func codings(cs []fhir.Coding) []Option {
	out := make([]Option, 0, len(cs))
	for _, c := range cs {
		out = append(out, Option{Value: c.Code, Label: c.Display})
	}
	return out
}

func newOptions(catalog *ivi.Catalog) Options {
	o := Options{
		TonometryMethods:  values(tonometry.Methods),
		CorrectionMethods: values(visus.CorrectionMethods),
		TestDistances:     values(visus.TestDistances),
		Optotypes:         values(visus.Optotypes),
		CellGrades:        values(anteriorchamber.CellGrades),
		FlareGrades:       values(anteriorchamber.FlareGrades),
		Presences:         values(exam.Presences),
		MacularPositions:  codings(oct.MacularPositions),
		RNFLPositions:     make(map[exam.Side][]Option, len(exam.Sides)),
		Regimens:          values(ivi.Regimens),
	}
	for _, s := range exam.Sides {
		o.RNFLPositions[s] = codings(oct.RNFLPositions[s])
	}
	for _, m := range catalog.Medications() {
		o.Medications = append(o.Medications, Option{Value: m.Name, Label: m.Name})
	}
	return o
}
