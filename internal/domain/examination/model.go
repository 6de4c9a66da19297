// Package examination stores submitted examination forms together with the
// FHIR Bundles they were converted to, and serves them over REST and FHIR.
package examination

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Examination is one stored form submission.
type Examination struct {
	ID         uuid.UUID       `json:"id"`
	Kind       exam.Kind       `json:"kind"`
	RecordedAt time.Time       `json:"recordedAt"`
	Form       json.RawMessage `json:"form"`
	Bundles    []*fhir.Bundle  `json:"bundles"`
	Warnings   exam.Issues     `json:"warnings,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Envelope returns a collection Bundle whose entries are the per-eye
// Bundles. It carries the examination id.
func (e *Examination) Envelope() (*fhir.Bundle, error) {
	entries := make([]fhir.BundleEntry, 0, len(e.Bundles))
	for _, b := range e.Bundles {
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal bundle %s: %w", b.ID, err)
		}
		entries = append(entries, fhir.BundleEntry{
			FullURL:  fhir.EntryURL("Bundle", b.ID),
			Resource: raw,
		})
	}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &fhir.Bundle{
		ResourceType: "Bundle",
		ID:           e.ID.String(),
		Type:         "collection",
		Timestamp:    &ts,
		Entry:        entries,
	}, nil
}

// Resources returns every resource of every per-eye Bundle in entry order.
func (e *Examination) Resources() ([]json.RawMessage, error) {
	var out []json.RawMessage
	for _, b := range e.Bundles {
		rs, err := fhir.Resources(b)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// Summary is the list view of an examination.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Kind       exam.Kind `json:"kind"`
	RecordedAt time.Time `json:"recordedAt"`
	Resources  int       `json:"resources"`
	Warnings   int       `json:"warnings"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (e *Examination) Summary() Summary {
	n := 0
	for _, b := range e.Bundles {
		n += len(b.Entry)
	}
	return Summary{
		ID:         e.ID,
		Kind:       e.Kind,
		RecordedAt: e.RecordedAt,
		Resources:  n,
		Warnings:   len(e.Warnings),
		CreatedBy:  e.CreatedBy,
		CreatedAt:  e.CreatedAt,
	}
}
