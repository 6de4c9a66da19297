package examination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// ErrNotFound is returned when no examination has the requested id.
var ErrNotFound = errors.New("examination not found")

// Repository persists examinations. List returns the newest recordings
// first; an empty kind lists all kinds.
type Repository interface {
	Create(ctx context.Context, e *Examination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Examination, error)
	List(ctx context.Context, kind exam.Kind, limit, offset int) ([]*Examination, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// encoded holds the JSON columns shared by both repositories.
type encoded struct {
	bundles  []byte
	warnings []byte
}

func encode(e *Examination) (*encoded, error) {
	bundles, err := json.Marshal(e.Bundles)
	if err != nil {
		return nil, fmt.Errorf("encode bundles: %w", err)
	}
	warnings := e.Warnings
	if warnings == nil {
		warnings = exam.Issues{}
	}
	w, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode warnings: %w", err)
	}
	return &encoded{bundles: bundles, warnings: w}, nil
}

func decodeColumns(e *Examination, bundles, warnings []byte) error {
	var bs []*fhir.Bundle
	if err := json.Unmarshal(bundles, &bs); err != nil {
		return fmt.Errorf("decode bundles of %s: %w", e.ID, err)
	}
	e.Bundles = bs
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &e.Warnings); err != nil {
			return fmt.Errorf("decode warnings of %s: %w", e.ID, err)
		}
	}
	if len(e.Warnings) == 0 {
		e.Warnings = nil
	}
	return nil
}
