package examination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/fhir"
	"github.com/eyecare/eyecare/internal/platform/table"
	"github.com/eyecare/eyecare/pkg/pagination"
)

// ErrInvalidInput is returned when the submitted body is not a form of the
// requested kind.
var ErrInvalidInput = errors.New("invalid input")

// ConformanceChecker validates generated Bundles against the FHIR base
// profiles.
type ConformanceChecker interface {
	Check(ctx context.Context, bundles []*fhir.Bundle) ([]fhir.ValidationIssue, error)
}

// ConformanceError is returned when generated resources fail conformance
// validation.
type ConformanceError struct {
	Issues []fhir.ValidationIssue
}

func (e *ConformanceError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		if i.Severity == fhir.SeverityError {
			msgs = append(msgs, i.Diagnostics)
		}
	}
	return "generated resources are not conformant: " + strings.Join(msgs, "; ")
}

// Service converts examination forms and manages stored examinations.
type Service struct {
	repo     Repository
	registry *exam.Registry
	renderer *table.Renderer
	checker  ConformanceChecker
	logger   zerolog.Logger
}

func NewService(repo Repository, registry *exam.Registry, renderer *table.Renderer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		renderer: renderer,
		logger:   logger.With().Str("component", "examination").Logger(),
	}
}

// SetConformance enables validation of generated resources.
func (s *Service) SetConformance(c ConformanceChecker) {
	s.checker = c
}

// Kinds returns the examination kinds with a registered converter.
func (s *Service) Kinds() []exam.Kind {
	return s.registry.Kinds()
}

// Preview converts a form without storing it.
func (s *Service) Preview(ctx context.Context, kind exam.Kind, data []byte) (*Examination, error) {
	e, err := s.convert(ctx, kind, data)
	if err != nil {
		return nil, err
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	return e, nil
}

// Submit converts a form and stores the result.
func (s *Service) Submit(ctx context.Context, kind exam.Kind, data []byte, author string) (*Examination, error) {
	e, err := s.convert(ctx, kind, data)
	if err != nil {
		return nil, err
	}
	e.CreatedBy = author
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("kind", string(kind)).
		Str("examination_id", e.ID.String()).
		Int("bundles", len(e.Bundles)).
		Int("warnings", len(e.Warnings)).
		Msg("examination stored")
	return e, nil
}

func (s *Service) convert(ctx context.Context, kind exam.Kind, data []byte) (*Examination, error) {
	conv, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	form, err := conv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	issues := form.Validate()
	if err := issues.Err(); err != nil {
		s.logger.Debug().Str("kind", string(kind)).Int("issues", len(issues)).Msg("form rejected")
		return nil, err
	}
	bundles, err := form.ToFHIR()
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", kind, err)
	}
	warnings := issues.Warnings()

	if s.checker != nil {
		found, err := s.checker.Check(ctx, bundles)
		if err != nil {
			return nil, fmt.Errorf("conformance check: %w", err)
		}
		for _, i := range found {
			if i.Severity == fhir.SeverityError {
				return nil, &ConformanceError{Issues: found}
			}
		}
		for _, i := range found {
			if i.Severity == fhir.SeverityWarning {
				warnings = append(warnings, exam.Issue{Severity: exam.SeverityWarning, Field: i.Location, Message: i.Diagnostics})
			}
		}
	}

	recorded := form.RecordedAt()
	if recorded.IsZero() {
		recorded = time.Now()
	}
	return &Examination{
		Kind:       kind,
		RecordedAt: recorded.UTC(),
		Form:       json.RawMessage(append([]byte(nil), data...)),
		Bundles:    bundles,
		Warnings:   warnings,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Examination, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns stored examinations, newest recording first. An empty kind
// lists every kind.
func (s *Service) List(ctx context.Context, kind exam.Kind, p pagination.Params) ([]*Examination, int, error) {
	return s.repo.List(ctx, kind, p.Limit, p.Offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("examination_id", id.String()).Msg("examination deleted")
	return nil
}

// Table renders the resources of one page of stored examinations of kind.
// The returned total counts examinations, not rows.
func (s *Service) Table(ctx context.Context, kind exam.Kind, p pagination.Params) (*table.Table, int, error) {
	items, total, err := s.repo.List(ctx, kind, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	var resources []json.RawMessage
	for _, e := range items {
		rs, err := e.Resources()
		if err != nil {
			return nil, 0, err
		}
		resources = append(resources, rs...)
	}
	t, err := s.renderer.Render(ctx, string(kind), resources)
	if err != nil {
		return nil, 0, err
	}
	return t, total, nil
}

// RenderTable renders the resources of an examination that is not stored,
// as returned by Preview.
func (s *Service) RenderTable(ctx context.Context, e *Examination) (*table.Table, error) {
	resources, err := e.Resources()
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, string(e.Kind), resources)
}
