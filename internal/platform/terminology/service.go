package terminology

import (
	"context"
	"errors"
	"fmt"

	validatorterm "github.com/gofhir/validator/pkg/terminology"
	memterm "github.com/gofhir/validator/terminology"
)

// ErrNotCovered is returned to the conformance validator for codes this
// service cannot decide, so that it falls back to its own handling.
var ErrNotCovered = errors.New("code system not covered")

// Result is the outcome of a $validate-code request.
type Result struct {
	Valid   bool
	Display string
	Message string
}

// Service answers code validation requests for the published code systems.
type Service struct {
	inner   *memterm.InMemoryTerminologyService
	systems []*CodeSystem
	byID    map[string]*CodeSystem
	byURL   map[string]*CodeSystem
}

var _ validatorterm.Provider = (*Service)(nil)

// New loads systems into an in-memory terminology service.
func New(systems ...*CodeSystem) (*Service, error) {
	s := &Service{
		inner:   memterm.NewInMemoryTerminologyService(),
		systems: systems,
		byID:    make(map[string]*CodeSystem, len(systems)),
		byURL:   make(map[string]*CodeSystem, len(systems)),
	}
	for _, cs := range systems {
		if _, dup := s.byID[cs.ID]; dup {
			return nil, fmt.Errorf("duplicate code system id %q", cs.ID)
		}
		if err := s.inner.LoadR4CodeSystem(cs.R4()); err != nil {
			return nil, fmt.Errorf("load code system %s: %w", cs.URL, err)
		}
		s.byID[cs.ID] = cs
		s.byURL[cs.URL] = cs
	}
	return s, nil
}

// CodeSystems returns the published code systems.
func (s *Service) CodeSystems() []*CodeSystem {
	return s.systems
}

// Get returns the code system with the given id.
func (s *Service) Get(id string) (*CodeSystem, bool) {
	cs, ok := s.byID[id]
	return cs, ok
}

// Check validates code in system. Systems that are neither published nor
// known to the underlying service produce an invalid result with a message.
func (s *Service) Check(ctx context.Context, system, code string) (*Result, error) {
	res, err := s.inner.ValidateCode(ctx, system, code, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &Result{Message: err.Error()}, nil
	}
	out := &Result{Valid: res.Valid, Display: res.Display, Message: res.Message}
	if !res.Valid {
		if cs, ok := s.byURL[system]; ok && cs.Content == ContentFragment {
			out.Message = fmt.Sprintf("code '%s' is not used by this service; %s is published as a fragment", code, cs.ID)
		}
	}
	return out, nil
}

// ValidateCode implements the validator terminology provider. Only codes of
// complete code systems are decided; everything else is reported as not
// covered.
func (s *Service) ValidateCode(ctx context.Context, system, code string) (bool, error) {
	cs, ok := s.byURL[system]
	if !ok {
		return false, ErrNotCovered
	}
	res, err := s.Check(ctx, system, code)
	if err != nil {
		return false, err
	}
	if !res.Valid && cs.Content != ContentComplete {
		return false, ErrNotCovered
	}
	return res.Valid, nil
}

// ValidateCodeInValueSet reports value sets as unsupported.
func (s *Service) ValidateCodeInValueSet(_ context.Context, _, _, _ string) (bool, bool, error) {
	return false, false, nil
}
