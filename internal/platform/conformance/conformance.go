// Package conformance validates generated FHIR resources against the R4
// core StructureDefinitions.
package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofhir/validator/pkg/issue"
	validatorterm "github.com/gofhir/validator/pkg/terminology"
	"github.com/gofhir/validator/pkg/validator"
	"github.com/rs/zerolog"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Checker validates the resources of converted Bundles.
type Checker struct {
	v      *validator.Validator
	logger zerolog.Logger
}

// New loads the R4 core package. A non-nil provider is consulted for codes
// of external code systems.
func New(provider validatorterm.Provider, logger zerolog.Logger) (*Checker, error) {
	var opts []validator.Option
	if provider != nil {
		opts = append(opts, validator.WithTerminologyProvider(provider))
	}
	v, err := validator.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init fhir validator: %w", err)
	}
	return &Checker{v: v, logger: logger.With().Str("component", "conformance").Logger()}, nil
}

// CheckResource validates a single resource. Information issues are dropped.
func (c *Checker) CheckResource(ctx context.Context, raw json.RawMessage) ([]fhir.ValidationIssue, error) {
	result, err := c.v.Validate(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("validate resource: %w", err)
	}
	label := resourceLabel(raw)

	var out []fhir.ValidationIssue
	for _, is := range result.Issues {
		var severity fhir.ValidationSeverity
		switch is.Severity {
		case issue.SeverityFatal, issue.SeverityError:
			severity = fhir.SeverityError
		case issue.SeverityWarning:
			severity = fhir.SeverityWarning
		default:
			continue
		}
		loc := label
		if len(is.Expression) > 0 {
			loc = label + " " + strings.Join(is.Expression, ", ")
		}
		out = append(out, fhir.ValidationIssue{
			Severity:    severity,
			Code:        fhir.ValidationIssueType(is.Code),
			Location:    loc,
			Diagnostics: is.Diagnostics,
		})
	}
	return out, nil
}

// Check validates the Bundle invariants of each bundle and every resource
// it contains.
func (c *Checker) Check(ctx context.Context, bundles []*fhir.Bundle) ([]fhir.ValidationIssue, error) {
	var out []fhir.ValidationIssue
	checked := 0
	for _, b := range bundles {
		structural, err := fhir.BundleIssues(b)
		if err != nil {
			return nil, err
		}
		out = append(out, structural...)
		resources, err := fhir.Resources(b)
		if err != nil {
			return nil, err
		}
		for _, raw := range resources {
			issues, err := c.CheckResource(ctx, raw)
			if err != nil {
				return nil, err
			}
			out = append(out, issues...)
			checked++
		}
	}
	c.logger.Debug().Int("resources", checked).Int("issues", len(out)).Msg("conformance check")
	return out, nil
}

func resourceLabel(raw json.RawMessage) string {
	var head struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	_ = json.Unmarshal(raw, &head)
	if head.ID == "" {
		return head.ResourceType
	}
	return head.ResourceType + "/" + head.ID
}
