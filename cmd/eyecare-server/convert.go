package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eyecare/eyecare/internal/config"
	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/examination"
	"github.com/eyecare/eyecare/internal/platform/fhir"
	"github.com/eyecare/eyecare/internal/platform/terminology"
)

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <kind> <file|->",
		Short: "Convert a form JSON document into its FHIR bundles without storing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := exam.ParseKind(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return convert(cmd, cfg, kind, data)
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func convert(cmd *cobra.Command, cfg *config.Config, kind exam.Kind, data []byte) error {
	svc, _, err := newService(cfg, nil, zerolog.Nop())
	if err != nil {
		return err
	}
	e, err := svc.Preview(cmd.Context(), kind, data)
	if err != nil {
		printIssues(cmd.ErrOrStderr(), err)
		return err
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Field, w.Message)
	}
	env, err := e.Envelope()
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), env)
}

func printIssues(w io.Writer, err error) {
	var verr *exam.ValidationError
	var cerr *examination.ConformanceError
	switch {
	case errors.As(err, &verr):
		for _, is := range verr.Issues {
			fmt.Fprintf(w, "%s: %s: %s\n", is.Severity, is.Field, is.Message)
		}
	case errors.As(err, &cerr):
		for _, is := range cerr.Issues {
			fmt.Fprintf(w, "%s: %s: %s\n", is.Severity, is.Location, is.Diagnostics)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func codeSystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codesystems",
		Short: "Print every code system the converters emit as a FHIR collection Bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := newTerminology(newRegistry(nil))
			if err != nil {
				return err
			}
			bundle, err := codeSystemBundle(terms.CodeSystems())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bundle)
		},
	}
}

func codeSystemBundle(systems []*terminology.CodeSystem) (*fhir.Bundle, error) {
	now := time.Now().UTC()
	b := &fhir.Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         "collection",
		Timestamp:    &now,
	}
	for _, cs := range systems {
		raw, err := json.Marshal(cs.ToFHIR())
		if err != nil {
			return nil, err
		}
		b.Entry = append(b.Entry, fhir.BundleEntry{
			FullURL:  fhir.EntryURL("CodeSystem", cs.ID),
			Resource: raw,
		})
	}
	return b, nil
}
