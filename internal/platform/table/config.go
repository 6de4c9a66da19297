// Package table renders FHIR resources as rows of a table whose columns
// are FHIRPath expressions.
package table

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/damedic/fhir-toolbox-go/fhirpath"
	"gopkg.in/yaml.v3"
)

//go:embed columns.yaml
var defaultColumns []byte

// Column is a named FHIRPath expression.
type Column struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`

	expr fhirpath.Expression
}

// View is the table definition of one examination kind. Only resources of
// type Resource become rows; an empty Resource accepts every resource.
type View struct {
	Resource string   `yaml:"resource"`
	Columns  []Column `yaml:"columns"`
}

// Config maps examination kinds to their table views.
type Config map[string]*View

// ParseConfig parses a YAML column configuration and compiles every path.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse table config: %w", err)
	}
	for kind, view := range cfg {
		if view == nil || len(view.Columns) == 0 {
			return nil, fmt.Errorf("table config: %s has no columns", kind)
		}
		for i := range view.Columns {
			col := &view.Columns[i]
			if col.Name == "" {
				return nil, fmt.Errorf("table config: %s column %d has no name", kind, i+1)
			}
			expr, err := fhirpath.Parse(col.Path)
			if err != nil {
				return nil, fmt.Errorf("table config: %s column %q: %w", kind, col.Name, err)
			}
			col.expr = expr
		}
	}
	return cfg, nil
}

// DefaultConfig returns the embedded configuration.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultColumns)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig returns the embedded configuration with the views of the file
// at path replacing those of the same kind. An empty path yields the
// embedded configuration.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table config: %w", err)
	}
	override, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	for kind, view := range override {
		cfg[kind] = view
	}
	return cfg, nil
}
