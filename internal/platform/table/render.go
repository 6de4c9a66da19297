package table

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/damedic/fhir-toolbox-go/fhirpath"
	"github.com/rs/zerolog"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// ErrNoView is returned for a kind without a table configuration.
var ErrNoView = errors.New("no table view configured")

// Table is a rendered table.
type Table struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Row is one resource. JSON holds the indented resource for the detail view.
type Row struct {
	ID           string   `json:"id"`
	ResourceType string   `json:"resourceType"`
	Cells        []string `json:"cells"`
	JSON         string   `json:"json"`
}

// Renderer evaluates the configured columns against resources.
type Renderer struct {
	cfg    Config
	logger zerolog.Logger
}

func NewRenderer(cfg Config, logger zerolog.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logger.With().Str("component", "table").Logger()}
}

// View returns the view of kind.
func (r *Renderer) View(kind string) (*View, bool) {
	v, ok := r.cfg[kind]
	return v, ok
}

// Render builds the table of kind. Resources of another type than the
// view's are skipped. A column whose expression fails to evaluate renders
// as an empty cell.
func (r *Renderer) Render(ctx context.Context, kind string, resources []json.RawMessage) (*Table, error) {
	view, ok := r.cfg[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoView, kind)
	}
	t := &Table{Kind: kind, Columns: make([]string, 0, len(view.Columns)), Rows: []Row{}}
	for _, c := range view.Columns {
		t.Columns = append(t.Columns, c.Name)
	}

	nodes := make([]*Node, 0, len(resources))
	types := map[string]bool{}
	if view.Resource != "" {
		types[view.Resource] = true
	}
	for _, raw := range resources {
		if view.Resource != "" && fhir.ResourceType(raw) != view.Resource {
			continue
		}
		n, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		types[n.ResourceType()] = true
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	ctx = fhirpath.WithNamespace(ctx, "FHIR")
	ctx = fhirpath.WithTypes(ctx, ResourceTypes(names...))

	for _, n := range nodes {
		row := Row{ResourceType: n.ResourceType(), Cells: make([]string, 0, len(view.Columns))}
		if id, ok := n.fields["id"].(string); ok {
			row.ID = id
		}
		for _, c := range view.Columns {
			result, err := fhirpath.Evaluate(ctx, n, c.expr)
			if err != nil {
				r.logger.Debug().Err(err).Str("kind", kind).Str("column", c.Name).Str("id", row.ID).
					Msg("column evaluation failed")
				row.Cells = append(row.Cells, "")
				continue
			}
			row.Cells = append(row.Cells, Format(result))
		}
		row.JSON = indent(n)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Format renders an evaluation result, one line per element.
func Format(c fhirpath.Collection) string {
	parts := make([]string, 0, len(c))
	for _, e := range c {
		parts = append(parts, formatElement(e))
	}
	return strings.Join(parts, "\n")
}

func formatElement(e fhirpath.Element) string {
	switch v := e.(type) {
	case fhirpath.String:
		return string(v)
	case *Node:
		if raw, ok := v.fields["value"]; ok && raw != nil {
			return Format(toElements(raw))
		}
		if system, ok := v.fields["system"].(string); ok {
			return formatCoding(system, stringField(v, "code"), stringField(v, "display"))
		}
		return v.String()
	default:
		return e.String()
	}
}

func formatCoding(system, code, display string) string {
	var prefix string
	switch system {
	case fhir.SystemSNOMED:
		prefix = "snomed#"
	case fhir.SystemLOINC:
		prefix = "loinc#"
	}
	if display == "" {
		return prefix + code
	}
	return fmt.Sprintf("%s%s %q", prefix, code, display)
}

func stringField(n *Node, name string) string {
	s, _ := n.fields[name].(string)
	return s
}

func indent(n *Node) string {
	raw, err := json.Marshal(n.fields)
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
