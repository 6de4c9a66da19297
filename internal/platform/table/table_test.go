package table

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/damedic/fhir-toolbox-go/fhirpath"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const observation = `{
	"resourceType": "Observation",
	"id": "obs-1",
	"status": "final",
	"effectiveDateTime": "2024-03-01T10:00:00.000Z",
	"bodySite": {"coding": [{"system": "http://snomed.info/sct", "code": "1290041000", "display": "Entire left eye proper (body structure)"}]},
	"code": {"coding": [
		{"system": "http://loinc.org", "code": "56844-4", "display": "Intraocular pressure of Eye"},
		{"system": "http://snomed.info/sct", "code": "41633001", "display": "Intraocular pressure"}
	]},
	"method": {"coding": [{"system": "https://eyematics.org/fhir/eyematics-kds/CodeSystem/iop-methods", "code": "contact-lens-tonometry", "display": "Contact lens tonometry"}]},
	"valueQuantity": {"value": 17.5, "unit": "mm[Hg]", "system": "http://unitsofmeasure.org", "code": "mm[Hg]"}
}`

const report = `{"resourceType": "DiagnosticReport", "id": "rep-1", "status": "final"}`

func evaluate(t *testing.T, raw, path string) fhirpath.Collection {
	t.Helper()
	n, err := Parse([]byte(raw))
	require.NoError(t, err)
	ctx := fhirpath.WithNamespace(context.Background(), "FHIR")
	ctx = fhirpath.WithTypes(ctx, ResourceTypes(n.ResourceType()))
	result, err := fhirpath.Evaluate(ctx, n, fhirpath.MustParse(path))
	require.NoError(t, err)
	return result
}

func TestNodeChildren(t *testing.T) {
	assert.Equal(t, "2024-03-01T10:00:00.000Z", Format(evaluate(t, observation, "Observation.effectiveDateTime")))
	assert.Equal(t, "17.5", Format(evaluate(t, observation, "Observation.valueQuantity.value")))
	assert.Len(t, evaluate(t, observation, "Observation.code.coding"), 2)
	assert.Equal(t, "17.5", Format(evaluate(t, observation, "Observation.value")), "choice element resolves valueQuantity")
	assert.Empty(t, evaluate(t, observation, "Observation.note"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"loinc#56844-4 \"Intraocular pressure of Eye\"\nsnomed#41633001 \"Intraocular pressure\"",
		Format(evaluate(t, observation, "Observation.code.coding")))
	assert.Equal(t,
		"contact-lens-tonometry \"Contact lens tonometry\"",
		Format(evaluate(t, observation, "Observation.method.coding")))
	assert.Equal(t, "final", Format(evaluate(t, observation, "Observation.status")))
	assert.JSONEq(t,
		`{"coding": [{"system": "http://snomed.info/sct", "code": "1290041000", "display": "Entire left eye proper (body structure)"}]}`,
		Format(evaluate(t, observation, "Observation.bodySite")))
}

func TestRender(t *testing.T) {
	r := NewRenderer(DefaultConfig(), zerolog.Nop())
	resources := []json.RawMessage{json.RawMessage(observation), json.RawMessage(report)}

	tbl, err := r.Render(context.Background(), "tonometry", resources)
	require.NoError(t, err)
	assert.Equal(t, []string{"Messzeitpunkt", "Seitigkeit", "Code", "Tonometrie Typ", "Augeninnendruck", "Einheit"}, tbl.Columns)
	require.Len(t, tbl.Rows, 1, "only Observations become rows")

	row := tbl.Rows[0]
	assert.Equal(t, "obs-1", row.ID)
	assert.Equal(t, []string{
		"2024-03-01T10:00:00.000Z",
		"snomed#1290041000 \"Entire left eye proper (body structure)\"",
		"loinc#56844-4 \"Intraocular pressure of Eye\"\nsnomed#41633001 \"Intraocular pressure\"",
		"17.5",
		"17.5",
		"mm[Hg]",
	}, row.Cells)
	assert.Contains(t, row.JSON, "\n  \"bodySite\"")

	_, err = r.Render(context.Background(), "unknown", resources)
	assert.ErrorIs(t, err, ErrNoView)
}

func TestRenderEvaluationErrorGivesEmptyCell(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
any:
  columns:
    - name: Date
      path: Observation.effectiveDateTime
    - name: Status
      path: status
`))
	require.NoError(t, err)
	tbl, err := NewRenderer(cfg, zerolog.Nop()).Render(context.Background(), "any", []json.RawMessage{json.RawMessage(report)})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"", "final"}, tbl.Rows[0].Cells)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("tonometry:\n  columns: []\n"))
	assert.Error(t, err)
	_, err = ParseConfig([]byte("tonometry:\n  columns:\n    - name: Bad\n      path: \"Observation.(\"\n"))
	assert.Error(t, err)
	_, err = ParseConfig([]byte("tonometry: ["))
	assert.Error(t, err)
}

func TestLoadConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
visus:
  resource: Observation
  columns:
    - name: Wert
      path: Observation.value
`), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg["visus"].Columns, 1)
	assert.Len(t, cfg["tonometry"].Columns, 6, "kinds absent from the file keep their embedded view")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
