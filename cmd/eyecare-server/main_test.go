package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyecare/eyecare/internal/config"
)

const tonometryForm = `{
	"recordedDate": "2024-03-05T10:15:00Z",
	"iopMethod": "Goldmann applanation tonometry (procedure)",
	"leftEye": {"pressure": 15, "mydriasis": true},
	"rightEye": {"pressure": 12, "mydriasis": false}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SQLITE_PATH", ":memory:")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	srv, err := buildServer(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.close)
	return srv
}

func serve(srv *server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"0.1.0"}`, rec.Body.String())

	rec = serve(srv, http.MethodGet, "/health/db", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sqlite")
}

func TestServer_SubmitAndRead(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/v1/examinations/tonometry", tonometryForm)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = serve(srv, http.MethodGet, "/fhir/Bundle/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bundle struct {
		ResourceType string            `json:"resourceType"`
		Type         string            `json:"type"`
		Entry        []json.RawMessage `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "Bundle", bundle.ResourceType)
	assert.Equal(t, "collection", bundle.Type)
	assert.Len(t, bundle.Entry, 2)

	rec = serve(srv, http.MethodGet, "/exams/tonometry", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mm[Hg]")
}

func TestServer_BodyLimit(t *testing.T) {
	t.Setenv("BODY_LIMIT", "1KB")
	srv := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/fhir/$convert/tonometry", strings.Repeat(" ", 1001)+tonometryForm)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"code":"too-costly"`)

	rec = serve(srv, http.MethodPost, "/fhir/$convert/tonometry", tonometryForm)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"index redirects", http.MethodGet, "/", http.StatusFound},
		{"capability statement", http.MethodGet, "/fhir/metadata", http.StatusOK},
		{"code systems", http.MethodGet, "/fhir/CodeSystem", http.StatusOK},
		{"blob list", http.MethodGet, "/api/v1/blobs", http.StatusOK},
		{"static asset", http.MethodGet, "/static/app.js", http.StatusOK},
		{"unknown kind", http.MethodGet, "/exams/perimetry", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.method, tt.target, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestConvertCommand(t *testing.T) {
	t.Setenv("SQLITE_PATH", ":memory:")

	out, _, err := execute(t, tonometryForm, "convert", "tonometry", "-")
	require.NoError(t, err)
	var env struct {
		Type  string            `json:"type"`
		Total *int              `json:"total"`
		Entry []json.RawMessage `json:"entry"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "collection", env.Type)
	assert.Nil(t, env.Total, "collection bundles carry no total")
	assert.Len(t, env.Entry, 2)

	_, stderr, err := execute(t, `{"recordedDate": "2024-03-05", "iopMethod": ""}`, "convert", "tonometry", "-")
	assert.Error(t, err)
	assert.Contains(t, stderr, "error: iopMethod")

	_, _, err = execute(t, tonometryForm, "convert", "perimetry", "-")
	assert.Error(t, err)
}

func TestCodeSystemsCommand(t *testing.T) {
	out, _, err := execute(t, "", "codesystems")
	require.NoError(t, err)
	var bundle struct {
		Type  string `json:"type"`
		Entry []struct {
			Resource struct {
				ResourceType string `json:"resourceType"`
				URL          string `json:"url"`
			} `json:"resource"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Equal(t, "collection", bundle.Type)
	require.NotEmpty(t, bundle.Entry)
	urls := make([]string, 0, len(bundle.Entry))
	for _, e := range bundle.Entry {
		assert.Equal(t, "CodeSystem", e.Resource.ResourceType)
		urls = append(urls, e.Resource.URL)
	}
	assert.Contains(t, urls, "http://snomed.info/sct")
}

func TestMigrateCommands(t *testing.T) {
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "eyecare.db"))

	out, _, err := execute(t, "", "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")

	out, _, err = execute(t, "", "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "successfully")

	out, _, err = execute(t, "", "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "applied")
	assert.NotContains(t, out, "pending")
}
