package conformance

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

var (
	shared     *Checker
	sharedOnce sync.Once
	sharedErr  error
)

func checker(t *testing.T) *Checker {
	t.Helper()
	sharedOnce.Do(func() {
		shared, sharedErr = New(nil, zerolog.Nop())
	})
	if sharedErr != nil {
		t.Skipf("fhir validator unavailable: %v", sharedErr)
	}
	return shared
}

func TestCheckResourceUnknownType(t *testing.T) {
	c := checker(t)
	issues, err := c.CheckResource(context.Background(), []byte(`{"resourceType": "NotAResource", "id": "x"}`))
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, fhir.SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Location, "NotAResource/x")
}

func TestCheckBundles(t *testing.T) {
	c := checker(t)
	b, err := fhir.NewCollectionBundle(map[string]interface{}{
		"resourceType": "Observation",
		"id":           "obs-1",
	})
	require.NoError(t, err)

	issues, err := c.Check(context.Background(), []*fhir.Bundle{b})
	require.NoError(t, err)

	var errs int
	for _, is := range issues {
		if is.Severity == fhir.SeverityError {
			errs++
		}
	}
	assert.Positive(t, errs, "an Observation without status and code must not validate")
}

func TestCheckCancelled(t *testing.T) {
	c := checker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CheckResource(ctx, []byte(`{"resourceType": "Patient"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckBundleInvariants(t *testing.T) {
	c := checker(t)
	total := 0
	b := &fhir.Bundle{ResourceType: "Bundle", ID: "b1", Type: "collection", Total: &total}

	issues, err := c.Check(context.Background(), []*fhir.Bundle{b})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, fhir.SeverityError, issues[0].Severity)
	assert.Equal(t, "Bundle/b1", issues[0].Location)
	assert.Contains(t, issues[0].Diagnostics, "bdl-1")
}
