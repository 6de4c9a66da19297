package fhir

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchBundleParams holds pagination and link information for a search bundle.
type SearchBundleParams struct {
	BaseURL  string
	QueryStr string
	Count    int
	Offset   int
	Total    int
}

// NewCollectionBundle wraps resources into a Bundle of type collection.
// Each entry gets a fullUrl derived from the resource's type and id.
func NewCollectionBundle(resources ...interface{}) (*Bundle, error) {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal bundle entry: %w", err)
		}
		entries = append(entries, BundleEntry{
			FullURL:  extractFullURL(raw),
			Resource: raw,
		})
	}
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.New().String(),
		Type:         "collection",
		Timestamp:    &now,
		Entry:        entries,
	}, nil
}

// NewSearchBundleWithLinks creates a searchset Bundle with pagination links.
func NewSearchBundleWithLinks(resources []interface{}, params SearchBundleParams) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		entries[i] = BundleEntry{
			FullURL:  extractFullURL(raw),
			Resource: raw,
			Search: &BundleSearch{
				Mode: "match",
			},
		}
	}

	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &params.Total,
		Timestamp:    &now,
		Link:         buildPaginationLinks(params),
		Entry:        entries,
	}
}

// EntryURL returns the fullUrl for a resource. Resources identified by a
// UUID are addressed as urn:uuid, everything else as Type/id.
func EntryURL(resourceType, id string) string {
	if id == "" {
		return ""
	}
	if _, err := uuid.Parse(id); err == nil {
		return "urn:uuid:" + id
	}
	return FormatReference(resourceType, id)
}

// ResourceType reads the resourceType of a raw resource without decoding it.
func ResourceType(raw []byte) string {
	rt, err := jsonparser.GetString(raw, "resourceType")
	if err != nil {
		return ""
	}
	return rt
}

// Resources returns every non-Bundle resource contained in b, descending
// into nested Bundles in entry order.
func Resources(b *Bundle) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for _, e := range b.Entry {
		if ResourceType(e.Resource) != "Bundle" {
			out = append(out, e.Resource)
			continue
		}
		var nested Bundle
		if err := json.Unmarshal(e.Resource, &nested); err != nil {
			return nil, fmt.Errorf("decode nested bundle: %w", err)
		}
		inner, err := Resources(&nested)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}
	return out, nil
}

// BundleIssues checks the Bundle invariants the resource validator does not
// see when it is handed the entries one by one: bdl-1 (total only in a
// searchset or history), bdl-2 (entry.search only in a searchset) and bdl-7
// (fullUrl unique). Nested Bundles are checked as well.
func BundleIssues(b *Bundle) ([]ValidationIssue, error) {
	loc := FormatReference("Bundle", b.ID)
	var out []ValidationIssue
	invariant := func(format string, args ...interface{}) {
		out = append(out, ValidationIssue{
			Severity:    SeverityError,
			Code:        VIssueTypeInvariant,
			Location:    loc,
			Diagnostics: fmt.Sprintf(format, args...),
		})
	}

	if b.Total != nil && b.Type != "searchset" && b.Type != "history" {
		invariant("bdl-1: total only when a search or history, got type %s", b.Type)
	}
	seen := make(map[string]bool, len(b.Entry))
	for i, e := range b.Entry {
		if e.Search != nil && b.Type != "searchset" {
			invariant("bdl-2: entry[%d].search only when a search", i)
		}
		if e.FullURL != "" {
			if seen[e.FullURL] {
				invariant("bdl-7: fullUrl %s is not unique", e.FullURL)
			}
			seen[e.FullURL] = true
		}
		if ResourceType(e.Resource) != "Bundle" {
			continue
		}
		var nested Bundle
		if err := json.Unmarshal(e.Resource, &nested); err != nil {
			return nil, fmt.Errorf("decode nested bundle: %w", err)
		}
		inner, err := BundleIssues(&nested)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}
	return out, nil
}

// extractFullURL builds a fullUrl from a raw resource's resourceType and id.
func extractFullURL(raw []byte) string {
	id, err := jsonparser.GetString(raw, "id")
	if err != nil {
		return ""
	}
	return EntryURL(ResourceType(raw), id)
}

// buildPaginationLinks creates self, next, and previous links for searchset bundles.
func buildPaginationLinks(params SearchBundleParams) []BundleLink {
	links := []BundleLink{
		{
			Relation: "self",
			URL:      fmt.Sprintf("%s?%s_count=%d&_offset=%d", params.BaseURL, conditionalAmpersand(params.QueryStr), params.Count, params.Offset),
		},
	}

	nextOffset := params.Offset + params.Count
	if nextOffset < params.Total {
		links = append(links, BundleLink{
			Relation: "next",
			URL:      fmt.Sprintf("%s?%s_count=%d&_offset=%d", params.BaseURL, conditionalAmpersand(params.QueryStr), params.Count, nextOffset),
		})
	}

	if params.Offset > 0 {
		prevOffset := params.Offset - params.Count
		if prevOffset < 0 {
			prevOffset = 0
		}
		links = append(links, BundleLink{
			Relation: "previous",
			URL:      fmt.Sprintf("%s?%s_count=%d&_offset=%d", params.BaseURL, conditionalAmpersand(params.QueryStr), params.Count, prevOffset),
		})
	}

	return links
}

// conditionalAmpersand returns the query string with a trailing & if non-empty.
func conditionalAmpersand(qs string) string {
	if qs == "" {
		return ""
	}
	return qs + "&"
}

// CapabilityStatement represents the FHIR CapabilityStatement (metadata).
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	Rest           []CSRest          `json:"rest"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode      string        `json:"mode"`
	Resource  []CSResource  `json:"resource"`
	Operation []CSOperation `json:"operation,omitempty"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	Operation   []CSOperation   `json:"operation,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSOperation struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// NewCapabilityStatement creates the server's capability statement.
func NewCapabilityStatement(baseURL string, resources []CSResource, operations []CSOperation) *CapabilityStatement {
	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Implementation: &CSImplementation{
			Description: "Ophthalmology examination capture, FHIR R4 facade",
			URL:         baseURL,
		},
		Rest: []CSRest{
			{
				Mode:      "server",
				Resource:  resources,
				Operation: operations,
			},
		},
	}
}

// ResourceCapability creates a CSResource supporting the given interactions.
func ResourceCapability(resourceType string, interactions ...string) CSResource {
	cs := CSResource{Type: resourceType}
	for _, code := range interactions {
		cs.Interaction = append(cs.Interaction, CSInteraction{Code: code})
	}
	return cs
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
