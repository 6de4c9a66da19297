package fhir

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewCollectionBundle(t *testing.T) {
	bundle, err := NewCollectionBundle(
		map[string]interface{}{"resourceType": "Observation", "id": "6f1c2c0e-4a55-4a4a-9d38-0c2d9d7d7f11"},
		map[string]interface{}{"resourceType": "Device", "id": "device-left-spectralis"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.ResourceType != "Bundle" {
		t.Errorf("expected resourceType Bundle, got %s", bundle.ResourceType)
	}
	if bundle.Type != "collection" {
		t.Errorf("expected type collection, got %s", bundle.Type)
	}
	if bundle.ID == "" {
		t.Error("expected bundle id to be set")
	}
	if len(bundle.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(bundle.Entry))
	}
	if bundle.Entry[0].FullURL != "urn:uuid:6f1c2c0e-4a55-4a4a-9d38-0c2d9d7d7f11" {
		t.Errorf("unexpected fullUrl: %s", bundle.Entry[0].FullURL)
	}
	if bundle.Entry[1].FullURL != "Device/device-left-spectralis" {
		t.Errorf("unexpected fullUrl: %s", bundle.Entry[1].FullURL)
	}
}

func TestEntryURL_Empty(t *testing.T) {
	if got := EntryURL("Observation", ""); got != "" {
		t.Errorf("expected empty fullUrl, got %q", got)
	}
}

func TestResourceType(t *testing.T) {
	if rt := ResourceType([]byte(`{"resourceType":"Observation","id":"1"}`)); rt != "Observation" {
		t.Errorf("expected Observation, got %q", rt)
	}
	if rt := ResourceType([]byte(`{"id":"1"}`)); rt != "" {
		t.Errorf("expected empty resourceType, got %q", rt)
	}
}

func TestResources_FlattensNestedBundles(t *testing.T) {
	left, _ := NewCollectionBundle(
		map[string]interface{}{"resourceType": "Observation", "id": "a"},
		map[string]interface{}{"resourceType": "DiagnosticReport", "id": "b"},
	)
	right, _ := NewCollectionBundle(
		map[string]interface{}{"resourceType": "Observation", "id": "c"},
	)
	outer, err := NewCollectionBundle(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resources, err := Resources(outer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(resources))
	}
	var ids []string
	for _, r := range resources {
		var m map[string]interface{}
		if err := json.Unmarshal(r, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		ids = append(ids, m["id"].(string))
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("expected entry order a,b,c, got %v", ids)
	}
}

func TestBundleIssues(t *testing.T) {
	left, _ := NewCollectionBundle(map[string]interface{}{"resourceType": "Observation", "id": "a"})
	right, _ := NewCollectionBundle(map[string]interface{}{"resourceType": "Observation", "id": "c"})
	outer, err := NewCollectionBundle(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issues, err := BundleIssues(outer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected a conformant collection, got %+v", issues)
	}

	search := NewSearchBundleWithLinks([]interface{}{map[string]interface{}{"resourceType": "Observation", "id": "a"}},
		SearchBundleParams{BaseURL: "/fhir/Observation", Count: 10, Total: 1})
	if issues, _ := BundleIssues(search); len(issues) != 0 {
		t.Errorf("searchset may carry total and entry.search, got %+v", issues)
	}

	total := 2
	nested, _ := json.Marshal(&Bundle{ResourceType: "Bundle", ID: "inner", Type: "collection", Total: &total})
	bad := &Bundle{
		ResourceType: "Bundle",
		ID:           "outer",
		Type:         "collection",
		Total:        &total,
		Entry: []BundleEntry{
			{FullURL: "urn:uuid:1", Resource: nested, Search: &BundleSearch{Mode: "match"}},
			{FullURL: "urn:uuid:1", Resource: json.RawMessage(`{"resourceType":"Observation"}`)},
		},
	}
	issues, err = BundleIssues(bad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, is := range issues {
		if is.Severity != SeverityError || is.Code != VIssueTypeInvariant {
			t.Errorf("expected an error invariant, got %+v", is)
		}
		got = append(got, is.Location+" "+is.Diagnostics[:5])
	}
	want := "Bundle/outer bdl-1,Bundle/outer bdl-2,Bundle/inner bdl-1,Bundle/outer bdl-7"
	if strings.Join(got, ",") != want {
		t.Errorf("expected %s, got %v", want, got)
	}
}

func TestNewSearchBundleWithLinks_MiddlePage(t *testing.T) {
	resources := []interface{}{
		map[string]interface{}{"resourceType": "Bundle", "id": "x"},
	}
	bundle := NewSearchBundleWithLinks(resources, SearchBundleParams{
		BaseURL:  "/fhir/Bundle",
		QueryStr: "kind=oct",
		Count:    10,
		Offset:   10,
		Total:    25,
	})

	if bundle.Type != "searchset" {
		t.Errorf("expected searchset, got %s", bundle.Type)
	}
	if *bundle.Total != 25 {
		t.Errorf("expected total 25, got %d", *bundle.Total)
	}
	rels := map[string]string{}
	for _, l := range bundle.Link {
		rels[l.Relation] = l.URL
	}
	if rels["next"] != "/fhir/Bundle?kind=oct&_count=10&_offset=20" {
		t.Errorf("unexpected next link: %s", rels["next"])
	}
	if rels["previous"] != "/fhir/Bundle?kind=oct&_count=10&_offset=0" {
		t.Errorf("unexpected previous link: %s", rels["previous"])
	}
	if bundle.Entry[0].Search == nil || bundle.Entry[0].Search.Mode != "match" {
		t.Error("expected search mode 'match'")
	}
}

func TestBuildPaginationLinks_LastPage(t *testing.T) {
	links := buildPaginationLinks(SearchBundleParams{BaseURL: "/fhir/Bundle", Count: 10, Offset: 20, Total: 25})
	for _, l := range links {
		if l.Relation == "next" {
			t.Errorf("did not expect next link on last page, got %s", l.URL)
		}
	}
}

func TestNewCapabilityStatement(t *testing.T) {
	cs := NewCapabilityStatement("http://localhost:8080/fhir",
		[]CSResource{ResourceCapability("Bundle", "read", "search-type")},
		[]CSOperation{{Name: "convert", Definition: "http://localhost:8080/fhir/OperationDefinition/convert"}},
	)

	if cs.FHIRVersion != "4.0.1" {
		t.Errorf("expected FHIR 4.0.1, got %s", cs.FHIRVersion)
	}
	if len(cs.Rest) != 1 || len(cs.Rest[0].Resource) != 1 {
		t.Fatalf("expected one rest resource, got %+v", cs.Rest)
	}
	if got := len(cs.Rest[0].Resource[0].Interaction); got != 2 {
		t.Errorf("expected 2 interactions, got %d", got)
	}
	if cs.Rest[0].Operation[0].Name != "convert" {
		t.Errorf("unexpected operation: %+v", cs.Rest[0].Operation)
	}
}
