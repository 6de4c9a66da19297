package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/apd/v3"
	"github.com/damedic/fhir-toolbox-go/fhirpath"
)

// Node is a FHIRPath element backed by decoded FHIR JSON. Complex values
// are Nodes, strings become System.String, booleans System.Boolean and
// numbers System.Decimal.
type Node struct {
	typeName string
	fields   map[string]interface{}
}

var _ fhirpath.Element = (*Node)(nil)

// Parse decodes a FHIR resource. Numbers keep their textual precision.
func Parse(raw []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode resource: not a JSON object")
	}
	rt, _ := fields["resourceType"].(string)
	return &Node{typeName: rt, fields: fields}, nil
}

// ResourceType returns the resourceType of a root node.
func (n *Node) ResourceType() string { return n.typeName }

// Has reports whether the node has a child called name.
func (n *Node) Has(name string) bool {
	_, ok := n.fields[name]
	return ok
}

// Children returns the named children. A name without an exact match also
// resolves choice elements, so "value" finds "valueQuantity".
func (n *Node) Children(name ...string) fhirpath.Collection {
	if len(name) == 0 {
		keys := make([]string, 0, len(n.fields))
		for k := range n.fields {
			if k != "resourceType" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		name = keys
	}
	var out fhirpath.Collection
	for _, nm := range name {
		if v, ok := n.fields[nm]; ok {
			out = append(out, toElements(v)...)
			continue
		}
		for k, v := range n.fields {
			if isChoiceOf(k, nm) {
				out = append(out, toElements(v)...)
			}
		}
	}
	return out
}

func isChoiceOf(key, name string) bool {
	if len(key) <= len(name) || !strings.HasPrefix(key, name) {
		return false
	}
	return unicode.IsUpper(rune(key[len(name)]))
}

func toElements(v interface{}) fhirpath.Collection {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		var out fhirpath.Collection
		for _, item := range t {
			out = append(out, toElements(item)...)
		}
		return out
	case map[string]interface{}:
		return fhirpath.Collection{&Node{fields: t}}
	case string:
		return fhirpath.Collection{fhirpath.String(t)}
	case bool:
		return fhirpath.Collection{fhirpath.Boolean(t)}
	case json.Number:
		d, _, err := apd.NewFromString(t.String())
		if err != nil {
			return fhirpath.Collection{fhirpath.String(t.String())}
		}
		return fhirpath.Collection{fhirpath.Decimal{Value: d}}
	case float64:
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(t); err != nil {
			return nil
		}
		return fhirpath.Collection{fhirpath.Decimal{Value: d}}
	default:
		return nil
	}
}

func (n *Node) ToBoolean(bool) (fhirpath.Boolean, bool, error) { return false, false, nil }
func (n *Node) ToString(bool) (fhirpath.String, bool, error)   { return "", false, nil }
func (n *Node) ToInteger(bool) (fhirpath.Integer, bool, error) { return 0, false, nil }
func (n *Node) ToLong(bool) (fhirpath.Long, bool, error)       { return 0, false, nil }
func (n *Node) ToDecimal(bool) (fhirpath.Decimal, bool, error) {
	return fhirpath.Decimal{}, false, nil
}
func (n *Node) ToDate(bool) (fhirpath.Date, bool, error) { return fhirpath.Date{}, false, nil }
func (n *Node) ToTime(bool) (fhirpath.Time, bool, error) { return fhirpath.Time{}, false, nil }
func (n *Node) ToDateTime(bool) (fhirpath.DateTime, bool, error) {
	return fhirpath.DateTime{}, false, nil
}
func (n *Node) ToQuantity(bool) (fhirpath.Quantity, bool, error) {
	return fhirpath.Quantity{}, false, nil
}

func (n *Node) Equal(other fhirpath.Element) (bool, bool) {
	o, ok := other.(*Node)
	if !ok {
		return false, true
	}
	a, errA := json.Marshal(n.fields)
	b, errB := json.Marshal(o.fields)
	if errA != nil || errB != nil {
		return false, false
	}
	return bytes.Equal(a, b), true
}

func (n *Node) Equivalent(other fhirpath.Element) bool {
	eq, _ := n.Equal(other)
	return eq
}

// TypeInfo reports resources as FHIR.<resourceType> and nested values as
// FHIR.Element.
func (n *Node) TypeInfo() fhirpath.TypeInfo {
	name := n.typeName
	if name == "" {
		name = "Element"
	}
	return fhirpath.ClassInfo{
		Namespace: "FHIR",
		Name:      name,
		BaseType:  fhirpath.TypeSpecifier{Namespace: "System", Name: "Any"},
	}
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.fields)
}

func (n *Node) String() string {
	b, err := json.Marshal(n.fields)
	if err != nil {
		return "null"
	}
	return string(b)
}

// ResourceTypes returns the type infos to register for resource
// type resolution in path roots.
func ResourceTypes(names ...string) []fhirpath.TypeInfo {
	out := make([]fhirpath.TypeInfo, 0, len(names))
	for _, name := range names {
		out = append(out, fhirpath.ClassInfo{
			Namespace: "FHIR",
			Name:      name,
			BaseType:  fhirpath.TypeSpecifier{Namespace: "System", Name: "Any"},
		})
	}
	return out
}
