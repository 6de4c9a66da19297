// Package dicomfile reads the device fields of an OCT scan from its DICOM
// header.
package dicomfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNotDicom is returned for input that does not parse as a DICOM file.
var ErrNotDicom = errors.New("not a DICOM file")

// Tag keys used when the header is attached to a stored blob. They match the
// JSON names of the OCT form's dicom object.
const (
	TagManufacturer     = "manufacturer"
	TagModelName        = "modelName"
	TagSoftwareVersions = "softwareVersions"
	TagModality         = "modality"
)

// Header holds the header fields the OCT mapping uses.
type Header struct {
	Manufacturer     string `json:"manufacturer"`
	ModelName        string `json:"modelName"`
	SoftwareVersions string `json:"softwareVersions"`
	Modality         string `json:"modality,omitempty"`
}

// ReadHeader parses the dataset in r, skipping pixel data. Missing header
// fields are left empty.
func ReadHeader(r io.Reader, size int64) (*Header, error) {
	ds, err := dicom.Parse(r, size, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDicom, err)
	}
	return &Header{
		Manufacturer:     value(ds, tag.Manufacturer),
		ModelName:        value(ds, tag.ManufacturerModelName),
		SoftwareVersions: value(ds, tag.SoftwareVersions),
		Modality:         value(ds, tag.Modality),
	}, nil
}

func value(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil || el.Value.ValueType() != dicom.Strings {
		return ""
	}
	var parts []string
	for _, s := range dicom.MustGetStrings(el.Value) {
		if s = strings.TrimSpace(strings.TrimRight(s, "\x00")); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Tags returns the non-empty header fields keyed by the Tag constants.
func (h *Header) Tags() map[string]string {
	tags := make(map[string]string, 4)
	for k, v := range map[string]string{
		TagManufacturer:     h.Manufacturer,
		TagModelName:        h.ModelName,
		TagSoftwareVersions: h.SoftwareVersions,
		TagModality:         h.Modality,
	} {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}

// Inspect reads the header of an uploaded file and returns its tags.
func Inspect(data []byte) (map[string]string, error) {
	h, err := ReadHeader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return h.Tags(), nil
}
