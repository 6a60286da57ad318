package dicom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNotDICOM marks a file whose header cannot be read as DICOM.
var ErrNotDICOM = errors.New("not a DICOM file")

// Header is the part of a DICOM header the upload screen cares about.
type Header struct {
	PatientID        string
	PatientName      string
	StudyInstanceUID string
	Modality         string
}

// Inspect parses the header of one DICOM file of size bytes. Pixel data is
// skipped, so even large series are cheap to check.
func Inspect(r io.Reader, size int64) (*Header, error) {
	ds, err := dicom.Parse(r, size, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDICOM, err)
	}
	return &Header{
		PatientID:        stringValue(ds, tag.PatientID),
		PatientName:      strings.ReplaceAll(stringValue(ds, tag.PatientName), "^", " "),
		StudyInstanceUID: stringValue(ds, tag.StudyInstanceUID),
		Modality:         stringValue(ds, tag.Modality),
	}, nil
}

func stringValue(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil {
		return ""
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
