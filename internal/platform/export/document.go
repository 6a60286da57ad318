// Package export produces the console's downloadable artifacts: CSV dumps
// of list pages, a printable HTML document with its images inlined as data
// URIs, and the same document as a PDF.
package export

// Document is a printable record: a heading, a block of labelled facts, free
// text sections and attached images.
type Document struct {
	Title    string
	Subtitle string
	Facts    []Fact
	Sections []Section
	Images   []Image
	Footer   string
}

// Fact is one "label: value" line.
type Fact struct {
	Label string
	Value string
}

// Section is a titled block of text.
type Section struct {
	Title string
	Body  string
}

// Image is an attached picture, usually a DICOM preview PNG.
type Image struct {
	Caption     string
	ContentType string
	Data        []byte
}
