package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDF renders doc as an A4 PDF. Images are placed one per block at the page
// width, scaled down first like the print page.
func PDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 13)
		pdf.CellFormat(0, 8, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	if len(doc.Facts) > 0 {
		pdf.SetFillColor(245, 245, 245)
		for _, f := range doc.Facts {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(50, 7, tr(f.Label+":"), "", 0, "L", true, 0, "")
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 7, tr(f.Value), "", "L", true)
		}
		pdf.Ln(4)
	}

	for _, s := range doc.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(s.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, tr(s.Body), "", "L", false)
		pdf.Ln(3)
	}

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := pageW - left - right
	for i, img := range doc.Images {
		data, ct, err := Downscale(img.Data, MaxImageWidth)
		if err != nil {
			// Not a raster we can place; list it by caption only.
			pdf.SetFont("Arial", "I", 10)
			pdf.MultiCell(0, 6, tr(img.Caption), "", "L", false)
			continue
		}
		kind := "PNG"
		if ct == "image/jpeg" {
			kind = "JPG"
		}
		name := "img" + strconv.Itoa(i)
		opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: false}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if info == nil {
			continue
		}
		h := width * info.Height() / info.Width()
		pdf.ImageOptions(name, left, pdf.GetY(), width, h, true, opts, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, tr(img.Caption), "", "C", false)
		pdf.Ln(2)
	}

	footer := doc.Footer
	if footer == "" {
		footer = "Generado el " + time.Now().Format("02/01/2006 15:04")
	}
	pdf.SetFont("Arial", "I", 8)
	pdf.Ln(6)
	pdf.CellFormat(0, 5, tr(footer), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
