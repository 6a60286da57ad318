package export

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

var printTemplate = template.Must(template.New("print").Parse(`<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Arial, sans-serif; margin: 20px; color: #222; }
  .header { text-align: center; border-bottom: 2px solid #333; padding-bottom: 10px; margin-bottom: 20px; }
  .facts { background: #f5f5f5; padding: 15px; border-radius: 5px; }
  .section { margin: 20px 0; }
  .section-title { font-weight: bold; margin-bottom: 8px; }
  .section p { white-space: pre-wrap; }
  .images { display: flex; flex-wrap: wrap; gap: 12px; }
  figure { margin: 0; page-break-inside: avoid; }
  figure img { max-width: 100%; border: 1px solid #ccc; }
  figcaption { font-size: 12px; color: #555; }
  .footer { margin-top: 40px; font-size: 11px; color: #777; text-align: center; }
</style>
</head>
<body>
<div class="header">
  <h1>{{.Title}}</h1>
  {{if .Subtitle}}<h2>{{.Subtitle}}</h2>{{end}}
</div>
{{if .Facts}}
<div class="section facts">
  {{range .Facts}}<strong>{{.Label}}:</strong> {{.Value}}<br>{{end}}
</div>
{{end}}
{{range .Sections}}
<div class="section">
  <div class="section-title">{{.Title}}</div>
  <p>{{.Body}}</p>
</div>
{{end}}
{{if .Images}}
<div class="section">
  <div class="section-title">IMÁGENES</div>
  <div class="images">
  {{range .Images}}
    <figure><img src="{{.Src}}" alt="{{.Caption}}"><figcaption>{{.Caption}}</figcaption></figure>
  {{end}}
  </div>
</div>
{{end}}
<div class="footer">{{.Footer}}</div>
<script>window.addEventListener("load", function () { window.print(); });</script>
</body>
</html>
`))

type printImage struct {
	Caption string
	Src     template.URL
}

type printData struct {
	Document
	Images []printImage
}

// PrintHTML renders doc as a standalone page that opens the browser's print
// dialog once loaded. Images are downscaled to MaxImageWidth and inlined as
// data URIs so the page needs no further requests; an image that cannot be
// decoded is inlined as it came.
func PrintHTML(w io.Writer, doc Document) error {
	data := printData{Document: doc}
	if data.Footer == "" {
		data.Footer = "Generado el " + time.Now().Format("02/01/2006 15:04")
	}
	for _, img := range doc.Images {
		raw, ct := img.Data, img.ContentType
		if scaled, sct, err := Downscale(img.Data, MaxImageWidth); err == nil {
			raw, ct = scaled, sct
		}
		data.Images = append(data.Images, printImage{
			Caption: img.Caption,
			Src:     template.URL(DataURI(ct, raw)),
		})
	}
	if err := printTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render print document: %w", err)
	}
	return nil
}
