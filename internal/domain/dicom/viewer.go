package dicom

import (
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
)

// Viewer bounds and steps.
const (
	MinZoom      = 0.5
	MaxZoom      = 3.0
	ZoomStep     = 0.2
	RotationStep = 90
	MaxContrast  = 0.9
	ContrastStep = 0.1
)

// Viewer is the presentational state of the preview viewer. It only ever
// changes how the image is drawn; the asset itself is untouched.
type Viewer struct {
	Zoom     float64
	Rotation int
	Contrast float64
}

// NewViewer is the identity view.
func NewViewer() Viewer {
	return Viewer{Zoom: 1}
}

// round1 keeps repeated steps from drifting (0.1+0.2 and friends).
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

func (v Viewer) ZoomIn() Viewer {
	v.Zoom = clamp(round1(v.Zoom+ZoomStep), MinZoom, MaxZoom)
	return v
}

func (v Viewer) ZoomOut() Viewer {
	v.Zoom = clamp(round1(v.Zoom-ZoomStep), MinZoom, MaxZoom)
	return v
}

// Rotate turns by deg, normalised into [0, 360).
func (v Viewer) Rotate(deg int) Viewer {
	v.Rotation = ((v.Rotation+deg)%360 + 360) % 360
	return v
}

func (v Viewer) AdjustContrast(delta float64) Viewer {
	v.Contrast = clamp(round1(v.Contrast+delta), -MaxContrast, MaxContrast)
	return v
}

// Apply runs a named viewer command. Unknown commands leave v as is.
func (v Viewer) Apply(cmd string) Viewer {
	switch cmd {
	case "zoom_in":
		return v.ZoomIn()
	case "zoom_out":
		return v.ZoomOut()
	case "rotate":
		return v.Rotate(RotationStep)
	case "contrast_up":
		return v.AdjustContrast(ContrastStep)
	case "contrast_down":
		return v.AdjustContrast(-ContrastStep)
	case "reset":
		return NewViewer()
	}
	return v
}

// CSSTransform is the style transform for the image element.
func (v Viewer) CSSTransform() string {
	return fmt.Sprintf("scale(%s) rotate(%ddeg)", num(v.Zoom), v.Rotation)
}

// CSSFilter is the style filter for the image element.
func (v Viewer) CSSFilter() string {
	return fmt.Sprintf("contrast(%s)", num(round1(1+v.Contrast)))
}

// Style is the inline style for the image element. It is built only from
// numbers, so it is safe to mark as CSS.
func (v Viewer) Style() template.CSS {
	return template.CSS("transform: " + v.CSSTransform() + "; filter: " + v.CSSFilter())
}

func (v Viewer) ZoomPercent() int {
	return int(math.Round(v.Zoom * 100))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ViewerFrom reads viewer state from query values, clamping anything out
// of range.
func ViewerFrom(q url.Values) Viewer {
	v := NewViewer()
	if z, err := strconv.ParseFloat(q.Get("zoom"), 64); err == nil && !math.IsNaN(z) {
		v.Zoom = clamp(round1(z), MinZoom, MaxZoom)
	}
	if r, err := strconv.Atoi(q.Get("rot")); err == nil {
		v = v.Rotate(r - r%RotationStep)
	}
	if ct, err := strconv.ParseFloat(q.Get("contraste"), 64); err == nil && !math.IsNaN(ct) {
		v.Contrast = clamp(round1(ct), -MaxContrast, MaxContrast)
	}
	return v
}

// Values encodes v for links.
func (v Viewer) Values() url.Values {
	return url.Values{
		"zoom":      {num(v.Zoom)},
		"rot":       {strconv.Itoa(v.Rotation)},
		"contraste": {num(v.Contrast)},
	}
}

// Link is the viewer URL at base after running cmd.
func (v Viewer) Link(base, cmd string) string {
	return base + "?" + v.Apply(cmd).Values().Encode()
}
