package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{255, 255, 255, 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	err := CSV(&buf, []string{"Nombre", "Notas"}, [][]string{
		{"Juan Pérez", "tórax, PA"},
		{"Ana", `dijo "hola"`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Error("expected a byte order mark")
	}
	want := "\ufeffNombre,Notas\nJuan Pérez,\"tórax, PA\"\nAna,\"dijo \"\"hola\"\"\"\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("pacientes", time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	if got != "pacientes_20240115.csv" {
		t.Errorf("expected pacientes_20240115.csv, got %s", got)
	}
}

func TestSendCSV(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := SendCSV(c, "citas", []string{"a"}, [][]string{{"1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "citas_") {
		t.Errorf("expected attachment filename, got %s", cd)
	}
}

func TestDownscale(t *testing.T) {
	wide := pngOf(t, 2048, 100)
	out, ct, err := Downscale(wide, MaxImageWidth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != MaxImageWidth || cfg.Height != 50 {
		t.Errorf("expected %dx50, got %dx%d", MaxImageWidth, cfg.Width, cfg.Height)
	}

	small := pngOf(t, 10, 10)
	out, _, err = Downscale(small, MaxImageWidth)
	if err != nil || !bytes.Equal(out, small) {
		t.Error("expected small image to pass through")
	}

	if _, _, err := Downscale([]byte("not an image"), MaxImageWidth); err == nil {
		t.Error("expected decode error")
	}
}

func TestPrintHTML(t *testing.T) {
	var buf bytes.Buffer
	doc := Document{
		Title:    "INFORME MÉDICO",
		Subtitle: "Radiografía de Tórax",
		Facts:    []Fact{{Label: "Paciente", Value: "Juan <Pérez>"}},
		Sections: []Section{{Title: "HALLAZGOS", Body: "Campos pulmonares libres."}},
		Images: []Image{
			{Caption: "Imagen 1", ContentType: "image/png", Data: pngOf(t, 4, 4)},
			{Caption: "Rota", ContentType: "image/png", Data: []byte("xx")},
		},
	}
	if err := PrintHTML(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"window.print()", "data:image/png;base64,", "Juan &lt;Pérez&gt;", "HALLAZGOS", "Rota"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	doc := Document{
		Title:    "INFORME MÉDICO",
		Facts:    []Fact{{Label: "Paciente", Value: "Juan Pérez"}},
		Sections: []Section{{Title: "IMPRESIÓN DIAGNÓSTICA", Body: "Normal"}},
		Images:   []Image{{Caption: "Imagen 1", Data: pngOf(t, 64, 32)}},
	}
	if err := PDF(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Error("expected PDF header")
	}
}
