package report

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/internal/platform/validation"
)

func validInput() Input {
	return Input{
		StudyID:     "s1",
		Radiologist: "Dra. Ruiz",
		Date:        "2024-03-10",
		Findings:    "Sin hallazgos patológicos.",
		Impression:  "Normal",
		Status:      StatusReview,
		Quality:     "Buena",
	}
}

func TestInput_Valid(t *testing.T) {
	if err := validation.Struct(validInput()); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestInput_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Input)
		field string
	}{
		{"short findings", func(in *Input) { in.Findings = "corto" }, "hallazgos"},
		{"short impression", func(in *Input) { in.Impression = "ok" }, "impresion_diagnostica"},
		{"blank radiologist", func(in *Input) { in.Radiologist = "  " }, "medico_radiologo"},
		{"bad date", func(in *Input) { in.Date = "10/03/2024" }, "fecha_informe"},
		{"unknown status", func(in *Input) { in.Status = "Archivado" }, "estado"},
		{"unknown quality", func(in *Input) { in.Quality = "Perfecta" }, "calidad_estudio"},
		{"missing study", func(in *Input) { in.StudyID = "" }, "estudio_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			var fe validation.FieldErrors
			if !errors.As(validation.Struct(in), &fe) {
				t.Fatal("expected field errors")
			}
			if !fe.Has(tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, fe)
			}
		})
	}
}

func TestInput_FindingsCountCharacters(t *testing.T) {
	in := validInput()
	in.Findings = "ñññññññññó"
	if err := validation.Struct(in); err != nil {
		t.Errorf("expected ten accented characters to pass, got %v", err)
	}
}

func TestPayload_DateAndDefaults(t *testing.T) {
	in := validInput()
	in.Quality = ""
	in.Findings = "  Sin hallazgos patológicos.  "
	b, err := json.Marshal(in.Payload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["fecha_informe"] != "2024-03-10" {
		t.Errorf("expected plain date, got %v", got["fecha_informe"])
	}
	if got["calidad_estudio"] != "Buena" {
		t.Errorf("expected default quality, got %v", got["calidad_estudio"])
	}
	if got["hallazgos"] != "Sin hallazgos patológicos." {
		t.Errorf("expected trimmed findings, got %q", got["hallazgos"])
	}
}

func TestImagesFromStudy(t *testing.T) {
	files := []study.File{
		{OriginalName: "torax.dcm", SavedName: "a1.dcm"},
		{SavedName: "b2.dcm", PreviewName: "b2-prev.png"},
	}
	got := ImagesFromStudy("s1", files)
	if len(got) != 2 {
		t.Fatalf("expected 2 images, got %d", len(got))
	}
	if got[0].PNGFile != "a1.png" || got[0].Description != "Imagen 1 - torax.dcm" || got[0].Order != 0 {
		t.Errorf("unexpected first image %+v", got[0])
	}
	if got[1].PNGFile != "b2-prev.png" || got[1].Description != "Imagen 2 - b2.dcm" || got[1].StudyID != "s1" {
		t.Errorf("unexpected second image %+v", got[1])
	}
}

func TestInputFrom(t *testing.T) {
	var r Report
	if err := json.Unmarshal([]byte(`{"id":"r1","estudio_id":"s1","fecha_informe":"2024-03-10",
		"hallazgos":"x","estado":"Validado","urgente":true,"validado":true}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	in := InputFrom(r)
	if in.Date != "2024-03-10" || in.Status != StatusValidated || !in.Urgent || !in.Validated {
		t.Errorf("unexpected input %+v", in)
	}
	if r.UrgencyLabel() != "Urgente" || r.ValidationLabel() != "Validado" {
		t.Errorf("unexpected labels %s/%s", r.UrgencyLabel(), r.ValidationLabel())
	}
}
