package report

import (
	"fmt"
	"strings"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/pkg/jsontime"
)

// Report statuses as the backend spells them.
const (
	StatusDraft     = "Borrador"
	StatusReview    = "En Revisión"
	StatusCompleted = "Completado"
	StatusValidated = "Validado"
	StatusDelivered = "Entregado"
	StatusCorrected = "Corregido"
)

var Statuses = []string{StatusDraft, StatusReview, StatusCompleted, StatusValidated, StatusDelivered, StatusCorrected}

// Study quality grades.
var Qualities = []string{"Excelente", "Buena", "Regular", "Deficiente"}

const defaultQuality = "Buena"

// Image links a report to one of its study's DICOM files.
type Image struct {
	DICOMFile   string `json:"archivo_dicom" validate:"required"`
	PNGFile     string `json:"archivo_png"`
	StudyID     string `json:"estudio_id"`
	Description string `json:"descripcion,omitempty"`
	Order       int    `json:"orden"`
}

// Report is a radiology report with the patient and study fields the
// backend joins in.
type Report struct {
	ID              string        `json:"id" validate:"required"`
	StudyID         string        `json:"estudio_id"`
	Radiologist     string        `json:"medico_radiologo"`
	Date            jsontime.Time `json:"fecha_informe"`
	Findings        string        `json:"hallazgos"`
	Impression      string        `json:"impresion_diagnostica"`
	Recommendations string        `json:"recomendaciones,omitempty"`
	Status          string        `json:"estado"`
	Technique       string        `json:"tecnica_utilizada,omitempty"`
	Quality         string        `json:"calidad_estudio,omitempty"`
	Urgent          bool          `json:"urgente"`
	Validated       bool          `json:"validado"`
	TechnicalNotes  string        `json:"observaciones_tecnicas,omitempty"`
	Images          []Image       `json:"imagenes_dicom,omitempty" validate:"dive"`
	Signed          bool          `json:"firmado"`
	SignedAt        jsontime.Time `json:"fecha_firma"`
	PatientID       string        `json:"paciente_id,omitempty"`
	PatientName     string        `json:"paciente_nombre,omitempty"`
	PatientSurname  string        `json:"paciente_apellidos,omitempty"`
	PatientDocument string        `json:"paciente_cedula,omitempty"`
	StudyType       string        `json:"estudio_tipo,omitempty"`
	StudyModality   string        `json:"estudio_modalidad,omitempty"`
	StudyDate       jsontime.Time `json:"estudio_fecha"`
	CreatedAt       jsontime.Time `json:"fecha_creacion"`
	UpdatedAt       jsontime.Time `json:"fecha_actualizacion"`
}

func (r Report) PatientFullName() string {
	return strings.TrimSpace(r.PatientName + " " + r.PatientSurname)
}

// UrgencyLabel and ValidationLabel are the values the urgency and
// validation filters compare against.
func (r Report) UrgencyLabel() string {
	if r.Urgent {
		return "Urgente"
	}
	return "Normal"
}

func (r Report) ValidationLabel() string {
	if r.Validated {
		return "Validado"
	}
	return "Pendiente"
}

// ImagesFromStudy links every file of the study, in upload order. Captions
// follow the "Imagen N - <original name>" pattern.
func ImagesFromStudy(studyID string, files []study.File) []Image {
	out := make([]Image, 0, len(files))
	for i, f := range files {
		name := f.OriginalName
		if name == "" {
			name = f.SavedName
		}
		out = append(out, Image{
			DICOMFile:   f.SavedName,
			PNGFile:     f.Preview(),
			StudyID:     studyID,
			Description: fmt.Sprintf("Imagen %d - %s", i+1, name),
			Order:       i,
		})
	}
	return out
}

// Input is the report form as submitted.
type Input struct {
	StudyID         string `form:"estudio_id" validate:"notblank"`
	Radiologist     string `form:"medico_radiologo" validate:"notblank"`
	Date            string `form:"fecha_informe" validate:"required,datetime=2006-01-02"`
	Findings        string `form:"hallazgos" validate:"notblank,min=10"`
	Impression      string `form:"impresion_diagnostica" validate:"notblank,min=5"`
	Recommendations string `form:"recomendaciones"`
	Status          string `form:"estado" validate:"required,oneof=Borrador 'En Revisión' Completado Validado Entregado Corregido"`
	Technique       string `form:"tecnica_utilizada"`
	Quality         string `form:"calidad_estudio" validate:"omitempty,oneof=Excelente Buena Regular Deficiente"`
	TechnicalNotes  string `form:"observaciones_tecnicas"`
	Urgent          bool   `form:"urgente"`
	Validated       bool   `form:"validado"`
}

// NewInput is the blank create form, dated today and signed by the
// current radiologist.
func NewInput(radiologist, today, studyID string) Input {
	return Input{
		StudyID:     studyID,
		Radiologist: radiologist,
		Date:        today,
		Status:      StatusDraft,
		Quality:     defaultQuality,
	}
}

// InputFrom fills the edit form from an existing record.
func InputFrom(r Report) Input {
	return Input{
		StudyID:         r.StudyID,
		Radiologist:     r.Radiologist,
		Date:            r.Date.Date(),
		Findings:        r.Findings,
		Impression:      r.Impression,
		Recommendations: r.Recommendations,
		Status:          r.Status,
		Technique:       r.Technique,
		Quality:         r.Quality,
		TechnicalNotes:  r.TechnicalNotes,
		Urgent:          r.Urgent,
		Validated:       r.Validated,
	}
}

// Payload is the create/update body. The backend stores the report date
// as a plain calendar date.
type Payload struct {
	StudyID         string       `json:"estudio_id"`
	Radiologist     string       `json:"medico_radiologo"`
	Date            jsontime.Day `json:"fecha_informe"`
	Findings        string       `json:"hallazgos"`
	Impression      string       `json:"impresion_diagnostica"`
	Recommendations string       `json:"recomendaciones,omitempty"`
	Status          string       `json:"estado"`
	Technique       string       `json:"tecnica_utilizada,omitempty"`
	Quality         string       `json:"calidad_estudio"`
	TechnicalNotes  string       `json:"observaciones_tecnicas,omitempty"`
	Urgent          bool         `json:"urgente"`
	Validated       bool         `json:"validado"`
}

func (in Input) Payload() Payload {
	day, _ := jsontime.Parse(in.Date)
	quality := in.Quality
	if quality == "" {
		quality = defaultQuality
	}
	return Payload{
		StudyID:         strings.TrimSpace(in.StudyID),
		Radiologist:     strings.TrimSpace(in.Radiologist),
		Date:            jsontime.Day{Time: jsontime.New(day)},
		Findings:        strings.TrimSpace(in.Findings),
		Impression:      strings.TrimSpace(in.Impression),
		Recommendations: strings.TrimSpace(in.Recommendations),
		Status:          in.Status,
		Technique:       strings.TrimSpace(in.Technique),
		Quality:         quality,
		TechnicalNotes:  strings.TrimSpace(in.TechnicalNotes),
		Urgent:          in.Urgent,
		Validated:       in.Validated,
	}
}
