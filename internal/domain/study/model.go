package study

import (
	"encoding/json"
	"strings"

	"github.com/ehr/radconsole/pkg/jsontime"
)

// Status is the study's canonical status. The backend and older records
// carry a richer vocabulary; ParseStatus folds it onto these three.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusCompleted Status = "completado"
	StatusCancelled Status = "cancelado"
)

// Statuses lists the canonical values in display order.
var Statuses = []Status{StatusPending, StatusCompleted, StatusCancelled}

var statusAliases = map[string]Status{
	"pendiente":    StatusPending,
	"programado":   StatusPending,
	"en proceso":   StatusPending,
	"en_proceso":   StatusPending,
	"completado":   StatusCompleted,
	"interpretado": StatusCompleted,
	"informado":    StatusCompleted,
	"entregado":    StatusCompleted,
	"cancelado":    StatusCancelled,
}

// ParseStatus maps any known spelling onto the canonical status. Unknown
// values report false.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// NormalizeStatus is ParseStatus for filters: unknown input passes through
// lower-cased so it still compares equal to itself.
func NormalizeStatus(s string) string {
	if st, ok := ParseStatus(s); ok {
		return string(st)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusCompleted:
		return "Completado"
	case StatusCancelled:
		return "Cancelado"
	}
	return string(s)
}

// UnmarshalJSON normalizes legacy labels. A value outside every known
// vocabulary is kept as sent so the table still shows it.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if st, ok := ParseStatus(raw); ok {
		*s = st
		return nil
	}
	*s = Status(raw)
	return nil
}

// Priorities and the vocabularies offered by the study form.
var (
	Priorities = []string{"baja", "normal", "alta", "urgente"}
	Modalities = []string{"RX", "CT", "MR", "US", "MG", "DX", "XA", "PT", "NM", "RF"}
	StudyTypes = []string{
		"Radiografía", "Tomografía Computarizada", "Resonancia Magnética", "Ecografía",
		"Mamografía", "Densitometría Ósea", "Angiografía", "PET/CT", "SPECT", "Fluoroscopia",
	}
	BodyParts = []string{
		"Cabeza", "Cuello", "Tórax", "Abdomen", "Pelvis", "Extremidad Superior",
		"Extremidad Inferior", "Columna Vertebral", "Corazón", "Sistema Vascular", "Todo el Cuerpo",
	}
)

var modalityNames = map[string]string{
	"RX": "Rayos X",
	"CT": "Tomografía",
	"MR": "Resonancia",
	"US": "Ultrasonido",
	"MG": "Mamografía",
	"DX": "Densitometría",
	"XA": "Angiografía",
	"PT": "PET",
	"NM": "Medicina Nuclear",
	"RF": "Fluoroscopia",
}

// ModalityName expands a modality code, returning the code when unknown.
func ModalityName(code string) string {
	if n, ok := modalityNames[code]; ok {
		return n
	}
	return code
}

// File is one DICOM file attached to a study.
type File struct {
	OriginalName string        `json:"original_name"`
	SavedName    string        `json:"saved_name" validate:"required"`
	PreviewName  string        `json:"preview_name,omitempty"`
	Size         int64         `json:"size"`
	UploadedAt   jsontime.Time `json:"uploaded_at"`
	UploadedBy   string        `json:"uploaded_by,omitempty"`
	PatientID    string        `json:"paciente_id,omitempty"`
}

// Preview is the PNG rendition's file name. Files uploaded before previews
// were recorded follow the ".dcm" to ".png" naming rule.
func (f File) Preview() string {
	if f.PreviewName != "" {
		return f.PreviewName
	}
	name := f.SavedName
	if i := strings.LastIndex(strings.ToLower(name), ".dcm"); i >= 0 && i == len(name)-4 {
		return name[:i] + ".png"
	}
	return name + ".png"
}

// Study is an imaging study as the backend returns it, with the patient
// fields the backend joins in.
type Study struct {
	ID              string        `json:"id" validate:"required"`
	PatientID       string        `json:"paciente_id"`
	PatientName     string        `json:"paciente_nombre,omitempty"`
	PatientSurname  string        `json:"paciente_apellidos,omitempty"`
	PatientDocument string        `json:"paciente_cedula,omitempty"`
	StudyType       string        `json:"tipo_estudio"`
	Modality        string        `json:"modalidad,omitempty"`
	BodyPart        string        `json:"parte_cuerpo,omitempty"`
	Physician       string        `json:"medico_solicitante,omitempty"`
	Priority        string        `json:"prioridad,omitempty"`
	Instructions    string        `json:"indicaciones,omitempty"`
	Room            string        `json:"sala,omitempty"`
	Technician      string        `json:"tecnico_asignado,omitempty"`
	Status          Status        `json:"estado"`
	Contrast        bool          `json:"contraste"`
	Urgent          bool          `json:"urgente"`
	Notes           string        `json:"observaciones,omitempty"`
	Results         string        `json:"resultados,omitempty"`
	RequestedAt     jsontime.Time `json:"fecha_solicitud"`
	ScheduledAt     jsontime.Time `json:"fecha_programada"`
	PerformedAt     jsontime.Time `json:"fecha_realizacion"`
	UpdatedAt       jsontime.Time `json:"fecha_actualizacion"`
	Files           []File        `json:"archivos_dicom,omitempty"`
}

// PatientFullName joins the patient's name fields.
func (s Study) PatientFullName() string {
	return strings.TrimSpace(s.PatientName + " " + s.PatientSurname)
}

// IsUrgent is true for the urgent flag or the urgent priority.
func (s Study) IsUrgent() bool {
	return s.Urgent || s.Priority == "urgente"
}

// Label is how pickers in other forms show the study.
func (s Study) Label() string {
	label := s.StudyType
	if s.Modality != "" {
		label += " (" + s.Modality + ")"
	}
	if name := s.PatientFullName(); name != "" {
		label += " · " + name
	}
	if d := s.PerformedAt.DisplayDate(); d != "" {
		label += " · " + d
	} else if d := s.RequestedAt.DisplayDate(); d != "" {
		label += " · " + d
	}
	return label
}

// Input is the study form as submitted.
type Input struct {
	PatientID    string `form:"paciente_id" validate:"notblank"`
	StudyType    string `form:"tipo_estudio" validate:"notblank"`
	Modality     string `form:"modalidad" validate:"required,oneof=RX CT MR US MG DX XA PT NM RF"`
	BodyPart     string `form:"parte_cuerpo" validate:"notblank"`
	PerformedOn  string `form:"fecha_realizacion" validate:"required,datetime=2006-01-02"`
	Status       string `form:"estado" validate:"required,oneof=pendiente completado cancelado"`
	Priority     string `form:"prioridad" validate:"omitempty,oneof=baja normal alta urgente"`
	Physician    string `form:"medico_solicitante"`
	Room         string `form:"sala"`
	Technician   string `form:"tecnico_asignado"`
	Instructions string `form:"indicaciones"`
	Notes        string `form:"observaciones"`
	Contrast     bool   `form:"contraste"`
	Urgent       bool   `form:"urgente"`
}

// NewInput is the blank create form.
func NewInput() Input {
	return Input{Status: string(StatusPending), Priority: "normal"}
}

// InputFrom fills the edit form from an existing record.
func InputFrom(s Study) Input {
	status := string(s.Status)
	if st, ok := ParseStatus(status); ok {
		status = string(st)
	}
	return Input{
		PatientID:    s.PatientID,
		StudyType:    s.StudyType,
		Modality:     s.Modality,
		BodyPart:     s.BodyPart,
		PerformedOn:  s.PerformedAt.Date(),
		Status:       status,
		Priority:     s.Priority,
		Physician:    s.Physician,
		Room:         s.Room,
		Technician:   s.Technician,
		Instructions: s.Instructions,
		Notes:        s.Notes,
		Contrast:     s.Contrast,
		Urgent:       s.Urgent,
	}
}

// Payload is the create/update body.
type Payload struct {
	PatientID    string        `json:"paciente_id"`
	StudyType    string        `json:"tipo_estudio"`
	Modality     string        `json:"modalidad"`
	BodyPart     string        `json:"parte_cuerpo"`
	PerformedAt  jsontime.Time `json:"fecha_realizacion"`
	Status       Status        `json:"estado"`
	Priority     string        `json:"prioridad"`
	Physician    string        `json:"medico_solicitante"`
	Room         string        `json:"sala,omitempty"`
	Technician   string        `json:"tecnico_asignado,omitempty"`
	Instructions string        `json:"indicaciones,omitempty"`
	Notes        string        `json:"observaciones,omitempty"`
	Contrast     bool          `json:"contraste"`
	Urgent       bool          `json:"urgente"`
}

// Payload converts a validated form.
func (in Input) Payload() Payload {
	performed, _ := jsontime.Parse(in.PerformedOn)
	priority := in.Priority
	if priority == "" {
		priority = "normal"
	}
	return Payload{
		PatientID:    strings.TrimSpace(in.PatientID),
		StudyType:    strings.TrimSpace(in.StudyType),
		Modality:     in.Modality,
		BodyPart:     strings.TrimSpace(in.BodyPart),
		PerformedAt:  jsontime.New(performed),
		Status:       Status(in.Status),
		Priority:     priority,
		Physician:    strings.TrimSpace(in.Physician),
		Room:         strings.TrimSpace(in.Room),
		Technician:   strings.TrimSpace(in.Technician),
		Instructions: strings.TrimSpace(in.Instructions),
		Notes:        strings.TrimSpace(in.Notes),
		Contrast:     in.Contrast,
		Urgent:       in.Urgent || priority == "urgente",
	}
}
