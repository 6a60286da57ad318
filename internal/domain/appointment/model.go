package appointment

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/pkg/jsontime"
)

// Status is the canonical appointment status. The backend stores these
// values but answers with display labels ("Programada", "No Asistió").
type Status string

const (
	StatusScheduled  Status = "programada"
	StatusConfirmed  Status = "confirmada"
	StatusInProgress Status = "en_proceso"
	StatusCompleted  Status = "completada"
	StatusCancelled  Status = "cancelada"
	StatusNoShow     Status = "no_asistio"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow}

var statusLabels = map[Status]string{
	StatusScheduled:  "Programada",
	StatusConfirmed:  "Confirmada",
	StatusInProgress: "En Proceso",
	StatusCompleted:  "Completada",
	StatusCancelled:  "Cancelada",
	StatusNoShow:     "No Asistió",
}

// ParseStatus accepts the canonical value or any display label.
func ParseStatus(s string) (Status, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.ReplaceAll(k, " ", "_")
	k = strings.ReplaceAll(k, "ó", "o")
	st := Status(k)
	_, ok := statusLabels[st]
	return st, ok
}

// NormalizeStatus is ParseStatus for filter comparisons.
func NormalizeStatus(s string) string {
	if st, ok := ParseStatus(s); ok {
		return string(st)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

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

// Form vocabularies.
var (
	StudyTypes = []string{
		"Radiografía", "Tomografía", "Resonancia Magnética", "Ecografía",
		"Mamografía", "Densitometría", "Angiografía", "PET/CT",
	}
	AppointmentTypes = []string{"Consulta General", "Control", "Seguimiento", "Urgencia"}
	Rooms            = []string{"Sala 1", "Sala 2", "Sala 3", "Sala CT", "Sala RM", "Sala Eco"}
)

// Duration bounds in minutes.
const (
	DefaultDuration = 30
	MinDuration     = 15
	MaxDuration     = 180
)

// Appointment is a cita as the backend returns it.
type Appointment struct {
	ID              string        `json:"id" validate:"required"`
	PatientID       string        `json:"paciente_id"`
	PatientName     string        `json:"paciente_nombre,omitempty"`
	PatientSurname  string        `json:"paciente_apellidos,omitempty"`
	StudyID         string        `json:"estudio_id,omitempty"`
	At              jsontime.Time `json:"fecha_cita"`
	StudyType       string        `json:"tipo_estudio"`
	AppointmentType string        `json:"tipo_cita,omitempty"`
	Status          Status        `json:"estado"`
	Notes           string        `json:"observaciones,omitempty"`
	Technician      string        `json:"tecnico_asignado,omitempty"`
	Room            string        `json:"sala,omitempty"`
	DurationMinutes int           `json:"duracion_minutos,omitempty"`
	Attended        *bool         `json:"asistio,omitempty"`
	CreatedAt       jsontime.Time `json:"fecha_creacion"`
	UpdatedAt       jsontime.Time `json:"fecha_actualizacion"`
}

// PatientFullName joins the patient's name fields.
func (a Appointment) PatientFullName() string {
	return strings.TrimSpace(a.PatientName + " " + a.PatientSurname)
}

// Soon reports whether the appointment starts within two hours of now.
func (a Appointment) Soon(now time.Time) bool {
	if a.At.IsZero() {
		return false
	}
	return !a.At.Before(now) && !a.At.After(now.Add(2*time.Hour))
}

// Ends is the appointment's end time.
func (a Appointment) Ends() time.Time {
	d := a.DurationMinutes
	if d == 0 {
		d = DefaultDuration
	}
	return a.At.Add(time.Duration(d) * time.Minute)
}

// CanConfirm is true while the appointment is still only scheduled.
func (a Appointment) CanConfirm() bool {
	return a.Status == StatusScheduled
}

// CanRecordAttendance mirrors the backend, which accepts attendance for
// scheduled or completed appointments only.
func (a Appointment) CanRecordAttendance() bool {
	return a.Status == StatusScheduled || a.Status == StatusCompleted
}

// CanCancel is false once the appointment is cancelled or completed.
func (a Appointment) CanCancel() bool {
	return a.Status != StatusCancelled && a.Status != StatusCompleted
}

// Input is the appointment form. Date and time are separate pickers that
// Payload merges into one timestamp.
type Input struct {
	PatientID       string `form:"paciente_id" validate:"notblank"`
	StudyID         string `form:"estudio_id"`
	Date            string `form:"fecha" validate:"required,datetime=2006-01-02"`
	Time            string `form:"hora" validate:"required,hhmm"`
	StudyType       string `form:"tipo_estudio" validate:"notblank"`
	AppointmentType string `form:"tipo_cita" validate:"notblank"`
	Status          string `form:"estado" validate:"required,oneof=programada confirmada en_proceso completada cancelada no_asistio"`
	Room            string `form:"sala"`
	Technician      string `form:"tecnico_asignado"`
	Duration        string `form:"duracion_minutos"`
	Notes           string `form:"observaciones"`
}

// Check covers the duration range, which arrives as text.
func (in Input) Check() form.FieldErrors {
	if strings.TrimSpace(in.Duration) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(in.Duration))
	if err != nil || n < MinDuration || n > MaxDuration {
		return form.FieldErrors{"duracion_minutos": "debe estar entre 15 y 180 minutos"}
	}
	return nil
}

// NewInput is the blank create form.
func NewInput() Input {
	return Input{
		Status:          string(StatusScheduled),
		AppointmentType: "Consulta General",
		Duration:        strconv.Itoa(DefaultDuration),
	}
}

// InputFrom fills the edit form from an existing record.
func InputFrom(a Appointment) Input {
	date, hhmm := form.SplitDateTime(a.At.Time, jsontime.Location())
	duration := a.DurationMinutes
	if duration == 0 {
		duration = DefaultDuration
	}
	status := string(a.Status)
	if st, ok := ParseStatus(status); ok {
		status = string(st)
	}
	return Input{
		PatientID:       a.PatientID,
		StudyID:         a.StudyID,
		Date:            date,
		Time:            hhmm,
		StudyType:       a.StudyType,
		AppointmentType: a.AppointmentType,
		Status:          status,
		Room:            a.Room,
		Technician:      a.Technician,
		Duration:        strconv.Itoa(duration),
		Notes:           a.Notes,
	}
}

// Payload is the create/update body.
type Payload struct {
	PatientID       string        `json:"paciente_id"`
	StudyID         string        `json:"estudio_id,omitempty"`
	At              jsontime.Time `json:"fecha_cita"`
	StudyType       string        `json:"tipo_estudio"`
	AppointmentType string        `json:"tipo_cita"`
	Status          Status        `json:"estado"`
	Room            string        `json:"sala,omitempty"`
	Technician      string        `json:"tecnico_asignado,omitempty"`
	DurationMinutes int           `json:"duracion_minutos"`
	Notes           string        `json:"observaciones,omitempty"`
}

// Payload converts a validated form.
func (in Input) Payload() (Payload, error) {
	at, err := form.MergeDateTime(in.Date, in.Time, jsontime.Location())
	if err != nil {
		return Payload{}, err
	}
	duration := DefaultDuration
	if n, err := strconv.Atoi(strings.TrimSpace(in.Duration)); err == nil {
		duration = n
	}
	return Payload{
		PatientID:       strings.TrimSpace(in.PatientID),
		StudyID:         strings.TrimSpace(in.StudyID),
		At:              jsontime.New(at),
		StudyType:       in.StudyType,
		AppointmentType: in.AppointmentType,
		Status:          Status(in.Status),
		Room:            in.Room,
		Technician:      strings.TrimSpace(in.Technician),
		DurationMinutes: duration,
		Notes:           strings.TrimSpace(in.Notes),
	}, nil
}
