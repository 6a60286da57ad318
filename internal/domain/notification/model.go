package notification

import (
	"encoding/json"
	"strings"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/pkg/jsontime"
)

// Notification kinds shown in the console.
var Types = []string{"Cita", "Estudio", "Informe", "Sistema", "Recordatorio"}

// Priority is low, medium or high. The backend's "normal" reads as medium.
type Priority string

const (
	PriorityLow    Priority = "baja"
	PriorityMedium Priority = "media"
	PriorityHigh   Priority = "alta"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority folds labels ("Alta") and the backend default onto the
// three priorities.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baja":
		return PriorityLow, true
	case "media", "normal":
		return PriorityMedium, true
	case "alta", "urgente":
		return PriorityHigh, true
	}
	return "", false
}

// NormalizePriority is ParsePriority for filters.
func NormalizePriority(s string) string {
	if p, ok := ParsePriority(s); ok {
		return string(p)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Baja"
	case PriorityMedium:
		return "Media"
	case PriorityHigh:
		return "Alta"
	}
	return string(p)
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if parsed, ok := ParsePriority(raw); ok {
		*p = parsed
		return nil
	}
	*p = Priority(raw)
	return nil
}

// Notification is a message addressed to a user or patient. Delivery
// fields are present on records the backend sends out by email or SMS.
type Notification struct {
	ID             string        `json:"id" validate:"required"`
	Type           string        `json:"tipo"`
	Title          string        `json:"titulo,omitempty"`
	Message        string        `json:"mensaje"`
	Date           jsontime.Time `json:"fecha"`
	Read           bool          `json:"leida"`
	Priority       Priority      `json:"prioridad"`
	Recipient      string        `json:"destinatario,omitempty"`
	ActionRequired string        `json:"accion_requerida,omitempty"`
	PatientID      string        `json:"paciente_id,omitempty"`
	StudyID        string        `json:"estudio_id,omitempty"`
	Sent           bool          `json:"enviada"`
	SendAttempts   int           `json:"intentos_envio"`
	CreatedAt      jsontime.Time `json:"fecha_creacion"`
	SentAt         jsontime.Time `json:"fecha_envio"`
}

// At is when the notification was raised.
func (n Notification) At() jsontime.Time {
	if !n.Date.IsZero() {
		return n.Date
	}
	return n.CreatedAt
}

// Heading is the title, or the type when the record has none.
func (n Notification) Heading() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Type
}

// Input is the new-notification form.
type Input struct {
	PatientID string `form:"paciente_id"`
	Recipient string `form:"destinatario"`
	Type      string `form:"tipo" validate:"required,oneof=Cita Estudio Informe Sistema Recordatorio"`
	Title     string `form:"titulo" validate:"notblank,max=120"`
	Message   string `form:"mensaje" validate:"notblank"`
	Priority  string `form:"prioridad" validate:"required,oneof=baja media alta"`
	StudyID   string `form:"estudio_id"`
}

// Check requires a patient or a free-text recipient.
func (in Input) Check() form.FieldErrors {
	if strings.TrimSpace(in.PatientID) == "" && strings.TrimSpace(in.Recipient) == "" {
		return form.FieldErrors{"destinatario": "indique un paciente o un destinatario"}
	}
	return nil
}

func NewInput() Input {
	return Input{Type: "Sistema", Priority: string(PriorityMedium)}
}

func InputFrom(n Notification) Input {
	return Input{
		PatientID: n.PatientID,
		Recipient: n.Recipient,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  string(n.Priority),
		StudyID:   n.StudyID,
	}
}

// Payload is the create/update body.
type Payload struct {
	PatientID string   `json:"paciente_id,omitempty"`
	Recipient string   `json:"destinatario,omitempty"`
	Type      string   `json:"tipo"`
	Title     string   `json:"titulo"`
	Message   string   `json:"mensaje"`
	Priority  Priority `json:"prioridad"`
	StudyID   string   `json:"estudio_id,omitempty"`
}

func (in Input) Payload() Payload {
	return Payload{
		PatientID: strings.TrimSpace(in.PatientID),
		Recipient: strings.TrimSpace(in.Recipient),
		Type:      in.Type,
		Title:     strings.TrimSpace(in.Title),
		Message:   strings.TrimSpace(in.Message),
		Priority:  Priority(in.Priority),
		StudyID:   strings.TrimSpace(in.StudyID),
	}
}
