package patient

import (
	"strings"
	"time"

	"github.com/ehr/radconsole/pkg/jsontime"
)

// Document types and genders offered by the patient form.
var (
	DocumentTypes = []string{"CC", "CE", "TI", "PP", "RC", "NIT"}
	Genders       = []string{"Masculino", "Femenino", "Otro", "No especificado"}
)

// Patient is a patient record as the backend returns it.
type Patient struct {
	ID             string        `json:"id" validate:"required"`
	Name           string        `json:"nombre"`
	Surname        string        `json:"apellidos,omitempty"`
	Email          string        `json:"email"`
	Phone          string        `json:"telefono"`
	Address        string        `json:"direccion,omitempty"`
	BirthDate      jsontime.Time `json:"fecha_nacimiento"`
	DocumentType   string        `json:"tipo_identificacion,omitempty"`
	DocumentNumber string        `json:"identificacion"`
	Gender         string        `json:"genero,omitempty"`
	CreatedAt      jsontime.Time `json:"fecha_creacion"`
	UpdatedAt      jsontime.Time `json:"fecha_actualizacion"`
}

// FullName joins name and surname.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

// Age in whole years at now, 0 when the birth date is unknown.
func (p Patient) Age(now time.Time) int {
	if p.BirthDate.IsZero() {
		return 0
	}
	b := p.BirthDate.In(now.Location())
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Input is the patient form as submitted.
type Input struct {
	Name           string `form:"nombre" validate:"notblank"`
	Surname        string `form:"apellidos"`
	Email          string `form:"email" validate:"required,email"`
	Phone          string `form:"telefono" validate:"notblank"`
	Address        string `form:"direccion" validate:"notblank"`
	BirthDate      string `form:"fecha_nacimiento" validate:"required,datetime=2006-01-02"`
	DocumentType   string `form:"tipo_documento" validate:"required,oneof=CC CE TI PP RC NIT"`
	DocumentNumber string `form:"numero_documento" validate:"notblank"`
	Gender         string `form:"genero" validate:"required,oneof=Masculino Femenino Otro 'No especificado'"`
}

// NewInput is the blank create form.
func NewInput() Input {
	return Input{DocumentType: "CC", Gender: "Masculino"}
}

// InputFrom fills the edit form from an existing record.
func InputFrom(p Patient) Input {
	return Input{
		Name:           p.Name,
		Surname:        p.Surname,
		Email:          p.Email,
		Phone:          p.Phone,
		Address:        p.Address,
		BirthDate:      p.BirthDate.Date(),
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		Gender:         p.Gender,
	}
}

// Payload is the create/update body the backend expects.
type Payload struct {
	Name           string        `json:"nombre"`
	Surname        string        `json:"apellidos,omitempty"`
	Email          string        `json:"email"`
	Phone          string        `json:"telefono"`
	Address        string        `json:"direccion,omitempty"`
	BirthDate      jsontime.Time `json:"fecha_nacimiento"`
	DocumentType   string        `json:"tipo_identificacion"`
	DocumentNumber string        `json:"identificacion"`
	Gender         string        `json:"genero"`
}

// Payload converts a validated form. The birth date is midnight local time.
func (in Input) Payload() Payload {
	birth, _ := time.ParseInLocation(jsontime.DateLayout, strings.TrimSpace(in.BirthDate), jsontime.Location())
	return Payload{
		Name:           strings.TrimSpace(in.Name),
		Surname:        strings.TrimSpace(in.Surname),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		BirthDate:      jsontime.New(birth),
		DocumentType:   in.DocumentType,
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		Gender:         in.Gender,
	}
}
