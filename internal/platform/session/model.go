package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is the canonical console role. The backend spells roles in Spanish;
// ParseRole is the only place the two vocabularies meet.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleRadiologist Role = "radiologist"
	RoleSecretary   Role = "secretary"
	RoleTechnician  Role = "technician"
	RolePatient     Role = "patient"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleAdmin, RoleRadiologist, RoleSecretary, RoleTechnician, RolePatient}

// Role sets used by routes and navigation.
var (
	Staff        = []Role{RoleAdmin, RoleRadiologist, RoleSecretary, RoleTechnician}
	MedicalStaff = []Role{RoleAdmin, RoleRadiologist}
	FrontDesk    = []Role{RoleAdmin, RoleSecretary}
	Imaging      = []Role{RoleAdmin, RoleRadiologist, RoleTechnician}
)

var backendRoles = map[Role]string{
	RoleAdmin:       "admin",
	RoleRadiologist: "radiologo",
	RoleSecretary:   "secretario",
	RoleTechnician:  "tecnico",
	RolePatient:     "paciente",
}

var roleLabels = map[Role]string{
	RoleAdmin:       "Administrador",
	RoleRadiologist: "Radiólogo",
	RoleSecretary:   "Secretario",
	RoleTechnician:  "Técnico",
	RolePatient:     "Paciente",
}

// ParseRole accepts either the canonical or the backend spelling.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, wire := range backendRoles {
		if s == string(r) || s == wire {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Wire returns the backend spelling.
func (r Role) Wire() string { return backendRoles[r] }

// Label returns the display name.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is the identity returned by the backend's auth endpoints.
type User struct {
	ID        string `json:"id" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Name      string `json:"nombre"`
	Surname   string `json:"apellidos,omitempty"`
	Role      Role   `json:"role" validate:"required"`
	Active    bool   `json:"is_active"`
	PatientID string `json:"paciente_id,omitempty"`
}

// FullName joins name and surname.
func (u User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// AuthResponse is the backend's token payload.
type AuthResponse struct {
	AccessToken string `json:"access_token" validate:"required"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user" validate:"required"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Registration is the body for both registration flows.
type Registration struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
	Name     string `json:"nombre" form:"nombre" validate:"notblank"`
	Surname  string `json:"apellidos,omitempty" form:"apellidos"`
	Role     string `json:"role" form:"role"`
}

// Session is the token and user pair. They are always stored and replaced
// together.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the token has passed its expiry. Sessions without
// a known expiry never expire locally; the backend's 401 ends them.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HasRole reports whether the session user holds one of roles.
func (s *Session) HasRole(roles ...Role) bool {
	if s == nil {
		return false
	}
	return slices.Contains(roles, s.User.Role)
}

func (s *Session) IsAdmin() bool        { return s.HasRole(RoleAdmin) }
func (s *Session) IsRadiologist() bool  { return s.HasRole(RoleRadiologist) }
func (s *Session) IsSecretary() bool    { return s.HasRole(RoleSecretary) }
func (s *Session) IsTechnician() bool   { return s.HasRole(RoleTechnician) }
func (s *Session) IsPatient() bool      { return s.HasRole(RolePatient) }
func (s *Session) IsMedicalStaff() bool { return s.HasRole(MedicalStaff...) }

// IsStaff covers every non-patient role.
func (s *Session) IsStaff() bool { return s.HasRole(Staff...) }

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
