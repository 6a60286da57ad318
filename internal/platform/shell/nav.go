package shell

import (
	"strings"

	"github.com/ehr/radconsole/internal/platform/session"
)

// NavItem is one sidebar entry. Roles empty means every signed-in user.
// Hiding an entry is presentation only; the route guard is what refuses
// access.
type NavItem struct {
	Label string
	Path  string
	Icon  string
	Roles []session.Role
}

// DefaultNav is the console's sidebar in display order.
var DefaultNav = []NavItem{
	{Label: "Inicio", Path: "/", Icon: "home"},
	{Label: "Pacientes", Path: "/pacientes", Icon: "people", Roles: session.Staff},
	{Label: "Citas", Path: "/citas", Icon: "event", Roles: session.FrontDesk},
	{Label: "Estudios", Path: "/estudios", Icon: "medical_services", Roles: session.Staff},
	{Label: "DICOM", Path: "/dicom", Icon: "image", Roles: session.Imaging},
	{Label: "Informes", Path: "/informes", Icon: "description", Roles: session.MedicalStaff},
	{Label: "Notificaciones", Path: "/notificaciones", Icon: "notifications"},
	{Label: "Usuarios", Path: "/usuarios", Icon: "manage_accounts", Roles: []session.Role{session.RoleAdmin}},
}

// Visible filters items down to what sess may see. Nil sess sees nothing.
func Visible(items []NavItem, sess *session.Session) []NavItem {
	if sess == nil {
		return nil
	}
	out := make([]NavItem, 0, len(items))
	for _, it := range items {
		if len(it.Roles) == 0 || sess.HasRole(it.Roles...) {
			out = append(out, it)
		}
	}
	return out
}

// Active reports whether path belongs to the nav entry at itemPath.
func Active(itemPath, path string) bool {
	if itemPath == "/" {
		return path == "/"
	}
	return path == itemPath || strings.HasPrefix(path, itemPath+"/")
}
