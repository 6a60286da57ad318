package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

const usersAPIPath = "api/auth/users"

// UserLister reads the backend's account directory. Admin only.
type UserLister interface {
	Users(ctx context.Context) ([]session.User, error)
}

type apiUsers struct {
	gw *gateway.Client
}

// NewAPIUsers returns a UserLister backed by the clinical REST API.
func NewAPIUsers(gw *gateway.Client) UserLister {
	return &apiUsers{gw: gw}
}

func (r *apiUsers) Users(ctx context.Context) ([]session.User, error) {
	var out []session.User
	if err := r.gw.Get(ctx, usersAPIPath, nil, &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// UserQuery is the directory's filter bar.
type UserQuery struct {
	Search string
	Role   string
	Active string
}

func userQueryFrom(c echo.Context) UserQuery {
	return UserQuery{Search: c.QueryParam("search"), Role: c.QueryParam("role"), Active: c.QueryParam("activo")}
}

func (q UserQuery) filter() listview.Filter[session.User] {
	return listview.Filter[session.User]{
		listview.Contains(q.Search, session.User.FullName, func(u session.User) string { return u.Email }),
		listview.Equals(q.Role, func(u session.User) string { return string(u.Role) }),
		listview.Bool(listview.ParseBool(q.Active), func(u session.User) bool { return u.Active }),
	}
}

func (h *Handler) Users(c echo.Context) error {
	q := userQueryFrom(c)
	page := shell.ListPage{
		Heading:   "Usuarios",
		NewURL:    usersPath + "/nuevo",
		NewLabel:  "Nuevo usuario",
		FilterURL: usersPath,
		Filters: []form.Field{
			{Name: "search", Label: "Buscar", Type: "search", Value: q.Search, Placeholder: "Nombre o email"},
			{Name: "role", Label: "Rol", Type: "select", Value: q.Role, Choices: roleFilterChoices()},
			{Name: "activo", Label: "Estado", Type: "select", Value: q.Active, Choices: []form.Choice{
				{Value: "", Label: "Todos"}, {Value: "true", Label: "Activos"}, {Value: "false", Label: "Pendientes"},
			}},
		},
		Table: shell.Table{
			Columns: []string{"Nombre", "Email", "Rol", "Estado"},
			Empty:   "No se encontraron usuarios.",
		},
	}
	users, err := h.users.Users(c.Request().Context())
	if errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}
	if err != nil {
		page.LoadError("Error al cargar usuarios", err, false)
	}
	users = q.filter().Apply(users)
	listview.SortByText(users, false, session.User.FullName)
	shell.Fill(c, &page, users, userRow)
	return h.shell.Render(c, http.StatusOK, "list", "Usuarios", page)
}

func roleFilterChoices() []form.Choice {
	out := []form.Choice{{Value: "", Label: "Todos"}}
	for _, r := range append(append([]session.Role{}, session.Staff...), session.RolePatient) {
		out = append(out, form.Choice{Value: string(r), Label: r.Label()})
	}
	return out
}

func userRow(u session.User) shell.Row {
	status := "activo"
	if !u.Active {
		status = "pendiente"
	}
	return shell.Row{
		ID: u.ID,
		Cells: []shell.Cell{
			{Text: u.FullName()},
			{Text: u.Email},
			{Text: u.Role.Label()},
			{Text: status, Badge: status},
		},
		Muted: !u.Active,
	}
}
