package patient

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/export"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

const listPath = "/pacientes"

type Handler struct {
	svc   *Service
	shell *shell.Shell
	gate  *form.Gate
}

func NewHandler(svc *Service, sh *shell.Shell, gate *form.Gate) *Handler {
	return &Handler{svc: svc, shell: sh, gate: gate}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(listPath, auth.RequireRoles(session.Staff...))
	grp.GET("", h.List)
	grp.GET("/export.csv", h.Export)
	grp.GET("/nuevo", h.New)
	grp.POST("", h.Create)
	grp.GET("/:id/editar", h.Edit)
	grp.POST("/:id", h.Update)
	grp.POST("/:id/eliminar", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	q := QueryFrom(c)
	v, err := h.svc.List(c.Request().Context(), q)
	if errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}

	page := shell.ListPage{
		Heading:   "Pacientes",
		NewURL:    listPath + "/nuevo",
		NewLabel:  "Nuevo paciente",
		ExportURL: listPath + "/export.csv?" + c.QueryString(),
		FilterURL: listPath,
		Filters: []form.Field{
			{Name: "search", Label: "Buscar", Type: "search", Value: q.Search, Placeholder: "Nombre, documento o email"},
		},
		Table: shell.Table{
			Columns: []string{"Nombre", "Documento", "Email", "Teléfono", "Nacimiento", "Género"},
			Empty:   "No se encontraron pacientes.",
		},
	}
	if err != nil {
		page.LoadError("Error al cargar pacientes", err, v.Stale())
	}
	shell.Fill(c, &page, v.Items(), h.row)
	return h.shell.Render(c, http.StatusOK, "list", "Pacientes", page)
}

func (h *Handler) row(p Patient) shell.Row {
	id := url.PathEscape(p.ID)
	return shell.Row{
		ID: p.ID,
		Cells: []shell.Cell{
			{Text: p.FullName()},
			{Text: p.DocumentType + " " + p.DocumentNumber},
			{Text: p.Email},
			{Text: p.Phone},
			{Text: p.BirthDate.DisplayDate()},
			{Text: p.Gender},
		},
		Actions: []shell.Action{
			shell.GetAction("Editar", listPath+"/"+id+"/editar"),
			shell.PostAction("Eliminar", listPath+"/"+id+"/eliminar",
				"¿Está seguro que desea eliminar al paciente "+p.Name+"?"),
		},
	}
}

func (h *Handler) Export(c echo.Context) error {
	v, err := h.svc.List(c.Request().Context(), QueryFrom(c))
	if err != nil {
		return shell.Fail(c, listPath, "Error al exportar pacientes", err)
	}
	header := []string{"ID", "Nombre", "Apellidos", "Tipo documento", "Documento", "Email", "Teléfono", "Dirección", "Fecha nacimiento", "Género"}
	var rows [][]string
	for _, p := range v.Items() {
		rows = append(rows, []string{
			p.ID, p.Name, p.Surname, p.DocumentType, p.DocumentNumber,
			p.Email, p.Phone, p.Address, p.BirthDate.Date(), p.Gender,
		})
	}
	return export.SendCSV(c, "pacientes", header, rows)
}

func (h *Handler) New(c echo.Context) error {
	return h.renderForm(c, http.StatusOK, "", NewInput(), nil, "")
}

func (h *Handler) Edit(c echo.Context) error {
	id := c.Param("id")
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return shell.Fail(c, listPath, "Error al cargar el paciente", err)
	}
	return h.renderForm(c, http.StatusOK, id, InputFrom(*p), nil, "")
}

func (h *Handler) Create(c echo.Context) error {
	return h.save(c, "")
}

func (h *Handler) Update(c echo.Context) error {
	return h.save(c, c.Param("id"))
}

func (h *Handler) save(c echo.Context, id string) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	key := auth.SessionID(c) + ":paciente:" + id
	dlg := form.Open[Input, *Patient](h.svc, id, in, form.WithGate(h.gate, key))

	_, err := dlg.Save(c.Request().Context())
	var fe form.FieldErrors
	switch {
	case err == nil:
		if dlg.Mode() == form.Edit {
			shell.Success(c, "Paciente actualizado exitosamente")
		} else {
			shell.Success(c, "Paciente agregado exitosamente")
		}
		return shell.SeeOther(c, listPath)
	case errors.Is(err, form.ErrSaveInFlight):
		shell.AddFlash(c, shell.FlashInfo, "El paciente ya se está guardando.")
		return shell.SeeOther(c, listPath)
	case errors.As(err, &fe):
		return h.renderForm(c, http.StatusUnprocessableEntity, id, in, fe, "")
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	default:
		return h.renderForm(c, http.StatusBadGateway, id, in, nil, "Error al guardar paciente: "+gateway.Detail(err))
	}
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al eliminar paciente", err)
	}
	shell.Success(c, "Paciente eliminado exitosamente")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) renderForm(c echo.Context, status int, id string, in Input, errs form.FieldErrors, msg string) error {
	v := FormView(id, in)
	v.Error = msg
	if rest := v.Annotate(errs); len(rest) > 0 && v.Error == "" {
		v.Error = rest[0]
	}
	return h.shell.Render(c, status, "form", v.Title, v)
}

// FormView lays out the patient dialog.
func FormView(id string, in Input) form.View {
	v := form.View{
		Title:     "Nuevo Paciente",
		Action:    listPath,
		CancelURL: listPath,
		Mode:      form.Create,
	}
	if id != "" {
		v.Title = "Editar Paciente"
		v.Action = listPath + "/" + url.PathEscape(id)
		v.Mode = form.Edit
		v.SubmitLabel = "Actualizar"
	}
	v.Fields = []form.Field{
		{Name: "nombre", Label: "Nombre", Type: "text", Value: in.Name, Required: true},
		{Name: "apellidos", Label: "Apellidos", Type: "text", Value: in.Surname},
		{Name: "tipo_documento", Label: "Tipo de documento", Type: "select", Value: in.DocumentType, Choices: form.Choices(DocumentTypes...), Required: true},
		{Name: "numero_documento", Label: "Número de documento", Type: "text", Value: in.DocumentNumber, Required: true},
		{Name: "email", Label: "Email", Type: "email", Value: in.Email, Required: true},
		{Name: "telefono", Label: "Teléfono", Type: "tel", Value: in.Phone, Required: true},
		{Name: "fecha_nacimiento", Label: "Fecha de nacimiento", Type: "date", Value: in.BirthDate, Required: true},
		{Name: "genero", Label: "Género", Type: "select", Value: in.Gender, Choices: form.Choices(Genders...), Required: true},
		{Name: "direccion", Label: "Dirección", Type: "text", Value: in.Address, Required: true, Wide: true},
	}
	return v
}
