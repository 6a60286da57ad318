package study

import (
	"context"
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

const listPath = "/estudios"

// PatientPicker supplies the patient select.
type PatientPicker interface {
	Choices(ctx context.Context) ([]form.Choice, error)
}

type Handler struct {
	svc      *Service
	patients PatientPicker
	shell    *shell.Shell
	gate     *form.Gate
}

func NewHandler(svc *Service, patients PatientPicker, sh *shell.Shell, gate *form.Gate) *Handler {
	return &Handler{svc: svc, patients: patients, shell: sh, gate: gate}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(listPath, auth.RequireRoles(session.Staff...))
	grp.GET("", h.List)
	grp.GET("/export.csv", h.Export)
	grp.GET("/nuevo", h.New)
	grp.POST("", h.Create)
	grp.GET("/:id/editar", h.Edit)
	grp.POST("/:id", h.Update)
	grp.POST("/:id/estado", h.SetStatus)
	grp.POST("/:id/eliminar", h.Delete, auth.RequireRoles(session.MedicalStaff...))
}

func statusChoices() []form.Choice {
	out := []form.Choice{{Value: "", Label: "Todos"}}
	for _, s := range Statuses {
		out = append(out, form.Choice{Value: string(s), Label: s.Label()})
	}
	return out
}

func withAll(label string, values ...string) []form.Choice {
	return append([]form.Choice{{Value: "", Label: label}}, form.Choices(values...)...)
}

func (h *Handler) List(c echo.Context) error {
	q := QueryFrom(c)
	v, err := h.svc.List(c.Request().Context(), q)
	if errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}

	page := shell.ListPage{
		Heading:   "Estudios",
		NewURL:    listPath + "/nuevo",
		NewLabel:  "Nuevo estudio",
		ExportURL: listPath + "/export.csv?" + c.QueryString(),
		FilterURL: listPath,
		Filters: []form.Field{
			{Name: "search", Label: "Buscar", Type: "search", Value: q.Search, Placeholder: "Paciente, tipo o indicaciones"},
			{Name: "estado", Label: "Estado", Type: "select", Value: NormalizeStatus(q.Status), Choices: statusChoices()},
			{Name: "modalidad", Label: "Modalidad", Type: "select", Value: q.Modality, Choices: withAll("Todas", Modalities...)},
			{Name: "tipo_estudio", Label: "Tipo", Type: "select", Value: q.StudyType, Choices: withAll("Todos", StudyTypes...)},
			{Name: "urgente", Label: "Urgencia", Type: "select", Value: q.Urgent, Choices: []form.Choice{
				{Value: "", Label: "Todos"}, {Value: "true", Label: "Urgentes"}, {Value: "false", Label: "No urgentes"},
			}},
			{Name: "fecha", Label: "Fecha de realización", Type: "date", Value: q.Date},
		},
		Table: shell.Table{
			Columns: []string{"Paciente", "Tipo", "Modalidad", "Parte del cuerpo", "Realización", "Prioridad", "Estado"},
			Empty:   "No se encontraron estudios.",
		},
	}
	if q.PatientID != "" {
		page.Filters = append(page.Filters, form.Field{Name: "paciente_id", Type: "hidden", Value: q.PatientID})
	}
	if err != nil {
		page.LoadError("Error al cargar estudios", err, v.Stale())
	}
	shell.Fill(c, &page, v.Items(), h.row)
	return h.shell.Render(c, http.StatusOK, "list", "Estudios", page)
}

func (h *Handler) row(s Study) shell.Row {
	id := url.PathEscape(s.ID)
	base := listPath + "/" + id
	priority := s.Priority
	if s.IsUrgent() {
		priority = "urgente"
	}
	row := shell.Row{
		ID: s.ID,
		Cells: []shell.Cell{
			{Text: s.PatientFullName(), Title: s.PatientDocument},
			{Text: s.StudyType},
			{Text: s.Modality, Title: ModalityName(s.Modality)},
			{Text: s.BodyPart},
			{Text: s.PerformedAt.DisplayDate()},
			{Text: priority, Badge: priority},
			{Text: s.Status.Label(), Badge: string(s.Status)},
		},
		Actions: []shell.Action{
			shell.GetAction("Editar", base+"/editar"),
			shell.GetAction("DICOM", "/dicom/estudios/"+id),
		},
		Muted: s.Status == StatusCancelled,
	}
	switch s.Status {
	case StatusPending:
		row.Actions = append(row.Actions,
			statusAction("Completar", base, StatusCompleted, ""),
			statusAction("Cancelar", base, StatusCancelled, "¿Cancelar este estudio?"),
		)
	default:
		row.Actions = append(row.Actions, statusAction("Reabrir", base, StatusPending, ""))
	}
	row.Actions = append(row.Actions, shell.PostAction("Eliminar", base+"/eliminar",
		"¿Está seguro que desea eliminar este estudio?"))
	return row
}

func statusAction(label, base string, to Status, confirm string) shell.Action {
	return shell.PostAction(label, base+"/estado?estado="+string(to), confirm)
}

func (h *Handler) Export(c echo.Context) error {
	v, err := h.svc.List(c.Request().Context(), QueryFrom(c))
	if err != nil {
		return shell.Fail(c, listPath, "Error al exportar estudios", err)
	}
	header := []string{"ID", "Paciente", "Documento", "Tipo", "Modalidad", "Parte del cuerpo", "Médico", "Prioridad", "Estado", "Urgente", "Contraste", "Solicitud", "Realización"}
	var rows [][]string
	for _, s := range v.Items() {
		rows = append(rows, []string{
			s.ID, s.PatientFullName(), s.PatientDocument, s.StudyType, s.Modality, s.BodyPart,
			s.Physician, s.Priority, s.Status.Label(), yesNo(s.IsUrgent()), yesNo(s.Contrast),
			s.RequestedAt.Display(), s.PerformedAt.DisplayDate(),
		})
	}
	return export.SendCSV(c, "estudios", header, rows)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

func (h *Handler) New(c echo.Context) error {
	in := NewInput()
	in.PatientID = c.QueryParam("paciente_id")
	return h.renderForm(c, http.StatusOK, "", in, nil, "")
}

func (h *Handler) Edit(c echo.Context) error {
	id := c.Param("id")
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return shell.Fail(c, listPath, "Error al cargar el estudio", err)
	}
	return h.renderForm(c, http.StatusOK, id, InputFrom(*s), nil, "")
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
	key := auth.SessionID(c) + ":estudio:" + id
	dlg := form.Open[Input, *Study](h.svc, id, in, form.WithGate(h.gate, key))

	_, err := dlg.Save(c.Request().Context())
	var fe form.FieldErrors
	switch {
	case err == nil:
		if dlg.Mode() == form.Edit {
			shell.Success(c, "Estudio actualizado exitosamente")
		} else {
			shell.Success(c, "Estudio creado exitosamente")
		}
		return shell.SeeOther(c, listPath)
	case errors.Is(err, form.ErrSaveInFlight):
		shell.AddFlash(c, shell.FlashInfo, "El estudio ya se está guardando.")
		return shell.SeeOther(c, listPath)
	case errors.As(err, &fe):
		return h.renderForm(c, http.StatusUnprocessableEntity, id, in, fe, "")
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	default:
		return h.renderForm(c, http.StatusBadGateway, id, in, nil, "Error al guardar estudio: "+gateway.Detail(err))
	}
}

func (h *Handler) SetStatus(c echo.Context) error {
	status := c.QueryParam("estado")
	if status == "" {
		status = c.FormValue("estado")
	}
	st, err := h.svc.SetStatus(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return shell.Fail(c, listPath, "Error al actualizar el estado", err)
	}
	shell.Success(c, "Estado actualizado a "+st.Status.Label())
	return shell.SeeOther(c, listPath)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al eliminar estudio", err)
	}
	shell.Success(c, "Estudio eliminado exitosamente")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) renderForm(c echo.Context, status int, id string, in Input, errs form.FieldErrors, msg string) error {
	var patients []form.Choice
	if h.patients != nil {
		var err error
		patients, err = h.patients.Choices(c.Request().Context())
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		if err != nil && msg == "" {
			msg = "Error al cargar pacientes: " + gateway.Detail(err)
		}
	}
	v := FormView(id, in, patients)
	v.Error = msg
	if rest := v.Annotate(errs); len(rest) > 0 && v.Error == "" {
		v.Error = rest[0]
	}
	return h.shell.Render(c, status, "form", v.Title, v)
}

// FormView lays out the study dialog.
func FormView(id string, in Input, patients []form.Choice) form.View {
	v := form.View{
		Title:     "Nuevo Estudio",
		Action:    listPath,
		CancelURL: listPath,
		Mode:      form.Create,
	}
	if id != "" {
		v.Title = "Editar Estudio"
		v.Action = listPath + "/" + url.PathEscape(id)
		v.Mode = form.Edit
	}
	modalities := make([]form.Choice, len(Modalities))
	for i, m := range Modalities {
		modalities[i] = form.Choice{Value: m, Label: m + " - " + ModalityName(m)}
	}
	statuses := statusChoices()[1:]
	v.Fields = []form.Field{
		{Name: "paciente_id", Label: "Paciente", Type: "select", Value: in.PatientID,
			Choices: append([]form.Choice{{Value: "", Label: "Seleccione un paciente"}}, patients...), Required: true, Wide: true},
		{Name: "tipo_estudio", Label: "Tipo de estudio", Type: "select", Value: in.StudyType, Choices: withAll("Seleccione", StudyTypes...), Required: true},
		{Name: "modalidad", Label: "Modalidad", Type: "select", Value: in.Modality, Choices: append([]form.Choice{{Value: "", Label: "Seleccione"}}, modalities...), Required: true},
		{Name: "parte_cuerpo", Label: "Parte del cuerpo", Type: "select", Value: in.BodyPart, Choices: withAll("Seleccione", BodyParts...), Required: true},
		{Name: "fecha_realizacion", Label: "Fecha de realización", Type: "date", Value: in.PerformedOn, Required: true},
		{Name: "estado", Label: "Estado", Type: "select", Value: in.Status, Choices: statuses, Required: true},
		{Name: "prioridad", Label: "Prioridad", Type: "select", Value: in.Priority, Choices: form.Choices(Priorities...)},
		{Name: "medico_solicitante", Label: "Médico referente", Type: "text", Value: in.Physician, Placeholder: "Dr(a). Nombre del médico"},
		{Name: "sala", Label: "Sala", Type: "text", Value: in.Room},
		{Name: "tecnico_asignado", Label: "Técnico asignado", Type: "text", Value: in.Technician},
		{Name: "contraste", Label: "Requiere contraste", Type: "checkbox", Checked: in.Contrast},
		{Name: "urgente", Label: "Estudio urgente", Type: "checkbox", Checked: in.Urgent},
		{Name: "indicaciones", Label: "Indicaciones", Type: "textarea", Value: in.Instructions, Wide: true},
		{Name: "observaciones", Label: "Observaciones", Type: "textarea", Value: in.Notes, Wide: true},
	}
	return v
}
