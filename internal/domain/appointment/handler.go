package appointment

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/export"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

const listPath = "/citas"

// PatientPicker supplies the patient select.
type PatientPicker interface {
	Choices(ctx context.Context) ([]form.Choice, error)
}

type Handler struct {
	svc      *Service
	patients PatientPicker
	shell    *shell.Shell
	gate     *form.Gate
	now      func() time.Time
}

func NewHandler(svc *Service, patients PatientPicker, sh *shell.Shell, gate *form.Gate) *Handler {
	return &Handler{svc: svc, patients: patients, shell: sh, gate: gate, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(listPath, auth.RequireRoles(session.FrontDesk...))
	grp.GET("", h.List)
	grp.GET("/export.csv", h.Export)
	grp.GET("/nueva", h.New)
	grp.POST("", h.Create)
	grp.GET("/:id/editar", h.Edit)
	grp.POST("/:id", h.Update)
	grp.POST("/:id/confirmar", h.Confirm)
	grp.POST("/:id/asistencia", h.Attendance)
	grp.POST("/:id/cancelar", h.Cancel)
}

func statusChoices(all bool) []form.Choice {
	var out []form.Choice
	if all {
		out = append(out, form.Choice{Value: "", Label: "Todos"})
	}
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
		Heading:   "Citas",
		NewURL:    listPath + "/nueva",
		NewLabel:  "Nueva cita",
		ExportURL: listPath + "/export.csv?" + c.QueryString(),
		FilterURL: listPath,
		Filters: []form.Field{
			{Name: "search", Label: "Buscar", Type: "search", Value: q.Search, Placeholder: "Paciente, estudio u observaciones"},
			{Name: "estado", Label: "Estado", Type: "select", Value: NormalizeStatus(q.Status), Choices: statusChoices(true)},
			{Name: "tipo_estudio", Label: "Tipo de estudio", Type: "select", Value: q.StudyType, Choices: withAll("Todos", StudyTypes...)},
			{Name: "tipo_cita", Label: "Tipo de cita", Type: "select", Value: q.AppointmentType, Choices: withAll("Todos", AppointmentTypes...)},
			{Name: "fecha", Label: "Fecha", Type: "date", Value: q.Date},
		},
		Table: shell.Table{
			Columns: []string{"Paciente", "Fecha", "Hora", "Estudio", "Tipo de cita", "Sala", "Duración", "Estado"},
			Empty:   "No se encontraron citas.",
		},
	}
	if err != nil {
		page.LoadError("Error al cargar citas", err, v.Stale())
	}
	now := h.now()
	shell.Fill(c, &page, v.Items(), func(a Appointment) shell.Row { return h.row(a, now) })
	return h.shell.Render(c, http.StatusOK, "list", "Citas", page)
}

func (h *Handler) row(a Appointment, now time.Time) shell.Row {
	base := listPath + "/" + url.PathEscape(a.ID)
	duration := a.DurationMinutes
	if duration == 0 {
		duration = DefaultDuration
	}
	when := shell.Cell{Text: a.At.DisplayDate()}
	if a.Soon(now) {
		when.Badge = "urgente"
		when.Title = "Comienza en menos de dos horas"
	}
	row := shell.Row{
		ID: a.ID,
		Cells: []shell.Cell{
			{Text: a.PatientFullName()},
			when,
			{Text: a.At.Clock()},
			{Text: a.StudyType},
			{Text: a.AppointmentType},
			{Text: a.Room},
			{Text: strconv.Itoa(duration) + " min"},
			{Text: a.Status.Label(), Badge: string(a.Status)},
		},
		Actions: []shell.Action{shell.GetAction("Editar", base+"/editar")},
		Muted:   a.Status == StatusCancelled,
	}
	if a.CanConfirm() {
		row.Actions = append(row.Actions, shell.PostAction("Confirmar", base+"/confirmar",
			"¿Confirmar la cita de "+a.PatientName+"?"))
	}
	if a.CanRecordAttendance() && a.Attended == nil {
		row.Actions = append(row.Actions,
			shell.PostAction("Asistió", base+"/asistencia?asistio=true", ""),
			shell.PostAction("No asistió", base+"/asistencia?asistio=false", "¿Marcar la cita como no asistida?"),
		)
	}
	if a.CanCancel() {
		row.Actions = append(row.Actions, shell.PostAction("Cancelar", base+"/cancelar",
			"¿Está seguro que desea cancelar la cita de "+a.PatientName+"?"))
	}
	return row
}

func (h *Handler) Export(c echo.Context) error {
	v, err := h.svc.List(c.Request().Context(), QueryFrom(c))
	if err != nil {
		return shell.Fail(c, listPath, "Error al exportar citas", err)
	}
	header := []string{"ID", "Paciente", "Fecha", "Hora", "Tipo de estudio", "Tipo de cita", "Estado", "Sala", "Técnico", "Duración (min)", "Asistió", "Observaciones"}
	var rows [][]string
	for _, a := range v.Items() {
		attended := ""
		if a.Attended != nil {
			attended = "No"
			if *a.Attended {
				attended = "Sí"
			}
		}
		rows = append(rows, []string{
			a.ID, a.PatientFullName(), a.At.Date(), a.At.Clock(), a.StudyType, a.AppointmentType,
			a.Status.Label(), a.Room, a.Technician, strconv.Itoa(a.DurationMinutes), attended, a.Notes,
		})
	}
	return export.SendCSV(c, "citas", header, rows)
}

func (h *Handler) New(c echo.Context) error {
	in := NewInput()
	in.PatientID = c.QueryParam("paciente_id")
	in.StudyID = c.QueryParam("estudio_id")
	if d := c.QueryParam("fecha"); d != "" {
		in.Date = d
	}
	return h.renderForm(c, http.StatusOK, "", in, nil, "")
}

func (h *Handler) Edit(c echo.Context) error {
	id := c.Param("id")
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return shell.Fail(c, listPath, "Error al cargar la cita", err)
	}
	return h.renderForm(c, http.StatusOK, id, InputFrom(*a), nil, "")
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
	key := auth.SessionID(c) + ":cita:" + id
	dlg := form.Open[Input, *Appointment](h.svc, id, in, form.WithGate(h.gate, key))

	_, err := dlg.Save(c.Request().Context())
	var fe form.FieldErrors
	switch {
	case err == nil:
		if dlg.Mode() == form.Edit {
			shell.Success(c, "Cita actualizada exitosamente")
		} else {
			shell.Success(c, "Cita programada exitosamente")
		}
		return shell.SeeOther(c, listPath)
	case errors.Is(err, form.ErrSaveInFlight):
		shell.AddFlash(c, shell.FlashInfo, "La cita ya se está guardando.")
		return shell.SeeOther(c, listPath)
	case errors.As(err, &fe):
		return h.renderForm(c, http.StatusUnprocessableEntity, id, in, fe, "")
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	default:
		return h.renderForm(c, http.StatusBadGateway, id, in, nil, "Error al guardar cita: "+gateway.Detail(err))
	}
}

func (h *Handler) Confirm(c echo.Context) error {
	if _, err := h.svc.Confirm(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al confirmar la cita", err)
	}
	shell.Success(c, "Cita confirmada exitosamente")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) Attendance(c echo.Context) error {
	attended := listview.ParseBool(c.QueryParam("asistio"))
	if attended == nil {
		attended = listview.ParseBool(c.FormValue("asistio"))
	}
	if attended == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "asistio debe ser true o false")
	}
	if err := h.svc.RecordAttendance(c.Request().Context(), c.Param("id"), *attended); err != nil {
		return shell.Fail(c, listPath, "Error al registrar la asistencia", err)
	}
	shell.Success(c, "Asistencia actualizada correctamente")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) Cancel(c echo.Context) error {
	if err := h.svc.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al cancelar la cita", err)
	}
	shell.Success(c, "Cita cancelada correctamente")
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

// FormView lays out the appointment dialog.
func FormView(id string, in Input, patients []form.Choice) form.View {
	v := form.View{
		Title:       "Nueva Cita",
		Action:      listPath,
		CancelURL:   listPath,
		Mode:        form.Create,
		SubmitLabel: "Programar",
	}
	if id != "" {
		v.Title = "Editar Cita"
		v.Action = listPath + "/" + url.PathEscape(id)
		v.Mode = form.Edit
		v.SubmitLabel = "Actualizar"
	}
	v.Fields = []form.Field{
		{Name: "paciente_id", Label: "Paciente", Type: "select", Value: in.PatientID,
			Choices: append([]form.Choice{{Value: "", Label: "Seleccione un paciente"}}, patients...), Required: true, Wide: true},
		{Name: "fecha", Label: "Fecha", Type: "date", Value: in.Date, Required: true},
		{Name: "hora", Label: "Hora", Type: "time", Value: in.Time, Required: true},
		{Name: "tipo_estudio", Label: "Tipo de estudio", Type: "select", Value: in.StudyType, Choices: withAll("Seleccione", StudyTypes...), Required: true},
		{Name: "tipo_cita", Label: "Tipo de cita", Type: "select", Value: in.AppointmentType, Choices: form.Choices(AppointmentTypes...), Required: true},
		{Name: "estado", Label: "Estado", Type: "select", Value: in.Status, Choices: statusChoices(false), Required: true},
		{Name: "sala", Label: "Sala", Type: "select", Value: in.Room, Choices: withAll("Sin asignar", Rooms...)},
		{Name: "tecnico_asignado", Label: "Técnico asignado", Type: "text", Value: in.Technician},
		{Name: "duracion_minutos", Label: "Duración (minutos)", Type: "number", Value: in.Duration,
			Min: strconv.Itoa(MinDuration), Max: strconv.Itoa(MaxDuration), Step: "15"},
		{Name: "observaciones", Label: "Observaciones", Type: "textarea", Value: in.Notes, Wide: true},
		{Name: "estudio_id", Type: "hidden", Value: in.StudyID},
	}
	return v
}
