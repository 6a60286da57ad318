package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/export"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

const listPath = "/notificaciones"

// PatientPicker supplies the recipient select.
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

// RegisterRoutes mounts the list for every signed-in user. Authoring and
// delivery actions are staff only.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(listPath)
	grp.GET("", h.List)
	grp.GET("/export.csv", h.Export)
	grp.POST("/leidas", h.MarkAllRead)
	grp.POST("/:id/leida", h.MarkRead)

	staff := auth.RequireRoles(session.Staff...)
	grp.GET("/nueva", h.New, staff)
	grp.POST("", h.Create, staff)
	grp.GET("/:id/editar", h.Edit, staff)
	grp.POST("/:id", h.Update, staff)
	grp.POST("/:id/reenviar", h.Resend, staff)
	grp.POST("/:id/eliminar", h.Delete, staff)
}

// ScopeFor is the patient a user's notifications are limited to, "" for
// staff. ok is false when the user may see no notifications at all: a
// patient account not linked to a patient record, or no session.
func ScopeFor(sess *session.Session) (patientID string, ok bool) {
	if sess == nil {
		return "", false
	}
	if sess.HasRole(session.RolePatient) {
		return sess.User.PatientID, sess.User.PatientID != ""
	}
	return "", true
}

const unlinkedMsg = "Su cuenta no está vinculada a un paciente. Contacte a la secretaría."

func isStaff(sess *session.Session) bool {
	return sess != nil && sess.HasRole(session.Staff...)
}

func (h *Handler) query(c echo.Context) (Query, bool) {
	q := QueryFrom(c)
	var ok bool
	q.PatientID, ok = ScopeFor(auth.SessionFrom(c))
	return q, ok
}

func priorityChoices() []form.Choice {
	out := []form.Choice{{Value: "", Label: "Todas"}}
	for _, p := range Priorities {
		out = append(out, form.Choice{Value: string(p), Label: p.Label()})
	}
	return out
}

func (h *Handler) List(c echo.Context) error {
	q, scoped := h.query(c)
	var (
		items []Notification
		stale bool
		err   error
	)
	if scoped {
		var v *listview.Snapshot[Notification]
		v, err = h.svc.List(c.Request().Context(), q)
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		items, stale = v.Items(), v.Stale()
	}
	staff := isStaff(auth.SessionFrom(c))

	page := shell.ListPage{
		Heading:   "Notificaciones",
		ExportURL: listPath + "/export.csv?" + c.QueryString(),
		FilterURL: listPath,
		Filters: []form.Field{
			{Name: "tipo", Label: "Tipo", Type: "select", Value: q.Type,
				Choices: append([]form.Choice{{Value: "", Label: "Todas"}}, form.Choices(Types...)...)},
			{Name: "prioridad", Label: "Prioridad", Type: "select", Value: q.Priority, Choices: priorityChoices()},
			{Name: "lectura", Label: "Mostrar", Type: "select", Value: q.Read, Choices: []form.Choice{
				{Value: ShowAll, Label: "Todas"},
				{Value: UnreadOnly, Label: "Solo no leídas"},
			}},
		},
		Table: shell.Table{
			Columns: []string{"Tipo", "Título", "Mensaje", "Destinatario", "Fecha", "Prioridad", "Estado"},
			Empty:   "No hay notificaciones.",
		},
	}
	if staff {
		page.NewURL = listPath + "/nueva"
		page.NewLabel = "Nueva notificación"
	}
	switch {
	case !scoped:
		page.Error = unlinkedMsg
	case err != nil:
		page.LoadError("Error al cargar notificaciones", err, stale)
	}
	shell.Fill(c, &page, items, func(n Notification) shell.Row { return row(n, staff) })
	return h.shell.Render(c, http.StatusOK, "list", "Notificaciones", page)
}

func row(n Notification, staff bool) shell.Row {
	base := listPath + "/" + url.PathEscape(n.ID)
	state := shell.Cell{Text: "No leída", Badge: "no leida"}
	var actions []shell.Action
	if n.Read {
		state = shell.Cell{Text: "Leída", Badge: "leida"}
	} else {
		actions = append(actions, shell.PostAction("Marcar como leída", base+"/leida", ""))
	}
	if staff {
		actions = append(actions, shell.GetAction("Editar", base+"/editar"))
		if n.PatientID != "" {
			actions = append(actions, shell.PostAction("Reenviar", base+"/reenviar", ""))
		}
		actions = append(actions, shell.PostAction("Eliminar", base+"/eliminar",
			"¿Está seguro que desea eliminar esta notificación?"))
	}
	recipient := n.Recipient
	if recipient == "" && n.PatientID != "" {
		recipient = "Paciente " + n.PatientID
	}
	return shell.Row{
		ID: n.ID,
		Cells: []shell.Cell{
			{Text: n.Type},
			{Text: n.Heading()},
			{Text: n.Message, Title: n.ActionRequired},
			{Text: recipient},
			{Text: n.At().Display()},
			{Text: n.Priority.Label(), Badge: string(n.Priority)},
			state,
		},
		Actions: actions,
		Muted:   n.Read,
	}
}

func (h *Handler) Export(c echo.Context) error {
	q, scoped := h.query(c)
	if !scoped {
		shell.Failure(c, unlinkedMsg)
		return shell.SeeOther(c, listPath)
	}
	v, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return shell.Fail(c, listPath, "Error al exportar notificaciones", err)
	}
	header := []string{"ID", "Tipo", "Título", "Mensaje", "Destinatario", "Fecha", "Prioridad", "Leída", "Enviada"}
	var rows [][]string
	for _, n := range v.Items() {
		rows = append(rows, []string{
			n.ID, n.Type, n.Heading(), n.Message, n.Recipient, n.At().Display(),
			n.Priority.Label(), yesNo(n.Read), yesNo(n.Sent),
		})
	}
	return export.SendCSV(c, "notificaciones", header, rows)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

func (h *Handler) MarkRead(c echo.Context) error {
	if err := h.svc.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al marcar la notificación", err)
	}
	return shell.SeeOther(c, listPath)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	scope, ok := ScopeFor(auth.SessionFrom(c))
	if !ok {
		shell.Failure(c, unlinkedMsg)
		return shell.SeeOther(c, listPath)
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), scope)
	if err != nil {
		if n > 0 {
			shell.AddFlash(c, shell.FlashInfo, fmt.Sprintf("%d notificaciones marcadas como leídas", n))
		}
		return shell.Fail(c, listPath, "Error al marcar notificaciones", err)
	}
	shell.Success(c, "Todas las notificaciones fueron marcadas como leídas")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) Resend(c echo.Context) error {
	if err := h.svc.Resend(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al reenviar la notificación", err)
	}
	shell.Success(c, "Notificación reenviada")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al eliminar la notificación", err)
	}
	shell.Success(c, "Notificación eliminada")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) New(c echo.Context) error {
	in := NewInput()
	in.PatientID = c.QueryParam("paciente_id")
	in.StudyID = c.QueryParam("estudio_id")
	return h.renderForm(c, http.StatusOK, "", in, nil, "")
}

func (h *Handler) Edit(c echo.Context) error {
	id := c.Param("id")
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return shell.Fail(c, listPath, "Error al cargar la notificación", err)
	}
	return h.renderForm(c, http.StatusOK, id, InputFrom(*n), nil, "")
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
	key := auth.SessionID(c) + ":notificacion:" + id
	dlg := form.Open[Input, *Notification](h.svc, id, in, form.WithGate(h.gate, key))

	_, err := dlg.Save(c.Request().Context())
	var fe form.FieldErrors
	switch {
	case err == nil:
		if dlg.Mode() == form.Edit {
			shell.Success(c, "Notificación actualizada")
		} else {
			shell.Success(c, "Notificación creada")
		}
		return shell.SeeOther(c, listPath)
	case errors.Is(err, form.ErrSaveInFlight):
		shell.AddFlash(c, shell.FlashInfo, "La notificación ya se está guardando.")
		return shell.SeeOther(c, listPath)
	case errors.As(err, &fe):
		return h.renderForm(c, http.StatusUnprocessableEntity, id, in, fe, "")
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	default:
		return h.renderForm(c, http.StatusBadGateway, id, in, nil, "Error al guardar la notificación: "+gateway.Detail(err))
	}
}

func (h *Handler) renderForm(c echo.Context, status int, id string, in Input, errs form.FieldErrors, msg string) error {
	patients, err := h.patients.Choices(c.Request().Context())
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		if msg == "" {
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

// FormView lays out the notification dialog.
func FormView(id string, in Input, patients []form.Choice) form.View {
	v := form.View{
		Title:       "Nueva Notificación",
		Action:      listPath,
		CancelURL:   listPath,
		SubmitLabel: "Enviar",
		Mode:        form.Create,
	}
	if id != "" {
		v.Title = "Editar Notificación"
		v.Action = listPath + "/" + url.PathEscape(id)
		v.Mode = form.Edit
		v.SubmitLabel = "Actualizar"
	}
	priorities := make([]form.Choice, 0, len(Priorities))
	for _, p := range Priorities {
		priorities = append(priorities, form.Choice{Value: string(p), Label: p.Label()})
	}
	v.Fields = []form.Field{
		{Name: "tipo", Label: "Tipo", Type: "select", Value: in.Type, Choices: form.Choices(Types...), Required: true},
		{Name: "prioridad", Label: "Prioridad", Type: "select", Value: in.Priority, Choices: priorities, Required: true},
		{Name: "paciente_id", Label: "Paciente", Type: "select", Value: in.PatientID,
			Choices: append([]form.Choice{{Value: "", Label: "Ninguno"}}, patients...)},
		{Name: "destinatario", Label: "Destinatario", Type: "text", Value: in.Recipient,
			Placeholder: "Dr. Martínez, Todos los usuarios…", Help: "Requerido si no se elige un paciente"},
		{Name: "titulo", Label: "Título", Type: "text", Value: in.Title, Required: true, Wide: true},
		{Name: "mensaje", Label: "Mensaje", Type: "textarea", Value: in.Message, Rows: 4, Required: true, Wide: true},
		{Name: "estudio_id", Type: "hidden", Value: in.StudyID},
	}
	return v
}
