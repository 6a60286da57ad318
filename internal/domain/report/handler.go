package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/export"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
	"github.com/ehr/radconsole/pkg/jsontime"
)

const listPath = "/informes"

// StudyPicker supplies the study select.
type StudyPicker interface {
	Choices(ctx context.Context, patientID string) ([]form.Choice, error)
}

type Handler struct {
	svc     *Service
	studies StudyPicker
	shell   *shell.Shell
	gate    *form.Gate
	now     func() time.Time
}

func NewHandler(svc *Service, studies StudyPicker, sh *shell.Shell, gate *form.Gate) *Handler {
	return &Handler{svc: svc, studies: studies, shell: sh, gate: gate, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(listPath, auth.RequireRoles(session.MedicalStaff...))
	grp.GET("", h.List)
	grp.GET("/export.csv", h.Export)
	grp.GET("/nuevo", h.New)
	grp.POST("", h.Create)
	grp.GET("/:id/editar", h.Edit)
	grp.POST("/:id", h.Update)
	grp.POST("/:id/imagenes", h.SyncImages)
	grp.GET("/:id/imprimir", h.Print)
	grp.GET("/:id/pdf", h.PDF)
	grp.POST("/:id/eliminar", h.Delete)
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
		Heading:   "Informes Radiológicos",
		NewURL:    listPath + "/nuevo",
		NewLabel:  "Nuevo informe",
		ExportURL: listPath + "/export.csv?" + c.QueryString(),
		FilterURL: listPath,
		Filters: []form.Field{
			{Name: "search", Label: "Buscar", Type: "search", Value: q.Search, Placeholder: "Paciente, estudio, radiólogo o hallazgos"},
			{Name: "estado", Label: "Estado", Type: "select", Value: q.Status, Choices: withAll("Todos", Statuses...)},
			{Name: "calidad", Label: "Calidad", Type: "select", Value: q.Quality, Choices: withAll("Todas", Qualities...)},
			{Name: "urgencia", Label: "Urgencia", Type: "select", Value: q.Urgency, Choices: withAll("Todos", "Urgente", "Normal")},
			{Name: "validacion", Label: "Validación", Type: "select", Value: q.Validation, Choices: withAll("Todos", "Validado", "Pendiente")},
			{Name: "fecha", Label: "Fecha", Type: "date", Value: q.Date},
		},
		Table: shell.Table{
			Columns: []string{"Paciente", "Estudio", "Radiólogo", "Fecha", "Estado", "Calidad", "Urgencia", "Imágenes"},
			Empty:   "No se encontraron informes.",
		},
	}
	if err != nil {
		page.LoadError("Error al cargar informes", err, v.Stale())
	}
	shell.Fill(c, &page, v.Items(), h.row)
	return h.shell.Render(c, http.StatusOK, "list", "Informes", page)
}

func (h *Handler) row(r Report) shell.Row {
	base := listPath + "/" + url.PathEscape(r.ID)
	studyLabel := r.StudyType
	if r.StudyModality != "" {
		studyLabel += " (" + r.StudyModality + ")"
	}
	urgency := shell.Cell{Text: r.UrgencyLabel()}
	if r.Urgent {
		urgency.Badge = "urgente"
	}
	actions := []shell.Action{
		shell.GetAction("Editar", base+"/editar"),
		shell.GetAction("Imprimir", base+"/imprimir"),
		shell.GetAction("PDF", base+"/pdf"),
	}
	if len(r.Images) == 0 {
		actions = append(actions, shell.PostAction("Sincronizar imágenes", base+"/imagenes", ""))
	}
	actions = append(actions, shell.PostAction("Eliminar", base+"/eliminar",
		"¿Está seguro que desea eliminar este informe?"))
	return shell.Row{
		ID: r.ID,
		Cells: []shell.Cell{
			{Text: r.PatientFullName(), Title: r.PatientDocument},
			{Text: studyLabel},
			{Text: r.Radiologist},
			{Text: r.Date.DisplayDate()},
			{Text: r.Status, Badge: r.Status},
			{Text: r.Quality, Badge: r.Quality},
			urgency,
			{Text: fmt.Sprint(len(r.Images))},
		},
		Actions: actions,
		Muted:   r.Status == StatusDraft,
	}
}

func (h *Handler) Export(c echo.Context) error {
	v, err := h.svc.List(c.Request().Context(), QueryFrom(c))
	if err != nil {
		return shell.Fail(c, listPath, "Error al exportar informes", err)
	}
	header := []string{"ID", "Paciente", "Cédula", "Estudio", "Modalidad", "Radiólogo", "Fecha informe", "Estado", "Calidad", "Urgente", "Validado", "Impresión diagnóstica"}
	var rows [][]string
	for _, r := range v.Items() {
		rows = append(rows, []string{
			r.ID, r.PatientFullName(), r.PatientDocument, r.StudyType, r.StudyModality,
			r.Radiologist, r.Date.Date(), r.Status, r.Quality,
			yesNo(r.Urgent), yesNo(r.Validated), r.Impression,
		})
	}
	return export.SendCSV(c, "informes", header, rows)
}

func (h *Handler) New(c echo.Context) error {
	var radiologist string
	if sess := auth.SessionFrom(c); sess != nil {
		radiologist = sess.User.FullName()
	}
	today := h.now().In(jsontime.Location()).Format(jsontime.DateLayout)
	return h.renderForm(c, http.StatusOK, "", NewInput(radiologist, today, c.QueryParam("estudio_id")), nil, "")
}

func (h *Handler) Edit(c echo.Context) error {
	id := c.Param("id")
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return shell.Fail(c, listPath, "Error al cargar el informe", err)
	}
	return h.renderForm(c, http.StatusOK, id, InputFrom(*r), nil, "")
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
	key := auth.SessionID(c) + ":informe:" + id
	dlg := form.Open[Input, *Report](h.svc, id, in, form.WithGate(h.gate, key))

	_, err := dlg.Save(c.Request().Context())
	var fe form.FieldErrors
	switch {
	case err == nil:
		if dlg.Mode() == form.Edit {
			shell.Success(c, "Informe actualizado exitosamente")
		} else {
			shell.Success(c, "Informe creado exitosamente")
		}
		return shell.SeeOther(c, listPath)
	case errors.Is(err, form.ErrSaveInFlight):
		shell.AddFlash(c, shell.FlashInfo, "El informe ya se está guardando.")
		return shell.SeeOther(c, listPath)
	case errors.As(err, &fe):
		return h.renderForm(c, http.StatusUnprocessableEntity, id, in, fe, "")
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	default:
		return h.renderForm(c, http.StatusBadGateway, id, in, nil, "Error al guardar informe: "+gateway.Detail(err))
	}
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return shell.Fail(c, listPath, "Error al eliminar informe", err)
	}
	shell.Success(c, "Informe eliminado exitosamente")
	return shell.SeeOther(c, listPath)
}

func (h *Handler) SyncImages(c echo.Context) error {
	n, err := h.svc.SyncImages(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrAlreadyLinked):
		shell.AddFlash(c, shell.FlashInfo, "El informe ya tiene imágenes vinculadas.")
	case err != nil:
		return shell.Fail(c, listPath, "Error al sincronizar imágenes", err)
	case n == 0:
		shell.AddFlash(c, shell.FlashInfo, "El estudio no tiene archivos DICOM.")
	default:
		shell.Success(c, fmt.Sprintf("%d imágenes vinculadas al informe", n))
	}
	return shell.SeeOther(c, listPath)
}

// Print answers a standalone page that opens the print dialog.
func (h *Handler) Print(c echo.Context) error {
	_, doc, err := h.svc.Document(c.Request().Context(), c.Param("id"))
	if err != nil {
		return shell.Fail(c, listPath, "Error al preparar la impresión", err)
	}
	var buf bytes.Buffer
	if err := export.PrintHTML(&buf, doc); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) PDF(c echo.Context) error {
	r, doc, err := h.svc.Document(c.Request().Context(), c.Param("id"))
	if err != nil {
		return shell.Fail(c, listPath, "Error al generar el PDF", err)
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, doc); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", pdfName(r)))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// pdfName is "informe_<patient>_<report date>.pdf" with the name reduced to
// a file-safe form.
func pdfName(r *Report) string {
	name := strings.Map(func(ch rune) rune {
		switch {
		case ch == ' ':
			return '_'
		case unicode.IsLetter(ch), unicode.IsDigit(ch), ch == '_', ch == '-':
			return ch
		}
		return -1
	}, r.PatientFullName())
	if name == "" {
		name = r.ID
	}
	date := r.Date.Date()
	if date == "" {
		date = "sin_fecha"
	}
	return "informe_" + name + "_" + date + ".pdf"
}

func (h *Handler) renderForm(c echo.Context, status int, id string, in Input, errs form.FieldErrors, msg string) error {
	studies, err := h.studies.Choices(c.Request().Context(), "")
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		if msg == "" {
			msg = "Error al cargar estudios: " + gateway.Detail(err)
		}
	}
	v := FormView(id, in, studies)
	v.Error = msg
	if rest := v.Annotate(errs); len(rest) > 0 && v.Error == "" {
		v.Error = rest[0]
	}
	return h.shell.Render(c, status, "form", v.Title, v)
}

// FormView lays out the report dialog.
func FormView(id string, in Input, studies []form.Choice) form.View {
	v := form.View{
		Title:     "Nuevo Informe",
		Action:    listPath,
		CancelURL: listPath,
		Mode:      form.Create,
	}
	if id != "" {
		v.Title = "Editar Informe"
		v.Action = listPath + "/" + url.PathEscape(id)
		v.Mode = form.Edit
		v.SubmitLabel = "Actualizar"
	}
	v.Fields = []form.Field{
		{Name: "estudio_id", Label: "Estudio", Type: "select", Value: in.StudyID,
			Choices: append([]form.Choice{{Value: "", Label: "Seleccione un estudio"}}, studies...), Required: true, Wide: true},
		{Name: "medico_radiologo", Label: "Médico radiólogo", Type: "text", Value: in.Radiologist, Required: true},
		{Name: "fecha_informe", Label: "Fecha del informe", Type: "date", Value: in.Date, Required: true},
		{Name: "estado", Label: "Estado", Type: "select", Value: in.Status, Choices: form.Choices(Statuses...), Required: true},
		{Name: "calidad_estudio", Label: "Calidad del estudio", Type: "select", Value: in.Quality, Choices: form.Choices(Qualities...)},
		{Name: "tecnica_utilizada", Label: "Técnica utilizada", Type: "textarea", Value: in.Technique, Rows: 2, Wide: true},
		{Name: "hallazgos", Label: "Hallazgos", Type: "textarea", Value: in.Findings, Rows: 6, Required: true, Wide: true, Help: "Mínimo 10 caracteres"},
		{Name: "impresion_diagnostica", Label: "Impresión diagnóstica", Type: "textarea", Value: in.Impression, Rows: 3, Required: true, Wide: true, Help: "Mínimo 5 caracteres"},
		{Name: "recomendaciones", Label: "Recomendaciones", Type: "textarea", Value: in.Recommendations, Rows: 3, Wide: true},
		{Name: "observaciones_tecnicas", Label: "Observaciones técnicas", Type: "textarea", Value: in.TechnicalNotes, Rows: 2, Wide: true},
		{Name: "urgente", Label: "Urgente", Type: "checkbox", Checked: in.Urgent},
		{Name: "validado", Label: "Validado", Type: "checkbox", Checked: in.Validated},
	}
	return v
}
