package dicom

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

const (
	rootPath = "/dicom"
	// UploadPrefix is where multipart posts land; the body limit keys on it.
	UploadPrefix = rootPath + "/upload/"
)

func studyPath(studyID string) string {
	return rootPath + "/estudios/" + url.PathEscape(studyID)
}

func consolePath(studyID, kind, name string) string {
	return studyPath(studyID) + "/" + kind + "/" + url.PathEscape(name)
}

type Handler struct {
	svc   *Service
	shell *shell.Shell
}

func NewHandler(svc *Service, sh *shell.Shell) *Handler {
	return &Handler{svc: svc, shell: sh}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	grp := g.Group(rootPath, auth.RequireRoles(session.Imaging...))
	grp.GET("", h.Index)
	grp.GET("/uploads/:id", h.Progress)
	grp.POST("/upload/:id", h.Upload)
	grp.GET("/estudios/:id", h.Study)
	grp.GET("/estudios/:id/preview/:file", h.Preview)
	grp.GET("/estudios/:id/download/:file", h.Download)
	grp.GET("/estudios/:id/visor/:file", h.Viewer)
	grp.POST("/estudios/:id/eliminar/:file", h.Delete)
}

// Workspace is the DICOM page's view model.
type Workspace struct {
	PatientField form.Field
	StudyField   form.Field
	PatientID    string
	StudyID      string
	Study        *StudyRef
	Files        []FileView
	UploadID     string
	UploadURL    string
	Accept       string
	Error        string
}

func (h *Handler) Index(c echo.Context) error {
	return h.workspace(c, c.QueryParam("paciente_id"), c.QueryParam("estudio_id"))
}

// Study opens the workspace on one study, as linked from the study list.
func (h *Handler) Study(c echo.Context) error {
	return h.workspace(c, c.QueryParam("paciente_id"), c.Param("id"))
}

func (h *Handler) workspace(c echo.Context, patientID, studyID string) error {
	ctx := c.Request().Context()
	w := Workspace{
		PatientID: patientID,
		StudyID:   studyID,
		UploadID:  uuid.NewString(),
		Accept:    Extension,
	}
	var errs []string
	fail := func(msg string, err error) error {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		errs = append(errs, msg+": "+gateway.Detail(err))
		return nil
	}

	patients, err := h.svc.Patients(ctx)
	if err != nil {
		if ferr := fail("Error al cargar los pacientes", err); ferr != nil {
			return ferr
		}
	}
	choices := []form.Choice{{Value: "", Label: "Seleccione un paciente"}}
	for _, p := range patients {
		choices = append(choices, form.Choice{Value: p.ID, Label: fmt.Sprintf("%s · %d estudio(s)", p.Label(), p.Studies)})
	}
	w.PatientField = form.Field{Name: "paciente_id", Label: "Paciente", Type: "select", Value: patientID, Choices: choices}

	studyChoices := []form.Choice{{Value: "", Label: "Seleccione un estudio"}}
	if patientID != "" {
		ps, err := h.svc.Studies(ctx, patientID)
		if err != nil {
			if ferr := fail("Error al cargar los estudios del paciente", err); ferr != nil {
				return ferr
			}
		} else {
			if studyID == "" && len(ps.Studies) == 1 {
				studyID = ps.Studies[0].ID
				w.StudyID = studyID
			}
			for i, s := range ps.Studies {
				studyChoices = append(studyChoices, form.Choice{Value: s.ID, Label: s.Label()})
				if s.ID == studyID {
					w.Study = &ps.Studies[i]
				}
			}
		}
	}
	w.StudyField = form.Field{Name: "estudio_id", Label: "Estudio", Type: "select", Value: studyID, Choices: studyChoices}

	if studyID != "" {
		w.UploadURL = UploadPrefix + url.PathEscape(studyID) + "?" + url.Values{"upload_id": {w.UploadID}}.Encode()
		files, err := h.svc.Files(ctx, studyID)
		if err != nil {
			if ferr := fail("Error al cargar los archivos DICOM", err); ferr != nil {
				return ferr
			}
		}
		w.Files = files
	}
	w.Error = strings.Join(errs, " · ")
	return h.shell.Render(c, http.StatusOK, "dicom", "Archivos DICOM", w)
}

// trackKey scopes uploadID to the caller's session.
func trackKey(c echo.Context, uploadID string) string {
	var sid string
	if sess := auth.SessionFrom(c); sess != nil {
		sid = sess.ID
	}
	return TrackKey(sid, uploadID)
}

// Progress answers the upload poller. Uploads started by another session
// read as not found.
func (h *Handler) Progress(c echo.Context) error {
	p, ok := h.svc.Tracker().Get(trackKey(c, c.Param("id")))
	if !ok {
		return c.JSON(http.StatusOK, Progress{})
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Upload(c echo.Context) error {
	studyID := c.Param("id")
	back := studyPath(studyID)

	// The id rides in the query string so the tracker entry exists before
	// the body is read.
	uploadID := c.QueryParam("upload_id")
	if _, err := uuid.Parse(uploadID); err != nil {
		uploadID = uuid.NewString()
	}
	key := trackKey(c, uploadID)
	tracker := h.svc.Tracker()
	tracker.Start(key)
	req := c.Request()
	req.Body = &receiveBody{ReadCloser: req.Body, tracker: tracker, id: key, total: req.ContentLength}

	mf, err := c.MultipartForm()
	if err != nil {
		tracker.Finish(key, err)
		shell.Failure(c, "Seleccione al menos un archivo DICOM.")
		return shell.SeeOther(c, back)
	}
	defer mf.RemoveAll()

	var sources []Source
	for _, fh := range mf.File["files"] {
		sources = append(sources, Source{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	sum, err := h.svc.Upload(req.Context(), key, studyID, sources)
	for _, r := range sum.Rejected {
		shell.AddFlash(c, shell.FlashInfo, fmt.Sprintf("%s descartado: %s", r.Name, r.Reason))
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrNoFiles), errors.Is(err, ErrNoStudy):
		shell.Failure(c, "No hay archivos DICOM válidos para subir.")
		return shell.SeeOther(c, back)
	default:
		return shell.Fail(c, back, "Error al subir archivos", err)
	}

	msg := fmt.Sprintf("%d archivo(s) DICOM subidos (%s)", sum.Uploaded, sum.HumanBytes())
	if name := sum.Patient.FullName(); name != "" {
		msg += " para " + name
	}
	if sum.Linked > 0 {
		msg += fmt.Sprintf(". %d imagen(es) anexadas al informe", sum.Linked)
	}
	shell.Success(c, msg+".")
	for _, w := range sum.Warnings {
		shell.AddFlash(c, shell.FlashInfo, w)
	}
	return shell.SeeOther(c, back)
}

func (h *Handler) Preview(c echo.Context) error {
	s, err := h.svc.Preview(c.Request().Context(), c.Param("id"), c.Param("file"))
	if err != nil {
		return streamError(err)
	}
	defer s.Close()
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Stream(http.StatusOK, orDefault(s.ContentType, "image/png"), s)
}

func (h *Handler) Download(c echo.Context) error {
	name := c.Param("file")
	s, err := h.svc.Download(c.Request().Context(), c.Param("id"), name)
	if err != nil {
		return streamError(err)
	}
	defer s.Close()
	disp := s.ContentDisposition
	if disp == "" {
		disp = mime.FormatMediaType("attachment", map[string]string{"filename": name})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, disp)
	return c.Stream(http.StatusOK, orDefault(s.ContentType, "application/dicom"), s)
}

func streamError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	case errors.Is(err, gateway.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Archivo no encontrado")
	}
	return echo.NewHTTPError(http.StatusBadGateway, gateway.Detail(err))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ViewerPage is the preview viewer's view model.
type ViewerPage struct {
	File     FileView
	View     Viewer
	Style    template.CSS
	BackURL  string
	Commands []ViewerCommand
}

// ViewerCommand is one toolbar button.
type ViewerCommand struct {
	Label string
	URL   string
}

func (h *Handler) Viewer(c echo.Context) error {
	studyID, name := c.Param("id"), c.Param("file")
	files, err := h.svc.Files(c.Request().Context(), studyID)
	if err != nil {
		return shell.Fail(c, studyPath(studyID), "Error al cargar los archivos DICOM", err)
	}
	var file *FileView
	for i := range files {
		if files[i].SavedName == name {
			file = &files[i]
			break
		}
	}
	if file == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Archivo no encontrado")
	}

	v := ViewerFrom(c.QueryParams())
	base := file.ViewerURL()
	page := ViewerPage{File: *file, View: v, Style: v.Style(), BackURL: studyPath(studyID)}
	for _, cmd := range []struct{ label, name string }{
		{"Disminuir contraste", "contrast_down"},
		{"Aumentar contraste", "contrast_up"},
		{"Acercar", "zoom_in"},
		{"Alejar", "zoom_out"},
		{"Rotar 90°", "rotate"},
		{"Restablecer", "reset"},
	} {
		page.Commands = append(page.Commands, ViewerCommand{Label: cmd.label, URL: v.Link(base, cmd.name)})
	}
	return h.shell.Render(c, http.StatusOK, "dicom_viewer", file.Name(), page)
}

func (h *Handler) Delete(c echo.Context) error {
	studyID := c.Param("id")
	if err := h.svc.DeleteFile(c.Request().Context(), studyID, c.Param("file")); err != nil {
		return shell.Fail(c, studyPath(studyID), "Error al eliminar el archivo", err)
	}
	shell.Success(c, "Archivo DICOM eliminado")
	return shell.SeeOther(c, studyPath(studyID))
}
