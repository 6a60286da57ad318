package patient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/shell"
)

func newTestHandler(t *testing.T) (*Handler, *mockRepo, *echo.Echo) {
	t.Helper()
	svc, repo := newTestService()
	r, err := shell.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	e.Renderer = r
	return NewHandler(svc, &shell.Shell{}, form.NewGate()), repo, e
}

func postForm(target string, vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func validForm() url.Values {
	return url.Values{
		"nombre":           {"Ana"},
		"apellidos":        {"Gómez"},
		"email":            {"ana@example.com"},
		"telefono":         {"3001234567"},
		"direccion":        {"Calle 1"},
		"fecha_nacimiento": {"1990-06-15"},
		"tipo_documento":   {"CC"},
		"numero_documento": {"123"},
		"genero":           {"Femenino"},
	}
}

func TestList_RendersRows(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.add(Patient{ID: "1", Name: "Ana", Surname: "Gómez", DocumentType: "CC", DocumentNumber: "123"})
	repo.add(Patient{ID: "2", Name: "Bruno"})

	req := httptest.NewRequest(http.MethodGet, "/pacientes?search=g%C3%B3mez", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Ana Gómez") {
		t.Error("expected matching patient in table")
	}
	if strings.Contains(body, "Bruno") {
		t.Error("expected non-matching patient to be filtered out")
	}
}

func TestList_BackendErrorShowsMessage(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.listErr = errors.New("connection refused")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pacientes", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Error al cargar pacientes: connection refused") {
		t.Errorf("expected load error in page, got %s", rec.Body.String())
	}
}

func TestCreate_Success(t *testing.T) {
	h, repo, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(postForm("/pacientes", validForm()), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/pacientes" {
		t.Errorf("expected redirect to list, got %s", loc)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 patient, got %d", len(repo.items))
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "radconsole_flash") {
		t.Error("expected flash cookie")
	}
}

func TestCreate_InvalidRerendersForm(t *testing.T) {
	h, repo, e := newTestHandler(t)
	vals := validForm()
	vals.Set("email", "nope")
	rec := httptest.NewRecorder()
	c := e.NewContext(postForm("/pacientes", vals), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "debe ser un correo electrónico válido") {
		t.Error("expected field error in form")
	}
	if !strings.Contains(rec.Body.String(), `value="Ana"`) {
		t.Error("expected submitted values to be kept")
	}
	if len(repo.items) != 0 {
		t.Error("expected nothing sent to the backend")
	}
}

func TestUpdate_Success(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.add(Patient{ID: "p1", Name: "Old"})

	rec := httptest.NewRecorder()
	c := e.NewContext(postForm("/pacientes/p1", validForm()), rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if repo.items["p1"].Name != "Ana" {
		t.Errorf("expected updated name, got %s", repo.items["p1"].Name)
	}
}

func TestEdit_PrefillsForm(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.add(Patient{ID: "p1", Name: "Ana", Email: "ana@example.com", DocumentType: "CE"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pacientes/p1/editar", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	if err := h.Edit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Editar Paciente") || !strings.Contains(body, `action="/pacientes/p1"`) {
		t.Error("expected edit dialog posting to the record")
	}
	if !strings.Contains(body, `value="ana@example.com"`) {
		t.Error("expected prefilled email")
	}
}

func TestEdit_NotFoundRedirects(t *testing.T) {
	h, _, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if err := h.Edit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.add(Patient{ID: "p1", Name: "Ana"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/pacientes/p1/eliminar", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if len(repo.items) != 0 {
		t.Error("expected patient removed")
	}
}

func TestExport_CSV(t *testing.T) {
	h, repo, e := newTestHandler(t)
	repo.add(Patient{ID: "p1", Name: "Ana", Surname: "Gómez", Email: "ana@example.com"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pacientes/export.csv", nil), rec)
	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "p1,Ana,Gómez") {
		t.Errorf("expected patient row, got %s", rec.Body.String())
	}
}
