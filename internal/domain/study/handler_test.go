package study

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/shell"
)

type stubPatients []form.Choice

func (s stubPatients) Choices(ctx context.Context) ([]form.Choice, error) { return s, nil }

func newTestHandler(t *testing.T) (*Handler, *mockRepo, *echo.Echo) {
	t.Helper()
	svc, repo := newTestService()
	r, err := shell.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	e.Renderer = r
	patients := stubPatients{{Value: "p1", Label: "Ana Gómez (123)"}}
	return NewHandler(svc, patients, &shell.Shell{}, form.NewGate()), repo, e
}

func TestList_StatusActions(t *testing.T) {
	h, repo, e := newTestHandler(t)
	seed(repo)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/estudios?estado=pendiente", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/estudios/1/estado?estado=completado") {
		t.Error("expected complete action on pending study")
	}
	if strings.Contains(body, "Bruno") {
		t.Error("expected completed study filtered out")
	}
}

func TestNew_ListsPatients(t *testing.T) {
	h, _, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/estudios/nuevo?paciente_id=p1", nil), rec)
	if err := h.New(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `<option value="p1" selected>Ana Gómez (123)</option>`) {
		t.Errorf("expected preselected patient, got %s", rec.Body.String())
	}
}

func TestCreate_MissingFieldsRerender(t *testing.T) {
	h, repo, e := newTestHandler(t)
	vals := url.Values{"paciente_id": {"p1"}, "estado": {"pendiente"}}
	req := httptest.NewRequest(http.MethodPost, "/estudios", strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if len(repo.items) != 0 {
		t.Error("expected no backend call")
	}
}

func TestCreate_Success(t *testing.T) {
	h, repo, e := newTestHandler(t)
	vals := url.Values{
		"paciente_id": {"p1"}, "tipo_estudio": {"Radiografía"}, "modalidad": {"RX"},
		"parte_cuerpo": {"Tórax"}, "fecha_realizacion": {"2024-01-15"}, "estado": {"pendiente"},
		"prioridad": {"alta"}, "contraste": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/estudios", strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 study, got %d", len(repo.items))
	}
}

func TestSetStatus_RedirectsToList(t *testing.T) {
	h, repo, e := newTestHandler(t)
	seed(repo)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/estudios/1/estado?estado=cancelado", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.SetStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if repo.items["1"].Status != StatusCancelled {
		t.Errorf("expected cancelado, got %s", repo.items["1"].Status)
	}
}
