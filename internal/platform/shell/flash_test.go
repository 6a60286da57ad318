package shell

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
)

func TestFlash_SurvivesRedirect(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/pacientes", nil), rec)
	Success(c, "Paciente creado")
	Failure(c, "No se pudo enviar el correo")

	var carried *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == flashCookie {
			carried = ck
		}
	}
	if carried == nil {
		t.Fatal("expected flash cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/pacientes", nil)
	req.AddCookie(carried)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	want := []Flash{
		{Kind: FlashSuccess, Message: "Paciente creado"},
		{Kind: FlashError, Message: "No se pudo enviar el correo"},
	}
	if diff := cmp.Diff(want, TakeFlashes(c)); diff != "" {
		t.Errorf("flash mismatch (-want +got):\n%s", diff)
	}
	if got := TakeFlashes(c); got != nil {
		t.Errorf("expected flashes consumed, got %v", got)
	}
	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == flashCookie && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected flash cookie cleared")
	}
}

func TestFlash_IgnoresGarbledCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "%%%"})
	c := e.NewContext(req, httptest.NewRecorder())
	if got := TakeFlashes(c); got != nil {
		t.Errorf("expected no flashes, got %v", got)
	}
}
