package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
)

// fakeAPI answers the backend auth endpoints the session store calls.
type fakeAPI struct {
	mu       sync.Mutex
	role     string
	password string
	posts    map[string]map[string]any
}

func newFakeAPI(role string) *fakeAPI {
	return &fakeAPI{role: role, password: "secreto123", posts: map[string]map[string]any{}}
}

func (a *fakeAPI) Get(ctx context.Context, path string, params gateway.Params, out any) error {
	return nil
}

func (a *fakeAPI) Post(ctx context.Context, path string, body, out any) error {
	raw, _ := json.Marshal(body)
	var sent map[string]any
	json.Unmarshal(raw, &sent)
	a.mu.Lock()
	a.posts[path] = sent
	a.mu.Unlock()

	if strings.HasSuffix(path, "/login") && sent["password"] != a.password {
		return gateway.ErrUnauthorized
	}
	role, _ := sent["role"].(string)
	if role == "" {
		role = a.role
	}
	user := `{"id":"u1","email":"` + sent["email"].(string) + `","nombre":"Ana","apellidos":"Gómez","role":"` + role + `"}`
	if strings.HasSuffix(path, "/register") {
		return json.Unmarshal([]byte(user), out)
	}
	return json.Unmarshal([]byte(`{"access_token":"tok","expires_in":3600,"user":`+user+`}`), out)
}

func (a *fakeAPI) sent(suffix string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	for p, body := range a.posts {
		if strings.HasSuffix(p, suffix) {
			return body
		}
	}
	return nil
}

type fakeUsers struct {
	users []session.User
	err   error
}

func (f fakeUsers) Users(ctx context.Context) ([]session.User, error) {
	return f.users, f.err
}

func newTestHandler(t *testing.T, api *fakeAPI, users UserLister) (*Handler, *session.Store, *echo.Echo) {
	t.Helper()
	store, err := session.NewStore(context.Background(), api, session.NewMemoryPersister())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	r, err := shell.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	e.Renderer = r
	sh := &shell.Shell{SessionFrom: auth.SessionFrom}
	home := NewHome(nil, nil, zerolog.Nop())
	return NewHandler(store, sh, users, home, false, zerolog.Nop()), store, e
}

func postForm(e *echo.Echo, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.CookieName {
			return ck
		}
	}
	return nil
}

func TestLoginForm_KeepsSafeReturnURL(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("admin"), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/login?returnUrl=%2Fcitas", nil), rec)
	if err := h.LoginForm(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="returnUrl" value="/citas"`) {
		t.Error("expected return url carried in the form")
	}
}

func TestLogin_SuccessSetsCookieAndRedirects(t *testing.T) {
	h, store, e := newTestHandler(t, newFakeAPI("secretario"), nil)
	c, rec := postForm(e, "/login", url.Values{"email": {"ana@example.com"}, "password": {"secreto123"}, "returnUrl": {"/citas"}})
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/citas" {
		t.Errorf("expected /citas, got %s", got)
	}
	ck := sessionCookie(rec)
	if ck == nil {
		t.Fatal("expected session cookie")
	}
	sess, ok := store.Get(ck.Value)
	if !ok {
		t.Fatal("expected cookie to name a live session")
	}
	if sess.User.Role != session.RoleSecretary {
		t.Errorf("expected secretary, got %s", sess.User.Role)
	}
}

func TestLogin_OffsiteReturnURLGoesHome(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("admin"), nil)
	c, rec := postForm(e, "/login", url.Values{"email": {"ana@example.com"}, "password": {"secreto123"}, "returnUrl": {"//evil.example"}})
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/" {
		t.Errorf("expected /, got %s", got)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("admin"), nil)
	c, rec := postForm(e, "/login", url.Values{"email": {"ana@example.com"}, "password": {"nope"}})
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Correo o contraseña incorrectos") {
		t.Error("expected credential error message")
	}
	if sessionCookie(rec) != nil {
		t.Error("expected no session cookie")
	}
}

func TestLogin_InvalidInputNeverReachesBackend(t *testing.T) {
	api := newFakeAPI("admin")
	h, _, e := newTestHandler(t, api, nil)
	c, rec := postForm(e, "/login", url.Values{"email": {"no-es-un-correo"}})
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "field invalid") {
		t.Error("expected fields marked invalid")
	}
	if api.sent("/login") != nil {
		t.Error("expected no backend call")
	}
}

func TestLogout_DropsSession(t *testing.T) {
	h, store, e := newTestHandler(t, newFakeAPI("admin"), nil)
	sess, err := store.Login(context.Background(), "", session.Credentials{Email: "ana@example.com", Password: "secreto123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	c, rec := postForm(e, "/logout", nil)
	c.Request().AddCookie(&http.Cookie{Name: auth.CookieName, Value: sess.ID})
	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != auth.LoginPath {
		t.Errorf("expected %s, got %s", auth.LoginPath, got)
	}
	if _, ok := store.Get(sess.ID); ok {
		t.Error("expected session to be gone")
	}
	if ck := sessionCookie(rec); ck == nil || ck.MaxAge >= 0 {
		t.Error("expected session cookie cleared")
	}
}

func TestRegisterStaff_SendsBackendRole(t *testing.T) {
	api := newFakeAPI("admin")
	h, _, e := newTestHandler(t, api, nil)
	c, rec := postForm(e, "/register", url.Values{
		"email": {"tec@example.com"}, "password": {"secreto123"}, "nombre": {"Luis"}, "role": {"technician"},
	})
	if err := h.RegisterStaff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != auth.LoginPath {
		t.Errorf("expected %s, got %s", auth.LoginPath, got)
	}
	if got := api.sent("/register")["role"]; got != "tecnico" {
		t.Errorf("expected backend role tecnico, got %v", got)
	}
	if sessionCookie(rec) != nil {
		t.Error("expected staff registration to leave the visitor signed out")
	}
}

func TestRegisterStaff_RejectsPatientRole(t *testing.T) {
	api := newFakeAPI("admin")
	h, _, e := newTestHandler(t, api, nil)
	c, rec := postForm(e, "/register", url.Values{
		"email": {"p@example.com"}, "password": {"secreto123"}, "nombre": {"Pia"}, "role": {"patient"},
	})
	if err := h.RegisterStaff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alta de pacientes") {
		t.Error("expected role field error")
	}
	if api.sent("/register") != nil {
		t.Error("expected no backend call")
	}
}

func TestRegisterPatient_SignsIn(t *testing.T) {
	api := newFakeAPI("paciente")
	h, store, e := newTestHandler(t, api, nil)
	c, rec := postForm(e, "/register/patient", url.Values{
		"email": {"pia@example.com"}, "password": {"secreto123"}, "nombre": {"Pia"}, "role": {"admin"},
	})
	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/" {
		t.Errorf("expected /, got %s", got)
	}
	if got := api.sent("/register-patient")["role"]; got != "paciente" {
		t.Errorf("expected role forced to paciente, got %v", got)
	}
	ck := sessionCookie(rec)
	if ck == nil {
		t.Fatal("expected session cookie")
	}
	if sess, ok := store.Get(ck.Value); !ok || !sess.IsPatient() {
		t.Error("expected a live patient session")
	}
}

func TestRegisterPatient_ShortPassword(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("paciente"), nil)
	c, rec := postForm(e, "/register/patient", url.Values{"email": {"pia@example.com"}, "password": {"corta"}, "nombre": {"Pia"}})
	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestUsers_FiltersAndSorts(t *testing.T) {
	users := fakeUsers{users: []session.User{
		{ID: "1", Email: "zoe@example.com", Name: "Zoe", Role: session.RoleRadiologist, Active: true},
		{ID: "2", Email: "ana@example.com", Name: "Ana", Role: session.RoleTechnician},
		{ID: "3", Email: "bea@example.com", Name: "Bea", Role: session.RoleRadiologist, Active: true},
	}}
	h, _, e := newTestHandler(t, newFakeAPI("admin"), users)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/usuarios?role=radiologist", nil), rec)
	if err := h.Users(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if strings.Contains(body, "ana@example.com") {
		t.Error("expected technician filtered out")
	}
	bea, zoe := strings.Index(body, "bea@example.com"), strings.Index(body, "zoe@example.com")
	if bea < 0 || zoe < 0 || bea > zoe {
		t.Error("expected radiologists sorted by name")
	}
}

func TestUsers_BackendFailureShowsError(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("admin"), fakeUsers{err: &gateway.APIError{Status: 500, Detail: "caído"}})
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/usuarios", nil), rec)
	if err := h.Users(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Error al cargar usuarios") {
		t.Error("expected load error banner")
	}
}

func TestUsers_ExpiredSessionIsPassedUp(t *testing.T) {
	h, _, e := newTestHandler(t, newFakeAPI("admin"), fakeUsers{err: gateway.ErrUnauthorized})
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/usuarios", nil), httptest.NewRecorder())
	if err := h.Users(c); err != gateway.ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
