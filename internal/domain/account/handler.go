// Package account serves the pages around the session: login, the two
// registration flows, logout, the unauthorized notice, the user directory,
// and the home page.
package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
	"github.com/ehr/radconsole/internal/platform/validation"
)

const (
	registerPath        = "/register"
	registerPatientPath = "/register/patient"
	usersPath           = "/usuarios"
)

type Handler struct {
	store  *session.Store
	shell  *shell.Shell
	users  UserLister
	home   *Home
	secure bool
	logger zerolog.Logger
}

func NewHandler(store *session.Store, sh *shell.Shell, users UserLister, home *Home, secureCookies bool, logger zerolog.Logger) *Handler {
	return &Handler{store: store, shell: sh, users: users, home: home, secure: secureCookies, logger: logger}
}

// RegisterRoutes mounts the public auth pages on e and the signed-in pages
// on g. limit wraps the credential posts.
func (h *Handler) RegisterRoutes(e *echo.Echo, g *echo.Group, limit ...echo.MiddlewareFunc) {
	e.GET(auth.LoginPath, h.LoginForm)
	e.POST(auth.LoginPath, h.Login, limit...)
	e.POST("/logout", h.Logout)
	e.GET(registerPath, h.RegisterStaffForm)
	e.POST(registerPath, h.RegisterStaff, limit...)
	e.GET(registerPatientPath, h.RegisterPatientForm)
	e.POST(registerPatientPath, h.RegisterPatient, limit...)
	e.GET(auth.UnauthorizedPath, h.Unauthorized)

	g.GET("/", h.Home)
	admin := g.Group(usersPath, auth.RequireRoles(session.RoleAdmin))
	admin.GET("", h.Users)
	admin.GET("/nuevo", h.NewUser)
	admin.POST("", h.CreateUser)
}

// LoginView is the login page model.
type LoginView struct {
	ReturnURL string
	Email     string
	Errors    form.FieldErrors
	Error     string
}

func (h *Handler) LoginForm(c echo.Context) error {
	ret := auth.SafeReturnURL(c.QueryParam(auth.ReturnURLParam))
	if auth.SessionFrom(c) != nil {
		return shell.SeeOther(c, ret)
	}
	return h.shell.Render(c, http.StatusOK, "login", "Iniciar sesión", LoginView{ReturnURL: ret, Errors: form.FieldErrors{}})
}

func (h *Handler) Login(c echo.Context) error {
	var cred session.Credentials
	if err := c.Bind(&cred); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ret := auth.SafeReturnURL(c.FormValue(auth.ReturnURLParam))
	view := LoginView{ReturnURL: ret, Email: cred.Email, Errors: form.FieldErrors{}}

	sess, err := h.store.Login(c.Request().Context(), auth.SessionID(c), cred)
	var fe validation.FieldErrors
	switch {
	case err == nil:
	case errors.As(err, &fe):
		view.Errors = fe
		return h.shell.Render(c, http.StatusUnprocessableEntity, "login", "Iniciar sesión", view)
	case errors.Is(err, gateway.ErrUnauthorized):
		view.Error = "Correo o contraseña incorrectos."
		return h.shell.Render(c, http.StatusUnauthorized, "login", "Iniciar sesión", view)
	default:
		h.logger.Warn().Err(err).Msg("login failed")
		view.Error = "No se pudo iniciar sesión: " + gateway.Detail(err)
		return h.shell.Render(c, http.StatusBadGateway, "login", "Iniciar sesión", view)
	}

	auth.SetCookie(c, sess, h.secure)
	auth.SetSession(c, h.store, sess)
	shell.Success(c, "Bienvenido, "+sess.User.FullName())
	return shell.SeeOther(c, ret)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.store.Logout(c.Request().Context(), auth.SessionID(c)); err != nil {
		h.logger.Error().Err(err).Msg("logout")
	}
	auth.ClearCookie(c, h.secure)
	return shell.SeeOther(c, auth.LoginPath)
}

func (h *Handler) Unauthorized(c echo.Context) error {
	return h.shell.Render(c, http.StatusForbidden, "unauthorized", "Acceso no autorizado", nil)
}

// RegisterView is the registration page model.
type RegisterView struct {
	Heading   string
	Intro     string
	Action    string
	CancelURL string
	Fields    []form.Field
	Error     string
}

func staffRoles() []form.Choice {
	out := make([]form.Choice, 0, len(session.Staff))
	for _, r := range session.Staff {
		out = append(out, form.Choice{Value: string(r), Label: r.Label()})
	}
	return out
}

func registerFields(reg session.Registration, withRole bool) []form.Field {
	fields := []form.Field{
		{Name: "nombre", Label: "Nombre", Type: "text", Value: reg.Name, Required: true},
		{Name: "apellidos", Label: "Apellidos", Type: "text", Value: reg.Surname},
		{Name: "email", Label: "Correo electrónico", Type: "email", Value: reg.Email, Required: true, Wide: true},
		{Name: "password", Label: "Contraseña", Type: "password", Required: true, Help: "Mínimo 8 caracteres", Wide: true},
	}
	if withRole {
		fields = append(fields, form.Field{Name: "role", Label: "Rol", Type: "select", Value: reg.Role, Choices: staffRoles(), Required: true, Wide: true})
	}
	return fields
}

func (h *Handler) renderRegister(c echo.Context, status int, v RegisterView, errs form.FieldErrors) error {
	fv := form.View{Fields: v.Fields}
	if rest := fv.Annotate(errs); len(rest) > 0 && v.Error == "" {
		v.Error = rest[0]
	}
	v.Fields = fv.Fields
	return h.shell.Render(c, status, "register", v.Heading, v)
}

func staffView(reg session.Registration, action, cancel string) RegisterView {
	return RegisterView{
		Heading:   "Registro de personal",
		Intro:     "La cuenta queda pendiente hasta que un administrador la active.",
		Action:    action,
		CancelURL: cancel,
		Fields:    registerFields(reg, true),
	}
}

func (h *Handler) RegisterStaffForm(c echo.Context) error {
	reg := session.Registration{Role: string(session.RoleTechnician)}
	return h.renderRegister(c, http.StatusOK, staffView(reg, registerPath, auth.LoginPath), nil)
}

func (h *Handler) RegisterStaff(c echo.Context) error {
	return h.registerStaff(c, registerPath, auth.LoginPath, auth.LoginPath)
}

func (h *Handler) NewUser(c echo.Context) error {
	reg := session.Registration{Role: string(session.RoleTechnician)}
	v := staffView(reg, usersPath, usersPath)
	v.Heading = "Nuevo usuario"
	v.Intro = ""
	return h.renderRegister(c, http.StatusOK, v, nil)
}

func (h *Handler) CreateUser(c echo.Context) error {
	return h.registerStaff(c, usersPath, usersPath, usersPath)
}

func (h *Handler) registerStaff(c echo.Context, action, cancel, done string) error {
	var reg session.Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v := staffView(reg, action, cancel)
	if action == usersPath {
		v.Heading, v.Intro = "Nuevo usuario", ""
	}
	user, err := h.store.RegisterStaff(c.Request().Context(), reg)
	var fe validation.FieldErrors
	switch {
	case err == nil:
	case errors.As(err, &fe):
		return h.renderRegister(c, http.StatusUnprocessableEntity, v, fe)
	case errors.Is(err, gateway.ErrUnauthorized) && auth.SessionFrom(c) != nil:
		return err
	default:
		v.Error = "No se pudo registrar: " + gateway.Detail(err)
		return h.renderRegister(c, http.StatusBadGateway, v, nil)
	}
	h.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("staff account registered")
	shell.Success(c, "Cuenta creada para "+user.Email+". Queda pendiente de activación.")
	return shell.SeeOther(c, done)
}

func patientView(reg session.Registration) RegisterView {
	return RegisterView{
		Heading:   "Registro de paciente",
		Intro:     "Cree su cuenta para consultar sus citas, estudios e informes.",
		Action:    registerPatientPath,
		CancelURL: auth.LoginPath,
		Fields:    registerFields(reg, false),
	}
}

func (h *Handler) RegisterPatientForm(c echo.Context) error {
	return h.renderRegister(c, http.StatusOK, patientView(session.Registration{}), nil)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var reg session.Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.store.RegisterPatient(c.Request().Context(), auth.SessionID(c), reg)
	var fe validation.FieldErrors
	switch {
	case err == nil:
	case errors.As(err, &fe):
		return h.renderRegister(c, http.StatusUnprocessableEntity, patientView(reg), fe)
	default:
		v := patientView(reg)
		v.Error = "No se pudo registrar: " + gateway.Detail(err)
		return h.renderRegister(c, http.StatusBadGateway, v, nil)
	}
	auth.SetCookie(c, sess, h.secure)
	auth.SetSession(c, h.store, sess)
	shell.Success(c, "Bienvenido, "+sess.User.FullName())
	return shell.SeeOther(c, "/")
}
