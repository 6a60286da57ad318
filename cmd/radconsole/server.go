package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/config"
	"github.com/ehr/radconsole/internal/domain/account"
	"github.com/ehr/radconsole/internal/domain/appointment"
	"github.com/ehr/radconsole/internal/domain/dicom"
	"github.com/ehr/radconsole/internal/domain/notification"
	"github.com/ehr/radconsole/internal/domain/patient"
	"github.com/ehr/radconsole/internal/domain/report"
	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/db"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/middleware"
	"github.com/ehr/radconsole/internal/platform/prefs"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/internal/platform/shell"
	"github.com/ehr/radconsole/pkg/jsontime"
)

const (
	defaultBodyLimit = 1 << 20
	uploadKeep       = 10 * time.Minute
	purgeEvery       = 15 * time.Minute
)

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	jsontime.SetLocation(cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persister, pool, err := openPersister(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session storage")
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("sessions stored in postgres")
	}

	e, store, err := buildServer(ctx, cfg, logger, persister, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	go purgeSessions(ctx, store, logger)

	var handler http.Handler = handlers.CompressHandler(e)
	if cfg.TrustProxy {
		handler = handlers.ProxyHeaders(handler)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("api", cfg.APIBaseURL).Str("version", version).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildServer wires the gateway, the session store, every domain and the
// echo middleware chain.
func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, persister session.Persister, pool *pgxpool.Pool) (*echo.Echo, *session.Store, error) {
	var store *session.Store
	gw := gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.APITimeout),
		gateway.WithLogger(logger.With().Str("component", "gateway").Logger()),
		gateway.WithUnauthorizedHook(func(ctx context.Context) { store.HandleUnauthorized(ctx) }),
	)
	store, err := session.NewStore(ctx, gw, persister,
		session.WithLogger(logger.With().Str("component", "session").Logger()))
	if err != nil {
		return nil, nil, err
	}

	views := listview.NewRegistry()
	store.Subscribe(func(ev session.Event) {
		if ev.Session == nil {
			views.Forget(ev.ID)
		}
	})
	gate := form.NewGate()

	renderer, err := shell.NewRenderer()
	if err != nil {
		return nil, nil, err
	}
	sh := &shell.Shell{
		Sidebar:     prefs.Sidebar{Secure: cfg.CookieSecure},
		SessionFrom: auth.SessionFrom,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = shell.ErrorHandler(sh, cfg.CookieSecure, logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.CookieSecure))
	e.Use(middleware.BodyLimitBytes(defaultBodyLimit, cfg.UploadMaxBytes, dicom.UploadPrefix))
	e.Use(auth.Loader(store, cfg.CookieSecure))
	e.Use(auth.Guard(auth.GuardConfig{}))

	shell.RegisterStatic(e)
	e.GET("/healthz", db.HealthHandler(version, pool))

	g := e.Group("")
	sh.Sidebar.RegisterRoutes(g)

	// Repositories
	patientRepo := patient.NewAPIRepo(gw)
	studyRepo := study.NewAPIRepo(gw)
	appointmentRepo := appointment.NewAPIRepo(gw)
	reportRepo := report.NewAPIRepo(gw)
	notificationRepo := notification.NewAPIRepo(gw)
	dicomRepo := dicom.NewAPIRepo(gw)

	// Services
	patientSvc := patient.NewService(patientRepo, views)
	studySvc := study.NewService(studyRepo, views)
	appointmentSvc := appointment.NewService(appointmentRepo, views)
	reportSvc := report.NewService(reportRepo, views, studySvc, gw,
		report.WithLogger(logger.With().Str("component", "report").Logger()))
	notificationSvc := notification.NewService(notificationRepo, views)
	dicomSvc := dicom.NewService(dicomRepo, dicom.NewTracker(uploadKeep),
		dicom.WithLogger(logger.With().Str("component", "dicom").Logger()))

	home := account.NewHome([]account.Card{
		{Label: "Citas de hoy", Link: "/citas", Roles: session.FrontDesk, Count: func(ctx context.Context) (int, error) {
			return appointmentSvc.Today(ctx, time.Now())
		}},
		{Label: "Estudios pendientes", Link: "/estudios", Roles: session.Staff, Count: studySvc.Pending},
		{Label: "Archivos DICOM", Link: "/dicom", Roles: session.Imaging},
		{Label: "Informes", Link: "/informes", Roles: session.MedicalStaff},
		{Label: "Notificaciones sin leer", Link: "/notificaciones"},
	}, notificationSvc, logger)

	// Handlers
	loginLimit := middleware.RateLimit(middleware.LoginRateLimitConfig())
	account.NewHandler(store, sh, account.NewAPIUsers(gw), home, cfg.CookieSecure, logger).RegisterRoutes(e, g, loginLimit)
	patient.NewHandler(patientSvc, sh, gate).RegisterRoutes(g)
	study.NewHandler(studySvc, patientSvc, sh, gate).RegisterRoutes(g)
	appointment.NewHandler(appointmentSvc, patientSvc, sh, gate).RegisterRoutes(g)
	report.NewHandler(reportSvc, studySvc, sh, gate).RegisterRoutes(g)
	notification.NewHandler(notificationSvc, patientSvc, sh, gate).RegisterRoutes(g)
	dicom.NewHandler(dicomSvc, sh).RegisterRoutes(g)

	return e, store, nil
}

// purgeSessions drops expired sessions until ctx ends.
func purgeSessions(ctx context.Context, store *session.Store, logger zerolog.Logger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("purge expired sessions")
				continue
			}
			if n > 0 {
				logger.Info().Int("sessions", n).Msg("expired sessions purged")
			}
		}
	}
}
