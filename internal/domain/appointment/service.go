package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/pkg/jsontime"
)

const viewName = "citas"

// Query is the appointment list's filter bar. Date, status, study type and
// appointment type go to the backend and are re-applied locally; the
// search box is local.
type Query struct {
	Search          string
	Status          string
	StudyType       string
	AppointmentType string
	Date            string
}

// QueryFrom reads the filter bar from the request.
func QueryFrom(c echo.Context) Query {
	return Query{
		Search:          strings.TrimSpace(c.QueryParam("search")),
		Status:          c.QueryParam("estado"),
		StudyType:       c.QueryParam("tipo_estudio"),
		AppointmentType: c.QueryParam("tipo_cita"),
		Date:            strings.TrimSpace(c.QueryParam("fecha")),
	}
}

// Params is the server-side part of the query.
func (q Query) Params() gateway.Params {
	p := gateway.Params{}
	if !listview.IsAll(q.Status) {
		p["estado"] = NormalizeStatus(q.Status)
	}
	if !listview.IsAll(q.StudyType) {
		p["tipo_estudio"] = q.StudyType
	}
	if !listview.IsAll(q.AppointmentType) {
		p["tipo_cita"] = q.AppointmentType
	}
	if _, err := time.Parse(jsontime.DateLayout, q.Date); err == nil {
		p["fecha"] = q.Date
	}
	return p
}

// Filter builds the local predicate set.
func (q Query) Filter() listview.Filter[Appointment] {
	return listview.Filter[Appointment]{
		listview.Contains(q.Search,
			Appointment.PatientFullName,
			func(a Appointment) string { return a.StudyType },
			func(a Appointment) string { return a.Notes },
		),
		listview.EqualsNormalized(q.Status, NormalizeStatus, func(a Appointment) string { return string(a.Status) }),
		listview.Equals(q.StudyType, func(a Appointment) string { return a.StudyType }),
		listview.Equals(q.AppointmentType, func(a Appointment) string { return a.AppointmentType }),
		listview.SameDay(q.Date, jsontime.Location(), func(a Appointment) time.Time { return a.At.Time }),
	}
}

type Service struct {
	repo  Repository
	views *listview.Registry
}

func NewService(repo Repository, views *listview.Registry) *Service {
	return &Service{repo: repo, views: views}
}

// List refreshes the caller's appointment view, earliest first.
func (s *Service) List(ctx context.Context, q Query) (*listview.Snapshot[Appointment], error) {
	v := listview.Lookup[Appointment](s.views, session.IDFromContext(ctx), viewName)
	return v.Load(ctx, q.Filter(), func(ctx context.Context) ([]Appointment, error) {
		items, err := s.repo.List(ctx, q.Params())
		if err != nil {
			return nil, err
		}
		listview.SortByTime(items, false, func(a Appointment) time.Time { return a.At.Time })
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Appointment, error) {
	p, err := in.Payload()
	if err != nil {
		return nil, form.FieldErrors{"fecha": err.Error()}
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Appointment, error) {
	p, err := in.Payload()
	if err != nil {
		return nil, form.FieldErrors{"fecha": err.Error()}
	}
	return s.repo.Update(ctx, id, p)
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.SetStatus(ctx, id, StatusConfirmed)
}

// RecordAttendance stores whether the patient came. The backend marks a
// missed appointment as no-show.
func (s *Service) RecordAttendance(ctx context.Context, id string, attended bool) error {
	return s.repo.SetAttendance(ctx, id, attended)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("appointment id is required")
	}
	return s.repo.Cancel(ctx, id)
}

// Today counts the appointments on the current local day, for the home page.
func (s *Service) Today(ctx context.Context, now time.Time) (int, error) {
	day := now.In(jsontime.Location()).Format(jsontime.DateLayout)
	items, err := s.repo.List(ctx, gateway.Params{"fecha": day})
	if err != nil {
		return 0, err
	}
	return len(listview.Filter[Appointment]{
		listview.SameDay(day, jsontime.Location(), func(a Appointment) time.Time { return a.At.Time }),
	}.Apply(items)), nil
}

var _ form.Backend[Input, *Appointment] = (*Service)(nil)
