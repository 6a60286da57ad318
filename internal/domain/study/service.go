package study

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

const viewName = "estudios"

// Query is the study list's filter bar. Status, study type and patient are
// sent to the backend and re-applied locally; the rest is local.
type Query struct {
	Search    string
	Status    string
	StudyType string
	PatientID string
	Modality  string
	Urgent    string
	Date      string
}

// QueryFrom reads the filter bar from the request.
func QueryFrom(c echo.Context) Query {
	return Query{
		Search:    strings.TrimSpace(c.QueryParam("search")),
		Status:    c.QueryParam("estado"),
		StudyType: c.QueryParam("tipo_estudio"),
		PatientID: c.QueryParam("paciente_id"),
		Modality:  c.QueryParam("modalidad"),
		Urgent:    c.QueryParam("urgente"),
		Date:      c.QueryParam("fecha"),
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
	if q.PatientID != "" {
		p["paciente_id"] = q.PatientID
	}
	return p
}

// Filter builds the local predicate set.
func (q Query) Filter() listview.Filter[Study] {
	return listview.Filter[Study]{
		listview.Contains(q.Search,
			Study.PatientFullName,
			func(s Study) string { return s.StudyType },
			func(s Study) string { return s.Instructions },
		),
		listview.EqualsNormalized(q.Status, NormalizeStatus, func(s Study) string { return string(s.Status) }),
		listview.Equals(q.StudyType, func(s Study) string { return s.StudyType }),
		listview.Equals(q.PatientID, func(s Study) string { return s.PatientID }),
		listview.Equals(q.Modality, func(s Study) string { return s.Modality }),
		listview.Bool(listview.ParseBool(q.Urgent), Study.IsUrgent),
		listview.SameDay(q.Date, jsontime.Location(), func(s Study) time.Time { return s.PerformedAt.Time }),
	}
}

type Service struct {
	repo  Repository
	views *listview.Registry
}

func NewService(repo Repository, views *listview.Registry) *Service {
	return &Service{repo: repo, views: views}
}

// List refreshes the caller's study view, newest request first.
func (s *Service) List(ctx context.Context, q Query) (*listview.Snapshot[Study], error) {
	v := listview.Lookup[Study](s.views, session.IDFromContext(ctx), viewName)
	return v.Load(ctx, q.Filter(), func(ctx context.Context) ([]Study, error) {
		items, err := s.repo.List(ctx, q.Params())
		if err != nil {
			return nil, err
		}
		listview.SortByTime(items, true, func(s Study) time.Time { return s.RequestedAt.Time })
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Study, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Study, error) {
	return s.repo.Create(ctx, in.Payload())
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Study, error) {
	return s.repo.Update(ctx, id, in.Payload())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("study id is required")
	}
	return s.repo.Delete(ctx, id)
}

// SetStatus accepts any known status spelling and sends the canonical one.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*Study, error) {
	st, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown study status %q", status)
	}
	return s.repo.SetStatus(ctx, id, st)
}

// Choices lists studies for the report form, optionally only one patient's.
func (s *Service) Choices(ctx context.Context, patientID string) ([]form.Choice, error) {
	params := gateway.Params{}
	if patientID != "" {
		params["paciente_id"] = patientID
	}
	items, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	listview.SortByTime(items, true, func(s Study) time.Time { return s.RequestedAt.Time })
	out := make([]form.Choice, 0, len(items))
	for _, st := range items {
		out = append(out, form.Choice{Value: st.ID, Label: st.Label()})
	}
	return out, nil
}

// Pending counts studies still waiting to be performed, for the home page.
// The caller's list view is left alone.
func (s *Service) Pending(ctx context.Context) (int, error) {
	q := Query{Status: string(StatusPending)}
	items, err := s.repo.List(ctx, q.Params())
	if err != nil {
		return 0, err
	}
	return len(q.Filter().Apply(items)), nil
}

var _ form.Backend[Input, *Study] = (*Service)(nil)
