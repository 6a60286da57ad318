package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
)

const viewName = "pacientes"

// Query is the patient list's filter bar. Search is matched locally over
// name, surname, document number and email.
type Query struct {
	Search string `query:"search"`
}

// QueryFrom reads the filter bar from the request.
func QueryFrom(c echo.Context) Query {
	return Query{Search: strings.TrimSpace(c.QueryParam("search"))}
}

// Filter builds the local predicate set.
func (q Query) Filter() listview.Filter[Patient] {
	return listview.Filter[Patient]{
		listview.Contains(q.Search,
			func(p Patient) string { return p.Name },
			func(p Patient) string { return p.Surname },
			func(p Patient) string { return p.DocumentNumber },
			func(p Patient) string { return p.Email },
		),
	}
}

type Service struct {
	repo  Repository
	views *listview.Registry
}

func NewService(repo Repository, views *listview.Registry) *Service {
	return &Service{repo: repo, views: views}
}

// List refreshes the caller's patient view and returns this request's
// snapshot with q applied. The snapshot is returned even when the refresh
// fails so the last good set can be shown.
func (s *Service) List(ctx context.Context, q Query) (*listview.Snapshot[Patient], error) {
	v := listview.Lookup[Patient](s.views, session.IDFromContext(ctx), viewName)
	return v.Load(ctx, q.Filter(), func(ctx context.Context) ([]Patient, error) {
		items, err := s.repo.List(ctx, nil)
		if err != nil {
			return nil, err
		}
		listview.SortByText(items, false, Patient.FullName)
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.Get(ctx, id)
}

// Create and Update make the service a form.Backend for the patient dialog.
func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	return s.repo.Create(ctx, in.Payload())
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Patient, error) {
	return s.repo.Update(ctx, id, in.Payload())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("patient id is required")
	}
	return s.repo.Delete(ctx, id)
}

// Choices lists patients for pickers in other forms, labelled with name and
// document number.
func (s *Service) Choices(ctx context.Context) ([]form.Choice, error) {
	items, err := s.repo.List(ctx, gateway.Params{})
	if err != nil {
		return nil, err
	}
	listview.SortByText(items, false, Patient.FullName)
	out := make([]form.Choice, 0, len(items))
	for _, p := range items {
		label := p.FullName()
		if p.DocumentNumber != "" {
			label += " (" + p.DocumentNumber + ")"
		}
		out = append(out, form.Choice{Value: p.ID, Label: label})
	}
	return out, nil
}

var _ form.Backend[Input, *Patient] = (*Service)(nil)
