package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
)

const viewName = "notificaciones"

// ReadFilter values.
const (
	ShowAll    = ""
	UnreadOnly = "no_leidas"
)

// Query is the notification filter bar. Everything is filtered locally;
// PatientID narrows the fetch to one patient's notifications and is
// re-applied to what comes back.
type Query struct {
	Type      string
	Priority  string
	Read      string
	PatientID string
}

// QueryFrom reads the filter bar from the request.
func QueryFrom(c echo.Context) Query {
	return Query{
		Type:     c.QueryParam("tipo"),
		Priority: c.QueryParam("prioridad"),
		Read:     c.QueryParam("lectura"),
	}
}

func (q Query) Params() gateway.Params {
	p := gateway.Params{}
	if q.PatientID != "" {
		p["paciente_id"] = q.PatientID
	}
	return p
}

func (q Query) Filter() listview.Filter[Notification] {
	var unread *bool
	if q.Read == UnreadOnly {
		unread = new(bool)
	}
	return listview.Filter[Notification]{
		listview.Equals(q.Type, func(n Notification) string { return n.Type }),
		listview.EqualsNormalized(q.Priority, NormalizePriority, func(n Notification) string { return string(n.Priority) }),
		listview.Bool(unread, func(n Notification) bool { return n.Read }),
		listview.Equals(q.PatientID, func(n Notification) string { return n.PatientID }),
	}
}

type Service struct {
	repo  Repository
	views *listview.Registry
}

func NewService(repo Repository, views *listview.Registry) *Service {
	return &Service{repo: repo, views: views}
}

func byNewest(items []Notification) {
	listview.SortByTime(items, true, func(n Notification) time.Time { return n.At().Time })
}

// List refreshes the caller's notification view, newest first.
func (s *Service) List(ctx context.Context, q Query) (*listview.Snapshot[Notification], error) {
	v := listview.Lookup[Notification](s.views, session.IDFromContext(ctx), viewName)
	return v.Load(ctx, q.Filter(), func(ctx context.Context) ([]Notification, error) {
		items, err := s.repo.List(ctx, q.Params())
		if err != nil {
			return nil, err
		}
		byNewest(items)
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Notification, error) {
	return s.repo.Create(ctx, in.Payload())
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Notification, error) {
	return s.repo.Update(ctx, id, in.Payload())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("notification id is required")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) Resend(ctx context.Context, id string) error {
	return s.repo.Resend(ctx, id)
}

// MarkAllRead marks every unread notification in scope one by one and
// returns how many succeeded. Failures do not stop the loop; they are
// joined into the returned error.
func (s *Service) MarkAllRead(ctx context.Context, patientID string) (int, error) {
	scope := Query{PatientID: patientID}
	items, err := s.repo.List(ctx, scope.Params())
	if err != nil {
		return 0, err
	}
	items = scope.Filter().Apply(items)
	var (
		n    int
		errs []error
	)
	for _, it := range items {
		if it.Read {
			continue
		}
		if err := s.repo.MarkRead(ctx, it.ID); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return n, err
			}
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Unread returns the newest limit unread notifications and the total
// unread count, for the home page.
func (s *Service) Unread(ctx context.Context, patientID string, limit int) ([]Notification, int, error) {
	items, err := s.repo.List(ctx, Query{PatientID: patientID}.Params())
	if err != nil {
		return nil, 0, err
	}
	unread := Query{Read: UnreadOnly, PatientID: patientID}.Filter().Apply(items)
	byNewest(unread)
	total := len(unread)
	if limit > 0 && len(unread) > limit {
		unread = unread[:limit]
	}
	return unread, total, nil
}

var _ form.Backend[Input, *Notification] = (*Service)(nil)
