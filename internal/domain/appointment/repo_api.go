package appointment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath   = "api/citas"
	fetchLimit = 1000
)

type apiRepo struct {
	gw *gateway.Client
}

// NewAPIRepo returns a Repository backed by the clinical REST API.
func NewAPIRepo(gw *gateway.Client) Repository {
	return &apiRepo{gw: gw}
}

func itemPath(id string) string {
	return basePath + "/" + url.PathEscape(id)
}

func (r *apiRepo) List(ctx context.Context, params gateway.Params) ([]Appointment, error) {
	q := gateway.Params{"limit": fetchLimit}
	for k, v := range params {
		q[k] = v
	}
	var out []Appointment
	if err := r.gw.Get(ctx, basePath, q, &out); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

func (r *apiRepo) Get(ctx context.Context, id string) (*Appointment, error) {
	var out Appointment
	if err := r.gw.Get(ctx, itemPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Create(ctx context.Context, p Payload) (*Appointment, error) {
	var out Appointment
	if err := r.gw.Post(ctx, basePath, p, &out); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return &out, nil
}

func (r *apiRepo) Update(ctx context.Context, id string, p Payload) (*Appointment, error) {
	var out Appointment
	if err := r.gw.Put(ctx, itemPath(id), p, &out); err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	return &out, nil
}

// SetStatus sends a partial update carrying only the status.
func (r *apiRepo) SetStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	var out Appointment
	body := map[string]string{"estado": string(status)}
	if err := r.gw.Put(ctx, itemPath(id), body, &out); err != nil {
		return nil, fmt.Errorf("set appointment %s status: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) SetAttendance(ctx context.Context, id string, attended bool) error {
	params := gateway.Params{"asistio": attended}
	if err := r.gw.PutParams(ctx, itemPath(id)+"/asistencia", params, nil, nil); err != nil {
		return fmt.Errorf("set appointment %s attendance: %w", id, err)
	}
	return nil
}

func (r *apiRepo) Cancel(ctx context.Context, id string) error {
	if err := r.gw.Delete(ctx, itemPath(id), nil); err != nil {
		return fmt.Errorf("cancel appointment %s: %w", id, err)
	}
	return nil
}
