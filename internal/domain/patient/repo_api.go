package patient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath = "api/pacientes"
	// fetchLimit asks the backend for its whole list; paging is local.
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

func (r *apiRepo) List(ctx context.Context, params gateway.Params) ([]Patient, error) {
	q := gateway.Params{"limit": fetchLimit}
	for k, v := range params {
		q[k] = v
	}
	var out []Patient
	if err := r.gw.Get(ctx, basePath, q, &out); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return out, nil
}

func (r *apiRepo) Get(ctx context.Context, id string) (*Patient, error) {
	var out Patient
	if err := r.gw.Get(ctx, itemPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Create(ctx context.Context, p Payload) (*Patient, error) {
	var out Patient
	if err := r.gw.Post(ctx, basePath, p, &out); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return &out, nil
}

func (r *apiRepo) Update(ctx context.Context, id string, p Payload) (*Patient, error) {
	var out Patient
	if err := r.gw.Put(ctx, itemPath(id), p, &out); err != nil {
		return nil, fmt.Errorf("update patient %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Delete(ctx context.Context, id string) error {
	if err := r.gw.Delete(ctx, itemPath(id), nil); err != nil {
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	return nil
}
