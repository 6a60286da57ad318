package study

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath   = "api/estudios"
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

func (r *apiRepo) List(ctx context.Context, params gateway.Params) ([]Study, error) {
	q := gateway.Params{"limit": fetchLimit}
	for k, v := range params {
		q[k] = v
	}
	var out []Study
	if err := r.gw.Get(ctx, basePath, q, &out); err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return out, nil
}

func (r *apiRepo) Get(ctx context.Context, id string) (*Study, error) {
	var out Study
	if err := r.gw.Get(ctx, itemPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get study %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Create(ctx context.Context, p Payload) (*Study, error) {
	var out Study
	if err := r.gw.Post(ctx, basePath, p, &out); err != nil {
		return nil, fmt.Errorf("create study: %w", err)
	}
	return &out, nil
}

func (r *apiRepo) Update(ctx context.Context, id string, p Payload) (*Study, error) {
	var out Study
	if err := r.gw.Put(ctx, itemPath(id), p, &out); err != nil {
		return nil, fmt.Errorf("update study %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Delete(ctx context.Context, id string) error {
	if err := r.gw.Delete(ctx, itemPath(id), nil); err != nil {
		return fmt.Errorf("delete study %s: %w", id, err)
	}
	return nil
}

// SetStatus uses the backend's status endpoint, which takes the new value
// as a query parameter.
func (r *apiRepo) SetStatus(ctx context.Context, id string, status Status) (*Study, error) {
	var out Study
	params := gateway.Params{"estado": string(status)}
	if err := r.gw.PutParams(ctx, itemPath(id)+"/estado", params, nil, &out); err != nil {
		return nil, fmt.Errorf("set study %s status: %w", id, err)
	}
	return &out, nil
}
