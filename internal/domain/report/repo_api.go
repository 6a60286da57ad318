package report

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath   = "api/informes"
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

func (r *apiRepo) List(ctx context.Context, params gateway.Params) ([]Report, error) {
	q := gateway.Params{"limit": fetchLimit}
	for k, v := range params {
		q[k] = v
	}
	var out []Report
	if err := r.gw.Get(ctx, basePath, q, &out); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (r *apiRepo) Get(ctx context.Context, id string) (*Report, error) {
	var out Report
	if err := r.gw.Get(ctx, itemPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Create(ctx context.Context, p Payload) (*Report, error) {
	var out Report
	if err := r.gw.Post(ctx, basePath, p, &out); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return &out, nil
}

func (r *apiRepo) Update(ctx context.Context, id string, p Payload) (*Report, error) {
	var out Report
	if err := r.gw.Put(ctx, itemPath(id), p, &out); err != nil {
		return nil, fmt.Errorf("update report %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Delete(ctx context.Context, id string) error {
	if err := r.gw.Delete(ctx, itemPath(id), nil); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	return nil
}

// SetImages is a partial update carrying only the image links.
func (r *apiRepo) SetImages(ctx context.Context, id string, images []Image) (*Report, error) {
	var out Report
	body := map[string][]Image{"imagenes_dicom": images}
	if err := r.gw.Put(ctx, itemPath(id), body, &out); err != nil {
		return nil, fmt.Errorf("set report %s images: %w", id, err)
	}
	return &out, nil
}
