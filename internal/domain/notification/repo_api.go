package notification

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath   = "api/notificaciones"
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

// List reads the whole collection, or one patient's notifications when
// params carries paciente_id.
func (r *apiRepo) List(ctx context.Context, params gateway.Params) ([]Notification, error) {
	path := basePath
	q := gateway.Params{"limit": fetchLimit}
	for k, v := range params {
		if k == "paciente_id" {
			if id, _ := v.(string); id != "" {
				path = "api/pacientes/" + url.PathEscape(id) + "/notificaciones"
			}
			continue
		}
		q[k] = v
	}
	var out []Notification
	if err := r.gw.Get(ctx, path, q, &out); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (r *apiRepo) Get(ctx context.Context, id string) (*Notification, error) {
	var out Notification
	if err := r.gw.Get(ctx, itemPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Create(ctx context.Context, p Payload) (*Notification, error) {
	var out Notification
	if err := r.gw.Post(ctx, basePath, p, &out); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &out, nil
}

func (r *apiRepo) Update(ctx context.Context, id string, p Payload) (*Notification, error) {
	var out Notification
	if err := r.gw.Put(ctx, itemPath(id), p, &out); err != nil {
		return nil, fmt.Errorf("update notification %s: %w", id, err)
	}
	return &out, nil
}

func (r *apiRepo) Delete(ctx context.Context, id string) error {
	if err := r.gw.Delete(ctx, itemPath(id), nil); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

func (r *apiRepo) MarkRead(ctx context.Context, id string) error {
	body := map[string]bool{"leida": true}
	if err := r.gw.Put(ctx, itemPath(id), body, nil); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (r *apiRepo) Resend(ctx context.Context, id string) error {
	if err := r.gw.Post(ctx, itemPath(id)+"/reenviar", nil, nil); err != nil {
		return fmt.Errorf("resend notification %s: %w", id, err)
	}
	return nil
}
