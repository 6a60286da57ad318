package study

import (
	"context"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

// Repository is the study client.
type Repository interface {
	List(ctx context.Context, params gateway.Params) ([]Study, error)
	Get(ctx context.Context, id string) (*Study, error)
	Create(ctx context.Context, p Payload) (*Study, error)
	Update(ctx context.Context, id string, p Payload) (*Study, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) (*Study, error)
}
