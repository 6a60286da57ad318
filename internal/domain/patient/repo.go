package patient

import (
	"context"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

type Repository interface {
	List(ctx context.Context, params gateway.Params) ([]Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, p Payload) (*Patient, error)
	Update(ctx context.Context, id string, p Payload) (*Patient, error)
	Delete(ctx context.Context, id string) error
}
