package report

import (
	"context"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

// Repository is the report client.
type Repository interface {
	List(ctx context.Context, params gateway.Params) ([]Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	Create(ctx context.Context, p Payload) (*Report, error)
	Update(ctx context.Context, id string, p Payload) (*Report, error)
	Delete(ctx context.Context, id string) error
	SetImages(ctx context.Context, id string, images []Image) (*Report, error)
}
