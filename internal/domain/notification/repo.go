package notification

import (
	"context"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

// Repository is the notification client.
type Repository interface {
	List(ctx context.Context, params gateway.Params) ([]Notification, error)
	Get(ctx context.Context, id string) (*Notification, error)
	Create(ctx context.Context, p Payload) (*Notification, error)
	Update(ctx context.Context, id string, p Payload) (*Notification, error)
	Delete(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
	Resend(ctx context.Context, id string) error
}
