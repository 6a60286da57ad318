package appointment

import (
	"context"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

// Repository is the appointment client. The backend never removes an
// appointment; Cancel marks it cancelled.
type Repository interface {
	List(ctx context.Context, params gateway.Params) ([]Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Create(ctx context.Context, p Payload) (*Appointment, error)
	Update(ctx context.Context, id string, p Payload) (*Appointment, error)
	SetStatus(ctx context.Context, id string, status Status) (*Appointment, error)
	SetAttendance(ctx context.Context, id string, attended bool) error
	Cancel(ctx context.Context, id string) error
}
