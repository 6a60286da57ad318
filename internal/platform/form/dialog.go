// Package form is the record-dialog pattern: one payload, opened either
// empty (create) or from an existing record (edit), validated locally
// before anything is sent, and guarded against double submission.
package form

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ehr/radconsole/internal/platform/validation"
)

// FieldErrors maps form field names to messages.
type FieldErrors = validation.FieldErrors

// ErrSaveInFlight is returned by Save while an earlier save is running.
var ErrSaveInFlight = errors.New("form: save already in progress")

// ErrClosed is returned by Save after the dialog was saved or cancelled.
var ErrClosed = errors.New("form: dialog is closed")

// Mode is create or edit.
type Mode int

const (
	Create Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "create"
}

// Checker is implemented by inputs with rules that span several fields.
type Checker interface {
	Check() FieldErrors
}

// Backend is what a dialog submits to.
type Backend[In, Out any] interface {
	Create(ctx context.Context, in In) (Out, error)
	Update(ctx context.Context, id string, in In) (Out, error)
}

// Dialog holds one form's payload and outcome.
type Dialog[In, Out any] struct {
	ID      string
	Input   In
	backend Backend[In, Out]
	gate    *Gate
	gateKey string

	busy   atomic.Bool
	mu     sync.Mutex
	closed bool
	result Out
	err    error
}

// Option configures a Dialog.
type Option func(*dialogOpts)

type dialogOpts struct {
	gate *Gate
	key  string
}

// WithGate shares the in-flight guard across dialogs with the same key, so
// a second HTTP submission of the same form waits its turn as a no-op.
func WithGate(g *Gate, key string) Option {
	return func(o *dialogOpts) { o.gate, o.key = g, key }
}

// Open returns a dialog in edit mode when id is set and create mode
// otherwise.
func Open[In, Out any](backend Backend[In, Out], id string, in In, opts ...Option) *Dialog[In, Out] {
	var o dialogOpts
	for _, opt := range opts {
		opt(&o)
	}
	return &Dialog[In, Out]{ID: id, Input: in, backend: backend, gate: o.gate, gateKey: o.key}
}

// Mode reports create or edit.
func (d *Dialog[In, Out]) Mode() Mode {
	if d.ID != "" {
		return Edit
	}
	return Create
}

// Validate runs the field rules and any cross-field Check.
func (d *Dialog[In, Out]) Validate() FieldErrors {
	errs := FieldErrors{}
	if err := validation.Struct(d.Input); err != nil {
		var fe FieldErrors
		if !errors.As(err, &fe) {
			errs["_"] = err.Error()
			return errs
		}
		for k, v := range fe {
			errs[k] = v
		}
	}
	if c, ok := any(d.Input).(Checker); ok {
		for k, v := range c.Check() {
			if _, dup := errs[k]; !dup {
				errs[k] = v
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Save validates and submits. Invalid input returns FieldErrors without
// calling the backend. A save already running returns ErrSaveInFlight. On
// success the dialog closes and the server's object is returned; on
// failure it stays open with the error recorded so the user can retry.
func (d *Dialog[In, Out]) Save(ctx context.Context) (Out, error) {
	var zero Out
	if !d.busy.CompareAndSwap(false, true) {
		return zero, ErrSaveInFlight
	}
	defer d.busy.Store(false)
	if d.gate != nil {
		if !d.gate.Enter(d.gateKey) {
			return zero, ErrSaveInFlight
		}
		defer d.gate.Leave(d.gateKey)
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return zero, ErrClosed
	}

	if fe := d.Validate(); fe != nil {
		d.record(zero, fe, false)
		return zero, fe
	}

	var (
		out Out
		err error
	)
	if d.Mode() == Edit {
		out, err = d.backend.Update(ctx, d.ID, d.Input)
	} else {
		out, err = d.backend.Create(ctx, d.Input)
	}
	d.record(out, err, err == nil)
	return out, err
}

// Cancel closes the dialog without touching the backend.
func (d *Dialog[In, Out]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed reports whether the dialog was saved or cancelled.
func (d *Dialog[In, Out]) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Err is the last save's error, nil after a successful save.
func (d *Dialog[In, Out]) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Result is the server's object from the successful save.
func (d *Dialog[In, Out]) Result() Out {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

func (d *Dialog[In, Out]) record(out Out, err error, closeIt bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	if closeIt {
		d.result = out
		d.closed = true
	}
}

// Gate tracks which form keys have a save running.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{busy: make(map[string]struct{})}
}

// Enter marks key busy, false if it already was.
func (g *Gate) Enter(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

// Leave clears key.
func (g *Gate) Leave(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, key)
}
