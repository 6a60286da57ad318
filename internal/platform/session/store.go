// Package session holds each browser's authenticated identity: the bearer
// token issued by the backend and the user it belongs to. The pair lives in
// one record that is persisted before it becomes visible, so memory and
// storage never disagree about who is logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/validation"
)

const (
	loginPath           = "api/auth/login"
	registerPath        = "api/auth/register"
	registerPatientPath = "api/auth/register-patient"
	mePath              = "api/auth/me"
)

// ErrNoSession is returned for unknown or expired session ids.
var ErrNoSession = errors.New("no session")

// API is the slice of the gateway the store needs.
type API interface {
	Get(ctx context.Context, path string, params gateway.Params, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Event describes a session change. Session is nil on logout.
type Event struct {
	ID      string
	Session *Session
}

type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	persist   Persister
	api       API
	logger    zerolog.Logger
	now       func() time.Time
	listeners []func(Event)
}

type StoreOption func(*Store)

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore restores persisted sessions once; after that the in-memory map
// is the read path and the persister is written on every change.
func NewStore(ctx context.Context, api API, p Persister, opts ...StoreOption) (*Store, error) {
	s := &Store{
		sessions: make(map[string]*Session),
		persist:  p,
		api:      api,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	list, err := p.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	for _, sess := range list {
		s.sessions[sess.ID] = sess
	}
	s.logger.Info().Int("sessions", len(list)).Msg("sessions restored")
	return s, nil
}

// Subscribe registers fn for every login, refresh and logout. Listeners run
// synchronously after the change is committed.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns a copy of the live session for id.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Expired(s.now()) {
		return nil, false
	}
	return sess.clone(), true
}

// HasRole is true iff a live session exists and its role is in roles.
func (s *Store) HasRole(id string, roles ...Role) bool {
	sess, ok := s.Get(id)
	return ok && sess.HasRole(roles...)
}

// Login authenticates against the backend and stores the token and user
// under a fresh session id. Any session under previousID is dropped.
func (s *Store) Login(ctx context.Context, previousID string, cred Credentials) (*Session, error) {
	if err := validation.Struct(cred); err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := s.api.Post(ctx, loginPath, cred, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.establish(ctx, previousID, &resp)
}

// RegisterPatient runs the self-registration flow, which logs the patient in.
func (s *Store) RegisterPatient(ctx context.Context, previousID string, reg Registration) (*Session, error) {
	if err := validation.Struct(reg); err != nil {
		return nil, err
	}
	reg.Role = RolePatient.Wire()
	var resp AuthResponse
	if err := s.api.Post(ctx, registerPatientPath, reg, &resp); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	return s.establish(ctx, previousID, &resp)
}

// RegisterStaff submits a staff account for activation by an administrator.
// No session is created.
func (s *Store) RegisterStaff(ctx context.Context, reg Registration) (*User, error) {
	if err := validation.Struct(reg); err != nil {
		return nil, err
	}
	role, err := ParseRole(reg.Role)
	if err != nil {
		return nil, validation.FieldErrors{"role": "no es válido"}
	}
	if role == RolePatient {
		return nil, validation.FieldErrors{"role": "los pacientes se registran desde el alta de pacientes"}
	}
	reg.Role = role.Wire()
	var user User
	if err := s.api.Post(ctx, registerPath, reg, &user); err != nil {
		return nil, fmt.Errorf("register staff: %w", err)
	}
	return &user, nil
}

// Refresh re-reads the user profile, keeping the current token.
func (s *Store) Refresh(ctx context.Context, id string) (*Session, error) {
	sess, ok := s.Get(id)
	if !ok {
		return nil, ErrNoSession
	}
	var user User
	if err := s.api.Get(s.Context(ctx, sess), mePath, nil, &user); err != nil {
		return nil, fmt.Errorf("refresh user: %w", err)
	}
	sess.User = user
	if err := s.commit(ctx, sess, ""); err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Logout removes the session from storage and memory.
func (s *Store) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	if err := s.persist.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("logout: %w", err)
	}
	delete(s.sessions, id)
	listeners := s.listeners
	s.mu.Unlock()

	s.logger.Info().Str("session", shortID(id)).Msg("session ended")
	notify(listeners, Event{ID: id})
	return nil
}

// HandleUnauthorized ends the session carried by ctx. It is the gateway's
// 401 hook.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	id := IDFromContext(ctx)
	if id == "" {
		return
	}
	if err := s.Logout(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error().Err(err).Str("session", shortID(id)).Msg("logout after 401 failed")
	}
}

// Purge drops expired sessions and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	s.mu.RLock()
	now := s.now()
	var expired []string
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		if err := s.Logout(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// Context returns ctx carrying the session's token and id for gateway calls.
func (s *Store) Context(ctx context.Context, sess *Session) context.Context {
	if sess == nil {
		return ctx
	}
	ctx = gateway.WithToken(ctx, sess.Token)
	return WithID(ctx, sess.ID)
}

func (s *Store) establish(ctx context.Context, previousID string, resp *AuthResponse) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Token:     resp.AccessToken,
		User:      resp.User,
		ExpiresAt: tokenExpiry(resp.AccessToken, resp.ExpiresIn, now),
		CreatedAt: now,
	}
	if err := s.commit(ctx, sess, previousID); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("session", shortID(sess.ID)).
		Str("user_id", sess.User.ID).
		Str("role", string(sess.User.Role)).
		Msg("session started")
	return sess.clone(), nil
}

// commit persists sess and only then swaps it into memory. replaced, when
// set, is removed in the same critical section.
func (s *Store) commit(ctx context.Context, sess *Session, replaced string) error {
	s.mu.Lock()
	if err := s.persist.Save(ctx, sess); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	s.sessions[sess.ID] = sess.clone()

	var removed bool
	if replaced != "" && replaced != sess.ID {
		if _, ok := s.sessions[replaced]; ok {
			if err := s.persist.Delete(ctx, replaced); err != nil {
				s.logger.Warn().Err(err).Str("session", shortID(replaced)).Msg("failed to drop replaced session")
			} else {
				delete(s.sessions, replaced)
				removed = true
			}
		}
	}
	listeners := s.listeners
	s.mu.Unlock()

	if removed {
		notify(listeners, Event{ID: replaced})
	}
	notify(listeners, Event{ID: sess.ID, Session: sess.clone()})
	return nil
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type idKey struct{}

// WithID stores the session id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFromContext returns the session id stored by WithID.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}
