package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/pkg/jsontime"
)

type mockRepo struct {
	mu         sync.Mutex
	items      map[string]*Notification
	next       int
	lastParams gateway.Params
	failRead   map[string]bool
	resent     []string
	lists      int
	// ignoreScope answers as a backend that drops the paciente_id param.
	ignoreScope bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*Notification), failRead: map[string]bool{}}
}

func (m *mockRepo) add(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := n
	m.items[n.ID] = &cp
}

func (m *mockRepo) List(ctx context.Context, params gateway.Params) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastParams = params
	m.lists++
	pid, _ := params["paciente_id"].(string)
	if m.ignoreScope {
		pid = ""
	}
	var out []Notification
	for _, n := range m.items {
		if pid != "" && n.PatientID != pid {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) Create(ctx context.Context, p Payload) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	n := &Notification{ID: fmt.Sprintf("n%d", m.next), Type: p.Type, Title: p.Title,
		Message: p.Message, Priority: p.Priority, Recipient: p.Recipient, PatientID: p.PatientID}
	m.items[n.ID] = n
	cp := *n
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, id string, p Payload) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	n.Title, n.Message, n.Priority = p.Title, p.Message, p.Priority
	cp := *n
	return &cp, nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("not found")
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead[id] {
		return &gateway.APIError{Status: 500, Detail: "boom"}
	}
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	n.Read = true
	return nil
}

func (m *mockRepo) Resend(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resent = append(m.resent, id)
	return nil
}

func at(s string) jsontime.Time {
	t, _ := jsontime.Parse(s)
	return jsontime.New(t)
}

func seed(repo *mockRepo) {
	repo.add(Notification{ID: "1", Type: "Cita", Title: "Cita Programada", Message: "Mañana 10:00",
		Date: at("2024-01-15T09:00:00"), Priority: PriorityMedium, Recipient: "Juan Pérez", PatientID: "p1"})
	repo.add(Notification{ID: "2", Type: "Estudio", Title: "Estudio Completado", Message: "Listo",
		Date: at("2024-01-15T14:30:00"), Priority: PriorityHigh, Recipient: "Dr. Martínez"})
	repo.add(Notification{ID: "3", Type: "Informe", Title: "Informe Validado", Message: "Disponible",
		Date: at("2024-01-15T16:00:00"), Read: true, Priority: PriorityLow, PatientID: "p1"})
	repo.add(Notification{ID: "4", Type: "Sistema", Title: "Mantenimiento", Message: "Domingo",
		CreatedAt: at("2024-01-15T08:00:00"), Read: true, Priority: PriorityMedium})
}

func ids(items []Notification) string {
	var out []string
	for _, n := range items {
		out = append(out, n.ID)
	}
	return strings.Join(out, " ")
}

func TestService_ListFilters(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"all newest first", Query{}, "3 2 1 4"},
		{"type", Query{Type: "Cita"}, "1"},
		{"type all", Query{Type: "Todas"}, "3 2 1 4"},
		{"priority label", Query{Priority: "Media"}, "1 4"},
		{"unread only", Query{Read: UnreadOnly}, "2 1"},
		{"combined", Query{Priority: "media", Read: UnreadOnly}, "1"},
		{"patient scope", Query{PatientID: "p1"}, "3 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			seed(repo)
			svc := NewService(repo, listview.NewRegistry())
			v, err := svc.List(session.WithID(context.Background(), "s"), tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := ids(v.Items()); got != tt.want {
				t.Errorf("expected [%s], got [%s]", tt.want, got)
			}
		})
	}
}

func TestService_MarkAllReadContinuesPastFailures(t *testing.T) {
	repo := newMockRepo()
	seed(repo)
	repo.failRead["2"] = true
	svc := NewService(repo, listview.NewRegistry())

	n, err := svc.MarkAllRead(context.Background(), "")
	if err == nil {
		t.Error("expected joined error")
	}
	if n != 1 {
		t.Errorf("expected 1 marked, got %d", n)
	}
	if !repo.items["1"].Read {
		t.Error("expected notification 1 marked read")
	}
}

func TestService_Unread(t *testing.T) {
	repo := newMockRepo()
	seed(repo)
	svc := NewService(repo, listview.NewRegistry())

	items, total, err := svc.Unread(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 1 || items[0].ID != "2" {
		t.Errorf("expected newest of 2 unread, got %d %s", total, ids(items))
	}

	_, total, _ = svc.Unread(context.Background(), "p1", 5)
	if total != 1 {
		t.Errorf("expected 1 unread for patient, got %d", total)
	}
}

func TestService_PatientScopeIsReappliedLocally(t *testing.T) {
	repo := newMockRepo()
	repo.ignoreScope = true
	seed(repo)
	svc := NewService(repo, listview.NewRegistry())
	ctx := session.WithID(context.Background(), "s1")

	v, err := svc.List(ctx, Query{PatientID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(v.Items()); got != "3 1" {
		t.Errorf("expected only p1 notifications, got %s", got)
	}

	items, total, err := svc.Unread(ctx, "p1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "1" {
		t.Errorf("expected one unread p1 notification, got %d %v", total, items)
	}

	n, err := svc.MarkAllRead(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 marked, got %d", n)
	}
	if repo.items["2"].Read {
		t.Error("expected another recipient's notification left unread")
	}
}
