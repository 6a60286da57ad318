package study

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/pkg/jsontime"
)

type mockRepo struct {
	mu         sync.Mutex
	items      map[string]*Study
	next       int
	lastParams gateway.Params
	// beforeList runs outside the lock, letting a test hold one fetch open.
	beforeList func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*Study)}
}

func (m *mockRepo) add(s Study) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.items[s.ID] = &cp
}

func (m *mockRepo) List(ctx context.Context, params gateway.Params) ([]Study, error) {
	m.mu.Lock()
	hook := m.beforeList
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastParams = params
	var out []Study
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Create(ctx context.Context, p Payload) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	s := &Study{
		ID: fmt.Sprintf("s%d", m.next), PatientID: p.PatientID, StudyType: p.StudyType,
		Modality: p.Modality, BodyPart: p.BodyPart, Status: p.Status, Priority: p.Priority,
		PerformedAt: p.PerformedAt, Urgent: p.Urgent,
	}
	m.items[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, id string, p Payload) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	s.StudyType, s.Modality, s.Status = p.StudyType, p.Modality, p.Status
	cp := *s
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

func (m *mockRepo) SetStatus(ctx context.Context, id string, st Status) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	s.Status = st
	cp := *s
	return &cp, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, listview.NewRegistry()), repo
}

func day(d, h int) jsontime.Time {
	return jsontime.New(time.Date(2024, 1, d, h, 0, 0, 0, jsontime.Location()))
}

func seed(repo *mockRepo) {
	repo.add(Study{ID: "1", PatientName: "Ana", PatientSurname: "Gómez", StudyType: "Radiografía", Modality: "RX",
		Status: StatusPending, RequestedAt: day(10, 8), PerformedAt: day(15, 9), Instructions: "control de fractura"})
	repo.add(Study{ID: "2", PatientName: "Bruno", StudyType: "Resonancia Magnética", Modality: "MR",
		Status: StatusCompleted, Priority: "urgente", RequestedAt: day(12, 8), PerformedAt: day(16, 9)})
	repo.add(Study{ID: "3", PatientName: "Carla", StudyType: "Ecografía", Modality: "US",
		Status: StatusCancelled, RequestedAt: day(11, 8)})
}

func ids(items []Study) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.ID
	}
	return out
}

func TestService_ListNewestFirst(t *testing.T) {
	svc, repo := newTestService()
	seed(repo)
	v, err := svc.List(session.WithID(context.Background(), "s1"), Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ids(v.Items())
	if fmt.Sprint(got) != "[2 3 1]" {
		t.Errorf("expected [2 3 1], got %v", got)
	}
}

func TestService_ListFilters(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"search patient", Query{Search: "gómez"}, "[1]"},
		{"search instructions", Query{Search: "FRACTURA"}, "[1]"},
		{"status canonical", Query{Status: "completado"}, "[2]"},
		{"status legacy label", Query{Status: "Programado"}, "[1]"},
		{"status all", Query{Status: "Todos"}, "[2 3 1]"},
		{"modality", Query{Modality: "US"}, "[3]"},
		{"urgent", Query{Urgent: "true"}, "[2]"},
		{"performed date", Query{Date: "2024-01-16"}, "[2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			seed(repo)
			v, _ := svc.List(context.Background(), tt.q)
			if got := fmt.Sprint(ids(v.Items())); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestService_ListSendsServerParams(t *testing.T) {
	svc, repo := newTestService()
	svc.List(context.Background(), Query{Status: "Completado", StudyType: "Ecografía", Search: "ana"})
	if repo.lastParams["estado"] != "completado" {
		t.Errorf("expected canonical estado param, got %v", repo.lastParams["estado"])
	}
	if repo.lastParams["tipo_estudio"] != "Ecografía" {
		t.Errorf("expected tipo_estudio param, got %v", repo.lastParams["tipo_estudio"])
	}
	if _, ok := repo.lastParams["search"]; ok {
		t.Error("expected free text to stay local")
	}
}

func TestService_PendingLeavesListViewAlone(t *testing.T) {
	svc, repo := newTestService()
	seed(repo)
	ctx := session.WithID(context.Background(), "s1")
	if _, err := svc.List(ctx, Query{Modality: "US"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := svc.Pending(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pending study, got %d", n)
	}
	v, _ := svc.List(ctx, Query{Modality: "US"})
	if got := fmt.Sprint(ids(v.Items())); got != "[3]" {
		t.Errorf("expected list filter untouched, got %s", got)
	}
}

func TestService_SetStatus(t *testing.T) {
	svc, repo := newTestService()
	seed(repo)
	s, err := svc.SetStatus(context.Background(), "1", "Completado")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusCompleted {
		t.Errorf("expected completado, got %s", s.Status)
	}
	if _, err := svc.SetStatus(context.Background(), "1", "archivado"); err == nil {
		t.Error("expected unknown status to fail before reaching the backend")
	}
}

func TestService_Choices(t *testing.T) {
	svc, repo := newTestService()
	seed(repo)
	got, err := svc.Choices(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastParams["paciente_id"] != "p1" {
		t.Error("expected patient filter sent")
	}
	if len(got) != 3 || got[0].Value != "2" {
		t.Errorf("unexpected choices %v", got)
	}
}

func TestService_OverlappingListsKeepTheirOwnFilter(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, listview.NewRegistry())
	repo.add(Study{ID: "a", Modality: "RX"})
	repo.add(Study{ID: "b", Modality: "CT"})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.beforeList = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	ctx := session.WithID(context.Background(), "s1")
	rx := make(chan []string)
	go func() {
		v, err := svc.List(ctx, Query{Modality: "RX"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		rx <- ids(v.Items())
	}()
	<-entered

	ct, err := svc.List(ctx, Query{Modality: "CT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)

	if got := fmt.Sprint(<-rx); got != "[a]" {
		t.Errorf("expected the RX request to render [a], got %s", got)
	}
	if got := fmt.Sprint(ids(ct.Items())); got != "[b]" {
		t.Errorf("expected the CT request to render [b], got %s", got)
	}
}
