package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

func TestAPIRepo_Requests(t *testing.T) {
	var seen []string
	var statusBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/citas/c1":
			json.NewDecoder(r.Body).Decode(&statusBody)
			w.Write([]byte(`{"id":"c1","estado":"Confirmada"}`))
		default:
			w.Write([]byte(`{"message":"ok"}`))
		}
	}))
	defer srv.Close()

	repo := NewAPIRepo(gateway.New(srv.URL))
	ctx := context.Background()

	a, err := repo.SetStatus(ctx, "c1", StatusConfirmed)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if a.Status != StatusConfirmed || statusBody["estado"] != "confirmada" {
		t.Errorf("unexpected status round trip %s %v", a.Status, statusBody)
	}
	if err := repo.SetAttendance(ctx, "c1", false); err != nil {
		t.Fatalf("SetAttendance: %v", err)
	}
	if err := repo.Cancel(ctx, "c1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	want := []string{
		"PUT /api/citas/c1?",
		"PUT /api/citas/c1/asistencia?asistio=false",
		"DELETE /api/citas/c1?",
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("request %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}
