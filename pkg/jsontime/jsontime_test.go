package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func withLocation(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := Location()
	SetLocation(loc)
	t.Cleanup(func() { SetLocation(prev) })
}

func TestTime_UnmarshalNaiveKeepsWallClock(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	withLocation(t, bogota)

	var v struct {
		At Time `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"2024-01-15T23:00:00"}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.At.Date() != "2024-01-15" || v.At.Clock() != "23:00" {
		t.Errorf("expected 2024-01-15 23:00, got %s %s", v.At.Date(), v.At.Clock())
	}
}

func TestTime_UnmarshalFormats(t *testing.T) {
	withLocation(t, time.UTC)
	tests := map[string]string{
		`"2024-01-15T08:30:00Z"`:              "2024-01-15 08:30",
		`"2024-01-15T08:30:00.123456"`:        "2024-01-15 08:30",
		`"2024-01-15T08:30"`:                  "2024-01-15 08:30",
		`"2024-01-15"`:                        "2024-01-15 00:00",
		`"2024-01-15T03:30:00-05:00"`:         "2024-01-15 08:30",
	}
	for in, want := range tests {
		var v Time
		if err := v.UnmarshalJSON([]byte(in)); err != nil {
			t.Errorf("%s: unexpected error: %v", in, err)
			continue
		}
		if got := v.Date() + " " + v.Clock(); got != want {
			t.Errorf("%s: got %s, want %s", in, got, want)
		}
	}
}

func TestTime_NullAndEmpty(t *testing.T) {
	for _, in := range []string{`null`, `""`} {
		v := New(time.Now())
		if err := v.UnmarshalJSON([]byte(in)); err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if !v.IsZero() {
			t.Errorf("%s: expected zero time", in)
		}
	}
	out, _ := json.Marshal(Time{})
	if string(out) != "null" {
		t.Errorf("expected null, got %s", out)
	}
}

func TestTime_Rejects(t *testing.T) {
	var v Time
	if err := v.UnmarshalJSON([]byte(`"15/01/2024"`)); err == nil {
		t.Error("expected error for unsupported layout")
	}
}

func TestTime_MarshalNaive(t *testing.T) {
	withLocation(t, time.UTC)
	v := New(time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC))
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `"2024-03-01T14:05:00"` {
		t.Errorf("unexpected encoding %s", out)
	}
	d, _ := json.Marshal(Day{Time: v})
	if string(d) != `"2024-03-01"` {
		t.Errorf("unexpected day encoding %s", d)
	}
}
