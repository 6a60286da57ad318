// Package jsontime reads and writes the backend's timestamps. The backend
// sends naive ISO-8601 values ("2024-01-15T23:00:00") that mean wall-clock
// time in the clinic's zone, plus the occasional RFC 3339 value and bare
// dates.
package jsontime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// Layout is how timestamps are written back to the backend.
	Layout = "2006-01-02T15:04:05"
	// DateLayout is the calendar-day form used by date fields and filters.
	DateLayout = "2006-01-02"
)

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	Layout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DateLayout,
}

var location atomic.Pointer[time.Location]

func init() {
	location.Store(time.Local)
}

// SetLocation sets the zone naive timestamps are read and written in.
func SetLocation(loc *time.Location) {
	if loc != nil {
		location.Store(loc)
	}
}

// Location returns the zone set by SetLocation, time.Local by default.
func Location() *time.Location {
	return location.Load()
}

// Parse reads any of the backend's timestamp forms. Values without an
// offset are taken in Location().
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := Location()
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("jsontime: unrecognised timestamp %q", s)
}

// Time is a timestamp that tolerates every backend format and null.
type Time struct {
	time.Time
}

// New wraps t.
func New(t time.Time) Time { return Time{Time: t} }

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("jsontime: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.In(Location()).Format(Layout))
}

// Date is the calendar day in Location(), "" when unset.
func (t Time) Date() string {
	if t.IsZero() {
		return ""
	}
	return t.In(Location()).Format(DateLayout)
}

// Clock is the HH:MM part in Location(), "" when unset.
func (t Time) Clock() string {
	if t.IsZero() {
		return ""
	}
	return t.In(Location()).Format("15:04")
}

// Display renders the value for tables.
func (t Time) Display() string {
	if t.IsZero() {
		return ""
	}
	return t.In(Location()).Format("02/01/2006 15:04")
}

// DisplayDate renders only the day for tables.
func (t Time) DisplayDate() string {
	if t.IsZero() {
		return ""
	}
	return t.In(Location()).Format("02/01/2006")
}

// Day is a calendar date with no time of day. It is written as
// "2006-01-02".
type Day struct {
	Time
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Date())
}
