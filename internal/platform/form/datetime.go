package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/radconsole/pkg/jsontime"
)

// MergeDateTime joins a date picker value ("2006-01-02") and a time picker
// value ("15:04") into one timestamp in loc.
func MergeDateTime(date, hhmm string, loc *time.Location) (time.Time, error) {
	date, hhmm = strings.TrimSpace(date), strings.TrimSpace(hhmm)
	if loc == nil {
		loc = jsontime.Location()
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("la fecha es obligatoria")
	}
	if hhmm == "" {
		hhmm = "00:00"
	}
	t, err := time.ParseInLocation(jsontime.DateLayout+" 15:04", date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha u hora no válida %q %q", date, hhmm)
	}
	return t, nil
}

// SplitDateTime is the inverse of MergeDateTime, used to fill an edit form.
// A zero time gives two empty strings.
func SplitDateTime(t time.Time, loc *time.Location) (date, hhmm string) {
	if t.IsZero() {
		return "", ""
	}
	if loc == nil {
		loc = jsontime.Location()
	}
	t = t.In(loc)
	return t.Format(jsontime.DateLayout), t.Format("15:04")
}
