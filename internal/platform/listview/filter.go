package listview

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/ehr/radconsole/pkg/jsontime"
)

// Predicate reports whether a record passes one filter control.
type Predicate[T any] func(T) bool

// Filter is a conjunction of predicates. Nil predicates stand for controls
// left at "all" and are skipped.
type Filter[T any] []Predicate[T]

// Match reports whether item passes every predicate.
func (f Filter[T]) Match(item T) bool {
	for _, p := range f {
		if p != nil && !p(item) {
			return false
		}
	}
	return true
}

// Apply returns the matching records in their original order. The result
// never contains a record absent from items, and applying the same filter
// to its own output returns it unchanged.
func (f Filter[T]) Apply(items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Active reports whether any control is set.
func (f Filter[T]) Active() bool {
	for _, p := range f {
		if p != nil {
			return true
		}
	}
	return false
}

// Fold case-folds s for free-text comparison. Accents are kept: "pérez"
// matches "Pérez" but not "Perez".
func Fold(s string) string {
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(s)
}

// Contains matches when term is a case-insensitive substring of any field.
// A blank term matches everything.
func Contains[T any](term string, fields ...func(T) string) Predicate[T] {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	needle := Fold(term)
	return func(item T) bool {
		for _, f := range fields {
			if strings.Contains(Fold(f(item)), needle) {
				return true
			}
		}
		return false
	}
}

// IsAll reports whether a dropdown value means "no filter".
func IsAll(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "Todos", "Todas", "todos", "todas", "all":
		return true
	}
	return false
}

// Equals matches records whose field equals value exactly. "Todos",
// "Todas" and "" disable the control.
func Equals[T any](value string, field func(T) string) Predicate[T] {
	if IsAll(value) {
		return nil
	}
	return func(item T) bool {
		return field(item) == value
	}
}

// EqualsNormalized is Equals with both sides passed through norm first, for
// vocabularies the backend spells more than one way.
func EqualsNormalized[T any](value string, norm func(string) string, field func(T) string) Predicate[T] {
	if IsAll(value) {
		return nil
	}
	want := norm(value)
	return func(item T) bool {
		return norm(field(item)) == want
	}
}

// SameDay matches records whose timestamp falls on day in loc, ignoring time
// of day. day is "2006-01-02"; an empty or malformed day disables the
// control. Records without a timestamp never match.
func SameDay[T any](day string, loc *time.Location, field func(T) time.Time) Predicate[T] {
	day = strings.TrimSpace(day)
	if day == "" {
		return nil
	}
	if loc == nil {
		loc = jsontime.Location()
	}
	want, err := time.ParseInLocation(jsontime.DateLayout, day, loc)
	if err != nil {
		return nil
	}
	y, m, d := want.Date()
	return func(item T) bool {
		t := field(item)
		if t.IsZero() {
			return false
		}
		ty, tm, td := t.In(loc).Date()
		return ty == y && tm == m && td == d
	}
}

// Bool matches records whose flag equals *value. A nil value disables the
// control.
func Bool[T any](value *bool, field func(T) bool) Predicate[T] {
	if value == nil {
		return nil
	}
	want := *value
	return func(item T) bool {
		return field(item) == want
	}
}

// ParseBool reads a tri-state dropdown: "true"/"si"/"1", "false"/"no"/"0",
// anything else is unset.
func ParseBool(s string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "si", "sí", "1", "yes":
		v = true
	case "false", "no", "0":
		v = false
	default:
		return nil
	}
	return &v
}
