package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Slice returns the page of items selected by p. Offsets past the end give
// an empty page.
func Slice[T any](items []T, p Params) []T {
	if p.Offset >= len(items) {
		return nil
	}
	end := p.Offset + p.Limit
	if p.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links are the pager URLs for a list page. Empty means no such page.
type Links struct {
	Previous string
	Next     string
	From     int
	To       int
	Total    int
}

// PageLinks builds pager links that keep the request's other query
// parameters (the active filters) intact.
func (p Params) PageLinks(u *url.URL, total int) Links {
	l := Links{Total: total}
	if total > 0 {
		l.From = p.Offset + 1
		l.To = min(p.Offset+p.Limit, total)
	}
	link := func(offset int) string {
		q := u.Query()
		q.Set("offset", strconv.Itoa(offset))
		if p.Limit != DefaultLimit {
			q.Set("limit", strconv.Itoa(p.Limit))
		}
		if offset == 0 {
			q.Del("offset")
		}
		return u.Path + "?" + q.Encode()
	}
	if p.HasPrevious() {
		l.Previous = link(p.PreviousOffset())
	}
	if p.HasNext(total) {
		l.Next = link(p.NextOffset())
	}
	return l
}
