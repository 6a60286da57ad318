package shell

import (
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/pkg/pagination"
)

// Cell is one table cell. Badge renders Text as a coloured tag.
type Cell struct {
	Text  string
	Link  string
	Badge string
	Title string
}

// Action is a row button. POST actions render as small forms.
type Action struct {
	Label   string
	URL     string
	Method  string
	Confirm string
	Style   string
}

// Row is one record.
type Row struct {
	ID      string
	Cells   []Cell
	Actions []Action
	Muted   bool
}

// Table is a record table.
type Table struct {
	Columns []string
	Rows    []Row
	Empty   string
}

// ListPage is what the shared list template draws.
type ListPage struct {
	Heading   string
	NewURL    string
	NewLabel  string
	ExportURL string
	Filters   []form.Field
	FilterURL string
	Table     Table
	Pager     pagination.Links
	// Stale is set when the last refresh failed and the rows shown are
	// from an earlier one.
	Stale bool
	Error string
	Total int
}

// GetAction is a plain link action.
func GetAction(label, url string) Action {
	return Action{Label: label, URL: url, Method: "GET"}
}

// PostAction is a form-submit action, optionally confirmed first.
func PostAction(label, url, confirm string) Action {
	return Action{Label: label, URL: url, Method: "POST", Confirm: confirm}
}
