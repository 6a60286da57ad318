package form

// Choice is one option in a select field.
type Choice struct {
	Value string
	Label string
}

// Choices builds select options whose label equals the value.
func Choices(values ...string) []Choice {
	out := make([]Choice, len(values))
	for i, v := range values {
		out[i] = Choice{Value: v, Label: v}
	}
	return out
}

// Field is one input as the shared form template draws it.
type Field struct {
	Name        string
	Label       string
	Type        string // text, email, tel, date, time, number, select, textarea, checkbox, hidden, password
	Value       string
	Checked     bool
	Choices     []Choice
	Required    bool
	Min         string
	Max         string
	Step        string
	Rows        int
	Placeholder string
	Help        string
	Error       string
	Wide        bool
}

// View is a whole dialog as the shared form template draws it.
type View struct {
	Title       string
	Action      string
	CancelURL   string
	SubmitLabel string
	Mode        Mode
	Fields      []Field
	Error       string
}

// Annotate copies messages from errs onto the matching fields and returns
// any message whose field is not on the form.
func (v *View) Annotate(errs FieldErrors) []string {
	seen := map[string]bool{}
	for i := range v.Fields {
		if msg, ok := errs[v.Fields[i].Name]; ok {
			v.Fields[i].Error = msg
			seen[v.Fields[i].Name] = true
		}
	}
	var rest []string
	for k, msg := range errs {
		if !seen[k] {
			rest = append(rest, k+": "+msg)
		}
	}
	return rest
}
