package views

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

type fieldKind int

const (
	textField fieldKind = iota
	secretField
	areaField
	selectField
	multiField
)

type option struct {
	Label string
	Value string
}

type field struct {
	key   string
	label string
	kind  fieldKind
	input textinput.Model
	area  textarea.Model

	opts   []option
	cur    int // chosen option for selects, cursor for multi-selects
	picked map[string]bool
}

type formAction int

const (
	formNone formAction = iota
	formSubmit
	formCancel
)

// form is a vertical stack of fields followed by a save button. Fields are
// addressed by key, which is also the key of their models.FieldErrors entry.
type form struct {
	title  string
	fields []*field
	focus  int // len(fields) = save button
	errs   models.FieldErrors
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
}

func newForm(title string, s *styles.Styles, k keys.KeyMap) *form {
	return &form{title: title, styles: s, keys: k, width: 50}
}

func (f *form) addText(key, label, placeholder, value string, limit int) *form {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.SetValue(value)
	f.fields = append(f.fields, &field{key: key, label: label, kind: textField, input: in})
	return f.refocus()
}

func (f *form) addSecret(key, label, placeholder string) *form {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 20
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	f.fields = append(f.fields, &field{key: key, label: label, kind: secretField, input: in})
	return f.refocus()
}

func (f *form) addArea(key, label, placeholder, value string) *form {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = 1000
	ta.SetWidth(f.width)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.SetValue(value)
	f.fields = append(f.fields, &field{key: key, label: label, kind: areaField, area: ta})
	return f.refocus()
}

func (f *form) addSelect(key, label string, opts []option, value string) *form {
	fd := &field{key: key, label: label, kind: selectField, opts: opts}
	for i, o := range opts {
		if o.Value == value {
			fd.cur = i
		}
	}
	f.fields = append(f.fields, fd)
	return f.refocus()
}

func (f *form) addMulti(key, label string, opts []option, values []string) *form {
	fd := &field{key: key, label: label, kind: multiField, opts: opts, picked: make(map[string]bool)}
	for _, v := range values {
		fd.picked[v] = true
	}
	f.fields = append(f.fields, fd)
	return f.refocus()
}

func (f *form) field(key string) *field {
	for _, fd := range f.fields {
		if fd.key == key {
			return fd
		}
	}
	return nil
}

// value returns a field's current value. Text is trimmed, secrets are not.
func (f *form) value(key string) string {
	fd := f.field(key)
	if fd == nil {
		return ""
	}
	switch fd.kind {
	case secretField:
		return fd.input.Value()
	case textField:
		return strings.TrimSpace(fd.input.Value())
	case areaField:
		return strings.TrimSpace(fd.area.Value())
	case selectField:
		if len(fd.opts) == 0 {
			return ""
		}
		return fd.opts[fd.cur].Value
	}
	return ""
}

// id parses a select holding an entity id. Unset is 0.
func (f *form) id(key string) int64 {
	n, _ := strconv.ParseInt(f.value(key), 10, 64)
	return n
}

// ids returns the picked values of a multi-select, in option order
func (f *form) ids(key string) []int64 {
	fd := f.field(key)
	if fd == nil {
		return nil
	}
	out := []int64{}
	for _, o := range fd.opts {
		if fd.picked[o.Value] {
			if n, err := strconv.ParseInt(o.Value, 10, 64); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// set replaces a text field's value or picks a select option
func (f *form) set(key, value string) {
	fd := f.field(key)
	if fd == nil {
		return
	}
	switch fd.kind {
	case textField, secretField:
		fd.input.SetValue(value)
	case areaField:
		fd.area.SetValue(value)
	case selectField:
		for i, o := range fd.opts {
			if o.Value == value {
				fd.cur = i
			}
		}
	}
}

func (f *form) setErrors(errs models.FieldErrors) {
	f.errs = errs
	// jump to the first field in error
	for i, fd := range f.fields {
		if _, bad := errs[fd.key]; bad {
			f.focus = i
			f.refocus()
			return
		}
	}
}

func (f *form) setWidth(w int) {
	f.width = w
	for _, fd := range f.fields {
		if fd.kind == areaField {
			fd.area.SetWidth(w)
		}
	}
}

func (f *form) refocus() *form {
	for i, fd := range f.fields {
		switch fd.kind {
		case textField, secretField:
			if i == f.focus {
				fd.input.Focus()
			} else {
				fd.input.Blur()
			}
		case areaField:
			if i == f.focus {
				fd.area.Focus()
			} else {
				fd.area.Blur()
			}
		}
	}
	return f
}

func (f *form) cycle(dir int) {
	n := len(f.fields) + 1
	f.focus = (f.focus + dir + n) % n
	f.refocus()
}

// Update handles a key and reports whether the form was submitted or cancelled
func (f *form) Update(msg tea.KeyMsg) (formAction, tea.Cmd) {
	switch {
	case key.Matches(msg, f.keys.Back):
		return formCancel, nil
	case key.Matches(msg, f.keys.Save):
		return formSubmit, nil
	case key.Matches(msg, f.keys.Tab):
		f.cycle(1)
		return formNone, nil
	case msg.String() == "shift+tab":
		f.cycle(-1)
		return formNone, nil
	}

	if f.focus >= len(f.fields) {
		if key.Matches(msg, f.keys.Enter) {
			return formSubmit, nil
		}
		return formNone, nil
	}

	fd := f.fields[f.focus]
	switch fd.kind {
	case selectField:
		switch {
		case key.Matches(msg, f.keys.Left):
			fd.cur = (fd.cur + len(fd.opts) - 1) % max(len(fd.opts), 1)
		case key.Matches(msg, f.keys.Right), msg.String() == " ":
			fd.cur = (fd.cur + 1) % max(len(fd.opts), 1)
		case key.Matches(msg, f.keys.Enter):
			f.cycle(1)
		}
		return formNone, nil

	case multiField:
		switch {
		case key.Matches(msg, f.keys.Up):
			fd.cur = max(fd.cur-1, 0)
		case key.Matches(msg, f.keys.Down):
			fd.cur = clamp(fd.cur+1, 0, max(len(fd.opts)-1, 0))
		case msg.String() == " ", key.Matches(msg, f.keys.Enter):
			if fd.cur < len(fd.opts) {
				v := fd.opts[fd.cur].Value
				fd.picked[v] = !fd.picked[v]
			}
		}
		return formNone, nil

	case areaField:
		var cmd tea.Cmd
		fd.area, cmd = fd.area.Update(msg)
		return formNone, cmd
	}

	// Enter on a single-line input moves to the next field
	if key.Matches(msg, f.keys.Enter) {
		f.cycle(1)
		return formNone, nil
	}
	var cmd tea.Cmd
	fd.input, cmd = fd.input.Update(msg)
	return formNone, cmd
}

// View renders the form
func (f *form) View() string {
	s := f.styles
	rows := []string{s.Title.Render(f.title), ""}

	for i, fd := range f.fields {
		st := s.Input
		if i == f.focus {
			st = s.InputFocused
		}
		rows = append(rows, fd.label+":")

		switch fd.kind {
		case textField, secretField:
			rows = append(rows, st.Width(f.width).Render(fd.input.View()))
		case areaField:
			rows = append(rows, st.Render(fd.area.View()))
		case selectField:
			label := ""
			if len(fd.opts) > 0 {
				label = fd.opts[fd.cur].Label
			}
			rows = append(rows, st.Width(f.width).Render("‹ "+label+" ›"))
		case multiField:
			rows = append(rows, st.Width(f.width).Render(f.renderMulti(fd, i == f.focus)))
		}

		if msg, bad := f.errs[fd.key]; bad {
			rows = append(rows, s.FieldError.Render(msg))
		}
		rows = append(rows, "")
	}

	btn := s.Button
	if f.focus >= len(f.fields) {
		btn = s.ButtonFocused
	}
	rows = append(rows,
		btn.Render(" Save "),
		"",
		s.TitleMuted.Render("Tab: next • ←→: choose • Space: toggle • Ctrl+S: save • Esc: cancel"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (f *form) renderMulti(fd *field, focused bool) string {
	s := f.styles
	if len(fd.opts) == 0 {
		return s.TitleMuted.Render("Nothing to choose from")
	}
	items := make([]string, len(fd.opts))
	for i, o := range fd.opts {
		checkbox := "[ ]"
		if fd.picked[o.Value] {
			checkbox = "[x]"
		}
		if focused && i == fd.cur {
			items[i] = s.ListSelected.Render(checkbox + " " + o.Label)
		} else {
			items[i] = s.ListItem.Render(checkbox + " " + o.Label)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}
