package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// Deps are the services the screens talk to
type Deps struct {
	// Ctx is cancelled when the program exits. Request timeouts are applied
	// by the API client.
	Ctx     context.Context
	API     *api.Client
	Session *session.Store
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) ctx() context.Context {
	if d.Ctx != nil {
		return d.Ctx
	}
	return context.Background()
}

func (d Deps) currentUser() *models.User {
	if d.Session == nil {
		return nil
	}
	return d.Session.Current().User
}

// Screen is a top-level view the app can route to
type Screen interface {
	tea.Model
	Title() string
	// Capturing reports whether keystrokes belong to a text field or dialog,
	// in which case the app must not act on global shortcuts.
	Capturing() bool
}

// Toast asks the app to show a transient message
type Toast struct {
	Text string
	Err  bool
}

// Unauthorized reports a 401 from the backend. The app signs out.
type Unauthorized struct{}

// SignedIn carries a freshly issued token from the login screen
type SignedIn struct {
	Token string
}

// owners tags asynchronous results with the screen that asked for them, so a
// late reply never lands in a different screen of the same kind.
var owners atomic.Int64

func nextOwner() int64 { return owners.Add(1) }

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func toast(text string) tea.Cmd {
	return func() tea.Msg { return Toast{Text: text} }
}

// failure turns a request error into the message the app acts on
func failure(op string, err error) tea.Msg {
	if errors.Is(err, api.ErrUnauthorized) {
		return Unauthorized{}
	}
	slog.Warn("request failed", "op", op, "error", err)
	return Toast{Text: fmt.Sprintf("Failed to %s: %s", op, api.Message(err)), Err: true}
}

// fieldErrors extracts inline errors from err, if it carries any
func fieldErrors(err error) (models.FieldErrors, bool) {
	var fe models.FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// parseDay reads a YYYY-MM-DD field. Blank means no date.
func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, errors.New("Use YYYY-MM-DD")
	}
	return &t, nil
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

// renderHelp renders key/description pairs as a single help line
func renderHelp(s *styles.Styles, pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.HelpKey.Render(pairs[i])+" "+pairs[i+1])
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// place centers content in the visible area
func place(content string, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, width, height)
}

func renderConfirmDelete(s *styles.Styles, kind, name string, width, height int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete "+kind+"?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be permanently removed.", name)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return place(content, width, height)
}

// confirmKey interprets a key pressed in a y/n dialog
func confirmKey(msg tea.KeyMsg) (yes, done bool) {
	switch msg.String() {
	case "y", "Y":
		return true, true
	case "n", "N", "esc":
		return false, true
	}
	return false, false
}

func userOptions(users []models.User, role models.Role, none string) []option {
	opts := []option{{Label: none, Value: ""}}
	for _, u := range users {
		if role != "" && u.Role != role {
			continue
		}
		opts = append(opts, option{Label: u.FullName, Value: fmt.Sprint(u.ID)})
	}
	return opts
}

func projectOptions(projects []models.Project, none string) []option {
	opts := []option{{Label: none, Value: ""}}
	for _, p := range projects {
		opts = append(opts, option{Label: p.Name, Value: fmt.Sprint(p.ID)})
	}
	return opts
}

func enumOptions[E ~string](values []E, none string) []option {
	var opts []option
	if none != "" {
		opts = append(opts, option{Label: none, Value: ""})
	}
	for _, v := range values {
		opts = append(opts, option{Label: strings.ReplaceAll(string(v), "_", " "), Value: string(v)})
	}
	return opts
}
