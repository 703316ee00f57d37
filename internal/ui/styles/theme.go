package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
)

// Theme represents a color scheme for the application
type Theme struct {
	Name string

	// Base colors
	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	// Accent colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// UI element colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
	Cursor      lipgloss.Color
}

// TokyoNight is the default color theme
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7aa2f7"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
	Cursor:      lipgloss.Color("#c0caf5"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth is the maximum content width. Boards need room for four columns.
const MaxWidth = 140

// SidebarWidth is the width of the expanded navigation sidebar
const SidebarWidth = 22

// ContentWidth returns the actual content width to use (min of terminal width and MaxWidth)
func ContentWidth(terminalWidth int) int {
	if terminalWidth > MaxWidth {
		return MaxWidth
	}
	return terminalWidth
}

// CenterView wraps content and centers it horizontally if terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// StatusColor returns the color used for a task or project status
func StatusColor(status string) lipgloss.Color {
	t := Current
	switch status {
	case string(models.StatusDone), string(models.ProjectCompleted):
		return t.Success
	case string(models.StatusInProgress), string(models.ProjectActive):
		return t.Info
	case string(models.ProjectArchived):
		return t.ForegroundDim
	default:
		return t.Warning
	}
}

// PriorityColor returns the color used for a task priority
func PriorityColor(p models.Priority) lipgloss.Color {
	switch p {
	case models.PriorityHigh:
		return Current.Error
	case models.PriorityMedium:
		return Current.Warning
	default:
		return Current.Success
	}
}

// ProgressBar renders a bar of width cells for percent in [0,100]
func ProgressBar(percent, width int) string {
	if width < 1 {
		width = 1
	}
	filled := percent * width / 100
	filled = max(0, min(filled, width))
	bar := lipgloss.NewStyle().Foreground(Current.Success).Render(strings.Repeat("█", filled))
	rest := lipgloss.NewStyle().Foreground(Current.Border).Render(strings.Repeat("░", width-filled))
	return bar + rest
}

// Styles holds all the pre-computed styles for the UI
type Styles struct {
	// App container
	App lipgloss.Style

	// Title bar
	TitleBar   lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// Lists
	List         lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// Filter bar
	FilterBar    lipgloss.Style
	FilterInput  lipgloss.Style
	FilterButton lipgloss.Style

	// Buttons
	Button        lipgloss.Style
	ButtonFocused lipgloss.Style
	ButtonPrimary lipgloss.Style

	// Badges (status, priority, role)
	Badge lipgloss.Style

	// Kanban
	Column        lipgloss.Style
	ColumnFocused lipgloss.Style
	ColumnTitle   lipgloss.Style
	Card          lipgloss.Style
	CardSelected  lipgloss.Style
	CardPending   lipgloss.Style

	// Stat tiles on dashboards
	Stat      lipgloss.Style
	StatValue lipgloss.Style

	// Sidebar
	Sidebar       lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style

	// Input fields
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	FieldError   lipgloss.Style

	// Help text
	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style

	// Status bar and toasts
	StatusBar  lipgloss.Style
	Toast      lipgloss.Style
	ToastError lipgloss.Style
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		App: lipgloss.NewStyle().
			Background(t.Background).
			Foreground(t.Foreground),

		TitleBar: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Background(t.Background).
			Padding(0, 1).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		TitleMuted: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		List: lipgloss.NewStyle().
			Padding(1, 2),

		ListItem: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 2),

		ListSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Padding(0, 2).
			Bold(true),

		FilterBar: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		FilterInput: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 1),

		FilterButton: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Button: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2),

		ButtonFocused: lipgloss.NewStyle().
			Foreground(t.Primary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 2).
			Bold(true),

		ButtonPrimary: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Primary).
			Padding(0, 2).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true),

		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		ColumnFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		ColumnTitle: lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1),

		Card: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 1).
			MarginBottom(1),

		CardSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Padding(0, 1).
			MarginBottom(1).
			Bold(true),

		CardPending: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Italic(true),

		Stat: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2).
			MarginRight(1),

		StatValue: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(t.Border).
			Padding(1, 1),

		SidebarItem: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		SidebarActive: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		Input: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		InputFocused: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		FieldError: lipgloss.NewStyle().
			Foreground(t.Error),

		Help: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(1, 2),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		HelpDesc: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		StatusBar: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Toast: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Success).
			Padding(0, 1),

		ToastError: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Error).
			Padding(0, 1),
	}
}

// StatusBadge renders a status in its color
func (s *Styles) StatusBadge(status string) string {
	return s.Badge.Foreground(StatusColor(status)).Render(strings.ReplaceAll(status, "_", " "))
}

// PriorityBadge renders a priority in its color
func (s *Styles) PriorityBadge(p models.Priority) string {
	return s.Badge.Foreground(PriorityColor(p)).Render(string(p))
}
