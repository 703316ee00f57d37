package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// TaskListView lists the signed-in user's tasks and lets them change a
// task's status in place. As "My Dashboard" it also shows completion and the
// user's projects; as "Vital" it shows only vital tasks.
type TaskListView struct {
	deps   Deps
	owner  int64
	vital  bool
	tasks  *Kanban[models.Task, models.TaskStatus] // holds the collection and its pending moves
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	projects     []models.Project
	projectNames map[int64]string
	loaded       bool

	focus       FocusArea
	searchInput textinput.Model
	criteria    board.TaskCriteria
	filterForm  *form

	cursor  int
	scrollY int
}

type taskListDataMsg struct {
	owner    int64
	tasks    []models.Task
	projects []models.Project
	err      error
}

// NewMyDashboardView creates the user's dashboard
func NewMyDashboardView(deps Deps) *TaskListView {
	return newTaskListView(deps, false)
}

// NewVitalView creates the list of the user's vital tasks
func NewVitalView(deps Deps) *TaskListView {
	return newTaskListView(deps, true)
}

func newTaskListView(deps Deps, vital bool) *TaskListView {
	s := styles.NewStyles()
	k := keys.DefaultKeyMap()

	search := textinput.New()
	search.Placeholder = "Search my tasks..."
	search.CharLimit = 100

	v := &TaskListView{
		deps:        deps,
		owner:       nextOwner(),
		vital:       vital,
		styles:      s,
		keys:        k,
		searchInput: search,
	}
	client := deps.API
	v.tasks = newKanban(deps.ctx(), board.TaskLane,
		func(ctx context.Context, t models.Task, to models.TaskStatus) error {
			_, err := client.UpdateTaskStatus(ctx, t.ID, to)
			return err
		},
		func(*models.Task, int) []string { return nil }, s, k)
	return v
}

func (v *TaskListView) Title() string {
	if v.vital {
		return "Vital"
	}
	return "My Dashboard"
}

func (v *TaskListView) Capturing() bool {
	return v.focus == FocusSearch || v.filterForm != nil
}

func (v *TaskListView) Init() tea.Cmd {
	return v.load()
}

func (v *TaskListView) load() tea.Cmd {
	client, ctx, owner, vital := v.deps.API, v.deps.ctx(), v.owner, v.vital
	return func() tea.Msg {
		msg := taskListDataMsg{owner: owner}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if vital {
				msg.tasks, err = client.VitalTasks(gctx)
			} else {
				msg.tasks, err = client.MyTasks(gctx)
			}
			return err
		})
		g.Go(func() error {
			var err error
			msg.projects, err = client.Projects(gctx)
			return err
		})
		msg.err = g.Wait()
		return msg
	}
}

// visible returns the tasks passing the filter, in load order
func (v *TaskListView) visible() []models.Task {
	return board.FilterTasks(v.tasks.Items(), v.criteria, v.projectNames)
}

func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case taskListDataMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load tasks", msg.err) }
		}
		v.projects = msg.projects
		v.projectNames = models.ProjectNames(msg.projects)
		v.tasks.SetItems(msg.tasks)
		v.loaded = true
		v.cursor = clamp(v.cursor, 0, max(len(v.visible())-1, 0))
		return v, nil

	case tea.KeyMsg:
		if v.filterForm != nil {
			return v.updateFilterForm(msg)
		}
		return v.updateNormal(msg)
	}

	// move results
	return v, v.tasks.Update(msg)
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if v.focus == FocusSearch {
		switch {
		case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
			v.searchInput.Blur()
			v.focus = FocusBoard
			return v, nil
		default:
			var cmd tea.Cmd
			v.searchInput, cmd = v.searchInput.Update(msg)
			v.criteria.Search = v.searchInput.Value()
			v.cursor = 0
			v.scrollY = 0
			return v, cmd
		}
	}

	visible := v.visible()
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(visible)-1 {
			v.cursor++
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Status), key.Matches(msg, v.keys.MoveRight):
		return v, v.shift(visible, 1, true)
	case key.Matches(msg, v.keys.MoveLeft):
		return v, v.shift(visible, -1, false)
	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearch
		v.searchInput.Focus()
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Filter):
		c := v.criteria
		v.filterForm = newForm("Filter My Tasks", v.styles, v.keys).
			addSelect("status", "Status", enumOptions(models.TaskStatuses, "Any status"), string(c.Status)).
			addSelect("priority", "Priority", enumOptions(models.Priorities, "Any priority"), string(c.Priority)).
			addText("dueOn", "Due on (YYYY-MM-DD)", "", formatDay(c.DueOn), 10)
	case key.Matches(msg, v.keys.Clear):
		v.criteria = board.TaskCriteria{}
		v.searchInput.Reset()
	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()
	}
	return v, nil
}

// shift moves the selected task's status by delta. With wrap, moving past
// the last status starts over at the first.
func (v *TaskListView) shift(visible []models.Task, delta int, wrap bool) tea.Cmd {
	if v.cursor >= len(visible) {
		return nil
	}
	e := board.TaskLane.Find(v.tasks.Items(), visible[v.cursor].ID)
	if e == nil {
		return nil
	}
	to, ok := board.TaskLane.Neighbour(e.Status, delta)
	if !ok {
		if !wrap {
			return nil
		}
		to = models.TaskStatuses[0]
	}
	return v.tasks.MoveTo(e, to)
}

func (v *TaskListView) updateFilterForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.filterForm.Update(msg)
	switch action {
	case formCancel:
		v.filterForm = nil
	case formSubmit:
		f := v.filterForm
		on, err := parseDay(f.value("dueOn"))
		if err != nil {
			f.setErrors(models.FieldErrors{"dueOn": err.Error()})
			return v, nil
		}
		v.criteria = board.TaskCriteria{
			Search:   v.criteria.Search,
			Status:   models.TaskStatus(f.value("status")),
			Priority: models.Priority(f.value("priority")),
			DueOn:    on,
		}
		v.filterForm = nil
		v.cursor = 0
		v.scrollY = 0
	}
	return v, cmd
}

func (v *TaskListView) listHeight() int {
	if v.vital {
		return max(v.height-8, 2)
	}
	return max(v.height-16, 2)
}

func (v *TaskListView) ensureVisible() {
	visibleItems := max(v.listHeight()/2, 1)
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

func (v *TaskListView) View() string {
	if v.filterForm != nil {
		return place(v.filterForm.View(), v.width, v.height)
	}

	s := v.styles
	all := v.tasks.Items()

	var b strings.Builder
	b.WriteString(s.Title.Render(v.Title()))
	b.WriteString("\n\n")
	if !v.loaded {
		b.WriteString(s.TitleMuted.Render("Loading…"))
		return styles.CenterView(b.String(), v.width, v.height)
	}

	if !v.vital {
		pct := board.Completion(all)
		b.WriteString(s.TitleMuted.Render("Completion ") + styles.ProgressBar(pct, 30) + fmt.Sprintf(" %d%%", pct) + "\n")

		mine := board.ProjectsIn(v.projects, board.ProjectIDs(all))
		names := make([]string, len(mine))
		for i, p := range mine {
			names[i] = p.Name
		}
		projects := s.TitleMuted.Render("none")
		if len(names) > 0 {
			projects = strings.Join(names, ", ")
		}
		b.WriteString(s.TitleMuted.Render("My projects ") + projects + "\n\n")

		search := s.FilterInput
		if v.focus == FocusSearch {
			search = s.InputFocused
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
			search.Render("/ "+v.searchInput.View()), "  ",
			s.FilterButton.Render(v.filterSummary()),
		))
		b.WriteString("\n\n")
	}

	visible := v.visible()
	if len(visible) == 0 {
		empty := "No tasks assigned to you"
		if v.vital {
			empty = "No vital tasks"
		} else if len(all) > 0 {
			empty = "No tasks match the filters"
		}
		b.WriteString(s.TitleMuted.Render(empty) + "\n")
	}
	visibleItems := max(v.listHeight()/2, 1)
	end := min(v.scrollY+visibleItems, len(visible))
	for i := v.scrollY; i < end; i++ {
		b.WriteString(v.renderRow(&visible[i], i == v.cursor) + "\n")
	}

	b.WriteString("\n")
	if v.vital {
		b.WriteString(renderHelp(s, "↑↓", "select", "s", "next status", "H/L", "move", "r", "refresh"))
	} else {
		b.WriteString(renderHelp(s, "↑↓", "select", "s", "next status", "H/L", "move", "/", "search", "f", "filter", "x", "clear"))
	}
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) filterSummary() string {
	c := v.criteria
	var parts []string
	if c.Status != "" {
		parts = append(parts, "status: "+c.Status.Label())
	}
	if c.Priority != "" {
		parts = append(parts, "priority: "+string(c.Priority))
	}
	if c.DueOn != nil {
		parts = append(parts, "due: "+formatDay(c.DueOn))
	}
	if len(parts) == 0 {
		return "[f] filter"
	}
	return strings.Join(parts, " · ") + "  [x] clear"
}

func (v *TaskListView) renderRow(t *models.Task, selected bool) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	title := t.Title
	if t.Vital {
		title = "★ " + title
	}
	due := ""
	if t.DueDate != nil {
		due = "due " + formatDay(t.DueDate)
		if t.Overdue(v.deps.now()) {
			due = lipgloss.NewStyle().Foreground(styles.Current.Error).Render(due)
		}
	}
	pending := ""
	if v.tasks.mover.Pending(t.ID) {
		pending = s.CardPending.Render(" saving…")
	}

	line := fmt.Sprintf("%s %s %s %s %s%s",
		s.StatusBadge(string(t.Status)),
		s.PriorityBadge(t.Priority),
		truncate(title, max(contentWidth-60, 20)),
		s.TitleMuted.Render(v.projectNames[t.ProjectID]),
		due,
		pending,
	)
	st := s.ListItem
	if selected {
		st = s.ListSelected
	}
	return st.Width(contentWidth - 4).Render(line)
}
