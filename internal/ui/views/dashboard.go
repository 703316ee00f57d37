package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// DashboardView is the manager's overview: counters, project progress and
// a project detail panel
type DashboardView struct {
	deps   Deps
	owner  int64
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	tasks    []models.Task
	projects []models.Project
	users    []models.User
	summary  board.Summary
	loaded   bool

	focus       FocusArea
	searchInput textinput.Model
	criteria    board.TaskCriteria
	filterForm  *form

	rows    []board.Progress
	cursor  int
	scrollY int
	detail  *board.Progress
}

type dashboardDataMsg struct {
	owner    int64
	tasks    []models.Task
	projects []models.Project
	users    []models.User
	err      error
}

func NewDashboardView(deps Deps) *DashboardView {
	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	return &DashboardView{
		deps:        deps,
		owner:       nextOwner(),
		styles:      styles.NewStyles(),
		keys:        keys.DefaultKeyMap(),
		searchInput: search,
	}
}

func (v *DashboardView) Title() string { return "Dashboard" }

func (v *DashboardView) Capturing() bool {
	return v.focus == FocusSearch || v.filterForm != nil
}

func (v *DashboardView) Init() tea.Cmd {
	return v.load()
}

func (v *DashboardView) load() tea.Cmd {
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		tasks, projects, users, err := loadTaskData(ctx, client, false)
		return dashboardDataMsg{owner: owner, tasks: tasks, projects: projects, users: users, err: err}
	}
}

// recompute derives the project rows from the task filter. With no filter
// every project is listed; otherwise only projects with a matching task.
func (v *DashboardView) recompute() {
	projects := v.projects
	if !v.criteria.IsZero() {
		matching := board.FilterTasks(v.tasks, v.criteria, models.ProjectNames(v.projects))
		projects = board.ProjectsIn(v.projects, board.ProjectIDs(matching))
	}
	v.rows = board.ProjectProgress(projects, v.tasks)
	v.cursor = clamp(v.cursor, 0, max(len(v.rows)-1, 0))
}

func (v *DashboardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case dashboardDataMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load dashboard", msg.err) }
		}
		v.tasks, v.projects, v.users = msg.tasks, msg.projects, msg.users
		v.summary = board.Summarize(v.tasks, v.projects, v.users, v.deps.now())
		v.loaded = true
		v.recompute()
		if v.detail != nil {
			v.openDetail(v.detail.Project.ID)
		}
		return v, nil

	case tea.KeyMsg:
		if v.filterForm != nil {
			return v.updateFilterForm(msg)
		}
		if v.detail != nil {
			if key.Matches(msg, v.keys.Back) {
				v.detail = nil
			}
			return v, nil
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *DashboardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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
			v.recompute()
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.rows)-1 {
			v.cursor++
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Enter):
		if v.cursor < len(v.rows) {
			v.openDetail(v.rows[v.cursor].Project.ID)
		}
	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearch
		v.searchInput.Focus()
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Filter):
		c := v.criteria
		v.filterForm = newForm("Filter Dashboard", v.styles, v.keys).
			addSelect("status", "Task status", enumOptions(models.TaskStatuses, "Any status"), string(c.Status)).
			addSelect("priority", "Priority", enumOptions(models.Priorities, "Any priority"), string(c.Priority)).
			addSelect("assignee", "Assignee", userOptions(v.users, "", "Anyone"), idValue(c.AssigneeID))
	case key.Matches(msg, v.keys.Clear):
		v.criteria = board.TaskCriteria{}
		v.searchInput.Reset()
		v.recompute()
	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()
	}
	return v, nil
}

func (v *DashboardView) updateFilterForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.filterForm.Update(msg)
	switch action {
	case formCancel:
		v.filterForm = nil
	case formSubmit:
		f := v.filterForm
		v.criteria = board.TaskCriteria{
			Search:     v.criteria.Search,
			Status:     models.TaskStatus(f.value("status")),
			Priority:   models.Priority(f.value("priority")),
			AssigneeID: f.id("assignee"),
		}
		v.filterForm = nil
		v.cursor = 0
		v.scrollY = 0
		v.recompute()
	}
	return v, cmd
}

func (v *DashboardView) openDetail(projectID int64) {
	v.detail = nil
	for _, p := range board.ProjectProgress(v.projects, v.tasks) {
		if p.Project.ID == projectID {
			v.detail = &p
			return
		}
	}
}

func (v *DashboardView) ensureVisible() {
	visibleItems := max((v.height-14)/2, 1)
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

func (v *DashboardView) View() string {
	if v.filterForm != nil {
		return place(v.filterForm.View(), v.width, v.height)
	}
	if v.detail != nil {
		return v.renderDetail()
	}

	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	var b strings.Builder
	b.WriteString(s.Title.Render("Dashboard"))
	b.WriteString("\n\n")
	if !v.loaded {
		b.WriteString(s.TitleMuted.Render("Loading…"))
		return styles.CenterView(b.String(), v.width, v.height)
	}

	sum := v.summary
	top := sum.TopAssignee
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		v.stat("Tasks", fmt.Sprint(sum.Total)),
		v.stat("In progress", fmt.Sprint(sum.InProgress)),
		v.stat("Overdue", fmt.Sprint(sum.Overdue)),
		v.stat("Active projects", fmt.Sprint(sum.ActiveProjects)),
		v.stat("Completed projects", fmt.Sprint(sum.CompletedProjects)),
		v.stat("Top assignee", fmt.Sprintf("%s (%d)", top.Name, top.Count)),
	))
	b.WriteString("\n")

	var byStatus []string
	for _, st := range models.TaskStatuses {
		byStatus = append(byStatus, s.StatusBadge(string(st))+fmt.Sprintf(" %d", sum.ByStatus[st]))
	}
	b.WriteString(strings.Join(byStatus, "  "))
	b.WriteString("\n\n")

	search := s.FilterInput
	if v.focus == FocusSearch {
		search = s.InputFocused
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		s.Title.Render("Projects"), "  ",
		search.Render("/ "+v.searchInput.View()), "  ",
		s.FilterButton.Render(v.filterSummary()),
	))
	b.WriteString("\n\n")

	if len(v.rows) == 0 {
		b.WriteString(s.TitleMuted.Render("No projects match"))
	}
	visibleItems := max((v.height-14)/2, 1)
	end := min(v.scrollY+visibleItems, len(v.rows))
	for i := v.scrollY; i < end; i++ {
		r := v.rows[i]
		line := fmt.Sprintf("%-30s %s %3d%%  %d/%d done",
			truncate(r.Project.Name, 30), styles.ProgressBar(r.Percent, 20), r.Percent, r.Done, r.Tasks)
		st := s.ListItem
		if i == v.cursor {
			st = s.ListSelected
		}
		b.WriteString(st.Width(contentWidth-4).Render(line) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(renderHelp(s, "↑↓", "select", "↵", "details", "/", "search", "f", "filter", "x", "clear", "r", "refresh"))
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *DashboardView) filterSummary() string {
	c := v.criteria
	var parts []string
	if c.Status != "" {
		parts = append(parts, "status: "+c.Status.Label())
	}
	if c.Priority != "" {
		parts = append(parts, "priority: "+string(c.Priority))
	}
	if c.AssigneeID != 0 {
		parts = append(parts, "assignee: "+models.UserNames(v.users)[c.AssigneeID])
	}
	if len(parts) == 0 {
		return "[f] filter"
	}
	return strings.Join(parts, " · ") + "  [x] clear"
}

func (v *DashboardView) stat(label, value string) string {
	s := v.styles
	return s.Stat.Render(s.StatValue.Render(value) + "\n" + s.TitleMuted.Render(label))
}

func (v *DashboardView) renderDetail() string {
	s := v.styles
	p := v.detail.Project
	tasks := board.Filter(v.tasks, func(t models.Task) bool { return t.ProjectID == p.ID })
	names := models.UserNames(v.users)

	var b strings.Builder
	b.WriteString(s.Title.Render(p.Name) + "  " + s.StatusBadge(string(p.Status)) + "\n\n")
	if p.Description != "" {
		b.WriteString(p.Description + "\n\n")
	}
	owner := names[p.OwnerID]
	if owner == "" {
		owner = "Unassigned"
	}
	b.WriteString(s.TitleMuted.Render("Owner: ") + owner + "\n")
	if p.StartDate != nil || p.EndDate != nil {
		b.WriteString(s.TitleMuted.Render("Dates: ") + formatDay(p.StartDate) + " → " + formatDay(p.EndDate) + "\n")
	}
	b.WriteString(s.TitleMuted.Render("Progress: ") +
		styles.ProgressBar(v.detail.Percent, 30) + fmt.Sprintf(" %d%% (%d/%d)", v.detail.Percent, v.detail.Done, v.detail.Tasks) + "\n\n")

	b.WriteString(s.Title.Render("Tasks") + "\n")
	if len(tasks) == 0 {
		b.WriteString(s.TitleMuted.Render("No tasks in this project") + "\n")
	}
	for _, t := range tasks {
		b.WriteString(fmt.Sprintf("%s %s %s %s\n",
			s.StatusBadge(string(t.Status)), s.PriorityBadge(t.Priority), t.Title, s.TitleMuted.Render(names[t.AssigneeID])))
	}

	b.WriteString("\n" + s.Title.Render("Team load") + "\n")
	load := board.MemberLoad(tasks, v.users)
	if len(load) == 0 {
		b.WriteString(s.TitleMuted.Render("Nobody is assigned yet") + "\n")
	}
	for _, a := range load {
		b.WriteString(fmt.Sprintf("%-24s %d\n", a.Name, a.Count))
	}

	b.WriteString("\n" + renderHelp(s, "esc", "back"))
	return styles.CenterView(b.String(), v.width, v.height)
}
