package views

import (
	"context"
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

// ProjectsView is the project kanban
type ProjectsView struct {
	deps   Deps
	owner  int64
	board  *Kanban[models.Project, models.ProjectStatus]
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	users     []models.User
	userNames map[int64]string
	progress  map[int64]board.Progress
	loaded    bool

	focus       FocusArea
	searchInput textinput.Model
	criteria    board.ProjectCriteria
	filterForm  *form

	form    *form
	editing *models.Project // nil while creating

	confirmingDelete bool
	deleteTargetID   int64
	deleteTargetName string

	showHelpPopup bool
}

type projectDataMsg struct {
	owner    int64
	projects []models.Project
	tasks    []models.Task
	users    []models.User
	err      error
}

type projectSavedMsg struct {
	owner   int64
	project models.Project
	err     error
}

type projectDeletedMsg struct {
	owner int64
	err   error
}

func NewProjectsView(deps Deps) *ProjectsView {
	s := styles.NewStyles()
	k := keys.DefaultKeyMap()

	search := textinput.New()
	search.Placeholder = "Search projects..."
	search.CharLimit = 100

	v := &ProjectsView{
		deps:        deps,
		owner:       nextOwner(),
		styles:      s,
		keys:        k,
		searchInput: search,
	}
	client := deps.API
	v.board = newKanban(deps.ctx(), board.ProjectLane,
		func(ctx context.Context, p models.Project, _ models.ProjectStatus) error {
			_, err := client.UpdateProject(ctx, p)
			return err
		},
		v.renderCard, s, k)
	return v
}

func (v *ProjectsView) Title() string { return "Projects" }

func (v *ProjectsView) Capturing() bool {
	return v.focus == FocusSearch || v.form != nil || v.filterForm != nil || v.confirmingDelete
}

func (v *ProjectsView) Init() tea.Cmd {
	return v.load()
}

func (v *ProjectsView) load() tea.Cmd {
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		tasks, projects, users, err := loadTaskData(ctx, client, false)
		return projectDataMsg{owner: owner, projects: projects, tasks: tasks, users: users, err: err}
	}
}

func (v *ProjectsView) applyFilter() {
	c := v.criteria
	if c.IsZero() {
		v.board.SetFilter(nil)
		return
	}
	v.board.SetFilter(func(projects []models.Project) []models.Project {
		return board.FilterProjects(projects, c)
	})
}

func (v *ProjectsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.board.SetSize(contentWidth, v.height-6)
		if v.form != nil {
			v.form.setWidth(clamp(contentWidth-10, 20, 50))
		}
		return v, nil

	case projectDataMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load projects", msg.err) }
		}
		v.users = msg.users
		v.userNames = models.UserNames(msg.users)
		v.progress = make(map[int64]board.Progress, len(msg.projects))
		for _, p := range board.ProjectProgress(msg.projects, msg.tasks) {
			v.progress[p.Project.ID] = p
		}
		v.loaded = true
		v.board.SetItems(msg.projects)
		v.applyFilter()
		return v, nil

	case projectSavedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if fe, ok := fieldErrors(msg.err); ok && v.form != nil {
			v.form.setErrors(fe)
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("save project", msg.err) }
		}
		v.form = nil
		v.editing = nil
		return v, tea.Batch(toast(fmt.Sprintf("Project %q saved", msg.project.Name)), v.load())

	case projectDeletedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("delete project", msg.err) }
		}
		return v, tea.Batch(toast("Project deleted"), v.load())

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.form != nil {
			return v.updateEditing(msg)
		}
		if v.filterForm != nil {
			return v.updateFilterForm(msg)
		}
		return v.updateNormal(msg)
	}

	return v, v.board.Update(msg)
}

func (v *ProjectsView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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
			v.applyFilter()
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearch
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Filter):
		c := v.criteria
		v.filterForm = newForm("Filter Projects", v.styles, v.keys).
			addSelect("status", "Status", enumOptions(models.ProjectStatuses, "Any status"), string(c.Status)).
			addText("startFrom", "Starts on or after (YYYY-MM-DD)", "", formatDay(c.StartFrom), 10).
			addText("endBy", "Ends on or before (YYYY-MM-DD)", "", formatDay(c.EndBy), 10)
		return v, nil

	case key.Matches(msg, v.keys.Clear):
		v.criteria = board.ProjectCriteria{}
		v.searchInput.Reset()
		v.applyFilter()
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.New):
		v.startForm(nil)
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Edit), key.Matches(msg, v.keys.Enter):
		if p := v.board.Selected(); p != nil {
			project := *p
			v.startForm(&project)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if p := v.board.Selected(); p != nil {
			v.confirmingDelete = true
			v.deleteTargetID = p.ID
			v.deleteTargetName = p.Name
		}
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, v.board.Update(msg)
}

func (v *ProjectsView) updateFilterForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.filterForm.Update(msg)
	switch action {
	case formCancel:
		v.filterForm = nil
		return v, nil
	case formSubmit:
		f := v.filterForm
		errs := models.FieldErrors{}
		from, err := parseDay(f.value("startFrom"))
		if err != nil {
			errs["startFrom"] = err.Error()
		}
		by, err := parseDay(f.value("endBy"))
		if err != nil {
			errs["endBy"] = err.Error()
		}
		if len(errs) > 0 {
			f.setErrors(errs)
			return v, nil
		}
		v.criteria = board.ProjectCriteria{
			Search:    v.criteria.Search,
			Status:    models.ProjectStatus(f.value("status")),
			StartFrom: from,
			EndBy:     by,
		}
		v.filterForm = nil
		v.applyFilter()
		return v, nil
	}
	return v, cmd
}

func (v *ProjectsView) startForm(p *models.Project) {
	v.editing = p
	cur := models.Project{Status: models.ProjectPlanned}
	title := "New Project"
	if p != nil {
		cur = *p
		title = "Edit Project"
	}

	members := make([]string, len(cur.TeamMemberIDs))
	for i, id := range cur.TeamMemberIDs {
		members[i] = idValue(id)
	}
	team := userOptions(v.users, models.RoleUser, "")[1:]

	v.form = newForm(title, v.styles, v.keys).
		addText("name", "Name", "Project name", cur.Name, 100).
		addArea("description", "Description", "Description (optional)", cur.Description).
		addSelect("status", "Status", enumOptions(models.ProjectStatuses, ""), string(cur.Status)).
		addSelect("owner", "Owner", userOptions(v.users, models.RoleManager, "Choose an owner"), idValue(cur.OwnerID)).
		addText("startDate", "Start date (YYYY-MM-DD)", "", formatDay(cur.StartDate), 10).
		addText("endDate", "End date (YYYY-MM-DD)", "", formatDay(cur.EndDate), 10).
		addMulti("team", "Team members", team, members)
	v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
}

func (v *ProjectsView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.form.Update(msg)
	switch action {
	case formCancel:
		v.form = nil
		v.editing = nil
		return v, nil
	case formSubmit:
		return v, v.saveProject()
	}
	return v, cmd
}

func (v *ProjectsView) saveProject() tea.Cmd {
	f := v.form
	var p models.Project
	if v.editing != nil {
		p = *v.editing
	}
	p.Name = f.value("name")
	p.Description = f.value("description")
	p.Status = models.ProjectStatus(f.value("status"))
	p.OwnerID = f.id("owner")
	p.TeamMemberIDs = f.ids("team")

	dateErrs := models.FieldErrors{}
	start, err := parseDay(f.value("startDate"))
	if err != nil {
		dateErrs["startDate"] = err.Error()
	}
	end, err := parseDay(f.value("endDate"))
	if err != nil {
		dateErrs["endDate"] = err.Error()
	}
	p.StartDate, p.EndDate = start, end

	errs := models.ValidateProject(p)
	for k, msg := range dateErrs {
		errs[k] = msg
	}
	f.setErrors(errs)
	if len(errs) > 0 {
		return nil
	}

	creating := v.editing == nil
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		var (
			saved models.Project
			err   error
		)
		if creating {
			saved, err = client.CreateProject(ctx, p)
		} else {
			saved, err = client.UpdateProject(ctx, p)
		}
		if err == nil && saved.Name == "" {
			saved = p
		}
		return projectSavedMsg{owner: owner, project: saved, err: err}
	}
}

func (v *ProjectsView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	yes, done := confirmKey(msg)
	if !done {
		return v, nil
	}
	v.confirmingDelete = false
	if !yes {
		return v, nil
	}
	client, ctx, owner, id := v.deps.API, v.deps.ctx(), v.owner, v.deleteTargetID
	return v, func() tea.Msg {
		return projectDeletedMsg{owner: owner, err: client.DeleteProject(ctx, id)}
	}
}

func (v *ProjectsView) renderCard(p *models.Project, width int) []string {
	s := v.styles
	lines := []string{truncate(p.Name, width)}
	if owner := v.userNames[p.OwnerID]; owner != "" {
		lines = append(lines, s.TitleMuted.Render(truncate(owner, width)))
	}
	if p.StartDate != nil || p.EndDate != nil {
		lines = append(lines, s.TitleMuted.Render(formatDay(p.StartDate)+" → "+formatDay(p.EndDate)))
	}
	if pr, ok := v.progress[p.ID]; ok && pr.Tasks > 0 {
		lines = append(lines, styles.ProgressBar(pr.Percent, max(width-6, 4))+fmt.Sprintf(" %d%%", pr.Percent))
	}
	return lines
}

func (v *ProjectsView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderConfirmDelete(v.styles, "Project", v.deleteTargetName, v.width, v.height)
	}
	if v.form != nil {
		return place(v.form.View(), v.width, v.height)
	}
	if v.filterForm != nil {
		return place(v.filterForm.View(), v.width, v.height)
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	if v.loaded && len(v.board.Items()) == 0 {
		b.WriteString(v.styles.TitleMuted.Render("No projects yet. Press n to create one."))
	} else {
		b.WriteString(v.board.View())
	}
	b.WriteString("\n")
	b.WriteString(renderHelp(v.styles, "←→↑↓", "select", "H/L", "move", "n", "new", "e", "edit", "d", "delete", "/", "search", "f", "filter", "?", "help"))
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *ProjectsView) renderHeader() string {
	s := v.styles
	searchStyle := s.FilterInput
	if v.focus == FocusSearch {
		searchStyle = s.InputFocused
	}

	var active []string
	c := v.criteria
	if c.Status != "" {
		active = append(active, "status: "+string(c.Status))
	}
	if c.StartFrom != nil {
		active = append(active, "from: "+formatDay(c.StartFrom))
	}
	if c.EndBy != nil {
		active = append(active, "until: "+formatDay(c.EndBy))
	}
	filters := s.FilterButton.Render("[f] filter")
	if len(active) > 0 {
		filters = s.FilterButton.Render(strings.Join(active, " · ") + "  [x] clear")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		s.Title.Render("Projects"),
		"  ",
		searchStyle.Render("/ "+v.searchInput.View()),
		"  ",
		filters,
	)
}

func (v *ProjectsView) renderHelpPopup() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Keyboard Shortcuts"),
		"",
		s.HelpKey.Render("←→↑↓")+"   select project",
		s.HelpKey.Render("H/L")+"    move left/right",
		s.HelpKey.Render("n")+"      new project",
		s.HelpKey.Render("e/↵")+"    edit project",
		s.HelpKey.Render("d")+"      delete project",
		s.HelpKey.Render("/")+"      search",
		s.HelpKey.Render("f")+"      filter",
		s.HelpKey.Render("x")+"      clear filters",
		s.HelpKey.Render("r")+"      refresh",
		"",
		s.TitleMuted.Render("Press any key to close"),
	)
	return place(s.FilterBar.Render(content), v.width, v.height)
}
