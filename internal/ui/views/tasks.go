package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// FocusArea represents which part of a board screen has focus
type FocusArea int

const (
	FocusBoard FocusArea = iota
	FocusSearch
)

// TasksView is the task kanban. The manager's board shows every task and
// allows editing; the personal board shows the signed-in user's tasks and
// only moves them.
type TasksView struct {
	deps   Deps
	owner  int64
	mine   bool
	board  *Kanban[models.Task, models.TaskStatus]
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	projects     []models.Project
	users        []models.User
	projectNames map[int64]string
	userNames    map[int64]string
	loaded       bool

	// Filtering
	focus       FocusArea
	searchInput textinput.Model
	criteria    board.TaskCriteria
	filterForm  *form

	// Task creation/editing
	form    *form
	editing *models.Task // nil while creating

	// Task detail with comments
	viewing             int64 // task id, 0 when closed
	comments            []models.Comment
	commentCursor       int
	commentInput        textarea.Model
	commentInputFocused bool

	// Delete confirmation, for a task or a comment
	confirmingDelete bool
	deleteKind       string
	deleteTargetID   int64
	deleteTargetName string

	showHelpPopup bool
}

type taskDataMsg struct {
	owner    int64
	tasks    []models.Task
	projects []models.Project
	users    []models.User
	err      error
}

type taskSavedMsg struct {
	owner int64
	task  models.Task
	err   error
}

type taskDeletedMsg struct {
	owner int64
	err   error
}

type commentsLoadedMsg struct {
	owner    int64
	taskID   int64
	comments []models.Comment
	err      error
}

type commentChangedMsg struct {
	owner  int64
	taskID int64
	text   string
	err    error
}

// NewTasksView creates the board of every task
func NewTasksView(deps Deps) *TasksView {
	return newTasksView(deps, false)
}

// NewMyTasksView creates the board of the signed-in user's tasks
func NewMyTasksView(deps Deps) *TasksView {
	return newTasksView(deps, true)
}

func newTasksView(deps Deps, mine bool) *TasksView {
	s := styles.NewStyles()
	k := keys.DefaultKeyMap()

	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	commentInput := textarea.New()
	commentInput.Placeholder = "Add a comment..."
	commentInput.CharLimit = 2000
	commentInput.SetWidth(50)
	commentInput.SetHeight(3)
	commentInput.ShowLineNumbers = false

	v := &TasksView{
		deps:         deps,
		owner:        nextOwner(),
		mine:         mine,
		styles:       s,
		keys:         k,
		searchInput:  search,
		commentInput: commentInput,
	}
	client := deps.API
	v.board = newKanban(deps.ctx(), board.TaskLane,
		func(ctx context.Context, t models.Task, to models.TaskStatus) error {
			_, err := client.UpdateTaskStatus(ctx, t.ID, to)
			return err
		},
		v.renderCard, s, k)
	return v
}

func (v *TasksView) Title() string {
	if v.mine {
		return "My Tasks"
	}
	return "Tasks"
}

func (v *TasksView) Capturing() bool {
	return v.focus == FocusSearch || v.form != nil || v.filterForm != nil ||
		v.confirmingDelete || v.commentInputFocused
}

func (v *TasksView) Init() tea.Cmd {
	return v.load()
}

// loadTaskData fetches tasks, projects and users concurrently
func loadTaskData(ctx context.Context, client *api.Client, mine bool) ([]models.Task, []models.Project, []models.User, error) {
	var (
		tasks    []models.Task
		projects []models.Project
		users    []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if mine {
			tasks, err = client.MyTasks(gctx)
		} else {
			tasks, err = client.Tasks(gctx)
		}
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = client.Projects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = client.Users(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return tasks, projects, users, nil
}

func (v *TasksView) load() tea.Cmd {
	client, ctx, owner, mine := v.deps.API, v.deps.ctx(), v.owner, v.mine
	return func() tea.Msg {
		tasks, projects, users, err := loadTaskData(ctx, client, mine)
		return taskDataMsg{owner: owner, tasks: tasks, projects: projects, users: users, err: err}
	}
}

func (v *TasksView) applyFilter() {
	c, names := v.criteria, v.projectNames
	if c.IsZero() {
		v.board.SetFilter(nil)
		return
	}
	v.board.SetFilter(func(tasks []models.Task) []models.Task {
		return board.FilterTasks(tasks, c, names)
	})
}

func (v *TasksView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		inputWidth := clamp(contentWidth-10, 20, 50)
		v.board.SetSize(contentWidth, v.height-6)
		v.commentInput.SetWidth(inputWidth)
		if v.form != nil {
			v.form.setWidth(inputWidth)
		}
		return v, nil

	case taskDataMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load tasks", msg.err) }
		}
		v.projects = msg.projects
		v.users = msg.users
		v.projectNames = models.ProjectNames(msg.projects)
		v.userNames = models.UserNames(msg.users)
		v.loaded = true
		v.board.SetItems(msg.tasks)
		v.applyFilter()
		return v, nil

	case taskSavedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if fe, ok := fieldErrors(msg.err); ok && v.form != nil {
			v.form.setErrors(fe)
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("save task", msg.err) }
		}
		v.form = nil
		v.editing = nil
		return v, tea.Batch(toast(fmt.Sprintf("Task %q saved", msg.task.Title)), v.load())

	case taskDeletedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("delete task", msg.err) }
		}
		v.viewing = 0
		return v, tea.Batch(toast("Task deleted"), v.load())

	case commentsLoadedMsg:
		if msg.owner != v.owner || msg.taskID != v.viewing {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load comments", msg.err) }
		}
		v.comments = msg.comments
		v.commentCursor = clamp(v.commentCursor, 0, max(len(v.comments)-1, 0))
		return v, nil

	case commentChangedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure(msg.text, msg.err) }
		}
		if msg.taskID != v.viewing {
			return v, nil
		}
		return v, v.loadComments(msg.taskID)

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
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
		if v.viewing != 0 {
			return v.updateViewingTask(msg)
		}
		return v.updateNormal(msg)
	}

	return v, v.board.Update(msg)
}

func (v *TasksView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle search input typing first - don't process hotkeys while typing
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
		v.startFilterForm()
		return v, nil

	case key.Matches(msg, v.keys.Clear):
		v.criteria = board.TaskCriteria{}
		v.searchInput.Reset()
		v.applyFilter()
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.Enter):
		if t := v.board.Selected(); t != nil {
			return v, v.openTask(t.ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		if v.mine {
			return v, nil
		}
		v.startForm(nil)
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Edit):
		if t := v.board.Selected(); t != nil && !v.mine {
			task := *t
			v.startForm(&task)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if t := v.board.Selected(); t != nil && !v.mine {
			v.confirm("Task", t.ID, t.Title)
		}
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, v.board.Update(msg)
}

func (v *TasksView) confirm(kind string, id int64, name string) {
	v.confirmingDelete = true
	v.deleteKind = kind
	v.deleteTargetID = id
	v.deleteTargetName = name
}

func (v *TasksView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	yes, done := confirmKey(msg)
	if !done {
		return v, nil
	}
	v.confirmingDelete = false
	if !yes {
		return v, nil
	}

	client, ctx, owner, id := v.deps.API, v.deps.ctx(), v.owner, v.deleteTargetID
	if v.deleteKind == "Comment" {
		taskID := v.viewing
		return v, func() tea.Msg {
			return commentChangedMsg{owner: owner, taskID: taskID, text: "delete comment", err: client.DeleteComment(ctx, id)}
		}
	}
	return v, func() tea.Msg {
		return taskDeletedMsg{owner: owner, err: client.DeleteTask(ctx, id)}
	}
}

func (v *TasksView) startFilterForm() {
	c := v.criteria
	vital := ""
	if c.Vital != nil {
		vital = strconv.FormatBool(*c.Vital)
	}
	f := newForm("Filter Tasks", v.styles, v.keys).
		addSelect("project", "Project", projectOptions(v.projects, "All projects"), idValue(c.ProjectID)).
		addSelect("status", "Status", enumOptions(models.TaskStatuses, "Any status"), string(c.Status)).
		addSelect("priority", "Priority", enumOptions(models.Priorities, "Any priority"), string(c.Priority))
	if !v.mine {
		f.addSelect("assignee", "Assignee", userOptions(v.users, "", "Anyone"), idValue(c.AssigneeID))
	}
	f.addSelect("vital", "Vital", []option{{"Any", ""}, {"Vital only", "true"}, {"Not vital", "false"}}, vital).
		addText("createdFrom", "Created from (YYYY-MM-DD)", "", formatDay(c.CreatedFrom), 10).
		addText("dueBy", "Due by (YYYY-MM-DD)", "", formatDay(c.DueBy), 10)
	v.filterForm = f
}

func idValue(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (v *TasksView) updateFilterForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.filterForm.Update(msg)
	switch action {
	case formCancel:
		v.filterForm = nil
		return v, nil
	case formSubmit:
		f := v.filterForm
		errs := models.FieldErrors{}
		from, err := parseDay(f.value("createdFrom"))
		if err != nil {
			errs["createdFrom"] = err.Error()
		}
		by, err := parseDay(f.value("dueBy"))
		if err != nil {
			errs["dueBy"] = err.Error()
		}
		if len(errs) > 0 {
			f.setErrors(errs)
			return v, nil
		}

		c := board.TaskCriteria{
			Search:      v.criteria.Search,
			Status:      models.TaskStatus(f.value("status")),
			Priority:    models.Priority(f.value("priority")),
			ProjectID:   f.id("project"),
			AssigneeID:  f.id("assignee"),
			CreatedFrom: from,
			DueBy:       by,
		}
		if s := f.value("vital"); s != "" {
			vital := s == "true"
			c.Vital = &vital
		}
		v.criteria = c
		v.filterForm = nil
		v.applyFilter()
		return v, nil
	}
	return v, cmd
}

func (v *TasksView) startForm(t *models.Task) {
	v.editing = t
	cur := models.Task{Status: models.StatusTodo, Priority: models.PriorityMedium}
	title := "New Task"
	if t != nil {
		cur = *t
		title = "Edit Task"
	}

	v.form = newForm(title, v.styles, v.keys).
		addText("title", "Title", "Task title", cur.Title, 200).
		addArea("description", "Description", "Description", cur.Description).
		addSelect("project", "Project", projectOptions(v.projects, "Choose a project"), idValue(cur.ProjectID)).
		addSelect("assignee", "Assignee", userOptions(v.users, models.RoleUser, "Choose an assignee"), idValue(cur.AssigneeID)).
		addSelect("priority", "Priority", enumOptions(models.Priorities, ""), string(cur.Priority)).
		addSelect("status", "Status", enumOptions(models.TaskStatuses, ""), string(cur.Status)).
		addText("dueDate", "Due date (YYYY-MM-DD)", "", formatDay(cur.DueDate), 10).
		addSelect("vital", "Vital", []option{{"No", "false"}, {"Yes", "true"}}, strconv.FormatBool(cur.Vital))
	v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
}

func (v *TasksView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.form.Update(msg)
	switch action {
	case formCancel:
		v.form = nil
		v.editing = nil
		return v, nil
	case formSubmit:
		return v, v.saveTask()
	}
	return v, cmd
}

func (v *TasksView) saveTask() tea.Cmd {
	f := v.form
	var t models.Task
	if v.editing != nil {
		t = *v.editing
	}
	t.Title = f.value("title")
	t.Description = f.value("description")
	t.ProjectID = f.id("project")
	t.AssigneeID = f.id("assignee")
	t.Priority = models.Priority(f.value("priority"))
	t.Status = models.TaskStatus(f.value("status"))
	t.Vital = f.value("vital") == "true"

	errs := models.ValidateTask(t)
	due, err := parseDay(f.value("dueDate"))
	if err != nil {
		errs["dueDate"] = err.Error()
	}
	t.DueDate = due
	f.setErrors(errs)
	if len(errs) > 0 {
		return nil
	}
	if t.Status == models.StatusDone && t.CompletedAt == nil {
		now := v.deps.now()
		t.CompletedAt = &now
	}

	creating := v.editing == nil
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		var (
			saved models.Task
			err   error
		)
		if creating {
			saved, err = client.CreateTask(ctx, t)
		} else {
			saved, err = client.UpdateTask(ctx, t)
		}
		if err == nil && saved.Title == "" {
			saved = t
		}
		return taskSavedMsg{owner: owner, task: saved, err: err}
	}
}

func (v *TasksView) openTask(id int64) tea.Cmd {
	v.viewing = id
	v.comments = nil
	v.commentCursor = 0
	return v.loadComments(id)
}

func (v *TasksView) loadComments(taskID int64) tea.Cmd {
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		comments, err := client.Comments(ctx, taskID)
		return commentsLoadedMsg{owner: owner, taskID: taskID, comments: comments, err: err}
	}
}

// viewedTask returns the task open in the detail view
func (v *TasksView) viewedTask() *models.Task {
	return board.TaskLane.Find(v.board.Items(), v.viewing)
}

func (v *TasksView) updateViewingTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle comment input mode
	if v.commentInputFocused {
		switch {
		case key.Matches(msg, v.keys.Back):
			v.commentInputFocused = false
			v.commentInput.Blur()
			return v, nil
		case key.Matches(msg, v.keys.Save):
			return v, v.submitComment()
		default:
			var cmd tea.Cmd
			v.commentInput, cmd = v.commentInput.Update(msg)
			return v, cmd
		}
	}

	task := v.viewedTask()
	switch {
	case key.Matches(msg, v.keys.Back):
		v.viewing = 0
		v.comments = nil
		return v, nil
	case key.Matches(msg, v.keys.Comment):
		v.commentInputFocused = true
		v.commentInput.Focus()
		return v, textarea.Blink
	case key.Matches(msg, v.keys.Up):
		v.commentCursor = max(v.commentCursor-1, 0)
		return v, nil
	case key.Matches(msg, v.keys.Down):
		v.commentCursor = clamp(v.commentCursor+1, 0, max(len(v.comments)-1, 0))
		return v, nil
	case key.Matches(msg, v.keys.Delete):
		if v.commentCursor < len(v.comments) {
			c := v.comments[v.commentCursor]
			v.confirm("Comment", c.ID, truncate(c.Content, 30))
		}
		return v, nil
	case key.Matches(msg, v.keys.Status):
		if task == nil {
			return v, nil
		}
		i := board.TaskLane.Index(task.Status)
		next := models.TaskStatuses[(i+1)%len(models.TaskStatuses)]
		return v, v.board.MoveTo(task, next)
	case key.Matches(msg, v.keys.Edit):
		if task != nil && !v.mine {
			t := *task
			v.viewing = 0
			v.startForm(&t)
			return v, textinput.Blink
		}
	}
	return v, nil
}

func (v *TasksView) submitComment() tea.Cmd {
	content := strings.TrimSpace(v.commentInput.Value())
	if content == "" {
		return nil
	}

	c := models.Comment{TaskID: v.viewing, Content: content}
	if u := v.deps.currentUser(); u != nil {
		c.AuthorID = u.ID
	}

	v.commentInput.Reset()
	v.commentInputFocused = false
	v.commentInput.Blur()

	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		_, err := client.AddComment(ctx, c)
		return commentChangedMsg{owner: owner, taskID: c.TaskID, text: "add comment", err: err}
	}
}

func (v *TasksView) renderCard(t *models.Task, width int) []string {
	s := v.styles
	title := t.Title
	if t.Vital {
		title = "★ " + title
	}
	lines := []string{
		truncate(title, width),
		s.PriorityBadge(t.Priority) + " " + s.TitleMuted.Render(truncate(v.projectNames[t.ProjectID], width-10)),
	}

	meta := v.userNames[t.AssigneeID]
	if t.DueDate != nil {
		due := "due " + formatDay(t.DueDate)
		if t.Overdue(v.deps.now()) {
			due = lipgloss.NewStyle().Foreground(styles.Current.Error).Render(due)
		}
		meta = strings.TrimSpace(meta + " " + due)
	}
	if meta != "" {
		lines = append(lines, s.TitleMuted.Render(meta))
	}
	return lines
}

// View renders the view
func (v *TasksView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderConfirmDelete(v.styles, v.deleteKind, v.deleteTargetName, v.width, v.height)
	}
	if v.form != nil {
		return place(v.form.View(), v.width, v.height)
	}
	if v.filterForm != nil {
		return place(v.filterForm.View(), v.width, v.height)
	}
	if v.viewing != 0 {
		return v.renderTaskView()
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	if v.loaded && len(v.board.Items()) == 0 {
		b.WriteString(v.styles.TitleMuted.Render("No tasks yet."))
	} else {
		b.WriteString(v.board.View())
	}
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TasksView) renderHeader() string {
	s := v.styles
	searchStyle := s.FilterInput
	if v.focus == FocusSearch {
		searchStyle = s.InputFocused
	}

	var active []string
	c := v.criteria
	if c.ProjectID != 0 {
		active = append(active, "project: "+v.projectNames[c.ProjectID])
	}
	if c.Status != "" {
		active = append(active, "status: "+c.Status.Label())
	}
	if c.Priority != "" {
		active = append(active, "priority: "+string(c.Priority))
	}
	if c.AssigneeID != 0 {
		active = append(active, "assignee: "+v.userNames[c.AssigneeID])
	}
	if c.Vital != nil {
		active = append(active, "vital: "+strconv.FormatBool(*c.Vital))
	}
	if c.CreatedFrom != nil {
		active = append(active, "from: "+formatDay(c.CreatedFrom))
	}
	if c.DueBy != nil {
		active = append(active, "due by: "+formatDay(c.DueBy))
	}
	filters := s.FilterButton.Render("[f] filter")
	if len(active) > 0 {
		filters = s.FilterButton.Render(strings.Join(active, " · ") + "  [x] clear")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		s.Title.Render(v.Title()),
		"  ",
		searchStyle.Render("/ "+v.searchInput.View()),
		"  ",
		filters,
	)
}

func (v *TasksView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	if v.mine {
		return renderHelp(v.styles, "←→↑↓", "select", "H/L", "move", "↵", "open", "/", "search", "f", "filter", "r", "refresh")
	}
	return renderHelp(v.styles, "←→↑↓", "select", "H/L", "move", "↵", "open", "n", "new", "e", "edit", "d", "delete", "/", "search", "f", "filter")
}

func (v *TasksView) renderHelpPopup() string {
	s := v.styles
	helpItems := []string{
		s.HelpKey.Render("←→↑↓") + "   select task",
		s.HelpKey.Render("H/L") + "    move left/right",
		s.HelpKey.Render("↵") + "      view task",
	}
	if !v.mine {
		helpItems = append(helpItems,
			s.HelpKey.Render("n")+"      new task",
			s.HelpKey.Render("e")+"      edit task",
			s.HelpKey.Render("d")+"      delete task",
		)
	}
	helpItems = append(helpItems,
		s.HelpKey.Render("/")+"      search",
		s.HelpKey.Render("f")+"      filter",
		s.HelpKey.Render("x")+"      clear filters",
		s.HelpKey.Render("r")+"      refresh",
		"",
		s.TitleMuted.Render("Press any key to close"),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return place(s.FilterBar.Render(content), v.width, v.height)
}

func (v *TasksView) renderTaskView() string {
	task := v.viewedTask()
	if task == nil {
		return ""
	}

	s := v.styles
	maxContentWidth := styles.ContentWidth(v.width)

	var b strings.Builder
	b.WriteString(s.Title.Render(task.Title))
	b.WriteString("\n\n")
	b.WriteString(s.StatusBadge(string(task.Status)) + " " + s.PriorityBadge(task.Priority))
	if task.Vital {
		b.WriteString(" " + s.Badge.Foreground(styles.Current.Warning).Render("★ VITAL"))
	}
	b.WriteString("\n\n")

	meta := [][2]string{
		{"Project", v.projectNames[task.ProjectID]},
		{"Assignee", v.userNames[task.AssigneeID]},
		{"Due", formatDay(task.DueDate)},
		{"Completed", formatDay(task.CompletedAt)},
	}
	for _, m := range meta {
		if m[1] == "" {
			continue
		}
		b.WriteString(s.TitleMuted.Render(m[0]+": ") + m[1] + "\n")
	}
	if task.Description != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Width(maxContentWidth-4).Render(task.Description) + "\n")
	}

	b.WriteString("\n" + s.Title.Render(fmt.Sprintf("Comments (%d)", len(v.comments))) + "\n")
	if len(v.comments) == 0 {
		b.WriteString(s.TitleMuted.Render("No comments yet") + "\n")
	}
	for i, c := range v.comments {
		author := v.userNames[c.AuthorID]
		if author == "" {
			author = "Unknown User"
		}
		header := s.HelpKey.Render(author)
		if !c.CreatedAt.IsZero() {
			header += " " + s.TitleMuted.Render(c.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		st := s.ListItem
		if i == v.commentCursor && !v.commentInputFocused {
			st = s.ListSelected
		}
		b.WriteString(st.Width(maxContentWidth-4).Render(header+"\n"+c.Content) + "\n")
	}

	inputStyle := s.Input
	if v.commentInputFocused {
		inputStyle = s.InputFocused
	}
	b.WriteString("\n" + inputStyle.Render(v.commentInput.View()) + "\n")

	if v.commentInputFocused {
		b.WriteString(renderHelp(s, "ctrl+s", "post", "esc", "cancel"))
	} else {
		pairs := []string{"c", "comment", "↑↓", "select comment", "d", "delete comment", "s", "next status"}
		if !v.mine {
			pairs = append(pairs, "e", "edit")
		}
		b.WriteString(renderHelp(s, append(pairs, "esc", "back")...))
	}
	return styles.CenterView(b.String(), v.width, v.height)
}
